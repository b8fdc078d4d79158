package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/jacksonlee411/worklog/internal/config"
	"github.com/jacksonlee411/worklog/pkg/docstore"
	"github.com/jacksonlee411/worklog/pkg/objstore"
	"github.com/jacksonlee411/worklog/pkg/objstore/fsstore"
	"github.com/jacksonlee411/worklog/pkg/objstore/mongostore"
	"github.com/jacksonlee411/worklog/pkg/objstore/natskv"
	"github.com/jacksonlee411/worklog/pkg/objstore/redisstore"
	"github.com/jacksonlee411/worklog/pkg/objstore/s3store"
)

const embeddedReadyTimeout = 10 * time.Second

var ErrUnknownDriver = errors.New("storage: unknown driver")

// CloseFunc releases whatever Open connected or started.
type CloseFunc func(ctx context.Context) error

func noopClose(context.Context) error { return nil }

// Open builds the backend selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StorageConfig, log *zap.Logger) (objstore.Backend, CloseFunc, error) {
	if log == nil {
		log = zap.NewNop()
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" {
		driver = config.DriverMemory
	}

	var (
		backend objstore.Backend
		closeFn CloseFunc = noopClose
		err     error
	)
	switch driver {
	case config.DriverMemory:
		backend = objstore.NewMemory()
	case config.DriverFS:
		backend, err = fsstore.New(cfg.FS.Root)
	case config.DriverS3:
		backend, err = openS3(ctx, cfg.S3)
	case config.DriverNATSKV:
		backend, closeFn, err = openNATS(ctx, cfg.NATS)
	case config.DriverRedis:
		backend, closeFn, err = openRedis(ctx, cfg.Redis)
	case config.DriverMongo:
		backend, closeFn, err = openMongo(ctx, cfg.Mongo)
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("storage: open %s: %w", driver, err)
	}
	log.Info("storage backend opened", zap.String("driver", driver))
	return backend, closeFn, nil
}

// NewDocStore applies the store section to a document store over b. A nil
// reg disables docstore metrics.
func NewDocStore(b objstore.Backend, cfg config.StoreConfig, log *zap.Logger, reg prometheus.Registerer) *docstore.Store {
	opts := []docstore.Option{
		docstore.WithPrefix(cfg.Prefix),
		docstore.WithRetry(cfg.MaxAttempts, cfg.InitialBackoff),
		docstore.WithCacheTTL(cfg.CacheTTL),
	}
	if log != nil {
		opts = append(opts, docstore.WithLogger(log))
	}
	if reg != nil {
		opts = append(opts, docstore.WithMetrics(docstore.NewMetrics(reg)))
	}
	return docstore.New(b, opts...)
}

func openS3(ctx context.Context, cfg config.S3Config) (objstore.Backend, error) {
	client, err := s3store.NewClient(ctx, s3store.Config{
		Bucket:          cfg.Bucket,
		Region:          cfg.Region,
		Endpoint:        cfg.Endpoint,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
		UsePathStyle:    cfg.UsePathStyle,
	})
	if err != nil {
		return nil, err
	}
	return s3store.New(client, cfg.Bucket), nil
}

func openRedis(ctx context.Context, cfg config.RedisConfig) (objstore.Backend, CloseFunc, error) {
	client, err := redisstore.NewClient(ctx, redisstore.Config{
		Addr:      cfg.Addr,
		Password:  cfg.Password,
		DB:        cfg.DB,
		Namespace: cfg.Namespace,
	})
	if err != nil {
		return nil, nil, err
	}
	return redisstore.New(client, cfg.Namespace), func(context.Context) error { return client.Close() }, nil
}

func openMongo(ctx context.Context, cfg config.MongoConfig) (objstore.Backend, CloseFunc, error) {
	store, client, err := mongostore.Connect(ctx, cfg.URI, cfg.Database, cfg.Collection)
	if err != nil {
		return nil, nil, err
	}
	return store, client.Disconnect, nil
}

// openNATS dials cfg.URL, or starts a JetStream server in-process when
// cfg.Embedded is set. The returned CloseFunc drains the connection and stops
// the embedded server.
func openNATS(ctx context.Context, cfg config.NATSConfig) (objstore.Backend, CloseFunc, error) {
	url := cfg.URL
	var ns *server.Server
	if cfg.Embedded {
		var err error
		ns, err = startEmbedded(cfg.StoreDir)
		if err != nil {
			return nil, nil, err
		}
		url = ns.ClientURL()
	}
	shutdown := func() {
		if ns != nil {
			ns.Shutdown()
		}
	}

	nc, err := nats.Connect(url)
	if err != nil {
		shutdown()
		return nil, nil, fmt.Errorf("connect %s: %w", url, err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		shutdown()
		return nil, nil, err
	}
	store, err := natskv.Open(ctx, js, cfg.Bucket)
	if err != nil {
		nc.Close()
		shutdown()
		return nil, nil, err
	}
	return store, func(context.Context) error {
		err := nc.Drain()
		shutdown()
		return err
	}, nil
}

func startEmbedded(storeDir string) (*server.Server, error) {
	ns, err := server.NewServer(&server.Options{
		Host:      "127.0.0.1",
		Port:      server.RANDOM_PORT,
		JetStream: true,
		StoreDir:  storeDir,
		NoLog:     true,
		NoSigs:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("embedded nats: %w", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(embeddedReadyTimeout) {
		ns.Shutdown()
		return nil, errors.New("embedded nats: not ready")
	}
	return ns, nil
}
