package config

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap/zapcore"

	"github.com/jacksonlee411/worklog/modules/visibility"
	"github.com/jacksonlee411/worklog/pkg/authz"
)

func (c *Config) Validate() error {
	if err := c.Storage.validate(); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if c.Store.MaxAttempts < 1 {
		return fmt.Errorf("store.max_attempts must be >= 1 (got %d)", c.Store.MaxAttempts)
	}
	if c.Store.InitialBackoff < 0 {
		return errors.New("store.initial_backoff must be >= 0")
	}
	if c.Export.MaxPerMinute < 1 {
		return fmt.Errorf("export.max_per_minute must be >= 1 (got %d)", c.Export.MaxPerMinute)
	}
	if _, err := authz.ParseMode(c.Authz.Mode, c.Authz.AllowDisabled); err != nil {
		return err
	}
	if _, err := visibility.StrategyByName(c.Visibility.Strategy); err != nil {
		return err
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be json|console (got %q)", c.Log.Format)
	}
	return nil
}

func (s *StorageConfig) validate() error {
	s.Driver = strings.ToLower(strings.TrimSpace(s.Driver))
	switch s.Driver {
	case DriverMemory:
	case DriverFS:
		if s.FS.Root == "" {
			return errors.New("fs.root is required")
		}
	case DriverS3:
		if s.S3.Bucket == "" {
			return errors.New("s3.bucket is required")
		}
	case DriverNATSKV:
		if s.NATS.Bucket == "" {
			return errors.New("nats.bucket is required")
		}
		if !s.NATS.Embedded && s.NATS.URL == "" {
			return errors.New("nats.url is required unless nats.embedded is set")
		}
	case DriverRedis:
		if s.Redis.Addr == "" {
			return errors.New("redis.addr is required")
		}
	case DriverMongo:
		if s.Mongo.URI == "" || s.Mongo.Database == "" || s.Mongo.Collection == "" {
			return errors.New("mongo.uri, mongo.database and mongo.collection are required")
		}
	default:
		return fmt.Errorf("unknown driver %q (expected memory|fs|s3|natskv|redis|mongo)", s.Driver)
	}
	return nil
}
