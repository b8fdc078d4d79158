package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jacksonlee411/worklog/internal/config"
	"github.com/jacksonlee411/worklog/internal/migrate"
	"github.com/jacksonlee411/worklog/internal/storage"
	iampersistence "github.com/jacksonlee411/worklog/modules/iam/infrastructure/persistence"
	orgpersistence "github.com/jacksonlee411/worklog/modules/orgunit/infrastructure/persistence"
	staffingpersistence "github.com/jacksonlee411/worklog/modules/staffing/infrastructure/persistence"
	worklogpersistence "github.com/jacksonlee411/worklog/modules/worklog/infrastructure/persistence"
	"github.com/jacksonlee411/worklog/pkg/docstore"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "dbtool",
		Short:         "Maintenance commands for the worklog document store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newMigrateCmd(), newPruneShardsCmd())
	return root
}

// env is what every subcommand needs: config, a logger and an open store.
type env struct {
	cfg   *config.Config
	log   *zap.Logger
	ds    *docstore.Store
	close storage.CloseFunc
}

func openEnv(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log, err := cfg.Log.NewLogger()
	if err != nil {
		return nil, err
	}
	backend, closeFn, err := storage.Open(ctx, cfg.Storage, log.Named("storage"))
	if err != nil {
		return nil, err
	}
	ds := storage.NewDocStore(backend, cfg.Store, log.Named("docstore"), nil)
	return &env{cfg: cfg, log: log, ds: ds, close: closeFn}, nil
}

func (e *env) Close() {
	if err := e.close(context.Background()); err != nil {
		e.log.Warn("storage close failed", zap.Error(err))
	}
	_ = e.log.Sync()
}

func targets(ds *docstore.Store) migrate.Targets {
	return migrate.Targets{
		Users:        iampersistence.NewUserDocStore(ds),
		OrgUnits:     orgpersistence.NewOrgUnitDocStore(ds),
		Memberships:  orgpersistence.NewMembershipDocStore(ds),
		ManagerEdges: staffingpersistence.NewManagerEdgeDocStore(ds),
		Roles:        iampersistence.NewRoleDocStore(ds),
		Grants:       iampersistence.NewGrantDocStore(ds),
		AuditLogs:    iampersistence.NewAuditDocStore(ds),
		WorkItems:    worklogpersistence.NewWorkItemDocStore(ds),
	}
}

func newMigrateCmd() *cobra.Command {
	var databaseURL string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Copy the PostgreSQL tables into the document store and re-shard work items",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			url := databaseURL
			if url == "" {
				url = e.cfg.Database.URL
			}
			if url == "" {
				return fmt.Errorf("missing --database-url (or DATABASE_URL)")
			}
			pool, err := pgxpool.New(ctx, url)
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer pool.Close()

			sum, err := migrate.New(migrate.NewPGSource(pool), targets(e.ds), e.log.Named("migrate")).Run(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd, sum)
		},
	}
	cmd.Flags().StringVar(&databaseURL, "database-url", "", "PostgreSQL connection string (default: database.url from config)")
	return cmd
}

type pruneResult struct {
	PrunedShards int `json:"prunedShards"`
}

func newPruneShardsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune-shards",
		Short: "Delete work item shards that belong to no existing user",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			n, err := migrate.PruneShards(ctx,
				iampersistence.NewUserDocStore(e.ds),
				worklogpersistence.NewWorkItemDocStore(e.ds),
				e.log.Named("migrate"),
			)
			if err != nil {
				return err
			}
			return printJSON(cmd, pruneResult{PrunedShards: n})
		},
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
