// Package cli implements ledgerctl, the operator tool for the betting ledger.
package cli

import (
	"fmt"
	"io"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"twod-ledger-backend/internal/config"
	"twod-ledger-backend/internal/events"
	"twod-ledger-backend/internal/logger"
	"twod-ledger-backend/internal/services"
)

// Options lets callers swap the store and clock, mainly for tests.
type Options struct {
	OpenStore func(cfg *config.Config) (services.Store, error)
	Clock     services.Clock
}

type app struct {
	opts      Options
	cfg       *config.Config
	log       *zap.Logger
	store     services.Store
	publisher events.Publisher
	engine    *services.Engine
}

func defaultOpenStore(cfg *config.Config) (services.Store, error) {
	if cfg.Env == "memory" {
		return services.NewMemoryStore(), nil
	}
	return services.NewRedisStore(cfg)
}

func NewRootCmd(opts Options) *cobra.Command {
	if opts.OpenStore == nil {
		opts.OpenStore = defaultOpenStore
	}
	if opts.Clock == nil {
		opts.Clock = services.SystemClock{}
	}
	a := &app{opts: opts}

	root := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Operate the 2D betting ledger",
		Long: `ledgerctl settles sessions, maintains the block list, funds accounts and
mints access tokens against the same store the API server uses.
Configuration comes from the environment and an optional .env file.`,
		SilenceUsage:       true,
		PersistentPreRunE:  a.setup,
		PersistentPostRunE: a.teardown,
	}

	root.AddCommand(
		a.settleCmd(),
		a.blockCmd(),
		a.topupCmd(),
		a.registerCmd(),
		a.tokenCmd(),
		a.marketCmd(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a.cfg = cfg

	a.log, err = logger.New("ledgerctl", cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}

	a.store, err = a.opts.OpenStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	a.publisher = events.NopPublisher{}
	if len(events.SplitBrokers(cfg.KafkaBrokers)) > 0 {
		a.publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopicWagers, cfg.KafkaTopicSettlements)
	}

	a.engine = services.NewEngine(cfg, a.store, a.opts.Clock, a.publisher, nil, a.log)
	return nil
}

func (a *app) teardown(cmd *cobra.Command, args []string) error {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.log.Warn("failed to close publisher", zap.Error(err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("failed to close store", zap.Error(err))
		}
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
	return nil
}

func out(cmd *cobra.Command) io.Writer {
	return cmd.OutOrStdout()
}
