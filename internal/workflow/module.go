package workflow

import (
	"context"
	"fmt"

	"github.com/ronappleton/advisorflow/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func Module() fx.Option {
	return fx.Options(
		fx.Provide(
			NewRegistryFromConfig,
			NewCodec,
			NewRepositoryFromConfig,
			func(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) *Notifier {
				n := NewNotifier(cfg.Audit.URL, cfg.Audit.Timeout, cfg.EventBus.URL, cfg.EventBus.Timeout, logger)
				lc.Append(fx.Hook{OnStop: n.Close})
				return n
			},
			func(reg *Registry, codec *Codec, repo Repository, n *Notifier, cfg config.Config, logger *zap.Logger) *Dispatcher {
				return NewDispatcher(reg, codec, repo, logger, WithNotifier(n), WithConcurrency(cfg.Workflow.Concurrency))
			},
			func(reg *Registry, codec *Codec, repo Repository, cfg config.Config, logger *zap.Logger) *Reconstructor {
				return NewReconstructor(repo, reg, codec, logger, cfg.Workflow.ActivePageSize)
			},
			NewService,
		),
	)
}

// NewRegistryFromConfig builds the catalog from the configured template file,
// or the built-in templates when none is set.
func NewRegistryFromConfig(cfg config.Config, logger *zap.Logger) (*Registry, error) {
	templates := BuiltinTemplates
	if cfg.Workflow.TemplatesPath != "" {
		loaded, err := LoadTemplates(cfg.Workflow.TemplatesPath)
		if err != nil {
			return nil, err
		}
		templates = loaded
	}
	reg, err := NewRegistry(templates)
	if err != nil {
		return nil, err
	}
	logger.Info("workflow templates loaded",
		zap.Int("count", len(templates)),
		zap.String("source", sourceName(cfg.Workflow.TemplatesPath)))
	return reg, nil
}

func sourceName(path string) string {
	if path == "" {
		return "builtin"
	}
	return path
}

// NewRepositoryFromConfig opens the configured record store and registers
// its shutdown with the fx lifecycle.
func NewRepositoryFromConfig(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (Repository, error) {
	upsert := cfg.Workflow.Idempotency == config.IdempotencyUpsert
	switch cfg.Store.Driver {
	case "postgres":
		store, err := NewPGStore(context.Background(), cfg.Store.DSN, upsert)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		lc.Append(fx.Hook{OnStop: func(context.Context) error {
			return store.Close()
		}})
		logger.Info("record store ready", zap.String("driver", "postgres"), zap.Bool("upsert_by_key", upsert))
		return store, nil
	default:
		var opts []MemoryOption
		if upsert {
			opts = append(opts, WithUpsertByKey())
		}
		logger.Info("record store ready", zap.String("driver", "memory"), zap.Bool("upsert_by_key", upsert))
		return NewMemoryStore(opts...), nil
	}
}
