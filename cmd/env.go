package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/aegis/internal/checker"
	"github.com/sells-group/aegis/internal/config"
	"github.com/sells-group/aegis/internal/monitoring"
	"github.com/sells-group/aegis/internal/scan"
	"github.com/sells-group/aegis/internal/store"
	"github.com/sells-group/aegis/pkg/anthropic"
)

// Env bundles the wired application components for a command run.
type Env struct {
	Store     store.Store
	Registry  *checker.Registry
	Scheduler *scan.Scheduler
	Collector *monitoring.Collector
}

// Close releases the store connection.
func (e *Env) Close() {
	if err := e.Store.Close(); err != nil {
		zap.L().Warn("close store", zap.Error(err))
	}
}

// initEnv opens the store and wires the checker registry and scheduler
// from config.
func initEnv(ctx context.Context, mode string) (*Env, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := openStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	reg, err := buildRegistry(cfg)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	orch := scan.NewOrchestrator(st, reg, cfg.Learner, scan.Options{
		Workers: cfg.Scan.Workers,
		Budget:  time.Duration(cfg.Scan.BudgetSecs) * time.Second,
	})
	sched := scan.NewScheduler(orch, time.Duration(cfg.Scan.TimeoutSecs)*time.Second)

	return &Env{
		Store:     st,
		Registry:  reg,
		Scheduler: sched,
		Collector: monitoring.NewCollector(st),
	}, nil
}

func openStore(ctx context.Context, sc config.StoreConfig) (store.Store, error) {
	switch sc.Driver {
	case "sqlite":
		return store.NewSQLite(sc.Path)
	case "postgres":
		return store.NewPostgres(ctx, sc.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver %q", sc.Driver)
	}
}

// buildRegistry registers every enabled checker. The Claude-backed
// checker only registers when an API key is configured.
func buildRegistry(cfg *config.Config) (*checker.Registry, error) {
	reg := checker.NewRegistry()

	register := func(c checker.Checker) error {
		if cfg.Checkers.IsDisabled(c.ID()) {
			zap.L().Info("checker disabled", zap.String("checker_id", c.ID()))
			return nil
		}
		return reg.Register(c)
	}

	if err := register(checker.NewPassiveVoice()); err != nil {
		return nil, err
	}

	rules := checker.DefaultTermRules()
	if path := cfg.Checkers.TermRulesPath; path != "" {
		loaded, err := checker.LoadTermRules(path)
		if err != nil {
			return nil, err
		}
		rules = loaded
	}
	term, err := checker.NewTerminology(rules)
	if err != nil {
		return nil, err
	}
	if err := register(term); err != nil {
		return nil, err
	}

	if err := register(checker.NewReadability(cfg.Checkers.LongSentenceWords, cfg.Checkers.VeryLongSentenceWords)); err != nil {
		return nil, err
	}

	allowlist := append(checker.DefaultAcronymAllowlist(), cfg.Checkers.AcronymAllowlist...)
	if err := register(checker.NewAcronyms(allowlist)); err != nil {
		return nil, err
	}

	if cfg.Anthropic.Key != "" {
		sq := checker.NewStatementQuality(anthropic.NewClient(cfg.Anthropic.Key), checker.StatementQualityConfig{
			Model:             cfg.Anthropic.Model,
			RequestsPerSecond: cfg.Anthropic.RequestsPerSec,
		})
		if err := register(sq); err != nil {
			return nil, err
		}
	} else if !cfg.Checkers.IsDisabled("statement_quality") {
		zap.L().Info("statement_quality checker skipped: no anthropic key configured")
	}

	return reg, nil
}
