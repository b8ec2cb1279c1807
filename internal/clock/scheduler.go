package clock

import (
	"context"
	"log/slog"
	"time"
)

// Engine is the part of a session the scheduler drives.
type Engine interface {
	IncomeTick() error
	MarketTick() error
	Autosave(ctx context.Context)
}

type Config struct {
	IncomeEvery   time.Duration
	MarketEvery   time.Duration
	AutosaveEvery time.Duration
}

func DefaultConfig() Config {
	return Config{
		IncomeEvery:   time.Second,
		MarketEvery:   5 * time.Second,
		AutosaveEvery: 300 * time.Second,
	}
}

// Scheduler fires the three periodic jobs from a single goroutine, so no two
// of them ever overlap. A late tick is coalesced by the ticker, not queued.
type Scheduler struct {
	engine Engine
	cfg    Config
	log    *slog.Logger
}

func New(engine Engine, cfg Config, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.IncomeEvery <= 0 {
		cfg.IncomeEvery = def.IncomeEvery
	}
	if cfg.MarketEvery <= 0 {
		cfg.MarketEvery = def.MarketEvery
	}
	if cfg.AutosaveEvery <= 0 {
		cfg.AutosaveEvery = def.AutosaveEvery
	}
	return &Scheduler{engine: engine, cfg: cfg, log: logger}
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	income := time.NewTicker(s.cfg.IncomeEvery)
	defer income.Stop()
	market := time.NewTicker(s.cfg.MarketEvery)
	defer market.Stop()
	autosave := time.NewTicker(s.cfg.AutosaveEvery)
	defer autosave.Stop()

	s.log.Info("scheduler started",
		"income_every", s.cfg.IncomeEvery.String(),
		"market_every", s.cfg.MarketEvery.String(),
		"autosave_every", s.cfg.AutosaveEvery.String(),
	)
	s.loop(ctx, income.C, market.C, autosave.C)
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, income, market, autosave <-chan time.Time) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-income:
			if err := s.engine.IncomeTick(); err != nil {
				s.log.Error("income tick failed", "err", err)
			}
		case <-market:
			if err := s.engine.MarketTick(); err != nil {
				s.log.Error("market tick failed", "err", err)
			}
		case <-autosave:
			s.engine.Autosave(ctx)
		}
	}
}
