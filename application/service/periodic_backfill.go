package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/AntanasZilinskas/fd2p/internal/config"
)

// Backfiller runs one backfill pass.
type Backfiller interface {
	Backfill(ctx context.Context) (BackfillResult, error)
}

// PeriodicBackfill runs a backfill on startup and then on a timer.
// Runs happen on one goroutine, so they never overlap.
type PeriodicBackfill struct {
	backfiller Backfiller
	logger     *slog.Logger
	interval   time.Duration
	enabled    bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewPeriodicBackfill creates a new PeriodicBackfill from config and dependencies.
func NewPeriodicBackfill(cfg config.PeriodicBackfillConfig, backfiller Backfiller, logger *slog.Logger) *PeriodicBackfill {
	if logger == nil {
		logger = slog.Default()
	}
	return &PeriodicBackfill{
		backfiller: backfiller,
		logger:     logger,
		interval:   cfg.Interval(),
		enabled:    cfg.Enabled(),
	}
}

// Start begins the periodic backfill in a background goroutine.
// If disabled or already running, this is a no-op.
func (p *PeriodicBackfill) Start(ctx context.Context) {
	if !p.enabled {
		p.logger.Info("periodic backfill disabled")
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}

	ctx, p.cancel = context.WithCancel(ctx)
	p.wg.Go(func() {
		p.run(ctx)
	})

	p.logger.Info("periodic backfill started", slog.Duration("interval", p.interval))
}

// Stop cancels the background goroutine and waits for it to finish.
func (p *PeriodicBackfill) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	p.wg.Wait()
	p.logger.Info("periodic backfill stopped")
}

func (p *PeriodicBackfill) run(ctx context.Context) {
	p.backfill(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.backfill(ctx)
		}
	}
}

func (p *PeriodicBackfill) backfill(ctx context.Context) {
	result, err := p.backfiller.Backfill(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.logger.Error("periodic backfill failed",
			slog.Int("embedded", result.Embedded),
			slog.String("error", err.Error()),
		)
		return
	}
	p.logger.Debug("periodic backfill finished",
		slog.Int("embedded", result.Embedded),
		slog.Int("failed", result.Failed),
	)
}
