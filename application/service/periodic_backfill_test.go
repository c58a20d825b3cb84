package service

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/AntanasZilinskas/fd2p/internal/config"
	"github.com/stretchr/testify/assert"
)

type countingBackfiller struct {
	runs atomic.Int32
	err  error
}

func (c *countingBackfiller) Backfill(_ context.Context) (BackfillResult, error) {
	c.runs.Add(1)
	return BackfillResult{Embedded: 1}, c.err
}

func TestPeriodicBackfill_Disabled(t *testing.T) {
	backfiller := &countingBackfiller{}
	p := NewPeriodicBackfill(config.NewPeriodicBackfillConfig(), backfiller, slog.New(slog.DiscardHandler))

	p.Start(context.Background())
	p.Stop()

	assert.Equal(t, int32(0), backfiller.runs.Load())
}

func TestPeriodicBackfill_RunsOnStartAndTick(t *testing.T) {
	backfiller := &countingBackfiller{}
	cfg := config.NewPeriodicBackfillConfig().WithEnabled(true).WithIntervalSeconds(0.01)
	p := NewPeriodicBackfill(cfg, backfiller, slog.New(slog.DiscardHandler))

	p.Start(context.Background())
	assert.Eventually(t, func() bool { return backfiller.runs.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	p.Stop()

	stopped := backfiller.runs.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, stopped, backfiller.runs.Load(), "no runs after Stop")
}

func TestPeriodicBackfill_FailureIsNotFatal(t *testing.T) {
	backfiller := &countingBackfiller{err: errors.New("store down")}
	cfg := config.NewPeriodicBackfillConfig().WithEnabled(true).WithIntervalSeconds(0.01)
	p := NewPeriodicBackfill(cfg, backfiller, slog.New(slog.DiscardHandler))

	p.Start(context.Background())
	assert.Eventually(t, func() bool { return backfiller.runs.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	p.Stop()
}

func TestPeriodicBackfill_StopWithoutStart(t *testing.T) {
	p := NewPeriodicBackfill(config.NewPeriodicBackfillConfig(), &countingBackfiller{}, nil)
	p.Stop()
}
