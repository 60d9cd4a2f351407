package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"ledgersync/internal/amqp"
	"ledgersync/internal/log"
	"ledgersync/internal/services"
)

// Intervals configures the cadence of each scheduled job. A zero interval
// disables that job's ticker; it can still be triggered over AMQP.
type Intervals struct {
	BillSync   time.Duration
	LedgerSync time.Duration
	Dashboard  time.Duration
}

// SyncWorker ties the engines to their triggers: fixed-cadence tickers and
// AMQP job messages, executed on a small shared pool. Distinct job kinds may
// run concurrently; same-kind runs are serialized so a pass is never
// re-entered by itself.
type SyncWorker struct {
	recon     *services.ReconciliationEngine
	dashboard *services.DashboardService
	logger    *log.Logger
	intervals Intervals
	poolSize  int

	mu    sync.Mutex
	locks map[amqp.JobKind]*sync.Mutex
}

func NewSyncWorker(
	recon *services.ReconciliationEngine,
	dashboard *services.DashboardService,
	logger *log.Logger,
	intervals Intervals,
	poolSize int,
) *SyncWorker {
	if poolSize < 1 {
		poolSize = 1
	}
	return &SyncWorker{
		recon:     recon,
		dashboard: dashboard,
		logger:    logger,
		intervals: intervals,
		poolSize:  poolSize,
		locks:     make(map[amqp.JobKind]*sync.Mutex),
	}
}

// HandleJob runs one AMQP-triggered job to completion.
func (w *SyncWorker) HandleJob(ctx context.Context, msg *amqp.JobMessage) error {
	return w.Run(ctx, msg.Kind)
}

// Run executes a single job of the given kind.
func (w *SyncWorker) Run(ctx context.Context, kind amqp.JobKind) error {
	lock := w.kindLock(kind)
	lock.Lock()
	defer lock.Unlock()

	started := time.Now()
	var err error
	switch kind {
	case amqp.JobBillSync:
		err = w.recon.SyncBillRecords(ctx)
	case amqp.JobLedgerSync:
		err = w.recon.SyncLedgerDeltas(ctx)
	case amqp.JobDashboardRefresh:
		_, err = w.dashboard.Refresh(ctx)
	default:
		return fmt.Errorf("unknown job kind: %q", kind)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", kind, err)
	}

	w.logger.InfoContext(ctx, "Job finished",
		"kind", kind, "duration", time.Since(started).Round(time.Millisecond))
	return nil
}

// Start runs the scheduled tickers, the job pool and the AMQP consumer until
// ctx is cancelled. client may be nil when AMQP is not configured.
func (w *SyncWorker) Start(ctx context.Context, client *amqp.Client) error {
	g, ctx := errgroup.WithContext(ctx)
	jobs := make(chan amqp.JobKind)

	schedule := []struct {
		kind     amqp.JobKind
		interval time.Duration
	}{
		{amqp.JobBillSync, w.intervals.BillSync},
		{amqp.JobLedgerSync, w.intervals.LedgerSync},
		{amqp.JobDashboardRefresh, w.intervals.Dashboard},
	}
	for _, s := range schedule {
		if s.interval <= 0 {
			continue
		}
		s := s
		g.Go(func() error {
			ticker := time.NewTicker(s.interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-ticker.C:
					select {
					case jobs <- s.kind:
					case <-ctx.Done():
						return ctx.Err()
					}
				}
			}
		})
	}

	for i := 0; i < w.poolSize; i++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case kind := <-jobs:
					if err := w.Run(ctx, kind); err != nil {
						w.logger.ErrorContext(ctx, "Scheduled job failed",
							"kind", kind, "error", err)
					}
				}
			}
		})
	}

	if client != nil {
		g.Go(func() error {
			return client.ConsumeJobs(ctx, func(msg *amqp.JobMessage) error {
				return w.HandleJob(ctx, msg)
			})
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (w *SyncWorker) kindLock(kind amqp.JobKind) *sync.Mutex {
	w.mu.Lock()
	defer w.mu.Unlock()
	lock, ok := w.locks[kind]
	if !ok {
		lock = &sync.Mutex{}
		w.locks[kind] = lock
	}
	return lock
}
