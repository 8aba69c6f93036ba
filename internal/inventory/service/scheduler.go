package service

import (
	"context"
	"time"

	"github.com/medflow/pharmacy-backend/pkg/logger"
	"github.com/medflow/pharmacy-backend/pkg/session"
)

// Scheduler periodically sweeps pending purchases, refreshes the live ledger
// view for the current date and runs the alert scans.
type Scheduler struct {
	reconciler *Reconciler
	scanner    *AlertScanner
	view       *LedgerView
	interval   time.Duration
	logger     *logger.Logger
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewScheduler creates a new scheduler. view may be nil.
func NewScheduler(reconciler *Reconciler, scanner *AlertScanner, view *LedgerView, interval time.Duration, log *logger.Logger) *Scheduler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Scheduler{
		reconciler: reconciler,
		scanner:    scanner,
		view:       view,
		interval:   interval,
		logger:     log,
	}
}

// Start starts the scheduler in a background goroutine.
// The first cycle runs immediately so pending purchases are settled at startup.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(session.System(ctx))
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		s.logger.Info().Dur("interval", s.interval).Msg("ledger scheduler started")

		s.RunCycle(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info().Msg("ledger scheduler stopped")
				return
			case <-ticker.C:
				s.RunCycle(ctx)
			}
		}
	}()
}

// Stop stops the scheduler goroutine and waits for the running cycle to finish
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
}

// RunCycle runs one sweep and scan
func (s *Scheduler) RunCycle(ctx context.Context) {
	start := time.Now()

	result, err := s.reconciler.Sweep(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("pending purchase sweep failed")
	}

	if s.view != nil {
		s.view.Recompute()
	}

	if err := s.scanner.ScanAll(ctx); err != nil {
		s.logger.Error().Err(err).Msg("alert scan failed")
	}

	s.logger.Debug().
		Dur("duration", time.Since(start)).
		Int("purchases_settled", result.Committed+result.RolledBack).
		Msg("ledger cycle completed")
}
