package service

import (
	"context"
	"fmt"

	"github.com/medflow/pharmacy-backend/internal/inventory/events"
	"github.com/medflow/pharmacy-backend/internal/inventory/repository"
	"github.com/medflow/pharmacy-backend/pkg/logger"
	"github.com/medflow/pharmacy-backend/pkg/session"
)

// SweepResult counts what a reconciliation sweep did
type SweepResult struct {
	Examined   int `json:"examined"`
	Committed  int `json:"committed"`
	RolledBack int `json:"rolledBack"`
	Failed     int `json:"failed"`
}

// Reconciler settles purchases left pending by an interrupted submission
type Reconciler struct {
	purchaseRepo *repository.PurchaseRepository
	batchRepo    *repository.BatchRepository
	publisher    *events.LedgerEventPublisher
	opts         Options
	logger       *logger.Logger
}

// NewReconciler creates a new reconciler
func NewReconciler(
	purchaseRepo *repository.PurchaseRepository,
	batchRepo *repository.BatchRepository,
	publisher *events.LedgerEventPublisher,
	opts Options,
	log *logger.Logger,
) *Reconciler {
	return &Reconciler{
		purchaseRepo: purchaseRepo,
		batchRepo:    batchRepo,
		publisher:    publisher,
		opts:         opts,
		logger:       log,
	}
}

// Sweep looks at every pending purchase older than the pending timeout.
// A purchase whose batches all landed is committed; any other is rolled back
// and its orphaned batches removed. Failures are logged and the sweep moves on.
func (r *Reconciler) Sweep(ctx context.Context) (SweepResult, error) {
	var result SweepResult
	if _, err := session.Require(ctx); err != nil {
		return result, err
	}

	purchases, err := r.purchaseRepo.List(ctx)
	if err != nil {
		return result, fmt.Errorf("sweep: list purchases: %w", err)
	}
	batches, err := r.batchRepo.List(ctx)
	if err != nil {
		return result, fmt.Errorf("sweep: list batches: %w", err)
	}
	byPurchase := make(map[string][]*repository.Batch)
	for _, b := range batches {
		byPurchase[b.PurchaseID] = append(byPurchase[b.PurchaseID], b)
	}

	cutoff := r.opts.now().UTC().Add(-r.opts.PendingTimeout)
	var lastErr error
	for _, p := range purchases {
		if p.EffectiveStatus() != repository.PurchaseStatusPending || p.CreatedAt.After(cutoff) {
			continue
		}
		result.Examined++

		written := byPurchase[p.ID]
		if len(written) == p.BatchCount {
			if err := r.purchaseRepo.SetStatus(ctx, p.ID, repository.PurchaseStatusCommitted); err != nil {
				r.logger.Error().Err(err).Str("purchase_id", p.ID).Msg("sweep: failed to commit purchase")
				result.Failed++
				lastErr = err
				continue
			}
			p.Status = repository.PurchaseStatusCommitted
			result.Committed++
			r.logger.Info().Str("purchase_id", p.ID).Int("batches", len(written)).Msg("sweep: committed pending purchase")
			r.publisher.PublishPurchaseCommitted(ctx, p, false)
			continue
		}

		if err := r.rollBack(ctx, p, written); err != nil {
			r.logger.Error().Err(err).Str("purchase_id", p.ID).Msg("sweep: failed to roll back purchase")
			result.Failed++
			lastErr = err
			continue
		}
		result.RolledBack++
	}

	if result.Examined > 0 {
		r.logger.Info().
			Int("examined", result.Examined).
			Int("committed", result.Committed).
			Int("rolled_back", result.RolledBack).
			Int("failed", result.Failed).
			Msg("pending purchase sweep completed")
	}
	return result, lastErr
}

func (r *Reconciler) rollBack(ctx context.Context, p *repository.Purchase, orphans []*repository.Batch) error {
	for _, b := range orphans {
		if err := r.batchRepo.Delete(ctx, b.ID); err != nil {
			return fmt.Errorf("delete batch %s: %w", b.ID, err)
		}
	}
	if err := r.purchaseRepo.SetStatus(ctx, p.ID, repository.PurchaseStatusRolledBack); err != nil {
		return err
	}

	r.logger.Warn().
		Str("purchase_id", p.ID).
		Int("batches_removed", len(orphans)).
		Int("batches_expected", p.BatchCount).
		Msg("sweep: rolled back incomplete purchase")
	r.publisher.PublishPurchaseRolledBack(ctx, p, fmt.Sprintf("%d of %d batches written", len(orphans), p.BatchCount))
	return nil
}
