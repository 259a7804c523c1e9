package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-accounts/internal/identity"
	"github.com/spec-kit/marketplace-accounts/internal/repository"
)

// SweepRecorder counts identities removed by the reconciler.
type SweepRecorder interface {
	OrphanSwept()
}

// OrphanReconciler deletes identities that never got a profile, typically left behind when a
// compensating delete failed. Identities younger than the grace period are skipped so that an
// in-flight registration is never touched.
type OrphanReconciler struct {
	identities identity.Service
	profiles   repository.ProfileRepository
	recorder   SweepRecorder
	logger     *zap.Logger
	interval   time.Duration
	grace      time.Duration
	pageSize   int
	now        func() time.Time
}

// NewOrphanReconciler builds the reconciler.
func NewOrphanReconciler(
	identities identity.Service,
	profiles repository.ProfileRepository,
	recorder SweepRecorder,
	interval, grace time.Duration,
	pageSize int,
	logger *zap.Logger,
) *OrphanReconciler {
	if pageSize <= 0 {
		pageSize = 100
	}
	return &OrphanReconciler{
		identities: identities,
		profiles:   profiles,
		recorder:   recorder,
		logger:     logger,
		interval:   interval,
		grace:      grace,
		pageSize:   pageSize,
		now:        time.Now,
	}
}

// Start sweeps once per interval until ctx is cancelled.
func (r *OrphanReconciler) Start(ctx context.Context) {
	r.logger.Info("starting orphan reconciler",
		zap.Duration("interval", r.interval),
		zap.Duration("grace", r.grace))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := r.Sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
				r.logger.Error("orphan sweep failed", zap.Error(err))
			}
		case <-ctx.Done():
			r.logger.Info("stopping orphan reconciler")
			return
		}
	}
}

// Sweep runs one reconciliation pass and returns how many identities were deleted.
func (r *OrphanReconciler) Sweep(ctx context.Context) (int, error) {
	ids, err := r.profiles.ListUserIDs(ctx)
	if err != nil {
		return 0, err
	}
	withProfile := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		withProfile[id] = struct{}{}
	}

	cutoff := r.now().Add(-r.grace)
	var candidates []string
	for number := 1; ; number++ {
		page, err := r.identities.List(ctx, identity.Page{Number: number, PerPage: r.pageSize})
		if err != nil {
			return 0, err
		}
		for _, ident := range page {
			if _, ok := withProfile[ident.ID]; ok || ident.CreatedAt.After(cutoff) {
				continue
			}
			candidates = append(candidates, ident.ID)
		}
		if len(page) < r.pageSize {
			break
		}
	}

	// deleting while paging would shift the listing
	swept := 0
	for _, id := range candidates {
		if err := r.identities.Delete(ctx, id); err != nil {
			if errors.Is(err, identity.ErrNotFound) {
				continue
			}
			r.logger.Error("orphan delete failed", zap.String("user_id", id), zap.Error(err))
			continue
		}
		swept++
		if r.recorder != nil {
			r.recorder.OrphanSwept()
		}
		r.logger.Warn("orphaned identity removed", zap.String("event", "orphan_swept"), zap.String("user_id", id))
	}
	return swept, nil
}
