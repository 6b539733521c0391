package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/Kowshalya-Eswar/agrofarm/internal/holds"
	"github.com/Kowshalya-Eswar/agrofarm/pkg/logger"
	"github.com/Kowshalya-Eswar/agrofarm/pkg/metrics"
	"go.uber.org/multierr"
)

const defaultHoldTTL = 15 * time.Minute

type holdRegistry interface {
	ListAll(ctx context.Context) ([]holds.Hold, error)
	Delete(ctx context.Context, productID, cartID string) (bool, error)
}

type stockCounter interface {
	IncrementBy(ctx context.Context, productID string, qty int64) (int64, error)
}

type HoldSweepJobParams struct {
	Logger  *logger.Logger
	Holds   holdRegistry
	Ledger  stockCounter
	Metrics *metrics.ReservationMetrics
	HoldTTL time.Duration
}

// NewHoldSweepJob builds the reclaimer that expires aged cart holds. A hold
// older than the TTL has its quantity returned to the stock counter and is
// deleted. Deleting a hold that disappeared between listing and acting is a
// no-op, so re-running the sweep reclaims nothing twice.
func NewHoldSweepJob(params HoldSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Holds == nil {
		return nil, fmt.Errorf("hold registry required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	ttl := params.HoldTTL
	if ttl <= 0 {
		ttl = defaultHoldTTL
	}
	return &holdSweepJob{
		logg:    params.Logger,
		holds:   params.Holds,
		ledger:  params.Ledger,
		metrics: params.Metrics,
		ttl:     ttl,
		now:     time.Now,
	}, nil
}

type holdSweepJob struct {
	logg    *logger.Logger
	holds   holdRegistry
	ledger  stockCounter
	metrics *metrics.ReservationMetrics
	ttl     time.Duration
	now     func() time.Time
}

func (j *holdSweepJob) Name() string { return "hold-sweep" }

func (j *holdSweepJob) Run(ctx context.Context) error {
	all, err := j.holds.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list holds: %w", err)
	}

	now := j.now()
	var (
		reclaimed int
		errs      error
	)
	for _, hold := range all {
		if hold.Age(now) < j.ttl {
			continue
		}
		removed, err := j.reclaim(ctx, hold)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if !removed {
			continue
		}
		reclaimed++
		j.metrics.IncHoldReleased("expired")
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"holds_seen":      len(all),
		"holds_reclaimed": reclaimed,
		"ttl":             j.ttl.String(),
	})
	j.logg.Info(logCtx, "hold sweep complete")
	return errs
}

// reclaim deletes the hold first and returns quantity to the counter only
// when that delete actually removed it. A hold consumed by checkout between
// listing and acting is gone already, and its stock must stay consumed.
func (j *holdSweepJob) reclaim(ctx context.Context, hold holds.Hold) (bool, error) {
	removed, err := j.holds.Delete(ctx, hold.ProductID, hold.CartID)
	if err != nil {
		return false, fmt.Errorf("delete hold %s/%s: %w", hold.ProductID, hold.CartID, err)
	}
	if !removed {
		return false, nil
	}
	if _, err := j.ledger.IncrementBy(ctx, hold.ProductID, hold.Qty); err != nil {
		// The hold is gone; surface the lost quantity so an operator can
		// repair the counter.
		logCtx := j.logg.WithFields(ctx, map[string]any{
			"product_id": hold.ProductID,
			"cart_id":    hold.CartID,
			"qty":        hold.Qty,
		})
		j.logg.Error(logCtx, "counter restore failed after hold delete", err)
		return true, fmt.Errorf("restore counter for %s/%s: %w", hold.ProductID, hold.CartID, err)
	}
	return true, nil
}
