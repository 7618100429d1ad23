package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"

	"github.com/settled-dev/settled/internal/model"
)

// Retrying decorates a SystemRecordProvider with exponential backoff. When
// retries exhaust, errors surface as ErrUnavailable so callers can degrade
// (an empty suggestion list with a warning) instead of failing hard.
type Retrying struct {
	inner      SystemRecordProvider
	maxElapsed time.Duration
}

// NewRetrying wraps a provider. maxElapsed bounds the total retry time per
// call; zero uses the backoff package default.
func NewRetrying(inner SystemRecordProvider, maxElapsed time.Duration) *Retrying {
	return &Retrying{inner: inner, maxElapsed: maxElapsed}
}

// ListUnmatchedRecords implements SystemRecordProvider.
func (r *Retrying) ListUnmatchedRecords(ctx context.Context, f Filter) ([]model.SystemRecord, error) {
	var out []model.SystemRecord
	err := r.retry(ctx, func() error {
		var err error
		out, err = r.inner.ListUnmatchedRecords(ctx, f)
		return err
	})
	return out, err
}

// ListSettledRecords implements SystemRecordProvider.
func (r *Retrying) ListSettledRecords(ctx context.Context, f Filter) ([]model.SystemRecord, error) {
	var out []model.SystemRecord
	err := r.retry(ctx, func() error {
		var err error
		out, err = r.inner.ListSettledRecords(ctx, f)
		return err
	})
	return out, err
}

// RemainingAmount implements SystemRecordProvider.
func (r *Retrying) RemainingAmount(ctx context.Context, recordID string) (decimal.Decimal, error) {
	var out decimal.Decimal
	err := r.retry(ctx, func() error {
		var err error
		out, err = r.inner.RemainingAmount(ctx, recordID)
		if errors.Is(err, ErrRecordNotFound) {
			return backoff.Permanent(err)
		}
		return err
	})
	return out, err
}

func (r *Retrying) retry(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	if r.maxElapsed > 0 {
		b.MaxElapsedTime = r.maxElapsed
	}
	err := backoff.Retry(op, backoff.WithContext(b, ctx))
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrRecordNotFound) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
