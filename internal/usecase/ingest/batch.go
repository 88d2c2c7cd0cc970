package ingest

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"cargoledger/internal/bootstrap/logging"
	"cargoledger/internal/domain/manifest"
	"cargoledger/internal/errs"
)

// chunk splits items into consecutive slices of at most size elements.
func chunk[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}
	out := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		out = append(out, items[start:min(start+size, len(items))])
	}
	return out
}

func (s *Service) writeInserts(ctx context.Context, entries []manifest.MasterEntry) (int, error) {
	applied := 0
	for idx, batch := range chunk(entries, s.opts.BatchSize) {
		var inserted int
		err := s.retry(ctx, "insert master entries", idx, func() error {
			n, err := s.repo.InsertMasterEntries(ctx, batch)
			if err != nil {
				return err
			}
			inserted = n
			return nil
		})
		if err != nil {
			return applied, errs.Wrapf(err, "insert batch %d", idx+1)
		}
		applied += inserted
	}
	return applied, nil
}

func (s *Service) writeUpdates(ctx context.Context, kind manifest.Kind, updates []manifest.EntryUpdate) (int, error) {
	applied := 0
	for idx, batch := range chunk(updates, s.opts.BatchSize) {
		var updated int
		err := s.retry(ctx, "update master entries", idx, func() error {
			n, err := s.repo.UpdateMasterEntries(ctx, kind, batch)
			if err != nil {
				return err
			}
			updated = n
			return nil
		})
		if err != nil {
			return applied, errs.Wrapf(err, "update batch %d", idx+1)
		}
		applied += updated
	}
	return applied, nil
}

// retry runs op with exponential backoff. Inserts skip existing identifiers
// and updates overwrite by identifier, so a retried batch never duplicates.
func (s *Service) retry(ctx context.Context, op string, batch int, fn func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.opts.RetryInitial
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = 0

	attempt := 0
	operation := func() error {
		err := fn()
		if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, next time.Duration) {
		attempt++
		logging.Warn(
			ctx,
			"master list batch failed, retrying",
			slog.String("op", op),
			slog.Int("batch", batch+1),
			slog.Int("attempt", attempt),
			slog.Duration("next_retry_in", next),
			slog.Any("err", errs.Loggable(err)),
		)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.opts.MaxRetries)), ctx)
	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return errs.Wrapf(err, "%s after %d retries", op, attempt)
	}
	return nil
}
