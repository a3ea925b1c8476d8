package poller

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/plantpulse/pulse_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Fetcher pulls a trailing window of historian rows. The handle must be the
// read-only historian connection; the guard plugin enforces that on top of
// the credential.
//
// Fetching is idempotent: the same window against unchanged source data
// yields the same rows. At-least-once is fine because downstream dedups on
// asset+timestamp.
type Fetcher struct {
	Historian *gorm.DB
	Logger    *logrus.Logger
	Validate  *validator.Validate
}

func NewFetcher(historian *gorm.DB, logger *logrus.Logger) *Fetcher {
	return &Fetcher{
		Historian: historian,
		Logger:    logger,
		Validate:  validator.New(),
	}
}

// Fetch returns rows whose timestamp falls within [now - window, now] for the
// requested categories. The caller bounds the call with a context deadline;
// on timeout or connection failure the error wraps ErrorTransientFetch and
// nothing has been written anywhere.
func (f *Fetcher) Fetch(ctx context.Context, window time.Duration, categories []TableCategory) (*RawBatch, error) {
	if f.Historian == nil {
		return nil, fmt.Errorf("%w: historian db is nil", utils.ErrorTransientFetch)
	}
	now := time.Now().UTC()
	batch := &RawBatch{
		WindowStart: now.Add(-window),
		WindowEnd:   now,
	}

	for _, cat := range categories {
		var err error
		switch cat {
		case CategoryOutput:
			err = f.fetchWindow(ctx, batch, "recorded_at", &batch.Output)
			batch.Output = validRows(f, batch.Output, string(cat))
		case CategoryDowntime:
			err = f.fetchWindow(ctx, batch, "started_at", &batch.Downtime)
			batch.Downtime = validRows(f, batch.Downtime, string(cat))
		case CategoryOEE:
			err = f.fetchWindow(ctx, batch, "recorded_at", &batch.OEE)
			batch.OEE = validRows(f, batch.OEE, string(cat))
		case CategoryQuality:
			err = f.fetchWindow(ctx, batch, "recorded_at", &batch.Quality)
			batch.Quality = validRows(f, batch.Quality, string(cat))
		case CategoryLabor:
			err = f.fetchWindow(ctx, batch, "recorded_at", &batch.Labor)
			batch.Labor = validRows(f, batch.Labor, string(cat))
		default:
			return nil, fmt.Errorf("unknown table category %q", cat)
		}
		if err != nil {
			// Timeout / connection drop: transient, retried on the next
			// natural tick only. Never hammer the source immediately.
			return nil, fmt.Errorf("%w: fetch %s: %v", utils.ErrorTransientFetch, cat, err)
		}
	}
	return batch, nil
}

func (f *Fetcher) fetchWindow(ctx context.Context, batch *RawBatch, tsColumn string, dest interface{}) error {
	return f.Historian.WithContext(ctx).
		Where(tsColumn+" >= ? AND "+tsColumn+" <= ?", batch.WindowStart, batch.WindowEnd).
		Order(tsColumn + " ASC").
		Find(dest).Error
}

// validRows drops rows that fail boundary validation. A malformed row is
// logged and skipped; it never blocks its siblings.
func validRows[T any](f *Fetcher, rows []T, category string) []T {
	out := rows[:0]
	for _, row := range rows {
		if err := f.Validate.Struct(row); err != nil {
			if f.Logger != nil {
				f.Logger.WithFields(logrus.Fields{
					"field":    "Fetcher",
					"category": category,
					"errors":   utils.ProcessValidationErrors(err),
				}).Warn("dropping invalid historian row")
			}
			continue
		}
		out = append(out, row)
	}
	return out
}
