package store

import (
	"context"
	"errors"

	"github.com/lamres/pairs-trading-cryptocurrencies-strategy-catalyst/internal/signal"
)

// Recorder accepts diagnostics records.
type Recorder interface {
	Record(ctx context.Context, rec signal.Record) error
}

// Fanout forwards every record to all recorders. Every recorder is attempted;
// failures are joined.
type Fanout []Recorder

func (f Fanout) Record(ctx context.Context, rec signal.Record) error {
	var errs []error
	for _, r := range f {
		if r == nil {
			continue
		}
		if err := r.Record(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
