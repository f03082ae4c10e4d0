package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"restock/pkg/marketplace"
)

// Batch is the queue of items for one destination. Each destination has
// its own pipeline because it carries its own session credentials.
type Batch struct {
	DestinationID string
	Pipeline      *Pipeline
	Items         []Request
}

// Runner executes batches. Destinations run concurrently; items within a
// destination run in order with a configurable pause between them.
type Runner struct {
	Stats *Stats

	// Sleep between consecutive items within one destination.
	Sleep time.Duration

	// AbortRunOnInsufficientFunds escalates an out-of-funds destination
	// into a whole-run failure. By default only that destination's batch
	// stops, since other destinations have independent balances.
	AbortRunOnInsufficientFunds bool

	Logger *slog.Logger
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// RunDestination publishes the batch's items sequentially. Per-item
// failures are recorded and the batch continues; the batch stops early
// only on cancellation or when the destination runs out of funds.
func (r *Runner) RunDestination(ctx context.Context, batch Batch) error {
	log := r.logger().With("destination", batch.DestinationID)
	for i, item := range batch.Items {
		if err := ctx.Err(); err != nil {
			return err
		}
		if i > 0 && r.Sleep > 0 {
			timer := time.NewTimer(r.Sleep)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		outcome := batch.Pipeline.Publish(ctx, item)
		if r.Stats != nil {
			r.Stats.Add(item, outcome)
		}
		if outcome.Kind == Rejected && outcome.Cause == CauseInsufficientFunds {
			log.Error("stopping batch: destination out of funds",
				"remaining", len(batch.Items)-i-1)
			return fmt.Errorf("destination %s: %w", batch.DestinationID, marketplace.ErrInsufficientFunds)
		}
	}
	log.Info("batch complete", "items", len(batch.Items))
	return nil
}

// Run executes all batches, one goroutine per destination. An
// out-of-funds destination stops only its own batch unless the runner is
// configured to abort the whole run.
func (r *Runner) Run(ctx context.Context, batches []Batch) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, batch := range batches {
		batch := batch
		g.Go(func() error {
			err := r.RunDestination(ctx, batch)
			if err != nil && errors.Is(err, marketplace.ErrInsufficientFunds) && !r.AbortRunOnInsufficientFunds {
				return nil
			}
			return err
		})
	}
	return g.Wait()
}
