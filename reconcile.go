package velopg

import (
	"context"
	"errors"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/syssam/velopg/migrate"
	"github.com/syssam/velopg/schema"
)

// ConnFactory opens one statement executor for one reconcile worker.
// migrate.Wire and stdsql.Open both produce suitable values.
type ConnFactory func(ctx context.Context) (migrate.ExecQuerier, error)

// ReconcileOption configures ReconcileEach.
type ReconcileOption func(*reconcileConfig)

type reconcileConfig struct {
	workers int
	opts    []migrate.Option
}

// WithWorkers sets the number of parallel workers.
func WithWorkers(n int) ReconcileOption {
	return func(c *reconcileConfig) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithMigrateOptions passes reconciler options through to every worker.
func WithMigrateOptions(opts ...migrate.Option) ReconcileOption {
	return func(c *reconcileConfig) {
		c.opts = append(c.opts, opts...)
	}
}

// ReconcileEach reconciles each entity on its own connection, at most
// workers at a time. Every statement surface still serves a single
// worker; the factory is what makes concurrent reconciliation safe.
// Executors that expose a Close method are closed when their worker
// finishes. The first failure cancels the remaining workers and is
// returned wrapped in a ReconcileError naming the entity.
func ReconcileEach(ctx context.Context, open ConnFactory, entities []*schema.Entity, opts ...ReconcileOption) error {
	cfg := reconcileConfig{workers: runtime.GOMAXPROCS(0)}
	for _, opt := range opts {
		opt(&cfg)
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(cfg.workers)

	for _, ent := range entities {
		eg.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			exec, err := open(ctx)
			if err != nil {
				return NewReconcileError(ent.Name, err)
			}
			_, applyErr := migrate.NewMigrate(exec, cfg.opts...).Apply(ctx, ent)
			if err := errors.Join(applyErr, closeExec(ctx, exec)); err != nil {
				return NewReconcileError(ent.Name, err)
			}
			return nil
		})
	}

	return eg.Wait()
}

func closeExec(ctx context.Context, exec migrate.ExecQuerier) error {
	switch c := exec.(type) {
	case interface{ Close(context.Context) error }:
		return c.Close(ctx)
	case interface{ Close() error }:
		return c.Close()
	}
	return nil
}
