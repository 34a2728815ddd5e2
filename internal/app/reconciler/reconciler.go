// Package reconciler settles payments whose webhook never arrived by polling
// the gateway.
package reconciler

import (
	"context"
	"sync"
	"time"

	"delivery-marketplace/internal/common/logger"
	"delivery-marketplace/internal/config"
	"delivery-marketplace/internal/microservices/payment/domain"
)

type Verifier interface {
	ListPending(ctx context.Context, minAge time.Duration, limit int) ([]domain.Payment, error)
	VerifyPayment(ctx context.Context, txRef string) (domain.Payment, error)
}

type Reconciler struct {
	svc      Verifier
	interval time.Duration
	workers  int
	minAge   time.Duration
	batch    int
	lg       *logger.Logger
}

func New(svc Verifier, cfg config.ReconcilerConfig, lg *logger.Logger) *Reconciler {
	r := &Reconciler{
		svc:      svc,
		interval: cfg.Interval,
		workers:  cfg.Workers,
		minAge:   cfg.MinAge,
		batch:    cfg.Batch,
		lg:       lg,
	}
	if r.interval <= 0 {
		r.interval = time.Minute
	}
	if r.workers <= 0 {
		r.workers = 1
	}
	if r.batch <= 0 {
		r.batch = 100
	}
	return r
}

// Run ticks until ctx is cancelled, then waits for the workers to drain.
func (r *Reconciler) Run(ctx context.Context) {
	jobs := make(chan string, r.workers*3)

	var wg sync.WaitGroup
	for i := 1; i <= r.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			r.worker(ctx, id, jobs)
		}(i)
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.lg.Info("reconciler_started", map[string]any{"workers": r.workers, "interval": r.interval.String(), "min_age": r.minAge.String()})
	for {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			r.lg.Info("reconciler_stopped", nil)
			return
		case <-ticker.C:
			r.dispatch(ctx, jobs)
		}
	}
}

func (r *Reconciler) dispatch(ctx context.Context, jobs chan<- string) {
	pending, err := r.svc.ListPending(ctx, r.minAge, r.batch)
	if err != nil {
		r.lg.Error("reconciler_list_failed", err, nil)
		return
	}
	if len(pending) == 0 {
		return
	}
	r.lg.Debug("reconciler_batch", map[string]any{"pending": len(pending)})
	for _, p := range pending {
		select {
		case jobs <- p.TxRef:
		default:
			r.lg.Warn("reconciler_queue_full", map[string]any{"tx_ref": p.TxRef})
		}
	}
}

func (r *Reconciler) worker(ctx context.Context, id int, jobs <-chan string) {
	for txRef := range jobs {
		if ctx.Err() != nil {
			continue
		}
		p, err := r.svc.VerifyPayment(ctx, txRef)
		if err != nil {
			r.lg.Warn("reconciler_verify_failed", map[string]any{"worker": id, "tx_ref": txRef, "error": err.Error()})
			continue
		}
		if p.Status.IsTerminal() {
			r.lg.Info("payment_reconciled", map[string]any{"worker": id, "tx_ref": txRef, "status": p.Status})
		}
	}
}
