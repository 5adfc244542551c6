package roster

import (
	"context"
	"sync"
	"time"

	"github.com/chainwage/payroll_layer/internal/app/metrics"
	"github.com/chainwage/payroll_layer/internal/app/system"
	"github.com/chainwage/payroll_layer/pkg/logger"
)

var _ system.Service = (*Runner)(nil)

// Runner periodically records due payouts so settlement tooling downstream
// has a consistent queue to drain.
type Runner struct {
	service  *Service
	log      *logger.Logger
	interval time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewRunner creates a lifecycle-managed payroll runner.
func NewRunner(service *Service, log *logger.Logger) *Runner {
	if log == nil {
		log = logger.NewDefault("payroll-runner")
	}
	return &Runner{
		service:  service,
		log:      log,
		interval: time.Minute,
	}
}

// WithInterval overrides the scan interval. Call before Start.
func (r *Runner) WithInterval(interval time.Duration) *Runner {
	if interval > 0 {
		r.interval = interval
	}
	return r
}

func (r *Runner) Name() string { return "payroll-runner" }

func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				r.tick(runCtx)
			}
		}
	}()

	r.log.Info("payroll runner started")
	return nil
}

func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	cancel := r.cancel
	r.running = false
	r.cancel = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	r.log.Info("payroll runner stopped")
	return nil
}

func (r *Runner) tick(ctx context.Context) {
	if r.service == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	created, err := r.service.RecordDuePayouts(ctx, time.Now())
	if err != nil {
		r.log.WithError(err).Warn("payroll scan failed")
		return
	}
	if len(created) > 0 {
		metrics.ObservePayouts(len(created))
		r.log.WithField("count", len(created)).Info("payouts recorded")
	}
}
