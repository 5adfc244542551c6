package wallet

import (
	"context"
	"sync"
	"time"

	"github.com/chainwage/payroll_layer/internal/app/system"
	"github.com/chainwage/payroll_layer/pkg/logger"
)

var _ system.Service = (*Watcher)(nil)

// Watcher polls the wallet provider for the active account and network and
// feeds observations to the connector, which turns them into change events.
// Wallet bridges have no push channel, so polling is the notification path.
type Watcher struct {
	connector *Connector
	log       *logger.Logger
	interval  time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewWatcher creates a lifecycle-managed wallet watcher.
func NewWatcher(connector *Connector, log *logger.Logger) *Watcher {
	if log == nil {
		log = logger.NewDefault("wallet-watcher")
	}
	return &Watcher{
		connector: connector,
		log:       log,
		interval:  5 * time.Second,
	}
}

// WithInterval overrides the poll interval. Call before Start.
func (w *Watcher) WithInterval(interval time.Duration) *Watcher {
	if interval > 0 {
		w.interval = interval
	}
	return w
}

func (w *Watcher) Name() string { return "wallet-watcher" }

func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true
	w.mu.Unlock()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				w.tick(runCtx)
			}
		}
	}()

	w.log.Info("wallet watcher started")
	return nil
}

func (w *Watcher) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	cancel := w.cancel
	w.running = false
	w.cancel = nil
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		w.wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	w.log.Info("wallet watcher stopped")
	return nil
}

func (w *Watcher) tick(ctx context.Context) {
	if w.connector == nil {
		return
	}
	if _, err := w.connector.Address(); err != nil {
		// Nothing to watch until a wallet is connected.
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	provider := w.connector.Provider()
	account, err := provider.GetAccount(ctx)
	if err != nil {
		w.log.WithError(err).Warn("poll wallet account failed")
		return
	}
	network, err := provider.GetNetwork(ctx)
	if err != nil {
		w.log.WithError(err).Warn("poll wallet network failed")
		return
	}

	w.connector.observe(account, network)
}
