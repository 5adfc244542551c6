package wallet

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/nspcc-dev/neo-go/pkg/encoding/address"

	"github.com/chainwage/payroll_layer/pkg/logger"
)

// ErrNoAccounts is returned when the provider connects but exposes no account.
var ErrNoAccounts = errors.New("wallet returned no accounts")

// ErrNotConnected is returned when the active address is read before Connect.
var ErrNotConnected = errors.New("wallet not connected")

// Connector tracks the active wallet account and network and notifies
// subscribers when either changes. Connect calls are serialized; the wallet
// can only service one prompt at a time.
type Connector struct {
	provider Provider
	log      *logger.Logger

	mu        sync.RWMutex
	account   Account
	network   Network
	connected bool

	accountSubs []func(Account)
	networkSubs []func(Network)
}

// NewConnector wraps a wallet provider.
func NewConnector(provider Provider, log *logger.Logger) *Connector {
	if log == nil {
		log = logger.NewDefault("wallet")
	}
	return &Connector{provider: provider, log: log}
}

// Provider returns the underlying wallet provider.
func (c *Connector) Provider() Provider { return c.provider }

// Connect prompts the wallet for account access and records the first exposed
// account as active, along with the wallet's current network.
func (c *Connector) Connect(ctx context.Context) (Account, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	accounts, err := c.provider.RequestAccounts(ctx)
	if err != nil {
		return Account{}, fmt.Errorf("request accounts: %w", err)
	}
	if len(accounts) == 0 {
		return Account{}, ErrNoAccounts
	}

	active := accounts[0]
	active.Address = strings.TrimSpace(active.Address)
	if _, err := address.StringToUint160(active.Address); err != nil {
		return Account{}, fmt.Errorf("provider returned invalid address %q: %w", active.Address, err)
	}

	network, err := c.provider.GetNetwork(ctx)
	if err != nil {
		return Account{}, fmt.Errorf("get network: %w", err)
	}

	c.account = active
	c.network = network
	c.connected = true

	c.log.WithField("address", active.Address).
		WithField("magic", network.Magic).
		Info("wallet connected")
	return active, nil
}

// Address returns the active account address.
func (c *Connector) Address() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.connected {
		return "", ErrNotConnected
	}
	return c.account.Address, nil
}

// Account returns the active account.
func (c *Connector) Account() (Account, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.connected {
		return Account{}, ErrNotConnected
	}
	return c.account, nil
}

// Network returns the last observed wallet network.
func (c *Connector) Network() (Network, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.connected {
		return Network{}, ErrNotConnected
	}
	return c.network, nil
}

// Refresh polls the provider for the current account and network and updates
// the active state, firing change callbacks as needed.
func (c *Connector) Refresh(ctx context.Context) error {
	account, err := c.provider.GetAccount(ctx)
	if err != nil {
		return fmt.Errorf("get account: %w", err)
	}
	network, err := c.provider.GetNetwork(ctx)
	if err != nil {
		return fmt.Errorf("get network: %w", err)
	}
	c.observe(account, network)
	return nil
}

// OnAccountChanged registers a callback invoked when the active account
// changes. Callbacks run on the watcher goroutine and must not block.
func (c *Connector) OnAccountChanged(fn func(Account)) {
	c.mu.Lock()
	c.accountSubs = append(c.accountSubs, fn)
	c.mu.Unlock()
}

// OnNetworkChanged registers a callback invoked when the wallet network
// changes.
func (c *Connector) OnNetworkChanged(fn func(Network)) {
	c.mu.Lock()
	c.networkSubs = append(c.networkSubs, fn)
	c.mu.Unlock()
}

// observe records a freshly polled account and network, firing subscriber
// callbacks when either differs from the previous observation.
func (c *Connector) observe(account Account, network Network) {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return
	}

	var accountFns []func(Account)
	var networkFns []func(Network)

	account.Address = strings.TrimSpace(account.Address)
	if account.Address != "" && account.Address != c.account.Address {
		c.account = account
		accountFns = append(accountFns, c.accountSubs...)
	}
	if network.Magic != 0 && network.Magic != c.network.Magic {
		c.network = network
		networkFns = append(networkFns, c.networkSubs...)
	}
	c.mu.Unlock()

	for _, fn := range accountFns {
		fn(account)
	}
	for _, fn := range networkFns {
		fn(network)
	}
}
