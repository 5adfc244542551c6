package app

import (
	"context"
	"fmt"
	"time"

	connectsvc "github.com/chainwage/payroll_layer/internal/app/services/connect"
	"github.com/chainwage/payroll_layer/internal/app/services/roles"
	rostersvc "github.com/chainwage/payroll_layer/internal/app/services/roster"
	"github.com/chainwage/payroll_layer/internal/app/services/sessions"
	"github.com/chainwage/payroll_layer/internal/app/storage"
	"github.com/chainwage/payroll_layer/internal/app/storage/memory"
	"github.com/chainwage/payroll_layer/internal/app/system"
	"github.com/chainwage/payroll_layer/internal/network"
	"github.com/chainwage/payroll_layer/internal/wallet"
	"github.com/chainwage/payroll_layer/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Users    storage.UserStore
	Roster   storage.RosterStore
	Sessions storage.SessionStore
}

// Deps are the external collaborators the application is wired against.
type Deps struct {
	// Provider is the wallet bridge. Required.
	Provider wallet.Provider
	// Registry resolves roles on chain. Nil disables chain lookups; roles
	// then come from the local store only.
	Registry roles.Registry
	// Networks is the ordered allow-list; the first entry is preferred.
	Networks []wallet.NetworkDefinition
	// JWTSecret signs session tokens. Required.
	JWTSecret []byte

	// WatchInterval tunes the wallet poll cadence; zero keeps the default.
	WatchInterval time.Duration
	// PayrollEnabled starts the payout runner.
	PayrollEnabled bool
	// PayrollScan tunes the payout scan cadence; zero keeps the default.
	PayrollScan time.Duration
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	// Stores are the resolved persistence backends, with memory defaults
	// filled in.
	Stores Stores

	Connector *wallet.Connector
	Validator *network.Validator

	Connect  *connectsvc.Service
	Roles    *roles.Service
	Roster   *rostersvc.Service
	Sessions *sessions.Service
}

// New builds a fully initialised application with the provided stores and
// dependencies.
func New(stores Stores, deps Deps, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}
	if deps.Provider == nil {
		return nil, fmt.Errorf("wallet provider is required")
	}

	mem := memory.New()
	if stores.Users == nil {
		stores.Users = mem
	}
	if stores.Roster == nil {
		stores.Roster = mem
	}
	if stores.Sessions == nil {
		stores.Sessions = mem
	}

	manager := system.NewManager()

	connector := wallet.NewConnector(deps.Provider, log)
	validator, err := network.NewValidator(deps.Networks, log)
	if err != nil {
		return nil, fmt.Errorf("network validator: %w", err)
	}

	roleService := roles.New(stores.Users, deps.Registry, log)
	rosterService := rostersvc.New(stores.Roster, log)
	sessionService, err := sessions.New(stores.Users, stores.Sessions, deps.JWTSecret, log)
	if err != nil {
		return nil, fmt.Errorf("session service: %w", err)
	}
	connectService := connectsvc.New(connector, validator, roleService, log)

	watcher := wallet.NewWatcher(connector, log)
	if deps.WatchInterval > 0 {
		watcher = watcher.WithInterval(deps.WatchInterval)
	}
	if err := manager.Register(watcher); err != nil {
		return nil, fmt.Errorf("register %s: %w", watcher.Name(), err)
	}

	if deps.PayrollEnabled {
		runner := rostersvc.NewRunner(rosterService, log)
		if deps.PayrollScan > 0 {
			runner = runner.WithInterval(deps.PayrollScan)
		}
		if err := manager.Register(runner); err != nil {
			return nil, fmt.Errorf("register %s: %w", runner.Name(), err)
		}
	} else {
		log.Warn("payroll runner disabled; due payouts will not be recorded")
	}

	return &Application{
		manager:   manager,
		log:       log,
		Stores:    stores,
		Connector: connector,
		Validator: validator,
		Connect:   connectService,
		Roles:     roleService,
		Roster:    rosterService,
		Sessions:  sessionService,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
