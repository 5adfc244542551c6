// Package connect orchestrates the wallet onboarding flow: connect the
// wallet, validate the network, resolve the role, and hand back the
// dashboard the caller should land on.
package connect

import (
	"context"
	"errors"

	"github.com/chainwage/payroll_layer/internal/app/domain/user"
	"github.com/chainwage/payroll_layer/internal/app/metrics"
	"github.com/chainwage/payroll_layer/internal/app/services/roles"
	"github.com/chainwage/payroll_layer/internal/network"
	"github.com/chainwage/payroll_layer/internal/wallet"
	"github.com/chainwage/payroll_layer/pkg/logger"
)

// Dashboard routes by role.
const (
	EmployerPath   = "/employer"
	EmployeePath   = "/employee"
	OnboardingPath = "/onboarding"
)

// Notifier receives user-facing messages from the flow. The UI's toast
// surface implements this; a nil notifier drops messages.
type Notifier interface {
	Notify(level, message string)
}

// Result is the outcome of a completed connect flow.
type Result struct {
	Address      string    `json:"address"`
	NetworkMagic uint32    `json:"network_magic"`
	Role         user.Role `json:"role"`
	Employer     string    `json:"employer,omitempty"`
	// RedirectPath is where the client should navigate next. Addresses with
	// no role yet are sent to onboarding rather than failed.
	RedirectPath string `json:"redirect_path"`
}

// Service runs the connect flow.
type Service struct {
	connector *wallet.Connector
	validator *network.Validator
	roles     *roles.Service
	notifier  Notifier
	log       *logger.Logger
}

// New creates the connect flow service.
func New(connector *wallet.Connector, validator *network.Validator, rolesvc *roles.Service, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("connect")
	}
	return &Service{
		connector: connector,
		validator: validator,
		roles:     rolesvc,
		log:       log,
	}
}

// WithNotifier attaches the user-facing message sink.
func (s *Service) WithNotifier(n Notifier) *Service {
	s.notifier = n
	return s
}

// Connect runs the flow end to end. Each stage failure is mapped to a single
// user-facing message and surfaced through the notifier; the returned error
// keeps the technical cause for logs.
func (s *Service) Connect(ctx context.Context) (Result, error) {
	account, err := s.connector.Connect(ctx)
	if err != nil {
		metrics.ObserveConnectFlow("wallet")
		return Result{}, s.fail(err, wallet.UserMessage(err))
	}

	if err := s.validator.Ensure(ctx, s.connector.Provider()); err != nil {
		metrics.ObserveConnectFlow("network")
		msg := "Switch your wallet to a supported network to continue."
		if errors.Is(err, network.ErrSwitchRejected) {
			msg = "The network switch was rejected in the wallet."
		}
		return Result{}, s.fail(err, msg)
	}

	// A successful Ensure may have switched networks; refresh the cached
	// state before reporting it.
	if err := s.connector.Refresh(ctx); err != nil {
		s.log.WithError(err).Warn("post-switch refresh failed")
	}
	net, err := s.connector.Network()
	if err != nil {
		metrics.ObserveConnectFlow("network")
		return Result{}, s.fail(err, wallet.UserMessage(err))
	}

	resolution, err := s.roles.Resolve(ctx, account.Address)
	if errors.Is(err, roles.ErrRoleNotAssigned) {
		// Not an error: first-time addresses pick a role on the onboarding
		// screen.
		metrics.ObserveConnectFlow("ok")
		return Result{
			Address:      account.Address,
			NetworkMagic: net.Magic,
			Role:         user.RoleUnassigned,
			RedirectPath: OnboardingPath,
		}, nil
	}
	if err != nil {
		metrics.ObserveConnectFlow("role")
		return Result{}, s.fail(err, "Could not determine the account's role. Try again.")
	}

	metrics.ObserveConnectFlow("ok")
	return Result{
		Address:      account.Address,
		NetworkMagic: net.Magic,
		Role:         resolution.Role,
		Employer:     resolution.Employer,
		RedirectPath: redirectFor(resolution.Role),
	}, nil
}

func (s *Service) fail(err error, message string) error {
	s.log.WithError(err).Warn("connect flow failed")
	if s.notifier != nil {
		s.notifier.Notify("error", message)
	}
	return errors.New(message)
}

func redirectFor(role user.Role) string {
	switch role {
	case user.RoleEmployer:
		return EmployerPath
	case user.RoleEmployee:
		return EmployeePath
	default:
		return OnboardingPath
	}
}
