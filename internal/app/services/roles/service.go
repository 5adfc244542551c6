// Package roles resolves the payroll role of a wallet address by reconciling
// the local store with the on-chain role registry.
package roles

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nspcc-dev/neo-go/pkg/encoding/address"

	"github.com/chainwage/payroll_layer/internal/app/domain/user"
	"github.com/chainwage/payroll_layer/internal/app/storage"
	"github.com/chainwage/payroll_layer/internal/chain"
	"github.com/chainwage/payroll_layer/pkg/logger"
)

// ErrRoleNotAssigned is returned when neither the local store nor the chain
// registry knows the address.
var ErrRoleNotAssigned = errors.New("no role assigned to address")

// Registry is the read surface of the on-chain role registry.
type Registry interface {
	GetRecord(ctx context.Context, addr string) (chain.Record, error)
}

// Service reconciles role state between the connected wallet address, the
// on-chain registry, and the local user store. The store is a cache of the
// registry: on disagreement the chain wins and the local record is rewritten.
type Service struct {
	users    storage.UserStore
	registry Registry
	log      *logger.Logger
}

// New creates a role resolver. registry may be nil, in which case only the
// local store is consulted.
func New(users storage.UserStore, registry Registry, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("roles")
	}
	return &Service{users: users, registry: registry, log: log}
}

// Resolution is the outcome of a role lookup.
type Resolution struct {
	Address  string    `json:"address"`
	Role     user.Role `json:"role"`
	Employer string    `json:"employer,omitempty"`
	// Source records which of the three sources of truth decided the role:
	// "store", "chain", or "assigned".
	Source string `json:"source"`
}

// Resolve determines the role bound to a wallet address. Local store first;
// on a miss the chain registry is consulted and its answer cached locally.
func (s *Service) Resolve(ctx context.Context, addr string) (Resolution, error) {
	addr, err := normalizeAddress(addr)
	if err != nil {
		return Resolution{}, err
	}

	local, localErr := s.users.GetUserByAddress(ctx, addr)
	if localErr == nil && local.Role.Valid() {
		if s.registry == nil {
			return Resolution{Address: addr, Role: local.Role, Employer: local.Employer, Source: "store"}, nil
		}
		return s.reconcile(ctx, local)
	}

	if s.registry == nil {
		return Resolution{}, ErrRoleNotAssigned
	}

	record, err := s.registry.GetRecord(ctx, addr)
	if errors.Is(err, chain.ErrNotRegistered) {
		return Resolution{}, ErrRoleNotAssigned
	}
	if err != nil {
		return Resolution{}, fmt.Errorf("registry lookup for %s: %w", addr, err)
	}

	if err := s.persist(ctx, addr, record.Role, record.Employer); err != nil {
		// The lookup itself succeeded; a cache write failure should not block
		// the caller.
		s.log.WithError(err).WithField("address", addr).Warn("cache role locally failed")
	}
	return Resolution{Address: addr, Role: record.Role, Employer: record.Employer, Source: "chain"}, nil
}

// reconcile re-checks a locally known role against the registry. The chain
// answer wins; a registry miss leaves the local record in place since the
// local store also holds roles assigned before on-chain registration.
func (s *Service) reconcile(ctx context.Context, local user.User) (Resolution, error) {
	record, err := s.registry.GetRecord(ctx, local.Address)
	if errors.Is(err, chain.ErrNotRegistered) {
		return Resolution{Address: local.Address, Role: local.Role, Employer: local.Employer, Source: "store"}, nil
	}
	if err != nil {
		// Registry unreachable: the cached answer is better than failing the
		// whole flow.
		s.log.WithError(err).WithField("address", local.Address).Warn("registry unreachable, using cached role")
		return Resolution{Address: local.Address, Role: local.Role, Employer: local.Employer, Source: "store"}, nil
	}

	if record.Role == local.Role && record.Employer == local.Employer {
		return Resolution{Address: local.Address, Role: local.Role, Employer: local.Employer, Source: "store"}, nil
	}

	s.log.WithField("address", local.Address).
		WithField("local_role", string(local.Role)).
		WithField("chain_role", string(record.Role)).
		Warn("role conflict, chain wins")

	local.Role = record.Role
	local.Employer = record.Employer
	if _, err := s.users.UpdateUser(ctx, local); err != nil {
		s.log.WithError(err).WithField("address", local.Address).Warn("rewrite conflicting role failed")
	}
	return Resolution{Address: local.Address, Role: record.Role, Employer: record.Employer, Source: "chain"}, nil
}

// Assign records a role chosen by the user (the role-selection path for
// addresses the registry does not know yet). Employees must name an employer
// address distinct from their own.
func (s *Service) Assign(ctx context.Context, addr string, role user.Role, employer string) (Resolution, error) {
	addr, err := normalizeAddress(addr)
	if err != nil {
		return Resolution{}, err
	}
	if !role.Valid() {
		return Resolution{}, fmt.Errorf("invalid role %q", role)
	}

	switch role {
	case user.RoleEmployer:
		if strings.TrimSpace(employer) != "" {
			return Resolution{}, fmt.Errorf("employer role cannot name an employer address")
		}
		employer = ""
	case user.RoleEmployee:
		employer, err = normalizeAddress(employer)
		if err != nil {
			return Resolution{}, fmt.Errorf("employer address: %w", err)
		}
		if employer == addr {
			return Resolution{}, fmt.Errorf("employee cannot be their own employer")
		}
	}

	if err := s.persist(ctx, addr, role, employer); err != nil {
		return Resolution{}, err
	}

	s.log.WithField("address", addr).
		WithField("role", string(role)).
		Info("role assigned")
	return Resolution{Address: addr, Role: role, Employer: employer, Source: "assigned"}, nil
}

func (s *Service) persist(ctx context.Context, addr string, role user.Role, employer string) error {
	existing, err := s.users.GetUserByAddress(ctx, addr)
	if err != nil {
		_, err = s.users.CreateUser(ctx, user.User{Address: addr, Role: role, Employer: employer})
		return err
	}
	existing.Role = role
	existing.Employer = employer
	_, err = s.users.UpdateUser(ctx, existing)
	return err
}

func normalizeAddress(addr string) (string, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return "", fmt.Errorf("address is required")
	}
	if _, err := address.StringToUint160(addr); err != nil {
		return "", fmt.Errorf("invalid address %q: %w", addr, err)
	}
	return addr, nil
}
