package storage

import (
	"context"
	"errors"

	"github.com/chainwage/payroll_layer/internal/app/domain/roster"
	"github.com/chainwage/payroll_layer/internal/app/domain/user"
)

// ErrNotFound is wrapped by store implementations when a record is missing.
var ErrNotFound = errors.New("not found")

// UserStore persists wallet-bound user records. Lookups by address use the
// normalized (trimmed) base58 form.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	UpdateUser(ctx context.Context, u user.User) (user.User, error)
	GetUser(ctx context.Context, id string) (user.User, error)
	GetUserByAddress(ctx context.Context, address string) (user.User, error)
	UpdateUserNonce(ctx context.Context, id, nonce string) error
	ListUsers(ctx context.Context) ([]user.User, error)
	DeleteUser(ctx context.Context, id string) error
}

// RosterStore persists employee records and payout entries.
type RosterStore interface {
	CreateEmployee(ctx context.Context, emp roster.Employee) (roster.Employee, error)
	UpdateEmployee(ctx context.Context, emp roster.Employee) (roster.Employee, error)
	GetEmployee(ctx context.Context, id string) (roster.Employee, error)
	GetEmployeeByAddress(ctx context.Context, employer, address string) (roster.Employee, error)
	ListEmployees(ctx context.Context, employer string) ([]roster.Employee, error)
	DeleteEmployee(ctx context.Context, id string) error

	CreatePayout(ctx context.Context, p roster.Payout) (roster.Payout, error)
	UpdatePayout(ctx context.Context, p roster.Payout) (roster.Payout, error)
	GetPayout(ctx context.Context, id string) (roster.Payout, error)
	ListPayouts(ctx context.Context, employer string) ([]roster.Payout, error)
	ListPendingPayouts(ctx context.Context) ([]roster.Payout, error)
}

// SessionStore persists authenticated wallet sessions keyed by token hash.
type SessionStore interface {
	CreateSession(ctx context.Context, sess user.Session) (user.Session, error)
	GetSessionByTokenHash(ctx context.Context, tokenHash string) (user.Session, error)
	TouchSession(ctx context.Context, id string) error
	DeleteSession(ctx context.Context, tokenHash string) error
}
