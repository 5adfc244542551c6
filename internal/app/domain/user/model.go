// Package user defines wallet-bound user records and their payroll roles.
package user

import "time"

// Role is the payroll role bound to a wallet address.
type Role string

const (
	// RoleUnassigned marks an address with no recorded role.
	RoleUnassigned Role = ""
	// RoleEmployer marks an address that manages a payroll roster.
	RoleEmployer Role = "employer"
	// RoleEmployee marks an address that is paid from an employer's roster.
	RoleEmployee Role = "employee"
)

// Valid reports whether the role is one of the assignable values.
func (r Role) Valid() bool {
	return r == RoleEmployer || r == RoleEmployee
}

// User is a wallet-bound identity. Address is stored normalized and is the
// primary lookup key; Employer is set only for employees and holds the
// employer's wallet address.
type User struct {
	ID        string            `json:"id" db:"id"`
	Address   string            `json:"address" db:"address"`
	Role      Role              `json:"role" db:"role"`
	Employer  string            `json:"employer,omitempty" db:"employer"`
	Nonce     string            `json:"-" db:"nonce"`
	Metadata  map[string]string `json:"metadata,omitempty" db:"-"`
	CreatedAt time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt time.Time         `json:"updated_at" db:"updated_at"`
}

// Session is an authenticated wallet session. Tokens are stored hashed.
type Session struct {
	ID           string    `json:"id" db:"id"`
	UserID       string    `json:"user_id" db:"user_id"`
	TokenHash    string    `json:"-" db:"token_hash"`
	ExpiresAt    time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	LastActiveAt time.Time `json:"last_active_at" db:"last_active_at"`
}
