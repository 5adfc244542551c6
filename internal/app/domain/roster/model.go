// Package roster defines employer payroll rosters: employee records and the
// payout entries produced when their schedules come due.
package roster

import "time"

// Employee is a payroll roster entry owned by an employer address. Salary is
// expressed in integer base units of the payout asset to avoid float drift.
type Employee struct {
	ID       string `json:"id" db:"id"`
	Employer string `json:"employer" db:"employer"`
	Address  string `json:"address" db:"address"`
	Name     string `json:"name" db:"name"`
	Salary   int64  `json:"salary" db:"salary"`
	Decimals int    `json:"decimals" db:"decimals"`
	// Schedule is a standard five-field cron expression.
	Schedule  string    `json:"schedule" db:"schedule"`
	Active    bool      `json:"active" db:"active"`
	NextPayAt time.Time `json:"next_pay_at" db:"next_pay_at"`
	LastPayAt time.Time `json:"last_pay_at,omitempty" db:"last_pay_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// PayoutStatus tracks a payout entry through settlement.
type PayoutStatus string

const (
	PayoutPending   PayoutStatus = "pending"
	PayoutSubmitted PayoutStatus = "submitted"
	PayoutSettled   PayoutStatus = "settled"
	PayoutFailed    PayoutStatus = "failed"
)

// Payout is a single due payment recorded by the payroll runner. Settlement
// against the chain happens outside this service; TxID is filled in when the
// transfer is submitted.
type Payout struct {
	ID         string       `json:"id" db:"id"`
	EmployeeID string       `json:"employee_id" db:"employee_id"`
	Employer   string       `json:"employer" db:"employer"`
	Address    string       `json:"address" db:"address"`
	Amount     int64        `json:"amount" db:"amount"`
	Decimals   int          `json:"decimals" db:"decimals"`
	Status     PayoutStatus `json:"status" db:"status"`
	TxID       string       `json:"tx_id,omitempty" db:"tx_id"`
	DueAt      time.Time    `json:"due_at" db:"due_at"`
	CreatedAt  time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at" db:"updated_at"`
}
