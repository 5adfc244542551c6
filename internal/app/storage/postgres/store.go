// Package postgres implements the storage interfaces backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/chainwage/payroll_layer/internal/app/domain/roster"
	"github.com/chainwage/payroll_layer/internal/app/domain/user"
	"github.com/chainwage/payroll_layer/internal/app/storage"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sqlx.DB
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.RosterStore = (*Store)(nil)
var _ storage.SessionStore = (*Store)(nil)

// New wraps an existing database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Open connects to the database and verifies the connection.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return New(db), nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the handle for migrations.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

func mapErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	return err
}

// --- UserStore ---------------------------------------------------------------

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	metadataJSON, err := json.Marshal(u.Metadata)
	if err != nil {
		return user.User{}, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO payroll_users (id, address, role, employer, nonce, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, u.ID, u.Address, string(u.Role), u.Employer, u.Nonce, metadataJSON, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return user.User{}, err
	}
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, u user.User) (user.User, error) {
	existing, err := s.GetUser(ctx, u.ID)
	if err != nil {
		return user.User{}, err
	}

	u.CreatedAt = existing.CreatedAt
	u.UpdatedAt = time.Now().UTC()

	metadataJSON, err := json.Marshal(u.Metadata)
	if err != nil {
		return user.User{}, err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE payroll_users
		SET address = $2, role = $3, employer = $4, nonce = $5, metadata = $6, updated_at = $7
		WHERE id = $1
	`, u.ID, u.Address, string(u.Role), u.Employer, u.Nonce, metadataJSON, u.UpdatedAt)
	if err != nil {
		return user.User{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return user.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (user.User, error) {
	return s.getUser(ctx, `WHERE id = $1`, id)
}

func (s *Store) GetUserByAddress(ctx context.Context, address string) (user.User, error) {
	return s.getUser(ctx, `WHERE address = $1`, address)
}

func (s *Store) getUser(ctx context.Context, where string, arg interface{}) (user.User, error) {
	row := s.db.QueryRowxContext(ctx, `
		SELECT id, address, role, employer, nonce, metadata, created_at, updated_at
		FROM payroll_users
	`+where, arg)

	var (
		u           user.User
		role        string
		metadataRaw []byte
	)
	if err := row.Scan(&u.ID, &u.Address, &role, &u.Employer, &u.Nonce, &metadataRaw, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return user.User{}, mapErr(err)
	}
	u.Role = user.Role(role)
	if len(metadataRaw) > 0 {
		_ = json.Unmarshal(metadataRaw, &u.Metadata)
	}
	return u, nil
}

func (s *Store) UpdateUserNonce(ctx context.Context, id, nonce string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE payroll_users SET nonce = $2, updated_at = $3 WHERE id = $1
	`, id, nonce, time.Now().UTC())
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]user.User, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT id, address, role, employer, nonce, metadata, created_at, updated_at
		FROM payroll_users
		ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []user.User
	for rows.Next() {
		var (
			u           user.User
			role        string
			metadataRaw []byte
		)
		if err := rows.Scan(&u.ID, &u.Address, &role, &u.Employer, &u.Nonce, &metadataRaw, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		u.Role = user.Role(role)
		if len(metadataRaw) > 0 {
			_ = json.Unmarshal(metadataRaw, &u.Metadata)
		}
		result = append(result, u)
	}
	return result, rows.Err()
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM payroll_users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// --- RosterStore -------------------------------------------------------------

func (s *Store) CreateEmployee(ctx context.Context, emp roster.Employee) (roster.Employee, error) {
	if emp.ID == "" {
		emp.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	emp.CreatedAt = now
	emp.UpdatedAt = now

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO payroll_employees
			(id, employer, address, name, salary, decimals, schedule, active, next_pay_at, last_pay_at, created_at, updated_at)
		VALUES
			(:id, :employer, :address, :name, :salary, :decimals, :schedule, :active, :next_pay_at, :last_pay_at, :created_at, :updated_at)
	`, emp)
	if err != nil {
		return roster.Employee{}, err
	}
	return emp, nil
}

func (s *Store) UpdateEmployee(ctx context.Context, emp roster.Employee) (roster.Employee, error) {
	existing, err := s.GetEmployee(ctx, emp.ID)
	if err != nil {
		return roster.Employee{}, err
	}

	emp.CreatedAt = existing.CreatedAt
	emp.UpdatedAt = time.Now().UTC()

	result, err := s.db.NamedExecContext(ctx, `
		UPDATE payroll_employees
		SET employer = :employer, address = :address, name = :name, salary = :salary,
			decimals = :decimals, schedule = :schedule, active = :active,
			next_pay_at = :next_pay_at, last_pay_at = :last_pay_at, updated_at = :updated_at
		WHERE id = :id
	`, emp)
	if err != nil {
		return roster.Employee{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return roster.Employee{}, storage.ErrNotFound
	}
	return emp, nil
}

func (s *Store) GetEmployee(ctx context.Context, id string) (roster.Employee, error) {
	var emp roster.Employee
	err := s.db.GetContext(ctx, &emp, `
		SELECT id, employer, address, name, salary, decimals, schedule, active,
			next_pay_at, last_pay_at, created_at, updated_at
		FROM payroll_employees
		WHERE id = $1
	`, id)
	if err != nil {
		return roster.Employee{}, mapErr(err)
	}
	return emp, nil
}

func (s *Store) GetEmployeeByAddress(ctx context.Context, employer, address string) (roster.Employee, error) {
	var emp roster.Employee
	err := s.db.GetContext(ctx, &emp, `
		SELECT id, employer, address, name, salary, decimals, schedule, active,
			next_pay_at, last_pay_at, created_at, updated_at
		FROM payroll_employees
		WHERE employer = $1 AND address = $2
	`, employer, address)
	if err != nil {
		return roster.Employee{}, mapErr(err)
	}
	return emp, nil
}

func (s *Store) ListEmployees(ctx context.Context, employer string) ([]roster.Employee, error) {
	query := `
		SELECT id, employer, address, name, salary, decimals, schedule, active,
			next_pay_at, last_pay_at, created_at, updated_at
		FROM payroll_employees
	`
	var (
		result []roster.Employee
		err    error
	)
	if employer == "" {
		err = s.db.SelectContext(ctx, &result, query+`ORDER BY created_at`)
	} else {
		err = s.db.SelectContext(ctx, &result, query+`WHERE employer = $1 ORDER BY created_at`, employer)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) DeleteEmployee(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM payroll_employees WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) CreatePayout(ctx context.Context, p roster.Payout) (roster.Payout, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO payroll_payouts
			(id, employee_id, employer, address, amount, decimals, status, tx_id, due_at, created_at, updated_at)
		VALUES
			(:id, :employee_id, :employer, :address, :amount, :decimals, :status, :tx_id, :due_at, :created_at, :updated_at)
	`, p)
	if err != nil {
		return roster.Payout{}, err
	}
	return p, nil
}

func (s *Store) UpdatePayout(ctx context.Context, p roster.Payout) (roster.Payout, error) {
	existing, err := s.GetPayout(ctx, p.ID)
	if err != nil {
		return roster.Payout{}, err
	}

	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = time.Now().UTC()

	result, err := s.db.NamedExecContext(ctx, `
		UPDATE payroll_payouts
		SET status = :status, tx_id = :tx_id, updated_at = :updated_at
		WHERE id = :id
	`, p)
	if err != nil {
		return roster.Payout{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return roster.Payout{}, storage.ErrNotFound
	}
	return p, nil
}

func (s *Store) GetPayout(ctx context.Context, id string) (roster.Payout, error) {
	var p roster.Payout
	err := s.db.GetContext(ctx, &p, `
		SELECT id, employee_id, employer, address, amount, decimals, status, tx_id,
			due_at, created_at, updated_at
		FROM payroll_payouts
		WHERE id = $1
	`, id)
	if err != nil {
		return roster.Payout{}, mapErr(err)
	}
	return p, nil
}

func (s *Store) ListPayouts(ctx context.Context, employer string) ([]roster.Payout, error) {
	query := `
		SELECT id, employee_id, employer, address, amount, decimals, status, tx_id,
			due_at, created_at, updated_at
		FROM payroll_payouts
	`
	var (
		result []roster.Payout
		err    error
	)
	if employer == "" {
		err = s.db.SelectContext(ctx, &result, query+`ORDER BY due_at`)
	} else {
		err = s.db.SelectContext(ctx, &result, query+`WHERE employer = $1 ORDER BY due_at`, employer)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) ListPendingPayouts(ctx context.Context) ([]roster.Payout, error) {
	var result []roster.Payout
	err := s.db.SelectContext(ctx, &result, `
		SELECT id, employee_id, employer, address, amount, decimals, status, tx_id,
			due_at, created_at, updated_at
		FROM payroll_payouts
		WHERE status = $1
		ORDER BY due_at
	`, string(roster.PayoutPending))
	if err != nil {
		return nil, err
	}
	return result, nil
}

// --- SessionStore ------------------------------------------------------------

func (s *Store) CreateSession(ctx context.Context, sess user.Session) (user.Session, error) {
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	sess.CreatedAt = now
	sess.LastActiveAt = now

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO payroll_sessions (id, user_id, token_hash, expires_at, created_at, last_active_at)
		VALUES (:id, :user_id, :token_hash, :expires_at, :created_at, :last_active_at)
	`, sess)
	if err != nil {
		return user.Session{}, err
	}
	return sess, nil
}

func (s *Store) GetSessionByTokenHash(ctx context.Context, tokenHash string) (user.Session, error) {
	var sess user.Session
	err := s.db.GetContext(ctx, &sess, `
		SELECT id, user_id, token_hash, expires_at, created_at, last_active_at
		FROM payroll_sessions
		WHERE token_hash = $1 AND expires_at > NOW()
	`, tokenHash)
	if err != nil {
		return user.Session{}, mapErr(err)
	}
	return sess, nil
}

func (s *Store) TouchSession(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE payroll_sessions SET last_active_at = $2 WHERE id = $1
	`, id, time.Now().UTC())
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM payroll_sessions WHERE token_hash = $1`, tokenHash)
	return err
}
