package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/chainwage/payroll_layer/internal/app/domain/roster"
	"github.com/chainwage/payroll_layer/internal/app/domain/user"
	"github.com/chainwage/payroll_layer/internal/app/storage"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	store := New(sqlx.NewDb(db, "sqlmock"))
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		_ = store.Close()
	})
	return store, mock
}

func TestCreateUser(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO payroll_users`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	created, err := store.CreateUser(context.Background(), user.User{
		Address: "NAddr",
		Role:    user.RoleEmployer,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected generated UUID")
	}
	if created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
		t.Fatal("expected timestamps")
	}
}

func TestGetUserByAddress(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{"id", "address", "role", "employer", "nonce", "metadata", "created_at", "updated_at"}).
		AddRow("u1", "NAddr", "employee", "NBoss", "n", []byte(`{"plan":"pro"}`), now, now)
	mock.ExpectQuery(`SELECT .+ FROM payroll_users\s+WHERE address =`).
		WithArgs("NAddr").
		WillReturnRows(rows)

	u, err := store.GetUserByAddress(context.Background(), "NAddr")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if u.Role != user.RoleEmployee || u.Employer != "NBoss" {
		t.Fatalf("unexpected user %+v", u)
	}
	if u.Metadata["plan"] != "pro" {
		t.Fatalf("metadata not decoded: %+v", u.Metadata)
	}
}

func TestGetUserNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT .+ FROM payroll_users\s+WHERE id =`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.GetUser(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateUserNonceMissing(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE payroll_users SET nonce`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.UpdateUserNonce(context.Background(), "missing", "n")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateEmployee(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO payroll_employees`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	emp, err := store.CreateEmployee(context.Background(), roster.Employee{
		Employer: "NBoss",
		Address:  "NWorker",
		Name:     "Alice",
		Salary:   1000,
		Schedule: "0 9 * * 1",
		Active:   true,
	})
	if err != nil {
		t.Fatalf("create employee: %v", err)
	}
	if emp.ID == "" {
		t.Fatal("expected generated UUID")
	}
}

func TestGetEmployee(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{
		"id", "employer", "address", "name", "salary", "decimals", "schedule",
		"active", "next_pay_at", "last_pay_at", "created_at", "updated_at",
	}).AddRow("e1", "NBoss", "NWorker", "Alice", int64(1000), 8, "0 9 * * 1", true, now, now, now, now)
	mock.ExpectQuery(`SELECT .+ FROM payroll_employees\s+WHERE id =`).
		WithArgs("e1").
		WillReturnRows(rows)

	emp, err := store.GetEmployee(context.Background(), "e1")
	if err != nil {
		t.Fatalf("get employee: %v", err)
	}
	if emp.Name != "Alice" || emp.Salary != 1000 || !emp.Active {
		t.Fatalf("unexpected employee %+v", emp)
	}
}

func TestDeleteEmployeeNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`DELETE FROM payroll_employees`).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.DeleteEmployee(context.Background(), "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListPendingPayouts(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{
		"id", "employee_id", "employer", "address", "amount", "decimals",
		"status", "tx_id", "due_at", "created_at", "updated_at",
	}).AddRow("p1", "e1", "NBoss", "NWorker", int64(1000), 8, "pending", "", now, now, now)
	mock.ExpectQuery(`SELECT .+ FROM payroll_payouts\s+WHERE status =`).
		WithArgs("pending").
		WillReturnRows(rows)

	payouts, err := store.ListPendingPayouts(context.Background())
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(payouts) != 1 || payouts[0].Status != roster.PayoutPending {
		t.Fatalf("unexpected payouts %+v", payouts)
	}
}

func TestSessionLookupExpired(t *testing.T) {
	store, mock := newMockStore(t)

	// The query filters out expired rows; an empty result maps to ErrNotFound.
	mock.ExpectQuery(`SELECT .+ FROM payroll_sessions\s+WHERE token_hash =`).
		WithArgs("stale").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.GetSessionByTokenHash(context.Background(), "stale")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateSession(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO payroll_sessions`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	sess, err := store.CreateSession(context.Background(), user.Session{
		UserID:    "u1",
		TokenHash: "h1",
		ExpiresAt: time.Now().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if sess.ID == "" || sess.LastActiveAt.IsZero() {
		t.Fatalf("unexpected session %+v", sess)
	}
}
