package roster

import (
	"context"
	"testing"
	"time"

	"github.com/nspcc-dev/neo-go/pkg/crypto/keys"

	domain "github.com/chainwage/payroll_layer/internal/app/domain/roster"
	"github.com/chainwage/payroll_layer/internal/app/storage/memory"
)

func testAddress(t *testing.T) string {
	t.Helper()
	priv, err := keys.NewPrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return priv.Address()
}

func TestAddEmployee(t *testing.T) {
	svc := New(memory.New(), nil)
	employer := testAddress(t)
	addr := testAddress(t)

	emp, err := svc.AddEmployee(context.Background(), employer, addr, "Alice", 500_00000000, 8, "0 9 * * 1")
	if err != nil {
		t.Fatalf("add employee: %v", err)
	}
	if emp.ID == "" {
		t.Fatal("expected generated ID")
	}
	if !emp.Active {
		t.Fatal("new employees start active")
	}
	if emp.NextPayAt.IsZero() || !emp.NextPayAt.After(time.Now().UTC()) {
		t.Fatalf("expected future next pay, got %v", emp.NextPayAt)
	}

	// Same address on the same roster is rejected.
	if _, err := svc.AddEmployee(context.Background(), employer, addr, "Alice again", 1, 0, "0 9 * * 1"); err == nil {
		t.Fatal("expected duplicate address rejection")
	}
}

func TestAddEmployeeValidation(t *testing.T) {
	svc := New(memory.New(), nil)
	employer := testAddress(t)
	addr := testAddress(t)

	cases := []struct {
		name     string
		employer string
		addr     string
		empName  string
		salary   int64
		decimals int
		schedule string
	}{
		{"bad employer", "nope", addr, "A", 1, 0, "0 9 * * 1"},
		{"bad address", employer, "nope", "A", 1, 0, "0 9 * * 1"},
		{"self hire", employer, employer, "A", 1, 0, "0 9 * * 1"},
		{"empty name", employer, addr, "  ", 1, 0, "0 9 * * 1"},
		{"zero salary", employer, addr, "A", 0, 0, "0 9 * * 1"},
		{"negative salary", employer, addr, "A", -5, 0, "0 9 * * 1"},
		{"decimals out of range", employer, addr, "A", 1, 19, "0 9 * * 1"},
		{"bad schedule", employer, addr, "A", 1, 0, "whenever"},
		{"empty schedule", employer, addr, "A", 1, 0, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.AddEmployee(context.Background(), tc.employer, tc.addr, tc.empName, tc.salary, tc.decimals, tc.schedule); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestUpdateEmployee(t *testing.T) {
	svc := New(memory.New(), nil)
	employer := testAddress(t)
	emp, err := svc.AddEmployee(context.Background(), employer, testAddress(t), "Alice", 100, 0, "0 9 * * 1")
	if err != nil {
		t.Fatalf("add employee: %v", err)
	}

	name := "Alice B"
	salary := int64(200)
	updated, err := svc.UpdateEmployee(context.Background(), emp.ID, &name, &salary, nil)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != name || updated.Salary != salary {
		t.Fatalf("update not applied: %+v", updated)
	}
	if updated.Schedule != emp.Schedule {
		t.Fatal("schedule must be unchanged when nil")
	}

	bad := int64(-1)
	if _, err := svc.UpdateEmployee(context.Background(), emp.ID, nil, &bad, nil); err == nil {
		t.Fatal("expected salary validation error")
	}
}

func TestSetActiveAndRemove(t *testing.T) {
	store := memory.New()
	svc := New(store, nil)
	employer := testAddress(t)
	emp, err := svc.AddEmployee(context.Background(), employer, testAddress(t), "Alice", 100, 0, "0 9 * * 1")
	if err != nil {
		t.Fatalf("add employee: %v", err)
	}

	paused, err := svc.SetActive(context.Background(), emp.ID, false)
	if err != nil || paused.Active {
		t.Fatalf("expected paused employee, got %+v (%v)", paused, err)
	}

	if err := svc.RemoveEmployee(context.Background(), emp.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := svc.GetEmployee(context.Background(), emp.ID); err == nil {
		t.Fatal("expected missing employee after removal")
	}
}

func TestRecordDuePayouts(t *testing.T) {
	store := memory.New()
	svc := New(store, nil)
	employer := testAddress(t)
	now := time.Now().UTC()

	due, err := store.CreateEmployee(context.Background(), domain.Employee{
		Employer:  employer,
		Address:   testAddress(t),
		Name:      "Due",
		Salary:    1000,
		Schedule:  "0 9 * * 1",
		Active:    true,
		NextPayAt: now.Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("seed due employee: %v", err)
	}
	if _, err := store.CreateEmployee(context.Background(), domain.Employee{
		Employer:  employer,
		Address:   testAddress(t),
		Name:      "Not due",
		Salary:    1000,
		Schedule:  "0 9 * * 1",
		Active:    true,
		NextPayAt: now.Add(24 * time.Hour),
	}); err != nil {
		t.Fatalf("seed future employee: %v", err)
	}
	if _, err := store.CreateEmployee(context.Background(), domain.Employee{
		Employer:  employer,
		Address:   testAddress(t),
		Name:      "Paused",
		Salary:    1000,
		Schedule:  "0 9 * * 1",
		Active:    false,
		NextPayAt: now.Add(-time.Hour),
	}); err != nil {
		t.Fatalf("seed paused employee: %v", err)
	}

	created, err := svc.RecordDuePayouts(context.Background(), now)
	if err != nil {
		t.Fatalf("record due payouts: %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("expected 1 payout, got %d", len(created))
	}
	payout := created[0]
	if payout.EmployeeID != due.ID || payout.Amount != 1000 || payout.Status != domain.PayoutPending {
		t.Fatalf("unexpected payout %+v", payout)
	}

	// The schedule advanced; a second scan records nothing.
	advanced, _ := store.GetEmployee(context.Background(), due.ID)
	if !advanced.NextPayAt.After(now) {
		t.Fatalf("next pay not advanced: %v", advanced.NextPayAt)
	}
	if advanced.LastPayAt.IsZero() {
		t.Fatal("last pay not recorded")
	}

	again, err := svc.RecordDuePayouts(context.Background(), now)
	if err != nil {
		t.Fatalf("second scan: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("expected idempotent scan, got %d payouts", len(again))
	}
}

func TestRunnerLifecycle(t *testing.T) {
	svc := New(memory.New(), nil)
	runner := NewRunner(svc, nil).WithInterval(10 * time.Millisecond)

	ctx := context.Background()
	if err := runner.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	// Second start is a no-op.
	if err := runner.Start(ctx); err != nil {
		t.Fatalf("restart: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	if err := runner.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := runner.Stop(ctx); err != nil {
		t.Fatalf("re-stop: %v", err)
	}
}
