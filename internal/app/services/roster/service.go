// Package roster manages employer payrolls: employee records, their pay
// schedules, and the payout entries produced when schedules come due.
package roster

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/robfig/cron/v3"

	"github.com/chainwage/payroll_layer/internal/app/domain/roster"
	"github.com/chainwage/payroll_layer/internal/app/storage"
	"github.com/chainwage/payroll_layer/pkg/logger"
)

// Service coordinates employer rosters.
type Service struct {
	store storage.RosterStore
	log   *logger.Logger
}

// New creates a configured roster service.
func New(store storage.RosterStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("roster")
	}
	return &Service{store: store, log: log}
}

// AddEmployee validates and records a new roster entry for an employer.
func (s *Service) AddEmployee(ctx context.Context, employer, addr, name string, salary int64, decimals int, schedule string) (roster.Employee, error) {
	employer, err := normalizeAddress(employer)
	if err != nil {
		return roster.Employee{}, fmt.Errorf("employer: %w", err)
	}
	addr, err = normalizeAddress(addr)
	if err != nil {
		return roster.Employee{}, fmt.Errorf("employee: %w", err)
	}
	if addr == employer {
		return roster.Employee{}, fmt.Errorf("employer cannot add themselves to the roster")
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return roster.Employee{}, fmt.Errorf("name is required")
	}
	if salary <= 0 {
		return roster.Employee{}, fmt.Errorf("salary must be positive")
	}
	if decimals < 0 || decimals > 18 {
		return roster.Employee{}, fmt.Errorf("decimals out of range")
	}

	sched, err := parseSchedule(schedule)
	if err != nil {
		return roster.Employee{}, err
	}

	if _, err := s.store.GetEmployeeByAddress(ctx, employer, addr); err == nil {
		return roster.Employee{}, fmt.Errorf("address %s already on the roster", addr)
	}

	emp := roster.Employee{
		Employer:  employer,
		Address:   addr,
		Name:      name,
		Salary:    salary,
		Decimals:  decimals,
		Schedule:  strings.TrimSpace(schedule),
		Active:    true,
		NextPayAt: sched.Next(time.Now().UTC()),
	}
	emp, err = s.store.CreateEmployee(ctx, emp)
	if err != nil {
		return roster.Employee{}, err
	}
	s.log.WithField("employee_id", emp.ID).
		WithField("employer", employer).
		Info("employee added to roster")
	return emp, nil
}

// UpdateEmployee applies modifications to a roster entry. Nil fields are left
// unchanged.
func (s *Service) UpdateEmployee(ctx context.Context, id string, name *string, salary *int64, schedule *string) (roster.Employee, error) {
	emp, err := s.store.GetEmployee(ctx, id)
	if err != nil {
		return roster.Employee{}, err
	}

	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return roster.Employee{}, fmt.Errorf("name cannot be empty")
		}
		emp.Name = trimmed
	}
	if salary != nil {
		if *salary <= 0 {
			return roster.Employee{}, fmt.Errorf("salary must be positive")
		}
		emp.Salary = *salary
	}
	if schedule != nil {
		sched, err := parseSchedule(*schedule)
		if err != nil {
			return roster.Employee{}, err
		}
		emp.Schedule = strings.TrimSpace(*schedule)
		emp.NextPayAt = sched.Next(time.Now().UTC())
	}

	emp, err = s.store.UpdateEmployee(ctx, emp)
	if err != nil {
		return roster.Employee{}, err
	}
	s.log.WithField("employee_id", emp.ID).
		WithField("employer", emp.Employer).
		Info("employee updated")
	return emp, nil
}

// SetActive toggles an employee's active flag.
func (s *Service) SetActive(ctx context.Context, id string, active bool) (roster.Employee, error) {
	emp, err := s.store.GetEmployee(ctx, id)
	if err != nil {
		return roster.Employee{}, err
	}
	if emp.Active == active {
		return emp, nil
	}
	emp.Active = active
	emp, err = s.store.UpdateEmployee(ctx, emp)
	if err != nil {
		return roster.Employee{}, err
	}
	s.log.WithField("employee_id", emp.ID).
		WithField("active", active).
		Info("employee state changed")
	return emp, nil
}

// RemoveEmployee deletes a roster entry.
func (s *Service) RemoveEmployee(ctx context.Context, id string) error {
	emp, err := s.store.GetEmployee(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteEmployee(ctx, id); err != nil {
		return err
	}
	s.log.WithField("employee_id", id).
		WithField("employer", emp.Employer).
		Info("employee removed from roster")
	return nil
}

// GetEmployee fetches a roster entry by identifier.
func (s *Service) GetEmployee(ctx context.Context, id string) (roster.Employee, error) {
	return s.store.GetEmployee(ctx, id)
}

// ListEmployees lists the roster of an employer.
func (s *Service) ListEmployees(ctx context.Context, employer string) ([]roster.Employee, error) {
	employer, err := normalizeAddress(employer)
	if err != nil {
		return nil, fmt.Errorf("employer: %w", err)
	}
	return s.store.ListEmployees(ctx, employer)
}

// ListPayouts lists recorded payouts for an employer.
func (s *Service) ListPayouts(ctx context.Context, employer string) ([]roster.Payout, error) {
	employer, err := normalizeAddress(employer)
	if err != nil {
		return nil, fmt.Errorf("employer: %w", err)
	}
	return s.store.ListPayouts(ctx, employer)
}

// RecordDuePayouts scans active employees whose schedule has come due, records
// a pending payout for each, and advances their next pay timestamp. Returns
// the payouts created.
func (s *Service) RecordDuePayouts(ctx context.Context, now time.Time) ([]roster.Payout, error) {
	employees, err := s.store.ListEmployees(ctx, "")
	if err != nil {
		return nil, err
	}

	now = now.UTC()
	var created []roster.Payout
	for _, emp := range employees {
		if !emp.Active || emp.NextPayAt.IsZero() || emp.NextPayAt.After(now) {
			continue
		}

		sched, err := parseSchedule(emp.Schedule)
		if err != nil {
			s.log.WithError(err).WithField("employee_id", emp.ID).Error("stored schedule no longer parses")
			continue
		}

		payout := roster.Payout{
			EmployeeID: emp.ID,
			Employer:   emp.Employer,
			Address:    emp.Address,
			Amount:     emp.Salary,
			Decimals:   emp.Decimals,
			Status:     roster.PayoutPending,
			DueAt:      emp.NextPayAt,
		}
		payout, err = s.store.CreatePayout(ctx, payout)
		if err != nil {
			s.log.WithError(err).WithField("employee_id", emp.ID).Error("record payout failed")
			continue
		}

		emp.LastPayAt = emp.NextPayAt
		emp.NextPayAt = sched.Next(now)
		if _, err := s.store.UpdateEmployee(ctx, emp); err != nil {
			s.log.WithError(err).WithField("employee_id", emp.ID).Error("advance pay schedule failed")
			continue
		}
		created = append(created, payout)
	}
	return created, nil
}

func parseSchedule(schedule string) (cron.Schedule, error) {
	schedule = strings.TrimSpace(schedule)
	if schedule == "" {
		return nil, fmt.Errorf("schedule is required")
	}
	sched, err := cron.ParseStandard(schedule)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}
	return sched, nil
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
