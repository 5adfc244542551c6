package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chainwage/payroll_layer/internal/app/domain/roster"
	"github.com/chainwage/payroll_layer/internal/app/domain/user"
	"github.com/chainwage/payroll_layer/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local development.
type Store struct {
	mu              sync.RWMutex
	nextID          int64
	users           map[string]user.User
	usersByAddress  map[string]string
	employees       map[string]roster.Employee
	payouts         map[string]roster.Payout
	sessions        map[string]user.Session
	sessionsByToken map[string]string
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.RosterStore = (*Store)(nil)
var _ storage.SessionStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:          1,
		users:           make(map[string]user.User),
		usersByAddress:  make(map[string]string),
		employees:       make(map[string]roster.Employee),
		payouts:         make(map[string]roster.Payout),
		sessions:        make(map[string]user.Session),
		sessionsByToken: make(map[string]string),
	}
}

func (s *Store) nextIDLocked() string {
	id := s.nextID
	s.nextID++
	return fmt.Sprintf("%d", id)
}

func addressKey(address string) string {
	return strings.TrimSpace(address)
}

// UserStore implementation ----------------------------------------------------

func (s *Store) CreateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.ID == "" {
		u.ID = s.nextIDLocked()
	} else if _, exists := s.users[u.ID]; exists {
		return user.User{}, fmt.Errorf("user %s already exists", u.ID)
	}

	u.Address = addressKey(u.Address)
	if u.Address == "" {
		return user.User{}, fmt.Errorf("address is required")
	}
	if existing, exists := s.usersByAddress[u.Address]; exists {
		return user.User{}, fmt.Errorf("address %s already bound to user %s", u.Address, existing)
	}

	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	u.Metadata = cloneMap(u.Metadata)

	s.users[u.ID] = u
	s.usersByAddress[u.Address] = u.ID
	return cloneUser(u), nil
}

func (s *Store) UpdateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.users[u.ID]
	if !ok {
		return user.User{}, fmt.Errorf("user %s: %w", u.ID, storage.ErrNotFound)
	}

	u.Address = addressKey(u.Address)
	if u.Address != original.Address {
		if existing, exists := s.usersByAddress[u.Address]; exists && existing != u.ID {
			return user.User{}, fmt.Errorf("address %s already bound to user %s", u.Address, existing)
		}
		delete(s.usersByAddress, original.Address)
		s.usersByAddress[u.Address] = u.ID
	}

	u.CreatedAt = original.CreatedAt
	u.UpdatedAt = time.Now().UTC()
	u.Metadata = cloneMap(u.Metadata)

	s.users[u.ID] = u
	return cloneUser(u), nil
}

func (s *Store) GetUser(_ context.Context, id string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, fmt.Errorf("user %s: %w", id, storage.ErrNotFound)
	}
	return cloneUser(u), nil
}

func (s *Store) GetUserByAddress(_ context.Context, address string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if id, ok := s.usersByAddress[addressKey(address)]; ok {
		return cloneUser(s.users[id]), nil
	}
	return user.User{}, fmt.Errorf("user for address %s: %w", address, storage.ErrNotFound)
}

func (s *Store) UpdateUserNonce(_ context.Context, id, nonce string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return fmt.Errorf("user %s: %w", id, storage.ErrNotFound)
	}
	u.Nonce = nonce
	u.UpdatedAt = time.Now().UTC()
	s.users[id] = u
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]user.User, 0, len(s.users))
	for _, u := range s.users {
		result = append(result, cloneUser(u))
	}
	return result, nil
}

func (s *Store) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return fmt.Errorf("user %s: %w", id, storage.ErrNotFound)
	}
	delete(s.users, id)
	delete(s.usersByAddress, u.Address)
	return nil
}

// RosterStore implementation --------------------------------------------------

func (s *Store) CreateEmployee(_ context.Context, emp roster.Employee) (roster.Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if emp.ID == "" {
		emp.ID = s.nextIDLocked()
	} else if _, exists := s.employees[emp.ID]; exists {
		return roster.Employee{}, fmt.Errorf("employee %s already exists", emp.ID)
	}

	emp.Employer = addressKey(emp.Employer)
	emp.Address = addressKey(emp.Address)
	for _, other := range s.employees {
		if other.Employer == emp.Employer && other.Address == emp.Address {
			return roster.Employee{}, fmt.Errorf("address %s already on roster of %s", emp.Address, emp.Employer)
		}
	}

	now := time.Now().UTC()
	emp.CreatedAt = now
	emp.UpdatedAt = now

	s.employees[emp.ID] = emp
	return emp, nil
}

func (s *Store) UpdateEmployee(_ context.Context, emp roster.Employee) (roster.Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.employees[emp.ID]
	if !ok {
		return roster.Employee{}, fmt.Errorf("employee %s: %w", emp.ID, storage.ErrNotFound)
	}

	emp.Employer = addressKey(emp.Employer)
	emp.Address = addressKey(emp.Address)
	for _, other := range s.employees {
		if other.ID != emp.ID && other.Employer == emp.Employer && other.Address == emp.Address {
			return roster.Employee{}, fmt.Errorf("address %s already on roster of %s", emp.Address, emp.Employer)
		}
	}

	emp.CreatedAt = original.CreatedAt
	emp.UpdatedAt = time.Now().UTC()

	s.employees[emp.ID] = emp
	return emp, nil
}

func (s *Store) GetEmployee(_ context.Context, id string) (roster.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	emp, ok := s.employees[id]
	if !ok {
		return roster.Employee{}, fmt.Errorf("employee %s: %w", id, storage.ErrNotFound)
	}
	return emp, nil
}

func (s *Store) GetEmployeeByAddress(_ context.Context, employer, address string) (roster.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	employer = addressKey(employer)
	address = addressKey(address)
	for _, emp := range s.employees {
		if emp.Employer == employer && emp.Address == address {
			return emp, nil
		}
	}
	return roster.Employee{}, fmt.Errorf("employee %s on roster of %s: %w", address, employer, storage.ErrNotFound)
}

func (s *Store) ListEmployees(_ context.Context, employer string) ([]roster.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	employer = addressKey(employer)
	result := make([]roster.Employee, 0)
	for _, emp := range s.employees {
		if employer == "" || emp.Employer == employer {
			result = append(result, emp)
		}
	}
	return result, nil
}

func (s *Store) DeleteEmployee(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.employees[id]; !ok {
		return fmt.Errorf("employee %s: %w", id, storage.ErrNotFound)
	}
	delete(s.employees, id)
	return nil
}

func (s *Store) CreatePayout(_ context.Context, p roster.Payout) (roster.Payout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = s.nextIDLocked()
	} else if _, exists := s.payouts[p.ID]; exists {
		return roster.Payout{}, fmt.Errorf("payout %s already exists", p.ID)
	}

	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	s.payouts[p.ID] = p
	return p, nil
}

func (s *Store) UpdatePayout(_ context.Context, p roster.Payout) (roster.Payout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.payouts[p.ID]
	if !ok {
		return roster.Payout{}, fmt.Errorf("payout %s: %w", p.ID, storage.ErrNotFound)
	}

	p.CreatedAt = original.CreatedAt
	p.UpdatedAt = time.Now().UTC()

	s.payouts[p.ID] = p
	return p, nil
}

func (s *Store) GetPayout(_ context.Context, id string) (roster.Payout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.payouts[id]
	if !ok {
		return roster.Payout{}, fmt.Errorf("payout %s: %w", id, storage.ErrNotFound)
	}
	return p, nil
}

func (s *Store) ListPayouts(_ context.Context, employer string) ([]roster.Payout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	employer = addressKey(employer)
	result := make([]roster.Payout, 0)
	for _, p := range s.payouts {
		if employer == "" || p.Employer == employer {
			result = append(result, p)
		}
	}
	return result, nil
}

func (s *Store) ListPendingPayouts(_ context.Context) ([]roster.Payout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]roster.Payout, 0)
	for _, p := range s.payouts {
		if p.Status == roster.PayoutPending {
			result = append(result, p)
		}
	}
	return result, nil
}

// SessionStore implementation -------------------------------------------------

func (s *Store) CreateSession(_ context.Context, sess user.Session) (user.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess.ID == "" {
		sess.ID = s.nextIDLocked()
	}
	if sess.TokenHash == "" {
		return user.Session{}, fmt.Errorf("token hash is required")
	}

	now := time.Now().UTC()
	sess.CreatedAt = now
	sess.LastActiveAt = now

	s.sessions[sess.ID] = sess
	s.sessionsByToken[sess.TokenHash] = sess.ID
	return sess, nil
}

func (s *Store) GetSessionByTokenHash(_ context.Context, tokenHash string) (user.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.sessionsByToken[tokenHash]
	if !ok {
		return user.Session{}, fmt.Errorf("session: %w", storage.ErrNotFound)
	}
	sess := s.sessions[id]
	if !sess.ExpiresAt.IsZero() && time.Now().After(sess.ExpiresAt) {
		return user.Session{}, fmt.Errorf("session expired: %w", storage.ErrNotFound)
	}
	return sess, nil
}

func (s *Store) TouchSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("session %s: %w", id, storage.ErrNotFound)
	}
	sess.LastActiveAt = time.Now().UTC()
	s.sessions[id] = sess
	return nil
}

func (s *Store) DeleteSession(_ context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.sessionsByToken[tokenHash]
	if !ok {
		return nil
	}
	delete(s.sessionsByToken, tokenHash)
	delete(s.sessions, id)
	return nil
}

// Helpers ----------------------------------------------------------------------

func cloneMap(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func cloneUser(u user.User) user.User {
	u.Metadata = cloneMap(u.Metadata)
	return u
}
