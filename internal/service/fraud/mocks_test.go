package fraud

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/davidleathers/payment-fraud-backend/internal/domain/alert"
	"github.com/davidleathers/payment-fraud-backend/internal/domain/behavior"
	domainerrors "github.com/davidleathers/payment-fraud-backend/internal/domain/errors"
	"github.com/davidleathers/payment-fraud-backend/internal/domain/transaction"
	"github.com/davidleathers/payment-fraud-backend/internal/domain/user"
)

type mockUserStore struct {
	mock.Mock
}

func (m *mockUserStore) FindByUserID(ctx context.Context, userID string) (*user.User, error) {
	args := m.Called(ctx, userID)
	if u := args.Get(0); u != nil {
		return u.(*user.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserStore) FindByEmail(ctx context.Context, email string) (*user.User, error) {
	args := m.Called(ctx, email)
	if u := args.Get(0); u != nil {
		return u.(*user.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserStore) Save(ctx context.Context, u *user.User) error {
	return m.Called(ctx, u).Error(0)
}

func (m *mockUserStore) ApplyTrustDelta(ctx context.Context, userID string, delta float64, incrementFraud, incrementTotal bool) error {
	return m.Called(ctx, userID, delta, incrementFraud, incrementTotal).Error(0)
}

func (m *mockUserStore) LockAccount(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

type mockTransactionStore struct {
	mock.Mock
}

func (m *mockTransactionStore) Save(ctx context.Context, t *transaction.Transaction) error {
	return m.Called(ctx, t).Error(0)
}

func (m *mockTransactionStore) FindByTransactionID(ctx context.Context, transactionID string) (*transaction.Transaction, error) {
	args := m.Called(ctx, transactionID)
	if t := args.Get(0); t != nil {
		return t.(*transaction.Transaction), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockTransactionStore) FindByUserIDOrderByTimeDesc(ctx context.Context, userID string, limit int) ([]*transaction.Transaction, error) {
	args := m.Called(ctx, userID, limit)
	if txs := args.Get(0); txs != nil {
		return txs.([]*transaction.Transaction), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockTransactionStore) CountTransactionsSince(ctx context.Context, userID string, since time.Time) (int, error) {
	args := m.Called(ctx, userID, since)
	return args.Int(0), args.Error(1)
}

func (m *mockTransactionStore) FindDistinctDevicesByUserID(ctx context.Context, userID string) ([]string, error) {
	args := m.Called(ctx, userID)
	if devices := args.Get(0); devices != nil {
		return devices.([]string), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockTransactionStore) CountFraudulentTransactions(ctx context.Context, userID string) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

// memAlertStore keeps alerts keyed on transaction id, mirroring the
// upsert semantics of the real store.
type memAlertStore struct {
	mu     sync.Mutex
	alerts map[string]*alert.Alert
	saves  int
}

func newMemAlertStore() *memAlertStore {
	return &memAlertStore{alerts: make(map[string]*alert.Alert)}
}

func (m *memAlertStore) Save(ctx context.Context, a *alert.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts[a.TransactionID] = a
	m.saves++
	return nil
}

func (m *memAlertStore) Update(ctx context.Context, a *alert.Alert) error {
	return m.Save(ctx, a)
}

func (m *memAlertStore) FindByID(ctx context.Context, id uuid.UUID) (*alert.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.alerts {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, domainerrors.ErrAlertNotFound
}

func (m *memAlertStore) FindByUserID(ctx context.Context, userID string) ([]*alert.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*alert.Alert
	for _, a := range m.alerts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memAlertStore) FindUnreviewed(ctx context.Context) ([]*alert.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*alert.Alert
	for _, a := range m.alerts {
		if !a.Reviewed {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memAlertStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.alerts)
}

// stubProfiles returns a fixed profile snapshot.
type stubProfiles struct {
	profile *behavior.Profile
}

func (s *stubProfiles) GetOrCreate(ctx context.Context, userID string) (*behavior.Profile, error) {
	return s.profile, nil
}

// stubScheduler records scheduled user ids.
type stubScheduler struct {
	mu        sync.Mutex
	scheduled []string
}

func (s *stubScheduler) Schedule(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduled = append(s.scheduled, userID)
}

func (s *stubScheduler) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.scheduled)
}

// stubScorer returns a fixed probability, optionally after a delay.
type stubScorer struct {
	score float64
	err   error
	delay time.Duration

	mu    sync.Mutex
	calls int
}

func (s *stubScorer) Score(ctx context.Context, t *transaction.Transaction, p *behavior.Profile) (float64, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return 0.5, ctx.Err()
		}
	}
	return s.score, s.err
}

func (s *stubScorer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
