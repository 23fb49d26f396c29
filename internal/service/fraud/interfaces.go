package fraud

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/davidleathers/payment-fraud-backend/internal/domain/alert"
	"github.com/davidleathers/payment-fraud-backend/internal/domain/behavior"
	"github.com/davidleathers/payment-fraud-backend/internal/domain/transaction"
	"github.com/davidleathers/payment-fraud-backend/internal/domain/user"
)

// UserStore is the slice of the store the coordinator needs for users.
// Trust updates and locking are single-statement atomic per user.
type UserStore interface {
	FindByUserID(ctx context.Context, userID string) (*user.User, error)
	FindByEmail(ctx context.Context, email string) (*user.User, error)
	Save(ctx context.Context, u *user.User) error
	ApplyTrustDelta(ctx context.Context, userID string, delta float64, incrementFraud, incrementTotal bool) error
	LockAccount(ctx context.Context, userID string) error
}

// TransactionStore is the slice of the store the coordinator needs for
// transactions.
type TransactionStore interface {
	Save(ctx context.Context, t *transaction.Transaction) error
	FindByTransactionID(ctx context.Context, transactionID string) (*transaction.Transaction, error)
	FindByUserIDOrderByTimeDesc(ctx context.Context, userID string, limit int) ([]*transaction.Transaction, error)
	CountTransactionsSince(ctx context.Context, userID string, since time.Time) (int, error)
	FindDistinctDevicesByUserID(ctx context.Context, userID string) ([]string, error)
	CountFraudulentTransactions(ctx context.Context, userID string) (int, error)
}

// AlertStore persists and reads fraud alerts. Save is an upsert keyed
// on transaction id.
type AlertStore interface {
	Save(ctx context.Context, a *alert.Alert) error
	Update(ctx context.Context, a *alert.Alert) error
	FindByID(ctx context.Context, id uuid.UUID) (*alert.Alert, error)
	FindByUserID(ctx context.Context, userID string) ([]*alert.Alert, error)
	FindUnreviewed(ctx context.Context) ([]*alert.Alert, error)
}

// ProfileProvider yields the behavior profile snapshot read during
// scoring. The coordinator never writes profiles.
type ProfileProvider interface {
	GetOrCreate(ctx context.Context, userID string) (*behavior.Profile, error)
}

// UpdateScheduler schedules the asynchronous behavior re-aggregation
// after a decision. It must not block.
type UpdateScheduler interface {
	Schedule(userID string)
}

// VelocityReader is the optional Redis fast path for windowed counts.
// The coordinator falls back to the transaction store when it errors.
type VelocityReader interface {
	Record(ctx context.Context, userID string, at time.Time) error
	CountSince(ctx context.Context, userID string, since time.Time) (int, error)
}
