package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	domainerrors "github.com/davidleathers/payment-fraud-backend/internal/domain/errors"
	"github.com/davidleathers/payment-fraud-backend/internal/domain/user"
	"github.com/davidleathers/payment-fraud-backend/internal/domain/values"
	"github.com/davidleathers/payment-fraud-backend/internal/infrastructure/database"
)

// UserRepository implements user storage over PostgreSQL.
type UserRepository struct {
	db *database.Pool
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.Pool) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `
	id, user_id, email, phone_number, name, password,
	trust_score, account_locked, enabled,
	total_transactions, fraud_count,
	registration_date, created_at, updated_at`

// FindByUserID retrieves a user by its opaque user id.
func (r *UserRepository) FindByUserID(ctx context.Context, userID string) (*user.User, error) {
	query := `SELECT` + userColumns + ` FROM users WHERE user_id = $1`
	return r.scanOne(ctx, query, userID)
}

// FindByEmail retrieves a user by email.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*user.User, error) {
	query := `SELECT` + userColumns + ` FROM users WHERE email = $1`
	return r.scanOne(ctx, query, email)
}

// FindByPhone retrieves a user by phone number.
func (r *UserRepository) FindByPhone(ctx context.Context, phone string) (*user.User, error) {
	query := `SELECT` + userColumns + ` FROM users WHERE phone_number = $1`
	return r.scanOne(ctx, query, phone)
}

func (r *UserRepository) scanOne(ctx context.Context, query string, arg any) (*user.User, error) {
	var u user.User
	var trust float64

	err := r.db.QueryRow(ctx, query, arg).Scan(
		&u.ID, &u.UserID, &u.Email, &u.PhoneNumber, &u.Name, &u.Password,
		&trust, &u.AccountLocked, &u.Enabled,
		&u.TotalTransactions, &u.FraudCount,
		&u.RegistrationDate, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainerrors.ErrUserNotFound
		}
		return nil, fmt.Errorf("querying user: %w", err)
	}

	u.TrustScore = values.NewTrustScore(trust)
	return &u, nil
}

// Save inserts or updates a user.
func (r *UserRepository) Save(ctx context.Context, u *user.User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (user_id) DO UPDATE SET
			email = EXCLUDED.email,
			phone_number = EXCLUDED.phone_number,
			name = EXCLUDED.name,
			trust_score = EXCLUDED.trust_score,
			account_locked = EXCLUDED.account_locked,
			enabled = EXCLUDED.enabled,
			total_transactions = EXCLUDED.total_transactions,
			fraud_count = EXCLUDED.fraud_count,
			updated_at = NOW()
	`

	_, err := r.db.Exec(ctx, query,
		u.ID, u.UserID, u.Email, u.PhoneNumber, u.Name, u.Password,
		u.TrustScore.Float64(), u.AccountLocked, u.Enabled,
		u.TotalTransactions, u.FraudCount,
		u.RegistrationDate, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving user: %w", err)
	}
	return nil
}

// ExistsByEmail reports whether a user with the email exists.
func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking email: %w", err)
	}
	return exists, nil
}

// ExistsByPhone reports whether a user with the phone number exists.
func (r *UserRepository) ExistsByPhone(ctx context.Context, phone string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE phone_number = $1)`, phone).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking phone: %w", err)
	}
	return exists, nil
}

// ApplyTrustDelta adjusts the trust score atomically in a single
// statement so concurrent scorings cannot interleave reads and writes.
// The score is clamped to [0,100] in SQL; incrementFraud and
// incrementTotal bump the respective counters.
func (r *UserRepository) ApplyTrustDelta(ctx context.Context, userID string, delta float64, incrementFraud, incrementTotal bool) error {
	fraudInc := 0
	if incrementFraud {
		fraudInc = 1
	}
	totalInc := 0
	if incrementTotal {
		totalInc = 1
	}

	tag, err := r.db.Exec(ctx, `
		UPDATE users
		SET trust_score = LEAST(100, GREATEST(0, trust_score + $2)),
		    fraud_count = fraud_count + $3,
		    total_transactions = total_transactions + $4,
		    updated_at = NOW()
		WHERE user_id = $1
	`, userID, delta, fraudInc, totalInc)
	if err != nil {
		return fmt.Errorf("applying trust delta: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainerrors.ErrUserNotFound
	}
	return nil
}

// LockAccount marks the account locked and disabled atomically.
func (r *UserRepository) LockAccount(ctx context.Context, userID string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE users
		SET account_locked = TRUE, enabled = FALSE, updated_at = NOW()
		WHERE user_id = $1
	`, userID)
	if err != nil {
		return fmt.Errorf("locking account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainerrors.ErrUserNotFound
	}
	return nil
}
