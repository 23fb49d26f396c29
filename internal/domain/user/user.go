package user

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/davidleathers/payment-fraud-backend/internal/domain/values"
)

// User is an account holder whose transactions are scored for fraud.
// TrustScore and the fraud counters evolve with each scoring decision.
type User struct {
	ID          uuid.UUID `json:"id"`
	UserID      string    `json:"user_id"`
	Email       string    `json:"email"`
	PhoneNumber string    `json:"phone_number"`
	Name        string    `json:"name"`

	// Opaque credential material. The fraud core never inspects it.
	Password string `json:"-"`

	TrustScore        values.TrustScore `json:"trust_score"`
	AccountLocked     bool              `json:"account_locked"`
	Enabled           bool              `json:"enabled"`
	TotalTransactions int               `json:"total_transactions"`
	FraudCount        int               `json:"fraud_count"`

	RegistrationDate time.Time `json:"registration_date"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// NewUser creates a user in the initial registered state: full trust,
// unlocked, enabled.
func NewUser(name, email, phoneNumber, password string) (*User, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrInvalidName
	}
	if !strings.Contains(email, "@") {
		return nil, ErrInvalidEmail
	}

	now := time.Now()
	return &User{
		ID:               uuid.New(),
		UserID:           generateUserID(),
		Email:            strings.ToLower(strings.TrimSpace(email)),
		PhoneNumber:      strings.TrimSpace(phoneNumber),
		Name:             name,
		Password:         password,
		TrustScore:       values.NewTrustScore(100),
		AccountLocked:    false,
		Enabled:          true,
		RegistrationDate: now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// Lock marks the account locked due to fraud. Locked implies disabled.
func (u *User) Lock() {
	u.AccountLocked = true
	u.Enabled = false
	u.UpdatedAt = time.Now()
}

// Unlock re-enables a previously locked account (administrative action).
func (u *User) Unlock() {
	u.AccountLocked = false
	u.Enabled = true
	u.UpdatedAt = time.Now()
}

// AdjustTrust shifts the trust score by delta, clamped to [0,100].
func (u *User) AdjustTrust(delta float64) {
	u.TrustScore = u.TrustScore.Add(delta)
	u.UpdatedAt = time.Now()
}

// RecordFraud increments the fraud counter.
func (u *User) RecordFraud() {
	u.FraudCount++
	u.UpdatedAt = time.Now()
}

// IsNewAccount reports whether the account was registered within the
// last seven days.
func (u *User) IsNewAccount(now time.Time) bool {
	if u.RegistrationDate.IsZero() {
		return false
	}
	return u.RegistrationDate.After(now.AddDate(0, 0, -7))
}

func generateUserID() string {
	return "USR-" + strings.ToUpper(uuid.NewString()[:8])
}

var (
	ErrInvalidName  = fmt.Errorf("invalid name")
	ErrInvalidEmail = fmt.Errorf("invalid email")
)
