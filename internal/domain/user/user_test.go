package user

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUser(t *testing.T) {
	u, err := NewUser("Asha Patel", "Asha@Example.com", "+15551234567", "secret-credential")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(u.UserID, "USR-"))
	assert.Equal(t, "asha@example.com", u.Email)
	assert.Equal(t, 100.0, u.TrustScore.Float64())
	assert.False(t, u.AccountLocked)
	assert.True(t, u.Enabled)
	assert.Zero(t, u.FraudCount)
}

func TestNewUser_Validation(t *testing.T) {
	_, err := NewUser("", "a@b.com", "+1555", "pw")
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = NewUser("Name", "not-an-email", "+1555", "pw")
	assert.ErrorIs(t, err, ErrInvalidEmail)
}

func TestUser_LockImpliesDisabled(t *testing.T) {
	u, err := NewUser("Name", "a@b.com", "+1555", "pw")
	require.NoError(t, err)

	u.Lock()
	assert.True(t, u.AccountLocked)
	assert.False(t, u.Enabled)

	u.Unlock()
	assert.False(t, u.AccountLocked)
	assert.True(t, u.Enabled)
}

func TestUser_AdjustTrustClamps(t *testing.T) {
	u, err := NewUser("Name", "a@b.com", "+1555", "pw")
	require.NoError(t, err)

	u.AdjustTrust(0.5)
	assert.Equal(t, 100.0, u.TrustScore.Float64())

	for i := 0; i < 10; i++ {
		u.AdjustTrust(-20)
	}
	assert.Equal(t, 0.0, u.TrustScore.Float64())
}

func TestUser_IsNewAccount(t *testing.T) {
	now := time.Now()

	fresh := &User{RegistrationDate: now.AddDate(0, 0, -3)}
	assert.True(t, fresh.IsNewAccount(now))

	old := &User{RegistrationDate: now.AddDate(0, 0, -8)}
	assert.False(t, old.IsNewAccount(now))

	unknown := &User{}
	assert.False(t, unknown.IsNewAccount(now))
}
