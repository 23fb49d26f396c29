package alert

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/davidleathers/payment-fraud-backend/internal/domain/values"
)

func TestBandFor(t *testing.T) {
	tests := []struct {
		score    float64
		severity Severity
		action   Action
	}{
		{0.95, SeverityCritical, ActionBlock},
		{0.9, SeverityCritical, ActionBlock},
		{0.89, SeverityHigh, ActionReview},
		{0.7, SeverityHigh, ActionReview},
		{0.69, SeverityMedium, ActionReview},
		{0.5, SeverityMedium, ActionReview},
		{0.49, SeverityLow, ActionAllowWithWarning},
		{0.4, SeverityLow, ActionAllowWithWarning},
	}

	for _, tt := range tests {
		severity, action := BandFor(tt.score)
		assert.Equal(t, tt.severity, severity, "score %v", tt.score)
		assert.Equal(t, tt.action, action, "score %v", tt.score)
	}
}

func TestNew(t *testing.T) {
	a := New("TXN-1", "USR-1", TypeHybrid, values.NewScore(0.72), "Too many transactions in short time period")

	assert.Equal(t, SeverityHigh, a.Severity)
	assert.Equal(t, ActionReview, a.Action)
	assert.False(t, a.Reviewed)
	assert.NotNil(t, a.RulesFired)
}

func TestMarkReviewed(t *testing.T) {
	a := New("TXN-1", "USR-1", TypeRuleBased, values.NewScore(0.5), "reason")

	a.MarkReviewed("analyst-7", "confirmed with cardholder", true)

	assert.True(t, a.Reviewed)
	assert.Equal(t, "analyst-7", a.ReviewedBy)
	assert.True(t, a.ConfirmedFraud)
	assert.NotNil(t, a.ReviewedAt)
}
