package fraud

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidleathers/payment-fraud-backend/internal/domain/transaction"
	"github.com/davidleathers/payment-fraud-backend/internal/domain/values"
)

func TestCombine(t *testing.T) {
	assert.InDelta(t, 0.64, Combine(0.5, 0.85).Float64(), 1e-9)
	assert.InDelta(t, 0.46, Combine(0.5, 0.4).Float64(), 1e-9)
	assert.Equal(t, 0.0, Combine(0, 0).Float64())
	assert.Equal(t, 1.0, Combine(1, 1).Float64())
}

func TestCombine_Clamps(t *testing.T) {
	assert.Equal(t, 1.0, Combine(1.5, 1.5).Float64())
	assert.Equal(t, 0.0, Combine(-1, -1).Float64())
}

func TestBanding(t *testing.T) {
	tests := []struct {
		score          float64
		risk           RiskLevel
		status         transaction.FraudStatus
		recommendation Recommendation
	}{
		{0.95, RiskCritical, transaction.FraudStatusFraud, RecommendDecline},
		{0.9, RiskCritical, transaction.FraudStatusFraud, RecommendDecline},
		{0.89, RiskHigh, transaction.FraudStatusFraud, RecommendDecline},
		{0.7, RiskHigh, transaction.FraudStatusFraud, RecommendDecline},
		{0.69, RiskMedium, transaction.FraudStatusSuspicious, RecommendReview},
		{0.4, RiskMedium, transaction.FraudStatusSuspicious, RecommendReview},
		{0.39, RiskLow, transaction.FraudStatusSafe, RecommendApprove},
		{0.0, RiskLow, transaction.FraudStatusSafe, RecommendApprove},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.risk, riskLevelFor(tt.score), "risk at %v", tt.score)
		assert.Equal(t, tt.status, fraudStatusFor(tt.score), "status at %v", tt.score)
		assert.Equal(t, tt.recommendation, recommendationFor(tt.score), "recommendation at %v", tt.score)
	}
}

func TestBanding_Monotonic(t *testing.T) {
	rank := map[RiskLevel]int{RiskLow: 0, RiskMedium: 1, RiskHigh: 2, RiskCritical: 3}

	prevScore := -1.0
	prevRank := -1

	// Increasing both inputs never lowers the combined score or band
	for i := 0; i <= 20; i++ {
		v := float64(i) / 20
		score := Combine(v, v).Float64()
		require.GreaterOrEqual(t, score, prevScore)
		r := rank[riskLevelFor(score)]
		require.GreaterOrEqual(t, r, prevRank)
		prevScore, prevRank = score, r
	}
}

func TestPreTransactionStatus(t *testing.T) {
	assert.Equal(t, transaction.StatusDeclined, preTransactionStatus(0.7))
	assert.Equal(t, transaction.StatusReview, preTransactionStatus(0.4))
	assert.Equal(t, transaction.StatusApproved, preTransactionStatus(0.39))
}

func TestApplyDecisionBands_PreNeverBlocks(t *testing.T) {
	for _, score := range []float64{0.0, 0.4, 0.7, 0.9, 1.0} {
		tx := &transaction.Transaction{}
		lock := applyDecisionBands(tx, score, ModePreTransaction)
		assert.False(t, lock, "pre-transaction must not lock at %v", score)
		assert.NotEqual(t, transaction.StatusBlocked, tx.Status)
		assert.NotEqual(t, transaction.StatusHold, tx.Status)
	}
}

func TestApplyDecisionBands_Post(t *testing.T) {
	tests := []struct {
		score  float64
		status transaction.Status
		fraud  transaction.FraudStatus
		lock   bool
	}{
		{0.93, transaction.StatusBlocked, transaction.FraudStatusFraud, true},
		{0.75, transaction.StatusHold, transaction.FraudStatusFraud, false},
		{0.5, transaction.StatusPending, transaction.FraudStatusSuspicious, false},
		{0.1, transaction.StatusPending, transaction.FraudStatusSafe, false},
	}

	for _, tt := range tests {
		tx := &transaction.Transaction{}
		lock := applyDecisionBands(tx, tt.score, ModePostTransaction)
		assert.Equal(t, tt.status, tx.Status, "score %v", tt.score)
		assert.Equal(t, tt.fraud, tx.FraudStatus, "score %v", tt.score)
		assert.Equal(t, tt.lock, lock, "score %v", tt.score)
	}
}

func TestErrorDecision(t *testing.T) {
	d := errorDecision()

	assert.Equal(t, 0.5, d.FraudScore.Float64())
	assert.Equal(t, RiskMedium, d.RiskLevel)
	assert.Equal(t, transaction.FraudStatusUnknown, d.FraudStatus)
	assert.Equal(t, RecommendReview, d.Recommendation)
	assert.Equal(t, MethodError, d.DetectionMethod)
	assert.False(t, d.IsFraud)
}

func TestStatusMessage(t *testing.T) {
	d := &Decision{PrimaryReason: "Too many transactions in short time period"}

	tx := &transaction.Transaction{Status: transaction.StatusApproved}
	assert.Equal(t, "Transaction approved successfully", statusMessage(tx, d))

	tx.Status = transaction.StatusDeclined
	assert.Equal(t, "Transaction declined - Too many transactions in short time period", statusMessage(tx, d))

	tx.Status = transaction.StatusReview
	assert.Equal(t, "Transaction flagged for manual review - Too many transactions in short time period", statusMessage(tx, d))

	tx.Status = transaction.StatusHold
	assert.Equal(t, "Transaction on hold pending verification", statusMessage(tx, d))

	tx.Status = transaction.StatusBlocked
	assert.Equal(t, "Transaction blocked - Fraud detected", statusMessage(tx, d))
}

func TestScoreClampInvariant(t *testing.T) {
	for _, v := range []float64{-5, -0.1, 0, 0.33, 1, 2, 100} {
		s := values.NewScore(v)
		assert.GreaterOrEqual(t, s.Float64(), 0.0)
		assert.LessOrEqual(t, s.Float64(), 1.0)
	}
}
