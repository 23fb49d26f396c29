package fraud

import "time"

// Combined-score weights. Model output dominates when both paths run.
const (
	ModelWeight = 0.6
	RuleWeight  = 0.4
)

// Fraud score thresholds for banding decisions
const (
	// ThresholdCritical triggers blocking and account lock post-transaction
	ThresholdCritical = 0.9

	// ThresholdHigh declines pre-transaction, holds post-transaction
	ThresholdHigh = 0.7

	// ThresholdMediumAlert is the medium alert severity floor
	ThresholdMediumAlert = 0.5

	// ThresholdSuspicious routes to review and raises an alert
	ThresholdSuspicious = 0.4
)

// Trust score adjustments applied per decision
const (
	TrustPenaltyFraud      = -20.0
	TrustPenaltySuspicious = -5.0
	TrustRewardClean       = 0.5
)

// DefaultModelTimeout bounds the model scorer; past it the decision
// degrades to rule-only.
const DefaultModelTimeout = 500 * time.Millisecond

// Canonical reasons used when no rule fired
const (
	ReasonMLSuspicious = "ML model detected suspicious patterns"
	ReasonNormal       = "Transaction appears normal"
	ReasonError        = "Error in fraud detection - manual review required"
	ReasonLocked       = "Account is locked due to fraud"
)
