package fraud

import (
	"time"

	"github.com/davidleathers/payment-fraud-backend/internal/domain/transaction"
	"github.com/davidleathers/payment-fraud-backend/internal/domain/values"
	"github.com/davidleathers/payment-fraud-backend/internal/service/rules"
)

// Mode distinguishes scoring before commitment from re-scoring after
// settlement. Post-transaction mode can additionally hold or block.
type Mode int

const (
	ModePreTransaction Mode = iota
	ModePostTransaction
)

func (m Mode) String() string {
	if m == ModePostTransaction {
		return "post"
	}
	return "pre"
}

// RiskLevel is the coarse classification of a fraud score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// Recommendation is the suggested handling of the transaction.
type Recommendation string

const (
	RecommendApprove Recommendation = "APPROVE"
	RecommendReview  Recommendation = "REVIEW"
	RecommendDecline Recommendation = "DECLINE"
)

// DetectionMethod identifies which scoring path produced the decision.
type DetectionMethod string

const (
	MethodHybrid DetectionMethod = "HYBRID"
	MethodRule   DetectionMethod = "RULE"
	MethodML     DetectionMethod = "ML"
	MethodError  DetectionMethod = "ERROR"
)

// Decision is the full outcome of a scoring run.
type Decision struct {
	FraudScore values.Score `json:"fraud_score"`
	MLScore    float64      `json:"ml_score"`
	RuleScore  float64      `json:"rule_based_score"`

	// BehaviorScore folds consistency and recent failures into one
	// informational scalar
	BehaviorScore float64 `json:"behavior_score"`

	IsFraud        bool                    `json:"is_fraud"`
	RiskLevel      RiskLevel               `json:"risk_level"`
	FraudStatus    transaction.FraudStatus `json:"fraud_status"`
	Recommendation Recommendation          `json:"recommendation"`

	PrimaryReason  string   `json:"primary_reason"`
	AllReasons     []string `json:"all_reasons"`
	TriggeredRules []string `json:"triggered_rules"`

	Flags           rules.Flags `json:"behavior_flags"`
	AmountDeviation float64     `json:"amount_deviation"`

	UserTrustScore   float64 `json:"user_trust_score"`
	UserFraudHistory int     `json:"user_fraud_history"`

	DetectionMethod DetectionMethod `json:"detection_method"`
	ProcessingTime  time.Duration   `json:"processing_time"`
}

// Request is a validated incoming payment to score.
type Request struct {
	UserID   string
	Amount   values.Money
	Type     transaction.Type

	MerchantID       string
	MerchantName     string
	MerchantCategory string

	IPAddress string
	Country   string
	City      string
	Latitude  *float64
	Longitude *float64

	DeviceID          string
	DeviceType        string
	DeviceFingerprint string
	UserAgent         string

	QRCodeID   string
	QRCodeData string
}

// Result pairs the persisted transaction with its decision and the
// user-facing message keyed by terminal status.
type Result struct {
	Transaction *transaction.Transaction
	Decision    *Decision
	Message     string
	Approved    bool
}

// Statistics summarizes a user's fraud exposure.
type Statistics struct {
	UserID                  string  `json:"user_id"`
	TrustScore              float64 `json:"trust_score"`
	TotalFraudAlerts        int     `json:"total_fraud_alerts"`
	FraudulentTransactions  int     `json:"fraudulent_transactions"`
	AccountLocked           bool    `json:"account_locked"`
}
