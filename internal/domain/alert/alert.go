package alert

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/davidleathers/payment-fraud-backend/internal/domain/values"
)

// Alert is a persisted record of a scoring outcome with fraud score at
// or above the alerting threshold, subject to later human review. At
// most one alert exists per transaction per evaluation.
type Alert struct {
	ID            uuid.UUID `json:"id"`
	TransactionID string    `json:"transaction_id"`
	UserID        string    `json:"user_id"`

	AlertType  Type         `json:"alert_type"`
	Severity   Severity     `json:"severity"`
	FraudScore values.Score `json:"fraud_score"`
	Reason     string       `json:"reason"`

	RulesFired []string  `json:"rules_fired"`
	MLFeatures []float64 `json:"ml_features,omitempty"`

	Action Action `json:"action"`

	Reviewed       bool       `json:"reviewed"`
	ReviewedBy     string     `json:"reviewed_by,omitempty"`
	ReviewNotes    string     `json:"review_notes,omitempty"`
	ReviewedAt     *time.Time `json:"reviewed_at,omitempty"`
	ConfirmedFraud bool       `json:"confirmed_fraud"`

	DetectedAt time.Time `json:"detected_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// Type identifies which detection path raised the alert.
type Type int

const (
	TypeRuleBased Type = iota
	TypeMLBased
	TypeHybrid
	TypeError
)

func (t Type) String() string {
	switch t {
	case TypeRuleBased:
		return "RULE_BASED"
	case TypeMLBased:
		return "ML_BASED"
	case TypeHybrid:
		return "HYBRID"
	case TypeError:
		return "ERROR"
	default:
		return "unknown"
	}
}

// ParseType converts the wire representation to a Type.
func ParseType(s string) Type {
	switch strings.ToUpper(s) {
	case "RULE_BASED", "RULE":
		return TypeRuleBased
	case "ML_BASED", "ML":
		return TypeMLBased
	case "ERROR":
		return TypeError
	default:
		return TypeHybrid
	}
}

// Severity bands the alert by fraud score.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "unknown"
	}
}

// ParseSeverity converts the wire representation to a Severity.
func ParseSeverity(s string) Severity {
	switch strings.ToUpper(s) {
	case "MEDIUM":
		return SeverityMedium
	case "HIGH":
		return SeverityHigh
	case "CRITICAL":
		return SeverityCritical
	default:
		return SeverityLow
	}
}

// Action is the recommended handling for the alert.
type Action int

const (
	ActionAllowWithWarning Action = iota
	ActionReview
	ActionBlock
)

func (a Action) String() string {
	switch a {
	case ActionAllowWithWarning:
		return "ALLOW_WITH_WARNING"
	case ActionReview:
		return "REVIEW"
	case ActionBlock:
		return "BLOCK"
	default:
		return "unknown"
	}
}

// ParseAction converts the wire representation to an Action.
func ParseAction(s string) Action {
	switch strings.ToUpper(s) {
	case "BLOCK":
		return ActionBlock
	case "REVIEW":
		return ActionReview
	default:
		return ActionAllowWithWarning
	}
}

// New creates an unreviewed alert for the given transaction.
func New(transactionID, userID string, alertType Type, score values.Score, reason string) *Alert {
	now := time.Now()
	a := &Alert{
		ID:            uuid.New(),
		TransactionID: transactionID,
		UserID:        userID,
		AlertType:     alertType,
		FraudScore:    score,
		Reason:        reason,
		RulesFired:    []string{},
		DetectedAt:    now,
		CreatedAt:     now,
	}
	a.Severity, a.Action = BandFor(score.Float64())
	return a
}

// BandFor maps a fraud score to the alert severity and action bands.
func BandFor(score float64) (Severity, Action) {
	switch {
	case score >= 0.9:
		return SeverityCritical, ActionBlock
	case score >= 0.7:
		return SeverityHigh, ActionReview
	case score >= 0.5:
		return SeverityMedium, ActionReview
	default:
		return SeverityLow, ActionAllowWithWarning
	}
}

// MarkReviewed records the reviewer's verdict.
func (a *Alert) MarkReviewed(reviewer, notes string, confirmedFraud bool) {
	now := time.Now()
	a.Reviewed = true
	a.ReviewedBy = reviewer
	a.ReviewNotes = notes
	a.ConfirmedFraud = confirmedFraud
	a.ReviewedAt = &now
}
