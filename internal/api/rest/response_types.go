package rest

import (
	"time"

	"github.com/davidleathers/payment-fraud-backend/internal/domain/alert"
	"github.com/davidleathers/payment-fraud-backend/internal/domain/transaction"
	"github.com/davidleathers/payment-fraud-backend/internal/domain/user"
	"github.com/davidleathers/payment-fraud-backend/internal/service/fraud"
)

// TransactionResponse is the wire form of a scoring outcome.
type TransactionResponse struct {
	TransactionID   string         `json:"transactionId"`
	UserID          string         `json:"userId"`
	Amount          float64        `json:"amount"`
	Currency        string         `json:"currency"`
	TransactionType string         `json:"transactionType"`
	Status          string         `json:"status"`
	FraudStatus     string         `json:"fraudStatus"`
	FraudScore      float64        `json:"fraudScore"`
	FraudReason     string         `json:"fraudReason,omitempty"`
	Approved        bool           `json:"approved"`
	Message         string         `json:"message"`
	TransactionTime time.Time      `json:"transactionTime"`
	FraudAnalysis   *FraudAnalysis `json:"fraudAnalysis,omitempty"`
}

// FraudAnalysis carries the scoring detail.
type FraudAnalysis struct {
	MLScore          float64           `json:"mlScore"`
	RuleBasedScore   float64           `json:"ruleBasedScore"`
	RiskLevel        string            `json:"riskLevel"`
	TriggeredRules   []string          `json:"triggeredRules"`
	Recommendation   string            `json:"recommendation"`
	BehaviorAnalysis *BehaviorAnalysis `json:"behaviorAnalysis,omitempty"`
}

// BehaviorAnalysis mirrors the behavioral rule flags.
type BehaviorAnalysis struct {
	UnusualAmount       bool    `json:"unusualAmount"`
	UnusualTime         bool    `json:"unusualTime"`
	UnusualLocation     bool    `json:"unusualLocation"`
	UnusualDevice       bool    `json:"unusualDevice"`
	HighVelocity        bool    `json:"highVelocity"`
	DeviationFromNormal float64 `json:"deviationFromNormal"`
}

// UserResponse is the wire form of a registered user.
type UserResponse struct {
	UserID           string    `json:"userId"`
	Name             string    `json:"name"`
	Email            string    `json:"email"`
	PhoneNumber      string    `json:"phoneNumber"`
	TrustScore       float64   `json:"trustScore"`
	AccountLocked    bool      `json:"accountLocked"`
	Enabled          bool      `json:"enabled"`
	RegistrationDate time.Time `json:"registrationDate"`
}

// AlertResponse is the wire form of a fraud alert.
type AlertResponse struct {
	ID             string     `json:"id"`
	TransactionID  string     `json:"transactionId"`
	UserID         string     `json:"userId"`
	AlertType      string     `json:"alertType"`
	Severity       string     `json:"severity"`
	FraudScore     float64    `json:"fraudScore"`
	Reason         string     `json:"reason"`
	RulesFired     []string   `json:"rulesFired"`
	Action         string     `json:"action"`
	Reviewed       bool       `json:"reviewed"`
	ReviewedBy     string     `json:"reviewedBy,omitempty"`
	ReviewNotes    string     `json:"reviewNotes,omitempty"`
	ReviewedAt     *time.Time `json:"reviewedAt,omitempty"`
	ConfirmedFraud bool       `json:"confirmedFraud"`
	DetectedAt     time.Time  `json:"detectedAt"`
}

// ErrorResponse is the uniform error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

func toTransactionResponse(result *fraud.Result) *TransactionResponse {
	t := result.Transaction
	d := result.Decision

	resp := &TransactionResponse{
		TransactionID:   t.TransactionID,
		UserID:          t.UserID,
		Amount:          t.Amount.Float64(),
		Currency:        t.Amount.Currency(),
		TransactionType: t.Type.String(),
		Status:          t.Status.String(),
		FraudStatus:     t.FraudStatus.String(),
		FraudScore:      d.FraudScore.Float64(),
		FraudReason:     d.PrimaryReason,
		Approved:        result.Approved,
		Message:         result.Message,
		TransactionTime: t.TransactionTime,
	}

	resp.FraudAnalysis = &FraudAnalysis{
		MLScore:        d.MLScore,
		RuleBasedScore: d.RuleScore,
		RiskLevel:      string(d.RiskLevel),
		TriggeredRules: d.TriggeredRules,
		Recommendation: string(d.Recommendation),
		BehaviorAnalysis: &BehaviorAnalysis{
			UnusualAmount:       d.Flags.UnusualAmount,
			UnusualTime:         d.Flags.UnusualTime,
			UnusualLocation:     d.Flags.UnusualLocation,
			UnusualDevice:       d.Flags.UnusualDevice,
			HighVelocity:        d.Flags.HighVelocity,
			DeviationFromNormal: d.AmountDeviation,
		},
	}

	return resp
}

func toStoredTransactionResponse(t *transaction.Transaction) *TransactionResponse {
	return &TransactionResponse{
		TransactionID:   t.TransactionID,
		UserID:          t.UserID,
		Amount:          t.Amount.Float64(),
		Currency:        t.Amount.Currency(),
		TransactionType: t.Type.String(),
		Status:          t.Status.String(),
		FraudStatus:     t.FraudStatus.String(),
		FraudScore:      t.FraudScore.Float64(),
		FraudReason:     t.FraudReason,
		Approved:        t.Status == transaction.StatusApproved,
		TransactionTime: t.TransactionTime,
	}
}

func toUserResponse(u *user.User) *UserResponse {
	return &UserResponse{
		UserID:           u.UserID,
		Name:             u.Name,
		Email:            u.Email,
		PhoneNumber:      u.PhoneNumber,
		TrustScore:       u.TrustScore.Float64(),
		AccountLocked:    u.AccountLocked,
		Enabled:          u.Enabled,
		RegistrationDate: u.RegistrationDate,
	}
}

func toAlertResponse(a *alert.Alert) *AlertResponse {
	return &AlertResponse{
		ID:             a.ID.String(),
		TransactionID:  a.TransactionID,
		UserID:         a.UserID,
		AlertType:      a.AlertType.String(),
		Severity:       a.Severity.String(),
		FraudScore:     a.FraudScore.Float64(),
		Reason:         a.Reason,
		RulesFired:     a.RulesFired,
		Action:         a.Action.String(),
		Reviewed:       a.Reviewed,
		ReviewedBy:     a.ReviewedBy,
		ReviewNotes:    a.ReviewNotes,
		ReviewedAt:     a.ReviewedAt,
		ConfirmedFraud: a.ConfirmedFraud,
		DetectedAt:     a.DetectedAt,
	}
}
