package transaction

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/davidleathers/payment-fraud-backend/internal/domain/values"
)

// Transaction is a single payment request flowing through the fraud
// pipeline. It is created PENDING, enriched, scored exactly once on the
// synchronous path, and then terminal. QR verification may re-score it.
type Transaction struct {
	ID            uuid.UUID `json:"id"`
	TransactionID string    `json:"transaction_id"`
	UserID        string    `json:"user_id"`

	Amount values.Money `json:"amount"`
	Type   Type         `json:"transaction_type"`

	TransactionTime time.Time `json:"transaction_time"`

	// Merchant info
	MerchantID       string `json:"merchant_id,omitempty"`
	MerchantName     string `json:"merchant_name,omitempty"`
	MerchantCategory string `json:"merchant_category,omitempty"`

	// Location
	IPAddress string   `json:"ip_address,omitempty"`
	Country   string   `json:"country,omitempty"`
	City      string   `json:"city,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`

	// Device
	DeviceID          string `json:"device_id,omitempty"`
	DeviceType        string `json:"device_type,omitempty"`
	DeviceFingerprint string `json:"device_fingerprint,omitempty"`
	UserAgent         string `json:"user_agent,omitempty"`

	// QR payment fields
	QRCodeID   string `json:"qr_code_id,omitempty"`
	QRCodeData string `json:"qr_code_data,omitempty"`

	Status      Status       `json:"status"`
	FraudStatus FraudStatus  `json:"fraud_status"`
	FraudScore  values.Score `json:"fraud_score"`
	FraudReason string       `json:"fraud_reason,omitempty"`

	// Enrichment fields, populated before scoring
	TimeSinceLastTransaction *int64   `json:"time_since_last_transaction,omitempty"` // seconds
	TransactionsInLastHour   int      `json:"transactions_in_last_hour"`
	TransactionsInLastDay    int      `json:"transactions_in_last_day"`
	AvgTransactionAmount     *float64 `json:"avg_transaction_amount,omitempty"`
	UnusualAmount            bool     `json:"unusual_amount"`
	UnusualTime              bool     `json:"unusual_time"`
	UnusualLocation          bool     `json:"unusual_location"`
	UnusualDevice            bool     `json:"unusual_device"`
	VelocityScore            float64  `json:"velocity_score"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Type is the payment rail the transaction uses.
type Type int

const (
	TypeQRCode Type = iota
	TypeUPI
	TypeCard
	TypeWallet
)

func (t Type) String() string {
	switch t {
	case TypeQRCode:
		return "QR_CODE"
	case TypeUPI:
		return "UPI"
	case TypeCard:
		return "CARD"
	case TypeWallet:
		return "WALLET"
	default:
		return "unknown"
	}
}

// ParseType converts the wire representation to a Type.
func ParseType(s string) (Type, error) {
	switch strings.ToUpper(s) {
	case "QR_CODE":
		return TypeQRCode, nil
	case "UPI":
		return TypeUPI, nil
	case "CARD":
		return TypeCard, nil
	case "WALLET":
		return TypeWallet, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidType, s)
	}
}

// Status is the transaction lifecycle state. Progression is monotone
// within a single call: PENDING to exactly one terminal state.
type Status int

const (
	StatusPending Status = iota
	StatusApproved
	StatusReview
	StatusHold
	StatusDeclined
	StatusBlocked
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "PENDING"
	case StatusApproved:
		return "APPROVED"
	case StatusReview:
		return "REVIEW"
	case StatusHold:
		return "HOLD"
	case StatusDeclined:
		return "DECLINED"
	case StatusBlocked:
		return "BLOCKED"
	default:
		return "unknown"
	}
}

// ParseStatus converts the wire representation to a Status.
func ParseStatus(s string) Status {
	switch strings.ToUpper(s) {
	case "APPROVED":
		return StatusApproved
	case "REVIEW":
		return StatusReview
	case "HOLD":
		return StatusHold
	case "DECLINED":
		return StatusDeclined
	case "BLOCKED":
		return StatusBlocked
	default:
		return StatusPending
	}
}

// FraudStatus classifies the scoring outcome.
type FraudStatus int

const (
	FraudStatusUnknown FraudStatus = iota
	FraudStatusSafe
	FraudStatusSuspicious
	FraudStatusFraud
)

func (f FraudStatus) String() string {
	switch f {
	case FraudStatusUnknown:
		return "UNKNOWN"
	case FraudStatusSafe:
		return "SAFE"
	case FraudStatusSuspicious:
		return "SUSPICIOUS"
	case FraudStatusFraud:
		return "FRAUD"
	default:
		return "unknown"
	}
}

// ParseFraudStatus converts the wire representation to a FraudStatus.
func ParseFraudStatus(s string) FraudStatus {
	switch strings.ToUpper(s) {
	case "SAFE":
		return FraudStatusSafe
	case "SUSPICIOUS":
		return FraudStatusSuspicious
	case "FRAUD":
		return FraudStatusFraud
	default:
		return FraudStatusUnknown
	}
}

// New creates a transaction in PENDING with a generated id.
func New(userID string, amount values.Money, txType Type) (*Transaction, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}
	if !amount.IsPositive() {
		return nil, ErrNonPositiveAmount
	}

	now := time.Now()
	return &Transaction{
		ID:              uuid.New(),
		TransactionID:   generateTransactionID(),
		UserID:          userID,
		Amount:          amount,
		Type:            txType,
		TransactionTime: now,
		Status:          StatusPending,
		FraudStatus:     FraudStatusUnknown,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// IsAccepted reports whether the transaction counts toward the user's
// behavior profile (scored SAFE or approved).
func (t *Transaction) IsAccepted() bool {
	return t.FraudStatus == FraudStatusSafe || t.Status == StatusApproved
}

// IsTerminal reports whether the transaction left PENDING.
func (t *Transaction) IsTerminal() bool {
	return t.Status != StatusPending
}

func generateTransactionID() string {
	return "TXN-" + strings.ToUpper(uuid.NewString()[:8])
}

var (
	ErrMissingUserID     = fmt.Errorf("user id is required")
	ErrNonPositiveAmount = fmt.Errorf("amount must be positive")
	ErrInvalidType       = fmt.Errorf("invalid transaction type")
)
