package rules

import (
	"math"
	"time"

	"github.com/davidleathers/payment-fraud-backend/internal/domain/behavior"
	"github.com/davidleathers/payment-fraud-backend/internal/domain/transaction"
	"github.com/davidleathers/payment-fraud-backend/internal/domain/user"
	"github.com/davidleathers/payment-fraud-backend/internal/domain/values"
)

// Rule IDs, in the fixed order they are evaluated and reported.
const (
	RuleHighAmount             = "HIGH_AMOUNT"
	RuleHighVelocity           = "HIGH_VELOCITY"
	RuleUnusualTime            = "UNUSUAL_TIME"
	RuleUnusualLocation        = "UNUSUAL_LOCATION"
	RuleNewDevice              = "NEW_DEVICE"
	RuleLowTrustScore          = "LOW_TRUST_SCORE"
	RuleNewAccount             = "NEW_ACCOUNT"
	RuleMultipleFailedAttempts = "MULTIPLE_FAILED_ATTEMPTS"
	RuleRoundAmount            = "ROUND_AMOUNT"
	RuleAmountLimitExceeded    = "AMOUNT_LIMIT_EXCEEDED"
)

// Config holds the tunable rule thresholds.
type Config struct {
	MaxTransactionAmount   float64
	MaxTransactionsPerHour int
	MaxTransactionsPerDay  int
}

// DefaultConfig returns the production default thresholds.
func DefaultConfig() Config {
	return Config{
		MaxTransactionAmount:   10000,
		MaxTransactionsPerHour: 10,
		MaxTransactionsPerDay:  50,
	}
}

// Input carries everything a rule evaluation may inspect. The engine
// itself performs no I/O; velocity counts and the device history are
// read out of the store by the caller.
type Input struct {
	Transaction *transaction.Transaction
	User        *user.User
	Profile     *behavior.Profile

	CountsLastHour int
	CountsLastDay  int

	// Distinct devices previously used by this user
	KnownDevices []string
}

// Flags mirror which behavioral rules fired.
type Flags struct {
	UnusualAmount   bool `json:"unusual_amount"`
	UnusualTime     bool `json:"unusual_time"`
	UnusualLocation bool `json:"unusual_location"`
	UnusualDevice   bool `json:"unusual_device"`
	HighVelocity    bool `json:"high_velocity"`
	NewDevice       bool `json:"new_device"`
}

// Result is the outcome of a rule evaluation.
type Result struct {
	RuleScore      values.Score
	IsFraud        bool
	TriggeredRules []string
	Reasons        []string
	Flags          Flags
}

// PrimaryReason returns the first reason, or empty when no rule fired.
func (r *Result) PrimaryReason() string {
	if len(r.Reasons) == 0 {
		return ""
	}
	return r.Reasons[0]
}

// Engine evaluates the weighted fraud rules. It is pure and re-entrant.
type Engine struct {
	cfg Config
	now func() time.Time
}

// NewEngine creates a rule engine with the given thresholds.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg, now: time.Now}
}

// WithClock overrides the engine's clock. Intended for tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

type rule struct {
	id     string
	weight float64
	reason string
	fires  func(e *Engine, in Input, f *Flags) bool
}

// The rule table. Order here is the reporting order.
var ruleTable = []rule{
	{
		id:     RuleHighAmount,
		weight: 0.30,
		reason: "Transaction amount significantly higher than user's average",
		fires: func(e *Engine, in Input, f *Flags) bool {
			amount := in.Transaction.Amount.Float64()
			if in.Profile == nil || !in.Profile.HasAmountHistory() {
				if amount > 5000 {
					f.UnusualAmount = true
					return true
				}
				return false
			}
			threshold := in.Profile.AvgTransactionAmount + 3*in.Profile.EffectiveStdDev()
			if amount > threshold {
				f.UnusualAmount = true
				return true
			}
			return false
		},
	},
	{
		id:     RuleHighVelocity,
		weight: 0.25,
		reason: "Too many transactions in short time period",
		fires: func(e *Engine, in Input, f *Flags) bool {
			if in.CountsLastHour > e.cfg.MaxTransactionsPerHour ||
				in.CountsLastDay > e.cfg.MaxTransactionsPerDay {
				f.HighVelocity = true
				return true
			}
			return false
		},
	},
	{
		id:     RuleUnusualTime,
		weight: 0.15,
		reason: "Transaction at unusual hour for this user",
		fires: func(e *Engine, in Input, f *Flags) bool {
			hour := in.Transaction.TransactionTime.Hour()
			if hour >= 2 && hour < 6 {
				f.UnusualTime = true
				return true
			}
			return false
		},
	},
	{
		id:     RuleUnusualLocation,
		weight: 0.20,
		reason: "Transaction from new or unusual location",
		fires: func(e *Engine, in Input, f *Flags) bool {
			country := in.Transaction.Country
			if country == "" || in.Profile == nil {
				return false
			}
			if !in.Profile.KnowsCountry(country) {
				f.UnusualLocation = true
				return true
			}
			return false
		},
	},
	{
		id:     RuleNewDevice,
		weight: 0.15,
		reason: "Transaction from unrecognized device",
		fires: func(e *Engine, in Input, f *Flags) bool {
			deviceID := in.Transaction.DeviceID
			if deviceID == "" {
				return false
			}
			for _, d := range in.KnownDevices {
				if d == deviceID {
					return false
				}
			}
			f.UnusualDevice = true
			f.NewDevice = true
			return true
		},
	},
	{
		id:     RuleLowTrustScore,
		weight: 0.20,
		reason: "User has low trust score",
		fires: func(e *Engine, in Input, f *Flags) bool {
			return in.User != nil && in.User.TrustScore.IsLow()
		},
	},
	{
		id:     RuleNewAccount,
		weight: 0.10,
		reason: "Transaction from new account",
		fires: func(e *Engine, in Input, f *Flags) bool {
			return in.User != nil && in.User.IsNewAccount(e.now())
		},
	},
	{
		id:     RuleMultipleFailedAttempts,
		weight: 0.15,
		reason: "Multiple failed transaction attempts recently",
		fires: func(e *Engine, in Input, f *Flags) bool {
			return in.Profile != nil && in.Profile.FailedAttempts > 3
		},
	},
	{
		id:     RuleRoundAmount,
		weight: 0.05,
		reason: "Suspiciously round transaction amount",
		fires: func(e *Engine, in Input, f *Flags) bool {
			return isRoundAmount(in.Transaction.Amount.Float64())
		},
	},
	{
		id:     RuleAmountLimitExceeded,
		weight: 0.40,
		reason: "Transaction amount exceeds maximum limit",
		fires: func(e *Engine, in Input, f *Flags) bool {
			return in.Transaction.Amount.Float64() > e.cfg.MaxTransactionAmount
		},
	},
}

// Evaluate runs every rule against the input. Fired weights accumulate
// additively and the total is clamped to 1. TriggeredRules preserves
// the fixed rule order above.
func (e *Engine) Evaluate(in Input) *Result {
	result := &Result{
		TriggeredRules: []string{},
		Reasons:        []string{},
	}

	score := 0.0
	for _, r := range ruleTable {
		if r.fires(e, in, &result.Flags) {
			score += r.weight
			result.TriggeredRules = append(result.TriggeredRules, r.id)
			result.Reasons = append(result.Reasons, r.reason)
		}
	}

	result.RuleScore = values.NewScore(score)
	result.IsFraud = score >= 0.7

	return result
}

// BehaviorDeviation returns how many standard deviations the amount is
// from the profile mean; 0 when the profile or deviation is missing.
func (e *Engine) BehaviorDeviation(t *transaction.Transaction, p *behavior.Profile) float64 {
	if p == nil || !p.HasAmountHistory() {
		return 0
	}

	stdDev := p.EffectiveStdDev()
	if stdDev == 0 {
		return 0
	}

	return math.Abs(t.Amount.Float64()-p.AvgTransactionAmount) / stdDev
}

// isRoundAmount reports whether the amount is a suspicious round figure
// (multiple of 500 or 1000, at or above 500).
func isRoundAmount(amount float64) bool {
	if amount < 500 {
		return false
	}
	return math.Mod(amount, 1000) == 0 || math.Mod(amount, 500) == 0
}
