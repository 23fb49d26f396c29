package behavior

import (
	"time"

	"github.com/davidleathers/payment-fraud-backend/internal/domain/values"
)

// Bounded sizes for the frequency-ordered sets. The aggregator truncates
// to these before the profile is persisted.
const (
	MaxPreferredHours     = 3
	MaxPreferredDays      = 3
	MaxFrequentCities     = 5
	MaxFrequentMerchants  = 10
	MaxFrequentCategories = 5
)

// Profile is the per-user behavioral aggregate derived from accepted
// transactions. It is rewritten wholesale by the aggregator and read as
// an immutable snapshot during scoring.
type Profile struct {
	UserID string `json:"user_id"`

	// Amount statistics over accepted transactions
	AvgTransactionAmount    float64 `json:"avg_transaction_amount"`
	MaxTransactionAmount    float64 `json:"max_transaction_amount"`
	MinTransactionAmount    float64 `json:"min_transaction_amount"`
	StdDevTransactionAmount float64 `json:"std_dev_transaction_amount"`

	// Rolling window counts
	TransactionsPerDay   int `json:"transactions_per_day"`
	TransactionsPerWeek  int `json:"transactions_per_week"`
	TransactionsPerMonth int `json:"transactions_per_month"`

	// Frequency-ordered sets, bounded per the Max* constants. Native
	// slices in memory; encoded only at the storage boundary.
	PreferredHours     []int    `json:"preferred_hours"`
	PreferredDays      []int    `json:"preferred_days"`
	FrequentCities     []string `json:"frequent_cities"`
	FrequentCountries  []string `json:"frequent_countries"`
	KnownDevices       []string `json:"known_devices"`
	KnownIPAddresses   []string `json:"known_ip_addresses"`
	FrequentMerchants  []string `json:"frequent_merchants"`
	FrequentCategories []string `json:"frequent_categories"`

	ConsistencyScore values.Score `json:"consistency_score"`
	DiversityScore   values.Score `json:"diversity_score"`
	VelocityPattern  values.Score `json:"velocity_pattern"`

	FailedAttempts       int `json:"failed_attempts"`
	Chargebacks          int `json:"chargebacks"`
	DisputedTransactions int `json:"disputed_transactions"`
	DataPointsCount      int `json:"data_points_count"`

	LastUpdated time.Time `json:"last_updated"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewProfile creates the neutral initial profile for a user with no
// accepted history: all scores 0.5, empty sets.
func NewProfile(userID string) *Profile {
	now := time.Now()
	return &Profile{
		UserID:             userID,
		PreferredHours:     []int{},
		PreferredDays:      []int{},
		FrequentCities:     []string{},
		FrequentCountries:  []string{},
		KnownDevices:       []string{},
		KnownIPAddresses:   []string{},
		FrequentMerchants:  []string{},
		FrequentCategories: []string{},
		ConsistencyScore:   values.NewScore(0.5),
		DiversityScore:     values.NewScore(0.5),
		VelocityPattern:    values.NewScore(0.5),
		LastUpdated:        now,
		CreatedAt:          now,
	}
}

// HasAmountHistory reports whether amount statistics have been computed.
func (p *Profile) HasAmountHistory() bool {
	return p != nil && p.DataPointsCount > 0
}

// KnowsCountry reports whether the country appears in the user's
// frequent countries.
func (p *Profile) KnowsCountry(country string) bool {
	if p == nil {
		return false
	}
	for _, c := range p.FrequentCountries {
		if c == country {
			return true
		}
	}
	return false
}

// KnowsDevice reports whether the device id has been seen before.
func (p *Profile) KnowsDevice(deviceID string) bool {
	if p == nil {
		return false
	}
	for _, d := range p.KnownDevices {
		if d == deviceID {
			return true
		}
	}
	return false
}

// EffectiveStdDev returns the standard deviation to use for amount
// rules: the recorded value, or half the mean when absent.
func (p *Profile) EffectiveStdDev() float64 {
	if p.StdDevTransactionAmount > 0 {
		return p.StdDevTransactionAmount
	}
	return p.AvgTransactionAmount * 0.5
}
