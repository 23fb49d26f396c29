package profiling

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/davidleathers/payment-fraud-backend/internal/domain/behavior"
	domainerrors "github.com/davidleathers/payment-fraud-backend/internal/domain/errors"
	"github.com/davidleathers/payment-fraud-backend/internal/domain/transaction"
	"github.com/davidleathers/payment-fraud-backend/internal/domain/values"
)

// TransactionStore is the slice of the store the aggregator reads.
type TransactionStore interface {
	FindByUserIDOrderByTimeDesc(ctx context.Context, userID string, limit int) ([]*transaction.Transaction, error)
}

// ProfileStore is the slice of the store the aggregator writes. The
// aggregator is the sole writer of behavior profiles.
type ProfileStore interface {
	FindByUserID(ctx context.Context, userID string) (*behavior.Profile, error)
	Save(ctx context.Context, p *behavior.Profile) error
}

// Aggregator recomputes a user's behavior profile from their accepted
// transaction history. Re-running on the same history converges to the
// same profile.
type Aggregator struct {
	transactions TransactionStore
	profiles     ProfileStore
	logger       *slog.Logger
	now          func() time.Time
}

// NewAggregator creates a behavior aggregator.
func NewAggregator(transactions TransactionStore, profiles ProfileStore, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		transactions: transactions,
		profiles:     profiles,
		logger:       logger,
		now:          time.Now,
	}
}

// WithClock overrides the aggregator's clock. Intended for tests.
func (a *Aggregator) WithClock(now func() time.Time) *Aggregator {
	a.now = now
	return a
}

// GetOrCreate returns the user's profile, creating the neutral initial
// profile on first reference.
func (a *Aggregator) GetOrCreate(ctx context.Context, userID string) (*behavior.Profile, error) {
	p, err := a.profiles.FindByUserID(ctx, userID)
	if err == nil {
		return p, nil
	}
	if !domainerrors.IsNotFound(err) {
		return nil, err
	}

	p = behavior.NewProfile(userID)
	if err := a.profiles.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("saving initial profile: %w", err)
	}
	return p, nil
}

// Update recomputes and persists the profile from the user's accepted
// transactions. With no accepted history the existing profile is left
// unchanged.
func (a *Aggregator) Update(ctx context.Context, userID string) error {
	history, err := a.transactions.FindByUserIDOrderByTimeDesc(ctx, userID, 0)
	if err != nil {
		return fmt.Errorf("loading history: %w", err)
	}
	if len(history) == 0 {
		return nil
	}

	accepted := make([]*transaction.Transaction, 0, len(history))
	for _, t := range history {
		if t.IsAccepted() {
			accepted = append(accepted, t)
		}
	}
	if len(accepted) == 0 {
		return nil
	}

	profile, err := a.GetOrCreate(ctx, userID)
	if err != nil {
		return err
	}

	a.updateAmountStatistics(profile, accepted)
	a.updateTimePatterns(profile, accepted)
	a.updateLocationPatterns(profile, accepted)
	a.updateDevicePatterns(profile, accepted)
	a.updateMerchantPatterns(profile, accepted)
	a.updateScores(profile, accepted)

	profile.DataPointsCount = len(accepted)
	profile.LastUpdated = a.now()

	if err := a.profiles.Save(ctx, profile); err != nil {
		return fmt.Errorf("saving profile: %w", err)
	}

	a.logger.DebugContext(ctx, "behavior profile updated",
		"user_id", userID, "data_points", len(accepted))
	return nil
}

func (a *Aggregator) updateAmountStatistics(p *behavior.Profile, txs []*transaction.Transaction) {
	amounts := make([]float64, len(txs))
	for i, t := range txs {
		amounts[i] = t.Amount.Float64()
	}

	p.AvgTransactionAmount = mean(amounts)
	p.MaxTransactionAmount = max64(amounts)
	p.MinTransactionAmount = min64(amounts)
	p.StdDevTransactionAmount = stdDev(amounts)

	now := a.now()
	dayAgo := now.AddDate(0, 0, -1)
	weekAgo := now.AddDate(0, 0, -7)
	monthAgo := now.AddDate(0, 0, -30)

	var perDay, perWeek, perMonth int
	for _, t := range txs {
		if t.TransactionTime.After(dayAgo) {
			perDay++
		}
		if t.TransactionTime.After(weekAgo) {
			perWeek++
		}
		if t.TransactionTime.After(monthAgo) {
			perMonth++
		}
	}
	p.TransactionsPerDay = perDay
	p.TransactionsPerWeek = perWeek
	p.TransactionsPerMonth = perMonth
}

func (a *Aggregator) updateTimePatterns(p *behavior.Profile, txs []*transaction.Transaction) {
	hours := make(map[int]int)
	days := make(map[int]int)
	for _, t := range txs {
		hours[t.TransactionTime.Hour()]++
		days[isoWeekday(t.TransactionTime.Weekday())]++
	}

	p.PreferredHours = topKInts(hours, behavior.MaxPreferredHours)
	p.PreferredDays = topKInts(days, behavior.MaxPreferredDays)
}

func (a *Aggregator) updateLocationPatterns(p *behavior.Profile, txs []*transaction.Transaction) {
	countries := make(map[string]struct{})
	cities := make(map[string]int)
	for _, t := range txs {
		if t.Country != "" {
			countries[t.Country] = struct{}{}
		}
		if t.City != "" {
			cities[t.City]++
		}
	}

	p.FrequentCountries = sortedKeys(countries)
	p.FrequentCities = topKStrings(cities, behavior.MaxFrequentCities)
}

func (a *Aggregator) updateDevicePatterns(p *behavior.Profile, txs []*transaction.Transaction) {
	devices := make(map[string]struct{})
	ips := make(map[string]struct{})
	for _, t := range txs {
		if t.DeviceID != "" {
			devices[t.DeviceID] = struct{}{}
		}
		if t.IPAddress != "" {
			ips[t.IPAddress] = struct{}{}
		}
	}

	p.KnownDevices = sortedKeys(devices)
	p.KnownIPAddresses = sortedKeys(ips)
}

func (a *Aggregator) updateMerchantPatterns(p *behavior.Profile, txs []*transaction.Transaction) {
	merchants := make(map[string]int)
	categories := make(map[string]int)
	for _, t := range txs {
		if t.MerchantID != "" {
			merchants[t.MerchantID]++
		}
		if t.MerchantCategory != "" {
			categories[t.MerchantCategory]++
		}
	}

	p.FrequentMerchants = topKStrings(merchants, behavior.MaxFrequentMerchants)
	p.FrequentCategories = topKStrings(categories, behavior.MaxFrequentCategories)
}

func (a *Aggregator) updateScores(p *behavior.Profile, txs []*transaction.Transaction) {
	p.ConsistencyScore = values.NewScore(consistencyScore(txs))
	p.DiversityScore = values.NewScore(diversityScore(txs))
	p.VelocityPattern = values.NewScore(velocityPattern(txs))
}

// consistencyScore measures how predictable the user's amounts are:
// lower coefficient of variation means higher consistency. Below ten
// samples the score stays neutral.
func consistencyScore(txs []*transaction.Transaction) float64 {
	if len(txs) < 10 {
		return 0.5
	}

	amounts := make([]float64, len(txs))
	for i, t := range txs {
		amounts[i] = t.Amount.Float64()
	}

	m := mean(amounts)
	if m == 0 {
		return 0.5
	}

	cv := stdDev(amounts) / m
	return math.Max(0, 1.0-math.Min(cv, 1.0))
}

func diversityScore(txs []*transaction.Transaction) float64 {
	merchants := make(map[string]struct{})
	categories := make(map[string]struct{})
	for _, t := range txs {
		if t.MerchantID != "" {
			merchants[t.MerchantID] = struct{}{}
		}
		if t.MerchantCategory != "" {
			categories[t.MerchantCategory] = struct{}{}
		}
	}

	merchantDiversity := math.Min(float64(len(merchants))/20.0, 1.0)
	categoryDiversity := math.Min(float64(len(categories))/10.0, 1.0)
	return (merchantDiversity + categoryDiversity) / 2.0
}

// velocityPattern is the mean absolute inter-arrival interval between
// consecutive transactions, normalized against one week.
func velocityPattern(txs []*transaction.Transaction) float64 {
	if len(txs) < 2 {
		return 0.5
	}

	var total float64
	for i := 0; i < len(txs)-1; i++ {
		interval := txs[i].TransactionTime.Sub(txs[i+1].TransactionTime).Seconds()
		total += math.Abs(interval)
	}
	avgInterval := total / float64(len(txs)-1)

	return math.Min(avgInterval/604800.0, 1.0)
}

// topKInts returns the k most frequent keys, ties broken by the lower
// key, so repeated aggregations are byte-for-byte identical.
func topKInts(freq map[int]int, k int) []int {
	keys := make([]int, 0, len(freq))
	for key := range freq {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if freq[keys[i]] != freq[keys[j]] {
			return freq[keys[i]] > freq[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > k {
		keys = keys[:k]
	}
	return keys
}

// topKStrings returns the k most frequent keys, ties broken
// lexicographically.
func topKStrings(freq map[string]int, k int) []string {
	keys := make([]string, 0, len(freq))
	for key := range freq {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if freq[keys[i]] != freq[keys[j]] {
			return freq[keys[i]] > freq[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > k {
		keys = keys[:k]
	}
	return keys
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func isoWeekday(wd time.Weekday) int {
	if wd == time.Sunday {
		return 7
	}
	return int(wd)
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func max64(xs []float64) float64 {
	m := xs[0]
	for _, x := range xs[1:] {
		if x > m {
			m = x
		}
	}
	return m
}

func min64(xs []float64) float64 {
	m := xs[0]
	for _, x := range xs[1:] {
		if x < m {
			m = x
		}
	}
	return m
}

// stdDev is the sample standard deviation (n-1 denominator).
func stdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var sum float64
	for _, x := range xs {
		d := x - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(xs)-1))
}
