package profiling

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidleathers/payment-fraud-backend/internal/domain/behavior"
	domainerrors "github.com/davidleathers/payment-fraud-backend/internal/domain/errors"
	"github.com/davidleathers/payment-fraud-backend/internal/domain/transaction"
	"github.com/davidleathers/payment-fraud-backend/internal/domain/values"
)

type fakeTransactionStore struct {
	mu  sync.Mutex
	txs map[string][]*transaction.Transaction
	err error
}

func (f *fakeTransactionStore) FindByUserIDOrderByTimeDesc(ctx context.Context, userID string, limit int) ([]*transaction.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.txs[userID], nil
}

type fakeProfileStore struct {
	mu       sync.Mutex
	profiles map[string]*behavior.Profile
	saves    int
}

func (f *fakeProfileStore) FindByUserID(ctx context.Context, userID string) (*behavior.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.profiles[userID]; ok {
		return p, nil
	}
	return nil, domainerrors.ErrBehaviorNotFound
}

func (f *fakeProfileStore) Save(ctx context.Context, p *behavior.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.profiles == nil {
		f.profiles = make(map[string]*behavior.Profile)
	}
	f.profiles[p.UserID] = p
	f.saves++
	return nil
}

func acceptedTx(t *testing.T, amount float64, at time.Time) *transaction.Transaction {
	t.Helper()
	tx, err := transaction.New("USR-1", values.MustNewMoneyFromFloat(amount, values.USD), transaction.TypeCard)
	require.NoError(t, err)
	tx.TransactionTime = at
	tx.Status = transaction.StatusApproved
	tx.FraudStatus = transaction.FraudStatusSafe
	return tx
}

func newTestAggregator(txStore *fakeTransactionStore, profStore *fakeProfileStore, now time.Time) *Aggregator {
	agg := NewAggregator(txStore, profStore, slog.Default())
	return agg.WithClock(func() time.Time { return now })
}

func TestUpdate_NoHistoryLeavesProfileUnchanged(t *testing.T) {
	txStore := &fakeTransactionStore{txs: map[string][]*transaction.Transaction{}}
	profStore := &fakeProfileStore{}

	agg := newTestAggregator(txStore, profStore, time.Now())
	require.NoError(t, agg.Update(context.Background(), "USR-1"))

	assert.Zero(t, profStore.saves)
}

func TestUpdate_OnlyRejectedHistoryLeavesProfileUnchanged(t *testing.T) {
	now := time.Now()
	declined := acceptedTx(t, 100, now)
	declined.Status = transaction.StatusDeclined
	declined.FraudStatus = transaction.FraudStatusFraud

	txStore := &fakeTransactionStore{txs: map[string][]*transaction.Transaction{
		"USR-1": {declined},
	}}
	profStore := &fakeProfileStore{}

	agg := newTestAggregator(txStore, profStore, now)
	require.NoError(t, agg.Update(context.Background(), "USR-1"))

	assert.Zero(t, profStore.saves)
}

func TestUpdate_AmountStatistics(t *testing.T) {
	now := time.Date(2025, 6, 11, 12, 0, 0, 0, time.UTC)
	txStore := &fakeTransactionStore{txs: map[string][]*transaction.Transaction{
		"USR-1": {
			acceptedTx(t, 100, now.Add(-1*time.Hour)),
			acceptedTx(t, 200, now.Add(-2*time.Hour)),
			acceptedTx(t, 300, now.Add(-3*time.Hour)),
		},
	}}
	profStore := &fakeProfileStore{}

	agg := newTestAggregator(txStore, profStore, now)
	require.NoError(t, agg.Update(context.Background(), "USR-1"))

	p := profStore.profiles["USR-1"]
	require.NotNil(t, p)
	assert.InDelta(t, 200, p.AvgTransactionAmount, 1e-9)
	assert.InDelta(t, 300, p.MaxTransactionAmount, 1e-9)
	assert.InDelta(t, 100, p.MinTransactionAmount, 1e-9)
	assert.InDelta(t, 100, p.StdDevTransactionAmount, 1e-9)
	assert.Equal(t, 3, p.DataPointsCount)
	assert.Equal(t, 3, p.TransactionsPerDay)
	assert.Equal(t, 3, p.TransactionsPerWeek)
	assert.Equal(t, 3, p.TransactionsPerMonth)
}

func TestUpdate_WindowCounts(t *testing.T) {
	now := time.Date(2025, 6, 11, 12, 0, 0, 0, time.UTC)
	txStore := &fakeTransactionStore{txs: map[string][]*transaction.Transaction{
		"USR-1": {
			acceptedTx(t, 100, now.Add(-2*time.Hour)),        // today
			acceptedTx(t, 100, now.AddDate(0, 0, -3)),        // this week
			acceptedTx(t, 100, now.AddDate(0, 0, -20)),       // this month
			acceptedTx(t, 100, now.AddDate(0, 0, -40)),       // older
		},
	}}
	profStore := &fakeProfileStore{}

	agg := newTestAggregator(txStore, profStore, now)
	require.NoError(t, agg.Update(context.Background(), "USR-1"))

	p := profStore.profiles["USR-1"]
	assert.Equal(t, 1, p.TransactionsPerDay)
	assert.Equal(t, 2, p.TransactionsPerWeek)
	assert.Equal(t, 3, p.TransactionsPerMonth)
	assert.Equal(t, 4, p.DataPointsCount)
}

func TestUpdate_TopKSetsWithDeterministicTies(t *testing.T) {
	now := time.Date(2025, 6, 11, 12, 0, 0, 0, time.UTC)

	var txs []*transaction.Transaction
	// Hours 9 and 14 twice each, 8/10/11/13 once: top 3 is 9, 14, then 8
	// (lowest hour wins the tie among the singles)
	for _, hour := range []int{9, 9, 14, 14, 13, 11, 10, 8} {
		tx := acceptedTx(t, 50, time.Date(2025, 6, 10, hour, 0, 0, 0, time.UTC))
		txs = append(txs, tx)
	}
	// More distinct cities than the bound; ties resolve lexicographically
	cities := []string{"Pune", "Delhi", "Agra", "Pune", "Delhi", "Agra", "Mumbai", "Kolkata"}
	for i, city := range cities {
		txs[i].City = city
	}

	txStore := &fakeTransactionStore{txs: map[string][]*transaction.Transaction{"USR-1": txs}}
	profStore := &fakeProfileStore{}

	agg := newTestAggregator(txStore, profStore, now)
	require.NoError(t, agg.Update(context.Background(), "USR-1"))

	p := profStore.profiles["USR-1"]
	assert.Equal(t, []int{9, 14, 8}, p.PreferredHours)
	assert.Equal(t, []string{"Agra", "Delhi", "Pune", "Kolkata", "Mumbai"}, p.FrequentCities)
	assert.Len(t, p.FrequentCities, behavior.MaxFrequentCities)
}

func TestUpdate_DistinctSetsAreSorted(t *testing.T) {
	now := time.Now()
	a := acceptedTx(t, 50, now.Add(-1*time.Hour))
	a.Country = "US"
	a.DeviceID = "dev-b"
	a.IPAddress = "10.0.0.2"
	b := acceptedTx(t, 60, now.Add(-2*time.Hour))
	b.Country = "IN"
	b.DeviceID = "dev-a"
	b.IPAddress = "10.0.0.1"
	c := acceptedTx(t, 70, now.Add(-3*time.Hour))
	c.Country = "US"
	c.DeviceID = "dev-a"

	txStore := &fakeTransactionStore{txs: map[string][]*transaction.Transaction{"USR-1": {a, b, c}}}
	profStore := &fakeProfileStore{}

	agg := newTestAggregator(txStore, profStore, now)
	require.NoError(t, agg.Update(context.Background(), "USR-1"))

	p := profStore.profiles["USR-1"]
	assert.Equal(t, []string{"IN", "US"}, p.FrequentCountries)
	assert.Equal(t, []string{"dev-a", "dev-b"}, p.KnownDevices)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, p.KnownIPAddresses)
}

func TestUpdate_ConsistencyScore(t *testing.T) {
	now := time.Now()

	// Nine samples: not enough data, stays neutral
	var few []*transaction.Transaction
	for i := 0; i < 9; i++ {
		few = append(few, acceptedTx(t, 100, now.Add(-time.Duration(i+1)*time.Hour)))
	}
	txStore := &fakeTransactionStore{txs: map[string][]*transaction.Transaction{"USR-1": few}}
	profStore := &fakeProfileStore{}
	agg := newTestAggregator(txStore, profStore, now)
	require.NoError(t, agg.Update(context.Background(), "USR-1"))
	assert.Equal(t, 0.5, profStore.profiles["USR-1"].ConsistencyScore.Float64())

	// Ten identical amounts: perfectly consistent
	var many []*transaction.Transaction
	for i := 0; i < 10; i++ {
		many = append(many, acceptedTx(t, 100, now.Add(-time.Duration(i+1)*time.Hour)))
	}
	txStore2 := &fakeTransactionStore{txs: map[string][]*transaction.Transaction{"USR-1": many}}
	profStore2 := &fakeProfileStore{}
	agg2 := newTestAggregator(txStore2, profStore2, now)
	require.NoError(t, agg2.Update(context.Background(), "USR-1"))
	assert.Equal(t, 1.0, profStore2.profiles["USR-1"].ConsistencyScore.Float64())
}

func TestUpdate_DiversityScore(t *testing.T) {
	now := time.Now()
	var txs []*transaction.Transaction
	for i := 0; i < 10; i++ {
		tx := acceptedTx(t, 100, now.Add(-time.Duration(i+1)*time.Hour))
		tx.MerchantID = fmt.Sprintf("merchant-%02d", i)
		if i < 5 {
			tx.MerchantCategory = fmt.Sprintf("category-%d", i)
		}
		txs = append(txs, tx)
	}

	txStore := &fakeTransactionStore{txs: map[string][]*transaction.Transaction{"USR-1": txs}}
	profStore := &fakeProfileStore{}
	agg := newTestAggregator(txStore, profStore, now)
	require.NoError(t, agg.Update(context.Background(), "USR-1"))

	// 10 merchants of 20 and 5 categories of 10 both contribute 0.5
	assert.InDelta(t, 0.5, profStore.profiles["USR-1"].DiversityScore.Float64(), 1e-9)
}

func TestUpdate_VelocityPattern(t *testing.T) {
	now := time.Date(2025, 6, 11, 12, 0, 0, 0, time.UTC)

	// One week apart: the normalized mean interval saturates at 1
	weekly := []*transaction.Transaction{
		acceptedTx(t, 100, now.Add(-1*time.Hour)),
		acceptedTx(t, 100, now.Add(-1*time.Hour).AddDate(0, 0, -7)),
	}
	txStore := &fakeTransactionStore{txs: map[string][]*transaction.Transaction{"USR-1": weekly}}
	profStore := &fakeProfileStore{}
	agg := newTestAggregator(txStore, profStore, now)
	require.NoError(t, agg.Update(context.Background(), "USR-1"))
	assert.InDelta(t, 1.0, profStore.profiles["USR-1"].VelocityPattern.Float64(), 1e-9)

	// A single transaction stays neutral
	single := []*transaction.Transaction{acceptedTx(t, 100, now)}
	txStore2 := &fakeTransactionStore{txs: map[string][]*transaction.Transaction{"USR-1": single}}
	profStore2 := &fakeProfileStore{}
	agg2 := newTestAggregator(txStore2, profStore2, now)
	require.NoError(t, agg2.Update(context.Background(), "USR-1"))
	assert.Equal(t, 0.5, profStore2.profiles["USR-1"].VelocityPattern.Float64())

	// 1h51m36s between transactions is 1/90.3 of a week
	hourly := []*transaction.Transaction{
		acceptedTx(t, 100, now),
		acceptedTx(t, 100, now.Add(-6696*time.Second)),
	}
	txStore3 := &fakeTransactionStore{txs: map[string][]*transaction.Transaction{"USR-1": hourly}}
	profStore3 := &fakeProfileStore{}
	agg3 := newTestAggregator(txStore3, profStore3, now)
	require.NoError(t, agg3.Update(context.Background(), "USR-1"))
	assert.InDelta(t, 6696.0/604800.0, profStore3.profiles["USR-1"].VelocityPattern.Float64(), 1e-9)
}

func TestUpdate_Converges(t *testing.T) {
	now := time.Date(2025, 6, 11, 12, 0, 0, 0, time.UTC)
	var txs []*transaction.Transaction
	for i := 0; i < 15; i++ {
		tx := acceptedTx(t, float64(50+i*10), now.Add(-time.Duration(i+1)*time.Hour))
		tx.Country = []string{"US", "IN"}[i%2]
		tx.City = []string{"Austin", "Pune", "Delhi"}[i%3]
		tx.DeviceID = fmt.Sprintf("dev-%d", i%4)
		tx.MerchantID = fmt.Sprintf("m-%d", i%5)
		tx.MerchantCategory = fmt.Sprintf("cat-%d", i%3)
		txs = append(txs, tx)
	}

	txStore := &fakeTransactionStore{txs: map[string][]*transaction.Transaction{"USR-1": txs}}
	profStore := &fakeProfileStore{}
	agg := newTestAggregator(txStore, profStore, now)

	require.NoError(t, agg.Update(context.Background(), "USR-1"))
	first := *profStore.profiles["USR-1"]

	require.NoError(t, agg.Update(context.Background(), "USR-1"))
	second := *profStore.profiles["USR-1"]

	// Modulo LastUpdated, back-to-back aggregations are identical
	second.LastUpdated = first.LastUpdated
	second.CreatedAt = first.CreatedAt
	assert.Equal(t, first, second)
}

func TestGetOrCreate_NewProfileIsNeutral(t *testing.T) {
	profStore := &fakeProfileStore{}
	agg := NewAggregator(&fakeTransactionStore{}, profStore, slog.Default())

	p, err := agg.GetOrCreate(context.Background(), "USR-9")
	require.NoError(t, err)

	assert.Equal(t, 0.5, p.ConsistencyScore.Float64())
	assert.Equal(t, 0.5, p.DiversityScore.Float64())
	assert.Equal(t, 0.5, p.VelocityPattern.Float64())
	assert.Empty(t, p.FrequentCountries)
	assert.Equal(t, 1, profStore.saves)

	// Second call returns the stored profile without another save
	_, err = agg.GetOrCreate(context.Background(), "USR-9")
	require.NoError(t, err)
	assert.Equal(t, 1, profStore.saves)
}
