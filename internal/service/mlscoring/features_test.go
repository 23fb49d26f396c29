package mlscoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidleathers/payment-fraud-backend/internal/domain/behavior"
	"github.com/davidleathers/payment-fraud-backend/internal/domain/transaction"
	"github.com/davidleathers/payment-fraud-backend/internal/domain/values"
)

func featureTransaction(t *testing.T) *transaction.Transaction {
	t.Helper()
	tx, err := transaction.New("USR-1", values.MustNewMoneyFromFloat(100, values.USD), transaction.TypeUPI)
	require.NoError(t, err)
	// Wednesday 12:00
	tx.TransactionTime = time.Date(2025, 6, 11, 12, 0, 0, 0, time.UTC)
	return tx
}

func TestExtractFeatures_Width(t *testing.T) {
	features := ExtractFeatures(featureTransaction(t), nil)
	assert.Len(t, features, FeatureCount)
}

func TestExtractFeatures_AllInUnitInterval(t *testing.T) {
	lat, lon := 40.7, -74.0
	tx := featureTransaction(t)
	tx.Latitude = &lat
	tx.Longitude = &lon
	tx.UnusualTime = true
	tx.TransactionsInLastHour = 99
	tx.TransactionsInLastDay = 999
	tx.DeviceType = "MOBILE"
	tx.MerchantCategory = "GROCERY"

	p := behavior.NewProfile("USR-1")
	p.AvgTransactionAmount = 100
	p.DataPointsCount = 20
	p.FailedAttempts = 50
	p.Chargebacks = 50

	for i, f := range ExtractFeatures(tx, p) {
		assert.GreaterOrEqual(t, f, 0.0, "feature %d", i)
		assert.LessOrEqual(t, f, 1.0, "feature %d", i)
	}
}

func TestExtractFeatures_Values(t *testing.T) {
	tx := featureTransaction(t)
	seconds := int64(43200) // half a day
	tx.TimeSinceLastTransaction = &seconds
	tx.TransactionsInLastHour = 5
	tx.TransactionsInLastDay = 25
	tx.VelocityScore = 0.3

	p := behavior.NewProfile("USR-1")
	p.AvgTransactionAmount = 50
	p.DataPointsCount = 20
	p.FailedAttempts = 5
	p.Chargebacks = 1

	features := ExtractFeatures(tx, p)

	assert.InDelta(t, 2.0, features[1], 1e-9, "amount over average")
	assert.InDelta(t, 0.5, features[2], 1e-9, "hour of day")
	assert.InDelta(t, 3.0/7.0, features[3], 1e-9, "ISO weekday for Wednesday")
	assert.InDelta(t, 0.5, features[5], 1e-9, "hourly velocity")
	assert.InDelta(t, 0.5, features[6], 1e-9, "daily velocity")
	assert.InDelta(t, 0.3, features[7], 1e-9, "velocity score")
	assert.Equal(t, 0.0, features[13], "not QR")
	assert.Equal(t, 1.0, features[14], "is UPI")
	assert.InDelta(t, 0.5, features[16], 1e-9, "failed attempts")
	assert.InDelta(t, 0.2, features[17], 1e-9, "chargebacks")
	assert.InDelta(t, 0.5, features[18], 1e-9, "time since last")
	assert.Equal(t, 0.0, features[19], "no merchant category")
}

func TestExtractFeatures_MissingProfileDefaults(t *testing.T) {
	features := ExtractFeatures(featureTransaction(t), nil)

	assert.Equal(t, 1.0, features[1], "amount ratio defaults to 1")
	assert.Equal(t, 0.5, features[15], "consistency defaults to neutral")
	assert.Equal(t, 0.0, features[16])
	assert.Equal(t, 0.0, features[17])
	assert.Equal(t, 1.0, features[18], "no prior transaction")
}

func TestIsoWeekday(t *testing.T) {
	assert.Equal(t, 1, isoWeekday(time.Monday))
	assert.Equal(t, 6, isoWeekday(time.Saturday))
	assert.Equal(t, 7, isoWeekday(time.Sunday))
}
