package mlscoring

import (
	"math"
	"time"

	"github.com/davidleathers/payment-fraud-backend/internal/domain/behavior"
	"github.com/davidleathers/payment-fraud-backend/internal/domain/transaction"
)

// FeatureCount is the fixed width of the model input vector.
const FeatureCount = 20

// maxAmountLog normalizes amounts on a log scale, assuming ~100000 max.
var maxAmountLog = math.Log(100000)

// ExtractFeatures builds the model input from a transaction and the
// user's behavior profile. Every feature lands in [0,1] except the
// amount-to-average ratio, which is not clamped.
func ExtractFeatures(t *transaction.Transaction, p *behavior.Profile) []float64 {
	features := make([]float64, 0, FeatureCount)
	amount := t.Amount.Float64()

	// Amount
	features = append(features, math.Min(math.Log1p(amount)/maxAmountLog, 1.0))
	if p != nil && p.HasAmountHistory() && p.AvgTransactionAmount > 0 {
		features = append(features, amount/p.AvgTransactionAmount)
	} else {
		features = append(features, 1.0)
	}

	// Time of day / day of week (ISO weekday, Monday=1)
	features = append(features, float64(t.TransactionTime.Hour())/24.0)
	features = append(features, float64(isoWeekday(t.TransactionTime.Weekday()))/7.0)
	features = append(features, boolFeature(t.UnusualTime))

	// Velocity
	features = append(features, math.Min(float64(t.TransactionsInLastHour)/10.0, 1.0))
	features = append(features, math.Min(float64(t.TransactionsInLastDay)/50.0, 1.0))
	features = append(features, t.VelocityScore)

	// Location
	features = append(features, boolFeature(t.UnusualLocation))
	features = append(features, normalizeCoordinate(t.Latitude))
	features = append(features, normalizeCoordinate(t.Longitude))

	// Device
	features = append(features, boolFeature(t.UnusualDevice))
	features = append(features, boolFeature(t.DeviceType == "MOBILE"))

	// Payment rail
	features = append(features, boolFeature(t.Type == transaction.TypeQRCode))
	features = append(features, boolFeature(t.Type == transaction.TypeUPI))

	// Behavior profile
	if p != nil {
		features = append(features, p.ConsistencyScore.Float64())
		features = append(features, math.Min(float64(p.FailedAttempts)/10.0, 1.0))
		features = append(features, math.Min(float64(p.Chargebacks)/5.0, 1.0))
	} else {
		features = append(features, 0.5, 0.0, 0.0)
	}

	// Recency
	if t.TimeSinceLastTransaction != nil {
		features = append(features, math.Min(float64(*t.TimeSinceLastTransaction)/86400.0, 1.0))
	} else {
		features = append(features, 1.0)
	}

	// Merchant
	features = append(features, boolFeature(t.MerchantCategory != ""))

	return features
}

// isoWeekday maps time.Weekday (Sunday=0) to ISO numbering (Monday=1,
// Sunday=7).
func isoWeekday(wd time.Weekday) int {
	if wd == time.Sunday {
		return 7
	}
	return int(wd)
}

func boolFeature(b bool) float64 {
	if b {
		return 1.0
	}
	return 0.0
}

func normalizeCoordinate(c *float64) float64 {
	if c == nil {
		return 0.0
	}
	return (*c + 180.0) / 360.0
}
