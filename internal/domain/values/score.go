package values

import "fmt"

// Score is a unit-interval scalar used for fraud, rule, model, and
// behavioral scores. Construction clamps to [0,1].
type Score float64

// NewScore clamps v into [0,1].
func NewScore(v float64) Score {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return Score(v)
}

// Float64 returns the raw value.
func (s Score) Float64() float64 {
	return float64(s)
}

// AtLeast reports whether the score meets the given threshold.
func (s Score) AtLeast(threshold float64) bool {
	return float64(s) >= threshold
}

func (s Score) String() string {
	return fmt.Sprintf("%.4f", float64(s))
}

// TrustScore is a per-user scalar in [0,100] summarizing accumulated
// fraud exposure. Arithmetic clamps at the bounds.
type TrustScore float64

const (
	TrustScoreMin = 0.0
	TrustScoreMax = 100.0
)

// NewTrustScore clamps v into [0,100].
func NewTrustScore(v float64) TrustScore {
	if v < TrustScoreMin {
		return TrustScoreMin
	}
	if v > TrustScoreMax {
		return TrustScoreMax
	}
	return TrustScore(v)
}

// Add returns the trust score shifted by delta, clamped to [0,100].
func (t TrustScore) Add(delta float64) TrustScore {
	return NewTrustScore(float64(t) + delta)
}

// Float64 returns the raw value.
func (t TrustScore) Float64() float64 {
	return float64(t)
}

// IsLow reports whether the score is below the low-trust rule threshold.
func (t TrustScore) IsLow() bool {
	return float64(t) < 50
}

func (t TrustScore) String() string {
	return fmt.Sprintf("%.1f", float64(t))
}
