package behavior

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewProfile_NeutralDefaults(t *testing.T) {
	p := NewProfile("USR-1")

	assert.Equal(t, 0.5, p.ConsistencyScore.Float64())
	assert.Equal(t, 0.5, p.DiversityScore.Float64())
	assert.Equal(t, 0.5, p.VelocityPattern.Float64())
	assert.Empty(t, p.FrequentCountries)
	assert.Empty(t, p.KnownDevices)
	assert.Zero(t, p.DataPointsCount)
	assert.False(t, p.HasAmountHistory())
}

func TestProfile_KnowsCountry(t *testing.T) {
	p := NewProfile("USR-1")
	p.FrequentCountries = []string{"US", "IN"}

	assert.True(t, p.KnowsCountry("US"))
	assert.False(t, p.KnowsCountry("RU"))

	var nilProfile *Profile
	assert.False(t, nilProfile.KnowsCountry("US"))
}

func TestProfile_KnowsDevice(t *testing.T) {
	p := NewProfile("USR-1")
	p.KnownDevices = []string{"dev-1"}

	assert.True(t, p.KnowsDevice("dev-1"))
	assert.False(t, p.KnowsDevice("dev-2"))
}

func TestProfile_EffectiveStdDev(t *testing.T) {
	p := NewProfile("USR-1")
	p.AvgTransactionAmount = 100
	p.StdDevTransactionAmount = 20
	assert.Equal(t, 20.0, p.EffectiveStdDev())

	p.StdDevTransactionAmount = 0
	assert.Equal(t, 50.0, p.EffectiveStdDev(), "missing stddev falls back to half the mean")
}
