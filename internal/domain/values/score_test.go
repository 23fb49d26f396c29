package values

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewScore_Clamps(t *testing.T) {
	tests := []struct {
		name     string
		input    float64
		expected float64
	}{
		{"negative clamps to zero", -0.3, 0},
		{"zero stays", 0, 0},
		{"mid-range unchanged", 0.42, 0.42},
		{"one stays", 1, 1},
		{"above one clamps", 1.7, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NewScore(tt.input).Float64())
		})
	}
}

func TestScore_AtLeast(t *testing.T) {
	assert.True(t, NewScore(0.7).AtLeast(0.7))
	assert.True(t, NewScore(0.9).AtLeast(0.7))
	assert.False(t, NewScore(0.69).AtLeast(0.7))
}

func TestTrustScore_Add(t *testing.T) {
	tests := []struct {
		name     string
		start    float64
		delta    float64
		expected float64
	}{
		{"penalty applies", 100, -20, 80},
		{"clamps at zero", 10, -20, 0},
		{"reward applies", 50, 0.5, 50.5},
		{"clamps at hundred", 100, 0.5, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewTrustScore(tt.start).Add(tt.delta)
			assert.Equal(t, tt.expected, got.Float64())
		})
	}
}

func TestTrustScore_IsLow(t *testing.T) {
	assert.True(t, NewTrustScore(49.9).IsLow())
	assert.False(t, NewTrustScore(50).IsLow())
	assert.False(t, NewTrustScore(100).IsLow())
}
