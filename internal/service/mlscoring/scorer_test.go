package mlscoring

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidleathers/payment-fraud-backend/internal/domain/behavior"
	"github.com/davidleathers/payment-fraud-backend/internal/domain/transaction"
	"github.com/davidleathers/payment-fraud-backend/internal/domain/values"
)

func testLogger() *slog.Logger {
	return slog.Default()
}

func scorerTransaction(t *testing.T) *transaction.Transaction {
	t.Helper()
	tx, err := transaction.New("USR-1", values.MustNewMoneyFromFloat(250, values.USD), transaction.TypeCard)
	require.NoError(t, err)
	tx.TransactionTime = time.Date(2025, 6, 11, 10, 30, 0, 0, time.UTC)
	return tx
}

func TestNeuralScorer_ScoreInRange(t *testing.T) {
	scorer := NewNeuralScorer("", testLogger())

	score, err := scorer.Score(context.Background(), scorerTransaction(t), nil)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, score, 0.0)
	assert.LessOrEqual(t, score, 1.0)
}

func TestNeuralScorer_Deterministic(t *testing.T) {
	a := NewNeuralScorer("", testLogger())
	b := NewNeuralScorer("", testLogger())

	tx := scorerTransaction(t)
	p := behavior.NewProfile("USR-1")

	first, err := a.Score(context.Background(), tx, p)
	require.NoError(t, err)
	second, err := b.Score(context.Background(), tx, p)
	require.NoError(t, err)

	assert.Equal(t, first, second, "fresh models from the same seed must agree")
}

func TestNeuralScorer_CanceledContextIsNeutral(t *testing.T) {
	scorer := NewNeuralScorer("", testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	score, err := scorer.Score(ctx, scorerTransaction(t), nil)
	assert.Error(t, err)
	assert.Equal(t, NeutralScore, score)
}

func TestNeuralScorer_FitMovesTowardLabel(t *testing.T) {
	scorer := NewNeuralScorer("", testLogger())
	ctx := context.Background()

	tx := scorerTransaction(t)
	before, err := scorer.Score(ctx, tx, nil)
	require.NoError(t, err)

	samples := make([]TrainingSample, 0, 20)
	for i := 0; i < 20; i++ {
		samples = append(samples, TrainingSample{Transaction: tx, Fraud: true})
	}
	require.NoError(t, scorer.Fit(ctx, samples))

	after, err := scorer.Score(ctx, tx, nil)
	require.NoError(t, err)
	assert.Greater(t, after, before, "training on fraud labels should raise the fraud probability")
}

func TestNeuralScorer_FitRejectsEmpty(t *testing.T) {
	scorer := NewNeuralScorer("", testLogger())
	assert.Error(t, scorer.Fit(context.Background(), nil))
}

func TestNetwork_SaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.gob")

	original := NewNetwork(defaultSeed)
	require.NoError(t, original.Save(path))

	loaded, err := LoadNetwork(path)
	require.NoError(t, err)

	features := ExtractFeatures(scorerTransaction(t), nil)
	a, err := original.Forward(features)
	require.NoError(t, err)
	b, err := loaded.Forward(features)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestNetwork_ForwardRejectsBadWidth(t *testing.T) {
	net := NewNetwork(defaultSeed)
	_, err := net.Forward([]float64{1, 2, 3})
	assert.Error(t, err)
}

func TestNetwork_SoftmaxSumsToOne(t *testing.T) {
	net := NewNetwork(defaultSeed)
	probs, err := net.Forward(ExtractFeatures(scorerTransaction(t), nil))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, probs[0]+probs[1], 1e-9)
}

func TestNewNeuralScorer_LoadsPersistedModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.gob")
	ctx := context.Background()
	tx := scorerTransaction(t)

	first := NewNeuralScorer(path, testLogger())
	samples := []TrainingSample{{Transaction: tx, Fraud: true}}
	require.NoError(t, first.Fit(ctx, samples))

	trained, err := first.Score(ctx, tx, nil)
	require.NoError(t, err)

	second := NewNeuralScorer(path, testLogger())
	reloaded, err := second.Score(ctx, tx, nil)
	require.NoError(t, err)

	assert.Equal(t, trained, reloaded, "reloaded model must score like the trained one")
}
