package mlscoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/davidleathers/payment-fraud-backend/internal/domain/behavior"
	"github.com/davidleathers/payment-fraud-backend/internal/domain/transaction"
)

// NeutralScore is returned when scoring fails internally.
const NeutralScore = 0.5

// Scorer produces a fraud probability for a transaction given the
// user's behavior profile. Implementations must be deterministic for a
// given (feature vector, model state) and safe for concurrent use.
type Scorer interface {
	Score(ctx context.Context, t *transaction.Transaction, p *behavior.Profile) (float64, error)
}

// TrainingSample pairs a scored transaction with its confirmed label.
type TrainingSample struct {
	Transaction *transaction.Transaction
	Profile     *behavior.Profile
	Fraud       bool
}

// NeuralScorer scores transactions with the feed-forward classifier.
type NeuralScorer struct {
	mu        sync.RWMutex
	net       *Network
	modelPath string
	logger    *slog.Logger
}

// NewNeuralScorer loads the model from modelPath, or initializes a
// fresh one when the file is absent or unreadable.
func NewNeuralScorer(modelPath string, logger *slog.Logger) *NeuralScorer {
	s := &NeuralScorer{
		modelPath: modelPath,
		logger:    logger,
	}

	if modelPath != "" {
		if net, err := LoadNetwork(modelPath); err == nil {
			logger.Info("loaded fraud model", "path", modelPath)
			s.net = net
			return s
		} else if !errors.Is(err, os.ErrNotExist) {
			logger.Warn("failed to load fraud model, initializing fresh",
				"path", modelPath, "error", err)
		}
	}

	s.net = NewNetwork(defaultSeed)
	logger.Info("initialized fresh fraud model")
	return s
}

// Score returns the fraud probability for the transaction. Internal
// failures return the neutral score with the error.
func (s *NeuralScorer) Score(ctx context.Context, t *transaction.Transaction, p *behavior.Profile) (float64, error) {
	if err := ctx.Err(); err != nil {
		return NeutralScore, err
	}

	features := ExtractFeatures(t, p)

	s.mu.RLock()
	probs, err := s.net.Forward(features)
	s.mu.RUnlock()
	if err != nil {
		s.logger.ErrorContext(ctx, "model forward pass failed",
			"transaction_id", t.TransactionID, "error", err)
		return NeutralScore, err
	}

	return probs[1], nil
}

// Fit trains the model on confirmed samples and persists the updated
// state. Training errors are returned but leave the previous state
// usable for scoring.
func (s *NeuralScorer) Fit(ctx context.Context, samples []TrainingSample) error {
	if len(samples) == 0 {
		return fmt.Errorf("no training samples")
	}

	inputs := make([][]float64, len(samples))
	labels := make([]bool, len(samples))
	for i, sample := range samples {
		inputs[i] = ExtractFeatures(sample.Transaction, sample.Profile)
		labels[i] = sample.Fraud
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.net.Fit(inputs, labels, 10, 0.001); err != nil {
		return fmt.Errorf("training model: %w", err)
	}

	s.logger.InfoContext(ctx, "model trained", "samples", len(samples))

	if s.modelPath != "" {
		if err := s.net.Save(s.modelPath); err != nil {
			s.logger.ErrorContext(ctx, "failed to persist model", "error", err)
		}
	}
	return nil
}
