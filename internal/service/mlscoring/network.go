package mlscoring

import (
	"encoding/gob"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
)

// Network layer sizes: input features, two ReLU hidden layers, softmax
// output over {not-fraud, fraud}.
const (
	inputSize   = FeatureCount
	hiddenSize1 = 64
	hiddenSize2 = 32
	outputSize  = 2
)

// defaultSeed keeps freshly initialized models deterministic.
const defaultSeed = 123

// Network is a small feed-forward classifier. Fields are exported for
// gob serialization of model state.
type Network struct {
	W1 [][]float64
	B1 []float64
	W2 [][]float64
	B2 []float64
	W3 [][]float64
	B3 []float64
}

// NewNetwork creates a network with Xavier-style initialization from a
// fixed seed, so fresh models score identically across restarts.
func NewNetwork(seed int64) *Network {
	rng := rand.New(rand.NewSource(seed))

	return &Network{
		W1: initWeights(rng, inputSize, hiddenSize1),
		B1: make([]float64, hiddenSize1),
		W2: initWeights(rng, hiddenSize1, hiddenSize2),
		B2: make([]float64, hiddenSize2),
		W3: initWeights(rng, hiddenSize2, outputSize),
		B3: make([]float64, outputSize),
	}
}

func initWeights(rng *rand.Rand, in, out int) [][]float64 {
	scale := math.Sqrt(2.0 / float64(in+out))
	w := make([][]float64, in)
	for i := range w {
		w[i] = make([]float64, out)
		for j := range w[i] {
			w[i][j] = rng.NormFloat64() * scale
		}
	}
	return w
}

// Forward runs the network and returns the softmax class probabilities
// {not-fraud, fraud}.
func (n *Network) Forward(x []float64) ([2]float64, error) {
	if len(x) != inputSize {
		return [2]float64{}, fmt.Errorf("expected %d features, got %d", inputSize, len(x))
	}

	h1 := dense(x, n.W1, n.B1, true)
	h2 := dense(h1, n.W2, n.B2, true)
	logits := dense(h2, n.W3, n.B3, false)

	probs := softmax(logits)
	return [2]float64{probs[0], probs[1]}, nil
}

// Fit runs mini-batch-of-one SGD with cross-entropy loss over the
// samples for the given number of epochs.
func (n *Network) Fit(inputs [][]float64, labels []bool, epochs int, learningRate float64) error {
	if len(inputs) == 0 || len(inputs) != len(labels) {
		return fmt.Errorf("invalid training data: %d inputs, %d labels", len(inputs), len(labels))
	}

	for epoch := 0; epoch < epochs; epoch++ {
		for i, x := range inputs {
			if len(x) != inputSize {
				return fmt.Errorf("sample %d: expected %d features, got %d", i, inputSize, len(x))
			}
			n.step(x, labels[i], learningRate)
		}
	}
	return nil
}

// step performs one forward/backward pass and applies the gradients.
func (n *Network) step(x []float64, fraud bool, lr float64) {
	// Forward, keeping activations
	h1 := dense(x, n.W1, n.B1, true)
	h2 := dense(h1, n.W2, n.B2, true)
	logits := dense(h2, n.W3, n.B3, false)
	probs := softmax(logits)

	// Softmax + cross-entropy gradient: p - y
	target := [outputSize]float64{1, 0}
	if fraud {
		target = [outputSize]float64{0, 1}
	}
	dLogits := make([]float64, outputSize)
	for j := range dLogits {
		dLogits[j] = probs[j] - target[j]
	}

	// Backprop through layer 3
	dH2 := backprop(h2, dLogits, n.W3, n.B3, lr)

	// Through ReLU at layer 2
	for j := range dH2 {
		if h2[j] <= 0 {
			dH2[j] = 0
		}
	}
	dH1 := backprop(h1, dH2, n.W2, n.B2, lr)

	// Through ReLU at layer 1
	for j := range dH1 {
		if h1[j] <= 0 {
			dH1[j] = 0
		}
	}
	backprop(x, dH1, n.W1, n.B1, lr)
}

// backprop applies gradients to one dense layer and returns the
// gradient with respect to its input.
func backprop(input, dOut []float64, w [][]float64, b []float64, lr float64) []float64 {
	dIn := make([]float64, len(input))
	for i := range input {
		for j := range dOut {
			dIn[i] += w[i][j] * dOut[j]
			w[i][j] -= lr * dOut[j] * input[i]
		}
	}
	for j := range dOut {
		b[j] -= lr * dOut[j]
	}
	return dIn
}

func dense(x []float64, w [][]float64, b []float64, relu bool) []float64 {
	out := make([]float64, len(b))
	copy(out, b)
	for i, xi := range x {
		if xi == 0 {
			continue
		}
		for j := range out {
			out[j] += xi * w[i][j]
		}
	}
	if relu {
		for j := range out {
			if out[j] < 0 {
				out[j] = 0
			}
		}
	}
	return out
}

func softmax(logits []float64) []float64 {
	maxLogit := logits[0]
	for _, l := range logits[1:] {
		if l > maxLogit {
			maxLogit = l
		}
	}

	out := make([]float64, len(logits))
	sum := 0.0
	for i, l := range logits {
		out[i] = math.Exp(l - maxLogit)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// Save serializes the model state to path, creating parent directories.
func (n *Network) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating model directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating model file: %w", err)
	}
	defer f.Close()

	if err := gob.NewEncoder(f).Encode(n); err != nil {
		return fmt.Errorf("encoding model: %w", err)
	}
	return nil
}

// LoadNetwork restores model state from path.
func LoadNetwork(path string) (*Network, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening model file: %w", err)
	}
	defer f.Close()

	var n Network
	if err := gob.NewDecoder(f).Decode(&n); err != nil {
		return nil, fmt.Errorf("decoding model: %w", err)
	}

	if len(n.W1) != inputSize || len(n.B3) != outputSize {
		return nil, fmt.Errorf("model shape mismatch")
	}
	return &n, nil
}
