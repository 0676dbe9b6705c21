package ml

import (
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"cash-reader/internal/features"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blobs returns three well separated gaussian clusters in the plane.
func blobs(n int, seed int64) ([][]float64, []int) {
	centers := [][2]float64{{0, 0}, {1, 0}, {0, 1}}
	rng := rand.New(rand.NewSource(seed))
	x := make([][]float64, n)
	y := make([]int, n)
	for i := range x {
		c := rng.Intn(len(centers))
		x[i] = []float64{
			centers[c][0] + rng.NormFloat64()*0.08,
			centers[c][1] + rng.NormFloat64()*0.08,
		}
		y[i] = c
	}
	return x, y
}

func TestNewSequential_Validation(t *testing.T) {
	tests := []struct {
		name   string
		inputs int
		layers []LayerConfig
	}{
		{"no inputs", 0, []LayerConfig{Dense(2, ActivationSoftmax)}},
		{"no layers", 3, nil},
		{"last not softmax", 3, []LayerConfig{Dense(2, ActivationReLU)}},
		{"last is dropout", 3, []LayerConfig{Dense(2, ActivationSoftmax), Dropout(0.2)}},
		{"zero units", 3, []LayerConfig{Dense(0, ActivationReLU), Dense(2, ActivationSoftmax)}},
		{"bad activation", 3, []LayerConfig{Dense(4, "tanh"), Dense(2, ActivationSoftmax)}},
		{"hidden softmax", 3, []LayerConfig{Dense(4, ActivationSoftmax), Dense(2, ActivationSoftmax)}},
		{"dropout rate one", 3, []LayerConfig{Dense(4, ActivationReLU), Dropout(1), Dense(2, ActivationSoftmax)}},
		{"unknown type", 3, []LayerConfig{{Type: "conv"}, Dense(2, ActivationSoftmax)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSequential(tt.inputs, 1, tt.layers...)
			assert.Error(t, err)
		})
	}
}

func TestSequential_Summary(t *testing.T) {
	net, err := NewSequential(10, 42,
		Dense(256, ActivationReLU),
		Dropout(0.2),
		Dense(256, ActivationReLU),
		Dropout(0.2),
		Dense(7, ActivationSoftmax),
	)
	require.NoError(t, err)

	summary := net.Summary()
	require.Len(t, summary, 5)

	assert.Equal(t, "dense_1", summary[0].Name)
	assert.Equal(t, "(None, 256)", summary[0].OutputShape)
	assert.Equal(t, 10*256+256, summary[0].Params)

	assert.Equal(t, "dropout_1", summary[1].Name)
	assert.Equal(t, LayerDropout, summary[1].Type)
	assert.Equal(t, "(None, 256)", summary[1].OutputShape)
	assert.Zero(t, summary[1].Params)

	assert.Equal(t, 256*256+256, summary[2].Params)
	assert.Equal(t, "dropout_2", summary[3].Name)
	assert.Equal(t, "dense_3", summary[4].Name)
	assert.Equal(t, 256*7+7, summary[4].Params)

	assert.Equal(t, 2816+65792+1799, net.ParamCount())
	assert.Equal(t, 7, net.Classes())
}

func TestSequential_PredictProba(t *testing.T) {
	net, err := NewSequential(2, 3, Dense(8, ActivationReLU), Dropout(0.5), Dense(3, ActivationSoftmax))
	require.NoError(t, err)

	x := [][]float64{{0.1, 0.9}, {0.5, 0.5}, {1, 0}}
	first, err := net.PredictProba(x)
	require.NoError(t, err)
	for _, row := range first {
		var sum float64
		for _, p := range row {
			assert.GreaterOrEqual(t, p, 0.0)
			sum += p
		}
		assert.InDelta(t, 1.0, sum, 1e-9)
	}

	// dropout is inactive outside training, so inference is repeatable
	second, err := net.PredictProba(x)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	_, err = net.PredictProba([][]float64{{1, 2, 3}})
	assert.Error(t, err)
	_, err = net.Predict(nil)
	assert.Error(t, err)
}

func TestSequential_GradientMatchesFiniteDifference(t *testing.T) {
	net, err := NewSequential(3, 11, Dense(5, ActivationReLU), Dense(4, ActivationSoftmax))
	require.NoError(t, err)

	x := [][]float64{{0.2, -0.4, 0.9}, {0.7, 0.1, -0.3}, {-0.5, 0.8, 0.4}}
	y := []int{0, 3, 1}

	batch, err := net.toMatrix(x)
	require.NoError(t, err)
	probs := net.forward(batch, true)
	_, _, grad := crossEntropy(probs, y)
	net.backward(grad)

	const h = 1e-6
	for _, p := range net.params() {
		analytic := append([]float64(nil), p.Grad...)
		for j := range p.Value {
			orig := p.Value[j]
			p.Value[j] = orig + h
			up, _, err := net.Evaluate(x, y)
			require.NoError(t, err)
			p.Value[j] = orig - h
			down, _, err := net.Evaluate(x, y)
			require.NoError(t, err)
			p.Value[j] = orig

			numeric := (up - down) / (2 * h)
			assert.InDelta(t, numeric, analytic[j], 1e-5, "%s[%d]", p.Name, j)
		}
	}
}

func TestAdam_FirstStepMovesByLearningRate(t *testing.T) {
	opt := NewAdam(0.01)
	p := Param{Name: "w", Value: []float64{1, -2}, Grad: []float64{0.5, -3}}

	opt.Update([]Param{p})

	// bias corrected first step is lr * sign(grad)
	assert.InDelta(t, 0.99, p.Value[0], 1e-6)
	assert.InDelta(t, -1.99, p.Value[1], 1e-6)

	p.Grad[0], p.Grad[1] = 0, 0
	opt.Update([]Param{p})
	assert.Less(t, p.Value[0], 0.99, "momentum keeps moving the weight")
}

func TestSequential_FitLearnsSeparableProblem(t *testing.T) {
	x, y := blobs(300, 5)
	net, err := NewSequential(2, 42, Dense(16, ActivationReLU), Dropout(0.1), Dense(3, ActivationSoftmax))
	require.NoError(t, err)

	metrics := &MockMetrics{}
	hist, err := net.Fit(x, y, FitConfig{
		Epochs:          40,
		BatchSize:       16,
		ValidationSplit: 0.2,
		Optimizer:       NewAdam(0.01),
		Metrics:         metrics,
	})
	require.NoError(t, err)

	assert.Equal(t, 40, hist.Epochs())
	assert.Len(t, hist.Accuracy, 40)
	assert.Len(t, hist.ValLoss, 40)
	assert.Len(t, hist.ValAccuracy, 40)
	assert.Less(t, hist.Loss[39], hist.Loss[0])
	assert.Greater(t, hist.ValAccuracy[39], 0.9)

	metrics.mu.Lock()
	assert.Equal(t, 40, metrics.epochs)
	assert.Len(t, metrics.durations, 40)
	assert.Equal(t, 40, metrics.valUpdates)
	assert.Equal(t, hist.Loss[39], metrics.trainLoss)
	assert.Equal(t, hist.ValAccuracy[39], metrics.valAccuracy)
	metrics.mu.Unlock()

	testX, testY := blobs(90, 99)
	loss, acc, err := net.Evaluate(testX, testY)
	require.NoError(t, err)
	assert.Greater(t, acc, 0.9)
	assert.False(t, math.IsNaN(loss))
}

func TestSequential_FitWithoutValidation(t *testing.T) {
	x, y := blobs(40, 1)
	net, err := NewSequential(2, 1, Dense(3, ActivationSoftmax))
	require.NoError(t, err)

	hist, err := net.Fit(x, y, FitConfig{Epochs: 2, BatchSize: 64})
	require.NoError(t, err)
	assert.Len(t, hist.Loss, 2)
	assert.Empty(t, hist.ValLoss)
}

func TestValidationSplit_RoundsTrainingShareDown(t *testing.T) {
	tests := []struct {
		rows     int
		split    float64
		fit, val int
	}{
		{801, 0.2, 640, 161},
		{1000, 0.2, 800, 200},
		{7, 0.2, 5, 2},
		{10, 0, 10, 0},
		{3, 0.5, 1, 2},
	}
	for _, tt := range tests {
		fit, val := validationSplit(tt.rows, tt.split)
		assert.Equal(t, tt.fit, fit, "rows=%d split=%v", tt.rows, tt.split)
		assert.Equal(t, tt.val, val, "rows=%d split=%v", tt.rows, tt.split)
	}
}

func TestSequential_FitErrors(t *testing.T) {
	x, y := blobs(10, 1)
	net, err := NewSequential(2, 1, Dense(3, ActivationSoftmax))
	require.NoError(t, err)

	tests := []struct {
		name string
		x    [][]float64
		y    []int
		cfg  FitConfig
	}{
		{"label count mismatch", x, y[:5], FitConfig{Epochs: 1, BatchSize: 4}},
		{"zero epochs", x, y, FitConfig{BatchSize: 4}},
		{"zero batch", x, y, FitConfig{Epochs: 1}},
		{"validation split one", x, y, FitConfig{Epochs: 1, BatchSize: 4, ValidationSplit: 1}},
		{"label out of range", x, append(append([]int{}, y[:9]...), 3), FitConfig{Epochs: 1, BatchSize: 4}},
		{"ragged row", append([][]float64{{1}}, x[1:]...), y, FitConfig{Epochs: 1, BatchSize: 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := net.Fit(tt.x, tt.y, tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestSaveLoad_ReproducesPredictions(t *testing.T) {
	x, y := blobs(120, 8)
	net, err := NewSequential(2, 42, Dense(8, ActivationReLU), Dropout(0.2), Dense(3, ActivationSoftmax))
	require.NoError(t, err)
	hist, err := net.Fit(x, y, FitConfig{Epochs: 3, BatchSize: 32, ValidationSplit: 0.2})
	require.NoError(t, err)

	scaler := &features.MinMaxScaler{}
	require.NoError(t, scaler.Fit(x))

	path := filepath.Join(t.TempDir(), "models", "model.json")
	meta := Metadata{
		Classes:      []string{"1_1", "5_1", "10_1"},
		Features:     []string{"f1", "f2"},
		Scaler:       scaler,
		TestAccuracy: 0.75,
		History:      &hist,
	}
	require.NoError(t, net.Save(path, meta))

	loaded, got, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, meta.Classes, got.Classes)
	assert.Equal(t, meta.Features, got.Features)
	assert.Equal(t, scaler.Min, got.Scaler.Min)
	assert.Equal(t, scaler.Scale, got.Scaler.Scale)
	assert.Equal(t, 0.75, got.TestAccuracy)
	assert.Equal(t, hist.Loss, got.History.Loss)
	assert.False(t, got.CreatedAt.IsZero())
	assert.Equal(t, net.Summary(), loaded.Summary())

	want, err := net.PredictProba(x)
	require.NoError(t, err)
	have, err := loaded.PredictProba(x)
	require.NoError(t, err)
	for i := range want {
		assert.InDeltaSlice(t, want[i], have[i], 1e-12)
	}
}

func TestSaveLoad_Errors(t *testing.T) {
	net, err := NewSequential(2, 1, Dense(3, ActivationSoftmax))
	require.NoError(t, err)

	dir := t.TempDir()
	assert.Error(t, net.Save(filepath.Join(dir, "m.json"), Metadata{Classes: []string{"a"}}),
		"class count must match outputs")

	_, _, err = Load(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0o644))
	_, _, err = Load(bad)
	assert.Error(t, err)

	truncated := filepath.Join(dir, "truncated.json")
	require.NoError(t, os.WriteFile(truncated,
		[]byte(`{"inputs":2,"layers":[{"type":"dense","units":3,"activation":"softmax"}],"weights":[]}`), 0o644))
	_, _, err = Load(truncated)
	assert.Error(t, err)
}
