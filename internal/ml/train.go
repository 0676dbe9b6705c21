package ml

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/mat"
)

// MetricsInterface defines metrics methods needed by the training loop
type MetricsInterface interface {
	TrainingEpochsInc()
	EpochDurationObserve(float64)
	TrainLossSet(float64)
	TrainAccuracySet(float64)
	ValidationLossSet(float64)
	ValidationAccuracySet(float64)
}

// clip bound for probabilities fed to the log in the loss
const probEpsilon = 1e-7

// FitConfig controls a call to Fit.
type FitConfig struct {
	Epochs          int
	BatchSize       int
	ValidationSplit float64
	Optimizer       *Adam
	Metrics         MetricsInterface
}

// History records per-epoch loss and accuracy. The validation series are
// empty when Fit ran without a validation split.
type History struct {
	Loss        []float64 `json:"loss"`
	Accuracy    []float64 `json:"accuracy"`
	ValLoss     []float64 `json:"val_loss"`
	ValAccuracy []float64 `json:"val_accuracy"`
}

// Epochs returns the number of recorded epochs.
func (h History) Epochs() int { return len(h.Loss) }

// EpochStats is what one epoch of Fit produced.
type EpochStats struct {
	Epoch       int
	Loss        float64
	Accuracy    float64
	ValLoss     float64
	ValAccuracy float64
	Duration    time.Duration
}

// Fit trains the network on x with integer class labels y using sparse
// categorical cross-entropy. The trailing ValidationSplit fraction of the
// rows is held out before shuffling and scored after every epoch.
func (n *Sequential) Fit(x [][]float64, y []int, cfg FitConfig) (History, error) {
	var hist History
	if len(x) != len(y) {
		return hist, fmt.Errorf("have %d rows but %d labels", len(x), len(y))
	}
	if cfg.Epochs <= 0 {
		return hist, fmt.Errorf("epochs must be positive, got %d", cfg.Epochs)
	}
	if cfg.BatchSize <= 0 {
		return hist, fmt.Errorf("batch size must be positive, got %d", cfg.BatchSize)
	}
	if cfg.ValidationSplit < 0 || cfg.ValidationSplit >= 1 {
		return hist, fmt.Errorf("validation split must be in [0, 1), got %f", cfg.ValidationSplit)
	}
	if err := n.checkLabels(y); err != nil {
		return hist, err
	}
	opt := cfg.Optimizer
	if opt == nil {
		opt = NewAdam(0.001)
	}

	nFit, nVal := validationSplit(len(x), cfg.ValidationSplit)
	if nFit == 0 {
		return hist, fmt.Errorf("no rows left for training after validation split")
	}
	fitX, fitY := x[:nFit], y[:nFit]
	valX, valY := x[nFit:], y[nFit:]

	log.Info().
		Int("train_rows", nFit).
		Int("val_rows", nVal).
		Int("epochs", cfg.Epochs).
		Int("batch_size", cfg.BatchSize).
		Int("params", n.ParamCount()).
		Msg("Starting training")

	params := n.params()
	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		start := time.Now()
		order := n.rng.Perm(nFit)

		var lossSum float64
		var correct int
		for lo := 0; lo < nFit; lo += cfg.BatchSize {
			hi := min(lo+cfg.BatchSize, nFit)
			batchX, batchY, err := n.batch(fitX, fitY, order[lo:hi])
			if err != nil {
				return hist, err
			}
			probs := n.forward(batchX, true)
			loss, hits, grad := crossEntropy(probs, batchY)
			lossSum += loss * float64(len(batchY))
			correct += hits

			n.backward(grad)
			opt.Update(params)
		}

		stats := EpochStats{
			Epoch:    epoch,
			Loss:     lossSum / float64(nFit),
			Accuracy: float64(correct) / float64(nFit),
		}
		hist.Loss = append(hist.Loss, stats.Loss)
		hist.Accuracy = append(hist.Accuracy, stats.Accuracy)

		if nVal > 0 {
			vl, va, err := n.Evaluate(valX, valY)
			if err != nil {
				return hist, fmt.Errorf("validation at epoch %d: %w", epoch, err)
			}
			stats.ValLoss, stats.ValAccuracy = vl, va
			hist.ValLoss = append(hist.ValLoss, vl)
			hist.ValAccuracy = append(hist.ValAccuracy, va)
		}
		stats.Duration = time.Since(start)

		if math.IsNaN(stats.Loss) {
			return hist, fmt.Errorf("loss diverged at epoch %d", epoch)
		}
		n.recordEpoch(stats, nVal > 0, cfg)
	}
	return hist, nil
}

// validationSplit divides n rows into leading training rows and trailing
// validation rows, rounding the training share down.
func validationSplit(n int, split float64) (nFit, nVal int) {
	nFit = int(float64(n) * (1 - split))
	return nFit, n - nFit
}

func (n *Sequential) recordEpoch(s EpochStats, validated bool, cfg FitConfig) {
	ev := log.Info().
		Str("epoch", fmt.Sprintf("%d/%d", s.Epoch, cfg.Epochs)).
		Float64("loss", s.Loss).
		Float64("accuracy", s.Accuracy)
	if validated {
		ev = ev.Float64("val_loss", s.ValLoss).Float64("val_accuracy", s.ValAccuracy)
	}
	ev.Dur("duration", s.Duration).Msg("Epoch complete")

	if cfg.Metrics == nil {
		return
	}
	cfg.Metrics.TrainingEpochsInc()
	cfg.Metrics.EpochDurationObserve(s.Duration.Seconds())
	cfg.Metrics.TrainLossSet(s.Loss)
	cfg.Metrics.TrainAccuracySet(s.Accuracy)
	if validated {
		cfg.Metrics.ValidationLossSet(s.ValLoss)
		cfg.Metrics.ValidationAccuracySet(s.ValAccuracy)
	}
}

// Evaluate returns the mean cross-entropy loss and the accuracy of the
// network on x, with dropout disabled.
func (n *Sequential) Evaluate(x [][]float64, y []int) (loss, accuracy float64, err error) {
	if len(x) != len(y) {
		return 0, 0, fmt.Errorf("have %d rows but %d labels", len(x), len(y))
	}
	if err := n.checkLabels(y); err != nil {
		return 0, 0, err
	}
	batch, err := n.toMatrix(x)
	if err != nil {
		return 0, 0, err
	}
	probs := n.forward(batch, false)
	loss, hits, _ := crossEntropy(probs, y)
	return loss, float64(hits) / float64(len(y)), nil
}

func (n *Sequential) checkLabels(y []int) error {
	classes := n.Classes()
	for i, c := range y {
		if c < 0 || c >= classes {
			return fmt.Errorf("label %d at row %d outside [0, %d)", c, i, classes)
		}
	}
	return nil
}

func (n *Sequential) batch(x [][]float64, y []int, idx []int) (*mat.Dense, []int, error) {
	rows := make([][]float64, len(idx))
	labels := make([]int, len(idx))
	for i, j := range idx {
		rows[i] = x[j]
		labels[i] = y[j]
	}
	m, err := n.toMatrix(rows)
	return m, labels, err
}

// crossEntropy returns the mean sparse categorical cross-entropy, the number
// of argmax hits and the gradient of the mean loss with respect to the
// softmax logits.
func crossEntropy(probs *mat.Dense, y []int) (loss float64, hits int, grad *mat.Dense) {
	rows, cols := probs.Dims()
	grad = mat.NewDense(rows, cols, nil)
	scale := 1 / float64(rows)
	for i := 0; i < rows; i++ {
		p := probs.RawRowView(i)
		target := y[i]
		q := math.Min(math.Max(p[target], probEpsilon), 1-probEpsilon)
		loss -= math.Log(q)
		if argmax(p) == target {
			hits++
		}
		g := grad.RawRowView(i)
		for j, v := range p {
			g[j] = v * scale
		}
		g[target] -= scale
	}
	return loss / float64(rows), hits, grad
}
