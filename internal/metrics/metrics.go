// Package metrics provides Prometheus metrics for the training tools.
// The tools are run-once processes, so instead of serving an endpoint the
// registry is written as a node-exporter textfile when the run ends.
//
// The package covers dataset loading, classifier epochs and evaluation, and
// runs of the external detector trainer.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

const namespace = "cash_reader"

// Metrics holds all Prometheus metrics for a training run.
type Metrics struct {
	// Dataset metrics
	RowsLoaded    prometheus.Counter // Rows read from feature CSVs
	RowsKept      prometheus.Counter // Rows kept by the currency filter
	Denominations prometheus.Gauge   // Distinct denominations in the filtered set

	// Classifier metrics
	TrainingEpochs     prometheus.Counter   // Completed training epochs
	EpochDuration      prometheus.Histogram // Wall time per epoch
	TrainLoss          prometheus.Gauge     // Training loss of the last epoch
	TrainAccuracy      prometheus.Gauge     // Training accuracy of the last epoch
	ValidationLoss     prometheus.Gauge     // Validation loss of the last epoch
	ValidationAccuracy prometheus.Gauge     // Validation accuracy of the last epoch
	TestLoss           prometheus.Gauge     // Loss on the held-out test split
	TestAccuracy       prometheus.Gauge     // Accuracy on the held-out test split
	ModelParams        prometheus.Gauge     // Trainable parameters of the saved model

	// Detector metrics
	DetectorRuns     prometheus.Counter   // External trainer invocations
	DetectorFailures prometheus.Counter   // External trainer invocations that failed
	DetectorDuration prometheus.Histogram // Wall time of a detector training run

	// System metrics
	ErrorsTotal prometheus.Counter // Errors that ended a run
}

// NewWithRegistry creates and registers all metrics on registerer. Each
// command uses its own registry so the textfile holds only these series.
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		RowsLoaded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dataset_rows_loaded_total",
			Help:      "Total number of rows read from feature CSVs",
		}),
		RowsKept: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dataset_rows_kept_total",
			Help:      "Total number of rows kept by the currency filter",
		}),
		Denominations: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dataset_denominations",
			Help:      "Number of distinct denominations in the filtered dataset",
		}),
		TrainingEpochs: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "training_epochs_total",
			Help:      "Total number of completed training epochs",
		}),
		EpochDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "training_epoch_duration_seconds",
			Help:      "Wall time of a training epoch in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		}),
		TrainLoss: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "training_loss",
			Help:      "Training loss of the most recent epoch",
		}),
		TrainAccuracy: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "training_accuracy",
			Help:      "Training accuracy of the most recent epoch",
		}),
		ValidationLoss: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "validation_loss",
			Help:      "Validation loss of the most recent epoch",
		}),
		ValidationAccuracy: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "validation_accuracy",
			Help:      "Validation accuracy of the most recent epoch",
		}),
		TestLoss: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "test_loss",
			Help:      "Loss on the held-out test split",
		}),
		TestAccuracy: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "test_accuracy",
			Help:      "Accuracy on the held-out test split",
		}),
		ModelParams: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_params",
			Help:      "Number of trainable parameters in the saved model",
		}),
		DetectorRuns: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detector_runs_total",
			Help:      "Total number of detector trainer invocations",
		}),
		DetectorFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detector_failures_total",
			Help:      "Total number of failed detector trainer invocations",
		}),
		DetectorDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "detector_run_duration_seconds",
			Help:      "Wall time of a detector training run in seconds",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		}),
		ErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Total number of errors that ended a run",
		}),
	}
}

// WriteTextfile writes every series in gatherer to path in the text
// exposition format, creating the parent directory if needed. The write is
// atomic, so a node-exporter never reads a partial file.
func WriteTextfile(path string, gatherer prometheus.Gatherer) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create metrics directory: %w", err)
		}
	}
	if err := prometheus.WriteToTextfile(path, gatherer); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	log.Debug().Str("path", path).Msg("Metrics written")
	return nil
}
