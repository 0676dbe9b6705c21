package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"cash-reader/internal/cfg"
	"cash-reader/internal/common"
	"cash-reader/internal/dataset"
	"cash-reader/internal/features"
	"cash-reader/internal/metrics"
	"cash-reader/internal/ml"
	"cash-reader/internal/report"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to YAML config (overrides CONFIG_FILE)")
		logLevel   = flag.String("log-level", "", "Log level: debug, info, warn, error")
		dataPath   = flag.String("data", "", "Feature CSV to train on (overrides config)")
		modelPath  = flag.String("model", "", "Where to save the trained model (overrides config)")
		epochs     = flag.Int("epochs", 0, "Training epochs (overrides config)")
	)
	flag.Parse()

	cfg.SetupLogging(*logLevel)

	settings, err := cfg.LoadFile(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if *logLevel == "" {
		cfg.SetupLogging(settings.LogLevel)
	}
	if *dataPath != "" {
		settings.DatasetPath = *dataPath
	}
	if *modelPath != "" {
		settings.ModelPath = *modelPath
	}
	if *epochs > 0 {
		settings.Epochs = *epochs
	}

	if err := settings.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid settings")
	}

	registry := prometheus.NewRegistry()
	m := metrics.NewWrapper(metrics.NewWithRegistry(registry))

	err = train(settings, m)
	if err != nil {
		m.Errors().Inc()
	}
	if settings.MetricsFile != "" {
		if werr := metrics.WriteTextfile(settings.MetricsFile, registry); werr != nil {
			log.Error().Err(werr).Msg("Failed to write metrics")
		}
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Training failed")
	}
}

func train(settings cfg.Settings, m *metrics.MetricsWrapper) error {
	start := time.Now()

	table, err := dataset.ReadCSV(settings.DatasetPath)
	if err != nil {
		return err
	}
	m.RowsLoaded().Add(float64(table.Len()))

	columns := table.FeatureColumns()
	if len(columns) == 0 {
		return fmt.Errorf("%s has no feature columns", settings.DatasetPath)
	}
	raw, err := table.Floats(columns)
	if err != nil {
		return fmt.Errorf("failed to read features: %w", err)
	}
	labels, err := table.Column(common.DenominationColumn)
	if err != nil {
		return err
	}

	// the scaler sees every row, before the split
	scaler := &features.MinMaxScaler{}
	x, err := scaler.FitTransform(raw)
	if err != nil {
		return err
	}

	trainIdx, testIdx, err := features.TrainTestSplit(len(x), settings.TestSize, settings.RandSeed)
	if err != nil {
		return err
	}
	trainX, testX := features.Rows(x, trainIdx), features.Rows(x, testIdx)

	encoder := &features.LabelEncoder{}
	trainY, err := encoder.FitTransform(features.Rows(labels, trainIdx))
	if err != nil {
		return fmt.Errorf("failed to encode training labels: %w", err)
	}
	testY, err := encoder.Transform(features.Rows(labels, testIdx))
	if err != nil {
		return fmt.Errorf("failed to encode test labels: %w", err)
	}

	log.Info().
		Int("features", len(columns)).
		Int("classes", encoder.Len()).
		Int("train_rows", len(trainX)).
		Int("test_rows", len(testX)).
		Msg("Prepared dataset")

	net, err := ml.NewSequential(len(columns), settings.RandSeed,
		ml.Dense(settings.HiddenUnits, ml.ActivationReLU),
		ml.Dropout(settings.Dropout),
		ml.Dense(settings.HiddenUnits, ml.ActivationReLU),
		ml.Dropout(settings.Dropout),
		ml.Dense(encoder.Len(), ml.ActivationSoftmax),
	)
	if err != nil {
		return err
	}
	report.PrintModelSummary(os.Stdout, net.Summary())
	m.ModelParams().Set(float64(net.ParamCount()))

	history, err := net.Fit(trainX, trainY, ml.FitConfig{
		Epochs:          settings.Epochs,
		BatchSize:       settings.BatchSize,
		ValidationSplit: settings.ValidationSplit,
		Optimizer:       ml.NewAdam(settings.LearningRate),
		Metrics:         m,
	})
	if err != nil {
		return err
	}

	if _, err := report.PlotHistory(history, settings.PlotDir); err != nil {
		return err
	}

	testLoss, testAcc, err := net.Evaluate(testX, testY)
	if err != nil {
		return fmt.Errorf("failed to evaluate: %w", err)
	}
	m.TestLoss().Set(testLoss)
	m.TestAccuracy().Set(testAcc)
	fmt.Printf("Test Accuracy: %.4f\n", testAcc)

	err = net.Save(settings.ModelPath, ml.Metadata{
		Classes:      encoder.Classes(),
		Features:     columns,
		Scaler:       scaler,
		TestAccuracy: testAcc,
		TestLoss:     testLoss,
		History:      &history,
	})
	if err != nil {
		return err
	}

	log.Info().
		Float64("test_accuracy", testAcc).
		Float64("test_loss", testLoss).
		Dur("elapsed", time.Since(start)).
		Msg("Training complete")
	return nil
}
