package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"cash-reader/internal/cfg"
	"cash-reader/internal/detector"
	"cash-reader/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

func main() {
	var (
		configPath   = flag.String("config", "", "Path to YAML config (overrides CONFIG_FILE)")
		logLevel     = flag.String("log-level", "", "Log level: debug, info, warn, error")
		manifestPath = flag.String("data", "", "Dataset manifest (overrides config)")
		bin          = flag.String("yolo", "", "Trainer executable (overrides config)")
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
	if *manifestPath != "" {
		settings.ManifestPath = *manifestPath
	}
	if *bin != "" {
		settings.YOLOBin = *bin
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := settings.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid settings")
	}

	registry := prometheus.NewRegistry()
	m := metrics.NewWrapper(metrics.NewWithRegistry(registry))

	err = run(ctx, settings, m)
	if err != nil {
		m.Errors().Inc()
	}
	if settings.MetricsFile != "" {
		if werr := metrics.WriteTextfile(settings.MetricsFile, registry); werr != nil {
			log.Error().Err(werr).Msg("Failed to write metrics")
		}
	}
	if err != nil {
		stop()
		log.Fatal().Err(err).Msg("Detector training failed")
	}
}

func run(ctx context.Context, settings cfg.Settings, m *metrics.MetricsWrapper) error {
	manifest, err := detector.LoadManifest(settings.ManifestPath)
	if err != nil {
		return err
	}
	if err := manifest.Validate(); err != nil {
		return err
	}
	log.Info().
		Str("manifest", settings.ManifestPath).
		Int("classes", manifest.Classes()).
		Strs("names", manifest.Names).
		Msg("Dataset manifest loaded")

	trainer, err := detector.NewTrainer(detector.Config{
		Bin:         settings.YOLOBin,
		Manifest:    settings.ManifestPath,
		Model:       settings.DetectorModel,
		Epochs:      settings.DetectorEpochs,
		Batch:       settings.DetectorBatch,
		ImageSize:   settings.ImageSize,
		Patience:    settings.Patience,
		Optimizer:   settings.Optimizer,
		DatasetsDir: settings.DatasetsDir,
		Project:     settings.DetectorProject,
	}, m)
	if err != nil {
		return err
	}

	res, err := trainer.Run(ctx)
	if err != nil {
		return err
	}

	log.Info().
		Str("save_dir", res.SaveDir).
		Str("best_weights", res.BestWeights).
		Dur("elapsed", res.Duration).
		Msg("Detector training complete")
	if res.BestWeights != "" {
		fmt.Println(res.BestWeights)
	}
	return nil
}
