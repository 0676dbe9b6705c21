package main

import (
	"flag"
	"fmt"
	"os"

	"cash-reader/internal/cfg"
	"cash-reader/internal/common"
	"cash-reader/internal/dataset"
	"cash-reader/internal/metrics"
	"cash-reader/internal/report"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to YAML config (overrides CONFIG_FILE)")
		logLevel   = flag.String("log-level", "", "Log level: debug, info, warn, error")
		dataPath   = flag.String("data", "", "Feature CSV to explore (overrides config)")
		currency   = flag.String("currency", "", "Currency code to keep (overrides config)")
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
	if *currency != "" {
		settings.Currency = *currency
	}

	if err := settings.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid settings")
	}

	registry := prometheus.NewRegistry()
	m := metrics.NewWrapper(metrics.NewWithRegistry(registry))

	err = run(settings, m)
	if err != nil {
		m.Errors().Inc()
	}
	if settings.MetricsFile != "" {
		if werr := metrics.WriteTextfile(settings.MetricsFile, registry); werr != nil {
			log.Error().Err(werr).Msg("Failed to write metrics")
		}
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Exploration failed")
	}
}

func run(settings cfg.Settings, m *metrics.MetricsWrapper) error {
	table, err := dataset.ReadCSV(settings.DatasetPath)
	if err != nil {
		return err
	}
	m.RowsLoaded().Add(float64(table.Len()))

	filtered, err := dataset.SelectCurrency(table, settings.Currency)
	if err != nil {
		return err
	}
	m.RowsKept().Add(float64(filtered.Len()))
	log.Info().
		Str("currency", settings.Currency).
		Int("rows", table.Len()).
		Int("kept", filtered.Len()).
		Msg("Filtered dataset")

	if err := filtered.WriteCSV(settings.FilteredPath); err != nil {
		return err
	}

	counts, err := dataset.CountByDenomination(filtered, common.DenominationColumn)
	if err != nil {
		return fmt.Errorf("failed to count denominations: %w", err)
	}
	m.Denominations().Set(float64(len(counts)))

	fmt.Println("Columns:")
	report.PrintColumns(os.Stdout, filtered)
	fmt.Printf("\nRows: %d\n\n", filtered.Len())
	report.PrintHead(os.Stdout, filtered, settings.HeadRows)

	if cols := filtered.FeatureColumns(); len(cols) > 0 && filtered.Len() > 0 {
		summary, err := dataset.Describe(filtered, cols)
		if err != nil {
			return fmt.Errorf("failed to describe features: %w", err)
		}
		fmt.Println()
		report.PrintSummary(os.Stdout, summary)
	}

	fmt.Println("\nDenomination counts (descending):")
	report.PrintCounts(os.Stdout, counts)

	if settings.CountsPath != "" {
		if err := report.WriteCounts(settings.CountsPath, counts); err != nil {
			return err
		}
	}
	return nil
}
