package report

import (
	"fmt"
	"os"
	"path/filepath"

	"cash-reader/internal/dataset"

	"github.com/gocarina/gocsv"
	"github.com/rs/zerolog/log"
)

// WriteCounts writes the per-denomination counts as CSV, keeping their
// order.
func WriteCounts(path string, counts []dataset.DenominationCount) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create counts directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create counts file: %w", err)
	}
	defer f.Close()

	if err := gocsv.Marshal(&counts, f); err != nil {
		return fmt.Errorf("failed to write counts: %w", err)
	}
	log.Info().Str("path", path).Int("denominations", len(counts)).Msg("Denomination counts written")
	return nil
}
