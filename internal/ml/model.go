package ml

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cash-reader/internal/features"

	"github.com/rs/zerolog/log"
)

// Metadata is stored next to the weights so that a loaded model can scale
// raw feature rows and decode its predictions.
type Metadata struct {
	Classes      []string               `json:"classes"`
	Features     []string               `json:"features"`
	Scaler       *features.MinMaxScaler `json:"scaler,omitempty"`
	TestAccuracy float64                `json:"test_accuracy"`
	TestLoss     float64                `json:"test_loss"`
	History      *History               `json:"history,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
}

// ParamTensor is one named weight tensor of a saved model.
type ParamTensor struct {
	Name   string    `json:"name"`
	Values []float64 `json:"values"`
}

type modelFile struct {
	Inputs   int           `json:"inputs"`
	Layers   []LayerConfig `json:"layers"`
	Weights  []ParamTensor `json:"weights"`
	Metadata Metadata      `json:"metadata"`
}

// Save writes the architecture, weights and metadata as a single JSON file,
// creating the parent directory if needed.
func (n *Sequential) Save(path string, meta Metadata) error {
	if len(meta.Classes) != 0 && len(meta.Classes) != n.Classes() {
		return fmt.Errorf("model has %d outputs but metadata lists %d classes", n.Classes(), len(meta.Classes))
	}
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now().UTC()
	}

	file := modelFile{Inputs: n.Inputs, Metadata: meta}
	for _, l := range n.Layers {
		file.Layers = append(file.Layers, l.Config())
	}
	for _, p := range n.params() {
		file.Weights = append(file.Weights, ParamTensor{Name: p.Name, Values: p.Value})
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal model: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write model: %w", err)
	}

	log.Info().
		Str("path", path).
		Int("params", n.ParamCount()).
		Int("classes", n.Classes()).
		Msg("Model saved")
	return nil
}

// Load reads a model written by Save.
func Load(path string) (*Sequential, Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, Metadata{}, fmt.Errorf("failed to read model: %w", err)
	}
	var file modelFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, Metadata{}, fmt.Errorf("failed to parse model %s: %w", path, err)
	}

	net, err := NewSequential(file.Inputs, 0, file.Layers...)
	if err != nil {
		return nil, Metadata{}, fmt.Errorf("invalid architecture in %s: %w", path, err)
	}

	params := net.params()
	if len(params) != len(file.Weights) {
		return nil, Metadata{}, fmt.Errorf("model %s has %d weight tensors, architecture needs %d",
			path, len(file.Weights), len(params))
	}
	for i, p := range params {
		w := file.Weights[i]
		if w.Name != p.Name || len(w.Values) != len(p.Value) {
			return nil, Metadata{}, fmt.Errorf("weight tensor %d: got %s[%d], want %s[%d]",
				i, w.Name, len(w.Values), p.Name, len(p.Value))
		}
		copy(p.Value, w.Values)
	}

	if n := len(file.Metadata.Classes); n != 0 && n != net.Classes() {
		return nil, Metadata{}, fmt.Errorf("model has %d outputs but metadata lists %d classes", net.Classes(), n)
	}
	return net, file.Metadata, nil
}
