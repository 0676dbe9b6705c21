package ml

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Sequential is a feed-forward stack of layers ending in a softmax
// classifier.
type Sequential struct {
	Inputs int
	Layers []Layer
	rng    *rand.Rand
}

// LayerSummary is one row of Sequential.Summary.
type LayerSummary struct {
	Name        string
	Type        string
	OutputShape string
	Params      int
}

// NewSequential builds and initialises a network. The seed drives weight
// initialisation, dropout masks and batch shuffling.
func NewSequential(inputs int, seed int64, layers ...LayerConfig) (*Sequential, error) {
	if inputs <= 0 {
		return nil, fmt.Errorf("network needs at least one input, got %d", inputs)
	}
	if len(layers) == 0 {
		return nil, fmt.Errorf("network needs at least one layer")
	}
	last := layers[len(layers)-1]
	if last.Type != LayerDense || last.Activation != ActivationSoftmax {
		return nil, fmt.Errorf("last layer must be a softmax dense layer, got %s", last)
	}

	net := &Sequential{Inputs: inputs, rng: rand.New(rand.NewSource(seed))}
	units := inputs
	dense := 0
	for i, cfg := range layers {
		switch cfg.Type {
		case LayerDense:
			if cfg.Units <= 0 {
				return nil, fmt.Errorf("layer %d: dense units must be positive, got %d", i, cfg.Units)
			}
			switch cfg.Activation {
			case ActivationReLU, ActivationSoftmax, ActivationLinear:
			default:
				return nil, fmt.Errorf("layer %d: unsupported activation %q", i, cfg.Activation)
			}
			if cfg.Activation == ActivationSoftmax && i != len(layers)-1 {
				return nil, fmt.Errorf("layer %d: softmax is only supported on the output layer", i)
			}
			dense++
			net.Layers = append(net.Layers, newDense(cfg, units, net.rng, fmt.Sprintf("dense_%d", dense)))
			units = cfg.Units
		case LayerDropout:
			if cfg.Rate < 0 || cfg.Rate >= 1 {
				return nil, fmt.Errorf("layer %d: dropout rate must be in [0, 1), got %f", i, cfg.Rate)
			}
			net.Layers = append(net.Layers, &dropoutLayer{cfg: cfg, units: units, rng: net.rng})
		default:
			return nil, fmt.Errorf("layer %d: unknown layer type %q", i, cfg.Type)
		}
	}
	return net, nil
}

// Classes returns the width of the output layer.
func (n *Sequential) Classes() int {
	return n.Layers[len(n.Layers)-1].OutputUnits()
}

// Summary lists each layer with its output shape and parameter count.
func (n *Sequential) Summary() []LayerSummary {
	out := make([]LayerSummary, 0, len(n.Layers))
	dropouts := 0
	for _, l := range n.Layers {
		s := LayerSummary{
			Type:        l.Config().Type,
			OutputShape: fmt.Sprintf("(None, %d)", l.OutputUnits()),
		}
		for _, p := range l.Params() {
			s.Params += len(p.Value)
		}
		if d, ok := l.(*denseLayer); ok {
			s.Name = d.name
		} else {
			dropouts++
			s.Name = fmt.Sprintf("dropout_%d", dropouts)
		}
		out = append(out, s)
	}
	return out
}

// ParamCount returns the total number of trainable parameters.
func (n *Sequential) ParamCount() int {
	total := 0
	for _, s := range n.Summary() {
		total += s.Params
	}
	return total
}

func (n *Sequential) params() []Param {
	var ps []Param
	for _, l := range n.Layers {
		ps = append(ps, l.Params()...)
	}
	return ps
}

func (n *Sequential) forward(x *mat.Dense, training bool) *mat.Dense {
	out := x
	for _, l := range n.Layers {
		out = l.Forward(out, training)
	}
	return out
}

func (n *Sequential) backward(grad *mat.Dense) {
	for i := len(n.Layers) - 1; i >= 0; i-- {
		grad = n.Layers[i].Backward(grad)
	}
}

// PredictProba returns class probabilities for each row.
func (n *Sequential) PredictProba(x [][]float64) ([][]float64, error) {
	batch, err := n.toMatrix(x)
	if err != nil {
		return nil, err
	}
	probs := n.forward(batch, false)
	out := make([][]float64, len(x))
	for i := range out {
		out[i] = append([]float64(nil), probs.RawRowView(i)...)
	}
	return out, nil
}

// Predict returns the most likely class index for each row.
func (n *Sequential) Predict(x [][]float64) ([]int, error) {
	probs, err := n.PredictProba(x)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(probs))
	for i, p := range probs {
		out[i] = argmax(p)
	}
	return out, nil
}

func (n *Sequential) toMatrix(x [][]float64) (*mat.Dense, error) {
	if len(x) == 0 {
		return nil, fmt.Errorf("no rows")
	}
	data := make([]float64, 0, len(x)*n.Inputs)
	for i, row := range x {
		if len(row) != n.Inputs {
			return nil, fmt.Errorf("row %d has %d features, network expects %d", i, len(row), n.Inputs)
		}
		data = append(data, row...)
	}
	return mat.NewDense(len(x), n.Inputs, data), nil
}

func argmax(row []float64) int {
	best := 0
	for j, v := range row {
		if v > row[best] {
			best = j
		}
	}
	return best
}
