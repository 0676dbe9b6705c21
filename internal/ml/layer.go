package ml

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Layer types and activations understood by LayerConfig.
const (
	LayerDense   = "dense"
	LayerDropout = "dropout"

	ActivationReLU    = "relu"
	ActivationSoftmax = "softmax"
	ActivationLinear  = "linear"
)

// LayerConfig describes one layer of a Sequential network.
type LayerConfig struct {
	Type       string  `json:"type"`
	Units      int     `json:"units,omitempty"`
	Activation string  `json:"activation,omitempty"`
	Rate       float64 `json:"rate,omitempty"`
}

// Dense returns the config for a fully connected layer.
func Dense(units int, activation string) LayerConfig {
	return LayerConfig{Type: LayerDense, Units: units, Activation: activation}
}

// Dropout returns the config for a dropout layer.
func Dropout(rate float64) LayerConfig {
	return LayerConfig{Type: LayerDropout, Rate: rate}
}

func (c LayerConfig) String() string {
	switch c.Type {
	case LayerDense:
		return fmt.Sprintf("Dense(%d, %s)", c.Units, c.Activation)
	case LayerDropout:
		return fmt.Sprintf("Dropout(%.2f)", c.Rate)
	default:
		return c.Type
	}
}

// Param is a flat view of a trainable tensor and its gradient.
type Param struct {
	Name  string
	Value []float64
	Grad  []float64
}

// Layer is one stage of the network. Forward caches whatever Backward needs,
// so calls must alternate Forward, Backward for each batch.
type Layer interface {
	Forward(x *mat.Dense, training bool) *mat.Dense
	Backward(grad *mat.Dense) *mat.Dense
	Params() []Param
	Config() LayerConfig
	OutputUnits() int
}

type denseLayer struct {
	cfg  LayerConfig
	in   int
	w    *mat.Dense // in x units
	b    []float64
	dw   *mat.Dense
	db   []float64
	x    *mat.Dense
	out  *mat.Dense
	name string
}

func newDense(cfg LayerConfig, in int, rng *rand.Rand, name string) *denseLayer {
	// Glorot uniform weights, zero biases
	limit := math.Sqrt(6 / float64(in+cfg.Units))
	data := make([]float64, in*cfg.Units)
	for i := range data {
		data[i] = (rng.Float64()*2 - 1) * limit
	}
	return &denseLayer{
		cfg:  cfg,
		in:   in,
		w:    mat.NewDense(in, cfg.Units, data),
		b:    make([]float64, cfg.Units),
		dw:   mat.NewDense(in, cfg.Units, nil),
		db:   make([]float64, cfg.Units),
		name: name,
	}
}

func (l *denseLayer) Forward(x *mat.Dense, training bool) *mat.Dense {
	rows, _ := x.Dims()
	out := mat.NewDense(rows, l.cfg.Units, nil)
	out.Mul(x, l.w)
	for i := 0; i < rows; i++ {
		row := out.RawRowView(i)
		for j := range row {
			row[j] += l.b[j]
		}
		switch l.cfg.Activation {
		case ActivationReLU:
			for j, v := range row {
				if v < 0 {
					row[j] = 0
				}
			}
		case ActivationSoftmax:
			softmax(row)
		}
	}
	l.x, l.out = x, out
	return out
}

// Backward takes the gradient with respect to the layer output. For a
// softmax layer it must already be the gradient with respect to the logits,
// which is what the cross-entropy loss produces.
func (l *denseLayer) Backward(grad *mat.Dense) *mat.Dense {
	dz := grad
	if l.cfg.Activation == ActivationReLU {
		rows, cols := grad.Dims()
		dz = mat.NewDense(rows, cols, nil)
		dz.Apply(func(i, j int, v float64) float64 {
			if l.out.At(i, j) <= 0 {
				return 0
			}
			return v
		}, grad)
	}

	l.dw.Mul(l.x.T(), dz)
	rows, _ := dz.Dims()
	for j := range l.db {
		l.db[j] = 0
	}
	for i := 0; i < rows; i++ {
		for j, v := range dz.RawRowView(i) {
			l.db[j] += v
		}
	}

	var dx mat.Dense
	dx.Mul(dz, l.w.T())
	return &dx
}

func (l *denseLayer) Params() []Param {
	return []Param{
		{Name: l.name + "/kernel", Value: l.w.RawMatrix().Data, Grad: l.dw.RawMatrix().Data},
		{Name: l.name + "/bias", Value: l.b, Grad: l.db},
	}
}

func (l *denseLayer) Config() LayerConfig { return l.cfg }
func (l *denseLayer) OutputUnits() int    { return l.cfg.Units }

type dropoutLayer struct {
	cfg   LayerConfig
	units int
	rng   *rand.Rand
	mask  *mat.Dense
}

func (l *dropoutLayer) Forward(x *mat.Dense, training bool) *mat.Dense {
	if !training || l.cfg.Rate == 0 {
		l.mask = nil
		return x
	}
	rows, cols := x.Dims()
	keep := 1 - l.cfg.Rate
	l.mask = mat.NewDense(rows, cols, nil)
	l.mask.Apply(func(i, j int, _ float64) float64 {
		if l.rng.Float64() < keep {
			return 1 / keep
		}
		return 0
	}, l.mask)

	out := mat.NewDense(rows, cols, nil)
	out.MulElem(x, l.mask)
	return out
}

func (l *dropoutLayer) Backward(grad *mat.Dense) *mat.Dense {
	if l.mask == nil {
		return grad
	}
	rows, cols := grad.Dims()
	out := mat.NewDense(rows, cols, nil)
	out.MulElem(grad, l.mask)
	return out
}

func (l *dropoutLayer) Params() []Param     { return nil }
func (l *dropoutLayer) Config() LayerConfig { return l.cfg }
func (l *dropoutLayer) OutputUnits() int    { return l.units }

func softmax(row []float64) {
	hi := math.Inf(-1)
	for _, v := range row {
		if v > hi {
			hi = v
		}
	}
	var sum float64
	for j, v := range row {
		row[j] = math.Exp(v - hi)
		sum += row[j]
	}
	for j := range row {
		row[j] /= sum
	}
}
