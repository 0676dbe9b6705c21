package metrics

import "github.com/prometheus/client_golang/prometheus"

// Interfaces for metrics to avoid circular imports
type MetricsCounter interface {
	Inc()
	Add(float64)
}

type MetricsGauge interface {
	Set(float64)
	Add(float64)
}

type MetricsHistogram interface {
	Observe(float64)
}

// MetricsWrapper adapts Metrics to the narrow interfaces the commands and
// the ml and detector packages expect.
type MetricsWrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *MetricsWrapper {
	return &MetricsWrapper{m: m}
}

// dataset

func (w *MetricsWrapper) RowsLoaded() MetricsCounter {
	return &CounterWrapper{w.m.RowsLoaded}
}

func (w *MetricsWrapper) RowsKept() MetricsCounter {
	return &CounterWrapper{w.m.RowsKept}
}

func (w *MetricsWrapper) Denominations() MetricsGauge {
	return &GaugeWrapper{w.m.Denominations}
}

// evaluation

func (w *MetricsWrapper) ModelParams() MetricsGauge {
	return &GaugeWrapper{w.m.ModelParams}
}

func (w *MetricsWrapper) TestLoss() MetricsGauge {
	return &GaugeWrapper{w.m.TestLoss}
}

func (w *MetricsWrapper) TestAccuracy() MetricsGauge {
	return &GaugeWrapper{w.m.TestAccuracy}
}

func (w *MetricsWrapper) Errors() MetricsCounter {
	return &CounterWrapper{w.m.ErrorsTotal}
}

func (w *MetricsWrapper) EpochDuration() MetricsHistogram {
	return &HistogramWrapper{w.m.EpochDuration}
}

// training loop

func (w *MetricsWrapper) TrainingEpochsInc() {
	w.m.TrainingEpochs.Inc()
}

func (w *MetricsWrapper) EpochDurationObserve(seconds float64) {
	w.EpochDuration().Observe(seconds)
}

func (w *MetricsWrapper) TrainLossSet(v float64) {
	w.m.TrainLoss.Set(v)
}

func (w *MetricsWrapper) TrainAccuracySet(v float64) {
	w.m.TrainAccuracy.Set(v)
}

func (w *MetricsWrapper) ValidationLossSet(v float64) {
	w.m.ValidationLoss.Set(v)
}

func (w *MetricsWrapper) ValidationAccuracySet(v float64) {
	w.m.ValidationAccuracy.Set(v)
}

// detector trainer

func (w *MetricsWrapper) DetectorRunsInc() {
	w.m.DetectorRuns.Inc()
}

func (w *MetricsWrapper) DetectorFailuresInc() {
	w.m.DetectorFailures.Inc()
}

func (w *MetricsWrapper) DetectorDurationObserve(seconds float64) {
	w.m.DetectorDuration.Observe(seconds)
}

type CounterWrapper struct {
	c prometheus.Counter
}

func (cw *CounterWrapper) Inc() {
	cw.c.Inc()
}

func (cw *CounterWrapper) Add(v float64) {
	cw.c.Add(v)
}

type GaugeWrapper struct {
	g prometheus.Gauge
}

func (gw *GaugeWrapper) Set(v float64) {
	gw.g.Set(v)
}

func (gw *GaugeWrapper) Add(v float64) {
	gw.g.Add(v)
}

type HistogramWrapper struct {
	h prometheus.Histogram
}

func (hw *HistogramWrapper) Observe(v float64) {
	hw.h.Observe(v)
}
