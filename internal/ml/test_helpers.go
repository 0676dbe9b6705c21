package ml

import "sync"

// MockMetrics implements MetricsInterface for testing
type MockMetrics struct {
	mu            sync.Mutex
	epochs        int
	durations     []float64
	trainLoss     float64
	trainAccuracy float64
	valLoss       float64
	valAccuracy   float64
	valUpdates    int
}

func (m *MockMetrics) TrainingEpochsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.epochs++
}

func (m *MockMetrics) EpochDurationObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.durations = append(m.durations, v)
}

func (m *MockMetrics) TrainLossSet(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trainLoss = v
}

func (m *MockMetrics) TrainAccuracySet(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trainAccuracy = v
}

func (m *MockMetrics) ValidationLossSet(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.valLoss = v
	m.valUpdates++
}

func (m *MockMetrics) ValidationAccuracySet(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.valAccuracy = v
}
