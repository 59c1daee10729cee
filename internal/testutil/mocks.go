package testutil

import (
	"context"
	"sync"
	"time"

	"flashback/internal/models"
	"flashback/internal/providers"
)

// MockLogger implements providers.Logger and records calls.
type MockLogger struct {
	mu   sync.Mutex
	Logs []LogEntry
}

type LogEntry struct {
	Level  string
	Type   providers.TypeEnum
	Format string
	Args   []interface{}
}

func (m *MockLogger) record(level string, t providers.TypeEnum, format string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Logs = append(m.Logs, LogEntry{Level: level, Type: t, Format: format, Args: args})
}

func (m *MockLogger) Errorf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("error", t, format, args...)
}
func (m *MockLogger) Warnf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("warn", t, format, args...)
}
func (m *MockLogger) Debugf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("debug", t, format, args...)
}
func (m *MockLogger) Infof(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("info", t, format, args...)
}
func (m *MockLogger) Fatalf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("fatal", t, format, args...)
}
func (m *MockLogger) Close() {}

// Count returns how many entries were logged at level.
func (m *MockLogger) Count(level string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.Logs {
		if e.Level == level {
			n++
		}
	}
	return n
}

// MockCache implements providers.CacheProviderInterface.
type MockCache struct {
	mu   sync.Mutex
	Data map[string][]byte
}

func NewMockCache() *MockCache {
	return &MockCache{Data: make(map[string][]byte)}
}

func (m *MockCache) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.Data[key]
	return val, ok
}

func (m *MockCache) Set(key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Data[key] = value
}

// MockCompressor implements interfaces.CompressorInterface with injectable behavior.
type MockCompressor struct {
	CompressFn   func([]byte) ([]byte, error)
	DecompressFn func([]byte) ([]byte, error)
}

func (m *MockCompressor) Compress(val []byte) ([]byte, error) {
	if m.CompressFn != nil {
		return m.CompressFn(val)
	}
	// Default: return as-is (identity)
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

func (m *MockCompressor) Decompress(val []byte) ([]byte, error) {
	if m.DecompressFn != nil {
		return m.DecompressFn(val)
	}
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

func (m *MockCompressor) Close() {}

// MockMetrics implements providers.MetricsProviderInterface and counts
// generation outcomes.
type MockMetrics struct {
	mu          sync.Mutex
	Generations map[string]int
	Inflight    int
	MaxInflight int
	Persisted   int
}

func (m *MockMetrics) IncRequestsTotal(_ string, _ int)                 {}
func (m *MockMetrics) ObserveRequestDuration(_ string, _ time.Duration) {}
func (m *MockMetrics) ObserveResponseSize(_ string, _ int)              {}
func (m *MockMetrics) IncCacheHits(_ string)                            {}
func (m *MockMetrics) IncCacheMisses(_ string)                          {}
func (m *MockMetrics) ObservePersistenceDuration(_ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Persisted++
}
func (m *MockMetrics) IncGenerations(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Generations == nil {
		m.Generations = make(map[string]int)
	}
	m.Generations[outcome]++
}
func (m *MockMetrics) ObserveGenerationDuration(_ time.Duration) {}
func (m *MockMetrics) IncInflight() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Inflight++
	m.MaxInflight = max(m.MaxInflight, m.Inflight)
}
func (m *MockMetrics) DecInflight() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Inflight--
}

func (m *MockMetrics) GenerationCount(outcome string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Generations[outcome]
}

// MockGenerator implements services.ImageGeneratorInterface. GenerateFn
// decides per request; without it every call returns a tiny PNG.
type MockGenerator struct {
	mu         sync.Mutex
	GenerateFn func(ctx context.Context, req *models.GenerationRequest) (*models.Image, error)
	Calls      []*models.GenerationRequest
	CallTimes  []time.Time
}

func (m *MockGenerator) Generate(ctx context.Context, req *models.GenerationRequest) (*models.Image, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, req)
	m.CallTimes = append(m.CallTimes, time.Now())
	fn := m.GenerateFn
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	return &models.Image{Data: TinyPNG(), MimeType: "image/png", Width: 1, Height: 1}, nil
}

func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// Decades returns the decades requested so far, in call order.
func (m *MockGenerator) Decades() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.Calls))
	for i, c := range m.Calls {
		out[i] = c.Decade
	}
	return out
}
