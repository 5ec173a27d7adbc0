package metrics

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
//
// Labeled counters are keyed "<metric>:<label>[:<label>]", for example
// "login:success" or "notification:password_reset:sent".
type Snapshot struct {
	Counters            map[string]uint64
	HashDurationCount   uint64
	HashDurationTotalNs int64
}

// Count returns the value of a labeled counter, zero when it never fired.
func (s Snapshot) Count(key string) uint64 {
	return s.Counters[key]
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	mu       sync.Mutex
	counters map[string]uint64

	hashDurationCount   uint64
	hashDurationTotalNs int64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{counters: make(map[string]uint64)}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	counters := make(map[string]uint64, len(m.counters))
	for k, v := range m.counters {
		counters[k] = v
	}
	m.mu.Unlock()

	return Snapshot{
		Counters:            counters,
		HashDurationCount:   atomic.LoadUint64(&m.hashDurationCount),
		HashDurationTotalNs: atomic.LoadInt64(&m.hashDurationTotalNs),
	}
}

func (m *InMemoryRecorder) inc(key string) {
	m.mu.Lock()
	m.counters[key]++
	m.mu.Unlock()
}

// IncRegistration increments the registration counter for outcome.
func (m *InMemoryRecorder) IncRegistration(outcome string) {
	m.inc("registration:" + outcome)
}

// IncLogin increments the login counter for outcome.
func (m *InMemoryRecorder) IncLogin(outcome string) {
	m.inc("login:" + outcome)
}

// ObserveHashDuration records time spent deriving a password hash.
func (m *InMemoryRecorder) ObserveHashDuration(duration time.Duration) {
	atomic.AddUint64(&m.hashDurationCount, 1)
	atomic.AddInt64(&m.hashDurationTotalNs, duration.Nanoseconds())
}

// IncPasswordResetRequest increments the forgot-password counter.
func (m *InMemoryRecorder) IncPasswordResetRequest(outcome string) {
	m.inc("password_reset_request:" + outcome)
}

// IncPasswordReset increments the completed-reset counter.
func (m *InMemoryRecorder) IncPasswordReset(outcome string) {
	m.inc("password_reset:" + outcome)
}

// IncIntegrationCreated increments the integration create counter.
func (m *InMemoryRecorder) IncIntegrationCreated(outcome string) {
	m.inc("integration_created:" + outcome)
}

// IncIntegrationUpdated increments integration updated counter.
func (m *InMemoryRecorder) IncIntegrationUpdated() {
	m.inc("integration_updated")
}

// IncIntegrationDeleted increments integration deleted counter.
func (m *InMemoryRecorder) IncIntegrationDeleted() {
	m.inc("integration_deleted")
}

// IncAPIKeyRegenerated increments the key rotation counter.
func (m *InMemoryRecorder) IncAPIKeyRegenerated() {
	m.inc("api_key_regenerated")
}

// IncAPIKeyValidation increments the API key validation counter.
func (m *InMemoryRecorder) IncAPIKeyValidation(outcome string, cacheHit bool) {
	m.inc("api_key_validation:" + outcome + ":" + strconv.FormatBool(cacheHit))
}

// IncNotification increments the notification counter.
func (m *InMemoryRecorder) IncNotification(kind, outcome string) {
	m.inc("notification:" + kind + ":" + outcome)
}
