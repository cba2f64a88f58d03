package dedup

import (
	"context"
	"sync"
	"time"
)

type memoryRecord struct {
	outcome    Outcome
	receivedAt time.Time
}

// Memory is an in-process Store for single-node deployments and tests.
// A background janitor evicts records past the retention window.
type Memory struct {
	retention time.Duration

	mu      sync.Mutex
	records map[string]*memoryRecord

	janitorStop chan struct{}
	janitorDone chan struct{}
}

// NewMemory returns a memory store with the given retention window
// (DefaultRetention when zero). Call StartJanitor to enable eviction.
func NewMemory(retention time.Duration) *Memory {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Memory{
		retention: retention,
		records:   make(map[string]*memoryRecord),
	}
}

func key(provider Provider, deliveryID string) string {
	return string(provider) + ":" + deliveryID
}

func (m *Memory) Reserve(_ context.Context, provider Provider, deliveryID string) (bool, Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key(provider, deliveryID)
	if rec, ok := m.records[k]; ok {
		return false, rec.outcome, nil
	}
	m.records[k] = &memoryRecord{outcome: OutcomeReceived, receivedAt: time.Now()}
	return true, "", nil
}

func (m *Memory) SetOutcome(_ context.Context, provider Provider, deliveryID string, outcome Outcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key(provider, deliveryID)
	if rec, ok := m.records[k]; ok {
		rec.outcome = outcome
		return nil
	}
	m.records[k] = &memoryRecord{outcome: outcome, receivedAt: time.Now()}
	return nil
}

func (m *Memory) Outcome(_ context.Context, provider Provider, deliveryID string) (Outcome, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[key(provider, deliveryID)]
	if !ok {
		return "", false, nil
	}
	return rec.outcome, true, nil
}

// StartJanitor launches a background goroutine that periodically evicts
// records older than the retention window. Call Close to shut it down.
func (m *Memory) StartJanitor(sweepInterval time.Duration) {
	if sweepInterval <= 0 {
		sweepInterval = time.Hour
	}
	m.janitorStop = make(chan struct{})
	m.janitorDone = make(chan struct{})

	go func() {
		defer close(m.janitorDone)
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-m.janitorStop:
				return
			case <-ticker.C:
				m.sweep(time.Now())
			}
		}
	}()
}

func (m *Memory) sweep(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, rec := range m.records {
		if now.Sub(rec.receivedAt) > m.retention {
			delete(m.records, k)
		}
	}
}

func (m *Memory) Close() error {
	if m.janitorStop != nil {
		close(m.janitorStop)
		<-m.janitorDone
		m.janitorStop = nil
		m.janitorDone = nil
	}
	return nil
}
