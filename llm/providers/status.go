package providers

import (
	"sync"

	"github.com/BaSui01/llmbridge/llm"
)

// StatusTracker holds a provider's advisory health status. Every adapter
// embeds one and updates it on each initialize/generate/stream/health-check
// outcome. Concurrent updates are last-writer-wins; the status is telemetry
// and never gates dispatch.
type StatusTracker struct {
	mu      sync.Mutex
	status  llm.Status
	lastErr string
}

// NewStatusTracker starts in the unknown state.
func NewStatusTracker() *StatusTracker {
	return &StatusTracker{status: llm.StatusUnknown}
}

// MarkHealthy records a successful round trip.
func (t *StatusTracker) MarkHealthy() {
	t.mu.Lock()
	t.status = llm.StatusHealthy
	t.mu.Unlock()
}

// MarkUnhealthy records a failed round trip and its cause.
func (t *StatusTracker) MarkUnhealthy(err error) {
	t.mu.Lock()
	t.status = llm.StatusUnhealthy
	if err != nil {
		t.lastErr = err.Error()
	}
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy.
func (t *StatusTracker) Snapshot() llm.StatusSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return llm.StatusSnapshot{Status: t.status, LastError: t.lastErr}
}
