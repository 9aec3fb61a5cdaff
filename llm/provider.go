package llm

import "context"

// Role identifies the author of a Message. The set is closed: adapters only
// ever forward system/user/assistant to their backends.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is the wire-neutral request shape all provider adapters translate
// from. Treat it as immutable once constructed.
type Message struct {
	Role     Role           `json:"role"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Response is the wire-neutral reply shape all provider adapters translate
// to. A generate call produces exactly one; a stream call produces one
// partial Response worth of content per chunk.
type Response struct {
	Content      string         `json:"content"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	FinishReason string         `json:"finish_reason,omitempty"`
}

// StreamChunk is one element of a streaming response sequence. Content is
// incremental; FinishReason is set only on the terminal chunk. A non-nil Err
// marks the chunk as a terminal failure: no further chunks follow and the
// partial output already delivered cannot be replayed.
type StreamChunk struct {
	Content      string         `json:"content,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	FinishReason string         `json:"finish_reason,omitempty"`
	Err          *Error         `json:"error,omitempty"`
}

// Capabilities describes the static feature set of a provider. It is a pure
// function of configuration: no I/O, no lifecycle.
type Capabilities struct {
	SupportsStreaming       bool `json:"supports_streaming"`
	SupportsFunctionCalling bool `json:"supports_function_calling"`
	SupportsVision          bool `json:"supports_vision"`
	MaxTokens               int  `json:"max_tokens,omitempty"`
	ContextWindow           int  `json:"context_window,omitempty"`
}

// Status is the advisory health state of a provider. It moves on every
// initialize/generate/stream/health-check outcome and is never used to gate
// dispatch.
type Status string

const (
	StatusUnknown   Status = "unknown"
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
)

// StatusSnapshot is a point-in-time copy of a provider's advisory status.
type StatusSnapshot struct {
	Status    Status `json:"status"`
	LastError string `json:"last_error,omitempty"`
}

// Provider is the unified contract implemented by one adapter per backend
// family. Each adapter exclusively owns its underlying network client: the
// client is established in Initialize and released in Shutdown.
type Provider interface {
	// Name returns the unique registry key this provider was constructed for.
	Name() string

	// Initialize establishes the backend connection and runs a health probe.
	// The manager calls it exactly once per provider; it is not required to
	// be idempotent. A missing credential or a failed probe yields an
	// initialization Error.
	Initialize(ctx context.Context) error

	// Generate performs one synchronous round trip. A single attempt: retry
	// across providers is the manager's job, not the adapter's. Failures are
	// classified Errors (auth, rate-limit, network, protocol) and recorded
	// into status.
	Generate(ctx context.Context, messages []Message, callCtx map[string]any) (*Response, error)

	// Stream opens a streaming round trip and returns a finite,
	// non-restartable chunk sequence. The error return covers failure to
	// establish the stream; after the first chunk, failures surface as a
	// terminal chunk with Err set. Cancelling ctx closes the underlying
	// connection promptly.
	Stream(ctx context.Context, messages []Message, callCtx map[string]any) (<-chan StreamChunk, error)

	// Capabilities reports static feature metadata. Never fails, no I/O.
	Capabilities() Capabilities

	// HealthCheck performs a minimal round trip. It never propagates a
	// failure: any error is recorded into status and surfaces as false.
	HealthCheck(ctx context.Context) bool

	// Status returns the current advisory status snapshot.
	Status() StatusSnapshot

	// Shutdown releases the owned network resource. Safe to call repeatedly
	// and safe to call even if Initialize never completed.
	Shutdown() error
}
