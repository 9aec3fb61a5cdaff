package llm

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ProviderState is one entry of a manager status snapshot: advisory health
// plus static capabilities, assembled without any I/O.
type ProviderState struct {
	Status       Status       `json:"status"`
	LastError    string       `json:"last_error,omitempty"`
	Capabilities Capabilities `json:"capabilities"`
}

// Manager owns the provider registry and routes generate/stream requests to
// a target provider, falling back across the configured chain when a
// generate attempt fails. Streams never fail over: once a backend starts
// producing chunks the caller has consumed output that cannot be replayed.
type Manager struct {
	cfg     ManagerConfig
	factory ProviderFactory
	reg     *ProviderRegistry
	logger  *zap.Logger
}

// NewManager creates a Manager from an explicit configuration. Nothing is
// constructed or dialed until Initialize.
func NewManager(cfg ManagerConfig, factory ProviderFactory, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		cfg:     cfg,
		factory: factory,
		reg:     NewProviderRegistry(),
		logger:  logger,
	}
}

// Registry exposes the registry for status assembly and tests.
func (m *Manager) Registry() *ProviderRegistry { return m.reg }

// Initialize constructs and initializes every enabled provider. A single
// provider failing to construct or initialize is logged and excluded; the
// manager itself only fails when zero providers survive. The default and
// fallback names are taken from configuration verbatim, so a default that
// did not survive is only discovered at first dispatch.
func (m *Manager) Initialize(ctx context.Context) error {
	names := make([]string, 0, len(m.cfg.Providers))
	for name := range m.cfg.Providers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		spec := m.cfg.Providers[name]
		if !spec.Enabled {
			m.logger.Info("skipping disabled provider", zap.String("provider", name))
			continue
		}

		p, err := m.factory.CreateProvider(spec.Type, name, spec.Settings)
		if err != nil {
			m.logger.Error("failed to construct provider",
				zap.String("provider", name),
				zap.String("type", spec.Type),
				zap.Error(err))
			continue
		}
		if err := p.Initialize(ctx); err != nil {
			m.logger.Error("failed to initialize provider",
				zap.String("provider", name),
				zap.Error(err))
			continue
		}

		m.reg.Register(name, p)
		m.logger.Info("provider initialized", zap.String("provider", name))
	}

	m.reg.SetDefault(m.cfg.DefaultProvider)
	m.reg.SetFallbacks(m.cfg.FallbackProviders)

	if m.reg.Len() == 0 {
		return InitializationError("", "no providers available")
	}

	m.logger.Info("provider manager initialized",
		zap.Strings("providers", m.reg.List()),
		zap.String("default", m.cfg.DefaultProvider))
	return nil
}

// resolve maps an optional explicit provider name (or the configured
// default) to a registered provider. Resolution failure is a configuration
// error and must happen before any network call.
func (m *Manager) resolve(providerName string) (string, Provider, error) {
	name := providerName
	if name == "" {
		name = m.reg.DefaultName()
	}
	if name == "" {
		return "", nil, ConfigurationError("no provider requested and no default configured")
	}
	p, ok := m.reg.Get(name)
	if !ok {
		return "", nil, ConfigurationError("provider not available: %s", name)
	}
	return name, p, nil
}

// GenerateResponse routes one generate request. The target is providerName
// if given, else the default. On target failure the fallback chain is tried
// strictly sequentially, in configured order, skipping names that are
// unregistered or equal to the already-attempted target; the chain is not
// filtered by capability parity with the request. If every candidate fails,
// the aggregated error carries the recorded cause from each attempt.
func (m *Manager) GenerateResponse(ctx context.Context, messages []Message, callCtx map[string]any, providerName string) (*Response, error) {
	target, p, err := m.resolve(providerName)
	if err != nil {
		return nil, err
	}

	requestID := uuid.NewString()
	resp, err := m.generateOnce(ctx, p, target, requestID, messages, callCtx)
	if err == nil {
		return resp, nil
	}

	m.logger.Warn("provider failed, trying fallback chain",
		zap.String("request_id", requestID),
		zap.String("provider", target),
		zap.Error(err))
	attempts := []Attempt{{Provider: target, Err: err}}

	for _, name := range m.reg.Fallbacks() {
		if name == target {
			continue
		}
		fb, ok := m.reg.Get(name)
		if !ok {
			continue
		}
		observeFailover(target, name)
		resp, err := m.generateOnce(ctx, fb, name, requestID, messages, callCtx)
		if err == nil {
			return resp, nil
		}
		m.logger.Warn("fallback provider failed",
			zap.String("request_id", requestID),
			zap.String("provider", name),
			zap.Error(err))
		attempts = append(attempts, Attempt{Provider: name, Err: err})
	}

	return nil, &AllProvidersFailedError{Attempts: attempts}
}

func (m *Manager) generateOnce(ctx context.Context, p Provider, name, requestID string, messages []Message, callCtx map[string]any) (*Response, error) {
	start := time.Now()
	resp, err := p.Generate(ctx, messages, callCtx)
	observeRequest(name, opGenerate, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	m.logger.Debug("generate succeeded",
		zap.String("request_id", requestID),
		zap.String("provider", name),
		zap.Duration("elapsed", time.Since(start)))
	return resp, nil
}

// StreamResponse routes one streaming request to the resolved target and
// returns its chunk sequence directly. There is no fallback across providers
// for streaming: an establishment failure propagates unchanged, and a
// mid-stream failure surfaces as a terminal chunk, never a silent retry.
func (m *Manager) StreamResponse(ctx context.Context, messages []Message, callCtx map[string]any, providerName string) (<-chan StreamChunk, error) {
	name, p, err := m.resolve(providerName)
	if err != nil {
		return nil, err
	}
	ch, err := p.Stream(ctx, messages, callCtx)
	observeRequest(name, opStream, 0, err)
	if err != nil {
		m.logger.Warn("provider streaming failed",
			zap.String("provider", name),
			zap.Error(err))
		return nil, err
	}
	return ch, nil
}

// ProviderStatuses assembles a read-only snapshot of every registered
// provider: advisory status, last recorded error, and static capabilities.
func (m *Manager) ProviderStatuses() map[string]ProviderState {
	out := make(map[string]ProviderState)
	for name, p := range m.reg.All() {
		snap := p.Status()
		out[name] = ProviderState{
			Status:       snap.Status,
			LastError:    snap.LastError,
			Capabilities: p.Capabilities(),
		}
	}
	return out
}

// HealthCheckAll probes every registered provider concurrently. The result
// always has exactly one entry per provider; a failing probe is captured as
// false and never aborts the overall call.
func (m *Manager) HealthCheckAll(ctx context.Context) map[string]bool {
	providers := m.reg.All()
	results := make(map[string]bool, len(providers))

	var g errgroup.Group
	var mu sync.Mutex
	for name, p := range providers {
		name, p := name, p
		g.Go(func() error {
			start := time.Now()
			healthy := p.HealthCheck(ctx)
			observeHealthCheck(name, healthy, time.Since(start))
			mu.Lock()
			results[name] = healthy
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Shutdown releases every provider best-effort. Individual failures are
// logged and swallowed so teardown always completes, and the registry is
// cleared unconditionally at the end. Safe to call repeatedly.
func (m *Manager) Shutdown() {
	for name, p := range m.reg.All() {
		if err := p.Shutdown(); err != nil {
			m.logger.Error("provider shutdown failed",
				zap.String("provider", name),
				zap.Error(err))
			continue
		}
		m.logger.Info("provider shut down", zap.String("provider", name))
	}
	m.reg.Clear()
	m.logger.Info("provider manager shutdown complete")
}
