package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewProviderRegistry()
	p := &fakeProvider{name: "a"}
	r.Register("a", p)

	got, ok := r.Get("a")
	require.True(t, ok)
	assert.Same(t, p, got)

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestRegistryRegisterReplacesSameName(t *testing.T) {
	r := NewProviderRegistry()
	r.Register("a", &fakeProvider{name: "old"})
	replacement := &fakeProvider{name: "new"}
	r.Register("a", replacement)

	got, ok := r.Get("a")
	require.True(t, ok)
	assert.Same(t, replacement, got)
	assert.Equal(t, 1, r.Len())
}

func TestRegistryDefaultIsRecordedVerbatim(t *testing.T) {
	r := NewProviderRegistry()
	// The default may name a provider that was never registered; resolution
	// happens at dispatch time.
	r.SetDefault("never-registered")
	assert.Equal(t, "never-registered", r.DefaultName())
}

func TestRegistryFallbacksAreCopied(t *testing.T) {
	r := NewProviderRegistry()
	in := []string{"b", "c"}
	r.SetFallbacks(in)
	in[0] = "mutated"

	out := r.Fallbacks()
	assert.Equal(t, []string{"b", "c"}, out)

	out[1] = "mutated"
	assert.Equal(t, []string{"b", "c"}, r.Fallbacks())
}

func TestRegistryListIsSorted(t *testing.T) {
	r := NewProviderRegistry()
	r.Register("zeta", &fakeProvider{name: "zeta"})
	r.Register("alpha", &fakeProvider{name: "alpha"})
	r.Register("mid", &fakeProvider{name: "mid"})
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, r.List())
}

func TestRegistryClear(t *testing.T) {
	r := NewProviderRegistry()
	r.Register("a", &fakeProvider{name: "a"})
	r.SetDefault("a")
	r.SetFallbacks([]string{"a"})

	r.Clear()
	assert.Equal(t, 0, r.Len())
	assert.Empty(t, r.DefaultName())
	assert.Empty(t, r.Fallbacks())
}
