/*
Package llm presents a single unified interface over multiple heterogeneous
language-model backends, so a calling orchestration layer can issue generate
and stream requests without knowing which backend answers them.

# Core pieces

  - [Provider]: the contract each backend adapter implements, covering
    Initialize / Generate / Stream / Capabilities / HealthCheck / Shutdown.
  - [ProviderRegistry]: the named collection of initialized providers plus
    the designated default and the ordered fallback list.
  - [Manager]: resolves each request to a provider, retries generate calls
    across the fallback chain, aggregates health probes, and tears
    everything down.

# Failure semantics

Generate calls are single attempts at the provider layer; the manager alone
retries, strictly sequentially across the fallback chain, and surfaces an
[AllProvidersFailedError] carrying every attempt's cause once the chain is
exhausted. Streaming requests never fail over: an establishment failure
propagates unchanged, and a mid-stream failure ends the chunk sequence with
a terminal [StreamChunk] whose Err field is set.

Provider status is advisory telemetry. It moves as a side effect of use and
explicit probes, and is never consulted to gate dispatch.

Adapters live in llm/providers; construction from configuration type tags is
handled by llm/factory.
*/
package llm
