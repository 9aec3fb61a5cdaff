// Package providers holds the plumbing shared by all backend adapters:
// HTTP-status-to-error-class mapping, error-body extraction, the common
// {role, content} message shape, credential resolution, and the advisory
// status tracker. The adapters themselves live in the per-backend
// subpackages (ollama, openai, anthropic).
package providers
