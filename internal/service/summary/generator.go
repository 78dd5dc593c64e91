// Package summary defines the interface for AI summarization providers that
// turn a call transcript into a handoff summary and a briefing script for
// Agent A to read to Agent B.
package summary

import (
	"context"
	"encoding/json"
)

// Request carries the material a provider needs to build handoff content.
type Request struct {
	Transcript string
	CallerName string
	AgentB     string
	// Opaque caller metadata, passed through for prompt context only.
	CallerInfo json.RawMessage
}

// Result is the provider output.
type Result struct {
	Summary string `json:"summary"`
	Script  string `json:"agent_script"`
}

// Generator defines the interface for summarization providers
// (OpenRouter, mock, etc.). Providers may fail; callers are expected to
// substitute Fallback rather than propagate the error.
type Generator interface {
	// Generate produces a summary and briefing script from a transcript.
	Generate(ctx context.Context, req Request) (Result, error)
}
