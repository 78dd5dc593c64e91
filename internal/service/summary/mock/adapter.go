// Package mock provides a summarization adapter that returns deterministic
// canned handoff material, for development and tests without an AI provider.
package mock

import (
	"context"
	"fmt"
	"sync"

	"warm-transfer-service/internal/service/summary"
)

// CannedSummaries provides sample handoff summaries the adapter cycles
// through.
var CannedSummaries = []string{
	"Customer called about a billing discrepancy on their latest invoice. Account verified; a duplicate charge was identified and a refund request has been started. Customer is calm but wants confirmation of the refund timeline.",
	"Customer wants to cancel their subscription before the next renewal date. Retention offers were declined. Cancellation steps are pending account-owner verification. Customer is firm but polite.",
	"Customer reported being unable to log in after a password reset. Reset email confirmed as delivered; the account appears locked by repeated attempts. Needs an unlock and a guided reset. Customer is mildly frustrated.",
}

// Adapter implements summary.Generator with canned responses. Safe for
// concurrent use; each call advances the cycle.
type Adapter struct {
	mu   sync.Mutex
	next int

	// FailWith, when set, makes every Generate call fail. Used in tests to
	// exercise the soft-failure fallback path.
	FailWith error
}

// New creates a new mock summarization adapter.
func New() *Adapter {
	return &Adapter{}
}

// Generate returns the next canned summary with a templated script.
func (a *Adapter) Generate(_ context.Context, req summary.Request) (summary.Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.FailWith != nil {
		return summary.Result{}, a.FailWith
	}

	s := CannedSummaries[a.next%len(CannedSummaries)]
	a.next++

	return summary.Result{
		Summary: s,
		Script: fmt.Sprintf("Hi %s, I have %s on the line. Quick rundown before I bring them over: %s I'll transfer them to you now.",
			req.AgentB, req.CallerName, s),
	}, nil
}
