package summary

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// fallbackExcerptLen caps how much raw transcript the fallback summary
// carries. Enough for a verbal handoff, short enough to read in one breath.
const fallbackExcerptLen = 400

// Fallback builds a deterministic summary and briefing script without any
// AI provider. It is substituted whenever the provider fails or no
// transcript exists, so transfer initiation never blocks on summarization.
func Fallback(req Request) Result {
	caller := req.CallerName
	if caller == "" {
		caller = "the caller"
	}
	agentB := req.AgentB
	if agentB == "" {
		agentB = "there"
	}

	transcript := strings.TrimSpace(req.Transcript)
	if transcript == "" {
		return Result{
			Summary: "No call context available.",
			Script:  fmt.Sprintf("Hi %s, I'm transferring %s to you. Please take over the call.", agentB, caller),
		}
	}

	excerpt := truncate(transcript, fallbackExcerptLen)
	return Result{
		Summary: fmt.Sprintf("Transcript excerpt for %s: %s", caller, excerpt),
		Script: fmt.Sprintf("Hi %s, I have %s on the line for you. Here's what's been discussed so far: %s. I'll transfer them over to you now.",
			agentB, caller, excerpt),
	}
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + "..."
}
