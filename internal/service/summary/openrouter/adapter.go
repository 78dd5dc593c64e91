// Package openrouter provides a summarization adapter backed by the
// OpenRouter chat-completions API.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"warm-transfer-service/internal/service/summary"
)

const defaultBaseURL = "https://openrouter.ai/api/v1"

const summarySystemPrompt = `You are an expert call center supervisor creating handoff summaries for warm transfers.
Create a concise, professional summary that includes:
1. Customer's main concern/request
2. Key details discussed
3. Current status/progress
4. Recommended next steps
5. Customer sentiment/mood

Keep it under 150 words for quick verbal handoff.`

const scriptSystemPrompt = "You create natural conversation scripts for call center warm transfers. Make them sound conversational and professional."

// Config holds adapter configuration.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// Adapter implements summary.Generator using OpenRouter.
type Adapter struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// New creates an OpenRouter adapter. The API key must be non-empty; callers
// should fall back to another generator when it is not configured.
func New(cfg Config) *Adapter {
	model := cfg.Model
	if model == "" {
		model = "meta-llama/llama-3.1-8b-instruct"
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Adapter{
		apiKey:  cfg.APIKey,
		model:   model,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Generate produces a handoff summary and a briefing script with two
// chat-completion calls. Any provider failure is returned to the caller,
// which substitutes the deterministic fallback.
func (a *Adapter) Generate(ctx context.Context, req summary.Request) (summary.Result, error) {
	if a.apiKey == "" {
		return summary.Result{}, fmt.Errorf("openrouter: api key not configured")
	}

	summaryText, err := a.complete(ctx, summarySystemPrompt, summaryUserPrompt(req), 0.3, 200)
	if err != nil {
		return summary.Result{}, fmt.Errorf("openrouter: summary: %w", err)
	}

	script, err := a.complete(ctx, scriptSystemPrompt, scriptUserPrompt(req, summaryText), 0.4, 300)
	if err != nil {
		return summary.Result{}, fmt.Errorf("openrouter: script: %w", err)
	}

	return summary.Result{Summary: summaryText, Script: script}, nil
}

func summaryUserPrompt(req summary.Request) string {
	var b strings.Builder
	if req.CallerName != "" {
		fmt.Fprintf(&b, "Caller: %s\n", req.CallerName)
	}
	if len(req.CallerInfo) > 0 {
		fmt.Fprintf(&b, "Caller details: %s\n", string(req.CallerInfo))
	}
	fmt.Fprintf(&b, "\nCall Transcript:\n%s\n\n", req.Transcript)
	b.WriteString("Please provide a comprehensive warm transfer summary for the next agent.")
	return b.String()
}

func scriptUserPrompt(req summary.Request, summaryText string) string {
	return fmt.Sprintf(`Create a natural, conversational script for Agent A to read aloud to Agent B (%s) during a warm call transfer.

Customer: %s
Call Summary: %s

Requirements:
- Natural spoken language (not robotic)
- 45-60 seconds reading time
- Include key information from summary
- End with smooth handoff
- Sound professional but friendly
- Direct speech for Agent A to read

Format as a script that Agent A will speak.`, req.AgentB, req.CallerName, summaryText)
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (a *Adapter) complete(ctx context.Context, system, user string, temperature float64, maxTokens int) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model: a.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty choices in response")
	}
	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("empty completion content")
	}
	return content, nil
}
