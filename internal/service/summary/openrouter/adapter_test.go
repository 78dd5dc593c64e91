package openrouter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"warm-transfer-service/internal/service/summary"
)

func chatServer(t *testing.T, replies []string, status int) *httptest.Server {
	t.Helper()
	call := 0
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("unexpected message shape: %+v", req.Messages)
		}

		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}

		reply := ""
		if call < len(replies) {
			reply = replies[call]
		}
		call++
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatResponse{
			Choices: []struct {
				Message chatMessage `json:"message"`
			}{
				{Message: chatMessage{Role: "assistant", Content: reply}},
			},
		})
	}))
}

func TestGenerate_Success(t *testing.T) {
	srv := chatServer(t, []string{"the summary", "the script"}, http.StatusOK)
	defer srv.Close()

	a := New(Config{APIKey: "test-key", BaseURL: srv.URL})
	result, err := a.Generate(context.Background(), summary.Request{
		Transcript: "billing issue",
		CallerName: "Jane Doe",
		AgentB:     "bob",
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if result.Summary != "the summary" {
		t.Errorf("expected first completion as summary, got %q", result.Summary)
	}
	if result.Script != "the script" {
		t.Errorf("expected second completion as script, got %q", result.Script)
	}
}

func TestGenerate_Failures(t *testing.T) {
	tests := []struct {
		name    string
		replies []string
		status  int
	}{
		{"upstream error status", nil, http.StatusBadGateway},
		{"rate limited", nil, http.StatusTooManyRequests},
		{"empty content", []string{""}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := chatServer(t, tt.replies, tt.status)
			defer srv.Close()

			a := New(Config{APIKey: "test-key", BaseURL: srv.URL})
			if _, err := a.Generate(context.Background(), summary.Request{Transcript: "x"}); err == nil {
				t.Error("expected error from provider failure")
			}
		})
	}
}

func TestGenerate_NoAPIKey(t *testing.T) {
	a := New(Config{})
	if _, err := a.Generate(context.Background(), summary.Request{Transcript: "x"}); err == nil {
		t.Error("expected error with no API key")
	}
}

func TestNew_Defaults(t *testing.T) {
	a := New(Config{APIKey: "k"})
	if a.model != "meta-llama/llama-3.1-8b-instruct" {
		t.Errorf("unexpected default model %s", a.model)
	}
	if a.baseURL != defaultBaseURL {
		t.Errorf("unexpected default base URL %s", a.baseURL)
	}
	if a.client.Timeout <= 0 {
		t.Error("expected a positive default timeout")
	}
}
