package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/spherical/docstruct/internal/domain"
	"github.com/spherical/docstruct/internal/observability"
)

func newTestClient(serverURL string) *Client {
	return NewClient(Options{
		BaseURL: serverURL,
		APIKey:  "test-key",
		Model:   "test-model",
		Logger:  observability.Nop(),
	})
}

func completionResponse(content string) string {
	resp := Response{
		ID: "test",
		Choices: []Choice{
			{Message: ChoiceMessage{Role: "assistant", Content: content}},
		},
	}
	data, _ := json.Marshal(resp)
	return string(data)
}

func TestInfer_Success(t *testing.T) {
	var gotReq Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Authorization = %q", auth)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionResponse("# Hello")))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	out, err := client.Infer(context.Background(), "format this", domain.Payload{Text: "hello"})
	if err != nil {
		t.Fatalf("Infer() error: %v", err)
	}
	if out != "# Hello" {
		t.Errorf("Infer() = %q, want %q", out, "# Hello")
	}

	if gotReq.Model != "test-model" {
		t.Errorf("request model = %q", gotReq.Model)
	}
	if len(gotReq.Messages) != 1 || len(gotReq.Messages[0].Content) != 2 {
		t.Fatalf("unexpected request shape: %+v", gotReq)
	}
	if gotReq.Messages[0].Content[1].Text != "hello" {
		t.Errorf("payload text = %q", gotReq.Messages[0].Content[1].Text)
	}
}

func TestInfer_ImagePayloadBecomesDataURL(t *testing.T) {
	var gotReq Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		_, _ = w.Write([]byte(completionResponse("a photo")))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Infer(context.Background(), "describe", domain.Payload{Image: []byte{0xff, 0xd8, 0xff}})
	if err != nil {
		t.Fatalf("Infer() error: %v", err)
	}

	parts := gotReq.Messages[0].Content
	if len(parts) != 2 || parts[1].Type != "image_url" {
		t.Fatalf("unexpected content parts: %+v", parts)
	}
	if !strings.HasPrefix(parts[1].ImageURL.URL, "data:image/jpeg;base64,") {
		t.Errorf("image URL = %q, want data URL", parts[1].ImageURL.URL)
	}
}

func TestInfer_StatusClassification(t *testing.T) {
	tests := []struct {
		status        int
		wantTransient bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusGatewayTimeout, true},
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
		{http.StatusNotFound, false},
	}

	for _, tt := range tests {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		}))

		client := newTestClient(server.URL)
		_, err := client.Infer(context.Background(), "p", domain.Payload{Text: "x"})
		server.Close()

		if err == nil {
			t.Errorf("status %d: expected an error", tt.status)
			continue
		}
		if got := domain.IsTransient(err); got != tt.wantTransient {
			t.Errorf("status %d: IsTransient = %v, want %v", tt.status, got, tt.wantTransient)
		}
	}
}

func TestInfer_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(completionResponse("late")))
	}))
	defer server.Close()

	client := NewClient(Options{
		BaseURL:        server.URL,
		APIKey:         "k",
		RequestTimeout: 20 * time.Millisecond,
		Logger:         observability.Nop(),
	})

	_, err := client.Infer(context.Background(), "p", domain.Payload{Text: "x"})
	if err == nil {
		t.Fatal("expected a timeout error")
	}
	if !domain.IsTransient(err) {
		t.Errorf("timeouts should be transient, got %v", err)
	}
}

func TestInfer_CancelledContextIsNotTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := newTestClient(server.URL)
	_, err := client.Infer(ctx, "p", domain.Payload{Text: "x"})
	if err == nil {
		t.Fatal("expected an error")
	}
	if domain.IsTransient(err) {
		t.Error("a cancelled request must not be retried")
	}
}

func TestInfer_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"x","choices":[]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Infer(context.Background(), "p", domain.Payload{Text: "x"})
	if err == nil {
		t.Fatal("expected an error for empty choices")
	}
	if domain.IsTransient(err) {
		t.Error("an empty completion is not transient")
	}
}

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no fence", "| a | b |", "| a | b |"},
		{"plain fence", "```\n| a | b |\n```", "| a | b |"},
		{"markdown fence", "```markdown\n| a | b |\n```", "| a | b |"},
		{"md fence", "```md\n# Title\n```", "# Title"},
		{"surrounding whitespace", "  \n```\ntext\n```\n ", "text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripCodeFence(tt.in); got != tt.want {
				t.Errorf("stripCodeFence(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
