// Package llm implements the external AI inference collaborator over
// an OpenRouter-style chat completions endpoint.
package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/spherical/docstruct/internal/domain"
	"github.com/spherical/docstruct/internal/observability"
)

const defaultModel = "x-ai/grok-4.1-fast:free"

// Client handles communication with the chat completions API. It
// performs no retries of its own: failures are classified as
// transient or permanent service errors and the orchestrator decides.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *observability.Logger
}

// Options configures a Client.
type Options struct {
	BaseURL        string
	APIKey         string
	Model          string
	RequestTimeout time.Duration
	Logger         *observability.Logger
}

// NewClient creates a new inference client.
func NewClient(opts Options) *Client {
	model := opts.Model
	if model == "" {
		model = defaultModel
	}
	timeout := opts.RequestTimeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = observability.DefaultLogger()
	}

	return &Client{
		baseURL:    opts.BaseURL,
		apiKey:     opts.APIKey,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.WithComponent("llm"),
	}
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.model
}

// Message represents a chat message
type Message struct {
	Role    string        `json:"role"`
	Content []ContentPart `json:"content"`
}

// ContentPart represents a part of message content (text or image)
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL represents an image URL in the message
type ImageURL struct {
	URL string `json:"url"`
}

// Request represents the API request structure
type Request struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

// Response represents the API response structure
type Response struct {
	ID      string   `json:"id"`
	Choices []Choice `json:"choices"`
}

// Choice represents a single completion choice
type Choice struct {
	Message      ChoiceMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

// ChoiceMessage holds the completion content.
type ChoiceMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Infer sends one prompt plus payload to the AI service and returns
// the response text. Failures come back as service errors whose
// transient flag drives the caller's retry policy.
func (c *Client) Infer(ctx context.Context, prompt string, payload domain.Payload) (string, error) {
	body, err := json.Marshal(c.buildRequest(prompt, payload))
	if err != nil {
		return "", domain.ServiceError("failed to marshal request", false, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", domain.ServiceError("failed to build request", false, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("X-Title", "docstruct")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		msg := fmt.Sprintf("API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
		return "", domain.ServiceError(msg, transientStatus(resp.StatusCode), nil)
	}

	var apiResp Response
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return "", domain.ServiceError("failed to parse API response", false, err)
	}
	if len(apiResp.Choices) == 0 {
		return "", domain.ServiceError("no choices in API response", false, nil)
	}

	content := stripCodeFence(apiResp.Choices[0].Message.Content)

	c.logger.Debug().
		Str("model", c.model).
		Int("response_chars", len(content)).
		Dur("elapsed", time.Since(start)).
		Msg("Inference call completed")

	return content, nil
}

// buildRequest constructs the API request with the prompt and either
// a text or an image payload.
func (c *Client) buildRequest(prompt string, payload domain.Payload) *Request {
	parts := []ContentPart{{Type: "text", Text: prompt}}

	if len(payload.Image) > 0 {
		encoded := base64.StdEncoding.EncodeToString(payload.Image)
		parts = append(parts, ContentPart{
			Type:     "image_url",
			ImageURL: &ImageURL{URL: "data:image/jpeg;base64," + encoded},
		})
	} else if payload.Text != "" {
		parts = append(parts, ContentPart{Type: "text", Text: payload.Text})
	}

	return &Request{
		Model:    c.model,
		Messages: []Message{{Role: "user", Content: parts}},
	}
}

// transientStatus reports whether an HTTP status is worth retrying.
func transientStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// classifyTransportError maps network-level failures: timeouts and
// connection errors are transient, a cancelled context is not.
func classifyTransportError(err error) error {
	if errors.Is(err, context.Canceled) {
		return domain.ServiceError("request cancelled", false, err)
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return domain.ServiceError("request timed out", true, err)
	}

	return domain.ServiceError("request failed", true, err)
}

// stripCodeFence removes a wrapping markdown code fence if the model
// ignored the output format instructions.
func stripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```markdown")
	trimmed = strings.TrimPrefix(trimmed, "```md")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
