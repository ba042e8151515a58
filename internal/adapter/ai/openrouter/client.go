// Package openrouter implements the AI collaborator port against the
// OpenRouter chat-completions API.
package openrouter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"log/slog"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/safarprep/interview-coach/internal/adapter/observability"
	"github.com/safarprep/interview-coach/internal/config"
	"github.com/safarprep/interview-coach/internal/domain"
)

// Client implements domain.AIClient. It speaks the OpenAI-compatible chat
// endpoint and classifies quota exhaustion as domain.RateLimitError so the
// evaluator can apply its retry/backoff policy to it specifically.
type Client struct {
	cfg config.Config
	hc  *http.Client
}

// New constructs a client with an otel-instrumented transport.
func New(cfg config.Config) *Client {
	transport := otelhttp.NewTransport(http.DefaultTransport,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return fmt.Sprintf("AI %s %s", r.Method, r.URL.Host)
		}),
	)
	return &Client{
		cfg: cfg,
		hc:  &http.Client{Timeout: cfg.AITimeout, Transport: transport},
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// Generate sends prompt as a single user message and returns the model text.
func (c *Client) Generate(ctx domain.Context, prompt string) (string, error) {
	if c.cfg.OpenRouterAPIKey == "" {
		return "", fmt.Errorf("op=openrouter.Generate: %w: OPENROUTER_API_KEY missing", domain.ErrInvalidArgument)
	}

	body, err := json.Marshal(chatRequest{
		Model:    c.cfg.OpenRouterModel,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("op=openrouter.Generate: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.OpenRouterBaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("op=openrouter.Generate: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.OpenRouterAPIKey)
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.OpenRouterReferer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.OpenRouterReferer)
	}
	if c.cfg.OpenRouterTitle != "" {
		req.Header.Set("X-Title", c.cfg.OpenRouterTitle)
	}

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		observability.RecordAIRequest("transport_error", time.Since(start))
		return "", fmt.Errorf("op=openrouter.Generate: %w: %v", domain.ErrUpstreamTimeout, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		observability.RecordAIRequest("rate_limited", time.Since(start))
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		slog.Warn("openrouter rate limited",
			slog.String("model", c.cfg.OpenRouterModel),
			slog.Duration("retry_after", retryAfter))
		return "", fmt.Errorf("op=openrouter.Generate: %w", &domain.RateLimitError{RetryAfter: retryAfter})
	case resp.StatusCode >= 500:
		observability.RecordAIRequest("upstream_error", time.Since(start))
		return "", fmt.Errorf("op=openrouter.Generate: %w: status %d", domain.ErrUpstreamTimeout, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		observability.RecordAIRequest("request_error", time.Since(start))
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("op=openrouter.Generate: %w: status %d: %s", domain.ErrInternal, resp.StatusCode, snippet)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		observability.RecordAIRequest("decode_error", time.Since(start))
		return "", fmt.Errorf("op=openrouter.Generate: %w: %v", domain.ErrSchemaInvalid, err)
	}
	if out.Error != nil && out.Error.Code == http.StatusTooManyRequests {
		observability.RecordAIRequest("rate_limited", time.Since(start))
		return "", fmt.Errorf("op=openrouter.Generate: %w", &domain.RateLimitError{})
	}
	if len(out.Choices) == 0 {
		observability.RecordAIRequest("empty_response", time.Since(start))
		return "", fmt.Errorf("op=openrouter.Generate: %w: no choices in response", domain.ErrSchemaInvalid)
	}
	observability.RecordAIRequest("ok", time.Since(start))
	return out.Choices[0].Message.Content, nil
}

// parseRetryAfter reads a Retry-After header given in seconds.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}
