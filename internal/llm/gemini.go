// Package llm is a small client for the Gemini generateContent REST API.
//
// The client sends role-tagged turns, applies a per-attempt timeout and
// retries transient failures with exponential backoff. Backend responses are
// mapped onto the typed errors in errors.go so callers never inspect status
// codes themselves.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-study-assistant/internal/observability"
)

// RoleUser tags student turns. Chat turns are single-shot, so no model
// turns are ever sent.
const RoleUser = "user"

// maxErrorBody caps how much of an error response is kept.
const maxErrorBody = 4 << 10

// Turn is one role-tagged message.
type Turn struct {
	Role string
	Text string
}

// GenerationConfig holds the sampling parameters sent with every request.
type GenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
	TopP            float64 `json:"topP"`
	TopK            int     `json:"topK"`
}

// Options configures New.
type Options struct {
	BaseURL      string
	Model        string
	APIKey       string
	Timeout      time.Duration // per attempt; 0 disables
	MaxRetries   int
	RetryBackoff time.Duration
	HTTPClient   *http.Client
}

// Client talks to one model.
type Client struct {
	endpoint   string
	apiKey     string
	model      string
	timeout    time.Duration
	maxRetries int
	backoff    time.Duration
	http       *http.Client

	sleep func(ctx context.Context, d time.Duration) error
}

// New validates opts and returns a Client. An empty API key is accepted;
// every call then fails with ErrInvalidCredentials without touching the network.
func New(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, errors.New("llm base url is required")
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		return nil, errors.New("llm model is required")
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{
		endpoint:   base + "/models/" + model + ":generateContent",
		apiKey:     strings.TrimSpace(opts.APIKey),
		model:      model,
		timeout:    opts.Timeout,
		maxRetries: opts.MaxRetries,
		backoff:    opts.RetryBackoff,
		http:       hc,
		sleep:      sleepCtx,
	}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *GenerationConfig `json:"generationConfig,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Generate sends turns and returns the text of the first part of the first
// candidate.
func (c *Client) Generate(ctx context.Context, turns []Turn, gen GenerationConfig) (string, error) {
	ctx, span := otel.Tracer("llm/Client").Start(ctx, "Generate",
		trace.WithAttributes(
			attribute.String("llm.model", c.model),
			attribute.Int("llm.turns", len(turns)),
		),
	)
	defer span.End()

	if c.apiKey == "" {
		return "", ErrInvalidCredentials
	}

	body := generateRequest{GenerationConfig: &gen}
	for _, t := range turns {
		body.Contents = append(body.Contents, content{Role: t.Role, Parts: []part{{Text: t.Text}}})
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := c.backoff << (attempt - 1)
			log.Warn().
				Int("attempt", attempt).
				Dur("backoff", wait).
				Err(lastErr).
				Msg("llm retry")
			observability.LLMRetries.Inc()
			if err := c.sleep(ctx, wait); err != nil {
				break
			}
		}

		text, err := c.once(ctx, payload)
		if err == nil {
			span.SetAttributes(attribute.Int("llm.attempts", attempt+1))
			return text, nil
		}
		lastErr = err
		if ctx.Err() != nil || !retryable(err) {
			break
		}
	}

	if err := ctx.Err(); err != nil {
		lastErr = &BackendError{Err: err}
	}
	span.RecordError(lastErr)
	span.SetStatus(codes.Error, "generate failed")
	return "", lastErr
}

// once performs a single attempt bounded by the per-attempt timeout.
func (c *Client) once(ctx context.Context, payload []byte) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		observability.LLMRequestDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		if ctx.Err() != nil {
			// report the deadline rather than the transport's wrapping of it
			return "", &BackendError{Err: ctx.Err()}
		}
		return "", &BackendError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	observability.LLMRequestDuration.WithLabelValues(strconv.Itoa(resp.StatusCode)).Observe(time.Since(start).Seconds())
	if err != nil {
		return "", &BackendError{Status: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return "", statusError(resp.StatusCode, raw)
	}

	var out generateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", &BackendError{Status: resp.StatusCode, Body: clip(raw), Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", &BackendError{Status: resp.StatusCode, Body: clip(raw), Err: ErrEmptyReply}
	}
	return out.Candidates[0].Content.Parts[0].Text, nil
}

func statusError(status int, raw []byte) error {
	switch status {
	case http.StatusUnauthorized:
		return ErrInvalidCredentials
	case http.StatusTooManyRequests:
		return ErrQuotaExceeded
	case http.StatusBadRequest:
		detail := clip(raw)
		var ae apiError
		if json.Unmarshal(raw, &ae) == nil && ae.Error.Message != "" {
			detail = ae.Error.Message
		}
		return &BadRequestError{Detail: detail}
	default:
		return &BackendError{Status: status, Body: clip(raw)}
	}
}

func clip(b []byte) string {
	if len(b) > maxErrorBody {
		b = b[:maxErrorBody]
	}
	return string(b)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
