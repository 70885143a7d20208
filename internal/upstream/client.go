package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sereno-app/sereno/internal/observability"
	"github.com/sereno-app/sereno/internal/reliability"
)

// Options configures the HTTP gateway client.
type Options struct {
	BaseURL string
	APIKey  string
	Models  []string

	AttemptTimeout time.Duration
	MaxAttempts    int
	BackoffBase    time.Duration
	BackoffCap     time.Duration

	Temperature     float64
	MaxOutputTokens int

	HTTPClient *http.Client
	Logger     *zap.Logger
	Metrics    *observability.Metrics
}

// Client calls the upstream LLM provider with per-attempt timeout, retry with
// exponential backoff, and ordered model fallback. Attempts are strictly
// sequential; there are no speculative parallel calls.
type Client struct {
	url     string
	apiKey  string
	plan    Plan
	timeout time.Duration
	temp    float64
	maxTok  int
	http    *http.Client
	logger  *zap.Logger
	metrics *observability.Metrics
}

func NewClient(opts Options) (*Client, error) {
	url := strings.TrimSpace(opts.BaseURL)
	if url == "" {
		return nil, errors.New("upstream base URL is required")
	}
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("upstream API key is required")
	}
	models := DedupModels(opts.Models)
	if len(models) == 0 {
		return nil, errors.New("upstream model list is empty")
	}

	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = 20 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = 500 * time.Millisecond
	}
	if opts.BackoffCap <= 0 {
		opts.BackoffCap = 8 * time.Second
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		// The per-attempt context deadline bounds each call; no client-level
		// timeout on top of it.
		httpClient = &http.Client{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		url:    url,
		apiKey: strings.TrimSpace(opts.APIKey),
		plan: Plan{
			Models:      models,
			MaxAttempts: opts.MaxAttempts,
			BackoffBase: opts.BackoffBase,
			BackoffCap:  opts.BackoffCap,
		},
		timeout: opts.AttemptTimeout,
		temp:    opts.Temperature,
		maxTok:  opts.MaxOutputTokens,
		http:    httpClient,
		logger:  logger,
		metrics: opts.Metrics,
	}, nil
}

type generateRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

// Generate runs the retry/fallback loop until a model succeeds or every
// model's budget is spent. Each attempt is bounded by the attempt timeout, or
// sooner if the parent context expires.
func (c *Client) Generate(ctx context.Context, req Request) (Result, error) {
	messages, err := normalizeMessages(req)
	if err != nil {
		return Result{}, err
	}

	state := State{}
	attempts := 0
	var lastStatus int
	var lastErr error

	for {
		model := c.plan.Models[state.Model]
		attempts++

		res, retryable, status, err := c.attempt(ctx, model, state.Attempt, messages)
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil {
			// Caller is gone; the remaining budget is pointless.
			return Result{}, ctx.Err()
		}
		lastStatus, lastErr = status, err

		switch action := c.plan.Next(state, retryable); action.Kind {
		case ActionRetry:
			state.Attempt++
			select {
			case <-time.After(action.Delay):
			case <-ctx.Done():
				return Result{}, ctx.Err()
			}
		case ActionFallback:
			state.Model++
			state.Attempt = 0
		case ActionGiveUp:
			return Result{}, &TotalFailureError{
				Attempts:   attempts,
				LastModel:  model,
				LastStatus: lastStatus,
				LastErr:    lastErr.Error(),
			}
		}
	}
}

func (c *Client) attempt(ctx context.Context, model string, attempt int, messages []Message) (Result, bool, int, error) {
	payload, err := json.Marshal(generateRequest{
		Model:       model,
		Messages:    messages,
		Temperature: c.temp,
		MaxTokens:   c.maxTok,
	})
	if err != nil {
		return Result{}, false, 0, fmt.Errorf("marshal request: %w", err)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return Result{}, false, 0, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	res, err := c.http.Do(httpReq)
	elapsed := time.Since(start)

	if err != nil {
		retryable := reliability.IsRetryableTransportError(err) || attemptCtx.Err() != nil
		c.logAttempt(model, attempt, elapsed, 0, "transport: "+err.Error())
		c.metrics.ObserveUpstreamAttempt(model, "transport_error", elapsed)
		return Result{}, retryable, 0, fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		c.logAttempt(model, attempt, elapsed, res.StatusCode, "read: "+err.Error())
		c.metrics.ObserveUpstreamAttempt(model, "read_error", elapsed)
		return Result{}, true, res.StatusCode, fmt.Errorf("read response: %w", err)
	}

	if res.StatusCode >= 200 && res.StatusCode < 300 {
		text, reason := ExtractText(body)
		c.logAttempt(model, attempt, elapsed, res.StatusCode, reason)
		c.metrics.ObserveUpstreamAttempt(model, "success", elapsed)
		// Empty text with a 2xx (e.g. a safety block) is still a successful
		// call; the orchestrator substitutes the degrade-path reply.
		return Result{
			Text:         text,
			Model:        model,
			FinishReason: reason,
			Status:       res.StatusCode,
			Elapsed:      elapsed,
		}, false, res.StatusCode, nil
	}

	msg := strings.TrimSpace(string(body))
	if len(msg) > 512 {
		msg = msg[:512]
	}
	retryable := reliability.IsRetryableHTTPStatus(res.StatusCode)
	outcome := "fatal_status"
	if retryable {
		outcome = "retryable_status"
	}
	c.logAttempt(model, attempt, elapsed, res.StatusCode, msg)
	c.metrics.ObserveUpstreamAttempt(model, outcome, elapsed)
	return Result{}, retryable, res.StatusCode, fmt.Errorf("upstream status %d: %s", res.StatusCode, msg)
}

// logAttempt records one attempt. The API credential never appears here.
func (c *Client) logAttempt(model string, attempt int, elapsed time.Duration, status int, detail string) {
	fields := []zap.Field{
		zap.String("model", model),
		zap.Int("attempt", attempt),
		zap.Duration("elapsed", elapsed),
		zap.Int("status", status),
	}
	if detail != "" {
		fields = append(fields, zap.String("detail", detail))
	}
	if status >= 200 && status < 300 {
		c.logger.Info("upstream attempt", fields...)
		return
	}
	c.logger.Warn("upstream attempt failed", fields...)
}

func normalizeMessages(req Request) ([]Message, error) {
	out := make([]Message, 0, len(req.Messages)+1)
	if s := strings.TrimSpace(req.System); s != "" {
		out = append(out, Message{Role: RoleSystem, Content: s})
	}
	userTurns := 0
	for _, m := range req.Messages {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		if m.Role == RoleUser {
			userTurns++
		}
		out = append(out, m)
	}
	if userTurns == 0 {
		return nil, errors.New("request has no non-empty user message")
	}
	if last := out[len(out)-1]; last.Role != RoleUser {
		return nil, errors.New("request must end with a user message")
	}
	return out, nil
}
