package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"mindspend/internal/coaching"
	"mindspend/internal/core"
	"mindspend/internal/log"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultTimeout = 30 * time.Second

	defaultMaxRetries  = 2
	defaultBackoff     = time.Second
	maxBackoff         = 10 * time.Second
	defaultTemperature = 0.7
	maxErrorBody       = 512
)

var errEmptyCompletion = errors.New("empty completion content")

type Config struct {
	APIKey      string
	// BaseURL defaults to DefaultBaseURL; Model to coaching.DefaultModel.
	BaseURL     string
	Model       string
	Timeout     time.Duration
	// MaxRetries of zero means the default; negative disables retries.
	MaxRetries  int
	Backoff     time.Duration
	Temperature float64
	HTTPClient  *http.Client
}

// Client is a chat-completions client for OpenAI-compatible endpoints.
type Client struct {
	apiKey      string
	baseURL     string
	model       string
	timeout     time.Duration
	maxRetries  int
	backoff     time.Duration
	temperature float64
	http        *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("openai: API key is required")
	}
	c := &Client{
		apiKey:      cfg.APIKey,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		model:       cfg.Model,
		timeout:     cfg.Timeout,
		maxRetries:  cfg.MaxRetries,
		backoff:     cfg.Backoff,
		temperature: cfg.Temperature,
		http:        cfg.HTTPClient,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.model == "" {
		c.model = coaching.DefaultModel
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.maxRetries < 0 {
		c.maxRetries = 0
	} else if cfg.MaxRetries == 0 {
		c.maxRetries = defaultMaxRetries
	}
	if c.backoff <= 0 {
		c.backoff = defaultBackoff
	}
	if c.temperature == 0 {
		c.temperature = defaultTemperature
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	return c, nil
}

func (c *Client) Model() string { return c.model }

type chatRequest struct {
	Model       string             `json:"model"`
	Messages    []coaching.Message `json:"messages"`
	Temperature float64            `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// httpError is a non-2xx response from the API.
type httpError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *httpError) Error() string {
	return fmt.Sprintf("openai http %d: %s", e.StatusCode, e.Body)
}

// Complete posts the transcript to /chat/completions and returns the trimmed
// content of the first choice. Rate limits, server errors and transport
// failures are retried with exponential backoff inside the overall timeout.
func (c *Client) Complete(ctx context.Context, messages []coaching.Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(chatRequest{Model: c.model, Messages: messages, Temperature: c.temperature})
	if err != nil {
		return "", &core.CompletionError{Err: fmt.Errorf("encode request: %w", err)}
	}

	backoff := c.backoff
	for attempt := 0; ; attempt++ {
		content, err := c.doOnce(ctx, body)
		if err == nil {
			return content, nil
		}

		cerr := toCompletionError(err)
		if !cerr.Retryable() || ctx.Err() != nil || attempt >= c.maxRetries {
			return "", cerr
		}

		sleepFor := backoff
		var he *httpError
		if errors.As(err, &he) && he.RetryAfter > 0 {
			sleepFor = he.RetryAfter
		}
		if sleepFor > maxBackoff {
			sleepFor = maxBackoff
		}
		slog.WarnContext(ctx, "OpenAI request retrying",
			log.FieldComponent, log.ComponentLLM,
			log.FieldAttempt, attempt+1,
			"sleep", sleepFor.String(),
			log.FieldError, err)

		select {
		case <-ctx.Done():
			return "", &core.CompletionError{Err: ctx.Err()}
		case <-time.After(sleepFor):
		}
		backoff *= 2
	}
}

func (c *Client) doOnce(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &httpError{
			StatusCode: resp.StatusCode,
			Body:       truncate(string(raw), maxErrorBody),
			RetryAfter: retryAfter(resp.Header.Get("Retry-After")),
		}
	}

	var decoded chatResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", &core.CompletionError{StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(decoded.Choices) == 0 {
		return "", &core.CompletionError{StatusCode: resp.StatusCode, Err: errEmptyCompletion}
	}
	content := strings.TrimSpace(decoded.Choices[0].Message.Content)
	if content == "" {
		return "", &core.CompletionError{StatusCode: resp.StatusCode, Err: errEmptyCompletion}
	}
	return content, nil
}

func toCompletionError(err error) *core.CompletionError {
	var ce *core.CompletionError
	if errors.As(err, &ce) {
		return ce
	}
	var he *httpError
	if errors.As(err, &he) {
		return &core.CompletionError{StatusCode: he.StatusCode, Err: he}
	}
	return &core.CompletionError{Err: err}
}

func retryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
