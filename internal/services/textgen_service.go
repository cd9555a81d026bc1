package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"quizforge/internal/config"
	"quizforge/internal/observability"
	contextutils "quizforge/internal/utils"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// CompletionOptions tune a single completion call
type CompletionOptions struct {
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// TextGenClient is the outbound text-generation collaborator. Errors are
// distinguishable: timeout, unreachable endpoint, and malformed upstream
// response each map to their own AppError code.
type TextGenClient interface {
	Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error)
}

// chatRequest is the OpenAI-compatible /chat/completions request body
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse is the subset of the OpenAI-compatible response we consume
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// HTTPTextGenClient talks to an OpenAI-compatible chat completion endpoint
type HTTPTextGenClient struct {
	cfg        *config.GenerationConfig
	logger     *observability.Logger
	httpClient *http.Client
}

// NewHTTPTextGenClient creates a text-generation client from the generation config
func NewHTTPTextGenClient(cfg *config.GenerationConfig, logger *observability.Logger) *HTTPTextGenClient {
	return &HTTPTextGenClient{
		cfg:    cfg,
		logger: logger,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithSpanOptions(trace.WithSpanKind(trace.SpanKindClient)),
			),
		},
	}
}

// Complete sends the prompt and returns the raw completion text
func (c *HTTPTextGenClient) Complete(ctx context.Context, prompt string, opts CompletionOptions) (result0 string, err error) {
	ctx, span := observability.TraceTextGenFunction(ctx, "complete",
		attribute.String("textgen.model", c.cfg.Model),
		attribute.Int("prompt.length", len(prompt)),
	)
	defer observability.FinishSpan(span, &err)

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = c.cfg.RequestTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.cfg.MaxTokens
	}
	temperature := opts.Temperature
	if temperature == 0 {
		temperature = c.cfg.Temperature
	}

	reqBody := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", contextutils.WrapError(err, "failed to marshal completion request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", contextutils.WrapError(err, "failed to create completion request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "quizforge/1.0")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(startTime)
	if err != nil {
		span.SetAttributes(attribute.String("call.result", "request_failed"), attribute.String("duration", duration.String()))
		if errors.Is(err, context.DeadlineExceeded) {
			return "", contextutils.WrapErrorf(contextutils.ErrTimeout, "completion request timed out after %v", duration)
		}
		return "", contextutils.WrapErrorf(contextutils.ErrGenerationUnavailable, "completion endpoint unreachable: %v", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Warn(ctx, "Failed to close completion response body", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		span.SetAttributes(attribute.String("call.result", "body_read_failed"))
		return "", contextutils.WrapError(contextutils.ErrGenerationInvalid, "failed to read completion response body")
	}

	if resp.StatusCode != http.StatusOK {
		span.SetAttributes(attribute.String("call.result", "http_error"), attribute.Int("status_code", resp.StatusCode))
		return "", contextutils.WrapErrorf(contextutils.ErrGenerationFailed, "completion request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		span.SetAttributes(attribute.String("call.result", "unmarshal_failed"))
		return "", contextutils.WrapErrorf(contextutils.ErrGenerationInvalid, "failed to parse completion response: %v", err)
	}
	if parsed.Error != nil {
		span.SetAttributes(attribute.String("call.result", "api_error"), attribute.String("error_type", parsed.Error.Type))
		return "", contextutils.WrapErrorf(contextutils.ErrGenerationFailed, "completion API error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		span.SetAttributes(attribute.String("call.result", "empty_content"))
		return "", contextutils.WrapError(contextutils.ErrGenerationInvalid, "completion returned no content")
	}

	content := parsed.Choices[0].Message.Content
	span.SetAttributes(attribute.String("call.result", "success"), attribute.Int("content_length", len(content)))
	return content, nil
}
