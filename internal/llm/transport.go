package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"chatgw/internal/config"
	"github.com/sashabaranov/go-openai"
)

const completionsPath = "/chat/completions"

// HTTPTransport talks to the OpenAI-compatible upstream gateway. One call to
// Complete or StreamComplete covers a single model attempt, including the
// bounded retry of transient failures; trying other models is the caller's
// concern.
type HTTPTransport struct {
	baseURL string
	apiKey  string
	client  *http.Client
	retries int
	backoff []time.Duration
}

func NewHTTPTransport(cfg config.UpstreamConfig) *HTTPTransport {
	backoff := make([]time.Duration, 0, len(cfg.BackoffMS))
	for _, ms := range cfg.BackoffMS {
		backoff = append(backoff, time.Duration(ms)*time.Millisecond)
	}
	if len(backoff) == 0 {
		backoff = []time.Duration{500 * time.Millisecond, 1500 * time.Millisecond}
	}
	retries := cfg.Retries
	if retries < 0 {
		retries = 0
	}
	return &HTTPTransport{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: cfg.Timeout()},
		retries: retries,
		backoff: backoff,
	}
}

func (t *HTTPTransport) Complete(ctx context.Context, model string, req CompletionRequest) (CompletionResult, error) {
	var lastErr error
	for attempt := 0; attempt <= t.retries; attempt++ {
		if attempt > 0 {
			if err := t.wait(ctx, attempt-1, lastErr); err != nil {
				return CompletionResult{}, err
			}
		}
		result, err := t.completeOnce(ctx, model, req)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !retryable(err) {
			return CompletionResult{}, err
		}
		log.Printf("transient failure from model %s (attempt %d/%d): %v", model, attempt+1, t.retries+1, err)
	}
	return CompletionResult{}, lastErr
}

func (t *HTTPTransport) StreamComplete(ctx context.Context, model string, req CompletionRequest) (StreamReader, error) {
	var lastErr error
	for attempt := 0; attempt <= t.retries; attempt++ {
		if attempt > 0 {
			if err := t.wait(ctx, attempt-1, lastErr); err != nil {
				return nil, err
			}
		}
		reader, err := t.openStream(ctx, model, req)
		if err == nil {
			return reader, nil
		}
		lastErr = err
		if !retryable(err) {
			return nil, err
		}
		log.Printf("transient failure opening stream from model %s (attempt %d/%d): %v", model, attempt+1, t.retries+1, err)
	}
	return nil, lastErr
}

func (t *HTTPTransport) completeOnce(ctx context.Context, model string, req CompletionRequest) (CompletionResult, error) {
	resp, err := t.post(ctx, model, req, false)
	if err != nil {
		return CompletionResult{}, err
	}
	defer resp.Body.Close()

	var parsed openai.ChatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return CompletionResult{}, fmt.Errorf("decode completion response: %w", err)
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return CompletionResult{}, ErrEmptyCompletion
	}
	return CompletionResult{
		Text:       parsed.Choices[0].Message.Content,
		TokenCount: parsed.Usage.TotalTokens,
		ModelUsed:  model,
	}, nil
}

func (t *HTTPTransport) openStream(ctx context.Context, model string, req CompletionRequest) (StreamReader, error) {
	resp, err := t.post(ctx, model, req, true)
	if err != nil {
		return nil, err
	}
	return newSSEReader(resp.Body), nil
}

// post issues the upstream request and maps every non-2xx status to an
// UpstreamError. The caller owns the response body on success.
func (t *HTTPTransport) post(ctx context.Context, model string, req CompletionRequest, stream bool) (*http.Response, error) {
	payload := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    toOpenAIMessages(req.Messages),
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
		Stream:      stream,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal completion payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+completionsPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("construct completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+t.apiKey)
	if stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	} else {
		httpReq.Header.Set("Accept", "application/json")
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// Timeout or connection-level failure, no HTTP status to go on
		return nil, &UpstreamError{Message: err.Error()}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, upstreamError(resp)
	}
	return resp, nil
}

// wait sleeps out the backoff schedule before a retry, preferring an
// upstream-supplied Retry-After over the default delay.
func (t *HTTPTransport) wait(ctx context.Context, retry int, lastErr error) error {
	delay := t.backoff[len(t.backoff)-1]
	if retry < len(t.backoff) {
		delay = t.backoff[retry]
	}
	var ue *UpstreamError
	if errors.As(lastErr, &ue) && ue.RetryAfter > 0 {
		delay = time.Duration(ue.RetryAfter) * time.Second
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func retryable(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue) && ue.Retryable()
}

func upstreamError(resp *http.Response) *UpstreamError {
	ue := &UpstreamError{Status: resp.StatusCode}
	if after, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && after > 0 {
		ue.RetryAfter = after
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		ue.Message = "failed to read error body: " + err.Error()
		return ue
	}
	var apiErr struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		ue.Message = apiErr.Error.Message
		return ue
	}
	ue.Message = strings.TrimSpace(string(body))
	return ue
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		result[i] = openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}
	return result
}
