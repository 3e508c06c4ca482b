package chat

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chatgw/internal/auth"
	"chatgw/internal/config"
	"chatgw/internal/llm"
	"chatgw/internal/quota"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestController(transport llm.Transport) *ChatController {
	service := newTestService(transport)
	identity := auth.NewIdentityResolver(config.JWTConfig{})
	return NewChatController(service, identity, config.CompletionConfig{
		DefaultTemperature: 1.0,
		DefaultMaxTokens:   256,
	})
}

func doChat(t *testing.T, controller *ChatController, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(body))
	rec := httptest.NewRecorder()
	controller.ChatHandler(rec, req)
	return rec
}

func TestChatHandlerUnary(t *testing.T) {
	transport := &fakeTransport{
		completeFn: func(model string) (llm.CompletionResult, error) {
			return llm.CompletionResult{Text: "hello", TokenCount: 5, ModelUsed: model}, nil
		},
	}
	rec := doChat(t, newTestController(transport),
		`{"messages":[{"role":"user","content":"hi"}],"stream":false}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"text":"hello","tokenCount":5,"modelUsed":"A"}`, rec.Body.String())
}

func TestChatHandlerRejectsMalformedBody(t *testing.T) {
	rec := doChat(t, newTestController(&fakeTransport{}), `{"messages": [`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatHandlerQuotaStatus(t *testing.T) {
	transport := &fakeTransport{
		completeFn: func(model string) (llm.CompletionResult, error) {
			return llm.CompletionResult{Text: "ok", ModelUsed: model}, nil
		},
	}
	catalog := llm.NewCatalog([]llm.ModelCandidate{{ID: "A", Priority: 1}})
	guard := quota.NewGuard(quota.NewMemoryStore(1, time.Minute))
	service := NewChatService(transport, catalog, guard, true)
	controller := NewChatController(service, auth.NewIdentityResolver(config.JWTConfig{}), config.CompletionConfig{})

	body := `{"messages":[{"role":"user","content":"hi"}]}`
	assert.Equal(t, http.StatusOK, doChat(t, controller, body).Code)
	rec := doChat(t, controller, body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "quota exceeded")
}

func TestChatHandlerNotConfigured(t *testing.T) {
	catalog := llm.NewCatalog(nil)
	guard := quota.NewGuard(quota.NewMemoryStore(0, time.Minute))
	service := NewChatService(&fakeTransport{}, catalog, guard, false)
	controller := NewChatController(service, auth.NewIdentityResolver(config.JWTConfig{}), config.CompletionConfig{})

	rec := doChat(t, controller, `{"messages":[{"role":"user","content":"hi"}]}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestChatHandlerStreamFormat(t *testing.T) {
	transport := &fakeTransport{
		streamFn: func(model string) (llm.StreamReader, error) {
			return &fakeStream{frames: deltas("hel", "lo")}, nil
		},
	}
	rec := doChat(t, newTestController(transport),
		`{"messages":[{"role":"user","content":"hi"}],"stream":true}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Contains(t, body, "event: delta\ndata: {\"text\":\"hel\"}\n\n")
	assert.Contains(t, body, "event: delta\ndata: {\"text\":\"lo\"}\n\n")
	assert.Contains(t, body, "event: done\n")
	assert.Contains(t, body, `"fullText":"hello"`)
	assert.Contains(t, body, `"modelUsed":"A"`)
	assert.NotContains(t, body, "event: error")
}

func TestChatHandlerStreamTerminalError(t *testing.T) {
	transport := &fakeTransport{
		streamFn: func(model string) (llm.StreamReader, error) {
			return &fakeStream{frames: deltas("par"), final: errors.New("upstream died")}, nil
		},
	}
	rec := doChat(t, newTestController(transport),
		`{"messages":[{"role":"user","content":"hi"}],"stream":true}`)

	body := rec.Body.String()
	assert.Contains(t, body, "event: delta\ndata: {\"text\":\"par\"}\n\n")
	assert.Contains(t, body, "event: error\n")
	assert.Contains(t, body, "upstream died")
	assert.NotContains(t, body, "event: done")
}

func TestTemperatureClamped(t *testing.T) {
	controller := newTestController(&fakeTransport{})
	high := 5.0
	low := -1.0
	assert.Equal(t, 2.0, controller.temperature(&high))
	assert.Equal(t, 0.0, controller.temperature(&low))
	assert.Equal(t, 1.0, controller.temperature(nil))
}

func TestMaxTokensDefaulted(t *testing.T) {
	controller := newTestController(&fakeTransport{})
	zero := 0
	fifty := 50
	assert.Equal(t, 256, controller.maxTokens(nil))
	assert.Equal(t, 256, controller.maxTokens(&zero))
	assert.Equal(t, 50, controller.maxTokens(&fifty))
}

func TestStatusForUnknownErrorIsBadGateway(t *testing.T) {
	assert.Equal(t, http.StatusBadGateway, statusFor(context.DeadlineExceeded))
}
