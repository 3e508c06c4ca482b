package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"chatgw/internal/auth"
	"chatgw/internal/config"
	"chatgw/internal/llm"
)

type ChatController struct {
	service  *ChatService
	identity *auth.IdentityResolver
	defaults config.CompletionConfig
}

func NewChatController(service *ChatService, identity *auth.IdentityResolver, defaults config.CompletionConfig) *ChatController {
	return &ChatController{service: service, identity: identity, defaults: defaults}
}

func (cc *ChatController) ChatHandler(w http.ResponseWriter, r *http.Request) {
	var request ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	identifier := cc.identity.Resolve(r)
	req := llm.CompletionRequest{
		Messages:    llm.Normalize(request.Messages),
		Model:       request.Model,
		Temperature: cc.temperature(request.Temperature),
		MaxTokens:   cc.maxTokens(request.MaxTokens),
		Voice:       request.Voice,
	}
	ctx := r.Context()

	if !request.Stream {
		result, err := cc.service.Complete(ctx, identifier, req)
		if err != nil {
			writeJSONError(w, statusFor(err), err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(result); err != nil {
			log.Printf("failed to write completion response: %v", err)
		}
		return
	}

	// Set headers required for SSE
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	for event := range cc.service.StreamComplete(ctx, identifier, req) {
		if err := writeSSEEvent(w, event); err != nil {
			log.Printf("failed to write stream event: %v", err)
			return
		}
	}
}

func (cc *ChatController) temperature(requested *float64) float64 {
	t := cc.defaults.DefaultTemperature
	if requested != nil {
		t = *requested
	}
	// Clamp into the range the upstream accepts
	if t < 0 {
		t = 0
	}
	if t > 2 {
		t = 2
	}
	return t
}

func (cc *ChatController) maxTokens(requested *int) int {
	if requested != nil && *requested > 0 {
		return *requested
	}
	return cc.defaults.DefaultMaxTokens
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrQuotaExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrNotConfigured):
		return http.StatusServiceUnavailable
	}
	return http.StatusBadGateway
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		log.Printf("failed to write error response: %v", err)
	}
}

// writeSSEEvent formats one event as "event: <type>\ndata: <json>\n\n" and
// flushes so the caller renders it immediately.
func writeSSEEvent(w io.Writer, event llm.StreamEvent) error {
	var payload any
	switch event.Kind {
	case llm.EventDelta:
		payload = DeltaPayload{Text: event.Text}
	case llm.EventDone:
		payload = DonePayload{
			FullText:   event.Done.Text,
			TokenCount: event.Done.TokenCount,
			ModelUsed:  event.Done.ModelUsed,
		}
	case llm.EventError:
		payload = ErrorPayload{Message: event.Err}
	default:
		return fmt.Errorf("unknown stream event kind %d", event.Kind)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal SSE payload: %w", err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Kind, data); err != nil {
		return fmt.Errorf("failed to write SSE event: %w", err)
	}
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
	return nil
}
