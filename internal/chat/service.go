package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"chatgw/internal/llm"
	"chatgw/internal/quota"
)

// ErrNotConfigured is returned for every request while no upstream
// credential is configured, instead of attempting doomed network calls.
var ErrNotConfigured = errors.New("completion gateway is not configured")

// ErrQuotaExceeded is a structured rejection issued before any network call.
// The caller may retry once its window elapses.
var ErrQuotaExceeded = errors.New("quota exceeded, retry later")

// ChatService drives the model waterfall for one completion request. Each
// inbound call owns its request; the quota store and the read-only catalog
// are the only state shared between calls.
type ChatService struct {
	transport  llm.Transport
	catalog    *llm.Catalog
	guard      *quota.Guard
	configured bool
}

func NewChatService(transport llm.Transport, catalog *llm.Catalog, guard *quota.Guard, configured bool) *ChatService {
	return &ChatService{
		transport:  transport,
		catalog:    catalog,
		guard:      guard,
		configured: configured,
	}
}

// Complete runs the unary waterfall: each candidate model in plan order,
// first success wins. Per-model transport retry already happened inside the
// transport; a model that still failed is simply skipped for the next one.
func (cs *ChatService) Complete(ctx context.Context, identifier string, req llm.CompletionRequest) (llm.CompletionResult, error) {
	if !cs.configured {
		return llm.CompletionResult{}, ErrNotConfigured
	}
	if !cs.guard.Admit(ctx, identifier) {
		return llm.CompletionResult{}, ErrQuotaExceeded
	}

	var lastErr error
	for _, model := range cs.plan(req) {
		result, err := cs.transport.Complete(ctx, model, req)
		if err == nil {
			return result, nil
		}
		if ctx.Err() != nil {
			return llm.CompletionResult{}, ctx.Err()
		}
		lastErr = err
		log.Printf("model %s failed for %s: %v", model, identifier, err)
	}

	if lastErr == nil {
		lastErr = errors.New("no candidate models configured")
	}
	return llm.CompletionResult{}, fmt.Errorf("all candidate models failed: %w", lastErr)
}

// StreamComplete runs the streaming waterfall and delivers events in the
// order upstream chunks arrive. The channel is closed after a Done or
// terminal Error event, or silently when the caller's context is canceled.
func (cs *ChatService) StreamComplete(ctx context.Context, identifier string, req llm.CompletionRequest) <-chan llm.StreamEvent {
	events := make(chan llm.StreamEvent)
	go func() {
		defer close(events)
		cs.streamWaterfall(ctx, identifier, req, events)
	}()
	return events
}

func (cs *ChatService) streamWaterfall(ctx context.Context, identifier string, req llm.CompletionRequest, events chan<- llm.StreamEvent) {
	if !cs.configured {
		emit(ctx, events, errorEvent(ErrNotConfigured))
		return
	}
	if !cs.guard.Admit(ctx, identifier) {
		emit(ctx, events, errorEvent(ErrQuotaExceeded))
		return
	}

	var lastErr error
	for _, model := range cs.plan(req) {
		emitted, err := cs.streamModel(ctx, model, req, events)
		if err == nil {
			return
		}
		if ctx.Err() != nil {
			// Caller is gone; nothing left to tell it
			return
		}
		if emitted {
			// Partial output already reached the caller. Falling back now
			// would stitch text from two models into one answer, so the
			// failure is surfaced instead, preserving what was delivered.
			log.Printf("model %s failed mid-stream for %s: %v", model, identifier, err)
			emit(ctx, events, errorEvent(err))
			return
		}
		lastErr = err
		log.Printf("model %s failed before any output for %s, trying next: %v", model, identifier, err)
	}

	if lastErr == nil {
		lastErr = errors.New("no candidate models configured")
	}
	emit(ctx, events, errorEvent(fmt.Errorf("all candidate models failed: %w", lastErr)))
}

// streamModel plays out one model attempt. It reports whether any content
// delta reached the caller, which decides whether a failure may fall back to
// the next model or must terminate the stream.
func (cs *ChatService) streamModel(ctx context.Context, model string, req llm.CompletionRequest, events chan<- llm.StreamEvent) (bool, error) {
	reader, err := cs.transport.StreamComplete(ctx, model, req)
	if err != nil {
		return false, err
	}
	defer reader.Close()

	var full strings.Builder
	tokens := 0
	haveUsage := false
	emitted := false

	for {
		frame, err := reader.Recv()
		if errors.Is(err, io.EOF) {
			if full.Len() == 0 {
				// A stream that closed cleanly without content is as useless
				// as an empty unary reply; let the next model try.
				return emitted, llm.ErrEmptyCompletion
			}
			count := tokens
			if !haveUsage {
				count = len(strings.Fields(full.String()))
			}
			emit(ctx, events, llm.StreamEvent{
				Kind: llm.EventDone,
				Done: llm.CompletionResult{Text: full.String(), TokenCount: count, ModelUsed: model},
			})
			return emitted, nil
		}
		if err != nil {
			return emitted, err
		}

		if frame.HasUsage {
			tokens = frame.TotalTokens
			haveUsage = true
		}
		if frame.Content != "" {
			if !emit(ctx, events, llm.StreamEvent{Kind: llm.EventDelta, Text: frame.Content}) {
				return emitted, ctx.Err()
			}
			emitted = true
			full.WriteString(frame.Content)
		}
	}
}

func (cs *ChatService) plan(req llm.CompletionRequest) []string {
	if req.Voice {
		return cs.catalog.PlanVoice(req.Model)
	}
	return cs.catalog.Plan(req.Model)
}

func emit(ctx context.Context, events chan<- llm.StreamEvent, event llm.StreamEvent) bool {
	select {
	case events <- event:
		return true
	case <-ctx.Done():
		return false
	}
}

func errorEvent(err error) llm.StreamEvent {
	return llm.StreamEvent{Kind: llm.EventError, Err: err.Error()}
}
