package llm

import (
	"context"
	"errors"
	"fmt"
)

// Message is one canonical turn of conversation history. Order is
// meaningful; a request's messages are immutable once normalized.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is owned by the orchestrator handling one inbound call
// and discarded when the call completes.
type CompletionRequest struct {
	Messages    []Message
	Model       string
	Temperature float64
	MaxTokens   int
	Voice       bool
}

// CompletionResult is the success value of a unary completion.
type CompletionResult struct {
	Text       string `json:"text"`
	TokenCount int    `json:"tokenCount"`
	ModelUsed  string `json:"modelUsed"`
}

type StreamEventKind int

const (
	EventDelta StreamEventKind = iota
	EventDone
	EventError
)

func (k StreamEventKind) String() string {
	switch k {
	case EventDelta:
		return "delta"
	case EventDone:
		return "done"
	case EventError:
		return "error"
	}
	return "unknown"
}

// StreamEvent is one unit of an ordered incremental result sequence. Exactly
// one of the payload fields is meaningful, selected by Kind. A Done or
// terminal Error ends the sequence.
type StreamEvent struct {
	Kind StreamEventKind
	Text string           // EventDelta
	Done CompletionResult // EventDone
	Err  string           // EventError
}

// StreamFrame is one parsed upstream chunk.
type StreamFrame struct {
	Content     string
	TotalTokens int
	HasUsage    bool
}

// StreamReader yields upstream chunks in arrival order. Recv returns io.EOF
// once the upstream signals normal termination.
type StreamReader interface {
	Recv() (StreamFrame, error)
	Close() error
}

// Transport issues one completion attempt against the upstream gateway for a
// single model. Retry of transient failures happens inside the transport;
// fallback across models is the orchestrator's job.
type Transport interface {
	Complete(ctx context.Context, model string, req CompletionRequest) (CompletionResult, error)
	StreamComplete(ctx context.Context, model string, req CompletionRequest) (StreamReader, error)
}

// ErrEmptyCompletion marks a 2xx upstream reply that carried no answer text.
// It is not retried at the transport tier but lets the orchestrator fall back
// to another model instead of surfacing an empty reply.
var ErrEmptyCompletion = errors.New("upstream returned an empty completion")

// UpstreamError is a failed attempt against the upstream gateway. Status 0
// means the request never got an HTTP response (timeout, connection reset).
type UpstreamError struct {
	Status     int
	Message    string
	RetryAfter int // seconds, from the Retry-After header when present
}

func (e *UpstreamError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("upstream request failed: %s", e.Message)
	}
	return fmt.Sprintf("upstream error status %d: %s", e.Status, e.Message)
}

// Retryable reports whether the failure is plausibly transient. Any other
// non-2xx status is presumed non-transient (bad request, auth failure) and
// returned without retry.
func (e *UpstreamError) Retryable() bool {
	switch e.Status {
	case 0, 429, 500, 502, 503, 504:
		return true
	}
	return false
}
