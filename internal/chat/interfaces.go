package chat

// ChatRequest is the inbound completion request consumed from the HTTP
// layer. Messages stay loosely typed until normalization.
type ChatRequest struct {
	Messages    []any    `json:"messages"`
	Model       string   `json:"model,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	Stream      bool     `json:"stream,omitempty"`
	Voice       bool     `json:"voice,omitempty"`
}

// Event payloads written toward the caller, one per SSE frame.

type DeltaPayload struct {
	Text string `json:"text"`
}

type DonePayload struct {
	FullText   string `json:"fullText"`
	TokenCount int    `json:"tokenCount"`
	ModelUsed  string `json:"modelUsed"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
