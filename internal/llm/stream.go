package llm

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// sseReader parses the upstream's newline-delimited "data: {...}" frames.
// Recv returns io.EOF on the literal "data: [DONE]" terminator; a stream that
// ends any other way is an error, so half-delivered answers are never
// mistaken for complete ones.
type sseReader struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
}

func newSSEReader(body io.ReadCloser) *sseReader {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &sseReader{body: body, scanner: scanner}
}

type streamFrameWire struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (r *sseReader) Recv() (StreamFrame, error) {
	for r.scanner.Scan() {
		line := strings.TrimSpace(r.scanner.Text())
		if line == "" {
			continue
		}
		data, found := strings.CutPrefix(line, "data:")
		if !found {
			continue
		}
		data = strings.TrimSpace(data)
		if data == "[DONE]" {
			return StreamFrame{}, io.EOF
		}

		var wire streamFrameWire
		if err := json.Unmarshal([]byte(data), &wire); err != nil {
			return StreamFrame{}, fmt.Errorf("decode stream frame: %w", err)
		}
		if wire.Error != nil {
			return StreamFrame{}, &UpstreamError{Message: wire.Error.Message}
		}

		frame := StreamFrame{}
		if len(wire.Choices) > 0 {
			frame.Content = wire.Choices[0].Delta.Content
		}
		if wire.Usage != nil {
			frame.TotalTokens = wire.Usage.TotalTokens
			frame.HasUsage = true
		}
		return frame, nil
	}

	if err := r.scanner.Err(); err != nil {
		return StreamFrame{}, &UpstreamError{Message: err.Error()}
	}
	return StreamFrame{}, &UpstreamError{Message: "stream ended before [DONE]"}
}

func (r *sseReader) Close() error {
	return r.body.Close()
}
