package api

import (
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v5"
)

// StreamWriter receives incremental output during a streamed completion.
type StreamWriter interface {
	// Chunk emits one delta event. resp supplies the envelope fields;
	// text and reasoning are this step's increments.
	Chunk(resp *CompletionResponse, text, reasoning string) error

	// Finish emits the final chunk carrying stop reason, usage and
	// timings, then the end-of-stream sentinel.
	Finish(resp *CompletionResponse) error
}

// SSEStreamWriter streams completion chunks as server-sent events.
type SSEStreamWriter struct {
	w       io.Writer
	flusher func()
	begun   bool
}

func NewSSEStreamWriter(c *echo.Context) (*SSEStreamWriter, error) {
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")

	flusher, ok := res.(interface{ Flush() })
	if !ok {
		return nil, fmt.Errorf("streaming unsupported")
	}

	return &SSEStreamWriter{w: res, flusher: flusher.Flush}, nil
}

// Started reports whether any event has been written. Once true the
// response cannot be replaced with a JSON error body.
func (s *SSEStreamWriter) Started() bool {
	return s.begun
}

func (s *SSEStreamWriter) Chunk(resp *CompletionResponse, text, reasoning string) error {
	return s.send(CompletionChunk{
		ID:        resp.ID,
		Object:    "text_completion.chunk",
		Created:   resp.Created,
		Model:     resp.Model,
		Text:      text,
		Reasoning: reasoning,
	})
}

func (s *SSEStreamWriter) Finish(resp *CompletionResponse) error {
	err := s.send(CompletionChunk{
		ID:         resp.ID,
		Object:     "text_completion.chunk",
		Created:    resp.Created,
		Model:      resp.Model,
		StopReason: resp.StopReason,
		Usage:      &resp.Usage,
		Timings:    resp.Timings,
	})
	if err != nil {
		return err
	}
	if _, err := fmt.Fprint(s.w, "data: [DONE]\n\n"); err != nil {
		return err
	}
	s.flusher()
	return nil
}

// Fail emits a best-effort error event on an already-started stream,
// preserving any text accumulated before the failure, then ends the
// stream.
func (s *SSEStreamWriter) Fail(err error, text string) {
	payload := map[string]any{
		"error": ResponseError{Message: err.Error(), Type: "server_error"},
	}
	if text != "" {
		payload["text"] = text
	}
	_ = s.send(payload)
	_, _ = fmt.Fprint(s.w, "data: [DONE]\n\n")
	s.flusher()
}

func (s *SSEStreamWriter) send(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.begun = true
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", string(b)); err != nil {
		return err
	}
	s.flusher()
	return nil
}
