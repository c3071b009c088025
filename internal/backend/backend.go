// Package backend defines the generation capability interface and the
// concrete provider clients that implement it.
package backend

import (
	"context"
	"fmt"

	"parley/internal/transcript"
)

// Request carries one generation call. It is constructed fresh per call and
// never mutated after submission.
type Request struct {
	Prompt  string
	History []transcript.Turn
}

// Backend produces assistant text for a prompt plus optional history,
// either atomically or as an incremental fragment stream.
//
// GenerateStream returns a fragment channel and an error channel. The
// fragment channel is finite, closed by the producer, and consumable exactly
// once; callers that need multiple traversals must buffer it themselves.
// A mid-stream failure is reported on the error channel after the fragment
// channel closes; fragments already delivered are not retracted.
type Backend interface {
	Name() string
	Generate(ctx context.Context, req Request) (string, error)
	GenerateStream(ctx context.Context, req Request) (<-chan string, <-chan error)
}

// Error is the failure type every provider client reports: transport
// failures, non-success statuses, and malformed payloads all surface here.
type Error struct {
	Provider string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Provider, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// newError builds a provider error, optionally wrapping a cause.
func newError(provider, message string, cause error) *Error {
	return &Error{Provider: provider, Message: message, Err: cause}
}

// wireMessage is the role/content pair shared by the OpenAI-compatible and
// Anthropic wire formats.
type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// historyMessages converts transcript turns to wire messages, mapping the
// assistant role through and everything else to user/system as tagged.
func historyMessages(history []transcript.Turn) []wireMessage {
	out := make([]wireMessage, 0, len(history))
	for _, turn := range history {
		out = append(out, wireMessage{
			Role:    string(turn.Role),
			Content: turn.Content,
		})
	}
	return out
}
