// Package agent implements the orchestration core: it sequences transform
// pre/post-processing around generation, fans streamed output out to the
// registered sinks, owns the session transcript, and drives the end-of-
// session summarize-then-persist protocol.
package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"parley/internal/backend"
	"parley/internal/plugin"
	"parley/internal/sink"
	"parley/internal/transcript"
)

// TurnObserver is notified after every turn appended to the transcript.
// Observers must not block; failures are theirs to swallow.
type TurnObserver func(sessionID string, turnNumber int, turn transcript.Turn)

// Agent coordinates one conversation session. Turns run strictly one at a
// time: a turn completes fully, including all sink deliveries, before the
// next begins, so the transcript needs no locking.
type Agent struct {
	backend    backend.Backend
	pipeline   *plugin.Pipeline
	sinks      *sink.Registry
	transcript *transcript.Transcript
	writer     *transcript.Writer
	logger     *zap.Logger
	observer   TurnObserver

	sessionID string
	title     string
}

// SessionID returns this session's unique identifier.
func (a *Agent) SessionID() string { return a.sessionID }

// Transcript exposes the session transcript for inspection.
func (a *Agent) Transcript() *transcript.Transcript { return a.transcript }

// Sinks exposes the sink registry, e.g. for late registration.
func (a *Agent) Sinks() *sink.Registry { return a.sinks }

// Pipeline exposes the transform pipeline.
func (a *Agent) Pipeline() *plugin.Pipeline { return a.pipeline }

// append records a turn and notifies the observer.
func (a *Agent) append(role transcript.Role, content string) {
	turn := a.transcript.Append(role, content)
	if a.observer != nil {
		a.observer(a.sessionID, a.transcript.Len(), turn)
	}
}

// renderError delivers a human-readable failure message to the resolved
// sinks so the error stays visible even when the caller discards it.
func (a *Agent) renderError(sinks []sink.Sink, err error) {
	message := fmt.Sprintf("Error: %v", err)
	for _, s := range sinks {
		if rerr := s.Render(message); rerr != nil {
			a.logger.Warn("failed to render error message",
				zap.String("sink", s.Name()),
				zap.Error(rerr))
		}
	}
}

// Process executes one atomic turn: pre-process, generate, post-process,
// append user and assistant turns, render to the resolved sinks, and return
// the final text. Sink names are resolved before generation; an unknown
// name fails the turn immediately. A backend failure is rendered to the
// sinks and returned; the transcript is left without the failed turn.
func (a *Agent) Process(ctx context.Context, input string, sinkNames ...string) (string, error) {
	sinks, err := a.sinks.Resolve(sinkNames)
	if err != nil {
		return "", err
	}

	processed := a.pipeline.RunPre(input)

	response, err := a.backend.Generate(ctx, backend.Request{
		Prompt:  processed,
		History: a.transcript.Turns(),
	})
	if err != nil {
		a.renderError(sinks, err)
		return "", err
	}

	final := a.pipeline.RunPost(response)

	a.append(transcript.RoleUser, processed)
	a.append(transcript.RoleAssistant, final)

	for _, s := range sinks {
		if rerr := s.Render(final); rerr != nil {
			a.logger.Warn("sink render failed",
				zap.String("sink", s.Name()),
				zap.Error(rerr))
		}
	}
	return final, nil
}

// ProcessStream executes one streamed turn. The user turn is appended
// before generation so later interleaved prompts see it. The backend's
// fragment sequence is single-consumption, so it is drained into an
// in-memory buffer first; every resolved sink then gets its own replay of
// the buffer, delivered concurrently and joined before the turn returns.
// The canonical final text is the trimmed concatenation of all fragments,
// identical regardless of how many sinks were attached.
func (a *Agent) ProcessStream(ctx context.Context, input string, sinkNames ...string) (string, error) {
	sinks, err := a.sinks.Resolve(sinkNames)
	if err != nil {
		return "", err
	}

	processed := a.pipeline.RunPre(input)
	history := a.transcript.Turns()
	a.append(transcript.RoleUser, processed)

	contents, errs := a.backend.GenerateStream(ctx, backend.Request{
		Prompt:  processed,
		History: history,
	})

	var fragments []string
	for fragment := range contents {
		fragments = append(fragments, fragment)
	}
	streamErr := <-errs

	// Deliver whatever was produced, even on mid-stream failure: partial
	// output is never retracted.
	a.fanOut(ctx, sinks, fragments)

	if streamErr != nil {
		a.renderError(sinks, streamErr)
		return "", streamErr
	}

	final := strings.TrimSpace(strings.Join(fragments, ""))
	a.append(transcript.RoleAssistant, final)
	return final, nil
}

// fanOut replays the buffered fragments to every sink concurrently and
// waits for all deliveries. A slow sink delays only the turn's completion,
// never another sink's delivery.
func (a *Agent) fanOut(ctx context.Context, sinks []sink.Sink, fragments []string) {
	if len(sinks) == 0 || len(fragments) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, s := range sinks {
		wg.Add(1)
		go func(s sink.Sink) {
			defer wg.Done()

			// The fragments are already fully buffered, so the replay
			// channel can be filled and closed up front. A sink that
			// returns early leaves undelivered fragments to the garbage
			// collector instead of a blocked feeder.
			replay := make(chan string, len(fragments))
			for _, fragment := range fragments {
				replay <- fragment
			}
			close(replay)

			if err := s.RenderStream(ctx, replay); err != nil {
				a.logger.Warn("sink stream delivery failed",
					zap.String("sink", s.Name()),
					zap.Error(err))
			}
		}(s)
	}
	wg.Wait()
}
