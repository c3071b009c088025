package agent

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"parley/internal/backend"
)

const (
	// titleRuneLimit caps the requested summary title length.
	titleRuneLimit = 20

	// placeholderTitle stands in when summarization fails or yields
	// nothing usable.
	placeholderTitle = "untitled conversation"
)

// summaryPrompt asks the backend for a short title. The reply is used
// verbatim as the transcript title, so it must contain nothing else.
const summaryPrompt = "Summarize this conversation in a short title of at " +
	"most %d characters. Reply with the title only, no punctuation around it."

// Summarize asks the backend for a short title describing the session so
// far and records it for Persist. Failure is never fatal: the placeholder
// title is recorded and returned instead.
func (a *Agent) Summarize(ctx context.Context) string {
	if a.transcript.Empty() {
		a.title = placeholderTitle
		return a.title
	}

	prompt := fmt.Sprintf(summaryPrompt, titleRuneLimit)
	contents, errs := a.backend.GenerateStream(ctx, backend.Request{
		Prompt:  prompt,
		History: a.transcript.Turns(),
	})

	var b strings.Builder
	for fragment := range contents {
		b.WriteString(fragment)
	}
	if err := <-errs; err != nil {
		a.logger.Warn("session summarization failed, using placeholder title",
			zap.Error(err))
		a.title = placeholderTitle
		return a.title
	}

	title := sanitizeSummary(b.String())
	if title == "" {
		title = placeholderTitle
	}
	a.title = title
	return a.title
}

// Persist writes the session transcript to disk under the recorded title,
// then resets the transcript for the next session. An empty transcript is
// a no-op. When no title was recorded the placeholder is used.
func (a *Agent) Persist() (string, error) {
	if a.transcript.Empty() {
		return "", nil
	}
	title := a.title
	if title == "" {
		title = placeholderTitle
	}
	path, err := a.writer.Write(title, a.transcript)
	if err != nil {
		return "", err
	}
	a.logger.Info("conversation saved",
		zap.String("path", path),
		zap.String("title", title),
		zap.Int("turns", a.transcript.Len()))
	a.transcript.Reset()
	a.title = ""
	return path, nil
}

// sanitizeSummary collapses a model reply into a single-line title capped
// at titleRuneLimit runes.
func sanitizeSummary(raw string) string {
	title := strings.TrimSpace(raw)
	if i := strings.IndexByte(title, '\n'); i >= 0 {
		title = strings.TrimSpace(title[:i])
	}
	title = strings.Trim(title, `"'`)
	if utf8.RuneCountInString(title) > titleRuneLimit {
		runes := []rune(title)
		title = strings.TrimSpace(string(runes[:titleRuneLimit]))
	}
	return title
}
