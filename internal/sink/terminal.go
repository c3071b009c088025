package sink

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

// fragmentPacing is the bounded per-fragment delay used during streaming
// delivery to produce a steady typewriter effect.
const fragmentPacing = 10 * time.Millisecond

// Terminal renders messages to a terminal, using glamour for markdown-ish
// content and a lipgloss style for plain text.
type Terminal struct {
	out      io.Writer
	renderer *glamour.TermRenderer
	style    lipgloss.Style
	pacing   time.Duration
}

// TerminalOption customizes a Terminal sink.
type TerminalOption func(*Terminal)

// WithOutput redirects terminal output, mainly for tests.
func WithOutput(w io.Writer) TerminalOption {
	return func(t *Terminal) { t.out = w }
}

// WithPacing overrides the streaming fragment delay.
func WithPacing(d time.Duration) TerminalOption {
	return func(t *Terminal) { t.pacing = d }
}

// NewTerminal creates a terminal sink writing to stdout by default. The
// glamour renderer is optional; when it cannot be constructed the sink
// falls back to styled plain text.
func NewTerminal(opts ...TerminalOption) *Terminal {
	renderer, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)

	t := &Terminal{
		out:      os.Stdout,
		renderer: renderer,
		style:    lipgloss.NewStyle().Foreground(lipgloss.Color("6")),
		pacing:   fragmentPacing,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Terminal) Name() string { return "terminal" }

// Render writes one completed message. Markdown-looking content goes through
// glamour; everything else is printed with the plain style.
func (t *Terminal) Render(content string) error {
	if t.renderer != nil && looksLikeMarkdown(content) {
		rendered, err := t.renderer.Render(content)
		if err == nil {
			_, werr := io.WriteString(t.out, rendered)
			return werr
		}
		// Fall through to plain output on renderer failure.
	}
	_, err := fmt.Fprintln(t.out, t.style.Render(content))
	return err
}

// RenderStream writes fragments as they arrive, pacing each one, and
// terminates with a newline. The channel is always drained fully unless the
// context is cancelled.
func (t *Terminal) RenderStream(ctx context.Context, fragments <-chan string) error {
	for {
		select {
		case fragment, ok := <-fragments:
			if !ok {
				_, err := fmt.Fprintln(t.out)
				return err
			}
			if _, err := io.WriteString(t.out, fragment); err != nil {
				return err
			}
			if t.pacing > 0 {
				select {
				case <-time.After(t.pacing):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// looksLikeMarkdown is a cheap heuristic for deciding whether glamour is
// worth invoking. Code fences and headings are the strong signals.
func looksLikeMarkdown(content string) bool {
	if strings.Contains(content, "```") {
		return true
	}
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") ||
			strings.HasPrefix(trimmed, "- ") ||
			strings.HasPrefix(trimmed, "> ") {
			return true
		}
	}
	return false
}
