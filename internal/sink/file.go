package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// File appends rendered messages to a plain log file. It is a pure
// renderer: transcript ownership and summarization stay with the agent.
type File struct {
	path string
}

// NewFile creates a file sink appending to the given path.
func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) Name() string { return "file" }

// Render appends one timestamped message line.
func (f *File) Render(content string) error {
	return f.append(content)
}

// RenderStream drains the fragment channel and appends the concatenation as
// a single message.
func (f *File) RenderStream(ctx context.Context, fragments <-chan string) error {
	var b strings.Builder
	for {
		select {
		case fragment, ok := <-fragments:
			if !ok {
				return f.append(b.String())
			}
			b.WriteString(fragment)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (f *File) append(content string) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}
	fh, err := os.OpenFile(f.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open export file: %w", err)
	}
	defer fh.Close()

	line := fmt.Sprintf("[%s] %s\n", time.Now().Format(time.RFC3339), content)
	if _, err := fh.WriteString(line); err != nil {
		return fmt.Errorf("failed to write export file: %w", err)
	}
	return nil
}
