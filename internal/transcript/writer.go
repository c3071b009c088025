package transcript

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultTimeFormat is used for the timestamp lines in persisted documents.
const DefaultTimeFormat = "2006-01-02 15:04:05"

// Writer persists transcripts as markdown documents, one file per session.
type Writer struct {
	dir        string
	timeFormat string
}

// NewWriter creates a writer that saves documents under dir.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir, timeFormat: DefaultTimeFormat}
}

// Write renders the transcript under the given title and saves it as
// "<title>_<date>.md" in the writer's directory, creating the directory if
// needed. Returns the resolved path. An empty transcript writes nothing and
// returns an empty path.
func (w *Writer) Write(title string, t *Transcript) (string, error) {
	if t.Empty() {
		return "", nil
	}

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create transcript directory: %w", err)
	}

	name := fmt.Sprintf("%s_%s.md", sanitizeTitle(title), time.Now().Format("2006-01-02"))
	path := filepath.Join(w.dir, name)

	var b strings.Builder
	b.WriteString("# ")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString("Started: ")
	b.WriteString(t.StartedAt().Format(w.timeFormat))
	b.WriteString("\n")
	b.WriteString("Ended: ")
	b.WriteString(time.Now().Format(w.timeFormat))
	b.WriteString("\n\n## Conversation\n\n")
	b.WriteString(t.Render(w.timeFormat))

	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return "", fmt.Errorf("failed to write transcript: %w", err)
	}
	return path, nil
}

// sanitizeTitle strips characters that are unsafe in file names.
func sanitizeTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		title = "untitled"
	}
	replacer := strings.NewReplacer(
		"/", "-",
		"\\", "-",
		":", "-",
		"*", "",
		"?", "",
		"\"", "",
		"<", "",
		">", "",
		"|", "",
		"\n", " ",
	)
	return replacer.Replace(title)
}
