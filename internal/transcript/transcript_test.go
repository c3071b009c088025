package transcript

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscriptAppendOrder(t *testing.T) {
	tr := New()
	tr.Append(RoleUser, "hello")
	tr.Append(RoleAssistant, "hi there")
	tr.Append(RoleUser, "bye")

	turns := tr.Turns()
	require.Len(t, turns, 3)
	assert.Equal(t, RoleUser, turns[0].Role)
	assert.Equal(t, "hello", turns[0].Content)
	assert.Equal(t, RoleAssistant, turns[1].Role)
	assert.Equal(t, "bye", turns[2].Content)
	assert.False(t, turns[0].Timestamp.IsZero())
}

func TestTranscriptTurnsIsCopy(t *testing.T) {
	tr := New()
	tr.Append(RoleUser, "hello")

	turns := tr.Turns()
	turns[0].Content = "mutated"

	fresh := tr.Turns()
	assert.Equal(t, "hello", fresh[0].Content)
}

func TestTranscriptReset(t *testing.T) {
	tr := New()
	tr.Append(RoleUser, "hello")
	require.False(t, tr.Empty())

	before := tr.StartedAt()
	tr.Reset()
	assert.True(t, tr.Empty())
	assert.False(t, tr.StartedAt().Before(before))
}

func TestTranscriptLast(t *testing.T) {
	tr := New()
	_, ok := tr.Last()
	assert.False(t, ok)

	tr.Append(RoleUser, "hello")
	tr.Append(RoleAssistant, "hi")
	last, ok := tr.Last()
	require.True(t, ok)
	assert.Equal(t, RoleAssistant, last.Role)
}

func TestWriterEmptyTranscriptIsNoop(t *testing.T) {
	w := NewWriter(t.TempDir())
	path, err := w.Write("anything", New())
	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestWriterWritesDocument(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "conversations")
	w := NewWriter(dir)

	tr := New()
	tr.Append(RoleUser, "what is Go?")
	tr.Append(RoleAssistant, "A programming language.")

	path, err := w.Write("go basics", tr)
	require.NoError(t, err)
	require.NotEmpty(t, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)

	assert.True(t, strings.HasPrefix(content, "# go basics\n"))
	assert.Contains(t, content, "Started: ")
	assert.Contains(t, content, "Ended: ")
	assert.Contains(t, content, "**User**: what is Go?")
	assert.Contains(t, content, "**Assistant**: A programming language.")
}

func TestWriterSanitizesTitle(t *testing.T) {
	w := NewWriter(t.TempDir())

	tr := New()
	tr.Append(RoleUser, "hi")

	path, err := w.Write("a/b:c?*", tr)
	require.NoError(t, err)
	base := filepath.Base(path)
	assert.NotContains(t, base, "/")
	assert.NotContains(t, base, ":")
	assert.NotContains(t, base, "?")
	assert.True(t, strings.HasSuffix(base, ".md"))
}
