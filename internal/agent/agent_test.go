package agent

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"parley/internal/backend"
	"parley/internal/sink"
	"parley/internal/transcript"
)

// opencensus (pulled in transitively by the genai backend) starts a
// permanent worker goroutine in its package init; it is not a leak.
var goleakOpts = []goleak.Option{
	goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"),
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleakOpts...)
}

// wrapPlugin brackets content on both passes so tests can see exactly
// which transforms ran and in what order.
type wrapPlugin struct {
	name     string
	priority int
}

func (p *wrapPlugin) Name() string  { return p.name }
func (p *wrapPlugin) Priority() int { return p.priority }
func (p *wrapPlugin) PreProcess(content string) (string, error) {
	return fmt.Sprintf("[%s-pre]%s", p.name, content), nil
}
func (p *wrapPlugin) PostProcess(content string) (string, error) {
	return fmt.Sprintf("[%s-post]%s", p.name, content), nil
}

func newTestAgent(t *testing.T, be backend.Backend, sinks ...sink.Sink) *Agent {
	t.Helper()
	b := NewBuilder().
		WithBackend(be).
		WithSaveDir(t.TempDir())
	for _, s := range sinks {
		b.WithSink(s, false)
	}
	a, err := b.Build()
	require.NoError(t, err)
	return a
}

func TestProcess(t *testing.T) {
	t.Run("atomic round trip", func(t *testing.T) {
		mock := &backend.Mock{Response: "hi there"}
		mem := sink.NewMemory("memory")
		a := newTestAgent(t, mock, mem)

		out, err := a.Process(context.Background(), "hello")
		require.NoError(t, err)
		assert.Equal(t, "hi there", out)

		turns := a.Transcript().Turns()
		require.Len(t, turns, 2)
		assert.Equal(t, transcript.RoleUser, turns[0].Role)
		assert.Equal(t, "hello", turns[0].Content)
		assert.Equal(t, transcript.RoleAssistant, turns[1].Role)
		assert.Equal(t, "hi there", turns[1].Content)

		assert.Equal(t, "hi there", mem.LastRender())

		req, ok := mock.LastRequest()
		require.True(t, ok)
		assert.Equal(t, "hello", req.Prompt)
		assert.Empty(t, req.History)
	})

	t.Run("transforms wrap request and response in priority order", func(t *testing.T) {
		mock := &backend.Mock{Response: "answer"}
		mem := sink.NewMemory("memory")
		a, err := NewBuilder().
			WithBackend(mock).
			WithSaveDir(t.TempDir()).
			WithSink(mem, false).
			WithPlugin(&wrapPlugin{name: "outer", priority: 10}).
			WithPlugin(&wrapPlugin{name: "inner", priority: 0}).
			Build()
		require.NoError(t, err)

		out, err := a.Process(context.Background(), "q")
		require.NoError(t, err)

		req, ok := mock.LastRequest()
		require.True(t, ok)
		assert.Equal(t, "[outer-pre][inner-pre]q", req.Prompt)
		assert.Equal(t, "[outer-post][inner-post]answer", out)
		assert.Equal(t, out, mem.LastRender())
	})

	t.Run("history grows across turns", func(t *testing.T) {
		mock := &backend.Mock{Response: "r"}
		a := newTestAgent(t, mock, sink.NewMemory("memory"))

		_, err := a.Process(context.Background(), "first")
		require.NoError(t, err)
		_, err = a.Process(context.Background(), "second")
		require.NoError(t, err)

		req, ok := mock.LastRequest()
		require.True(t, ok)
		require.Len(t, req.History, 2)
		assert.Equal(t, "first", req.History[0].Content)
		assert.Equal(t, "r", req.History[1].Content)
	})

	t.Run("backend failure renders error and leaves transcript untouched", func(t *testing.T) {
		mock := &backend.Mock{Err: errors.New("model overloaded")}
		mem := sink.NewMemory("memory")
		a := newTestAgent(t, mock, mem)

		_, err := a.Process(context.Background(), "hello")
		require.Error(t, err)

		assert.True(t, a.Transcript().Empty())
		assert.Contains(t, mem.LastRender(), "Error:")
		assert.Contains(t, mem.LastRender(), "model overloaded")
	})

	t.Run("unknown sink fails before generation", func(t *testing.T) {
		mock := &backend.Mock{Response: "unused"}
		a := newTestAgent(t, mock, sink.NewMemory("memory"))

		_, err := a.Process(context.Background(), "hello", "nope")
		require.Error(t, err)

		var nf *sink.NotFoundError
		assert.ErrorAs(t, err, &nf)
		assert.Empty(t, mock.Requests())
		assert.True(t, a.Transcript().Empty())
	})
}

func TestProcessStream(t *testing.T) {
	t.Run("fragments replayed to every sink", func(t *testing.T) {
		mock := &backend.Mock{Fragments: []string{"Hello ", "World"}}
		first := sink.NewMemory("first")
		second := sink.NewMemory("second")
		third := sink.NewMemory("third")
		a := newTestAgent(t, mock, first, second, third)

		out, err := a.ProcessStream(context.Background(), "hi", "first", "second", "third")
		require.NoError(t, err)
		assert.Equal(t, "Hello World", out)

		for _, mem := range []*sink.Memory{first, second, third} {
			streams := mem.Streams()
			require.Len(t, streams, 1, "sink %s", mem.Name())
			assert.Equal(t, []string{"Hello ", "World"}, streams[0])
		}
	})

	t.Run("user turn appended before generation", func(t *testing.T) {
		mock := &backend.Mock{Fragments: []string{"ok"}}
		a := newTestAgent(t, mock, sink.NewMemory("memory"))

		_, err := a.ProcessStream(context.Background(), "hi")
		require.NoError(t, err)

		// The request history predates the user turn; the transcript
		// carries it.
		req, ok := mock.LastRequest()
		require.True(t, ok)
		assert.Empty(t, req.History)

		turns := a.Transcript().Turns()
		require.Len(t, turns, 2)
		assert.Equal(t, transcript.RoleUser, turns[0].Role)
		assert.Equal(t, "hi", turns[0].Content)
		assert.Equal(t, "ok", turns[1].Content)
	})

	t.Run("canonical text trims surrounding whitespace", func(t *testing.T) {
		mock := &backend.Mock{Fragments: []string{"  Hello ", "World \n"}}
		a := newTestAgent(t, mock, sink.NewMemory("memory"))

		out, err := a.ProcessStream(context.Background(), "hi")
		require.NoError(t, err)
		assert.Equal(t, "Hello World", out)

		last, ok := a.Transcript().Last()
		require.True(t, ok)
		assert.Equal(t, "Hello World", last.Content)
	})

	t.Run("mid-stream failure keeps partial output and user turn only", func(t *testing.T) {
		mock := &backend.Mock{
			Fragments: []string{"partial ", "rest"},
			FailAfter: 1,
			Err:       errors.New("connection reset"),
		}
		mem := sink.NewMemory("memory")
		a := newTestAgent(t, mock, mem)

		_, err := a.ProcessStream(context.Background(), "hi")
		require.Error(t, err)

		streams := mem.Streams()
		require.Len(t, streams, 1)
		assert.Equal(t, []string{"partial "}, streams[0])
		assert.Contains(t, mem.LastRender(), "connection reset")

		turns := a.Transcript().Turns()
		require.Len(t, turns, 1)
		assert.Equal(t, transcript.RoleUser, turns[0].Role)
	})

	t.Run("unknown sink fails before generation", func(t *testing.T) {
		mock := &backend.Mock{Fragments: []string{"unused"}}
		a := newTestAgent(t, mock, sink.NewMemory("memory"))

		_, err := a.ProcessStream(context.Background(), "hi", "missing")
		require.Error(t, err)
		assert.Empty(t, mock.Requests())
		assert.True(t, a.Transcript().Empty())
	})
}

// abortingSink fails stream delivery immediately without consuming any
// fragments.
type abortingSink struct{}

func (s *abortingSink) Name() string        { return "aborting" }
func (s *abortingSink) Render(string) error { return nil }
func (s *abortingSink) RenderStream(ctx context.Context, fragments <-chan string) error {
	return errors.New("write failed")
}

func TestFanOut(t *testing.T) {
	t.Run("zero sinks still produces canonical text", func(t *testing.T) {
		mock := &backend.Mock{Fragments: []string{"Hello ", "World"}}
		a := newTestAgent(t, mock)

		out, err := a.ProcessStream(context.Background(), "hi")
		require.NoError(t, err)
		assert.Equal(t, "Hello World", out)

		turns := a.Transcript().Turns()
		require.Len(t, turns, 2)
		assert.Equal(t, "Hello World", turns[1].Content)
	})

	t.Run("sink aborting mid-delivery leaks nothing and spares other sinks", func(t *testing.T) {
		defer goleak.VerifyNone(t, goleakOpts...)

		mock := &backend.Mock{Fragments: []string{"Hello ", "World"}}
		mem := sink.NewMemory("memory")
		a := newTestAgent(t, mock, &abortingSink{}, mem)

		out, err := a.ProcessStream(context.Background(), "hi", "aborting", "memory")
		require.NoError(t, err)
		assert.Equal(t, "Hello World", out)

		streams := mem.Streams()
		require.Len(t, streams, 1)
		assert.Equal(t, []string{"Hello ", "World"}, streams[0])
	})

	t.Run("delivered content is independent of sink count", func(t *testing.T) {
		runWith := func(extra ...sink.Sink) (*sink.Memory, string) {
			mock := &backend.Mock{Fragments: []string{"one ", "two ", "three"}}
			mem := sink.NewMemory("memory")
			sinks := append([]sink.Sink{mem}, extra...)
			a := newTestAgent(t, mock, sinks...)
			names := make([]string, len(sinks))
			for i, s := range sinks {
				names[i] = s.Name()
			}
			out, err := a.ProcessStream(context.Background(), "hi", names...)
			require.NoError(t, err)
			return mem, out
		}

		alone, aloneOut := runWith()
		paired, pairedOut := runWith(sink.NewMemory("second"))

		assert.Equal(t, aloneOut, pairedOut)
		require.Len(t, alone.Streams(), 1)
		require.Len(t, paired.Streams(), 1)
		assert.Equal(t, alone.Streams()[0], paired.Streams()[0])
	})
}

func TestSummarize(t *testing.T) {
	t.Run("uses backend title", func(t *testing.T) {
		mock := &backend.Mock{
			Response:  "r",
			Fragments: []string{"Greeting ", "chat"},
		}
		a := newTestAgent(t, mock, sink.NewMemory("memory"))
		_, err := a.Process(context.Background(), "hello")
		require.NoError(t, err)

		title := a.Summarize(context.Background())
		assert.Equal(t, "Greeting chat", title)
	})

	t.Run("truncates overlong titles", func(t *testing.T) {
		mock := &backend.Mock{
			Response:  "r",
			Fragments: []string{"This is a very long conversation title"},
		}
		a := newTestAgent(t, mock, sink.NewMemory("memory"))
		_, err := a.Process(context.Background(), "hello")
		require.NoError(t, err)

		title := a.Summarize(context.Background())
		assert.Equal(t, "This is a very long", title)
	})

	t.Run("placeholder on backend failure", func(t *testing.T) {
		mock := &backend.Mock{Response: "r"}
		a := newTestAgent(t, mock, sink.NewMemory("memory"))
		_, err := a.Process(context.Background(), "hello")
		require.NoError(t, err)

		mock.Err = errors.New("summarize failed")
		mock.Fragments = nil
		title := a.Summarize(context.Background())
		assert.Equal(t, "untitled conversation", title)
	})

	t.Run("placeholder without calling backend on empty transcript", func(t *testing.T) {
		mock := &backend.Mock{}
		a := newTestAgent(t, mock, sink.NewMemory("memory"))

		title := a.Summarize(context.Background())
		assert.Equal(t, "untitled conversation", title)
		assert.Empty(t, mock.Requests())
	})
}

func TestPersist(t *testing.T) {
	t.Run("writes transcript and resets", func(t *testing.T) {
		dir := t.TempDir()
		mock := &backend.Mock{
			Response:  "fine, thanks",
			Fragments: []string{"Small talk"},
		}
		a, err := NewBuilder().
			WithBackend(mock).
			WithSaveDir(dir).
			WithSink(sink.NewMemory("memory"), false).
			Build()
		require.NoError(t, err)

		_, err = a.Process(context.Background(), "how are you?")
		require.NoError(t, err)
		a.Summarize(context.Background())

		path, err := a.Persist()
		require.NoError(t, err)
		require.NotEmpty(t, path)
		assert.Equal(t, dir, filepath.Dir(path))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "# Small talk")
		assert.Contains(t, string(data), "how are you?")
		assert.Contains(t, string(data), "fine, thanks")

		assert.True(t, a.Transcript().Empty())
	})

	t.Run("empty transcript is a no-op", func(t *testing.T) {
		a := newTestAgent(t, &backend.Mock{}, sink.NewMemory("memory"))
		path, err := a.Persist()
		require.NoError(t, err)
		assert.Empty(t, path)
	})

	t.Run("falls back to placeholder title", func(t *testing.T) {
		dir := t.TempDir()
		mock := &backend.Mock{Response: "r"}
		a, err := NewBuilder().
			WithBackend(mock).
			WithSaveDir(dir).
			WithSink(sink.NewMemory("memory"), false).
			Build()
		require.NoError(t, err)

		_, err = a.Process(context.Background(), "hello")
		require.NoError(t, err)

		path, err := a.Persist()
		require.NoError(t, err)
		assert.Contains(t, filepath.Base(path), "untitled conversation")
	})
}

func TestTurnObserver(t *testing.T) {
	type observed struct {
		session string
		number  int
		role    transcript.Role
	}
	var seen []observed

	mock := &backend.Mock{Response: "pong"}
	a, err := NewBuilder().
		WithBackend(mock).
		WithSaveDir(t.TempDir()).
		WithSink(sink.NewMemory("memory"), false).
		WithTurnObserver(func(sessionID string, n int, turn transcript.Turn) {
			seen = append(seen, observed{sessionID, n, turn.Role})
		}).
		Build()
	require.NoError(t, err)

	_, err = a.Process(context.Background(), "ping")
	require.NoError(t, err)

	require.Len(t, seen, 2)
	assert.Equal(t, a.SessionID(), seen[0].session)
	assert.Equal(t, 1, seen[0].number)
	assert.Equal(t, transcript.RoleUser, seen[0].role)
	assert.Equal(t, 2, seen[1].number)
	assert.Equal(t, transcript.RoleAssistant, seen[1].role)
}

func TestBuilderRequiresBackend(t *testing.T) {
	_, err := NewBuilder().Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend")
}

func TestDefaultSinkResolution(t *testing.T) {
	mock := &backend.Mock{Response: "out"}
	first := sink.NewMemory("first")
	second := sink.NewMemory("second")
	a := newTestAgent(t, mock, first, second)

	_, err := a.Process(context.Background(), "hi")
	require.NoError(t, err)

	// No names given: only the default (first registered) sink receives
	// the turn.
	assert.Equal(t, []string{"out"}, first.Renders())
	assert.Empty(t, second.Renders())

	_, err = a.Process(context.Background(), "hi again", "second")
	require.NoError(t, err)
	assert.Equal(t, []string{"out"}, second.Renders())
}
