package sink

import (
	"context"
	"sync"
)

// Memory captures everything delivered to it. It backs tests and any caller
// that wants to inspect exactly what a sink received.
type Memory struct {
	name string

	mu      sync.Mutex
	renders []string
	streams [][]string
}

// NewMemory creates a capturing sink with the given name.
func NewMemory(name string) *Memory {
	return &Memory{name: name}
}

func (m *Memory) Name() string { return m.name }

func (m *Memory) Render(content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.renders = append(m.renders, content)
	return nil
}

func (m *Memory) RenderStream(ctx context.Context, fragments <-chan string) error {
	var got []string
	for {
		select {
		case fragment, ok := <-fragments:
			if !ok {
				m.mu.Lock()
				m.streams = append(m.streams, got)
				m.mu.Unlock()
				return nil
			}
			got = append(got, fragment)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Renders returns all completed messages received via Render.
func (m *Memory) Renders() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.renders))
	copy(out, m.renders)
	return out
}

// LastRender returns the most recent rendered message, or "".
func (m *Memory) LastRender() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.renders) == 0 {
		return ""
	}
	return m.renders[len(m.renders)-1]
}

// Streams returns every fragment sequence received via RenderStream.
func (m *Memory) Streams() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]string, len(m.streams))
	for i, s := range m.streams {
		cp := make([]string, len(s))
		copy(cp, s)
		out[i] = cp
	}
	return out
}
