// Package sink defines the presentation targets generated text is delivered
// to, and the named registry the orchestrator resolves them from.
package sink

import (
	"context"
	"fmt"
)

// Sink consumes generated text, either as a single completed message or as
// an ordered fragment stream. RenderStream must consume the full channel
// before returning.
type Sink interface {
	Name() string
	Render(content string) error
	RenderStream(ctx context.Context, fragments <-chan string) error
}

// NotFoundError reports an unknown sink name at resolution time.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("sink %s not found", e.Name)
}

// Registry maps names to sinks with exactly one default. The first sink
// registered becomes the default unless a later one is explicitly marked.
type Registry struct {
	sinks       map[string]Sink
	defaultName string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sinks: make(map[string]Sink)}
}

// Register adds a sink under its own name. Duplicate names are rejected.
func (r *Registry) Register(s Sink, makeDefault bool) error {
	name := s.Name()
	if _, exists := r.sinks[name]; exists {
		return fmt.Errorf("sink %s already registered", name)
	}
	r.sinks[name] = s
	if makeDefault || r.defaultName == "" {
		r.defaultName = name
	}
	return nil
}

// Unregister removes a sink. The default sink cannot be removed.
func (r *Registry) Unregister(name string) error {
	if _, exists := r.sinks[name]; !exists {
		return &NotFoundError{Name: name}
	}
	if name == r.defaultName {
		return fmt.Errorf("cannot unregister default sink %s", name)
	}
	delete(r.sinks, name)
	return nil
}

// Get returns the named sink, or the default sink when name is empty.
func (r *Registry) Get(name string) (Sink, error) {
	if name == "" {
		name = r.defaultName
	}
	s, ok := r.sinks[name]
	if !ok {
		return nil, &NotFoundError{Name: name}
	}
	return s, nil
}

// SetDefault marks an already-registered sink as the default.
func (r *Registry) SetDefault(name string) error {
	if _, ok := r.sinks[name]; !ok {
		return &NotFoundError{Name: name}
	}
	r.defaultName = name
	return nil
}

// Resolve maps sink names to instances. With no names it returns the default
// sink alone, or nothing when the registry is empty. Any unknown name fails
// the whole resolution.
func (r *Registry) Resolve(names []string) ([]Sink, error) {
	if len(names) == 0 {
		if r.defaultName == "" {
			return nil, nil
		}
		s, err := r.Get("")
		if err != nil {
			return nil, err
		}
		return []Sink{s}, nil
	}

	out := make([]Sink, 0, len(names))
	for _, name := range names {
		s, err := r.Get(name)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Len reports the number of registered sinks.
func (r *Registry) Len() int {
	return len(r.sinks)
}
