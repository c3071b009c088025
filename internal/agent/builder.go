package agent

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"parley/internal/backend"
	"parley/internal/plugin"
	"parley/internal/sink"
	"parley/internal/transcript"
)

// Builder assembles an Agent step by step. Methods return the builder for
// chaining; errors are deferred and surfaced by Build so a construction
// sequence reads as one expression.
type Builder struct {
	backend  backend.Backend
	plugins  []plugin.Plugin
	sinks    []sinkEntry
	writer   *transcript.Writer
	logger   *zap.Logger
	observer TurnObserver
	errs     []error
}

type sinkEntry struct {
	sink        sink.Sink
	makeDefault bool
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// WithBackend sets the generation backend. Required.
func (b *Builder) WithBackend(be backend.Backend) *Builder {
	b.backend = be
	return b
}

// WithPlugin adds a transform plugin. Plugins run in priority order
// regardless of registration order.
func (b *Builder) WithPlugin(p plugin.Plugin) *Builder {
	b.plugins = append(b.plugins, p)
	return b
}

// WithSink registers an output sink. The first registered sink becomes the
// default; makeDefault promotes a later one instead.
func (b *Builder) WithSink(s sink.Sink, makeDefault bool) *Builder {
	b.sinks = append(b.sinks, sinkEntry{sink: s, makeDefault: makeDefault})
	return b
}

// WithWriter sets the transcript writer used by Persist.
func (b *Builder) WithWriter(w *transcript.Writer) *Builder {
	b.writer = w
	return b
}

// WithSaveDir is shorthand for WithWriter over a directory.
func (b *Builder) WithSaveDir(dir string) *Builder {
	return b.WithWriter(transcript.NewWriter(dir))
}

// WithLogger sets the structured logger. Defaults to a no-op logger.
func (b *Builder) WithLogger(l *zap.Logger) *Builder {
	b.logger = l
	return b
}

// WithTurnObserver registers a callback invoked after each appended turn.
func (b *Builder) WithTurnObserver(o TurnObserver) *Builder {
	b.observer = o
	return b
}

// Build validates the accumulated configuration and returns the Agent.
func (b *Builder) Build() (*Agent, error) {
	if b.backend == nil {
		b.errs = append(b.errs, fmt.Errorf("agent requires a backend"))
	}
	if len(b.errs) > 0 {
		return nil, b.errs[0]
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	writer := b.writer
	if writer == nil {
		writer = transcript.NewWriter("conversations")
	}

	pipeline := plugin.NewPipeline(logger)
	// Registration in a stable order keeps duplicate detection
	// deterministic; execution order is priority-driven anyway.
	plugins := make([]plugin.Plugin, len(b.plugins))
	copy(plugins, b.plugins)
	sort.SliceStable(plugins, func(i, j int) bool {
		return plugins[i].Priority() < plugins[j].Priority()
	})
	for _, p := range plugins {
		if err := pipeline.Register(p); err != nil {
			return nil, fmt.Errorf("registering plugin: %w", err)
		}
	}

	registry := sink.NewRegistry()
	for _, entry := range b.sinks {
		if err := registry.Register(entry.sink, entry.makeDefault); err != nil {
			return nil, fmt.Errorf("registering sink: %w", err)
		}
	}

	return &Agent{
		backend:    b.backend,
		pipeline:   pipeline,
		sinks:      registry,
		transcript: transcript.New(),
		writer:     writer,
		logger:     logger,
		observer:   b.observer,
		sessionID:  uuid.NewString(),
	}, nil
}
