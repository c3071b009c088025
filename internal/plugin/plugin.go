// Package plugin implements the text transform pipeline applied around
// generation. Plugins run in ascending priority order; a failing plugin is
// logged and skipped without aborting the chain.
package plugin

import (
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// DefaultPriority is used by plugins that do not care about ordering.
const DefaultPriority = 100

// Plugin transforms text before (PreProcess) and after (PostProcess)
// generation. Implementations must be pure functions of their input plus
// their own configuration; no state is shared between plugins.
type Plugin interface {
	Name() string
	PreProcess(text string) (string, error)
	PostProcess(text string) (string, error)
	Priority() int
}

// Pipeline holds registered plugins and applies them in priority order.
type Pipeline struct {
	plugins []Plugin
	logger  *zap.Logger
}

// NewPipeline creates an empty pipeline. A nil logger defaults to no-op.
func NewPipeline(logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{logger: logger}
}

// Register adds a plugin. Duplicate names are rejected.
func (p *Pipeline) Register(plg Plugin) error {
	for _, existing := range p.plugins {
		if existing.Name() == plg.Name() {
			return fmt.Errorf("plugin %s already registered", plg.Name())
		}
	}
	p.plugins = append(p.plugins, plg)
	return nil
}

// Plugins returns the registered plugins in registration order.
func (p *Pipeline) Plugins() []Plugin {
	out := make([]Plugin, len(p.plugins))
	copy(out, p.plugins)
	return out
}

// sorted returns plugins ordered by ascending priority. The sort is stable
// so equal priorities keep registration order, and it runs on every call so
// plugins added after construction are always ordered correctly.
func (p *Pipeline) sorted() []Plugin {
	out := make([]Plugin, len(p.plugins))
	copy(out, p.plugins)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority() < out[j].Priority()
	})
	return out
}

// RunPre folds PreProcess over the sorted plugin list. A plugin error leaves
// that stage's input unchanged and the fold continues.
func (p *Pipeline) RunPre(text string) string {
	current := text
	for _, plg := range p.sorted() {
		next, err := plg.PreProcess(current)
		if err != nil {
			p.logger.Warn("plugin pre-process failed",
				zap.String("plugin", plg.Name()),
				zap.Error(err))
			continue
		}
		current = next
	}
	return current
}

// RunPost folds PostProcess over the sorted plugin list with the same error
// isolation as RunPre.
func (p *Pipeline) RunPost(text string) string {
	current := text
	for _, plg := range p.sorted() {
		next, err := plg.PostProcess(current)
		if err != nil {
			p.logger.Warn("plugin post-process failed",
				zap.String("plugin", plg.Name()),
				zap.Error(err))
			continue
		}
		current = next
	}
	return current
}
