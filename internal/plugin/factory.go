package plugin

import "fmt"

// Factory constructs a plugin from its configuration map.
type Factory func(cfg map[string]string) (Plugin, error)

// factories maps plugin names to constructors. Names are resolved at
// startup from configuration; dynamic loading is deliberately absent.
var factories = map[string]Factory{
	"translator": func(cfg map[string]string) (Plugin, error) {
		return NewTranslator(cfg), nil
	},
	"trim": func(cfg map[string]string) (Plugin, error) {
		return NewTrimmer(), nil
	},
}

// Build constructs the named plugin. Unknown names are configuration errors
// that callers report and skip rather than abort on.
func Build(name string, cfg map[string]string) (Plugin, error) {
	factory, ok := factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown plugin: %s", name)
	}
	return factory(cfg)
}

// Known returns whether a plugin name has a registered factory.
func Known(name string) bool {
	_, ok := factories[name]
	return ok
}
