package plugin

import "strings"

// Trimmer normalizes surrounding whitespace on input and output.
type Trimmer struct{}

func NewTrimmer() *Trimmer { return &Trimmer{} }

func (t *Trimmer) Name() string { return "trim" }

func (t *Trimmer) Priority() int { return DefaultPriority }

func (t *Trimmer) PreProcess(text string) (string, error) {
	return strings.TrimSpace(text), nil
}

func (t *Trimmer) PostProcess(text string) (string, error) {
	return strings.TrimSpace(text), nil
}
