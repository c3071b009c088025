package plugin

import "fmt"

// Translator wraps input and output with translation markers. It stands in
// for a real translation service; the markers make the transform direction
// visible in tests and rendered output.
type Translator struct {
	sourceLang string
	targetLang string
}

// NewTranslator creates a translator from its config map. Recognized keys:
// source_lang (default "auto") and target_lang (default "en").
func NewTranslator(cfg map[string]string) *Translator {
	t := &Translator{sourceLang: "auto", targetLang: "en"}
	if v, ok := cfg["source_lang"]; ok && v != "" {
		t.sourceLang = v
	}
	if v, ok := cfg["target_lang"]; ok && v != "" {
		t.targetLang = v
	}
	return t
}

func (t *Translator) Name() string { return "translator" }

// Priority 0: translation must run first on input and first on output.
func (t *Translator) Priority() int { return 0 }

func (t *Translator) PreProcess(text string) (string, error) {
	if t.sourceLang != "en" && t.targetLang == "en" {
		return fmt.Sprintf("[Translated to English]: %s", text), nil
	}
	return text, nil
}

func (t *Translator) PostProcess(text string) (string, error) {
	if t.sourceLang != "en" && t.targetLang == "en" {
		return fmt.Sprintf("[Translated back to %s]: %s", t.sourceLang, text), nil
	}
	return text, nil
}
