package feeds

import (
	"strings"

	lingua "github.com/pemistahl/lingua-go"
)

// Detector assigns an ISO 639-1 language code to article text
type Detector struct {
	detector lingua.LanguageDetector
}

// NewDetector builds a detector over all languages lingua knows. Building
// loads the language models, so a single detector is shared per process.
func NewDetector() *Detector {
	detector := lingua.NewLanguageDetectorBuilder().
		FromLanguages(lingua.AllLanguages()...).
		WithMinimumRelativeDistance(0.25).
		Build()

	return &Detector{detector: detector}
}

// Detect returns the lowercase ISO 639-1 code for the text, or an empty
// string when no language reaches the confidence threshold
func (d *Detector) Detect(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	lang, ok := d.detector.DetectLanguageOf(text)
	if !ok {
		return ""
	}
	return strings.ToLower(lang.IsoCode639_1().String())
}
