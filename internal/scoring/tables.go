// Package scoring implements the deterministic rule-based answer scorer and
// the cross-answer consistency checker. It never calls external services and
// never fails; it is the fallback of last resort for the AI evaluator.
package scoring

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/safarprep/interview-coach/internal/domain"
)

//go:embed tables.yaml
var tablesYAML []byte

// PhraseTable holds the locale-specific phrase lists the scorer matches
// against normalized answers.
type PhraseTable struct {
	Hedging     []string `yaml:"hedging"`
	Permanence  []string `yaml:"permanence"`
	Affirmative []string `yaml:"affirmative"`
	Negative    []string `yaml:"negative"`
}

// DurationRange is the expected stay length for a visa type, in days.
type DurationRange struct {
	MinDays int `yaml:"min_days"`
	MaxDays int `yaml:"max_days"`
}

// Tables is the full scoring data set: phrase tables keyed by locale plus
// per-visa-type duration expectations. Kept as data so behavior can be tuned
// without code changes.
type Tables struct {
	Locales   map[string]PhraseTable            `yaml:"locales"`
	Durations map[domain.VisaType]DurationRange `yaml:"durations"`
	// TouristMaxDays is the hard cap beyond which any tourist-visa duration
	// answer is flagged.
	TouristMaxDays int `yaml:"tourist_max_days"`
}

// LoadTables parses a YAML table set.
func LoadTables(data []byte) (Tables, error) {
	var t Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Tables{}, fmt.Errorf("op=scoring.LoadTables: %w", err)
	}
	if len(t.Locales) == 0 {
		return Tables{}, fmt.Errorf("op=scoring.LoadTables: %w: no locales", domain.ErrSchemaInvalid)
	}
	if _, ok := t.Locales["en"]; !ok {
		return Tables{}, fmt.Errorf("op=scoring.LoadTables: %w: en locale required", domain.ErrSchemaInvalid)
	}
	return t, nil
}

// DefaultTables loads the embedded table set.
func DefaultTables() (Tables, error) { return LoadTables(tablesYAML) }

// Phrases returns the phrase table for a locale, falling back to English.
func (t Tables) Phrases(locale string) PhraseTable {
	if p, ok := t.Locales[locale]; ok {
		return p
	}
	return t.Locales["en"]
}

// ExpectedDuration returns the expected stay range for a visa type.
func (t Tables) ExpectedDuration(v domain.VisaType) (DurationRange, bool) {
	r, ok := t.Durations[v]
	return r, ok
}
