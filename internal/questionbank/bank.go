// Package questionbank loads the interview question catalog and selects the
// question set for a session.
package questionbank

import (
	_ "embed"
	"fmt"
	"math/rand"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/safarprep/interview-coach/internal/domain"
)

//go:embed questions.yaml
var catalogYAML []byte

const (
	maxUniversal    = 6
	maxVisaSpecific = 4
)

// Bank is an immutable question catalog with a seeded randomness source for
// selection order. The source is injectable so tests can pin the ordering.
type Bank struct {
	questions []domain.Question

	mu  sync.Mutex
	rnd *rand.Rand
}

type catalog struct {
	Questions []domain.Question `yaml:"questions"`
}

// New loads the embedded catalog and returns a Bank using the given randomness
// source.
func New(rnd *rand.Rand) (*Bank, error) {
	return Load(catalogYAML, rnd)
}

// Load parses a YAML catalog. Exposed so alternative catalogs can be loaded
// without recompiling.
func Load(data []byte, rnd *rand.Rand) (*Bank, error) {
	var c catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("op=questionbank.Load: %w", err)
	}
	if len(c.Questions) == 0 {
		return nil, fmt.Errorf("op=questionbank.Load: %w: empty catalog", domain.ErrSchemaInvalid)
	}
	for _, q := range c.Questions {
		if q.ID == "" || q.Text == "" {
			return nil, fmt.Errorf("op=questionbank.Load: %w: question missing id or text", domain.ErrSchemaInvalid)
		}
	}
	return &Bank{questions: c.Questions, rnd: rnd}, nil
}

// ByID returns the question with the given id.
func (b *Bank) ByID(id string) (domain.Question, bool) {
	for _, q := range b.questions {
		if q.ID == id {
			return q, true
		}
	}
	return domain.Question{}, false
}

// QuestionsFor selects up to count questions for the visa type: at most six
// universal and four visa-specific questions, shuffled together. If the pool
// is smaller than count, all available questions are returned.
func (b *Bank) QuestionsFor(visaType domain.VisaType, count int) []domain.Question {
	var universal, specific []domain.Question
	for _, q := range b.questions {
		if !q.AppliesTo(visaType) {
			continue
		}
		if q.Category == domain.CategoryUniversal {
			universal = append(universal, q)
		} else {
			specific = append(specific, q)
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	universal = b.pick(universal, maxUniversal)
	specific = b.pick(specific, maxVisaSpecific)

	pool := append(universal, specific...)
	b.rnd.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	if count < len(pool) {
		pool = pool[:count]
	}
	return pool
}

// pick shuffles a copy of qs and truncates it to n. Caller holds b.mu.
func (b *Bank) pick(qs []domain.Question, n int) []domain.Question {
	out := make([]domain.Question, len(qs))
	copy(out, qs)
	b.rnd.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	if n < len(out) {
		out = out[:n]
	}
	return out
}
