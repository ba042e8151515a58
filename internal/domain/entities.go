// Package domain holds the core entities and ports of the interview coach.
package domain

import (
	"context"
	"errors"
	"math"
	"time"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrUpstreamTimeout   = errors.New("upstream timeout")
	ErrUpstreamRateLimit = errors.New("upstream rate limit")
	ErrSchemaInvalid     = errors.New("schema invalid")
	ErrInternal          = errors.New("internal error")
)

// RateLimitError wraps ErrUpstreamRateLimit with an optional server-suggested
// backoff so callers can honor it before retrying.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return "upstream rate limit (retry after " + e.RetryAfter.String() + ")"
	}
	return ErrUpstreamRateLimit.Error()
}

// Unwrap lets errors.Is match the sentinel.
func (e *RateLimitError) Unwrap() error { return ErrUpstreamRateLimit }

// VisaType enumerates the visa categories an interview can target.
type VisaType string

const (
	VisaTourist  VisaType = "tourist"
	VisaVisit    VisaType = "visit"
	VisaFamily   VisaType = "family"
	VisaWork     VisaType = "work"
	VisaStudent  VisaType = "student"
	VisaBusiness VisaType = "business"
)

// AllVisaTypes lists every recognized visa category.
var AllVisaTypes = []VisaType{VisaTourist, VisaVisit, VisaFamily, VisaWork, VisaStudent, VisaBusiness}

// Valid reports whether v is a recognized visa category.
func (v VisaType) Valid() bool {
	for _, t := range AllVisaTypes {
		if v == t {
			return true
		}
	}
	return false
}

// QuestionCategory distinguishes universal questions from visa-specific ones.
type QuestionCategory string

const (
	CategoryUniversal    QuestionCategory = "universal"
	CategoryVisaSpecific QuestionCategory = "visa-specific"
)

// AnswerType tags the shape of answer a question expects.
type AnswerType string

const (
	AnswerFreeText AnswerType = "free_text"
	AnswerDuration AnswerType = "duration"
	AnswerYesNo    AnswerType = "yes_no"
	AnswerDate     AnswerType = "date"
	AnswerNumber   AnswerType = "number"
	AnswerName     AnswerType = "name"
	AnswerAddress  AnswerType = "address"
)

// ScoreCategory names one of the five scoring dimensions.
type ScoreCategory string

const (
	ScoreCompleteness ScoreCategory = "completeness"
	ScoreClarity      ScoreCategory = "clarity"
	ScoreRelevance    ScoreCategory = "relevance"
	ScoreConfidence   ScoreCategory = "confidence"
	ScoreConsistency  ScoreCategory = "consistency"
)

// RuleKind is the discriminator of a ScoringRule variant.
type RuleKind string

const (
	RuleContains    RuleKind = "contains"
	RuleNotContains RuleKind = "not_contains"
	RuleMinLength   RuleKind = "min_length"
	RuleMaxLength   RuleKind = "max_length"
	RuleRegex       RuleKind = "regex"
	RuleDuration    RuleKind = "duration_plausible"
	RuleConsistency RuleKind = "consistency"
)

// ScoringRule adjusts one score dimension when its condition holds against
// the normalized answer text. Value is a substring, a decimal length, or a
// regular expression depending on Kind.
type ScoringRule struct {
	Kind     RuleKind      `yaml:"kind"`
	Value    string        `yaml:"value"`
	Points   int           `yaml:"points"`
	Category ScoreCategory `yaml:"category"`
}

// Question is immutable reference data supplied by the question bank.
type Question struct {
	ID         string           `yaml:"id"`
	Text       string           `yaml:"text"`
	TextUrdu   string           `yaml:"text_ur"`
	Category   QuestionCategory `yaml:"category"`
	VisaTypes  []VisaType       `yaml:"visa_types"` // empty means applicable to all
	AnswerType AnswerType       `yaml:"answer_type"`
	Rules      []ScoringRule    `yaml:"rules"`
	GreenFlags []string         `yaml:"green_flags"`
	RedFlags   []string         `yaml:"red_flags"`
}

// AppliesTo reports whether the question is applicable to the given visa type.
func (q Question) AppliesTo(v VisaType) bool {
	if len(q.VisaTypes) == 0 {
		return true
	}
	for _, t := range q.VisaTypes {
		if t == v {
			return true
		}
	}
	return false
}

// ScoreBreakdown carries the five scoring dimensions plus the derived total.
// Dimensions are clamped to [0,100]; Total is the rounded mean of exactly five.
type ScoreBreakdown struct {
	Completeness int `json:"completeness"`
	Clarity      int `json:"clarity"`
	Relevance    int `json:"relevance"`
	Confidence   int `json:"confidence"`
	Consistency  int `json:"consistency"`
	Total        int `json:"total"`
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// Finalize clamps every dimension and recomputes Total.
func (s *ScoreBreakdown) Finalize() {
	s.Completeness = clampScore(s.Completeness)
	s.Clarity = clampScore(s.Clarity)
	s.Relevance = clampScore(s.Relevance)
	s.Confidence = clampScore(s.Confidence)
	s.Consistency = clampScore(s.Consistency)
	sum := s.Completeness + s.Clarity + s.Relevance + s.Confidence + s.Consistency
	s.Total = int(math.Round(float64(sum) / 5.0))
}

// Adjust adds delta to the named dimension. Unknown categories are ignored.
func (s *ScoreBreakdown) Adjust(c ScoreCategory, delta int) {
	switch c {
	case ScoreCompleteness:
		s.Completeness += delta
	case ScoreClarity:
		s.Clarity += delta
	case ScoreRelevance:
		s.Relevance += delta
	case ScoreConfidence:
		s.Confidence += delta
	case ScoreConsistency:
		s.Consistency += delta
	}
}

// Feedback is a language-tagged feedback value. TranslatedText is filled by a
// Translator when a localized copy is requested; it never drives scoring.
type Feedback struct {
	Lang           string `json:"lang"`
	Text           string `json:"text"`
	TranslatedText string `json:"translated_text,omitempty"`
}

// AnswerRecord is the per-question result appended to a session. It is never
// mutated after creation.
type AnswerRecord struct {
	ID             string         `json:"id"`
	QuestionID     string         `json:"question_id"`
	QuestionText   string         `json:"question_text"`
	Answer         string         `json:"answer"`
	ResponseTimeMs int64          `json:"response_time_ms"`
	Scores         ScoreBreakdown `json:"scores"`
	Flagged        bool           `json:"flagged"`
	FlagReason     string         `json:"flag_reason,omitempty"`
	Feedback       Feedback       `json:"feedback"`
	AIScored       bool           `json:"ai_scored"`
	CreatedAt      time.Time      `json:"created_at"`
}

// SessionStatus tracks the interview state machine. Transitions are one-way:
// in-progress is the creation state, completed is terminal.
type SessionStatus string

const (
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
)

// Session is one full practice-interview run. Owned by the orchestrator while
// in progress; handed to the persistence collaborator once completed.
type Session struct {
	ID             string         `json:"id"`
	VisaType       VisaType       `json:"visa_type"`
	Destination    string         `json:"destination"`
	Status         SessionStatus  `json:"status"`
	StartedAt      time.Time      `json:"started_at"`
	EndedAt        *time.Time     `json:"ended_at,omitempty"`
	TotalQuestions int            `json:"total_questions"`
	Answers        []AnswerRecord `json:"answers"`
	OverallScore   int            `json:"overall_score"`
	Passed         bool           `json:"passed"`
	Feedback       Feedback       `json:"feedback"`
	Strengths      []string       `json:"strengths,omitempty"`
	Concerns       []string       `json:"concerns,omitempty"`
	Improvements   []string       `json:"improvements,omitempty"`
	AIPowered      bool           `json:"ai_powered"`
}

// SessionSummary is the history-listing projection of a completed session.
type SessionSummary struct {
	ID           string    `json:"id"`
	VisaType     VisaType  `json:"visa_type"`
	Destination  string    `json:"destination"`
	StartedAt    time.Time `json:"started_at"`
	EndedAt      time.Time `json:"ended_at"`
	OverallScore int       `json:"overall_score"`
	Passed       bool      `json:"passed"`
	AIPowered    bool      `json:"ai_powered"`
}

// AnswerEvaluation is the structured result of scoring one answer, from either
// the AI path or the deterministic fallback. AIUsed distinguishes the two.
type AnswerEvaluation struct {
	Scores       ScoreBreakdown `json:"scores"`
	Valid        bool           `json:"valid"`
	Feedback     Feedback       `json:"feedback"`
	RedFlags     []string       `json:"red_flags,omitempty"`
	Improvements []string       `json:"improvements,omitempty"`
	FactIssues   []string       `json:"fact_issues,omitempty"`
	Misspellings []string       `json:"misspellings,omitempty"`
	Flagged      bool           `json:"flagged"`
	FlagReason   string         `json:"flag_reason,omitempty"`
	AIUsed       bool           `json:"ai_used"`
}

// FinalAssessment is the holistic end-of-interview verdict.
type FinalAssessment struct {
	OverallScore int      `json:"overall_score"`
	Passed       bool     `json:"passed"`
	Feedback     Feedback `json:"feedback"`
	Strengths    []string `json:"strengths,omitempty"`
	Concerns     []string `json:"concerns,omitempty"`
	Improvements []string `json:"improvements,omitempty"`
	AIUsed       bool     `json:"ai_used"`
}

// AIClient (port) is the language-model collaborator. Generate returns the raw
// model text. Implementations surface quota exhaustion as ErrUpstreamRateLimit
// so callers can apply a retry/backoff policy specific to it.
type AIClient interface {
	Generate(ctx Context, prompt string) (string, error)
}

// SessionRepository (port) is the persistence collaborator. SaveCompleted is
// best-effort from the orchestrator's point of view: failures are logged and
// swallowed, never surfaced to the interviewee.
type SessionRepository interface {
	SaveCompleted(ctx Context, s Session) error
	ListRecent(ctx Context, limit int) ([]SessionSummary, error)
}

// Translator (port) renders feedback in the requested locale. The default
// implementation is a no-op that leaves TranslatedText empty.
type Translator interface {
	Translate(ctx Context, text, targetLang string) (string, error)
}

// Context aliases context.Context so ports read uniformly across packages.
type Context = context.Context
