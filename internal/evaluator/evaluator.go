// Package evaluator is the gateway to the AI language-model collaborator. It
// builds evaluation prompts, parses structured responses defensively, and
// degrades to the deterministic rule-based scorer whenever the collaborator
// is unavailable, rate-limited, or returns garbage. Degradation is never an
// error: the interview flow continues on the fallback path.
package evaluator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	backoff "github.com/cenkalti/backoff/v4"

	"github.com/safarprep/interview-coach/internal/domain"
	"github.com/safarprep/interview-coach/internal/scoring"
)

// QA is one prior question/answer pair carried as consistency grounding.
type QA struct {
	QuestionID string
	Question   string
	Answer     string
}

// EvalContext carries the session-level context for one evaluation.
type EvalContext struct {
	VisaType    domain.VisaType
	Destination string
	Language    string
	Previous    []QA
}

// Options tunes the evaluator's retry and cooldown policy.
type Options struct {
	MaxRetries        int
	RetryInitial      time.Duration
	RetryMaxInterval  time.Duration
	Cooldown          time.Duration
	PromptTokenBudget int
}

// DefaultOptions matches the production defaults.
func DefaultOptions() Options {
	return Options{
		MaxRetries:        2,
		RetryInitial:      2 * time.Second,
		RetryMaxInterval:  10 * time.Second,
		Cooldown:          60 * time.Second,
		PromptTokenBudget: 3000,
	}
}

// Evaluator scores answers through the AI collaborator with a rule-based
// fallback. A nil client means the AI path is never attempted.
type Evaluator struct {
	client domain.AIClient
	scorer *scoring.Scorer
	opts   Options

	mu            sync.Mutex
	cooldownUntil time.Time

	now func() time.Time
}

// New constructs an Evaluator. client may be nil when no API key is
// configured; every evaluation then uses the deterministic fallback.
func New(client domain.AIClient, scorer *scoring.Scorer, opts Options) *Evaluator {
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	return &Evaluator{client: client, scorer: scorer, opts: opts, now: time.Now}
}

// Available reports whether the AI path would currently be attempted.
func (e *Evaluator) Available() bool {
	if e.client == nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.now().After(e.cooldownUntil)
}

func (e *Evaluator) markRateLimited() {
	e.mu.Lock()
	e.cooldownUntil = e.now().Add(e.opts.Cooldown)
	e.mu.Unlock()
	slog.Warn("ai collaborator rate limited; entering cooldown",
		slog.Duration("cooldown", e.opts.Cooldown))
}

// EvaluateAnswer scores one answer. It never returns an error: any AI failure
// resolves to the rule-based fallback, and the result's AIUsed field tells
// the two apart.
func (e *Evaluator) EvaluateAnswer(ctx context.Context, q domain.Question, answer string, ec EvalContext) domain.AnswerEvaluation {
	if !e.Available() {
		return e.fallbackAnswer(q, answer, ec)
	}

	prompt := e.buildAnswerPrompt(q, answer, ec)
	raw, err := e.generate(ctx, prompt)
	if err != nil {
		slog.Warn("ai evaluation failed; using rule-based fallback",
			slog.String("question_id", q.ID), slog.Any("error", err))
		return e.fallbackAnswer(q, answer, ec)
	}

	ev, err := parseAnswerEvaluation(raw, answer)
	if err != nil {
		slog.Warn("ai response unparseable; using rule-based fallback",
			slog.String("question_id", q.ID), slog.Any("error", err))
		return e.fallbackAnswer(q, answer, ec)
	}
	return ev
}

// AssessInterview produces the holistic end-of-interview assessment over the
// full transcript. The AI path judges consistency and credibility across all
// answers together; the fallback derives a coarse band from average answer
// length.
func (e *Evaluator) AssessInterview(ctx context.Context, ec EvalContext, transcript []QA, avgQuestionScore int) domain.FinalAssessment {
	if !e.Available() {
		return fallbackAssessment(transcript, avgQuestionScore)
	}

	prompt := e.buildAssessmentPrompt(ec, transcript)
	raw, err := e.generate(ctx, prompt)
	if err != nil {
		slog.Warn("ai final assessment failed; using heuristic fallback", slog.Any("error", err))
		return fallbackAssessment(transcript, avgQuestionScore)
	}

	fa, err := parseFinalAssessment(raw)
	if err != nil {
		slog.Warn("ai final assessment unparseable; using heuristic fallback", slog.Any("error", err))
		return fallbackAssessment(transcript, avgQuestionScore)
	}
	return fa
}

// generate invokes the collaborator with bounded retries on rate-limit-class
// errors. Other failures abort immediately. Persistent rate limiting starts
// the cooldown window.
func (e *Evaluator) generate(ctx context.Context, prompt string) (string, error) {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = e.opts.RetryInitial
	expo.MaxInterval = e.opts.RetryMaxInterval
	expo.MaxElapsedTime = 0 // bounded by retry count, not wall clock

	hint := new(time.Duration)
	policy := backoff.WithContext(
		backoff.WithMaxRetries(&hintedBackOff{BackOff: expo, hint: hint}, uint64(e.opts.MaxRetries)),
		ctx,
	)

	var out string
	rateLimited := false
	op := func() error {
		raw, err := e.client.Generate(ctx, prompt)
		if err == nil {
			out = raw
			rateLimited = false
			return nil
		}
		if errors.Is(err, domain.ErrUpstreamRateLimit) {
			rateLimited = true
			var rl *domain.RateLimitError
			if errors.As(err, &rl) && rl.RetryAfter > 0 {
				*hint = rl.RetryAfter
			}
			return err
		}
		return backoff.Permanent(err)
	}

	if err := backoff.Retry(op, policy); err != nil {
		if rateLimited {
			e.markRateLimited()
		}
		return "", fmt.Errorf("op=evaluator.generate: %w", err)
	}
	return out, nil
}

// hintedBackOff prefers a server-suggested delay over the exponential
// schedule for the next wait only.
type hintedBackOff struct {
	backoff.BackOff
	hint *time.Duration
}

func (h *hintedBackOff) NextBackOff() time.Duration {
	d := h.BackOff.NextBackOff()
	if *h.hint > 0 {
		d = *h.hint
		*h.hint = 0
	}
	return d
}

// fallbackAnswer is the deterministic path: the rule-based scorer, explicitly
// marked as non-AI so downstream consumers never mistake it for a model
// judgment.
func (e *Evaluator) fallbackAnswer(q domain.Question, answer string, ec EvalContext) domain.AnswerEvaluation {
	// The consistency checks match lower-cased phrases, so prior answers are
	// normalized the same way the current answer is.
	prev := make(map[string]string, len(ec.Previous))
	for _, qa := range ec.Previous {
		prev[qa.QuestionID] = strings.ToLower(strings.TrimSpace(qa.Answer))
	}
	ev := e.scorer.Score(q, answer, ec.VisaType, prev)
	ev.AIUsed = false
	ev.Feedback.Text = "AI evaluation unavailable; rule-based assessment: " + ev.Feedback.Text
	return ev
}

// fallbackAssessment derives a coarse verdict band from average answer
// length when the AI path is down.
func fallbackAssessment(transcript []QA, avgQuestionScore int) domain.FinalAssessment {
	total := 0
	for _, qa := range transcript {
		total += len(qa.Answer)
	}
	avgLen := 0
	if len(transcript) > 0 {
		avgLen = total / len(transcript)
	}
	score := 45
	switch {
	case avgLen >= 80:
		score = 65
	case avgLen >= 40:
		score = 55
	}
	// Prefer the per-question average when answers were actually scored; the
	// band only floors the verdict for very thin transcripts.
	if avgQuestionScore > score {
		score = avgQuestionScore
	}
	return domain.FinalAssessment{
		OverallScore: score,
		Feedback: domain.Feedback{
			Lang: "en",
			Text: "AI assessment unavailable; this verdict is based on your per-question scores. Practice giving specific, confident answers.",
		},
		Improvements: []string{
			"Answer every question in complete sentences.",
			"Carry supporting documents for each claim you make.",
		},
		AIUsed: false,
	}
}
