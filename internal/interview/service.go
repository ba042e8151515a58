package interview

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/safarprep/interview-coach/internal/adapter/observability"
	"github.com/safarprep/interview-coach/internal/domain"
	"github.com/safarprep/interview-coach/internal/evaluator"
	"github.com/safarprep/interview-coach/internal/questionbank"
)

// Options tunes the interview service.
type Options struct {
	// PassScore is the single pass/fail threshold applied to the final score,
	// whichever path produced it.
	PassScore           int
	QuestionsPerSession int
	Locale              string
}

// Service orchestrates interview sessions from start to final assessment.
// It owns each session exclusively until completion, then hands it to the
// persistence collaborator.
type Service struct {
	bank       *questionbank.Bank
	eval       *evaluator.Evaluator
	store      *Store
	repo       domain.SessionRepository
	translator domain.Translator
	opts       Options
}

// NewService wires the orchestrator. repo may be nil (no persistence);
// translator may be nil (no localized feedback).
func NewService(bank *questionbank.Bank, eval *evaluator.Evaluator, store *Store, repo domain.SessionRepository, translator domain.Translator, opts Options) *Service {
	if translator == nil {
		translator = NoopTranslator{}
	}
	return &Service{bank: bank, eval: eval, store: store, repo: repo, translator: translator, opts: opts}
}

// StartResult is returned by Start.
type StartResult struct {
	SessionID      string
	FirstQuestion  domain.Question
	TotalQuestions int
}

// AnswerResult is returned by SubmitAnswer. NextQuestion is nil when the
// question list is exhausted; the caller must then call End.
type AnswerResult struct {
	Scores       domain.ScoreBreakdown
	Feedback     domain.Feedback
	Flagged      bool
	FlagReason   string
	AIScored     bool
	NextQuestion *domain.Question
	IsComplete   bool
}

// Start creates a new in-progress session for the visa type and destination
// and returns its first question. It fails only on unrecognized input.
func (s *Service) Start(ctx domain.Context, visaType domain.VisaType, destination string) (StartResult, error) {
	if !visaType.Valid() {
		return StartResult{}, fmt.Errorf("op=interview.Start: %w: unknown visa type %q", domain.ErrInvalidArgument, visaType)
	}
	if strings.TrimSpace(destination) == "" {
		return StartResult{}, fmt.Errorf("op=interview.Start: %w: destination required", domain.ErrInvalidArgument)
	}

	questions := s.bank.QuestionsFor(visaType, s.opts.QuestionsPerSession)
	if len(questions) == 0 {
		return StartResult{}, fmt.Errorf("op=interview.Start: %w: no questions for visa type %q", domain.ErrInternal, visaType)
	}

	now := time.Now().UTC()
	st := &sessionState{
		session: domain.Session{
			ID:             uuid.New().String(),
			VisaType:       visaType,
			Destination:    strings.ToUpper(strings.TrimSpace(destination)),
			Status:         domain.SessionInProgress,
			StartedAt:      now,
			TotalQuestions: len(questions),
		},
		questions:   questions,
		lastTouched: now,
	}
	s.store.put(st)
	observability.RecordSessionStarted(string(visaType))
	slog.Info("interview session started",
		slog.String("session_id", st.session.ID),
		slog.String("visa_type", string(visaType)),
		slog.String("destination", st.session.Destination),
		slog.Int("questions", len(questions)))

	return StartResult{SessionID: st.session.ID, FirstQuestion: questions[0], TotalQuestions: len(questions)}, nil
}

// SubmitAnswer scores the answer to the current question, records it, and
// advances the cursor. Scoring never fails; only an unknown or finished
// session is an error.
func (s *Service) SubmitAnswer(ctx domain.Context, sessionID, answer string, responseTimeMs int64) (AnswerResult, error) {
	st, ok := s.store.get(sessionID)
	if !ok {
		return AnswerResult{}, fmt.Errorf("op=interview.SubmitAnswer: %w: session %q not found or expired", domain.ErrNotFound, sessionID)
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if st.session.Status != domain.SessionInProgress {
		return AnswerResult{}, fmt.Errorf("op=interview.SubmitAnswer: %w: session %q already completed", domain.ErrNotFound, sessionID)
	}
	if st.cursor >= len(st.questions) {
		return AnswerResult{}, fmt.Errorf("op=interview.SubmitAnswer: %w: all questions answered; end the session", domain.ErrConflict)
	}

	q := st.questions[st.cursor]
	ev := s.eval.EvaluateAnswer(ctx, q, answer, s.evalContext(st))
	s.localizeFeedback(ctx, &ev.Feedback)

	record := domain.AnswerRecord{
		ID:             ulid.Make().String(),
		QuestionID:     q.ID,
		QuestionText:   q.Text,
		Answer:         answer,
		ResponseTimeMs: responseTimeMs,
		Scores:         ev.Scores,
		Flagged:        ev.Flagged,
		FlagReason:     ev.FlagReason,
		Feedback:       ev.Feedback,
		AIScored:       ev.AIUsed,
		CreatedAt:      time.Now().UTC(),
	}
	st.session.Answers = append(st.session.Answers, record)
	st.cursor++
	st.lastTouched = time.Now()
	observability.RecordAnswerScored(ev.AIUsed, ev.Flagged)

	res := AnswerResult{
		Scores:     ev.Scores,
		Feedback:   ev.Feedback,
		Flagged:    ev.Flagged,
		FlagReason: ev.FlagReason,
		AIScored:   ev.AIUsed,
		IsComplete: st.cursor >= len(st.questions),
	}
	if !res.IsComplete {
		next := st.questions[st.cursor]
		res.NextQuestion = &next
	}
	return res, nil
}

// End finalizes the session: aggregates per-question results, runs the final
// assessment, transitions to completed, and hands the session to the
// persistence collaborator. Persistence failure is logged, never surfaced.
func (s *Service) End(ctx domain.Context, sessionID string) (domain.Session, error) {
	st, ok := s.store.get(sessionID)
	if !ok {
		return domain.Session{}, fmt.Errorf("op=interview.End: %w: session %q not found or expired", domain.ErrNotFound, sessionID)
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if st.session.Status != domain.SessionInProgress {
		return domain.Session{}, fmt.Errorf("op=interview.End: %w: session %q already completed", domain.ErrNotFound, sessionID)
	}

	s.finalize(ctx, st)
	s.store.remove(sessionID)
	observability.RecordSessionCompleted(st.session.Passed, st.session.AIPowered)
	observability.RecordOverallScore(st.session.OverallScore)

	if s.repo != nil {
		if err := s.repo.SaveCompleted(ctx, st.session); err != nil {
			slog.Error("failed to persist completed session",
				slog.String("session_id", sessionID), slog.Any("error", err))
		}
	}
	slog.Info("interview session completed",
		slog.String("session_id", sessionID),
		slog.Int("overall_score", st.session.OverallScore),
		slog.Bool("passed", st.session.Passed),
		slog.Bool("ai_powered", st.session.AIPowered))
	return st.session, nil
}

// History lists recently completed sessions from the persistence
// collaborator.
func (s *Service) History(ctx domain.Context, limit int) ([]domain.SessionSummary, error) {
	if s.repo == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}
	out, err := s.repo.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("op=interview.History: %w", err)
	}
	return out, nil
}

// evalContext snapshots the session context for the evaluator. Caller holds
// st.mu.
func (s *Service) evalContext(st *sessionState) evaluator.EvalContext {
	prev := make([]evaluator.QA, 0, len(st.session.Answers))
	for _, a := range st.session.Answers {
		prev = append(prev, evaluator.QA{QuestionID: a.QuestionID, Question: a.QuestionText, Answer: a.Answer})
	}
	return evaluator.EvalContext{
		VisaType:    st.session.VisaType,
		Destination: st.session.Destination,
		Language:    s.opts.Locale,
		Previous:    prev,
	}
}

// localizeFeedback fills TranslatedText through the translator when the
// configured locale wants one and the evaluation did not already carry it.
// Best-effort: translation failures leave the English text alone.
func (s *Service) localizeFeedback(ctx domain.Context, f *domain.Feedback) {
	if s.opts.Locale == "" || s.opts.Locale == "en" || f.TranslatedText != "" {
		return
	}
	translated, err := s.translator.Translate(ctx, f.Text, s.opts.Locale)
	if err != nil {
		slog.Debug("feedback translation failed", slog.Any("error", err))
		return
	}
	f.TranslatedText = translated
}

// NoopTranslator leaves feedback untranslated.
type NoopTranslator struct{}

// Translate implements domain.Translator.
func (NoopTranslator) Translate(_ domain.Context, _ string, _ string) (string, error) {
	return "", nil
}
