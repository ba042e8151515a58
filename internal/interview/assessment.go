package interview

import (
	"math"
	"time"

	"github.com/safarprep/interview-coach/internal/domain"
	"github.com/safarprep/interview-coach/internal/evaluator"
)

// finalize aggregates per-question results into the session's final verdict
// and transitions it to completed. Caller holds st.mu.
//
// The overall score comes from the AI holistic assessment when one was
// produced, otherwise from the per-question average; in both cases the pass
// verdict applies the single configured threshold.
func (s *Service) finalize(ctx domain.Context, st *sessionState) {
	now := time.Now().UTC()
	st.session.EndedAt = &now
	st.session.Status = domain.SessionCompleted

	avg := averageTotal(st.session.Answers)
	if len(st.session.Answers) == 0 {
		st.session.OverallScore = 0
		st.session.Passed = false
		st.session.Feedback = domain.Feedback{Lang: "en", Text: "No answers were recorded in this session."}
		return
	}

	transcript := make([]evaluator.QA, 0, len(st.session.Answers))
	for _, a := range st.session.Answers {
		transcript = append(transcript, evaluator.QA{QuestionID: a.QuestionID, Question: a.QuestionText, Answer: a.Answer})
	}
	fa := s.eval.AssessInterview(ctx, s.evalContext(st), transcript, avg)

	score := fa.OverallScore
	if !fa.AIUsed && avg > 0 {
		// Heuristic path: the per-question average is the better signal.
		score = max(score, avg)
	}

	st.session.OverallScore = score
	st.session.Passed = score >= s.opts.PassScore
	st.session.Feedback = fa.Feedback
	st.session.Strengths = fa.Strengths
	st.session.Concerns = append(fa.Concerns, flaggedConcerns(st.session.Answers)...)
	st.session.Improvements = fa.Improvements
	st.session.AIPowered = fa.AIUsed || anyAIScored(st.session.Answers)
	s.localizeFeedback(ctx, &st.session.Feedback)
}

// averageTotal is the rounded mean of per-question totals, 0 when no answers
// were recorded.
func averageTotal(answers []domain.AnswerRecord) int {
	if len(answers) == 0 {
		return 0
	}
	sum := 0
	for _, a := range answers {
		sum += a.Scores.Total
	}
	return int(math.Round(float64(sum) / float64(len(answers))))
}

// flaggedConcerns lifts per-answer flag reasons into the session concern
// list.
func flaggedConcerns(answers []domain.AnswerRecord) []string {
	var out []string
	for _, a := range answers {
		if a.Flagged && a.FlagReason != "" {
			out = append(out, a.QuestionText+": "+a.FlagReason)
		}
	}
	return out
}

func anyAIScored(answers []domain.AnswerRecord) bool {
	for _, a := range answers {
		if a.AIScored {
			return true
		}
	}
	return false
}
