package scoring_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safarprep/interview-coach/internal/domain"
	"github.com/safarprep/interview-coach/internal/scoring"
)

func newScorer(t *testing.T) *scoring.Scorer {
	t.Helper()
	tables, err := scoring.DefaultTables()
	require.NoError(t, err)
	return scoring.NewScorer(tables, "en")
}

func durationQuestion() domain.Question {
	return domain.Question{
		ID:         "duration",
		Text:       "How long do you plan to stay?",
		Category:   domain.CategoryUniversal,
		AnswerType: domain.AnswerDuration,
		RedFlags:   []string{"forever", "permanently"},
	}
}

func returnTicketQuestion() domain.Question {
	return domain.Question{
		ID:         "return_ticket",
		Text:       "Do you have a return ticket booked?",
		Category:   domain.CategoryVisaSpecific,
		VisaTypes:  []domain.VisaType{domain.VisaTourist, domain.VisaVisit},
		AnswerType: domain.AnswerYesNo,
	}
}

func tiesQuestion() domain.Question {
	return domain.Question{
		ID:         "ties_home",
		Text:       "What ties do you have to Pakistan that will bring you back?",
		Category:   domain.CategoryUniversal,
		AnswerType: domain.AnswerFreeText,
		GreenFlags: []string{"my family", "my job", "my business", "property"},
		RedFlags:   []string{"nothing", "no ties"},
		Rules: []domain.ScoringRule{
			{Kind: domain.RuleMinLength, Value: "20", Points: 10, Category: domain.ScoreCompleteness},
		},
	}
}

func assertBreakdownInvariants(t *testing.T, s domain.ScoreBreakdown) {
	t.Helper()
	for name, v := range map[string]int{
		"completeness": s.Completeness,
		"clarity":      s.Clarity,
		"relevance":    s.Relevance,
		"confidence":   s.Confidence,
		"consistency":  s.Consistency,
	} {
		assert.GreaterOrEqual(t, v, 0, name)
		assert.LessOrEqual(t, v, 100, name)
	}
	sum := s.Completeness + s.Clarity + s.Relevance + s.Confidence + s.Consistency
	assert.Equal(t, int(math.Round(float64(sum)/5.0)), s.Total)
}

func TestScore_TrivialAnswerGuard(t *testing.T) {
	t.Parallel()
	s := newScorer(t)
	for _, answer := range []string{"", " ", "a", "  \t "} {
		ev := s.Score(tiesQuestion(), answer, domain.VisaTourist, nil)
		assert.True(t, ev.Flagged, "answer %q", answer)
		assert.Equal(t, "answer too short or empty", ev.FlagReason)
		assert.Zero(t, ev.Scores.Completeness)
		assert.Zero(t, ev.Scores.Clarity)
		assert.False(t, ev.Valid)
		assertBreakdownInvariants(t, ev.Scores)
	}
}

func TestScore_StrongAnswerPasses(t *testing.T) {
	t.Parallel()
	s := newScorer(t)
	answer := "I have my job at a bank in Lahore, my family lives here, and I own property in Karachi."
	ev := s.Score(tiesQuestion(), answer, domain.VisaTourist, nil)
	assert.False(t, ev.Flagged)
	assert.GreaterOrEqual(t, ev.Scores.Total, 80)
	assertBreakdownInvariants(t, ev.Scores)
}

func TestScore_RedFlagsFlagAnswer(t *testing.T) {
	t.Parallel()
	s := newScorer(t)
	ev := s.Score(tiesQuestion(), "Honestly there is nothing keeping me in Pakistan.", domain.VisaTourist, nil)
	assert.True(t, ev.Flagged)
	assert.Contains(t, ev.FlagReason, "red flags")
	assert.Contains(t, ev.RedFlags, "nothing")
	assertBreakdownInvariants(t, ev.Scores)
}

func TestScore_HedgingPenalizesConfidence(t *testing.T) {
	t.Parallel()
	s := newScorer(t)
	hedged := s.Score(tiesQuestion(), "Maybe my family, I think, but I am not sure about my job situation.", domain.VisaTourist, nil)
	confident := s.Score(tiesQuestion(), "My family and my job at the hospital keep me firmly in Pakistan.", domain.VisaTourist, nil)
	assert.Less(t, hedged.Scores.Confidence, confident.Scores.Confidence)
}

func TestScore_TouristDurationOver90DaysFlagged(t *testing.T) {
	t.Parallel()
	s := newScorer(t)
	ev := s.Score(durationQuestion(), "Maybe 2 years, not sure", domain.VisaTourist, nil)
	assert.True(t, ev.Flagged)
	assert.Contains(t, ev.FlagReason, "exceeds")
	assert.Less(t, ev.Scores.Confidence, 50, "hedging must penalize confidence")
	assertBreakdownInvariants(t, ev.Scores)
}

func TestScore_PermanenceLanguageFlagged(t *testing.T) {
	t.Parallel()
	s := newScorer(t)
	ev := s.Score(durationQuestion(), "I want to settle there for good.", domain.VisaWork, nil)
	assert.True(t, ev.Flagged)
	assert.Contains(t, ev.FlagReason, "permanently")
	assertBreakdownInvariants(t, ev.Scores)
}

func TestScore_DurationWithinExpectedRangeRewarded(t *testing.T) {
	t.Parallel()
	s := newScorer(t)
	inRange := s.Score(durationQuestion(), "Two weeks, then I fly home.", domain.VisaTourist, nil)
	vague := s.Score(durationQuestion(), "For some time, depends on things.", domain.VisaTourist, nil)
	assert.Greater(t, inRange.Scores.Relevance, vague.Scores.Relevance)
	assert.False(t, inRange.Flagged)
}

func TestScore_ReturnTicketHardRule(t *testing.T) {
	t.Parallel()
	s := newScorer(t)

	t.Run("negative answers are flagged with very low relevance", func(t *testing.T) {
		for _, answer := range []string{"No", "Not yet, I will book it later", "I haven't booked anything"} {
			ev := s.Score(returnTicketQuestion(), answer, domain.VisaTourist, nil)
			assert.True(t, ev.Flagged, "answer %q", answer)
			assert.LessOrEqual(t, ev.Scores.Relevance, 10, "answer %q", answer)
			assertBreakdownInvariants(t, ev.Scores)
		}
	})

	t.Run("affirmative answers max out relevance", func(t *testing.T) {
		for _, answer := range []string{"Yes", "Yes, booked for the 14th of June"} {
			ev := s.Score(returnTicketQuestion(), answer, domain.VisaTourist, nil)
			assert.Equal(t, 100, ev.Scores.Relevance, "answer %q", answer)
			assert.False(t, ev.Flagged, "answer %q", answer)
		}
	})
}

func TestScore_ReturnTicketRuleKeyedToQuestionID(t *testing.T) {
	t.Parallel()
	s := newScorer(t)

	// Same shape and answer, different catalog id: generic yes/no scoring
	// applies, not the hard return-ticket penalty.
	q := returnTicketQuestion()
	q.ID = "travel_history"
	ev := s.Score(q, "Not yet, I will book it later", domain.VisaTourist, nil)
	assert.False(t, ev.Flagged)
	assert.Equal(t, 50, ev.Scores.Relevance)
}

func TestScore_YesNoClarity(t *testing.T) {
	t.Parallel()
	s := newScorer(t)
	q := domain.Question{ID: "travel_history", Text: "Have you traveled abroad before?", AnswerType: domain.AnswerYesNo}
	clear := s.Score(q, "Yes, I visited Turkey in 2023 and returned on time.", domain.VisaTourist, nil)
	vague := s.Score(q, "There was this one trip a while ago somewhere.", domain.VisaTourist, nil)
	assert.Greater(t, clear.Scores.Clarity, vague.Scores.Clarity)
}

func TestScore_Deterministic(t *testing.T) {
	t.Parallel()
	s := newScorer(t)
	prev := map[string]string{"purpose": "tourism with my wife"}
	a := s.Score(durationQuestion(), "Around 3 weeks in total", domain.VisaTourist, prev)
	b := s.Score(durationQuestion(), "Around 3 weeks in total", domain.VisaTourist, prev)
	assert.Equal(t, a, b)
}

func TestScore_RuleApplication(t *testing.T) {
	t.Parallel()
	s := newScorer(t)
	q := domain.Question{
		ID:         "custom",
		Text:       "Custom",
		AnswerType: domain.AnswerFreeText,
		Rules: []domain.ScoringRule{
			{Kind: domain.RuleContains, Value: "bank statement", Points: 15, Category: domain.ScoreRelevance},
			{Kind: domain.RuleRegex, Value: `\d{4}`, Points: 5, Category: domain.ScoreClarity},
			{Kind: domain.RuleMaxLength, Value: "10", Points: -5, Category: domain.ScoreClarity},
		},
	}
	with := s.Score(q, "My bank statement from 2024 shows sufficient funds.", domain.VisaTourist, nil)
	without := s.Score(q, "My documents from last year show sufficient funds.", domain.VisaTourist, nil)
	assert.Greater(t, with.Scores.Relevance, without.Scores.Relevance)
}

func TestScore_TierFeedbackWhenNothingFires(t *testing.T) {
	t.Parallel()
	s := newScorer(t)
	q := domain.Question{ID: "plain", Text: "Plain", AnswerType: domain.AnswerFreeText}
	ev := s.Score(q, "I will stay with my cousin and attend the wedding ceremony in the first week.", domain.VisaVisit, nil)
	assert.NotEmpty(t, ev.Feedback.Text)
	assert.Equal(t, "en", ev.Feedback.Lang)
}

func TestLoadTables_RequiresEnglish(t *testing.T) {
	t.Parallel()
	_, err := scoring.LoadTables([]byte("locales:\n  ur:\n    hedging: [\"x\"]\n"))
	require.ErrorIs(t, err, domain.ErrSchemaInvalid)
}
