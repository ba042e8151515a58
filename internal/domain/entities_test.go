package domain

import (
	"errors"
	"testing"
	"time"
)

func TestVisaTypeValid(t *testing.T) {
	for _, v := range AllVisaTypes {
		if !v.Valid() {
			t.Errorf("Expected %q to be valid", v)
		}
	}
	for _, v := range []VisaType{"", "diplomatic", "Tourist"} {
		if v.Valid() {
			t.Errorf("Expected %q to be invalid", v)
		}
	}
}

func TestQuestionAppliesTo(t *testing.T) {
	universal := Question{ID: "purpose"}
	if !universal.AppliesTo(VisaWork) {
		t.Error("Expected question with no visa types to apply to all")
	}

	scoped := Question{ID: "admission", VisaTypes: []VisaType{VisaStudent}}
	if !scoped.AppliesTo(VisaStudent) {
		t.Error("Expected scoped question to apply to its visa type")
	}
	if scoped.AppliesTo(VisaTourist) {
		t.Error("Expected scoped question not to apply to other visa types")
	}
}

func TestScoreBreakdownFinalize(t *testing.T) {
	s := ScoreBreakdown{Completeness: 120, Clarity: -10, Relevance: 70, Confidence: 50, Consistency: 50}
	s.Finalize()
	if s.Completeness != 100 {
		t.Errorf("Expected completeness clamped to 100, got %d", s.Completeness)
	}
	if s.Clarity != 0 {
		t.Errorf("Expected clarity clamped to 0, got %d", s.Clarity)
	}
	// (100+0+70+50+50)/5 = 54
	if s.Total != 54 {
		t.Errorf("Expected total 54, got %d", s.Total)
	}
}

func TestScoreBreakdownFinalizeRounds(t *testing.T) {
	s := ScoreBreakdown{Completeness: 1, Clarity: 1, Relevance: 1, Confidence: 1, Consistency: 4}
	s.Finalize()
	// mean 1.6 rounds to 2
	if s.Total != 2 {
		t.Errorf("Expected total 2, got %d", s.Total)
	}
}

func TestScoreBreakdownAdjust(t *testing.T) {
	var s ScoreBreakdown
	s.Adjust(ScoreRelevance, 20)
	s.Adjust(ScoreConfidence, -5)
	s.Adjust(ScoreCategory("bogus"), 99)
	if s.Relevance != 20 || s.Confidence != -5 {
		t.Errorf("Unexpected breakdown after adjust: %+v", s)
	}
	if s.Completeness != 0 || s.Clarity != 0 || s.Consistency != 0 {
		t.Errorf("Unknown category should be ignored: %+v", s)
	}
}

func TestRateLimitErrorUnwraps(t *testing.T) {
	err := &RateLimitError{RetryAfter: 5 * time.Second}
	if !errors.Is(err, ErrUpstreamRateLimit) {
		t.Error("Expected RateLimitError to unwrap to ErrUpstreamRateLimit")
	}
	var rl *RateLimitError
	if !errors.As(error(err), &rl) || rl.RetryAfter != 5*time.Second {
		t.Error("Expected errors.As to recover the retry-after hint")
	}
}
