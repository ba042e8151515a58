package evaluator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/safarprep/interview-coach/internal/domain"
)

// Wire shapes for the model's structured responses. Pointer fields
// distinguish "missing" from zero so defaults can be supplied per field.

type aiScores struct {
	Completeness *int `json:"completeness"`
	Clarity      *int `json:"clarity"`
	Relevance    *int `json:"relevance"`
	Confidence   *int `json:"confidence"`
	Consistency  *int `json:"consistency"`
}

type aiFactCheck struct {
	Verdict string   `json:"verdict"`
	Issues  []string `json:"issues"`
}

type aiAnswerResponse struct {
	OverallScore   *int        `json:"overall_score"`
	Scores         *aiScores   `json:"scores"`
	Valid          *bool       `json:"valid"`
	FeedbackEn     string      `json:"feedback_en"`
	FeedbackUr     string      `json:"feedback_ur"`
	RedFlags       []string    `json:"red_flags"`
	Improvements   []string    `json:"improvements"`
	FactCheck      aiFactCheck `json:"fact_check"`
	SpellingErrors []string    `json:"spelling_errors"`
}

type aiAssessmentResponse struct {
	OverallScore *int     `json:"overall_score"`
	FeedbackEn   string   `json:"feedback_en"`
	FeedbackUr   string   `json:"feedback_ur"`
	Strengths    []string `json:"strengths"`
	Concerns     []string `json:"concerns"`
	Improvements []string `json:"improvements"`
}

// extractJSON pulls the first balanced JSON object out of mixed model output,
// tolerating markdown fences and prose around it.
func extractJSON(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	start := strings.Index(raw, "{")
	if start == -1 {
		return "", fmt.Errorf("op=evaluator.extractJSON: %w: no JSON object in response", domain.ErrSchemaInvalid)
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		c := raw[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return raw[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("op=evaluator.extractJSON: %w: unbalanced JSON object", domain.ErrSchemaInvalid)
}

// lengthBand derives the replicated default score from answer length alone,
// used when the model omits scores entirely.
func lengthBand(answer string) int {
	n := len(strings.TrimSpace(answer))
	switch {
	case n >= 100:
		return 70
	case n >= 30:
		return 50
	default:
		return 30
	}
}

// parseAnswerEvaluation parses the model's per-answer response, supplying a
// default for every missing field. A structural failure returns an error so
// the caller can fall back.
func parseAnswerEvaluation(raw, answer string) (domain.AnswerEvaluation, error) {
	payload, err := extractJSON(raw)
	if err != nil {
		return domain.AnswerEvaluation{}, err
	}
	var resp aiAnswerResponse
	if err := json.Unmarshal([]byte(payload), &resp); err != nil {
		return domain.AnswerEvaluation{}, fmt.Errorf("op=evaluator.parseAnswerEvaluation: %w: %v", domain.ErrSchemaInvalid, err)
	}

	band := lengthBand(answer)
	pick := func(p *int) int {
		if p != nil {
			return *p
		}
		if resp.OverallScore != nil {
			return *resp.OverallScore
		}
		return band
	}

	var sc aiScores
	if resp.Scores != nil {
		sc = *resp.Scores
	}
	ev := domain.AnswerEvaluation{
		Scores: domain.ScoreBreakdown{
			Completeness: pick(sc.Completeness),
			Clarity:      pick(sc.Clarity),
			Relevance:    pick(sc.Relevance),
			Confidence:   pick(sc.Confidence),
			Consistency:  pick(sc.Consistency),
		},
		Valid:        len(strings.TrimSpace(answer)) >= 2,
		RedFlags:     resp.RedFlags,
		Improvements: resp.Improvements,
		FactIssues:   resp.FactCheck.Issues,
		Misspellings: resp.SpellingErrors,
		AIUsed:       true,
	}
	if resp.Valid != nil {
		ev.Valid = *resp.Valid
	}
	ev.Scores.Finalize()

	feedback := resp.FeedbackEn
	if feedback == "" {
		feedback = "Evaluated."
	}
	ev.Feedback = domain.Feedback{Lang: "en", Text: feedback, TranslatedText: resp.FeedbackUr}

	if len(ev.RedFlags) > 0 {
		ev.Flagged = true
		ev.FlagReason = "red flags: " + strings.Join(ev.RedFlags, ", ")
	}
	if resp.FactCheck.Verdict == "contradictory" {
		ev.Flagged = true
		if ev.FlagReason != "" {
			ev.FlagReason += "; "
		}
		ev.FlagReason += "contradicts earlier answers"
	}
	return ev, nil
}

// parseFinalAssessment parses the holistic assessment response. The pass
// verdict is left to the caller, which applies the configured threshold.
func parseFinalAssessment(raw string) (domain.FinalAssessment, error) {
	payload, err := extractJSON(raw)
	if err != nil {
		return domain.FinalAssessment{}, err
	}
	var resp aiAssessmentResponse
	if err := json.Unmarshal([]byte(payload), &resp); err != nil {
		return domain.FinalAssessment{}, fmt.Errorf("op=evaluator.parseFinalAssessment: %w: %v", domain.ErrSchemaInvalid, err)
	}

	score := 60
	if resp.OverallScore != nil {
		if s := *resp.OverallScore; s >= 0 && s <= 100 {
			score = s
		}
	}
	feedback := resp.FeedbackEn
	if feedback == "" {
		feedback = "Interview reviewed."
	}
	return domain.FinalAssessment{
		OverallScore: score,
		Feedback:     domain.Feedback{Lang: "en", Text: feedback, TranslatedText: resp.FeedbackUr},
		Strengths:    resp.Strengths,
		Concerns:     resp.Concerns,
		Improvements: resp.Improvements,
		AIUsed:       true,
	}, nil
}
