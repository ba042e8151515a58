package evaluator

import (
	"fmt"
	"strings"

	"github.com/safarprep/interview-coach/internal/domain"
)

// visaCriteria holds the evaluation emphasis the model is given per visa
// category.
var visaCriteria = map[domain.VisaType]string{
	domain.VisaTourist:  "Focus on: a concrete itinerary, proof of funds, a booked return ticket, and strong ties to Pakistan. Stays beyond 90 days are a red flag.",
	domain.VisaVisit:    "Focus on: the relationship with the host, the host's legal status, trip funding, and a clear return date.",
	domain.VisaFamily:   "Focus on: the family relationship, the sponsor's immigration status, the occasion for the visit, and intent to return.",
	domain.VisaWork:     "Focus on: a genuine job offer, relevant qualifications, contract terms, and realistic knowledge of the employer.",
	domain.VisaStudent:  "Focus on: admission details, study funding, why this country and program, and credible post-graduation plans in Pakistan.",
	domain.VisaBusiness: "Focus on: the inviting company, the applicant's role and seniority, the meeting purpose, and a short stay.",
}

const answerResponseSchema = `Respond with ONLY a JSON object in this exact shape:
{
  "overall_score": <0-100>,
  "scores": {"completeness": <0-100>, "clarity": <0-100>, "relevance": <0-100>, "confidence": <0-100>, "consistency": <0-100>},
  "valid": <true|false>,
  "feedback_en": "<short feedback in English>",
  "feedback_ur": "<short feedback in Urdu>",
  "red_flags": ["<phrase an officer would worry about>"],
  "improvements": ["<concrete suggestion>"],
  "fact_check": {"verdict": "<ok|questionable|contradictory>", "issues": ["<issue>"]},
  "spelling_errors": ["<misspelled word>"]
}`

const assessmentResponseSchema = `Respond with ONLY a JSON object in this exact shape:
{
  "overall_score": <0-100>,
  "feedback_en": "<overall feedback in English>",
  "feedback_ur": "<overall feedback in Urdu>",
  "strengths": ["<strength>"],
  "concerns": ["<concern>"],
  "improvements": ["<concrete suggestion>"]
}`

// buildAnswerPrompt assembles the evaluation request for a single answer.
// Prior Q&A pairs are included oldest-first for consistency grounding and
// trimmed to the token budget, dropping the oldest pairs first.
func (e *Evaluator) buildAnswerPrompt(q domain.Question, answer string, ec EvalContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a visa officer evaluating a mock interview answer from a Pakistani applicant for a %s visa to %s.\n", ec.VisaType, ec.Destination)
	if c, ok := visaCriteria[ec.VisaType]; ok {
		b.WriteString(c)
		b.WriteString("\n")
	}
	if ec.Language != "" && ec.Language != "en" {
		fmt.Fprintf(&b, "The applicant's preferred language is %q; feedback_ur must be in that language.\n", ec.Language)
	}

	header := b.String()
	tail := fmt.Sprintf("\nCurrent question: %s\nApplicant's answer: %s\n\nEvaluate the answer for completeness, clarity, relevance, confidence, and consistency with the earlier answers. Check stated facts for plausibility and list spelling mistakes.\n%s\n", q.Text, answer, answerResponseSchema)

	history := e.renderHistory(ec.Previous, e.opts.PromptTokenBudget-CountTokens(header)-CountTokens(tail))
	return header + history + tail
}

// buildAssessmentPrompt assembles the holistic end-of-interview request over
// the whole transcript.
func (e *Evaluator) buildAssessmentPrompt(ec EvalContext, transcript []QA) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a senior visa officer reviewing a complete mock interview for a %s visa to %s.\n", ec.VisaType, ec.Destination)
	if c, ok := visaCriteria[ec.VisaType]; ok {
		b.WriteString(c)
		b.WriteString("\n")
	}
	b.WriteString("Judge the interview as a whole: are the answers consistent with each other, credible, and sufficient for approval?\n")

	header := b.String()
	tail := "\n" + assessmentResponseSchema + "\n"
	history := e.renderHistory(transcript, e.opts.PromptTokenBudget-CountTokens(header)-CountTokens(tail))
	return header + history + tail
}

// renderHistory renders Q&A pairs within a token budget, dropping the oldest
// pairs when over budget.
func (e *Evaluator) renderHistory(pairs []QA, budget int) string {
	if len(pairs) == 0 || budget <= 0 {
		return ""
	}
	lines := make([]string, len(pairs))
	for i, qa := range pairs {
		lines[i] = fmt.Sprintf("Q: %s\nA: %s\n", qa.Question, qa.Answer)
	}
	start := 0
	for start < len(lines) {
		total := 0
		for _, l := range lines[start:] {
			total += CountTokens(l)
		}
		if total <= budget {
			break
		}
		start++
	}
	if start >= len(lines) {
		return ""
	}
	return "Earlier in this interview:\n" + strings.Join(lines[start:], "")
}
