package scoring

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/safarprep/interview-coach/internal/domain"
)

const (
	neutralScore = 50
	// minAnswerLen is the normalized length below which an answer is treated
	// as empty.
	minAnswerLen = 2
)

// Scorer evaluates a single answer against a question's rules. All methods
// are deterministic and never fail.
type Scorer struct {
	tables Tables
	locale string
}

// NewScorer builds a scorer over the given tables, matching phrases from the
// given locale (English is always matched as well, since applicants commonly
// mix languages).
func NewScorer(tables Tables, locale string) *Scorer {
	return &Scorer{tables: tables, locale: locale}
}

// Score evaluates answer against q for the given visa type. previousAnswers
// maps question id to the lower-cased prior answer text for consistency
// checks; it may be nil.
func (s *Scorer) Score(q domain.Question, answer string, visa domain.VisaType, previousAnswers map[string]string) domain.AnswerEvaluation {
	normalized := strings.ToLower(strings.TrimSpace(answer))

	ev := domain.AnswerEvaluation{
		Scores: domain.ScoreBreakdown{
			Completeness: neutralScore,
			Clarity:      neutralScore,
			Relevance:    neutralScore,
			Confidence:   neutralScore,
			Consistency:  neutralScore,
		},
		Valid: true,
	}
	var fragments []string

	if len(normalized) < minAnswerLen {
		ev.Scores.Completeness = 0
		ev.Scores.Clarity = 0
		ev.Valid = false
		ev.Flagged = true
		ev.FlagReason = "answer too short or empty"
		ev.Scores.Finalize()
		ev.Feedback = domain.Feedback{Lang: "en", Text: "Your answer was too short. Give the officer a complete sentence."}
		return ev
	}

	phrases := s.tables.Phrases(s.locale)

	s.scoreLength(normalized, &ev, &fragments)
	s.scoreKeywords(q, normalized, &ev, &fragments)
	s.scoreHedging(phrases, normalized, &ev, &fragments)
	s.scoreAnswerType(q, normalized, visa, phrases, &ev, &fragments)
	s.applyRules(q, normalized, visa, &ev)

	adj, consistencyNote := CheckConsistency(q, normalized, previousAnswers)
	ev.Scores.Consistency += adj
	if consistencyNote != "" {
		fragments = append(fragments, consistencyNote)
		ev.Flagged = true
		appendReason(&ev, "inconsistent with a previous answer")
		s.applyConsistencyRules(q, &ev)
	} else {
		// No contradiction found against the transcript so far.
		ev.Scores.Consistency += 25
	}

	ev.Scores.Finalize()
	ev.Feedback = domain.Feedback{Lang: "en", Text: s.feedbackText(fragments, ev.Scores.Total)}
	return ev
}

// scoreLength rewards substantive answers and penalizes rambling ones.
func (s *Scorer) scoreLength(normalized string, ev *domain.AnswerEvaluation, fragments *[]string) {
	n := len(normalized)
	switch {
	case n >= 100:
		ev.Scores.Completeness += 25
		ev.Scores.Clarity += 20
		ev.Scores.Confidence += 10
	case n >= 50:
		ev.Scores.Completeness += 20
		ev.Scores.Clarity += 15
		ev.Scores.Confidence += 10
	case n >= 20:
		ev.Scores.Completeness += 10
		ev.Scores.Clarity += 5
	default:
		*fragments = append(*fragments, "Add more detail to your answer.")
	}
	if n >= 20 && n <= 400 {
		ev.Scores.Clarity += 10
	} else if n > 400 {
		ev.Scores.Clarity -= 10
		*fragments = append(*fragments, "Keep your answer focused; officers prefer short, direct replies.")
	}
}

// scoreKeywords applies the question's green/red flag phrase lists.
func (s *Scorer) scoreKeywords(q domain.Question, normalized string, ev *domain.AnswerEvaluation, fragments *[]string) {
	for _, g := range q.GreenFlags {
		if strings.Contains(normalized, strings.ToLower(g)) {
			ev.Scores.Relevance += 20
			ev.Scores.Completeness += 5
		}
	}
	var matched []string
	for _, r := range q.RedFlags {
		if strings.Contains(normalized, strings.ToLower(r)) {
			matched = append(matched, r)
		}
	}
	if len(matched) > 0 {
		ev.Scores.Relevance -= 15 * len(matched)
		ev.Flagged = true
		appendReason(ev, "red flags: "+strings.Join(matched, ", "))
		ev.RedFlags = append(ev.RedFlags, matched...)
		*fragments = append(*fragments, "Avoid phrases like \""+matched[0]+"\"; they concern immigration officers.")
	}
}

// scoreHedging penalizes low-confidence language.
func (s *Scorer) scoreHedging(phrases PhraseTable, normalized string, ev *domain.AnswerEvaluation, fragments *[]string) {
	hits := 0
	for _, h := range phrases.Hedging {
		if strings.Contains(normalized, h) {
			hits++
		}
	}
	if s.locale != "en" {
		for _, h := range s.tables.Phrases("en").Hedging {
			if strings.Contains(normalized, h) {
				hits++
			}
		}
	}
	if hits == 0 {
		ev.Scores.Confidence += 25
		return
	}
	ev.Scores.Confidence -= 10 * hits
	*fragments = append(*fragments, "Answer with certainty; hedging words make officers doubt you.")
}

// scoreAnswerType runs the expected-answer-shape checks.
func (s *Scorer) scoreAnswerType(q domain.Question, normalized string, visa domain.VisaType, phrases PhraseTable, ev *domain.AnswerEvaluation, fragments *[]string) {
	switch q.AnswerType {
	case domain.AnswerDuration:
		s.scoreDuration(normalized, visa, phrases, ev, fragments)
	case domain.AnswerYesNo:
		if isReturnTicketQuestion(q) && (visa == domain.VisaTourist || visa == domain.VisaVisit) {
			s.scoreReturnTicket(normalized, phrases, ev, fragments)
			return
		}
		if hasWord(normalized, "yes") || hasWord(normalized, "no") {
			ev.Scores.Clarity += 10
		} else {
			ev.Scores.Clarity -= 15
			*fragments = append(*fragments, "Give a clear yes or no first, then explain.")
		}
	}
}

// scoreDuration extracts a stay length and checks it against visa expectations.
func (s *Scorer) scoreDuration(normalized string, visa domain.VisaType, phrases PhraseTable, ev *domain.AnswerEvaluation, fragments *[]string) {
	for _, p := range phrases.Permanence {
		if strings.Contains(normalized, p) {
			ev.Scores.Relevance -= 40
			ev.Flagged = true
			appendReason(ev, "answer indicates intent to stay permanently")
			*fragments = append(*fragments, "Never suggest a permanent stay on a temporary visa.")
			return
		}
	}

	days, ok := parseDurationDays(normalized)
	if !ok {
		ev.Scores.Clarity -= 10
		*fragments = append(*fragments, "State a specific duration, for example \"two weeks\".")
		return
	}
	if visa == domain.VisaTourist && days > s.tables.TouristMaxDays {
		ev.Scores.Relevance -= 25
		ev.Flagged = true
		appendReason(ev, fmt.Sprintf("stated duration of %d days exceeds the %d days typical for tourist visas", days, s.tables.TouristMaxDays))
		*fragments = append(*fragments, "Tourist stays are expected to be short; long durations raise concerns.")
		return
	}
	if r, ok := s.tables.ExpectedDuration(visa); ok {
		if days >= r.MinDays && days <= r.MaxDays {
			ev.Scores.Relevance += 15
			ev.Scores.Completeness += 10
		} else {
			ev.Scores.Relevance -= 10
			*fragments = append(*fragments, "The stated duration is unusual for this visa category.")
		}
	}
}

// isReturnTicketQuestion identifies the return-ticket catalog entry; the hard
// rule keys off the question id, not its text.
func isReturnTicketQuestion(q domain.Question) bool {
	return q.ID == "return_ticket"
}

// scoreReturnTicket is the hard business rule for the return-ticket question
// on tourist and visit visas, distinct from generic yes/no scoring.
func (s *Scorer) scoreReturnTicket(normalized string, phrases PhraseTable, ev *domain.AnswerEvaluation, fragments *[]string) {
	for _, neg := range phrases.Negative {
		if matchPhrase(normalized, neg) {
			ev.Scores.Relevance -= 45
			ev.Flagged = true
			appendReason(ev, "no return ticket booked")
			*fragments = append(*fragments, "Book a return ticket before the interview; it is strong proof you intend to come back.")
			return
		}
	}
	for _, aff := range phrases.Affirmative {
		if matchPhrase(normalized, aff) {
			ev.Scores.Relevance += 50
			return
		}
	}
	ev.Scores.Clarity -= 15
	*fragments = append(*fragments, "Give a clear yes or no about your return ticket.")
}

// applyRules walks the question's attached rules. Duration and consistency
// variants are covered by the answer-type and consistency steps.
func (s *Scorer) applyRules(q domain.Question, normalized string, visa domain.VisaType, ev *domain.AnswerEvaluation) {
	for _, r := range q.Rules {
		fired := false
		switch r.Kind {
		case domain.RuleContains:
			fired = strings.Contains(normalized, strings.ToLower(r.Value))
		case domain.RuleNotContains:
			fired = !strings.Contains(normalized, strings.ToLower(r.Value))
		case domain.RuleMinLength:
			if n, err := strconv.Atoi(r.Value); err == nil {
				fired = len(normalized) >= n
			}
		case domain.RuleMaxLength:
			if n, err := strconv.Atoi(r.Value); err == nil {
				fired = len(normalized) > n
			}
		case domain.RuleRegex:
			if re, err := regexp.Compile(r.Value); err == nil {
				fired = re.MatchString(normalized)
			}
		case domain.RuleDuration:
			if days, ok := parseDurationDays(normalized); ok {
				if rng, ok := s.tables.ExpectedDuration(visa); ok {
					fired = days >= rng.MinDays && days <= rng.MaxDays
				}
			}
		case domain.RuleConsistency:
			// Applied in applyConsistencyRules when the checker reports a
			// conflict.
			continue
		}
		if fired {
			ev.Scores.Adjust(r.Category, r.Points)
		}
	}
}

// applyConsistencyRules fires the question's consistency-kind rules after the
// checker has reported a conflict.
func (s *Scorer) applyConsistencyRules(q domain.Question, ev *domain.AnswerEvaluation) {
	for _, r := range q.Rules {
		if r.Kind == domain.RuleConsistency {
			ev.Scores.Adjust(r.Category, r.Points)
		}
	}
}

// feedbackText joins accumulated fragments, or falls back to a tier message
// keyed by the total.
func (s *Scorer) feedbackText(fragments []string, total int) string {
	if len(fragments) > 0 {
		return strings.Join(fragments, " ")
	}
	switch {
	case total >= 80:
		return "Good answer. Clear, relevant, and confident."
	case total >= 60:
		return "Acceptable answer. Add specific details to make it stronger."
	default:
		return "This answer needs improvement. Be specific, direct, and confident."
	}
}

func appendReason(ev *domain.AnswerEvaluation, reason string) {
	if ev.FlagReason == "" {
		ev.FlagReason = reason
		return
	}
	ev.FlagReason += "; " + reason
}

var wordRe = regexp.MustCompile(`[a-z']+`)

// hasWord reports whether w appears as a whole word in normalized text.
func hasWord(text, w string) bool {
	for _, tok := range wordRe.FindAllString(text, -1) {
		if tok == w {
			return true
		}
	}
	return false
}

// matchPhrase matches multi-word phrases as substrings and single words on
// word boundaries, so "no" does not match inside "know".
func matchPhrase(text, phrase string) bool {
	if wordRe.FindString(phrase) != phrase {
		return strings.Contains(text, phrase)
	}
	return hasWord(text, phrase)
}

var (
	digitRe = regexp.MustCompile(`\d+`)

	numberWords = map[string]int{
		"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
		"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
		"a": 1, "an": 1,
	}

	unitDays = []struct {
		word string
		days int
	}{
		{"year", 365},
		{"month", 30},
		{"week", 7},
		{"day", 1},
	}
)

// parseDurationDays extracts the first stated duration and converts it to
// days. A bare number is read as days.
func parseDurationDays(normalized string) (int, bool) {
	n := -1
	if m := digitRe.FindString(normalized); m != "" {
		if v, err := strconv.Atoi(m); err == nil {
			n = v
		}
	}
	if n < 0 {
		// First number word in reading order keeps parsing deterministic.
		for _, tok := range wordRe.FindAllString(normalized, -1) {
			if v, ok := numberWords[tok]; ok {
				n = v
				break
			}
		}
	}
	if n < 0 {
		return 0, false
	}
	for _, u := range unitDays {
		if strings.Contains(normalized, u.word) {
			return n * u.days, true
		}
	}
	return n, true
}
