package scoring

import "github.com/safarprep/interview-coach/internal/domain"

// Cross-answer consistency checks. Each check looks up one prior-answer slot
// relevant to the current question and reports a penalty plus an explanatory
// note when the combination is implausible. This is a targeted, extensible
// set, not a general contradiction detector; unmatched cases return zero.

type consistencyCheck struct {
	questionID string
	check      func(answer string, prev map[string]string) (int, string)
}

var consistencyChecks = []consistencyCheck{
	{
		// Short-visit purpose followed by a long or open-ended duration.
		questionID: "duration",
		check: func(answer string, prev map[string]string) (int, string) {
			purpose, ok := prev["purpose"]
			if !ok {
				return 0, ""
			}
			shortVisit := containsAny(purpose, "tourism", "vacation", "holiday", "visit", "conference", "meeting")
			if !shortVisit {
				return 0, ""
			}
			if days, ok := parseDurationDays(answer); ok && days > 180 {
				return -20, "You described a short visit, but this duration suggests a long-term stay."
			}
			return 0, ""
		},
	},
	{
		// Claimed self-funding while previously stating unemployment.
		questionID: "funding",
		check: func(answer string, prev map[string]string) (int, string) {
			occupation, ok := prev["occupation"]
			if !ok {
				return 0, ""
			}
			if containsAny(occupation, "unemployed", "no job") && containsAny(answer, "my savings", "self-funded", "my salary") {
				return -15, "Self-funding does not match the unemployment you mentioned earlier."
			}
			return 0, ""
		},
	},
	{
		// Home ties claimed after stating an intent to remain abroad.
		questionID: "ties_home",
		check: func(answer string, prev map[string]string) (int, string) {
			postStudy, ok := prev["post_study"]
			if !ok {
				return 0, ""
			}
			if containsAny(postStudy, "stay there", "settle", "permanent residence", "find a job there") {
				return -20, "Your earlier plan to remain abroad undercuts the home ties you describe here."
			}
			return 0, ""
		},
	},
	{
		// Return date promised after denying a return ticket.
		questionID: "return_plans",
		check: func(answer string, prev map[string]string) (int, string) {
			ticket, ok := prev["return_ticket"]
			if !ok {
				return 0, ""
			}
			if containsAny(ticket, "not yet", "not booked", "haven't") && containsAny(answer, "return flight", "my ticket") {
				return -10, "You mention a return flight but said earlier that no ticket is booked."
			}
			return 0, ""
		},
	},
}

// CheckConsistency cross-references the current normalized answer against the
// session's previous answers. It returns a consistency score adjustment
// (zero or negative) and an explanatory note when a conflict is found.
func CheckConsistency(q domain.Question, normalizedAnswer string, previousAnswers map[string]string) (int, string) {
	if len(previousAnswers) == 0 {
		return 0, ""
	}
	for _, c := range consistencyChecks {
		if c.questionID != q.ID {
			continue
		}
		if adj, note := c.check(normalizedAnswer, previousAnswers); adj != 0 {
			return adj, note
		}
	}
	return 0, ""
}

func containsAny(text string, phrases ...string) bool {
	for _, p := range phrases {
		if matchPhrase(text, p) {
			return true
		}
	}
	return false
}
