// Package stub provides a deterministic AI client for development and tests.
package stub

import (
	"strings"

	"github.com/safarprep/interview-coach/internal/domain"
)

// Client implements domain.AIClient with canned, deterministic responses
// shaped like the real model's JSON. No network, no failures.
type Client struct{}

// New constructs a stub client.
func New() *Client { return &Client{} }

// Generate returns a fixed evaluation or assessment payload depending on the
// prompt shape.
func (c *Client) Generate(_ domain.Context, prompt string) (string, error) {
	if strings.Contains(prompt, "reviewing a complete mock interview") {
		return `{"overall_score": 72, "feedback_en": "A consistent practice interview with room to grow.", "feedback_ur": "مجموعی طور پر مستقل انٹرویو۔", "strengths": ["consistent answers"], "concerns": [], "improvements": ["add supporting detail"]}`, nil
	}
	return `{"overall_score": 75, "scores": {"completeness": 75, "clarity": 75, "relevance": 75, "confidence": 75, "consistency": 75}, "valid": true, "feedback_en": "Reasonable answer.", "feedback_ur": "مناسب جواب۔", "red_flags": [], "improvements": ["be more specific"], "fact_check": {"verdict": "ok", "issues": []}, "spelling_errors": []}`, nil
}
