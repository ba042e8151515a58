package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/safarprep/interview-coach/internal/config"
	"github.com/safarprep/interview-coach/internal/domain"
	"github.com/safarprep/interview-coach/internal/interview"
)

// Server aggregates handler dependencies.
type Server struct {
	Cfg        config.Config
	Interviews *interview.Service
	DBCheck    func(ctx domain.Context) error
	AICheck    func() bool
}

// NewServer constructs an HTTP server with all handlers wired.
func NewServer(cfg config.Config, svc *interview.Service, dbCheck func(domain.Context) error, aiCheck func() bool) *Server {
	return &Server{Cfg: cfg, Interviews: svc, DBCheck: dbCheck, AICheck: aiCheck}
}

var (
	vldOnce sync.Once
	vld     *validator.Validate
)

func getValidator() *validator.Validate {
	vldOnce.Do(func() { vld = validator.New() })
	return vld
}

// questionPayload is the wire form of a question. Scoring configuration
// (rules, flag phrases) stays server-side.
type questionPayload struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	TextUrdu   string `json:"text_ur,omitempty"`
	Category   string `json:"category"`
	AnswerType string `json:"answer_type"`
}

func toQuestionPayload(q domain.Question) questionPayload {
	return questionPayload{
		ID:         q.ID,
		Text:       q.Text,
		TextUrdu:   q.TextUrdu,
		Category:   string(q.Category),
		AnswerType: string(q.AnswerType),
	}
}

func decodeValidated(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, r, fmt.Errorf("%w: invalid json", domain.ErrInvalidArgument), nil)
		return false
	}
	if err := getValidator().Struct(dst); err != nil {
		verrs := map[string]string{}
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			for _, fe := range ve {
				verrs[strings.ToLower(fe.Field())] = fe.Tag()
			}
		}
		writeError(w, r, fmt.Errorf("%w: validation failed", domain.ErrInvalidArgument), verrs)
		return false
	}
	return true
}

// StartHandler creates a new interview session.
func (s *Server) StartHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			VisaType    string `json:"visa_type" validate:"required"`
			Destination string `json:"destination" validate:"required,max=100"`
		}
		if !decodeValidated(w, r, &req) {
			return
		}
		res, err := s.Interviews.Start(r.Context(), domain.VisaType(strings.ToLower(req.VisaType)), req.Destination)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"session_id":      res.SessionID,
			"total_questions": res.TotalQuestions,
			"question":        toQuestionPayload(res.FirstQuestion),
		})
	}
}

// AnswerHandler scores the answer to the session's current question.
func (s *Server) AnswerHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			writeError(w, r, fmt.Errorf("%w: id missing", domain.ErrInvalidArgument), nil)
			return
		}
		var req struct {
			Answer         string `json:"answer" validate:"required,max=5000"`
			ResponseTimeMs int64  `json:"response_time_ms" validate:"omitempty,min=0"`
		}
		if !decodeValidated(w, r, &req) {
			return
		}
		res, err := s.Interviews.SubmitAnswer(r.Context(), id, req.Answer, req.ResponseTimeMs)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		body := map[string]any{
			"scores":      res.Scores,
			"feedback":    res.Feedback,
			"flagged":     res.Flagged,
			"ai_scored":   res.AIScored,
			"is_complete": res.IsComplete,
		}
		if res.FlagReason != "" {
			body["flag_reason"] = res.FlagReason
		}
		if res.NextQuestion != nil {
			body["next_question"] = toQuestionPayload(*res.NextQuestion)
		}
		writeJSON(w, http.StatusOK, body)
	}
}

// EndHandler finalizes a session and returns the overall assessment.
func (s *Server) EndHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			writeError(w, r, fmt.Errorf("%w: id missing", domain.ErrInvalidArgument), nil)
			return
		}
		sess, err := s.Interviews.End(r.Context(), id)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, sess)
	}
}

// HistoryHandler lists recently completed sessions.
func (s *Server) HistoryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summaries, err := s.Interviews.History(r.Context(), s.Cfg.HistoryLimit)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		if summaries == nil {
			summaries = []domain.SessionSummary{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"sessions": summaries})
	}
}

// HealthzHandler reports liveness plus dependency status. An unavailable AI
// never fails health; scoring falls back to the deterministic path.
func (s *Server) HealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{"status": "ok"}
		if s.DBCheck != nil {
			if err := s.DBCheck(r.Context()); err != nil {
				body["db"] = err.Error()
			} else {
				body["db"] = "ok"
			}
		}
		if s.AICheck != nil {
			if s.AICheck() {
				body["ai"] = "available"
			} else {
				body["ai"] = "unavailable"
			}
		}
		writeJSON(w, http.StatusOK, body)
	}
}

// ReadyzHandler fails only when the database is unreachable; the AI
// collaborator is optional and never gates readiness.
func (s *Server) ReadyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if s.DBCheck != nil {
			if err := s.DBCheck(ctx); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "db": err.Error()})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
