package httpserver_test

import (
	"encoding/json"
	"errors"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpserver "github.com/safarprep/interview-coach/internal/adapter/httpserver"
	"github.com/safarprep/interview-coach/internal/app"
	"github.com/safarprep/interview-coach/internal/config"
	"github.com/safarprep/interview-coach/internal/domain"
	"github.com/safarprep/interview-coach/internal/evaluator"
	"github.com/safarprep/interview-coach/internal/interview"
	"github.com/safarprep/interview-coach/internal/questionbank"
	"github.com/safarprep/interview-coach/internal/scoring"
)

func testConfig() config.Config {
	return config.Config{
		AppEnv:           "test",
		HistoryLimit:     20,
		CORSAllowOrigins: "*",
		RateLimitPerMin:  1000,
		HTTPWriteTimeout: 10 * time.Second,
	}
}

type historyRepo struct {
	recent []domain.SessionSummary
}

func (r *historyRepo) SaveCompleted(_ domain.Context, s domain.Session) error {
	r.recent = append(r.recent, domain.SessionSummary{
		ID:           s.ID,
		VisaType:     s.VisaType,
		Destination:  s.Destination,
		OverallScore: s.OverallScore,
		Passed:       s.Passed,
		AIPowered:    s.AIPowered,
	})
	return nil
}

func (r *historyRepo) ListRecent(_ domain.Context, _ int) ([]domain.SessionSummary, error) {
	return r.recent, nil
}

func newTestHandler(t *testing.T, repo domain.SessionRepository) http.Handler {
	return newTestHandlerWithDB(t, repo, nil)
}

func newTestHandlerWithDB(t *testing.T, repo domain.SessionRepository, dbCheck func(domain.Context) error) http.Handler {
	t.Helper()
	bank, err := questionbank.New(rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	tables, err := scoring.DefaultTables()
	require.NoError(t, err)
	eval := evaluator.New(nil, scoring.NewScorer(tables, "en"), evaluator.Options{})
	svc := interview.NewService(bank, eval, interview.NewStore(time.Hour), repo, nil, interview.Options{
		PassScore:           80,
		QuestionsPerSession: 2,
		Locale:              "en",
	})
	cfg := testConfig()
	srv := httpserver.NewServer(cfg, svc, dbCheck, eval.Available)
	return app.BuildRouter(cfg, srv)
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestStartHandler_CreatesSession(t *testing.T) {
	h := newTestHandler(t, nil)

	rec := doJSON(t, h, http.MethodPost, "/v1/interviews", `{"visa_type":"tourist","destination":"UK"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var body struct {
		SessionID      string `json:"session_id"`
		TotalQuestions int    `json:"total_questions"`
		Question       struct {
			ID   string `json:"id"`
			Text string `json:"text"`
		} `json:"question"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body.SessionID)
	assert.Equal(t, 2, body.TotalQuestions)
	assert.NotEmpty(t, body.Question.Text)
}

func TestStartHandler_Validation(t *testing.T) {
	h := newTestHandler(t, nil)

	rec := doJSON(t, h, http.MethodPost, "/v1/interviews", `{"destination":"UK"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_ARGUMENT")

	rec = doJSON(t, h, http.MethodPost, "/v1/interviews", `{"visa_type":"diplomatic","destination":"UK"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/v1/interviews", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnswerHandler_UnknownSession(t *testing.T) {
	h := newTestHandler(t, nil)

	rec := doJSON(t, h, http.MethodPost, "/v1/interviews/nope/answers", `{"answer":"something"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "NOT_FOUND")
}

func TestAnswerHandler_MissingAnswer(t *testing.T) {
	h := newTestHandler(t, nil)

	rec := doJSON(t, h, http.MethodPost, "/v1/interviews/nope/answers", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInterviewFlow(t *testing.T) {
	repo := &historyRepo{}
	h := newTestHandler(t, repo)

	rec := doJSON(t, h, http.MethodPost, "/v1/interviews", `{"visa_type":"student","destination":"Canada"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var start struct {
		SessionID string `json:"session_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &start))

	answerBody := `{"answer":"I was admitted to a Masters program and my family savings cover tuition. I will return home after graduation.","response_time_ms":3000}`

	rec = doJSON(t, h, http.MethodPost, "/v1/interviews/"+start.SessionID+"/answers", answerBody)
	require.Equal(t, http.StatusOK, rec.Code)
	var first struct {
		IsComplete   bool            `json:"is_complete"`
		NextQuestion json.RawMessage `json:"next_question"`
		AIScored     bool            `json:"ai_scored"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))
	assert.False(t, first.IsComplete)
	assert.NotEmpty(t, first.NextQuestion)
	assert.False(t, first.AIScored)

	rec = doJSON(t, h, http.MethodPost, "/v1/interviews/"+start.SessionID+"/answers", answerBody)
	require.Equal(t, http.StatusOK, rec.Code)
	var second struct {
		IsComplete bool `json:"is_complete"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))
	assert.True(t, second.IsComplete)

	// A third answer conflicts.
	rec = doJSON(t, h, http.MethodPost, "/v1/interviews/"+start.SessionID+"/answers", answerBody)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/v1/interviews/"+start.SessionID+"/end", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var sess domain.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	assert.Equal(t, domain.SessionCompleted, sess.Status)
	assert.Len(t, sess.Answers, 2)

	// Ending again is a 404: the session left the active store.
	rec = doJSON(t, h, http.MethodPost, "/v1/interviews/"+start.SessionID+"/end", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// And the completed run shows up in history.
	rec = doJSON(t, h, http.MethodGet, "/v1/interviews/recent", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var hist struct {
		Sessions []domain.SessionSummary `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hist))
	require.Len(t, hist.Sessions, 1)
	assert.Equal(t, start.SessionID, hist.Sessions[0].ID)
}

func TestHistoryHandler_EmptyWithoutRepo(t *testing.T) {
	h := newTestHandler(t, nil)

	rec := doJSON(t, h, http.MethodGet, "/v1/interviews/recent", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"sessions":[]}`, rec.Body.String())
}

func TestHealthzHandler(t *testing.T) {
	h := newTestHandler(t, nil)

	rec := doJSON(t, h, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.Contains(t, rec.Body.String(), `"ai":"unavailable"`)
}

func TestReadyzHandler(t *testing.T) {
	h := newTestHandler(t, nil)

	rec := doJSON(t, h, http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ready"`)
}

func TestReadyzHandler_DBDown(t *testing.T) {
	h := newTestHandlerWithDB(t, nil, func(domain.Context) error { return errors.New("dial refused") })

	rec := doJSON(t, h, http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "dial refused")
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestHandler(t, nil)

	rec := doJSON(t, h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSecurityHeaders(t *testing.T) {
	h := newTestHandler(t, nil)

	rec := doJSON(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}
