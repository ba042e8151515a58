package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"

	"github.com/safarprep/interview-coach/internal/domain"
)

// PgxPool is the subset of *pgxpool.Pool the repo needs; narrowed for tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// SessionRepo implements domain.SessionRepository over PostgreSQL. The full
// session (answer records included) is stored as a JSONB document next to
// the queryable summary columns.
type SessionRepo struct{ Pool PgxPool }

// NewSessionRepo constructs a SessionRepo with the given pool.
func NewSessionRepo(p PgxPool) *SessionRepo { return &SessionRepo{Pool: p} }

// EnsureSchema creates the sessions table when missing.
func (r *SessionRepo) EnsureSchema(ctx context.Context) error {
	q := `CREATE TABLE IF NOT EXISTS interview_sessions (
		id TEXT PRIMARY KEY,
		visa_type TEXT NOT NULL,
		destination TEXT NOT NULL,
		started_at TIMESTAMPTZ NOT NULL,
		ended_at TIMESTAMPTZ NOT NULL,
		overall_score INT NOT NULL,
		passed BOOLEAN NOT NULL,
		ai_powered BOOLEAN NOT NULL,
		detail JSONB NOT NULL
	)`
	if _, err := r.Pool.Exec(ctx, q); err != nil {
		return fmt.Errorf("op=session.ensure_schema: %w", err)
	}
	return nil
}

// SaveCompleted stores a completed session. Callers treat failures as
// best-effort; this method just reports them.
func (r *SessionRepo) SaveCompleted(ctx context.Context, s domain.Session) error {
	tracer := otel.Tracer("repo.sessions")
	ctx, span := tracer.Start(ctx, "sessions.SaveCompleted")
	defer span.End()

	if s.Status != domain.SessionCompleted || s.EndedAt == nil {
		return fmt.Errorf("op=session.save: %w: session %q not completed", domain.ErrInvalidArgument, s.ID)
	}
	detail, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("op=session.save: %w", err)
	}
	q := `INSERT INTO interview_sessions (id, visa_type, destination, started_at, ended_at, overall_score, passed, ai_powered, detail)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (id) DO NOTHING`
	if _, err := r.Pool.Exec(ctx, q, s.ID, s.VisaType, s.Destination, s.StartedAt, *s.EndedAt, s.OverallScore, s.Passed, s.AIPowered, detail); err != nil {
		return fmt.Errorf("op=session.save: %w", err)
	}
	return nil
}

// ListRecent returns the most recently completed session summaries.
func (r *SessionRepo) ListRecent(ctx context.Context, limit int) ([]domain.SessionSummary, error) {
	tracer := otel.Tracer("repo.sessions")
	ctx, span := tracer.Start(ctx, "sessions.ListRecent")
	defer span.End()

	q := `SELECT id, visa_type, destination, started_at, ended_at, overall_score, passed, ai_powered
		FROM interview_sessions ORDER BY ended_at DESC LIMIT $1`
	rows, err := r.Pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("op=session.list_recent: %w", err)
	}
	defer rows.Close()

	var out []domain.SessionSummary
	for rows.Next() {
		var s domain.SessionSummary
		if err := rows.Scan(&s.ID, &s.VisaType, &s.Destination, &s.StartedAt, &s.EndedAt, &s.OverallScore, &s.Passed, &s.AIPowered); err != nil {
			return nil, fmt.Errorf("op=session.list_recent: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=session.list_recent: %w", err)
	}
	return out, nil
}
