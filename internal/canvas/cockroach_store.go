package canvas

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/haasonsaas/whiteboard/internal/storage"
)

// CockroachStore implements Store using CockroachDB/Postgres.
type CockroachStore struct {
	db *sql.DB
}

// NewCockroachStoreFromDSN creates a store using a DSN and applies the schema.
func NewCockroachStoreFromDSN(dsn string, config *storage.PoolConfig) (*CockroachStore, error) {
	db, err := storage.Open("postgres", dsn, config)
	if err != nil {
		return nil, err
	}
	store := &CockroachStore{db: db}
	if err := store.EnsureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// EnsureSchema creates the sessions table if it does not exist.
func (s *CockroachStore) EnsureSchema(ctx context.Context) error {
	return applySchema(ctx, s.db, "postgres")
}

// Close closes the underlying database connection.
func (s *CockroachStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *CockroachStore) CreateSession(ctx context.Context, session *Session) error {
	if err := prepareSession(session, uuid.NewString); err != nil {
		return err
	}
	raw, err := encodeElements(session.Elements)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO whiteboard_sessions (id, name, elements_json, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5)
	`,
		session.ID,
		nullString(session.Name),
		string(raw),
		session.CreatedAt,
		session.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("create whiteboard session: %w", err)
	}
	return nil
}

func (s *CockroachStore) GetSession(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, elements_json, created_at, updated_at
		FROM whiteboard_sessions WHERE id = $1
	`, id)
	session, err := scanSession(row)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get whiteboard session: %w", err)
	}
	return session, nil
}

func (s *CockroachStore) GetSessionByName(ctx context.Context, name string) (*Session, error) {
	if name == "" {
		return nil, ErrNotFound
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, elements_json, created_at, updated_at
		FROM whiteboard_sessions WHERE name = $1
	`, name)
	session, err := scanSession(row)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get whiteboard session by name: %w", err)
	}
	return session, nil
}

func (s *CockroachStore) ListSessions(ctx context.Context, limit int) ([]*Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, created_at, updated_at
		FROM whiteboard_sessions
		ORDER BY updated_at DESC, id ASC
		LIMIT $1
	`, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list whiteboard sessions: %w", err)
	}
	defer rows.Close()

	sessions := []*Session{}
	for rows.Next() {
		var session Session
		var name sql.NullString
		if err := rows.Scan(&session.ID, &name, &session.CreatedAt, &session.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan whiteboard session: %w", err)
		}
		session.Name = name.String
		sessions = append(sessions, &session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list whiteboard sessions: %w", err)
	}
	return sessions, nil
}

func (s *CockroachStore) SaveElements(ctx context.Context, id string, elements []Element) error {
	raw, err := encodeElements(elements)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE whiteboard_sessions SET elements_json = $1, updated_at = $2 WHERE id = $3
	`, string(raw), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("save whiteboard elements: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *CockroachStore) DeleteSession(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM whiteboard_sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete whiteboard session: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

func scanSession(row *sql.Row) (*Session, error) {
	var session Session
	var name sql.NullString
	var raw []byte
	if err := row.Scan(&session.ID, &name, &raw, &session.CreatedAt, &session.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	elements, err := decodeElements(raw)
	if err != nil {
		return nil, err
	}
	session.Name = name.String
	session.Elements = elements
	return &session, nil
}

func nullString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique constraint")
}
