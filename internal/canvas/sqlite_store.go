package canvas

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/haasonsaas/whiteboard/internal/storage"
)

// SQLiteStore implements Store on an embedded SQLite database.
// Timestamps are stored as unix nanoseconds.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens path (":memory:" for a private in-memory database)
// and applies the schema.
func NewSQLiteStore(path string, config *storage.PoolConfig) (*SQLiteStore, error) {
	if config == nil {
		config = storage.DefaultPoolConfig()
	}
	// SQLite allows a single writer; an in-memory database is per connection.
	pool := *config
	pool.MaxOpenConns = 1
	pool.MaxIdleConns = 1
	pool.ConnMaxLifetime = 0
	pool.ConnMaxIdleTime = 0

	db, err := storage.Open("sqlite", path, &pool)
	if err != nil {
		return nil, err
	}
	store := &SQLiteStore{db: db}
	if err := applySchema(context.Background(), db, "sqlite"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) CreateSession(ctx context.Context, session *Session) error {
	if err := prepareSession(session, uuid.NewString); err != nil {
		return err
	}
	raw, err := encodeElements(session.Elements)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO whiteboard_sessions (id, name, elements_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		session.ID,
		nullString(session.Name),
		string(raw),
		session.CreatedAt.UnixNano(),
		session.UpdatedAt.UnixNano(),
	)
	if err != nil {
		if isSQLiteConstraint(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("create whiteboard session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*Session, error) {
	session, err := s.getOne(ctx, `WHERE id = ?`, id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("get whiteboard session: %w", err)
	}
	return session, err
}

func (s *SQLiteStore) GetSessionByName(ctx context.Context, name string) (*Session, error) {
	if name == "" {
		return nil, ErrNotFound
	}
	session, err := s.getOne(ctx, `WHERE name = ?`, name)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("get whiteboard session by name: %w", err)
	}
	return session, err
}

func (s *SQLiteStore) getOne(ctx context.Context, where string, arg string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, elements_json, created_at, updated_at
		FROM whiteboard_sessions `+where, arg)

	var session Session
	var name sql.NullString
	var raw string
	var created, updated int64
	if err := row.Scan(&session.ID, &name, &raw, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	elements, err := decodeElements([]byte(raw))
	if err != nil {
		return nil, err
	}
	session.Name = name.String
	session.Elements = elements
	session.CreatedAt = time.Unix(0, created).UTC()
	session.UpdatedAt = time.Unix(0, updated).UTC()
	return &session, nil
}

func (s *SQLiteStore) ListSessions(ctx context.Context, limit int) ([]*Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, created_at, updated_at
		FROM whiteboard_sessions
		ORDER BY updated_at DESC, id ASC
		LIMIT ?
	`, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list whiteboard sessions: %w", err)
	}
	defer rows.Close()

	sessions := []*Session{}
	for rows.Next() {
		var session Session
		var name sql.NullString
		var created, updated int64
		if err := rows.Scan(&session.ID, &name, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan whiteboard session: %w", err)
		}
		session.Name = name.String
		session.CreatedAt = time.Unix(0, created).UTC()
		session.UpdatedAt = time.Unix(0, updated).UTC()
		sessions = append(sessions, &session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list whiteboard sessions: %w", err)
	}
	return sessions, nil
}

func (s *SQLiteStore) SaveElements(ctx context.Context, id string, elements []Element) error {
	raw, err := encodeElements(elements)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE whiteboard_sessions SET elements_json = ?, updated_at = ? WHERE id = ?
	`, string(raw), time.Now().UTC().UnixNano(), id)
	if err != nil {
		return fmt.Errorf("save whiteboard elements: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM whiteboard_sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete whiteboard session: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

func isSQLiteConstraint(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
