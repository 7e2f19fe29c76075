package canvas

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound      = errors.New("canvas: not found")
	ErrAlreadyExists = errors.New("canvas: already exists")
	ErrLockTimeout   = errors.New("canvas: session lock timeout")
)

// DefaultListLimit bounds ListSessions when no limit is given.
const DefaultListLimit = 20

// Session is one shared diagram. Name is optional and unique when set.
type Session struct {
	ID        string
	Name      string
	Elements  []Element
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store persists sessions and their element sequences.
type Store interface {
	CreateSession(ctx context.Context, session *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	GetSessionByName(ctx context.Context, name string) (*Session, error)
	// ListSessions returns sessions most recently updated first. Elements are not loaded.
	ListSessions(ctx context.Context, limit int) ([]*Session, error)
	// SaveElements overwrites the whole stored sequence and bumps UpdatedAt.
	SaveElements(ctx context.Context, id string, elements []Element) error
	DeleteSession(ctx context.Context, id string) error
	Close() error
}

func cloneSession(session *Session) *Session {
	if session == nil {
		return nil
	}
	clone := *session
	clone.Elements = CloneElements(session.Elements)
	return &clone
}

func prepareSession(session *Session, newID func() string) error {
	if session == nil {
		return ErrNotFound
	}
	if session.ID == "" {
		session.ID = newID()
	}
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	if session.UpdatedAt.IsZero() {
		session.UpdatedAt = session.CreatedAt
	}
	if session.Elements == nil {
		session.Elements = []Element{}
	}
	return nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}

func encodeElements(elements []Element) ([]byte, error) {
	if elements == nil {
		elements = []Element{}
	}
	raw, err := json.Marshal(elements)
	if err != nil {
		return nil, fmt.Errorf("encode elements: %w", err)
	}
	return raw, nil
}

func decodeElements(raw []byte) ([]Element, error) {
	elements := []Element{}
	if len(raw) == 0 {
		return elements, nil
	}
	if err := json.Unmarshal(raw, &elements); err != nil {
		return nil, fmt.Errorf("decode elements: %w", err)
	}
	if elements == nil {
		elements = []Element{}
	}
	return elements, nil
}
