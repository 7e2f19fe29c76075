package canvas

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/haasonsaas/whiteboard/internal/observability"
)

// Manager resolves sessions and runs every element mutation as a
// read-modify-write over the stored sequence, then broadcasts the result.
//
// Without a Locker, two concurrent writers on one session can both read the
// same sequence and the later save wins (lost update).
type Manager struct {
	store   Store
	hub     *Hub
	logger  *slog.Logger
	metrics *Metrics
	locker  Locker
	tracer  trace.Tracer
}

// NewManager creates a manager. A nil store falls back to an in-memory one.
func NewManager(store Store, logger *slog.Logger) *Manager {
	if store == nil {
		store = NewMemoryStore()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:  store,
		hub:    NewHub(),
		logger: logger.With("component", "canvas"),
		tracer: otel.Tracer("github.com/haasonsaas/whiteboard/internal/canvas"),
	}
}

// Store returns the configured store.
func (m *Manager) Store() Store {
	if m == nil {
		return nil
	}
	return m.store
}

// Hub returns the live stream hub.
func (m *Manager) Hub() *Hub {
	if m == nil {
		return nil
	}
	return m.hub
}

func (m *Manager) Metrics() *Metrics {
	if m == nil {
		return nil
	}
	return m.metrics
}

func (m *Manager) SetMetrics(metrics *Metrics) {
	if m == nil {
		return
	}
	m.metrics = metrics
}

// SetLocker enables per-session write serialization.
func (m *Manager) SetLocker(locker Locker) {
	if m == nil {
		return
	}
	m.locker = locker
}

// CreateSession creates an empty session. An empty name creates an unnamed
// session; a name already in use fails with ErrAlreadyExists.
func (m *Manager) CreateSession(ctx context.Context, name string) (*Session, error) {
	if name != "" {
		if _, err := m.store.GetSessionByName(ctx, name); err == nil {
			return nil, ErrAlreadyExists
		} else if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	session := &Session{Name: name}
	if err := m.store.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	m.metrics.RecordSessionCreated()
	m.logger.Info("session created", "session_id", session.ID, "name", name)
	return session, nil
}

// Resolve finds a session by exact id, then by exact name. It never creates.
func (m *Manager) Resolve(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	session, err := m.store.GetSession(ctx, token)
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return m.store.GetSessionByName(ctx, token)
}

// ListSessions returns the most recently updated sessions.
func (m *Manager) ListSessions(ctx context.Context, limit int) ([]*Session, error) {
	return m.store.ListSessions(ctx, normalizeLimit(limit))
}

// Merge overwrites elements by id and appends new ones.
func (m *Manager) Merge(ctx context.Context, token string, batch []Element) (*Session, error) {
	return m.Update(ctx, token, MessageMerge, func(scene *Scene) error {
		scene.Merge(batch)
		return nil
	})
}

// Replace stores seq verbatim as the session's sequence.
func (m *Manager) Replace(ctx context.Context, token string, seq []Element) (*Session, error) {
	return m.Update(ctx, token, MessageReplace, func(scene *Scene) error {
		scene.Replace(seq)
		return nil
	})
}

// Update loads the session's scene, applies fn and saves the result. An
// error from fn aborts the write. op names the write in metrics and in the
// broadcast message type.
func (m *Manager) Update(ctx context.Context, token, op string, fn func(*Scene) error) (*Session, error) {
	ctx, span := m.tracer.Start(ctx, "canvas."+op, trace.WithAttributes(attribute.String("whiteboard.session_token", token)))
	defer span.End()

	session, err := m.Resolve(ctx, token)
	if err != nil {
		return nil, m.spanError(span, err)
	}
	span.SetAttributes(attribute.String("whiteboard.session_id", session.ID))

	if m.locker != nil {
		if err := m.locker.Lock(ctx, session.ID); err != nil {
			return nil, m.spanError(span, err)
		}
		defer m.locker.Unlock(session.ID)
		// Re-read under the lock so the write starts from the latest save.
		if session, err = m.store.GetSession(ctx, session.ID); err != nil {
			return nil, m.spanError(span, err)
		}
	}

	scene := NewScene(session.Elements)
	if err := fn(scene); err != nil {
		return nil, m.spanError(span, err)
	}
	elements := scene.Elements()
	if err := m.store.SaveElements(ctx, session.ID, elements); err != nil {
		return nil, m.spanError(span, err)
	}
	session.Elements = elements
	session.UpdatedAt = time.Now().UTC()
	span.SetAttributes(attribute.Int("whiteboard.element_count", len(elements)))

	m.metrics.RecordWrite(op)
	m.broadcast(op, session.ID, elements)
	return session, nil
}

// DeleteSession removes a session resolved by token.
func (m *Manager) DeleteSession(ctx context.Context, token string) error {
	session, err := m.Resolve(ctx, token)
	if err != nil {
		return err
	}
	if err := m.store.DeleteSession(ctx, session.ID); err != nil {
		return err
	}
	m.logger.Info("session deleted", "session_id", session.ID)
	m.hub.Broadcast(StreamMessage{Type: MessageDelete, SessionID: session.ID, Timestamp: time.Now()})
	return nil
}

func (m *Manager) broadcast(op, sessionID string, elements []Element) {
	payload, err := json.Marshal(map[string]any{"elements": elements})
	if err != nil {
		m.logger.Warn("encode stream payload", "session_id", sessionID, "error", err)
		return
	}
	m.hub.Broadcast(StreamMessage{
		Type:      op,
		SessionID: sessionID,
		Payload:   payload,
		Timestamp: time.Now(),
	})
}

func (m *Manager) spanError(span trace.Span, err error) error {
	if !errors.Is(err, ErrNotFound) {
		observability.Fail(span, err)
	}
	return err
}
