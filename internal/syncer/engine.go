// Package syncer keeps a client-side working copy of a session's elements in
// step with the server: it polls for remote changes while the user is idle
// and pushes local edits after a debounce.
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/haasonsaas/whiteboard/internal/canvas"
	"github.com/haasonsaas/whiteboard/internal/debounce"
)

// Default sync intervals.
const (
	DefaultPollInterval   = 2 * time.Second
	DefaultQuietPeriod    = 5 * time.Second
	DefaultPushDebounce   = 3 * time.Second
	DefaultRequestTimeout = 10 * time.Second
)

const pushKey = "push"

// Remote is the server side of a sync session.
type Remote interface {
	FetchElements(ctx context.Context, token string) ([]canvas.Element, error)
	MergeElements(ctx context.Context, token string, elements []canvas.Element) error
}

// State is the engine's push state.
type State int

const (
	StateIdle State = iota
	StateLocalEditPending
	StateSaving
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLocalEditPending:
		return "local_edit_pending"
	case StateSaving:
		return "saving"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Config holds the engine timings. Zero values fall back to the defaults.
type Config struct {
	PollInterval   time.Duration
	QuietPeriod    time.Duration
	PushDebounce   time.Duration
	RequestTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.QuietPeriod <= 0 {
		c.QuietPeriod = DefaultQuietPeriod
	}
	if c.PushDebounce <= 0 {
		c.PushDebounce = DefaultPushDebounce
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	return c
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig overrides the sync timings.
func WithConfig(cfg Config) Option {
	return func(e *Engine) {
		e.cfg = cfg.withDefaults()
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithClock overrides the time source used for the quiet period.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithOnReplace registers a callback run after the working copy is replaced
// by the remote scene, including the initial load.
func WithOnReplace(fn func([]canvas.Element)) Option {
	return func(e *Engine) {
		e.onReplace = fn
	}
}

// Engine reconciles a local working copy with a remote session.
//
// Requests run on detached timeout contexts and are not cancelled by Close,
// so a fetch issued before a local edit can still land after it when the
// edit arrives between the fetch and the response.
type Engine struct {
	remote    Remote
	token     string
	cfg       Config
	logger    *slog.Logger
	now       func() time.Time
	onReplace func([]canvas.Element)

	mu          sync.Mutex
	elements    []canvas.Element
	lastEdit    time.Time
	editingText bool
	state       State
	closed      bool

	pushing   bool
	pushDone  chan struct{}
	queued    []canvas.Element
	hasQueued bool

	pushes    *debounce.Debouncer[[]canvas.Element]
	stop      chan struct{}
	closeOnce sync.Once
}

// NewEngine creates an engine for the session named by token.
func NewEngine(remote Remote, token string, opts ...Option) *Engine {
	e := &Engine{
		remote: remote,
		token:  token,
		cfg:    Config{}.withDefaults(),
		logger: slog.Default(),
		now:    time.Now,
		stop:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "syncer", "session", token)
	e.pushes = debounce.New(
		debounce.WithDelay[[]canvas.Element](e.cfg.PushDebounce),
		debounce.WithOnFlush(e.push),
		debounce.WithOnError[[]canvas.Element](func(_ string, err error) {
			e.logger.Warn("push failed", "error", err)
		}),
	)
	return e
}

// Start loads the remote elements into the working copy and starts the poll
// timer. Polling stops when ctx is done or Close is called.
func (e *Engine) Start(ctx context.Context) error {
	fetchCtx, cancel := context.WithTimeout(ctx, e.cfg.RequestTimeout)
	defer cancel()
	elements, err := e.remote.FetchElements(fetchCtx, e.token)
	if err != nil {
		return fmt.Errorf("initial fetch: %w", err)
	}

	e.mu.Lock()
	e.elements = canvas.CloneElements(elements)
	e.mu.Unlock()
	e.notify(elements)

	go e.pollLoop(ctx)
	return nil
}

func (e *Engine) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stop:
			return
		case <-ticker.C:
			if _, err := e.Poll(); err != nil {
				e.logger.Warn("poll failed", "error", err)
			}
		}
	}
}

// Poll fetches the remote elements once and reports whether the working
// copy was replaced. It does nothing while a text edit is open or within the
// quiet period after the last local edit.
func (e *Engine) Poll() (bool, error) {
	e.mu.Lock()
	if e.closed || e.editingText || e.now().Sub(e.lastEdit) < e.cfg.QuietPeriod {
		e.mu.Unlock()
		return false, nil
	}
	e.mu.Unlock()

	ctx, cancel := e.requestContext()
	defer cancel()
	remote, err := e.remote.FetchElements(ctx, e.token)
	if err != nil {
		return false, fmt.Errorf("fetch elements: %w", err)
	}

	e.mu.Lock()
	if e.closed || !NeedsReplace(e.elements, remote) {
		e.mu.Unlock()
		return false, nil
	}
	e.elements = canvas.CloneElements(remote)
	e.mu.Unlock()

	e.logger.Debug("working copy replaced from remote", "elements", len(remote))
	e.notify(remote)
	return true, nil
}

// NeedsReplace reports whether the remote elements should overwrite the
// local copy: the counts differ or some local id is missing remotely.
// Content differences under the same ids are not detected.
func NeedsReplace(local, remote []canvas.Element) bool {
	if len(local) != len(remote) {
		return true
	}
	ids := make(map[string]struct{}, len(remote))
	for _, el := range remote {
		ids[el.ID] = struct{}{}
	}
	for _, el := range local {
		if _, ok := ids[el.ID]; !ok {
			return true
		}
	}
	return false
}

// LocalEdit records a local change to the working copy and re-arms the
// push timer. editingText marks an open text edit, which suspends polling.
func (e *Engine) LocalEdit(elements []canvas.Element, editingText bool) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.elements = canvas.CloneElements(elements)
	e.lastEdit = e.now()
	e.editingText = editingText
	if e.state == StateIdle {
		e.state = StateLocalEditPending
	}
	payload := canvas.FilterDeleted(e.elements)
	e.mu.Unlock()

	e.pushes.Enqueue(pushKey, payload)
}

// SetEditingText opens or closes a text edit without changing elements.
func (e *Engine) SetEditingText(editing bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.editingText = editing
	e.lastEdit = e.now()
}

// push sends elements to the remote. Pushes never overlap: a push that
// starts while another is in flight hands its batch over and waits, and the
// running push sends the latest batch handed to it before it returns.
func (e *Engine) push(_ string, elements []canvas.Element) error {
	e.mu.Lock()
	if e.pushing {
		e.queued, e.hasQueued = elements, true
		done := e.pushDone
		e.mu.Unlock()
		<-done
		return nil
	}
	e.pushing = true
	e.pushDone = make(chan struct{})
	e.state = StateSaving
	e.mu.Unlock()

	for {
		ctx, cancel := e.requestContext()
		err := e.remote.MergeElements(ctx, e.token, elements)
		cancel()
		if err != nil {
			err = fmt.Errorf("merge %d elements: %w", len(elements), err)
		} else {
			e.logger.Debug("pushed local elements", "elements", len(elements))
		}

		e.mu.Lock()
		if e.hasQueued {
			elements = e.queued
			e.queued, e.hasQueued = nil, false
			e.mu.Unlock()
			if err != nil {
				e.logger.Warn("push failed, sending newer batch", "error", err)
			}
			continue
		}
		e.pushing = false
		close(e.pushDone)
		if e.pushes.Pending(pushKey) {
			e.state = StateLocalEditPending
		} else {
			e.state = StateIdle
		}
		e.mu.Unlock()
		return err
	}
}

// Flush sends a pending push immediately. It reports whether one was pending.
func (e *Engine) Flush() bool {
	return e.pushes.Flush(pushKey)
}

// Elements returns a copy of the working copy.
func (e *Engine) Elements() []canvas.Element {
	e.mu.Lock()
	defer e.mu.Unlock()
	return canvas.CloneElements(e.elements)
}

// State returns the current push state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Close stops the poll and push timers. A pending push is dropped and
// requests already in flight are left to finish.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		e.mu.Lock()
		e.closed = true
		e.mu.Unlock()
		close(e.stop)
		e.pushes.Stop()
	})
}

func (e *Engine) requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), e.cfg.RequestTimeout)
}

func (e *Engine) notify(elements []canvas.Element) {
	if e.onReplace != nil {
		e.onReplace(canvas.CloneElements(elements))
	}
}
