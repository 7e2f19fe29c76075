package syncer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/haasonsaas/whiteboard/internal/canvas"
)

// EditingSuffix names the marker file whose presence signals an open text
// edit on the mirrored file.
const EditingSuffix = ".editing"

// Mirror binds an Engine to a JSON file holding the element array. Remote
// replacements are written to the file and edits to the file become local
// edits. Content the mirror wrote itself is not fed back to the engine.
type Mirror struct {
	path   string
	marker string
	logger *slog.Logger

	mu       sync.Mutex
	engine   *Engine
	lastSeen []byte
	watcher  *fsnotify.Watcher
}

// NewMirror creates a mirror for path.
func NewMirror(path string, logger *slog.Logger) (*Mirror, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("mirror path is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	return &Mirror{
		path:   abs,
		marker: abs + EditingSuffix,
		logger: logger.With("component", "mirror", "path", abs),
	}, nil
}

// Path returns the mirrored file.
func (m *Mirror) Path() string {
	return m.path
}

// Apply writes elements to the file. It is meant to be passed to
// WithOnReplace.
func (m *Mirror) Apply(elements []canvas.Element) {
	if elements == nil {
		elements = []canvas.Element{}
	}
	raw, err := json.MarshalIndent(elements, "", "  ")
	if err != nil {
		m.logger.Error("encode elements", "error", err)
		return
	}
	raw = append(raw, '\n')

	m.mu.Lock()
	m.lastSeen = raw
	m.mu.Unlock()

	if err := os.WriteFile(m.path, raw, 0o644); err != nil {
		m.logger.Error("write mirror file", "error", err)
	}
}

// Start begins watching the file and forwarding edits to engine.
func (m *Mirror) Start(ctx context.Context, engine *Engine) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// Watch the directory so editors that save by rename are still seen.
	if err := watcher.Add(filepath.Dir(m.path)); err != nil {
		_ = watcher.Close()
		return err
	}
	m.mu.Lock()
	m.engine = engine
	m.watcher = watcher
	m.mu.Unlock()

	if _, err := os.Stat(m.marker); err == nil {
		engine.SetEditingText(true)
	}

	go m.watchLoop(ctx, watcher)
	return nil
}

// Close stops watching.
func (m *Mirror) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.watcher != nil {
		err := m.watcher.Close()
		m.watcher = nil
		return err
	}
	return nil
}

func (m *Mirror) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-watcher.Events:
			if !ok {
				return
			}
			m.handle(evt)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			m.logger.Warn("mirror watch error", "error", err)
		}
	}
}

func (m *Mirror) handle(evt fsnotify.Event) {
	name := filepath.Clean(evt.Name)
	switch name {
	case m.marker:
		m.mu.Lock()
		engine := m.engine
		m.mu.Unlock()
		switch {
		case evt.Op&fsnotify.Create != 0:
			engine.SetEditingText(true)
		case evt.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
			engine.SetEditingText(false)
		}
	case m.path:
		if evt.Op&(fsnotify.Create|fsnotify.Write) != 0 {
			m.reload()
		}
	}
}

// reload reads the file and records it as a local edit unless the content
// is what the mirror last wrote or read.
func (m *Mirror) reload() {
	raw, err := os.ReadFile(m.path)
	if err != nil {
		m.logger.Warn("read mirror file", "error", err)
		return
	}

	m.mu.Lock()
	if bytes.Equal(raw, m.lastSeen) {
		m.mu.Unlock()
		return
	}
	engine := m.engine
	m.mu.Unlock()

	var elements []canvas.Element
	if err := json.Unmarshal(raw, &elements); err != nil {
		// Usually a partial write; the next write event retries.
		m.logger.Debug("skip undecodable mirror file", "error", err)
		return
	}

	m.mu.Lock()
	m.lastSeen = raw
	m.mu.Unlock()

	_, statErr := os.Stat(m.marker)
	engine.LocalEdit(elements, statErr == nil)
	m.logger.Debug("local edit from file", "elements", len(elements))
}
