// Package diagram synthesizes correlated diagram elements: shapes with
// label texts, connector arrows with bindings, and laid-out node graphs.
package diagram

import (
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/haasonsaas/whiteboard/internal/canvas"
)

// Defaults shared by every builder.
const (
	DefaultStrokeColor     = "#1e1e1e"
	DefaultBackgroundColor = "#ffffff"
	TransparentBackground  = "transparent"
	DefaultFontFamily      = 1
	labelFontSize          = 20.0
	arrowLabelFontSize     = 16.0
	charWidthFactor        = 0.6
	lineHeightFactor       = 1.5
)

// Builder creates elements against a scene. Generated ids never collide
// with ids already in the scene or produced earlier in the same call.
type Builder struct {
	newID  func() string
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithIDFunc overrides element id generation.
func WithIDFunc(fn func() string) Option {
	return func(b *Builder) {
		if fn != nil {
			b.newID = fn
		}
	}
}

// WithClock overrides the time source used for "updated".
func WithClock(now func() time.Time) Option {
	return func(b *Builder) {
		if now != nil {
			b.now = now
		}
	}
}

// WithLogger sets the logger used for non-fatal warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBuilder creates a Builder.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		newID:  RandomID,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With("component", "diagram")
	return b
}

// RandomID returns a short random element id.
func RandomID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

// idAllocator hands out ids unique against a scene and its own history.
type idAllocator struct {
	scene *canvas.Scene
	used  map[string]struct{}
	next  func() string
}

func (b *Builder) allocator(scene *canvas.Scene) *idAllocator {
	return &idAllocator{scene: scene, used: map[string]struct{}{}, next: b.newID}
}

func (a *idAllocator) taken(id string) bool {
	if _, ok := a.used[id]; ok {
		return true
	}
	return a.scene != nil && a.scene.Has(id)
}

func (a *idAllocator) reserve(id string) {
	a.used[id] = struct{}{}
}

func (a *idAllocator) fresh() string {
	for {
		id := a.next()
		if id != "" && !a.taken(id) {
			a.reserve(id)
			return id
		}
	}
}

func (b *Builder) updated() int64 {
	return b.now().UnixMilli()
}

// textWidth estimates rendered width from the character count.
func textWidth(text string, fontSize float64) float64 {
	return float64(utf8.RuneCountInString(text)) * fontSize * charWidthFactor
}

func textHeight(fontSize float64) float64 {
	return fontSize * lineHeightFactor
}

func baseElement(id string, kind canvas.ElementType, updated int64) canvas.Element {
	return canvas.Element{
		ID:   id,
		Type: kind,
		Style: canvas.Style{
			StrokeColor:     DefaultStrokeColor,
			BackgroundColor: TransparentBackground,
			FillStyle:       "solid",
			StrokeWidth:     1,
			StrokeStyle:     "solid",
			Roughness:       1,
			Opacity:         100,
		},
		GroupIDs: []string{},
		Updated:  updated,
	}
}

// labelFor builds the text element that labels container, centered on it.
func labelFor(id string, container canvas.Element, label string, updated int64) canvas.Element {
	w := textWidth(label, labelFontSize)
	h := textHeight(labelFontSize)
	text := baseElement(id, canvas.TypeText, updated)
	text.X = container.X + (container.Width-w)/2
	text.Y = container.Y + (container.Height-h)/2
	text.Width = w
	text.Height = h
	text.Roughness = 0
	text.Text = &canvas.TextPayload{
		Content:       label,
		FontSize:      labelFontSize,
		FontFamily:    DefaultFontFamily,
		TextAlign:     "center",
		VerticalAlign: "middle",
		Baseline:      labelFontSize,
		ContainerID:   container.ID,
		OriginalText:  label,
	}
	return text
}
