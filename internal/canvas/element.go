package canvas

import (
	"encoding/json"
	"fmt"
)

// ElementType is the variant tag carried in every element's "type" field.
type ElementType string

const (
	TypeRectangle ElementType = "rectangle"
	TypeEllipse   ElementType = "ellipse"
	TypeDiamond   ElementType = "diamond"
	TypeText      ElementType = "text"
	TypeArrow     ElementType = "arrow"
	TypeLine      ElementType = "line"
)

// IsShape reports whether t is one of the closed shape variants.
func (t ElementType) IsShape() bool {
	return t == TypeRectangle || t == TypeEllipse || t == TypeDiamond
}

// IsLinear reports whether t carries a polyline payload.
func (t ElementType) IsLinear() bool {
	return t == TypeArrow || t == TypeLine
}

// BoundElement is a weak back-reference from an element to something attached to it.
type BoundElement struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// Binding attaches one end of an arrow to another element.
// Focus 0 anchors on the bound element's centerline; Gap is a fixed clearance.
type Binding struct {
	ElementID string  `json:"elementId"`
	Focus     float64 `json:"focus"`
	Gap       float64 `json:"gap"`
}

// Point is a local polyline coordinate relative to the element's x/y.
type Point [2]float64

// Style holds the stroke and fill attributes shared by every variant.
type Style struct {
	StrokeColor     string
	BackgroundColor string
	FillStyle       string
	StrokeWidth     float64
	StrokeStyle     string
	Roughness       float64
	Opacity         float64
}

// TextPayload is the variant data of a text element.
type TextPayload struct {
	Content       string
	FontSize      float64
	FontFamily    int
	TextAlign     string
	VerticalAlign string
	Baseline      float64
	// ContainerID is set iff the text is the label of a shape.
	ContainerID  string
	OriginalText string
}

// ArrowLabel is the optional inline text carried by an arrow.
type ArrowLabel struct {
	Text       string
	FontSize   float64
	FontFamily int
	TextAlign  string
}

// ArrowPayload is the variant data of arrow and line elements.
type ArrowPayload struct {
	Points             []Point
	LastCommittedPoint *Point
	StartBinding       *Binding
	EndBinding         *Binding
	StartArrowhead     *string
	EndArrowhead       *string
	Label              *ArrowLabel
}

// Element is one diagram primitive. Common fields live on the struct itself;
// variant data lives in exactly one of Text or Arrow, selected by Type.
// Fields the model does not know are kept in Extra and written back verbatim.
// A decoded element keeps its source record, so fields left unchanged are
// encoded exactly as they arrived.
type Element struct {
	ID     string
	Type   ElementType
	X      float64
	Y      float64
	Width  float64
	Height float64
	Angle  float64
	Style

	IsDeleted     bool
	GroupIDs      []string
	BoundElements []BoundElement
	Locked        bool
	Updated       int64
	Link          *string

	Text  *TextPayload
	Arrow *ArrowPayload

	Extra map[string]json.RawMessage

	src *origin
}

// HasBoundElement reports whether the element already references id.
func (e *Element) HasBoundElement(id, kind string) bool {
	for _, ref := range e.BoundElements {
		if ref.ID == id && ref.Type == kind {
			return true
		}
	}
	return false
}

// AddBoundElement appends a back-reference unless an identical one exists.
// The slice is copied so clones sharing the backing array are not affected.
func (e *Element) AddBoundElement(id, kind string) bool {
	if e.HasBoundElement(id, kind) {
		return false
	}
	refs := make([]BoundElement, 0, len(e.BoundElements)+1)
	refs = append(refs, e.BoundElements...)
	e.BoundElements = append(refs, BoundElement{ID: id, Type: kind})
	return true
}

// Clone returns a deep copy.
func (e Element) Clone() Element {
	out := e
	if e.GroupIDs != nil {
		out.GroupIDs = append([]string{}, e.GroupIDs...)
	}
	if e.BoundElements != nil {
		out.BoundElements = append([]BoundElement{}, e.BoundElements...)
	}
	if e.Link != nil {
		link := *e.Link
		out.Link = &link
	}
	if e.Text != nil {
		text := *e.Text
		out.Text = &text
	}
	if e.Arrow != nil {
		out.Arrow = e.Arrow.clone()
	}
	if e.Extra != nil {
		out.Extra = make(map[string]json.RawMessage, len(e.Extra))
		for k, v := range e.Extra {
			out.Extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	return out
}

func (a *ArrowPayload) clone() *ArrowPayload {
	out := *a
	if a.Points != nil {
		out.Points = append([]Point{}, a.Points...)
	}
	if a.LastCommittedPoint != nil {
		p := *a.LastCommittedPoint
		out.LastCommittedPoint = &p
	}
	if a.StartBinding != nil {
		b := *a.StartBinding
		out.StartBinding = &b
	}
	if a.EndBinding != nil {
		b := *a.EndBinding
		out.EndBinding = &b
	}
	if a.StartArrowhead != nil {
		s := *a.StartArrowhead
		out.StartArrowhead = &s
	}
	if a.EndArrowhead != nil {
		s := *a.EndArrowhead
		out.EndArrowhead = &s
	}
	if a.Label != nil {
		l := *a.Label
		out.Label = &l
	}
	return &out
}

// CloneElements deep-copies a sequence.
func CloneElements(elements []Element) []Element {
	if elements == nil {
		return nil
	}
	out := make([]Element, len(elements))
	for i, el := range elements {
		out[i] = el.Clone()
	}
	return out
}

// FilterDeleted returns the elements that are not tombstoned.
func FilterDeleted(elements []Element) []Element {
	out := make([]Element, 0, len(elements))
	for _, el := range elements {
		if !el.IsDeleted {
			out = append(out, el)
		}
	}
	return out
}

// origin is the record an element was decoded from. Fields whose value has
// not changed since decoding are written back from raw, byte for byte, and
// keys the record never had stay absent.
type origin struct {
	raw   map[string]json.RawMessage
	canon map[string]string
}

// field binds one wire key to the model.
type field struct {
	key string
	get func(*Element) any
	set func(*Element, json.RawMessage) error
}

var commonFields = []field{
	{"id", func(e *Element) any { return e.ID }, func(e *Element, v json.RawMessage) error { return json.Unmarshal(v, &e.ID) }},
	{"type", func(e *Element) any { return e.Type }, func(e *Element, v json.RawMessage) error { return json.Unmarshal(v, &e.Type) }},
	{"x", func(e *Element) any { return e.X }, func(e *Element, v json.RawMessage) error { return json.Unmarshal(v, &e.X) }},
	{"y", func(e *Element) any { return e.Y }, func(e *Element, v json.RawMessage) error { return json.Unmarshal(v, &e.Y) }},
	{"width", func(e *Element) any { return e.Width }, func(e *Element, v json.RawMessage) error { return json.Unmarshal(v, &e.Width) }},
	{"height", func(e *Element) any { return e.Height }, func(e *Element, v json.RawMessage) error { return json.Unmarshal(v, &e.Height) }},
	{"angle", func(e *Element) any { return e.Angle }, func(e *Element, v json.RawMessage) error { return json.Unmarshal(v, &e.Angle) }},
	{"strokeColor", func(e *Element) any { return e.StrokeColor }, func(e *Element, v json.RawMessage) error { return json.Unmarshal(v, &e.StrokeColor) }},
	{"backgroundColor", func(e *Element) any { return e.BackgroundColor }, func(e *Element, v json.RawMessage) error { return json.Unmarshal(v, &e.BackgroundColor) }},
	{"fillStyle", func(e *Element) any { return e.FillStyle }, func(e *Element, v json.RawMessage) error { return json.Unmarshal(v, &e.FillStyle) }},
	{"strokeWidth", func(e *Element) any { return e.StrokeWidth }, func(e *Element, v json.RawMessage) error { return json.Unmarshal(v, &e.StrokeWidth) }},
	{"strokeStyle", func(e *Element) any { return e.StrokeStyle }, func(e *Element, v json.RawMessage) error { return json.Unmarshal(v, &e.StrokeStyle) }},
	{"roughness", func(e *Element) any { return e.Roughness }, func(e *Element, v json.RawMessage) error { return json.Unmarshal(v, &e.Roughness) }},
	{"opacity", func(e *Element) any { return e.Opacity }, func(e *Element, v json.RawMessage) error { return json.Unmarshal(v, &e.Opacity) }},
	{"isDeleted", func(e *Element) any { return e.IsDeleted }, func(e *Element, v json.RawMessage) error { return json.Unmarshal(v, &e.IsDeleted) }},
	{"groupIds", func(e *Element) any {
		if e.GroupIDs == nil {
			return []string{}
		}
		return e.GroupIDs
	}, func(e *Element, v json.RawMessage) error { return json.Unmarshal(v, &e.GroupIDs) }},
	{"boundElements", func(e *Element) any { return e.BoundElements }, func(e *Element, v json.RawMessage) error { return json.Unmarshal(v, &e.BoundElements) }},
	{"locked", func(e *Element) any { return e.Locked }, func(e *Element, v json.RawMessage) error { return json.Unmarshal(v, &e.Locked) }},
	{"updated", func(e *Element) any { return e.Updated }, func(e *Element, v json.RawMessage) error { return decodeInteger(v, &e.Updated) }},
	{"link", func(e *Element) any { return e.Link }, func(e *Element, v json.RawMessage) error { return json.Unmarshal(v, &e.Link) }},
}

var textFields = []field{
	{"text", func(e *Element) any { return e.Text.Content }, func(e *Element, v json.RawMessage) error { return json.Unmarshal(v, &e.Text.Content) }},
	{"fontSize", func(e *Element) any { return e.Text.FontSize }, func(e *Element, v json.RawMessage) error { return json.Unmarshal(v, &e.Text.FontSize) }},
	{"fontFamily", func(e *Element) any { return e.Text.FontFamily }, func(e *Element, v json.RawMessage) error { return decodeInteger(v, &e.Text.FontFamily) }},
	{"textAlign", func(e *Element) any { return e.Text.TextAlign }, func(e *Element, v json.RawMessage) error { return json.Unmarshal(v, &e.Text.TextAlign) }},
	{"verticalAlign", func(e *Element) any { return e.Text.VerticalAlign }, func(e *Element, v json.RawMessage) error { return json.Unmarshal(v, &e.Text.VerticalAlign) }},
	{"baseline", func(e *Element) any { return e.Text.Baseline }, func(e *Element, v json.RawMessage) error { return json.Unmarshal(v, &e.Text.Baseline) }},
	{"containerId", func(e *Element) any {
		if e.Text.ContainerID == "" {
			return nil
		}
		return e.Text.ContainerID
	}, func(e *Element, v json.RawMessage) error { return json.Unmarshal(v, &e.Text.ContainerID) }},
	{"originalText", func(e *Element) any { return e.Text.OriginalText }, func(e *Element, v json.RawMessage) error { return json.Unmarshal(v, &e.Text.OriginalText) }},
}

var linearFields = []field{
	{"points", func(e *Element) any {
		if e.Arrow.Points == nil {
			return []Point{}
		}
		return e.Arrow.Points
	}, func(e *Element, v json.RawMessage) error { return json.Unmarshal(v, &e.Arrow.Points) }},
	{"lastCommittedPoint", func(e *Element) any { return e.Arrow.LastCommittedPoint }, func(e *Element, v json.RawMessage) error { return json.Unmarshal(v, &e.Arrow.LastCommittedPoint) }},
	{"startBinding", func(e *Element) any { return e.Arrow.StartBinding }, func(e *Element, v json.RawMessage) error { return json.Unmarshal(v, &e.Arrow.StartBinding) }},
	{"endBinding", func(e *Element) any { return e.Arrow.EndBinding }, func(e *Element, v json.RawMessage) error { return json.Unmarshal(v, &e.Arrow.EndBinding) }},
	{"startArrowhead", func(e *Element) any { return e.Arrow.StartArrowhead }, func(e *Element, v json.RawMessage) error { return json.Unmarshal(v, &e.Arrow.StartArrowhead) }},
	{"endArrowhead", func(e *Element) any { return e.Arrow.EndArrowhead }, func(e *Element, v json.RawMessage) error { return json.Unmarshal(v, &e.Arrow.EndArrowhead) }},
}

var arrowLabelFields = []field{
	{"text", func(e *Element) any { return e.Arrow.Label.Text }, func(e *Element, v json.RawMessage) error { return json.Unmarshal(v, &e.Arrow.Label.Text) }},
	{"fontSize", func(e *Element) any { return e.Arrow.Label.FontSize }, func(e *Element, v json.RawMessage) error { return json.Unmarshal(v, &e.Arrow.Label.FontSize) }},
	{"fontFamily", func(e *Element) any { return e.Arrow.Label.FontFamily }, func(e *Element, v json.RawMessage) error { return decodeInteger(v, &e.Arrow.Label.FontFamily) }},
	{"textAlign", func(e *Element) any { return e.Arrow.Label.TextAlign }, func(e *Element, v json.RawMessage) error { return json.Unmarshal(v, &e.Arrow.Label.TextAlign) }},
}

// fields lists the wire keys the model owns for e's variant.
func (e *Element) fields() []field {
	out := commonFields
	switch {
	case e.Text != nil:
		out = append(out[:len(out):len(out)], textFields...)
	case e.Arrow != nil:
		out = append(out[:len(out):len(out)], linearFields...)
		if e.Arrow.Label != nil {
			out = append(out, arrowLabelFields...)
		}
	}
	return out
}

// UnmarshalJSON decodes the flat wire record into base fields plus the payload
// selected by "type". Decoding is lenient: a value of an unexpected JSON type
// leaves the model field at its zero value and is written back unchanged.
// Unknown keys are retained in Extra.
func (e *Element) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode element: %w", err)
	}

	*e = Element{}
	if v, ok := raw["type"]; ok {
		_ = json.Unmarshal(v, &e.Type)
	}
	switch {
	case e.Type == TypeText:
		e.Text = &TextPayload{}
	case e.Type.IsLinear():
		e.Arrow = &ArrowPayload{}
		if _, ok := raw["text"]; ok {
			e.Arrow.Label = &ArrowLabel{}
		}
	}

	fields := e.fields()
	known := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		known[f.key] = struct{}{}
		if v, ok := raw[f.key]; ok {
			_ = f.set(e, v)
		}
	}

	src := &origin{raw: raw, canon: make(map[string]string, len(fields))}
	for _, f := range fields {
		enc, err := json.Marshal(f.get(e))
		if err != nil {
			return fmt.Errorf("decode element %q: %w", e.ID, err)
		}
		src.canon[f.key] = string(enc)
	}
	e.src = src

	for k, v := range raw {
		if _, ok := known[k]; ok {
			continue
		}
		if e.Extra == nil {
			e.Extra = make(map[string]json.RawMessage)
		}
		e.Extra[k] = v
	}
	return nil
}

// MarshalJSON encodes the element back into the flat wire record.
// Keys are emitted in sorted order, so equal elements encode identically.
// Elements built in code emit every key of their variant.
func (e Element) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(e.Extra)+32)
	for k, v := range e.Extra {
		out[k] = v
	}

	for _, f := range e.fields() {
		enc, err := json.Marshal(f.get(&e))
		if err != nil {
			return nil, fmt.Errorf("encode element %q: %s: %w", e.ID, f.key, err)
		}
		if e.src != nil {
			if was, ok := e.src.canon[f.key]; ok && was == string(enc) {
				if v, present := e.src.raw[f.key]; present {
					out[f.key] = v
				}
				continue
			}
		}
		out[f.key] = enc
	}

	return json.Marshal(out)
}

// decodeInteger accepts any JSON number, including ones written with a
// fraction or exponent.
func decodeInteger[T int | int64](v json.RawMessage, dst *T) error {
	var f float64
	if err := json.Unmarshal(v, &f); err != nil {
		return err
	}
	*dst = T(f)
	return nil
}
