package diagram

import (
	"math"

	"github.com/haasonsaas/whiteboard/internal/canvas"
)

// Layout selects how nodes without explicit coordinates are placed.
type Layout string

const (
	LayoutHorizontal Layout = "horizontal"
	LayoutVertical   Layout = "vertical"
	LayoutGrid       Layout = "grid"
)

// Auto-layout constants.
const (
	LayoutSpacing = 250.0
	LayoutStartX  = 100.0
	LayoutStartY  = 200.0
	nodeWidth     = 150.0
	nodeHeight    = 100.0
	nodeStroke    = 2.0
)

// Node is one diagram node. ID is optional and only used for lookup when it
// collides with an existing element id.
type Node struct {
	ID    string   `json:"id,omitempty"`
	Label string   `json:"label"`
	Type  string   `json:"type,omitempty"`
	X     *float64 `json:"x,omitempty"`
	Y     *float64 `json:"y,omitempty"`
	Color string   `json:"color,omitempty"`
}

// Connection links two nodes by label or explicit id.
type Connection struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Label string `json:"label,omitempty"`
}

// Spec is a whole diagram request.
type Spec struct {
	Nodes       []Node       `json:"nodes"`
	Connections []Connection `json:"connections,omitempty"`
	Layout      Layout       `json:"layout,omitempty"`
}

// Result reports what Compose created.
type Result struct {
	Shapes  []canvas.Element
	Labels  []canvas.Element
	Arrows  []canvas.Element
	Dropped []Connection
}

// NormalizeLayout maps empty or unknown values to horizontal.
func NormalizeLayout(layout Layout) Layout {
	switch layout {
	case LayoutVertical, LayoutGrid:
		return layout
	default:
		return LayoutHorizontal
	}
}

// Position returns the auto-layout coordinates of node index out of count.
func Position(layout Layout, index, count int) (float64, float64) {
	switch NormalizeLayout(layout) {
	case LayoutVertical:
		return LayoutStartX, LayoutStartY + float64(index)*LayoutSpacing
	case LayoutGrid:
		cols := int(math.Ceil(math.Sqrt(float64(count))))
		if cols < 1 {
			cols = 1
		}
		return LayoutStartX + float64(index%cols)*LayoutSpacing,
			LayoutStartY + float64(index/cols)*LayoutSpacing
	default:
		return LayoutStartX + float64(index)*LayoutSpacing, LayoutStartY
	}
}

// Compose lays out nodes, labels them, connects them and appends everything
// to scene as shapes, then label texts, then arrows. Connections whose
// endpoints do not resolve are dropped and reported in Result.Dropped.
func (b *Builder) Compose(scene *canvas.Scene, spec Spec) Result {
	ids := b.allocator(scene)
	updated := b.updated()
	layout := NormalizeLayout(spec.Layout)

	result := Result{Shapes: make([]canvas.Element, 0, len(spec.Nodes))}
	lookup := make(map[string]int, len(spec.Nodes)*2)

	for i, node := range spec.Nodes {
		x, y := Position(layout, i, len(spec.Nodes))
		// Auto-layout applies when either coordinate is missing.
		if node.X != nil && node.Y != nil {
			x, y = *node.X, *node.Y
		}

		id := node.ID
		if id == "" || ids.taken(id) {
			id = ids.fresh()
		} else {
			ids.reserve(id)
		}

		shape := baseElement(id, nodeType(node.Type), updated)
		shape.X = x
		shape.Y = y
		shape.Width = nodeWidth
		shape.Height = nodeHeight
		shape.StrokeWidth = nodeStroke
		shape.BackgroundColor = orString(node.Color, DefaultBackgroundColor)
		shape.BoundElements = []canvas.BoundElement{}

		if node.Label != "" {
			label := labelFor(ids.fresh(), shape, node.Label, updated)
			shape.AddBoundElement(label.ID, string(canvas.TypeText))
			result.Labels = append(result.Labels, label)
			lookup[node.Label] = i
		}
		if node.ID != "" {
			lookup[node.ID] = i
		}
		result.Shapes = append(result.Shapes, shape)
	}

	for _, conn := range spec.Connections {
		from, okFrom := lookup[conn.From]
		to, okTo := lookup[conn.To]
		if !okFrom || !okTo {
			b.logger.Warn("could not find nodes for connection", "from", conn.From, "to", conn.To)
			result.Dropped = append(result.Dropped, conn)
			continue
		}
		src := &result.Shapes[from]
		dst := &result.Shapes[to]

		arrow := connector(ids.fresh(),
			src.X+src.Width, src.Y+src.Height/2,
			dst.X, dst.Y+dst.Height/2,
			updated)
		arrow.StrokeWidth = nodeStroke
		arrow.Arrow.StartBinding = &canvas.Binding{ElementID: src.ID, Focus: bindingFocus, Gap: bindingGap}
		arrow.Arrow.EndBinding = &canvas.Binding{ElementID: dst.ID, Focus: bindingFocus, Gap: bindingGap}
		arrow.Arrow.Label = arrowLabel(conn.Label)

		src.AddBoundElement(arrow.ID, string(canvas.TypeArrow))
		dst.AddBoundElement(arrow.ID, string(canvas.TypeArrow))
		result.Arrows = append(result.Arrows, arrow)
	}

	if scene != nil {
		scene.Merge(result.Shapes)
		scene.Merge(result.Labels)
		scene.Merge(result.Arrows)
	}
	return result
}

func nodeType(kind string) canvas.ElementType {
	if t := canvas.ElementType(kind); t.IsShape() {
		return t
	}
	return canvas.TypeRectangle
}
