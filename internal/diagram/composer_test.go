package diagram

import (
	"reflect"
	"testing"

	"github.com/haasonsaas/whiteboard/internal/canvas"
)

func TestPosition(t *testing.T) {
	tests := []struct {
		layout Layout
		index  int
		count  int
		wantX  float64
		wantY  float64
	}{
		{LayoutHorizontal, 0, 3, 100, 200},
		{LayoutHorizontal, 2, 3, 600, 200},
		{LayoutVertical, 2, 3, 100, 700},
		{LayoutGrid, 0, 5, 100, 200},
		{LayoutGrid, 2, 5, 600, 200},
		{LayoutGrid, 3, 5, 100, 450},
		{LayoutGrid, 4, 5, 350, 450},
		{LayoutGrid, 4, 4, 100, 450},
		{Layout("spiral"), 1, 3, 350, 200},
		{Layout(""), 1, 3, 350, 200},
	}
	for _, tt := range tests {
		x, y := Position(tt.layout, tt.index, tt.count)
		if x != tt.wantX || y != tt.wantY {
			t.Errorf("Position(%q, %d, %d) = (%v, %v), want (%v, %v)",
				tt.layout, tt.index, tt.count, x, y, tt.wantX, tt.wantY)
		}
	}
}

func TestComposeGridIsDeterministic(t *testing.T) {
	spec := Spec{Layout: LayoutGrid}
	for _, label := range []string{"a", "b", "c", "d", "e"} {
		spec.Nodes = append(spec.Nodes, Node{Label: label})
	}

	first := testBuilder().Compose(canvas.NewScene(nil), spec)
	second := testBuilder().Compose(canvas.NewScene(nil), spec)

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("compose is not deterministic")
	}
	// cols = ceil(sqrt(5)) = 3
	want := [][2]float64{{100, 200}, {350, 200}, {600, 200}, {100, 450}, {350, 450}}
	for i, shape := range first.Shapes {
		if shape.X != want[i][0] || shape.Y != want[i][1] {
			t.Fatalf("node %d at (%v,%v), want %v", i, shape.X, shape.Y, want[i])
		}
	}
}

func TestComposeConnectsNodes(t *testing.T) {
	scene := canvas.NewScene([]canvas.Element{{ID: "prior", Type: canvas.TypeRectangle}})
	result := testBuilder().Compose(scene, Spec{
		Nodes: []Node{
			{Label: "API"},
			{Label: "DB", ID: "db", Type: "ellipse", Color: "#a5d8ff"},
			{Label: "Cache", Type: "hexagon", X: ptr(900), Y: ptr(40)},
		},
		Connections: []Connection{
			{From: "API", To: "db", Label: "queries"},
			{From: "API", To: "Cache"},
		},
	})

	if len(result.Shapes) != 3 || len(result.Labels) != 3 || len(result.Arrows) != 2 {
		t.Fatalf("unexpected counts: %d shapes, %d labels, %d arrows",
			len(result.Shapes), len(result.Labels), len(result.Arrows))
	}
	if result.Shapes[1].ID != "db" || result.Shapes[1].Type != canvas.TypeEllipse {
		t.Fatalf("explicit id/type not honored: %+v", result.Shapes[1])
	}
	if result.Shapes[2].Type != canvas.TypeRectangle || result.Shapes[2].X != 900 {
		t.Fatalf("unknown type must fall back to rectangle at explicit position")
	}
	if result.Shapes[1].BackgroundColor != "#a5d8ff" || result.Shapes[0].StrokeWidth != 2 {
		t.Fatalf("unexpected node style")
	}

	api := result.Shapes[0]
	arrow := result.Arrows[0]
	if arrow.X != api.X+api.Width || arrow.Y != api.Y+api.Height/2 {
		t.Fatalf("arrow must start at source right-center")
	}
	db := result.Shapes[1]
	if arrow.X+arrow.Width != db.X || arrow.Y+arrow.Height != db.Y+db.Height/2 {
		t.Fatalf("arrow must end at target left-center")
	}
	if arrow.Arrow.Label == nil || arrow.Arrow.Label.Text != "queries" {
		t.Fatalf("expected connection label")
	}

	stored, _ := scene.Get(api.ID)
	if !stored.HasBoundElement(result.Arrows[0].ID, "arrow") || !stored.HasBoundElement(result.Arrows[1].ID, "arrow") {
		t.Fatalf("source shape missing arrow refs: %+v", stored.BoundElements)
	}

	elements := scene.Elements()
	if elements[0].ID != "prior" {
		t.Fatalf("prior elements must come first")
	}
	kinds := []canvas.ElementType{}
	for _, el := range elements[1:] {
		kinds = append(kinds, el.Type)
	}
	want := []canvas.ElementType{
		canvas.TypeRectangle, canvas.TypeEllipse, canvas.TypeRectangle,
		canvas.TypeText, canvas.TypeText, canvas.TypeText,
		canvas.TypeArrow, canvas.TypeArrow,
	}
	if !reflect.DeepEqual(kinds, want) {
		t.Fatalf("order = %v, want %v", kinds, want)
	}
}

func TestComposeDropsUnresolvedConnections(t *testing.T) {
	scene := canvas.NewScene(nil)
	result := testBuilder().Compose(scene, Spec{
		Nodes:       []Node{{Label: "A"}, {Label: "B"}, {Label: "C"}},
		Connections: []Connection{{From: "A", To: "Z"}},
	})

	if len(result.Shapes) != 3 || len(result.Arrows) != 0 {
		t.Fatalf("expected 3 nodes and 0 connections, got %d and %d", len(result.Shapes), len(result.Arrows))
	}
	if len(result.Dropped) != 1 || result.Dropped[0].To != "Z" {
		t.Fatalf("expected dropped connection to be reported")
	}
	for _, el := range scene.Elements() {
		if el.Type == canvas.TypeArrow {
			t.Fatalf("no arrow may be added")
		}
	}
}

func TestComposeExplicitIDCollision(t *testing.T) {
	scene := canvas.NewScene([]canvas.Element{{ID: "taken"}})
	result := testBuilder().Compose(scene, Spec{
		Nodes: []Node{
			{Label: "One", ID: "taken"},
			{Label: "Two", ID: "dup"},
			{Label: "Three", ID: "dup"},
		},
		Connections: []Connection{{From: "taken", To: "Two"}},
	})

	seen := map[string]bool{"taken": true}
	for _, shape := range result.Shapes {
		if seen[shape.ID] {
			t.Fatalf("duplicate id %q", shape.ID)
		}
		seen[shape.ID] = true
	}
	if result.Shapes[1].ID != "dup" || result.Shapes[2].ID == "dup" {
		t.Fatalf("first explicit id wins, later ones get fresh ids")
	}
	if len(result.Arrows) != 1 || result.Arrows[0].Arrow.StartBinding.ElementID != result.Shapes[0].ID {
		t.Fatalf("lookup under the explicit id must resolve to the renamed node")
	}
}
