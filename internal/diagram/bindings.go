package diagram

import (
	"github.com/haasonsaas/whiteboard/internal/canvas"
)

// AttachArrows adds an {arrow id, "arrow"} back-reference to every element in
// scene that one of arrows binds to. Prior references are kept, an arrow
// bound twice to the same element is recorded once, and ids missing from
// scene are skipped. It returns the number of references added.
func AttachArrows(scene *canvas.Scene, arrows []canvas.Element) int {
	added := 0
	for _, arrow := range arrows {
		if arrow.Arrow == nil {
			continue
		}
		for _, binding := range []*canvas.Binding{arrow.Arrow.StartBinding, arrow.Arrow.EndBinding} {
			if binding == nil || binding.ElementID == "" {
				continue
			}
			target, ok := scene.Get(binding.ElementID)
			if !ok {
				continue
			}
			if target.AddBoundElement(arrow.ID, string(canvas.TypeArrow)) {
				added++
			}
		}
	}
	return added
}
