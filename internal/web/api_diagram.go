package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/haasonsaas/whiteboard/internal/canvas"
	"github.com/haasonsaas/whiteboard/internal/diagram"
	"github.com/haasonsaas/whiteboard/internal/snapshot"
)

// apiCreateShapes handles POST /sessions/{token}/shapes.
func (h *Handler) apiCreateShapes(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Shapes json.RawMessage `json:"shapes"`
	}
	if err := h.decodeBody(w, r, &req, false); err != nil {
		h.writeError(w, r, err, "Failed to create shapes")
		return
	}
	var specs []diagram.ShapeSpec
	if err := decodeArray(req.Shapes, &specs, "Shapes must be an array"); err != nil {
		h.writeError(w, r, err, "Failed to create shapes")
		return
	}

	var built diagram.ShapeResult
	_, err := h.manager().Update(r.Context(), chi.URLParam(r, "token"), canvas.MessageMerge, func(scene *canvas.Scene) error {
		built = h.config.Builder.Shapes(scene, specs)
		return nil
	})
	if err != nil {
		h.writeError(w, r, err, "Failed to create shapes")
		return
	}

	metrics := h.manager().Metrics()
	metrics.RecordBuilt("shape", len(built.Primaries))
	metrics.RecordBuilt("text", len(built.Labels))

	h.jsonResponse(w, apiShapesResponse{
		Success: true,
		Shapes:  nonNil(built.Primaries),
		Message: fmt.Sprintf("Created %d shape(s)", len(built.Primaries)),
	})
}

// apiCreateArrows handles POST /sessions/{token}/arrows.
func (h *Handler) apiCreateArrows(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Arrows json.RawMessage `json:"arrows"`
	}
	if err := h.decodeBody(w, r, &req, false); err != nil {
		h.writeError(w, r, err, "Failed to create arrows")
		return
	}
	var specs []diagram.ArrowSpec
	if err := decodeArray(req.Arrows, &specs, "Arrows must be an array"); err != nil {
		h.writeError(w, r, err, "Failed to create arrows")
		return
	}

	var arrows []canvas.Element
	_, err := h.manager().Update(r.Context(), chi.URLParam(r, "token"), canvas.MessageMerge, func(scene *canvas.Scene) error {
		arrows = h.config.Builder.Arrows(scene, specs)
		return nil
	})
	if err != nil {
		h.writeError(w, r, err, "Failed to create arrows")
		return
	}

	h.manager().Metrics().RecordBuilt("arrow", len(arrows))
	h.jsonResponse(w, apiArrowsResponse{
		Success: true,
		Arrows:  nonNil(arrows),
		Message: fmt.Sprintf("Created %d arrow(s)", len(arrows)),
	})
}

// apiCreateDiagram handles POST /sessions/{token}/diagram.
func (h *Handler) apiCreateDiagram(w http.ResponseWriter, r *http.Request) {
	var req apiDiagramRequest
	if err := h.decodeBody(w, r, &req, false); err != nil {
		h.writeError(w, r, err, "Failed to create diagram")
		return
	}

	var spec diagram.Spec
	if err := decodeArray(req.Nodes, &spec.Nodes, "Nodes must be an array"); err != nil {
		h.writeError(w, r, err, "Failed to create diagram")
		return
	}
	// Connections are optional; anything but an array means none.
	if trimmed := bytes.TrimSpace(req.Connections); len(trimmed) > 0 && trimmed[0] == '[' {
		if err := decodeArray(trimmed, &spec.Connections, "Connections must be an array"); err != nil {
			h.writeError(w, r, err, "Failed to create diagram")
			return
		}
	}
	var layout string
	if len(req.Layout) > 0 {
		_ = json.Unmarshal(req.Layout, &layout)
	}
	spec.Layout = diagram.NormalizeLayout(diagram.Layout(layout))

	var result diagram.Result
	_, err := h.manager().Update(r.Context(), chi.URLParam(r, "token"), canvas.MessageMerge, func(scene *canvas.Scene) error {
		result = h.config.Builder.Compose(scene, spec)
		return nil
	})
	if err != nil {
		h.writeError(w, r, err, "Failed to create diagram")
		return
	}

	metrics := h.manager().Metrics()
	metrics.RecordBuilt("shape", len(result.Shapes))
	metrics.RecordBuilt("text", len(result.Labels))
	metrics.RecordBuilt("arrow", len(result.Arrows))
	metrics.RecordDroppedConnections(len(result.Dropped))

	h.jsonResponse(w, apiDiagramResponse{
		Success:            true,
		NodesCreated:       len(result.Shapes),
		ConnectionsCreated: len(result.Arrows),
		Message: fmt.Sprintf("Created diagram with %d node(s) and %d connection(s)",
			len(result.Shapes), len(result.Arrows)),
	})
}

// apiSnapshot handles GET /sessions/{token}/snapshot.
func (h *Handler) apiSnapshot(w http.ResponseWriter, r *http.Request) {
	session, err := h.manager().Resolve(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		h.writeError(w, r, err, "Failed to generate snapshot")
		return
	}

	elements := nonNil(session.Elements)
	report := snapshot.Describe(elements)
	h.jsonResponse(w, apiSnapshotResponse{
		SessionID:    session.ID,
		SessionName:  sessionNameJSON(session.Name),
		Description:  report.Description,
		ElementCount: len(elements),
		Connections:  report.Connections,
		Elements:     elements,
	})
}
