package web

import (
	"encoding/json"
	"time"

	"github.com/haasonsaas/whiteboard/internal/canvas"
	"github.com/haasonsaas/whiteboard/internal/snapshot"
)

// sessionNameJSON renders an unnamed session as null.
func sessionNameJSON(name string) *string {
	if name == "" {
		return nil
	}
	return &name
}

// apiCreateSessionRequest is the body of POST /sessions.
type apiCreateSessionRequest struct {
	Name string `json:"name"`
}

// apiCreateSessionResponse is the typed response for POST /sessions.
type apiCreateSessionResponse struct {
	ID        string    `json:"id"`
	Name      *string   `json:"name"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"createdAt"`
}

// apiSessionSummary is one entry of GET /sessions.
type apiSessionSummary struct {
	ID        string    `json:"id"`
	Name      *string   `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// apiSessionResponse is the typed response for GET /sessions/{token}.
type apiSessionResponse struct {
	ID        string           `json:"id"`
	Name      *string          `json:"name"`
	Elements  []canvas.Element `json:"elements"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// apiElementsResponse is the typed response for GET /sessions/{token}/elements.
type apiElementsResponse struct {
	Elements    []canvas.Element `json:"elements"`
	SessionID   string           `json:"sessionId"`
	SessionName *string          `json:"sessionName"`
}

// apiWriteResponse is returned by element merges and replaces.
type apiWriteResponse struct {
	Success  bool             `json:"success"`
	Elements []canvas.Element `json:"elements"`
}

// apiShapesResponse is the typed response for POST /sessions/{token}/shapes.
type apiShapesResponse struct {
	Success bool             `json:"success"`
	Shapes  []canvas.Element `json:"shapes"`
	Message string           `json:"message"`
}

// apiArrowsResponse is the typed response for POST /sessions/{token}/arrows.
type apiArrowsResponse struct {
	Success bool             `json:"success"`
	Arrows  []canvas.Element `json:"arrows"`
	Message string           `json:"message"`
}

// apiDiagramRequest is the body of POST /sessions/{token}/diagram. Fields
// stay raw so type mismatches can be reported per field.
type apiDiagramRequest struct {
	Nodes       json.RawMessage `json:"nodes"`
	Connections json.RawMessage `json:"connections"`
	Layout      json.RawMessage `json:"layout"`
}

// apiDiagramResponse is the typed response for POST /sessions/{token}/diagram.
type apiDiagramResponse struct {
	Success            bool   `json:"success"`
	NodesCreated       int    `json:"nodesCreated"`
	ConnectionsCreated int    `json:"connectionsCreated"`
	Message            string `json:"message"`
}

// apiSnapshotResponse is the typed response for GET /sessions/{token}/snapshot.
type apiSnapshotResponse struct {
	SessionID    string           `json:"sessionId"`
	SessionName  *string          `json:"sessionName"`
	Description  string           `json:"description"`
	ElementCount int              `json:"elementCount"`
	Connections  []snapshot.Link  `json:"connections"`
	Elements     []canvas.Element `json:"elements"`
}

// apiDeleteResponse is the typed response for DELETE /sessions/{token}.
type apiDeleteResponse struct {
	Success bool `json:"success"`
}
