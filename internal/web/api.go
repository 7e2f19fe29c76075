package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/haasonsaas/whiteboard/internal/canvas"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 10 << 20

// validationError is a client mistake reported verbatim with status 400.
type validationError struct {
	message string
}

func (e *validationError) Error() string {
	return e.message
}

func invalid(format string, args ...any) error {
	return &validationError{message: fmt.Sprintf(format, args...)}
}

// apiCreateSession handles POST /sessions.
func (h *Handler) apiCreateSession(w http.ResponseWriter, r *http.Request) {
	var req apiCreateSessionRequest
	if err := h.decodeBody(w, r, &req, true); err != nil {
		h.writeError(w, r, err, "Failed to create session")
		return
	}

	session, err := h.manager().CreateSession(r.Context(), req.Name)
	if err != nil {
		h.writeError(w, r, err, "Failed to create session")
		return
	}
	h.jsonResponse(w, apiCreateSessionResponse{
		ID:        session.ID,
		Name:      sessionNameJSON(session.Name),
		URL:       "/canvas/" + session.ID,
		CreatedAt: session.CreatedAt,
	})
}

// apiListSessions handles GET /sessions.
func (h *Handler) apiListSessions(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", canvas.DefaultListLimit)
	sessions, err := h.manager().ListSessions(r.Context(), limit)
	if err != nil {
		h.writeError(w, r, err, "Failed to fetch sessions")
		return
	}

	out := make([]apiSessionSummary, 0, len(sessions))
	for _, session := range sessions {
		out = append(out, apiSessionSummary{
			ID:        session.ID,
			Name:      sessionNameJSON(session.Name),
			CreatedAt: session.CreatedAt,
			UpdatedAt: session.UpdatedAt,
		})
	}
	h.jsonResponse(w, out)
}

// apiGetSession handles GET /sessions/{token}.
func (h *Handler) apiGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.manager().Resolve(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		h.writeError(w, r, err, "Failed to fetch session")
		return
	}
	h.jsonResponse(w, apiSessionResponse{
		ID:        session.ID,
		Name:      sessionNameJSON(session.Name),
		Elements:  nonNil(session.Elements),
		CreatedAt: session.CreatedAt,
		UpdatedAt: session.UpdatedAt,
	})
}

// apiDeleteSession handles DELETE /sessions/{token}.
func (h *Handler) apiDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.manager().DeleteSession(r.Context(), chi.URLParam(r, "token")); err != nil {
		h.writeError(w, r, err, "Failed to delete session")
		return
	}
	h.jsonResponse(w, apiDeleteResponse{Success: true})
}

// apiGetElements handles GET /sessions/{token}/elements.
func (h *Handler) apiGetElements(w http.ResponseWriter, r *http.Request) {
	session, err := h.manager().Resolve(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		h.writeError(w, r, err, "Failed to fetch elements")
		return
	}
	h.jsonResponse(w, apiElementsResponse{
		Elements:    nonNil(session.Elements),
		SessionID:   session.ID,
		SessionName: sessionNameJSON(session.Name),
	})
}

// apiMergeElements handles POST /sessions/{token}/elements.
func (h *Handler) apiMergeElements(w http.ResponseWriter, r *http.Request) {
	elements, err := h.decodeElements(w, r)
	if err != nil {
		h.writeError(w, r, err, "Failed to update elements")
		return
	}
	session, err := h.manager().Merge(r.Context(), chi.URLParam(r, "token"), elements)
	if err != nil {
		h.writeError(w, r, err, "Failed to update elements")
		return
	}
	h.jsonResponse(w, apiWriteResponse{Success: true, Elements: nonNil(session.Elements)})
}

// apiReplaceElements handles PUT /sessions/{token}/elements.
func (h *Handler) apiReplaceElements(w http.ResponseWriter, r *http.Request) {
	elements, err := h.decodeElements(w, r)
	if err != nil {
		h.writeError(w, r, err, "Failed to replace elements")
		return
	}
	session, err := h.manager().Replace(r.Context(), chi.URLParam(r, "token"), elements)
	if err != nil {
		h.writeError(w, r, err, "Failed to replace elements")
		return
	}
	h.jsonResponse(w, apiWriteResponse{Success: true, Elements: nonNil(session.Elements)})
}

func (h *Handler) decodeElements(w http.ResponseWriter, r *http.Request) ([]canvas.Element, error) {
	var req struct {
		Elements json.RawMessage `json:"elements"`
	}
	if err := h.decodeBody(w, r, &req, false); err != nil {
		return nil, err
	}
	var elements []canvas.Element
	if err := decodeArray(req.Elements, &elements, "Elements must be an array"); err != nil {
		return nil, err
	}
	return elements, nil
}

// decodeBody reads a JSON object from the request. An empty body decodes
// to the zero value when allowEmpty is set.
func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return invalid("Request body too large")
		}
		return err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		if allowEmpty {
			return nil
		}
		return invalid("Request body is required")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return invalid("Invalid JSON body")
	}
	return nil
}

// decodeArray decodes raw into dst, which must point to a slice. A missing
// or non-array value is reported with notArray.
func decodeArray(raw json.RawMessage, dst any, notArray string) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return invalid("%s", notArray)
	}
	if err := json.Unmarshal(trimmed, dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return invalid("Invalid value for %s", typeErr.Field)
		}
		return invalid("Invalid array item: %v", err)
	}
	return nil
}

// writeError maps err to a status code. Unexpected errors are logged and
// reported with the generic fallback message.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var verr *validationError
	switch {
	case errors.As(err, &verr):
		h.jsonError(w, verr.message, http.StatusBadRequest)
	case errors.Is(err, canvas.ErrNotFound):
		h.jsonError(w, "Session not found", http.StatusNotFound)
	case errors.Is(err, canvas.ErrAlreadyExists):
		h.jsonError(w, "A session with this name already exists", http.StatusConflict)
	case errors.Is(err, canvas.ErrLockTimeout):
		h.jsonError(w, "Session is busy, try again", http.StatusServiceUnavailable)
	default:
		h.config.Logger.Error(fallback, "method", r.Method, "path", r.URL.Path, "error", err)
		h.jsonError(w, fallback, http.StatusInternalServerError)
	}
}

// jsonResponse writes a JSON response.
func (h *Handler) jsonResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.config.Logger.Error("json encode error", "error", err)
	}
}

// jsonError writes a JSON error response.
func (h *Handler) jsonError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// parseIntParam reads a positive integer query parameter.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return defaultVal
	}
	return v
}

func nonNil(elements []canvas.Element) []canvas.Element {
	if elements == nil {
		return []canvas.Element{}
	}
	return elements
}
