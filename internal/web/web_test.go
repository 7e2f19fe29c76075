package web

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/haasonsaas/whiteboard/internal/canvas"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, mutate ...func(*Config)) (*httptest.Server, *canvas.Manager) {
	t.Helper()
	manager := canvas.NewManager(canvas.NewMemoryStore(), testLogger())
	manager.SetMetrics(canvas.NewMetrics())
	cfg := &Config{
		Manager:     manager,
		CORSOrigins: []string{"*"},
		Logger:      testLogger(),
	}
	for _, fn := range mutate {
		fn(cfg)
	}
	handler, err := NewHandler(cfg)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server, manager
}

// doJSON sends body (a string or a value to encode) and decodes the JSON
// response into out when out is non-nil.
func doJSON(t *testing.T, server *httptest.Server, method, path string, body any, out any) int {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("encode body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func TestScenarioShapesArrowSnapshot(t *testing.T) {
	server, _ := newTestServer(t)

	var created apiCreateSessionResponse
	if code := doJSON(t, server, "POST", "/api/sessions", `{"name":"demo"}`, &created); code != http.StatusOK {
		t.Fatalf("create session status = %d", code)
	}

	var shapes apiShapesResponse
	code := doJSON(t, server, "POST", "/api/sessions/demo/shapes", map[string]any{
		"shapes": []map[string]any{
			{"type": "rectangle", "label": "A", "x": 100, "y": 100},
			{"type": "rectangle", "label": "B", "x": 400, "y": 100},
		},
	}, &shapes)
	if code != http.StatusOK || len(shapes.Shapes) != 2 {
		t.Fatalf("create shapes status = %d, shapes = %d", code, len(shapes.Shapes))
	}
	if shapes.Message != "Created 2 shape(s)" {
		t.Errorf("message = %q", shapes.Message)
	}
	a, b := shapes.Shapes[0].ID, shapes.Shapes[1].ID

	var arrows apiArrowsResponse
	code = doJSON(t, server, "POST", "/api/sessions/"+created.ID+"/arrows", map[string]any{
		"arrows": []map[string]any{{
			"startX": 250, "startY": 150, "endX": 400, "endY": 150,
			"startElementId": a, "endElementId": b,
		}},
	}, &arrows)
	if code != http.StatusOK || arrows.Message != "Created 1 arrow(s)" {
		t.Fatalf("create arrows status = %d, message = %q", code, arrows.Message)
	}

	var snap apiSnapshotResponse
	if code := doJSON(t, server, "GET", "/api/sessions/demo/snapshot", nil, &snap); code != http.StatusOK {
		t.Fatalf("snapshot status = %d", code)
	}
	if snap.ElementCount != 5 {
		t.Errorf("elementCount = %d, want 5", snap.ElementCount)
	}
	if len(snap.Connections) != 1 || snap.Connections[0].Source != a[:8] ||
		len(snap.Connections[0].Targets) != 1 || snap.Connections[0].Targets[0] != b[:8] {
		t.Errorf("unexpected connections %+v", snap.Connections)
	}
	if !strings.Contains(snap.Description, "Connections (1):") {
		t.Errorf("description missing the arrow:\n%s", snap.Description)
	}
	if snap.SessionName == nil || *snap.SessionName != "demo" {
		t.Errorf("sessionName = %v", snap.SessionName)
	}

	// Both shapes carry the arrow back-reference.
	var elements apiElementsResponse
	doJSON(t, server, "GET", "/api/sessions/demo/elements", nil, &elements)
	for _, el := range elements.Elements {
		if el.ID == a || el.ID == b {
			if !el.HasBoundElement(arrows.Arrows[0].ID, "arrow") {
				t.Errorf("shape %s missing arrow ref: %+v", el.ID, el.BoundElements)
			}
		}
	}
}

func TestScenarioDuplicateName(t *testing.T) {
	server, _ := newTestServer(t)

	if code := doJSON(t, server, "POST", "/api/sessions", `{"name":"demo"}`, nil); code != http.StatusOK {
		t.Fatalf("first create status = %d", code)
	}
	var errResp map[string]string
	if code := doJSON(t, server, "POST", "/api/sessions", `{"name":"demo"}`, &errResp); code != http.StatusConflict {
		t.Fatalf("second create status = %d, want 409", code)
	}
	if errResp["error"] != "A session with this name already exists" {
		t.Errorf("error = %q", errResp["error"])
	}

	var list []apiSessionSummary
	doJSON(t, server, "GET", "/api/sessions", nil, &list)
	named := 0
	for _, s := range list {
		if s.Name != nil && *s.Name == "demo" {
			named++
		}
	}
	if len(list) != 1 || named != 1 {
		t.Fatalf("expected exactly one session named demo, got %+v", list)
	}
}

func TestScenarioDiagramDropsUnknownConnection(t *testing.T) {
	server, _ := newTestServer(t)
	doJSON(t, server, "POST", "/api/sessions", `{"name":"flow"}`, nil)

	var resp apiDiagramResponse
	code := doJSON(t, server, "POST", "/api/sessions/flow/diagram", map[string]any{
		"nodes":       []map[string]any{{"label": "A"}, {"label": "B"}, {"label": "C"}},
		"connections": []map[string]any{{"from": "A", "to": "Z"}},
	}, &resp)
	if code != http.StatusOK {
		t.Fatalf("diagram status = %d", code)
	}
	if resp.NodesCreated != 3 || resp.ConnectionsCreated != 0 {
		t.Fatalf("unexpected counts %+v", resp)
	}
	if resp.Message != "Created diagram with 3 node(s) and 0 connection(s)" {
		t.Errorf("message = %q", resp.Message)
	}

	var elements apiElementsResponse
	doJSON(t, server, "GET", "/api/sessions/flow/elements", nil, &elements)
	if len(elements.Elements) != 6 {
		t.Fatalf("expected 3 shapes and 3 labels, got %d elements", len(elements.Elements))
	}
	for _, el := range elements.Elements {
		if el.Type == canvas.TypeArrow {
			t.Fatalf("no arrow may be added")
		}
	}
}

func TestNewHandlerRequiresManager(t *testing.T) {
	if _, err := NewHandler(&Config{}); err == nil {
		t.Fatal("expected error without a manager")
	}
	if _, err := NewHandler(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestHealthzAndMetrics(t *testing.T) {
	server, _ := newTestServer(t, func(cfg *Config) {
		cfg.MetricsHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("# metrics\n"))
		})
	})

	var health map[string]string
	if code := doJSON(t, server, "GET", "/healthz", nil, &health); code != http.StatusOK || health["status"] != "ok" {
		t.Fatalf("healthz = %d %v", code, health)
	}

	resp, err := server.Client().Get(server.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "# metrics\n" {
		t.Fatalf("unexpected metrics body %q", body)
	}
}

func TestCustomBasePath(t *testing.T) {
	server, _ := newTestServer(t, func(cfg *Config) { cfg.BasePath = "/v2/" })

	if code := doJSON(t, server, "POST", "/v2/sessions", `{}`, nil); code != http.StatusOK {
		t.Fatalf("create under custom base = %d", code)
	}
	var errResp map[string]string
	if code := doJSON(t, server, "GET", "/api/sessions", nil, &errResp); code != http.StatusNotFound {
		t.Fatalf("default base should not be served, got %d", code)
	}
	if errResp["error"] != "Not found" {
		t.Errorf("expected JSON not found body, got %v", errResp)
	}
}

func TestRootBasePath(t *testing.T) {
	server, _ := newTestServer(t, func(cfg *Config) { cfg.BasePath = "/" })

	if code := doJSON(t, server, "GET", "/sessions", nil, nil); code != http.StatusOK {
		t.Fatalf("list under root base = %d", code)
	}
}
