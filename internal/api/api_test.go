package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/dotcommander/imaginator/internal/agent"
	"github.com/dotcommander/imaginator/internal/core"
	"github.com/dotcommander/imaginator/internal/storage"
	storyerrors "github.com/dotcommander/imaginator/pkg/imaginator/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *ErrorBody      `json:"error"`
}

type testServer struct {
	router *gin.Engine
	client *agent.MockClient
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	client := agent.NewMockClient()
	engine := core.New(agent.New(client), storage.NewMemoryStore(), core.WithProviderTimeout(time.Second))
	h := NewHandler(engine, WithExportWriter(storage.NewExportWriter(t.TempDir())))
	return &testServer{router: h.Router(), client: client}
}

func (s *testServer) do(t *testing.T, method, path, owner string, body any) (int, testResponse) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if owner != "" {
		req.Header.Set(ownerHeader, owner)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var resp testResponse
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("%s %s: invalid JSON body %q", method, path, rec.Body.String())
		}
	}
	return rec.Code, resp
}

func (s *testServer) createStory(t *testing.T, owner string) string {
	t.Helper()
	code, resp := s.do(t, http.MethodPost, "/api/stories", owner, map[string]string{"title": "Night Shift"})
	if code != http.StatusCreated {
		t.Fatalf("create story: status %d", code)
	}
	var snap core.Snapshot
	if err := json.Unmarshal(resp.Data, &snap); err != nil {
		t.Fatal(err)
	}
	return snap.StoryID
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("decoding %s: %v", raw, err)
	}
	return v
}

func TestOwnerHeaderRequired(t *testing.T) {
	s := newTestServer(t)
	code, resp := s.do(t, http.MethodGet, "/api/stories", "", nil)
	if code != http.StatusBadRequest || resp.Error == nil || resp.Error.Code != ErrorOwnerMissing {
		t.Errorf("status = %d, error = %+v", code, resp.Error)
	}
}

func TestGuidedFlowOverHTTP(t *testing.T) {
	s := newTestServer(t)
	id := s.createStory(t, "owner-1")
	base := "/api/stories/" + id

	code, resp := s.do(t, http.MethodPost, base+"/begin", "owner-1", map[string]string{"concept": "A detective hunts a killer"})
	if code != http.StatusOK {
		t.Fatalf("begin: status %d %+v", code, resp.Error)
	}
	snap := decode[core.Snapshot](t, resp.Data)
	if snap.State != core.StateAwaitingPremiseChoice || len(snap.Decision.Options) != 2 {
		t.Fatalf("unexpected begin snapshot %+v", snap)
	}

	code, resp = s.do(t, http.MethodPost, base+"/choose", "owner-1", map[string]string{"option_id": snap.Decision.Options[0].ID})
	if code != http.StatusOK {
		t.Fatalf("choose premise: status %d %+v", code, resp.Error)
	}
	snap = decode[core.Snapshot](t, resp.Data)
	if snap.Story.Premise.Trait != "Ambition" || snap.State != core.StateAwaitingCharacterChoice {
		t.Fatalf("unexpected premise snapshot %+v", snap)
	}

	code, resp = s.do(t, http.MethodPost, base+"/choose", "owner-1", map[string]string{"option_id": snap.Decision.Options[0].ID})
	if code != http.StatusOK {
		t.Fatalf("choose characters: status %d %+v", code, resp.Error)
	}
	snap = decode[core.Snapshot](t, resp.Data)
	if snap.State != core.StateResolved || len(snap.Story.Scenes) != 1 || len(snap.Story.Characters) != 2 {
		t.Fatalf("unexpected resolved snapshot %+v", snap)
	}

	code, resp = s.do(t, http.MethodPost, base+"/scenes", "owner-1", nil)
	if code != http.StatusOK {
		t.Fatalf("next scene: status %d %+v", code, resp.Error)
	}
	if snap = decode[core.Snapshot](t, resp.Data); len(snap.Story.Scenes) != 2 {
		t.Errorf("expected 2 scenes, got %d", len(snap.Story.Scenes))
	}

	code, resp = s.do(t, http.MethodGet, base+"/analysis", "owner-1", nil)
	if code != http.StatusOK {
		t.Fatalf("analysis: status %d", code)
	}
	if a := decode[core.Analysis](t, resp.Data); a.Degraded || a.StoryID != id {
		t.Errorf("unexpected analysis %+v", a)
	}

	code, resp = s.do(t, http.MethodPost, base+"/export", "owner-1", map[string]any{"format": "screenplay", "save": true})
	if code != http.StatusOK {
		t.Fatalf("export: status %d %+v", code, resp.Error)
	}
	single := decode[savedRendering](t, resp.Data)
	if !strings.HasPrefix(single.Text, "FADE IN:") || single.Path == "" {
		t.Errorf("unexpected export %+v", single)
	}

	code, resp = s.do(t, http.MethodPost, base+"/export", "owner-1", map[string]any{"formats": []string{"novel", "tv-series"}})
	if code != http.StatusOK {
		t.Fatalf("batch export: status %d %+v", code, resp.Error)
	}
	batch := decode[[]savedRendering](t, resp.Data)
	if len(batch) != 2 || batch[0].Format != "novel" || batch[1].Format != "tv_series" || batch[1].Path != "" {
		t.Errorf("unexpected batch %+v", batch)
	}

	_, resp = s.do(t, http.MethodGet, base+"/exports", "owner-1", nil)
	if paths := decode[[]string](t, resp.Data); len(paths) != 1 {
		t.Errorf("expected one saved export, got %v", paths)
	}

	_, resp = s.do(t, http.MethodGet, base+"/history", "owner-1", nil)
	if records := decode[[]map[string]any](t, resp.Data); len(records) != 3 {
		t.Errorf("expected 3 history records, got %d", len(records))
	}

	_, resp = s.do(t, http.MethodGet, "/api/stories", "owner-1", nil)
	if list := decode[[]map[string]any](t, resp.Data); len(list) != 1 {
		t.Errorf("expected one story in listing, got %d", len(list))
	}
}

func TestErrorMapping(t *testing.T) {
	s := newTestServer(t)
	id := s.createStory(t, "owner-1")
	base := "/api/stories/" + id

	tests := []struct {
		name     string
		method   string
		path     string
		owner    string
		body     any
		wantCode int
		wantErr  string
	}{
		{"choose before begin", http.MethodPost, base + "/choose", "owner-1", map[string]string{"option_id": "x"}, http.StatusConflict, ErrorInvalidTransition},
		{"blank concept", http.MethodPost, base + "/begin", "owner-1", map[string]string{"concept": "   "}, http.StatusBadRequest, ErrorValidation},
		{"missing concept", http.MethodPost, base + "/begin", "owner-1", map[string]string{}, http.StatusBadRequest, ErrorValidation},
		{"export without scenes", http.MethodPost, base + "/export", "owner-1", map[string]string{"format": "novel"}, http.StatusPreconditionFailed, ErrorPreconditionFailed},
		{"unknown format", http.MethodPost, base + "/export", "owner-1", map[string]string{"format": "comic"}, http.StatusBadRequest, ErrorValidation},
		{"no format", http.MethodPost, base + "/export", "owner-1", map[string]string{}, http.StatusBadRequest, ErrorValidation},
		{"scene before resolution", http.MethodPost, base + "/scenes", "owner-1", nil, http.StatusConflict, ErrorInvalidTransition},
		{"unknown story", http.MethodGet, "/api/stories/missing", "owner-1", nil, http.StatusNotFound, ErrorStoryNotFound},
		{"foreign story", http.MethodGet, base, "owner-2", nil, http.StatusNotFound, ErrorStoryNotFound},
		{"foreign history", http.MethodGet, base + "/history", "owner-2", nil, http.StatusNotFound, ErrorStoryNotFound},
		{"foreign delete", http.MethodDelete, base, "owner-2", nil, http.StatusNotFound, ErrorStoryNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, resp := s.do(t, tt.method, tt.path, tt.owner, tt.body)
			if code != tt.wantCode {
				t.Fatalf("status = %d, want %d (%+v)", code, tt.wantCode, resp.Error)
			}
			if resp.Success || resp.Error == nil || resp.Error.Code != tt.wantErr {
				t.Errorf("error = %+v, want code %s", resp.Error, tt.wantErr)
			}
		})
	}
}

func TestProviderOutageStillSucceeds(t *testing.T) {
	s := newTestServer(t)
	s.client.SetError(agent.OpPremiseOptions, errors.New("upstream down"))
	id := s.createStory(t, "owner-1")

	code, resp := s.do(t, http.MethodPost, "/api/stories/"+id+"/begin", "owner-1", map[string]string{"concept": "anything"})
	if code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	if snap := decode[core.Snapshot](t, resp.Data); !snap.Decision.Degraded {
		t.Errorf("expected a degraded decision")
	}
}

func TestDeleteStory(t *testing.T) {
	s := newTestServer(t)
	id := s.createStory(t, "owner-1")

	if code, _ := s.do(t, http.MethodDelete, "/api/stories/"+id, "owner-1", nil); code != http.StatusNoContent {
		t.Fatalf("delete: status %d", code)
	}
	if code, _ := s.do(t, http.MethodGet, "/api/stories/"+id, "owner-1", nil); code != http.StatusNotFound {
		t.Errorf("deleted story still served: status %d", code)
	}
}

func TestEventStream(t *testing.T) {
	s := newTestServer(t)
	id := s.createStory(t, "owner-1")

	srv := httptest.NewServer(s.router)
	defer srv.Close()

	wsURL := fmt.Sprintf("ws%s/api/stories/%s/events?owner_id=owner-1", strings.TrimPrefix(srv.URL, "http"), id)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if code, _ := s.do(t, http.MethodPost, "/api/stories/"+id+"/begin", "owner-1", map[string]string{"concept": "c"}); code != http.StatusOK {
		t.Fatalf("begin: status %d", code)
	}
	var ev core.Event
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("reading event: %v", err)
	}
	if ev.Type != core.EventDecisionReady || ev.StoryID != id {
		t.Fatalf("unexpected event %+v", ev)
	}

	if code, _ := s.do(t, http.MethodDelete, "/api/stories/"+id, "owner-1", nil); code != http.StatusNoContent {
		t.Fatalf("delete: status %d", code)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var next core.Event
		if err := conn.ReadJSON(&next); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				t.Errorf("expected a normal close, got %v", err)
			}
			break
		}
		if next.Type != core.EventStoryDeleted {
			t.Errorf("unexpected event before close %+v", next)
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{storyerrors.NewValidationError("f", "m", nil), http.StatusBadRequest},
		{fmt.Errorf("wrapped: %w", storyerrors.ErrNotFound), http.StatusNotFound},
		{storyerrors.NewBusyError("s"), http.StatusConflict},
		{storyerrors.ErrInvalidTransition, http.StatusConflict},
		{storyerrors.NewPreconditionError("export", "m"), http.StatusPreconditionFailed},
		{storyerrors.NewPersistenceError("save", errors.New("disk")), http.StatusInternalServerError},
		{context.Canceled, http.StatusRequestTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got, _ := classify(tt.err); got != tt.want {
			t.Errorf("classify(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
