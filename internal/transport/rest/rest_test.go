package rest

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bytedance/sonic"

	"github.com/rostralabs/rostra/internal/config"
	"github.com/rostralabs/rostra/internal/debate"
	"github.com/rostralabs/rostra/internal/errors"
	"github.com/rostralabs/rostra/internal/event"
	"github.com/rostralabs/rostra/internal/logging"
	"github.com/rostralabs/rostra/internal/registry"
	"github.com/rostralabs/rostra/internal/store"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	bus := event.NewBus(nil)
	st := store.NewMemoryStore()
	reg, err := registry.New(registry.Config{
		Store:  st,
		Bus:    bus,
		Logger: logging.NopLogger(),
		Debate: config.DebateConfig{TickIntervalMs: 1000, CommandQueueSize: 8},
	})
	if err != nil {
		t.Fatalf("registry.New: %v", err)
	}
	t.Cleanup(func() { reg.Close() })

	r, err := NewRouter(Config{Registry: reg, Store: st, Logger: logging.NopLogger()})
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, srv *httptest.Server, path string, body any) (int, []byte) {
	t.Helper()
	data, err := sonic.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(srv.URL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	return resp.StatusCode, out
}

func get(t *testing.T, srv *httptest.Server, path string) (int, []byte) {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	return resp.StatusCode, out
}

func unmarshal[T any](t *testing.T, data []byte) T {
	t.Helper()
	var out T
	if err := sonic.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal %T from %s: %v", out, data, err)
	}
	return out
}

func roster() []debate.Participant {
	return []debate.Participant{
		{ID: "alice", Name: "Alice", Team: debate.TeamPro, Role: debate.RoleFirst},
		{ID: "bob", Name: "Bob", Team: debate.TeamCon, Role: debate.RoleFirst},
	}
}

func startSession(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	status, body := post(t, srv, "/debate/start", startRequest{
		Topic:        "School uniforms should be mandatory",
		Participants: roster(),
	})
	if status != http.StatusCreated {
		t.Fatalf("start status = %d, want %d: %s", status, http.StatusCreated, body)
	}
	st := unmarshal[stateResponse](t, body)
	if st.Session == nil || st.Session.ID == "" {
		t.Fatal("no session in start response")
	}
	return st.Session.ID
}

func TestStartDebate(t *testing.T) {
	srv := newTestServer(t)

	status, body := post(t, srv, "/debate/start", startRequest{
		Topic:        "School uniforms should be mandatory",
		Participants: roster(),
	})
	if status != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", status, http.StatusCreated, body)
	}
	st := unmarshal[stateResponse](t, body)
	if got, want := st.Session.Phase, debate.PhaseProConstructive; got != want {
		t.Errorf("phase = %q, want %q", got, want)
	}
	if got, want := st.Session.CurrentSpeakerID, "alice"; got != want {
		t.Errorf("speaker = %q, want %q", got, want)
	}
	if st.Remaining != 240 {
		t.Errorf("remaining = %d, want 240", st.Remaining)
	}
}

func TestStartDebate_BadRoster(t *testing.T) {
	srv := newTestServer(t)

	status, body := post(t, srv, "/debate/start", startRequest{
		Topic:        "School uniforms should be mandatory",
		Participants: roster()[:1],
	})
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d: %s", status, http.StatusBadRequest, body)
	}
	er := unmarshal[errorResponse](t, body)
	if er.Code != errors.CodeInvalidPayload {
		t.Errorf("code = %q, want %q", er.Code, errors.CodeInvalidPayload)
	}
}

func TestSubmitSpeech(t *testing.T) {
	srv := newTestServer(t)
	id := startSession(t, srv)

	status, body := post(t, srv, "/debate/speech", speechRequest{
		DebateID:  id,
		SpeakerID: "alice",
		Text:      "Uniforms level the playing field.",
	})
	if status != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", status, http.StatusOK, body)
	}
	st := unmarshal[stateResponse](t, body)
	if len(st.Session.Transcript) != 1 {
		t.Fatalf("transcript length = %d, want 1", len(st.Session.Transcript))
	}
	m := st.Session.Transcript[0]
	if m.SpeakerID != "alice" || m.Type != debate.MessageSpeech {
		t.Errorf("entry = %s/%s, want alice/%s", m.SpeakerID, m.Type, debate.MessageSpeech)
	}
}

func TestSubmitSpeech_Rejections(t *testing.T) {
	srv := newTestServer(t)
	id := startSession(t, srv)

	tests := []struct {
		name       string
		req        speechRequest
		wantStatus int
		wantCode   errors.Code
	}{
		{
			name:       "off turn",
			req:        speechRequest{DebateID: id, SpeakerID: "bob", Text: "My turn."},
			wantStatus: http.StatusConflict,
			wantCode:   errors.CodeNotYourTurn,
		},
		{
			name:       "outside roster",
			req:        speechRequest{DebateID: id, SpeakerID: "zoe", Text: "Hello."},
			wantStatus: http.StatusForbidden,
			wantCode:   errors.CodeUnknownParticipant,
		},
		{
			name:       "unknown session",
			req:        speechRequest{DebateID: "missing", SpeakerID: "alice", Text: "Hello."},
			wantStatus: http.StatusNotFound,
			wantCode:   errors.CodeUnknownSession,
		},
		{
			name:       "oversized speech",
			req:        speechRequest{DebateID: id, SpeakerID: "alice", Text: strings.Repeat("a", 5000)},
			wantStatus: http.StatusBadRequest,
			wantCode:   errors.CodePayloadTooLarge,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := post(t, srv, "/debate/speech", tt.req)
			if status != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", status, tt.wantStatus, body)
			}
			er := unmarshal[errorResponse](t, body)
			if er.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", er.Code, tt.wantCode)
			}
		})
	}
}

func TestEndDebate(t *testing.T) {
	srv := newTestServer(t)
	id := startSession(t, srv)

	status, body := post(t, srv, "/debate/end", endRequest{
		DebateID: id,
		Winner:   "PRO",
		Reason:   "forfeit",
	})
	if status != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", status, http.StatusOK, body)
	}
	st := unmarshal[stateResponse](t, body)
	if st.Session.Status != debate.StatusCompleted {
		t.Errorf("status = %q, want %q", st.Session.Status, debate.StatusCompleted)
	}
	if st.Session.Winner != debate.TeamPro {
		t.Errorf("winner = %q, want %q", st.Session.Winner, debate.TeamPro)
	}
	if st.Session.EndReason != "forfeit" {
		t.Errorf("endReason = %q, want %q", st.Session.EndReason, "forfeit")
	}

	n := len(st.Session.Transcript)
	if n == 0 {
		t.Fatal("no transcript entries after end")
	}
	if last := st.Session.Transcript[n-1]; last.Type != debate.MessageSystem {
		t.Errorf("last entry type = %q, want %q", last.Type, debate.MessageSystem)
	}
}

func TestEndDebate_BadWinner(t *testing.T) {
	srv := newTestServer(t)
	id := startSession(t, srv)

	status, body := post(t, srv, "/debate/end", endRequest{DebateID: id, Winner: "blue"})
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d: %s", status, http.StatusBadRequest, body)
	}
	er := unmarshal[errorResponse](t, body)
	if er.Code != errors.CodeInvalidPayload {
		t.Errorf("code = %q, want %q", er.Code, errors.CodeInvalidPayload)
	}
}

func TestEndDebate_TwiceCarriesState(t *testing.T) {
	srv := newTestServer(t)
	id := startSession(t, srv)

	if status, body := post(t, srv, "/debate/end", endRequest{DebateID: id}); status != http.StatusOK {
		t.Fatalf("first end status = %d: %s", status, body)
	}

	status, body := post(t, srv, "/debate/end", endRequest{DebateID: id})
	if status != http.StatusConflict {
		t.Fatalf("second end status = %d, want %d: %s", status, http.StatusConflict, body)
	}
	er := unmarshal[errorResponse](t, body)
	if er.Code != errors.CodePhaseConflict {
		t.Errorf("code = %q, want %q", er.Code, errors.CodePhaseConflict)
	}
	if er.State == nil || er.State.Session == nil {
		t.Fatal("conflict response carries no authoritative state")
	}
	if er.State.Session.Status != debate.StatusCompleted {
		t.Errorf("conflict state status = %q, want %q",
			er.State.Session.Status, debate.StatusCompleted)
	}
}

func TestGetDebate(t *testing.T) {
	srv := newTestServer(t)
	id := startSession(t, srv)

	status, body := get(t, srv, "/debate/"+id)
	if status != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", status, http.StatusOK, body)
	}
	st := unmarshal[stateResponse](t, body)
	if st.Session.ID != id {
		t.Errorf("session id = %q, want %q", st.Session.ID, id)
	}

	if status, _ := get(t, srv, "/debate/missing"); status != http.StatusNotFound {
		t.Errorf("missing session status = %d, want %d", status, http.StatusNotFound)
	}
}

func TestTranscriptExport(t *testing.T) {
	srv := newTestServer(t)
	id := startSession(t, srv)

	post(t, srv, "/debate/speech", speechRequest{
		DebateID:  id,
		SpeakerID: "alice",
		Text:      "Uniforms level the playing field.",
	})
	post(t, srv, "/debate/end", endRequest{DebateID: id, Reason: "time"})

	status, body := get(t, srv, "/debate/"+id+"/transcript")
	if status != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", status, http.StatusOK, body)
	}
	tr := unmarshal[transcriptResponse](t, body)
	if tr.DebateID != id {
		t.Errorf("debateId = %q, want %q", tr.DebateID, id)
	}
	if tr.Topic != "School uniforms should be mandatory" {
		t.Errorf("topic = %q", tr.Topic)
	}
	if len(tr.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(tr.Messages))
	}
	if tr.Messages[0].Type != debate.MessageSpeech || tr.Messages[1].Type != debate.MessageSystem {
		t.Errorf("message kinds = %s, %s; want %s, %s",
			tr.Messages[0].Type, tr.Messages[1].Type,
			debate.MessageSpeech, debate.MessageSystem)
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	status, body := get(t, srv, "/health")
	if status != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", status, http.StatusOK, body)
	}
	hr := unmarshal[healthResponse](t, body)
	if hr.Status != "healthy" {
		t.Errorf("status = %q, want %q", hr.Status, "healthy")
	}
	if hr.Checks["store"].Status != "pass" {
		t.Errorf("store check = %q, want %q", hr.Checks["store"].Status, "pass")
	}
}

func TestMetricsExposed(t *testing.T) {
	srv := newTestServer(t)

	// Generate at least one instrumented request first.
	get(t, srv, "/health")

	status, body := get(t, srv, "/metrics")
	if status != http.StatusOK {
		t.Fatalf("status = %d, want %d", status, http.StatusOK)
	}
	if !strings.Contains(string(body), "rostra_http_requests_total") {
		t.Error("scrape output missing rostra_http_requests_total")
	}
}

func TestBodyCap(t *testing.T) {
	srv := newTestServer(t)
	id := startSession(t, srv)

	status, body := post(t, srv, "/debate/speech", speechRequest{
		DebateID:  id,
		SpeakerID: "alice",
		Text:      strings.Repeat("a", 80_000),
	})
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d: %s", status, http.StatusBadRequest, body)
	}
	er := unmarshal[errorResponse](t, body)
	if er.Code != errors.CodePayloadTooLarge {
		t.Errorf("code = %q, want %q", er.Code, errors.CodePayloadTooLarge)
	}
}
