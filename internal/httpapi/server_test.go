package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"voiced/internal/registry"
	"voiced/pkg/types"
)

type fakeService struct {
	ready   bool
	sayErr  error
	lastSay types.SayRequest
}

func (f *fakeService) Status() types.StatusResponse {
	return types.StatusResponse{
		State:    "ready",
		Sessions: 2,
		Languages: []types.LanguageStatus{
			{Lang: "en-US", NluState: "done", PoolIdle: 1, PoolCapacity: 3},
		},
		Skills: []string{"lights"},
	}
}

func (f *fakeService) Skills() []types.SkillStatus {
	return []types.SkillStatus{
		{Name: "lights", Loaded: true},
		{Name: "broken", Error: "no actions"},
	}
}

func (f *fakeService) RecentEvents() []map[string]any {
	return []map[string]any{{"name": "dispatch", "device_id": "sat-1"}}
}

func (f *fakeService) Say(_ context.Context, req types.SayRequest) error {
	f.lastSay = req
	return f.sayErr
}

func (f *fakeService) Query(_ context.Context, req types.QueryRequest) (map[string]string, error) {
	if req.Skill != "weather" || req.Name != "forecast" {
		return nil, registry.ErrNotFound(registry.Mangle(req.Skill, req.Name))
	}
	return map[string]string{"tomorrow": "sunny"}, nil
}

func (f *fakeService) Ready() bool { return f.ready }

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	svc := &fakeService{ready: true}
	mux := NewMux(svc)
	if rec := doRequest(t, mux, http.MethodGet, "/healthz", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("ready healthz = %d", rec.Code)
	}
	svc.ready = false
	if rec := doRequest(t, mux, http.MethodGet, "/healthz", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("unready healthz = %d", rec.Code)
	}
}

func TestStatusEndpoint(t *testing.T) {
	mux := NewMux(&fakeService{ready: true})
	rec := doRequest(t, mux, http.MethodGet, "/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var st types.StatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("bad status JSON: %v", err)
	}
	if st.State != "ready" || st.Sessions != 2 || len(st.Languages) != 1 {
		t.Fatalf("status = %+v", st)
	}
	if st.Languages[0].NluState != "done" {
		t.Fatalf("language status = %+v", st.Languages[0])
	}
}

func TestSkillsEndpoint(t *testing.T) {
	mux := NewMux(&fakeService{ready: true})
	rec := doRequest(t, mux, http.MethodGet, "/skills", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("skills = %d", rec.Code)
	}
	var resp struct {
		Skills []types.SkillStatus `json:"skills"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Skills) != 2 || !resp.Skills[0].Loaded || resp.Skills[1].Error == "" {
		t.Fatalf("skills = %+v", resp.Skills)
	}
}

func TestSayAccepted(t *testing.T) {
	svc := &fakeService{ready: true}
	mux := NewMux(svc)
	rec := doRequest(t, mux, http.MethodPost, "/say", `{"device_id":"sat-1","text":"turn on the light"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("say = %d, body %s", rec.Code, rec.Body.String())
	}
	if svc.lastSay.DeviceID != "sat-1" || svc.lastSay.Text != "turn on the light" {
		t.Fatalf("service saw %+v", svc.lastSay)
	}
}

func TestSayValidation(t *testing.T) {
	mux := NewMux(&fakeService{ready: true})
	cases := []struct {
		name string
		body string
		ct   string
		want int
	}{
		{"wrong content type", `{"device_id":"a","text":"b"}`, "text/plain", http.StatusUnsupportedMediaType},
		{"bad json", `{`, "application/json", http.StatusBadRequest},
		{"missing device", `{"text":"hi"}`, "application/json", http.StatusBadRequest},
		{"missing text", `{"device_id":"sat-1"}`, "application/json", http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/say", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", tc.ct)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("code = %d, want %d", rec.Code, tc.want)
			}
			var er types.ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &er); err != nil {
				t.Fatalf("error body not JSON: %s", rec.Body.String())
			}
			if er.Code != tc.want || er.Error == "" {
				t.Fatalf("error payload = %+v", er)
			}
		})
	}
}

func TestQueryEndpoint(t *testing.T) {
	mux := NewMux(&fakeService{ready: true})
	rec := doRequest(t, mux, http.MethodPost, "/query", `{"skill":"weather","name":"forecast"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("query = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp types.QueryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Results["tomorrow"] != "sunny" {
		t.Fatalf("results = %v", resp.Results)
	}

	rec = doRequest(t, mux, http.MethodPost, "/query", `{"skill":"ghost","name":"nothing"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown query = %d, want 404", rec.Code)
	}
	rec = doRequest(t, mux, http.MethodPost, "/query", `{"name":"forecast"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing skill = %d, want 400", rec.Code)
	}
}

func TestMetricsExposed(t *testing.T) {
	mux := NewMux(&fakeService{ready: true})
	// Labeled counters only appear after their first increment.
	doRequest(t, mux, http.MethodGet, "/healthz", "")
	rec := doRequest(t, mux, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "voiced_http_requests_total") {
		t.Fatal("request counter missing from /metrics")
	}
}
