package control

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDebugProbes(t *testing.T) {
	dp := NewDebugProbes()
	calls := 0
	dp.RegisterProbe("loop", func() any {
		calls++
		return map[string]int{"active": 3}
	})
	if _, ok := dp.Probe("missing"); ok {
		t.Error("unknown probe reported as present")
	}
	v, ok := dp.Probe("loop")
	if !ok || v.(map[string]int)["active"] != 3 {
		t.Errorf("Probe(loop) = %v, %v", v, ok)
	}
	state := dp.DumpState()
	if len(state) != 1 || calls != 2 {
		t.Errorf("DumpState = %v after %d calls", state, calls)
	}
}

func TestDebugRoutes(t *testing.T) {
	dp := NewDebugProbes()
	dp.RegisterProbe("server.table", func() any { return map[string]int{"active": 2} })
	srv := httptest.NewServer(NewRouter(NewMetricsRegistry(), dp, "run-3"))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/debug")
	if err != nil {
		t.Fatalf("GET /debug: %v", err)
	}
	defer resp.Body.Close()
	var body map[string]map[string]int
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["server.table"]["active"] != 2 {
		t.Errorf("body = %v", body)
	}

	resp2, err := http.Get(srv.URL + "/debug/nope")
	if err != nil {
		t.Fatalf("GET /debug/nope: %v", err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp2.StatusCode)
	}
}

func TestDebugRoutesAbsentWithoutProbes(t *testing.T) {
	srv := httptest.NewServer(NewRouter(NewMetricsRegistry(), nil, "run-4"))
	defer srv.Close()
	resp, err := http.Get(srv.URL + "/debug")
	if err != nil {
		t.Fatalf("GET /debug: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}
