package observability_test

import (
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"goplanit/internal/adapters/observability"
)

func TestMetricsRegistryAndHandler(t *testing.T) {
	reg := observability.InitRegistry()

	// record one sample per family so counters are non-zero
	observability.ObserveHTTP("/test", "GET", 200, 12*time.Millisecond)
	observability.ObserveExternal("amadeus", "/v1/shopping/activities", 200, 40*time.Millisecond)
	observability.ObservePipelineRun("success")
	observability.ObservePipelineStep("generate-itinerary", "ok", 2*time.Second)

	mh := observability.MetricsHandler(reg)
	req := httptest.NewRequest("GET", "/metrics", nil)
	rr := httptest.NewRecorder()
	mh.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status: %d", rr.Code)
	}
	body, _ := io.ReadAll(rr.Body)
	out := string(body)
	for _, want := range []string{
		"goplanit_http_requests_total",
		"goplanit_external_requests_total",
		"goplanit_pipeline_runs_total",
		"goplanit_pipeline_step_duration_seconds",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in output", want)
		}
	}
}

func TestServe(t *testing.T) {
	// empty addr disables the side listener
	observability.Serve("", observability.InitRegistry())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	reg := observability.InitRegistry()
	observability.ObservePipelineRun("success")
	observability.Serve(addr, reg)

	// the side server exposes the registry it was handed, not the default one
	deadline := time.Now().Add(5 * time.Second)
	for {
		res, err := http.Get("http://" + addr + "/metrics")
		if err != nil {
			if time.Now().After(deadline) {
				t.Fatalf("metrics listener never came up: %v", err)
			}
			time.Sleep(20 * time.Millisecond)
			continue
		}
		body, _ := io.ReadAll(res.Body)
		res.Body.Close()
		if !strings.Contains(string(body), "goplanit_pipeline_runs_total") {
			t.Fatalf("custom registry not exposed:\n%s", body)
		}
		return
	}
}
