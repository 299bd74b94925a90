package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func decodeReport(t *testing.T, rec *httptest.ResponseRecorder) report {
	t.Helper()
	var body report
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	return body
}

func TestHealthz_AlwaysOK(t *testing.T) {
	h := New()

	rec := httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest("GET", "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q, want application/json", got)
	}
	if body := decodeReport(t, rec); body.Status != "ok" {
		t.Errorf("status = %q, want %q", body.Status, "ok")
	}
}

func TestReadyz_ReadyWhenAllProbesPass(t *testing.T) {
	h := New(
		Check{Name: "storage", Probe: func(_ context.Context) error { return nil }},
		Check{Name: "tts", Probe: func(_ context.Context) error { return nil }},
	)

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest("GET", "/readyz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	body := decodeReport(t, rec)
	if body.Status != "ok" {
		t.Errorf("status = %q, want %q", body.Status, "ok")
	}
	for _, name := range []string{"storage", "tts"} {
		if body.Checks[name] != "ok" {
			t.Errorf("check %q = %q, want %q", name, body.Checks[name], "ok")
		}
	}
}

func TestReadyz_StorageDownIsNotReady(t *testing.T) {
	h := New(
		Check{Name: "storage", Probe: func(_ context.Context) error {
			return errors.New("connection refused")
		}},
		Check{Name: "tts", Probe: func(_ context.Context) error { return nil }},
	)

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest("GET", "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	body := decodeReport(t, rec)
	if body.Status != "fail" {
		t.Errorf("status = %q, want %q", body.Status, "fail")
	}
	if body.Checks["storage"] != "fail: connection refused" {
		t.Errorf("storage check = %q, want the probe error", body.Checks["storage"])
	}
	// A healthy probe still reports ok alongside the failing one.
	if body.Checks["tts"] != "ok" {
		t.Errorf("tts check = %q, want %q", body.Checks["tts"], "ok")
	}
}

func TestReadyz_NoProbesMeansReady(t *testing.T) {
	h := New()

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest("GET", "/readyz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if body := decodeReport(t, rec); body.Status != "ok" {
		t.Errorf("status = %q, want %q", body.Status, "ok")
	}
}

func TestReadyz_EveryFailureListed(t *testing.T) {
	h := New(
		Check{Name: "storage", Probe: func(_ context.Context) error {
			return errors.New("timeout")
		}},
		Check{Name: "stt", Probe: func(_ context.Context) error {
			return errors.New("no provider configured")
		}},
	)

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest("GET", "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	body := decodeReport(t, rec)
	if body.Checks["storage"] != "fail: timeout" {
		t.Errorf("storage check = %q", body.Checks["storage"])
	}
	if body.Checks["stt"] != "fail: no provider configured" {
		t.Errorf("stt check = %q", body.Checks["stt"])
	}
}

func TestRegister_MountsProbeRoutes(t *testing.T) {
	h := New(
		Check{Name: "storage", Probe: func(_ context.Context) error { return nil }},
	)

	mux := http.NewServeMux()
	h.Register(mux)

	for _, path := range []string{"/healthz", "/readyz"} {
		t.Run(path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
			if rec.Code != http.StatusOK {
				t.Errorf("GET %s = %d, want %d", path, rec.Code, http.StatusOK)
			}
		})
	}
}

func TestReadyz_CancelledRequestFailsFast(t *testing.T) {
	h := New(
		Check{Name: "slow", Probe: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}},
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest("GET", "/readyz", nil).WithContext(ctx))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}
