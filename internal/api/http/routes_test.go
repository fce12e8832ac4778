package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/farmtech/irrigation-advisor/internal/advisor"
	"github.com/farmtech/irrigation-advisor/internal/irrigation"
	"github.com/farmtech/irrigation-advisor/internal/metrics"
	"github.com/farmtech/irrigation-advisor/internal/store"
)

var t0 = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()

	memStore := store.NewMemoryStore(10, 0)
	memStore.SaveReport(advisor.Report{
		ID: "a", Source: advisor.SourceWeather, Location: "Paris:FR", StartedAt: t0,
		Decision: irrigation.Decision{Rule: irrigation.RuleWeather, Command: irrigation.CommandPermitIrrigation},
		Outcome:  advisor.OutcomeOK,
	})
	memStore.SaveReport(advisor.Report{
		ID: "b", Source: advisor.SourceWeather, Location: "Paris:FR", StartedAt: t0.Add(5 * time.Minute),
		Decision: irrigation.Unknown(irrigation.RuleWeather),
		Outcome:  advisor.OutcomeFetchError,
		Error:    "openweathermap forecast: status 503",
	})

	m := metrics.New()
	m.ObserveCycle("weather", "ok", time.Second)

	app := fiber.New()
	RegisterRoutes(app, memStore, m)
	return app
}

func do(t *testing.T, app *fiber.App, req *http.Request) (int, []byte) {
	t.Helper()
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, body
}

func TestLatestReportSurfacesUnknownState(t *testing.T) {
	app := newTestApp(t)

	status, body := do(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/reports/latest?source=weather&location=Paris:FR", nil))
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	var r advisor.Report
	if err := json.Unmarshal(body, &r); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if r.ID != "b" || r.Decision.Command != irrigation.CommandUnknown || r.Outcome != advisor.OutcomeFetchError {
		t.Fatalf("unexpected latest report %+v", r)
	}

	status, _ = do(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/reports/latest?source=soil&location=Paris:FR", nil))
	if status != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", status)
	}

	status, _ = do(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/reports/latest?source=rain&location=Paris:FR", nil))
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown source, got %d", status)
	}
}

func TestHistoryValidation(t *testing.T) {
	app := newTestApp(t)

	// Missing range.
	status, _ := do(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/reports/history?source=weather&location=Paris:FR", nil))
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}

	// to before from.
	status, _ = do(t, app, httptest.NewRequest(http.MethodGet,
		"/api/v1/reports/history?source=weather&location=Paris:FR&from=2026-03-14T13:00:00Z&to=2026-03-14T12:00:00Z", nil))
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}

	status, body := do(t, app, httptest.NewRequest(http.MethodGet,
		"/api/v1/reports/history?source=weather&location=Paris:FR&from=2026-03-14T11:00:00Z&to=1773490000", nil))
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	var out struct {
		Reports []advisor.Report `json:"reports"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Reports) != 2 {
		t.Fatalf("expected 2 reports, got %d", len(out.Reports))
	}
}

func TestEvaluateEndpoints(t *testing.T) {
	app := newTestApp(t)

	tests := []struct {
		name   string
		path   string
		body   string
		status int
		want   irrigation.Command
	}{
		{"light rain boundary", "/api/v1/evaluate/rain", `{"will_rain": true, "intensity_mm": 5.0}`, http.StatusOK, irrigation.CommandSuspendLight},
		{"no rain", "/api/v1/evaluate/rain", `{"will_rain": false, "intensity_mm": 30}`, http.StatusOK, irrigation.CommandPermitIrrigation},
		{"missing intensity", "/api/v1/evaluate/rain", `{"will_rain": true}`, http.StatusUnprocessableEntity, irrigation.CommandUnknown},
		{"pump", "/api/v1/evaluate/soil", `{"nitrogen": true, "phosphorus": true, "potassium": true, "ph": 6.5, "moisture_pct": 45.0}`, http.StatusOK, irrigation.CommandActivatePump},
		{"moisture ceiling", "/api/v1/evaluate/soil", `{"nitrogen": true, "phosphorus": true, "potassium": true, "ph": 6.5, "moisture_pct": 60.0}`, http.StatusOK, irrigation.CommandIdle},
		{"missing ph", "/api/v1/evaluate/soil", `{"nitrogen": true, "phosphorus": true, "potassium": true, "moisture_pct": 45.0}`, http.StatusUnprocessableEntity, irrigation.CommandUnknown},
		{"non-numeric intensity", "/api/v1/evaluate/rain", `{"will_rain": true, "intensity_mm": "heavy"}`, http.StatusUnprocessableEntity, irrigation.CommandUnknown},
		{"non-numeric ph", "/api/v1/evaluate/soil", `{"nitrogen": true, "phosphorus": true, "potassium": true, "ph": "acidic", "moisture_pct": 45.0}`, http.StatusUnprocessableEntity, irrigation.CommandUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")

			status, body := do(t, app, req)
			if status != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, status, body)
			}

			var got irrigation.Decision
			if status == http.StatusOK {
				if err := json.Unmarshal(body, &got); err != nil {
					t.Fatalf("decode: %v", err)
				}
			} else {
				var wrapped struct {
					Fields   []string            `json:"fields"`
					Decision irrigation.Decision `json:"decision"`
				}
				if err := json.Unmarshal(body, &wrapped); err != nil {
					t.Fatalf("decode: %v", err)
				}
				if len(wrapped.Fields) == 0 || wrapped.Fields[0] == "" {
					t.Fatalf("expected offending field names, got %v", wrapped.Fields)
				}
				got = wrapped.Decision
			}
			if got.Command != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, got.Command)
			}
		})
	}

	status, _ := do(t, app, func() *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/evaluate/rain", strings.NewReader(`{"will_rain": `))
		req.Header.Set("Content-Type", "application/json")
		return req
	}())
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed JSON, got %d", status)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	app := newTestApp(t)

	status, body := do(t, app, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if !strings.Contains(string(body), `irrigation_advisor_cycles_total{outcome="ok",source="weather"} 1`) {
		t.Fatalf("cycle counter missing:\n%s", body)
	}
}
