package sink

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/farmtech/irrigation-advisor/internal/config"
)

func TestBuildFallsBackToLog(t *testing.T) {
	f, closeAll := Build(context.Background(), config.SinkConfig{}, nil, nil, nil)
	defer closeAll()

	if f.Name() != "fanout(log)" {
		t.Fatalf("expected log sink only, got %s", f.Name())
	}
	if err := f.Push(context.Background(), soilReport()); err != nil {
		t.Fatalf("log sink must not fail: %v", err)
	}
}

func influxConfig(url string) config.SinkConfig {
	return config.SinkConfig{
		RESTURL:      "https://example.supabase.co/rest/v1",
		RESTAPIKey:   "anon",
		InfluxURL:    url,
		InfluxToken:  "token",
		InfluxOrg:    "farm",
		InfluxBucket: "irrigation",
	}
}

func TestBuildRemoteSinks(t *testing.T) {
	influx := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ping" {
			t.Errorf("unexpected request %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer influx.Close()

	f, closeAll := Build(context.Background(), influxConfig(influx.URL), nil, nil, nil)
	defer closeAll()

	if f.Name() != "fanout(rest,influx)" || f.Len() != 2 {
		t.Fatalf("unexpected sinks %s", f.Name())
	}
}

func TestBuildLeavesOutUnreachableInflux(t *testing.T) {
	down := httptest.NewServer(http.NotFoundHandler())
	url := down.URL
	down.Close()

	f, closeAll := Build(context.Background(), influxConfig(url), nil, nil, nil)
	defer closeAll()

	if f.Name() != "fanout(rest)" || f.Len() != 1 {
		t.Fatalf("unreachable influx must be left out, got %s", f.Name())
	}
}
