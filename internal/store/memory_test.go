package store

import (
	"errors"
	"testing"
	"time"

	"github.com/farmtech/irrigation-advisor/internal/advisor"
)

var t0 = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func report(src advisor.Source, loc string, at time.Time, outcome advisor.Outcome) advisor.Report {
	return advisor.Report{ID: at.Format(time.RFC3339), Source: src, Location: loc, StartedAt: at, Outcome: outcome}
}

func TestMemoryStoreLatestAndRange(t *testing.T) {
	s := NewMemoryStore(0, 0)
	s.now = func() time.Time { return t0.Add(time.Hour) }

	for i := 0; i < 4; i++ {
		s.SaveReport(report(advisor.SourceWeather, "Sao Paulo:BR", t0.Add(time.Duration(i)*10*time.Minute), advisor.OutcomeOK))
	}
	s.SaveReport(report(advisor.SourceSoil, "field-1", t0, advisor.OutcomeOK))

	latest, err := s.GetLatest(advisor.SourceWeather, "Sao Paulo:BR")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !latest.StartedAt.Equal(t0.Add(30 * time.Minute)) {
		t.Fatalf("unexpected latest %v", latest.StartedAt)
	}

	got, err := s.GetRange(advisor.SourceWeather, "Sao Paulo:BR", t0.Add(10*time.Minute), t0.Add(20*time.Minute))
	if err != nil || len(got) != 2 {
		t.Fatalf("expected 2 reports in range, got %d (%v)", len(got), err)
	}

	if _, err := s.GetLatest(advisor.SourceSoil, "Sao Paulo:BR"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("sources must not mix, got %v", err)
	}
	if _, err := s.GetRange(advisor.SourceWeather, "Sao Paulo:BR", t0.Add(2*time.Hour), t0.Add(3*time.Hour)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for empty range, got %v", err)
	}
	if all := s.Latest(); len(all) != 2 || all[0].Source != advisor.SourceSoil {
		t.Fatalf("unexpected latest list %+v", all)
	}
}

func TestMemoryStoreRetention(t *testing.T) {
	s := NewMemoryStore(3, 0)
	for i := 0; i < 5; i++ {
		s.SaveReport(report(advisor.SourceSoil, "f", t0.Add(time.Duration(i)*time.Minute), advisor.OutcomeOK))
	}
	got, _ := s.GetRange(advisor.SourceSoil, "f", t0, t0.Add(time.Hour))
	if len(got) != 3 || !got[0].StartedAt.Equal(t0.Add(2*time.Minute)) {
		t.Fatalf("count retention failed: %d reports", len(got))
	}

	s = NewMemoryStore(0, time.Hour)
	s.now = func() time.Time { return t0.Add(24 * time.Hour) }
	s.SaveReport(report(advisor.SourceWeather, "x", t0, advisor.OutcomeFetchError))
	s.SaveReport(report(advisor.SourceWeather, "x", t0.Add(time.Minute), advisor.OutcomeFetchError))

	latest, err := s.GetLatest(advisor.SourceWeather, "x")
	if err != nil {
		t.Fatalf("newest report must survive age retention: %v", err)
	}
	if latest.Outcome != advisor.OutcomeFetchError || !latest.StartedAt.Equal(t0.Add(time.Minute)) {
		t.Fatalf("unexpected latest %+v", latest)
	}
	got, _ = s.GetRange(advisor.SourceWeather, "x", t0, t0.Add(time.Hour))
	if len(got) != 1 {
		t.Fatalf("expected stale reports trimmed to 1, got %d", len(got))
	}
}

func TestMemoryStoreKeepsOrder(t *testing.T) {
	s := NewMemoryStore(0, 0)
	s.SaveReport(report(advisor.SourceSoil, "f", t0.Add(time.Minute), advisor.OutcomeOK))
	s.SaveReport(report(advisor.SourceSoil, "f", t0, advisor.OutcomeOK))

	latest, _ := s.GetLatest(advisor.SourceSoil, "f")
	if !latest.StartedAt.Equal(t0.Add(time.Minute)) {
		t.Fatalf("expected newest by start time, got %v", latest.StartedAt)
	}
}
