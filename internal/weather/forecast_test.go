package weather

import (
	"errors"
	"testing"
	"time"
)

var baseTime = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func slot(offset time.Duration, mm float64, desc string) ForecastEntry {
	return ForecastEntry{
		Time:        baseTime.Add(offset),
		PrecipMM:    mm,
		Condition:   ConditionRain,
		Description: desc,
	}
}

func TestSummarizeForecastSumsWindow(t *testing.T) {
	entries := []ForecastEntry{
		slot(4*time.Hour, 2.26, "moderate rain"),
		slot(1*time.Hour, 1.1, "light rain"),
		slot(7*time.Hour, 30, "heavy intensity rain"), // outside 6h window
	}

	f, err := SummarizeForecast(entries, baseTime, 6*time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !f.WillRain {
		t.Fatal("expected rain")
	}
	if f.IntensityMM != 3.4 {
		t.Fatalf("expected 3.4 mm, got %v", f.IntensityMM)
	}
	if f.Entries != 2 {
		t.Fatalf("expected 2 entries in window, got %d", f.Entries)
	}
	if f.Description != "moderate rain" {
		t.Fatalf("expected description of last slot, got %q", f.Description)
	}
}

func TestSummarizeForecastDry(t *testing.T) {
	entries := []ForecastEntry{
		{Time: baseTime.Add(time.Hour), Condition: ConditionClear, Description: "clear sky"},
		{Time: baseTime.Add(4 * time.Hour), Condition: ConditionCloudy, Description: "few clouds"},
	}

	f, err := SummarizeForecast(entries, baseTime, 6*time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.WillRain || f.IntensityMM != 0 {
		t.Fatalf("expected dry forecast, got %+v", f)
	}
	if f.Condition != ConditionCloudy {
		t.Fatalf("expected %s, got %s", ConditionCloudy, f.Condition)
	}
}

func TestSummarizeForecastKeepsRunningSlot(t *testing.T) {
	entries := []ForecastEntry{
		slot(-30*time.Minute, 0.5, "light rain"),
		slot(-3*time.Hour, 9, "old slot"),
	}

	f, err := SummarizeForecast(entries, baseTime, 6*time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Entries != 1 || f.IntensityMM != 0.5 {
		t.Fatalf("expected only the running slot, got %+v", f)
	}
}

func TestSummarizeForecastEmptyWindow(t *testing.T) {
	_, err := SummarizeForecast([]ForecastEntry{slot(10*time.Hour, 1, "rain")}, baseTime, 6*time.Hour)
	if !errors.Is(err, ErrEmptyForecast) {
		t.Fatalf("expected ErrEmptyForecast, got %v", err)
	}

	_, err = SummarizeForecast(nil, baseTime, 6*time.Hour)
	if !errors.Is(err, ErrEmptyForecast) {
		t.Fatalf("expected ErrEmptyForecast for no entries, got %v", err)
	}
}

func TestSummarizeForecastRejectsNegativePrecip(t *testing.T) {
	_, err := SummarizeForecast([]ForecastEntry{slot(time.Hour, -1, "bogus")}, baseTime, 6*time.Hour)
	if !errors.Is(err, ErrMalformedPayload) {
		t.Fatalf("expected ErrMalformedPayload, got %v", err)
	}
}
