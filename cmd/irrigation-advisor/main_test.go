package main

import "testing"

func TestRunExitsOnUnusableProvider(t *testing.T) {
	t.Setenv("WEATHER_PROVIDER", "openweather")
	t.Setenv("OPENWEATHER_API_KEY", "")

	if code := run(); code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
}

func TestRunExitsOnOpenMeteoWithoutCoordinates(t *testing.T) {
	t.Setenv("WEATHER_PROVIDER", "openmeteo")
	t.Setenv("LOCATION_LAT", "")
	t.Setenv("LOCATION_LON", "")
	t.Setenv("GEOCODER_API_KEY", "")

	if code := run(); code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
}
