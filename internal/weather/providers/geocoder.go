package providers

import (
	"context"
	"errors"
	"sync"

	"github.com/kelvins/geocoder"

	"github.com/farmtech/irrigation-advisor/internal/weather"
)

// geocoderMu guards the package-level API key of the geocoder library.
var geocoderMu sync.Mutex

// GoogleGeocoder resolves cities through the Google Geocoding API.
type GoogleGeocoder struct {
	apiKey string
	lookup func(geocoder.Address) (geocoder.Location, error)
}

func NewGoogleGeocoder(apiKey string) *GoogleGeocoder {
	return &GoogleGeocoder{apiKey: apiKey, lookup: geocoder.Geocoding}
}

type geocodeResult struct {
	loc geocoder.Location
	err error
}

// Locate returns when the lookup completes or ctx is done, whichever comes
// first. The library takes no context and uses a client without a timeout,
// so an abandoned lookup finishes in the background.
func (g *GoogleGeocoder) Locate(ctx context.Context, loc weather.Location) (float64, float64, error) {
	if g.apiKey == "" {
		return 0, 0, weather.ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}

	done := make(chan geocodeResult, 1)
	go func() {
		geocoderMu.Lock()
		defer geocoderMu.Unlock()

		geocoder.ApiKey = g.apiKey
		location, err := g.lookup(geocoder.Address{
			City:    loc.City,
			Country: loc.Country,
		})
		done <- geocodeResult{location, err}
	}()

	var res geocodeResult
	select {
	case res = <-done:
	case <-ctx.Done():
		return 0, 0, ctx.Err()
	}
	if res.err != nil {
		return 0, 0, res.err
	}
	if res.loc.Latitude == 0 && res.loc.Longitude == 0 {
		return 0, 0, errors.New("geocoder returned no coordinates")
	}
	return res.loc.Latitude, res.loc.Longitude, nil
}
