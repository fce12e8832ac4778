package weather

import (
	"math"
	"sort"
	"time"
)

// DefaultLookahead covers the next two 3-hour forecast slots.
const DefaultLookahead = 6 * time.Hour

// currentSlotTolerance keeps a slot that started shortly before now.
const currentSlotTolerance = time.Hour

// SummarizeForecast reduces forecast entries to a RainForecast over the
// window [now-1h, now+lookahead). Precipitation is summed across the window
// and rounded to 0.1 mm; WillRain is true if any entry in the window reports
// nonzero precipitation. The condition is taken from the last entry in the
// window.
func SummarizeForecast(entries []ForecastEntry, now time.Time, lookahead time.Duration) (RainForecast, error) {
	if lookahead <= 0 {
		lookahead = DefaultLookahead
	}

	from := now.Add(-currentSlotTolerance)
	to := now.Add(lookahead)

	inWindow := make([]ForecastEntry, 0, len(entries))
	for _, e := range entries {
		if e.Time.Before(from) || !e.Time.Before(to) {
			continue
		}
		inWindow = append(inWindow, e)
	}
	if len(inWindow) == 0 {
		return RainForecast{}, ErrEmptyForecast
	}

	sort.SliceStable(inWindow, func(i, j int) bool {
		return inWindow[i].Time.Before(inWindow[j].Time)
	})

	var (
		sum      float64
		willRain bool
	)
	for _, e := range inWindow {
		if math.IsNaN(e.PrecipMM) || e.PrecipMM < 0 {
			return RainForecast{}, ErrMalformedPayload
		}
		if e.PrecipMM > 0 {
			willRain = true
			sum += e.PrecipMM
		}
	}

	last := inWindow[len(inWindow)-1]
	return RainForecast{
		WillRain:    willRain,
		IntensityMM: math.Round(sum*10) / 10,
		Condition:   last.Condition,
		Description: last.Description,
		Window:      lookahead,
		Entries:     len(inWindow),
		IssuedAt:    now.UTC(),
	}, nil
}
