package advisor

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/farmtech/irrigation-advisor/internal/irrigation"
	"github.com/farmtech/irrigation-advisor/internal/soil"
	"github.com/farmtech/irrigation-advisor/internal/weather"
)

// Source identifies which kind of cycle produced a report.
type Source string

const (
	SourceWeather Source = "weather"
	SourceSoil    Source = "soil"
)

// Outcome classifies how a cycle ended.
type Outcome string

const (
	OutcomeOK               Outcome = "ok"
	OutcomeFetchError       Outcome = "fetch_error"
	OutcomeInsufficientData Outcome = "insufficient_data"
	OutcomeSinkError        Outcome = "sink_error"
)

// Report is the record of a single decision cycle.
type Report struct {
	ID          string                `json:"id"`
	Source      Source                `json:"source"`
	Location    string                `json:"location"` // location key or soil field ID
	StartedAt   time.Time             `json:"startedAt"`
	Observation *weather.Observation  `json:"observation,omitempty"`
	Forecast    *weather.RainForecast `json:"forecast,omitempty"`
	Soil        *soil.Reading         `json:"soil,omitempty"`
	Decision    irrigation.Decision   `json:"decision"`
	Outcome     Outcome               `json:"outcome"`
	Error       string                `json:"error,omitempty"`
}

// Sink receives reports of successful evaluations. Push is a single attempt.
type Sink interface {
	Name() string
	Push(ctx context.Context, r Report) error
}

// ReportStore keeps reports for the status API.
type ReportStore interface {
	SaveReport(r Report)
}

// Tally counts cycle outcomes over a process lifetime.
type Tally struct {
	mu     sync.Mutex
	counts map[Outcome]int
	total  int
}

func NewTally() *Tally {
	return &Tally{counts: make(map[Outcome]int)}
}

func (t *Tally) Record(r Report) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts[r.Outcome]++
	t.total++
}

// Count returns how many cycles ended with outcome o.
func (t *Tally) Count(o Outcome) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[o]
}

func (t *Tally) Total() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}

// String renders the session summary, e.g. "3 cycles (ok=2, fetch_error=1)".
func (t *Tally) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	parts := make([]string, 0, len(t.counts))
	for o, n := range t.counts {
		parts = append(parts, fmt.Sprintf("%s=%d", o, n))
	}
	sort.Strings(parts)
	return fmt.Sprintf("%d cycles (%s)", t.total, strings.Join(parts, ", "))
}
