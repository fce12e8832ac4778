package soil

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/farmtech/irrigation-advisor/internal/irrigation"
)

// Sampling ranges of the simulated probe.
const (
	PHLow        = 5.5
	PHHigh       = 7.5
	MoistureLow  = 30.0
	MoistureHigh = 90.0
)

// Reading is one soil probe sample.
type Reading struct {
	FieldID     string    `json:"fieldId"`
	Nitrogen    bool      `json:"nitrogen"`
	Phosphorus  bool      `json:"phosphorus"`
	Potassium   bool      `json:"potassium"`
	PH          float64   `json:"ph"`
	MoisturePct float64   `json:"moisturePercent"`
	Timestamp   time.Time `json:"timestamp"`
}

// Input converts the reading into the evaluator's input record.
func (r Reading) Input() irrigation.SoilInput {
	return irrigation.Soil(r.Nitrogen, r.Phosphorus, r.Potassium, r.PH, r.MoisturePct)
}

// Generator draws synthetic readings. Every field is sampled independently:
// nutrients are fair coin flips, pH and moisture are uniform over their ranges.
type Generator struct {
	fieldID string

	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// NewGenerator returns a generator for fieldID. A zero seed uses the clock.
func NewGenerator(fieldID string, seed int64) *Generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{
		fieldID: fieldID,
		rng:     rand.New(rand.NewSource(seed)),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// FieldID returns the field the generator reports for.
func (g *Generator) FieldID() string {
	return g.fieldID
}

// Next returns a fresh reading.
func (g *Generator) Next() Reading {
	g.mu.Lock()
	defer g.mu.Unlock()

	return Reading{
		FieldID:     g.fieldID,
		Nitrogen:    g.rng.Intn(2) == 1,
		Phosphorus:  g.rng.Intn(2) == 1,
		Potassium:   g.rng.Intn(2) == 1,
		PH:          round(uniform(g.rng, PHLow, PHHigh), 2),
		MoisturePct: round(uniform(g.rng, MoistureLow, MoistureHigh), 1),
		Timestamp:   g.now(),
	}
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
