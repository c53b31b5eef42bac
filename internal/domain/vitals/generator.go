package vitals

import (
	"math"
	"math/rand"
	"time"
)

// DefaultAbnormalRate is the probability that a generated reading falls in an
// abnormal band.
const DefaultAbnormalRate = 0.10

// TimestampLayout is ISO-8601 with microseconds and an explicit UTC offset.
const TimestampLayout = "2006-01-02T15:04:05.000000-07:00"

// Generator produces synthetic readings. It is not safe for concurrent use.
type Generator struct {
	rng          *rand.Rand
	now          func() time.Time
	abnormalRate float64
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithRand sets the random source.
func WithRand(rng *rand.Rand) GeneratorOption {
	return func(g *Generator) { g.rng = rng }
}

// WithClock sets the wall clock used for reading timestamps.
func WithClock(now func() time.Time) GeneratorOption {
	return func(g *Generator) { g.now = now }
}

// WithAbnormalRate overrides the abnormal-value probability.
func WithAbnormalRate(p float64) GeneratorOption {
	return func(g *Generator) { g.abnormalRate = p }
}

// NewGenerator creates a Generator seeded from the current time unless a
// source is supplied.
func NewGenerator(opts ...GeneratorOption) *Generator {
	g := &Generator{
		now:          time.Now,
		abnormalRate: DefaultAbnormalRate,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.rng == nil {
		g.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return g
}

// Generate produces one reading of the given type for a patient.
func (g *Generator) Generate(patientID string, t VitalType) (Reading, error) {
	r, err := RangeFor(t)
	if err != nil {
		return Reading{}, err
	}

	band := r.Normal
	if g.rng.Float64() < g.abnormalRate {
		band = g.pickAbnormal(r)
	}

	return Reading{
		PatientID: patientID,
		Type:      t,
		Value:     g.draw(band, r.Precision),
		Unit:      r.Unit,
		Timestamp: g.now().UTC().Format(TimestampLayout),
	}, nil
}

// BuildBatch produces one reading per supported type, in declaration order.
func (g *Generator) BuildBatch(patientID string) []Reading {
	batch := make([]Reading, 0, len(allTypes))
	for _, t := range allTypes {
		// allTypes only holds configured types.
		reading, _ := g.Generate(patientID, t)
		batch = append(batch, reading)
	}
	return batch
}

func (g *Generator) pickAbnormal(r VitalRange) Band {
	switch {
	case r.AbnormalLow != nil && r.AbnormalHigh != nil:
		if g.rng.Intn(2) == 0 {
			return *r.AbnormalLow
		}
		return *r.AbnormalHigh
	case r.AbnormalLow != nil:
		return *r.AbnormalLow
	case r.AbnormalHigh != nil:
		return *r.AbnormalHigh
	}
	return r.Normal
}

// draw returns a uniform value inside b. Whole-number types use an inclusive
// integer draw; others are rounded to precision decimals.
func (g *Generator) draw(b Band, precision int) float64 {
	if precision == 0 {
		lo, hi := int(math.Ceil(b.Min)), int(math.Floor(b.Max))
		return float64(lo + g.rng.Intn(hi-lo+1))
	}
	v := b.Min + g.rng.Float64()*(b.Max-b.Min)
	scale := math.Pow(10, float64(precision))
	v = math.Round(v*scale) / scale
	// Rounding may step just outside the band edges.
	return math.Min(math.Max(v, b.Min), b.Max)
}
