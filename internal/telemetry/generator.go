// Package telemetry fabricates the rover's sensor readings. Nothing here talks to
// hardware: live samples are uniform random draws and history is a set of fixed
// trigonometric curves with a noisy air-quality channel.
package telemetry

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/kjstillabower/rover-telemetry-service/internal/clock"
	"github.com/kjstillabower/rover-telemetry-service/internal/models"
)

const (
	// HistoryPoints is the number of one-minute points in a HistorySeries.
	HistoryPoints = 60

	// LastSeenLayout renders UTC times as "2006-01-02 15:04:05 UTC".
	LastSeenLayout = "2006-01-02 15:04:05 MST"
	// LabelLayout renders history labels as "HH:MM".
	LabelLayout = "15:04"

	liveMode = "manual"
)

// RandFunc returns a value in [0, 1). It must be safe for concurrent use when the
// Generator is shared between requests.
type RandFunc func() float64

// Generator builds LiveSample and HistorySeries values from a clock and a random source.
// It holds no state between calls.
type Generator struct {
	clock clock.Clock
	rand  RandFunc
}

// NewGenerator returns a Generator. A nil clock uses the system clock; a nil rand uses
// the math/rand/v2 top-level source, which is safe for concurrent use.
func NewGenerator(c clock.Clock, r RandFunc) *Generator {
	if c == nil {
		c = clock.System{}
	}
	if r == nil {
		r = rand.Float64
	}
	return &Generator{clock: c, rand: r}
}

// Live returns a fresh sample. Each numeric field is drawn independently.
func (g *Generator) Live() models.LiveSample {
	now := g.clock.Now().UTC()
	return models.LiveSample{
		Power:             true,
		Mode:              liveMode,
		LastSeen:          now.Format(LastSeenLayout),
		ForwardDistanceCM: uniform2(100, 80, g.rand()),
		TemperatureC:      uniform2(22, 6, g.rand()),
		HumidityPercent:   uniform2(40, 20, g.rand()),
		AirQualityRaw:     uniformInt(30000, 10000, g.rand()),
	}
}

// History returns HistoryPoints points ending at the current minute.
// Index 0 is the oldest point, HistoryPoints-1 is the current minute.
func (g *Generator) History() models.HistorySeries {
	end := g.clock.Now().UTC().Truncate(time.Minute)
	s := models.HistorySeries{
		Labels:          make([]string, HistoryPoints),
		TemperatureC:    make([]float64, HistoryPoints),
		HumidityPercent: make([]float64, HistoryPoints),
		AirQualityRaw:   make([]int, HistoryPoints),
	}
	for i := 0; i < HistoryPoints; i++ {
		offset := time.Duration(HistoryPoints-1-i) * time.Minute
		s.Labels[i] = end.Add(-offset).Format(LabelLayout)
		s.TemperatureC[i] = HistoryTemperature(i)
		s.HumidityPercent[i] = HistoryHumidity(i)
		s.AirQualityRaw[i] = historyAirQuality(i, g.rand())
	}
	return s
}

// HistoryTemperature is the deterministic temperature curve at index i.
func HistoryTemperature(i int) float64 {
	return Round2(22 + 2*math.Sin(float64(i)/6))
}

// HistoryHumidity is the deterministic humidity curve at index i.
func HistoryHumidity(i int) float64 {
	return Round2(45 + 5*math.Cos(float64(i)/8))
}

// historyAirQuality adds noise in [0, 800) to the air-quality curve at index i.
func historyAirQuality(i int, r float64) int {
	return int(32000 + 1500*math.Sin(float64(i)/5) + 800*r)
}

// Round2 rounds v to two decimal places, halves away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// uniform2 maps r in [0,1) onto [lo, lo+span) rounded to two decimals. Rounding must not
// reach the open upper bound; draws that would round up to it yield the largest
// two-decimal value below it.
func uniform2(lo, span, r float64) float64 {
	out := Round2(lo + r*span)
	if out >= lo+span {
		out = Round2(lo + span - 0.01)
	}
	return out
}

// uniformInt maps r in [0,1) onto the integers [lo, lo+span).
func uniformInt(lo, span int, r float64) int {
	v := int(float64(lo) + r*float64(span))
	if v >= lo+span {
		v = lo + span - 1
	}
	return v
}
