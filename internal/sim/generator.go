// Package sim generates realistic crowd-sensor samples for demos and load
// tests, driven by time-of-day scenarios with random festival and
// emergency spikes.
package sim

import (
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/Sapang3/vision-crowd/internal/contracts"
)

type scenario struct {
	name      string
	density   band
	speed     band
	speedVar  band
	pushRate  band
	shoutRate band
	nearFalls band
	attitude  band
	norm      band
	control   band
}

// band is a mean with Gaussian spread; samples are drawn as mean + sigma*N(0,1).
type band struct {
	mean  float64
	sigma float64
}

var scenarios = map[string]scenario{
	"normal": {
		name:    "normal",
		density: band{1.2, 0.3}, speed: band{1.0, 0.15}, speedVar: band{0.04, 0.02},
		pushRate: band{0.8, 0.6}, shoutRate: band{2, 1.5}, nearFalls: band{0.3, 0.3},
		attitude: band{0.3, 0.12}, norm: band{0.4, 0.12}, control: band{0.6, 0.12},
	},
	"morning_rush": {
		name:    "morning_rush",
		density: band{2.5, 0.4}, speed: band{0.6, 0.2}, speedVar: band{0.1, 0.04},
		pushRate: band{4, 2}, shoutRate: band{8, 3}, nearFalls: band{2, 1.5},
		attitude: band{0.6, 0.18}, norm: band{0.7, 0.12}, control: band{0.4, 0.12},
	},
	"evening_rush": {
		name:    "evening_rush",
		density: band{2.6, 0.4}, speed: band{0.55, 0.2}, speedVar: band{0.11, 0.04},
		pushRate: band{4.5, 2}, shoutRate: band{9, 3}, nearFalls: band{2.2, 1.5},
		attitude: band{0.62, 0.18}, norm: band{0.72, 0.12}, control: band{0.38, 0.12},
	},
	"festival_peak": {
		name:    "festival_peak",
		density: band{3.5, 0.6}, speed: band{0.3, 0.15}, speedVar: band{0.15, 0.06},
		pushRate: band{8, 3}, shoutRate: band{15, 4}, nearFalls: band{5, 2},
		attitude: band{0.8, 0.12}, norm: band{0.85, 0.1}, control: band{0.2, 0.1},
	},
	"emergency_situation": {
		name:    "emergency_situation",
		density: band{4.2, 0.5}, speed: band{0.1, 0.1}, speedVar: band{0.2, 0.08},
		pushRate: band{12, 4}, shoutRate: band{20, 6}, nearFalls: band{8, 3},
		attitude: band{0.9, 0.08}, norm: band{0.95, 0.05}, control: band{0.05, 0.05},
	},
}

// Generator produces a stream of samples for one zone. Not safe for
// concurrent use.
type Generator struct {
	rng  *rand.Rand
	zone string
}

func NewGenerator(seed int64, zone string) *Generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{rng: rand.New(rand.NewSource(seed)), zone: zone}
}

// Next draws one sample for the given instant. Rush hours dominate their
// windows; festival peaks and emergencies appear as low-probability spikes.
func (g *Generator) Next(now time.Time) contracts.RawSample {
	sc := g.pick(now.Hour())

	// Daily temperature swing with noise; hot scenarios run hotter.
	baseTemp := 20 + 10*math.Sin(2*math.Pi*float64(now.Hour())/24)
	tempC := clampRange(baseTemp+g.rng.NormFloat64()*4+sc.intensity()*8, 5, 40)
	humidity := clampRange(70-(tempC-20)*2+g.rng.NormFloat64()*8, 30, 95)

	speedVar := clampRange(g.draw(sc.speedVar), 0.01, 0.3)
	return contracts.RawSample{
		ID:        uuid.NewString(),
		Timestamp: now,
		Zone:      g.zone,
		Phase:     sc.name,
		TempC:     tempC,
		Humidity:  humidity,
		Density:   clampRange(g.draw(sc.density), 0.1, 5.0),
		Speed:     clampRange(g.draw(sc.speed), 0.05, 1.5),
		SpeedVar:  &speedVar,
		Anxiety: &contracts.AnxietySignals{
			PushRate:  clampRange(g.draw(sc.pushRate), 0, 25),
			ShoutRate: clampRange(g.draw(sc.shoutRate), 0, 30),
			NearFalls: clampRange(g.draw(sc.nearFalls), 0, 15),
		},
		Attitude:         clampRange(g.draw(sc.attitude), 0, 1),
		SubjectiveNorm:   clampRange(g.draw(sc.norm), 0, 1),
		PerceivedControl: clampRange(g.draw(sc.control), 0, 1),
	}
}

func (g *Generator) pick(hour int) scenario {
	switch {
	case g.rng.Float64() < 0.05:
		return scenarios["emergency_situation"]
	case g.rng.Float64() < 0.10:
		return scenarios["festival_peak"]
	case hour >= 6 && hour <= 10:
		return scenarios["morning_rush"]
	case hour >= 17 && hour <= 21:
		return scenarios["evening_rush"]
	default:
		return scenarios["normal"]
	}
}

func (g *Generator) draw(b band) float64 {
	return b.mean + g.rng.NormFloat64()*b.sigma
}

// intensity loosely tracks how hard a scenario stresses the site; used only
// for the environmental drift.
func (s scenario) intensity() float64 {
	switch s.name {
	case "emergency_situation":
		return 0.9
	case "festival_peak":
		return 0.8
	case "evening_rush":
		return 0.5
	case "morning_rush":
		return 0.4
	default:
		return 0.1
	}
}

func clampRange(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
