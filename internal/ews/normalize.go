package ews

import (
	"math"
	"time"

	"github.com/Sapang3/vision-crowd/internal/contracts"
)

// Neutral defaults substituted when a field is missing before any good
// value has been seen.
const (
	defaultTempC    = 25.0
	defaultHumidity = 60.0
	defaultDensity  = 0.5
	defaultSpeed    = 1.0
	defaultBehavior = 0.5
)

// Plausible sensor ranges. A reading outside its range (or NaN) is treated
// as a recoverable input defect, not a hard failure.
const (
	minTempC, maxTempC       = -20.0, 60.0
	minHumidity, maxHumidity = 0.0, 100.0
	minDensity, maxDensity   = 0.0, 20.0
	minSpeed, maxSpeed       = 0.0, 10.0
	// Behavioral inputs are pre-scaled to [0,1]; slight overshoot is noise,
	// anything past this band is a defect.
	minBehavior, maxBehavior = -0.5, 1.5
)

// normalizer maps raw measurements to the [0,1] index set. It keeps the
// last known good value per field so a single bad reading degrades the
// snapshot instead of breaking the pipeline.
type normalizer struct {
	cfg NormalizerConfig

	lastTempC    float64
	lastHumidity float64
	lastDensity  float64
	lastSpeed    float64
	lastATI      float64
	lastSNI      float64
	lastPCI      float64
}

func newNormalizer(cfg NormalizerConfig) *normalizer {
	return &normalizer{
		cfg:          cfg,
		lastTempC:    defaultTempC,
		lastHumidity: defaultHumidity,
		lastDensity:  defaultDensity,
		lastSpeed:    defaultSpeed,
		lastATI:      defaultBehavior,
		lastSNI:      defaultBehavior,
		lastPCI:      defaultBehavior,
	}
}

// Normalize derives the index set for one sample; at is the wall-clock
// instant driving the time and event indices. The second return value
// reports whether any field was substituted (degraded snapshot).
func (n *normalizer) Normalize(s contracts.RawSample, at time.Time) (contracts.IndexSet, bool) {
	degraded := false

	tempC := n.repair(&n.lastTempC, s.TempC, minTempC, maxTempC, &degraded)
	humidity := n.repair(&n.lastHumidity, s.Humidity, minHumidity, maxHumidity, &degraded)
	density := n.repair(&n.lastDensity, s.Density, minDensity, maxDensity, &degraded)
	speed := n.repair(&n.lastSpeed, s.Speed, minSpeed, maxSpeed, &degraded)
	ati := n.repair(&n.lastATI, s.Attitude, minBehavior, maxBehavior, &degraded)
	sni := n.repair(&n.lastSNI, s.SubjectiveNorm, minBehavior, maxBehavior, &degraded)
	pci := n.repair(&n.lastPCI, s.PerceivedControl, minBehavior, maxBehavior, &degraded)

	return contracts.IndexSet{
		CAI: n.crowdAnxietyIndex(s, density, speed),
		CDI: n.crowdDynamicsIndex(s, density, speed),
		THI: n.temperatureHumidityIndex(tempC, humidity),
		TI:  n.timeIndex(at.Hour()),
		EI:  n.eventIndex(at),
		ATI: clamp01(ati),
		SNI: clamp01(sni),
		PCI: clamp01(pci),
	}, degraded
}

// repair returns v when plausible, else the last known good value, and
// remembers good readings for future substitution.
func (n *normalizer) repair(last *float64, v, lo, hi float64, degraded *bool) float64 {
	if math.IsNaN(v) || v < lo || v > hi {
		*degraded = true
		return *last
	}
	*last = v
	return v
}

// temperatureHumidityIndex computes the Celsius THI
// T - (0.55 - 0.0055*RH)*(T - 14.5) and rescales it linearly between the
// configured comfort and danger bounds.
func (n *normalizer) temperatureHumidityIndex(tempC, humidity float64) float64 {
	raw := tempC - (0.55-0.0055*humidity)*(tempC-14.5)
	return clamp01((raw - n.cfg.ComfortTHI) / (n.cfg.DangerTHI - n.cfg.ComfortTHI))
}

// crowdDynamicsIndex combines density, low speed and speed variance so that
// dense, slow, turbulent flow approaches 1. Weighting: density 50%,
// turbulence 30%, low speed 20%.
func (n *normalizer) crowdDynamicsIndex(s contracts.RawSample, density, speed float64) float64 {
	variance := 0.0
	if s.SpeedVar != nil && !math.IsNaN(*s.SpeedVar) && *s.SpeedVar >= 0 {
		variance = *s.SpeedVar
	}
	dn := normalizeDensity(density)
	sn := n.normalizeSlowness(speed)
	vn := clamp01(variance / n.cfg.SpeedVarianceBand)
	return clamp01(0.5*dn + 0.3*vn + 0.2*sn)
}

// crowdAnxietyIndex scores crowd stress. With anxiety observations present
// it blends push/shout/near-fall rates (0.4/0.3/0.3 over their practical
// bands) amplified by density. Without them it falls back to flow
// volatility: speed variance, density and slowness when a variance signal
// exists, density and slowness alone otherwise.
func (n *normalizer) crowdAnxietyIndex(s contracts.RawSample, density, speed float64) float64 {
	dn := normalizeDensity(density)
	sn := n.normalizeSlowness(speed)

	if a := s.Anxiety; a != nil {
		pr := clamp01(nonNaN(a.PushRate) / 10.0)
		sr := clamp01(nonNaN(a.ShoutRate) / 20.0)
		nf := clamp01(nonNaN(a.NearFalls) / 10.0)
		base := clamp01(0.4*pr + 0.3*sr + 0.3*nf)
		return clamp01(base + 0.25*dn)
	}

	if s.SpeedVar != nil && !math.IsNaN(*s.SpeedVar) && *s.SpeedVar >= 0 {
		vn := clamp01(*s.SpeedVar / n.cfg.SpeedVarianceBand)
		return clamp01(0.45*vn + 0.35*dn + 0.2*sn)
	}

	return clamp01(0.6*dn + 0.4*sn)
}

// timeIndex scores temporal criticality for the given hour: a low base,
// a bump inside any configured peak window and a smaller bump on the
// shoulder hours around window edges.
func (n *normalizer) timeIndex(hour int) float64 {
	score := 0.1
	for _, w := range n.cfg.PeakWindows {
		if hour >= w.Start && hour < w.End {
			score += 0.5
			break
		}
	}
	for _, w := range n.cfg.PeakWindows {
		if hour == w.Start-1 || hour == w.End || hour == w.Start+1 {
			score += 0.1
			break
		}
	}
	return clamp01(score)
}

// eventIndex looks up the configured calendar; overlapping entries take the
// highest intensity, no active entry yields the baseline.
func (n *normalizer) eventIndex(at time.Time) float64 {
	intensity := n.cfg.EventBaseline
	for _, e := range n.cfg.Calendar {
		if !at.Before(e.Start) && at.Before(e.End) && e.Intensity > intensity {
			intensity = e.Intensity
		}
	}
	return clamp01(intensity)
}

// normalizeSlowness maps speed to congestion risk: free flow scores 0,
// standstill scores 1.
func (n *normalizer) normalizeSlowness(speed float64) float64 {
	capped := math.Min(math.Max(speed, 0), n.cfg.FreeFlowSpeed)
	return 1.0 - capped/n.cfg.FreeFlowSpeed
}

// normalizeDensity maps people/m^2 to risk with Fruin-inspired bands:
// <1 low, 1-2 moderate, 2-3.5 high, >3.5 severe.
func normalizeDensity(density float64) float64 {
	switch {
	case density <= 0:
		return 0
	case density <= 1.0:
		return 0.15 * density
	case density <= 2.0:
		return 0.15 + 0.25*(density-1.0)
	case density <= 3.5:
		return 0.40 + 0.35*(density-2.0)/1.5
	default:
		return 0.75 + 0.25*math.Min(1.0, (density-3.5)/1.5)
	}
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func nonNaN(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}
