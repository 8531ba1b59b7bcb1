package ews

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Sapang3/vision-crowd/internal/contracts"
)

func offPeakNoon() time.Time {
	return time.Date(2028, time.April, 3, 12, 0, 0, 0, time.UTC)
}

func goodSample() contracts.RawSample {
	return contracts.RawSample{
		Timestamp:        offPeakNoon(),
		TempC:            28,
		Humidity:         65,
		Density:          1.5,
		Speed:            0.9,
		Attitude:         0.3,
		SubjectiveNorm:   0.4,
		PerceivedControl: 0.6,
	}
}

func TestNormalize_IndicesAlwaysBounded(t *testing.T) {
	n := newNormalizer(DefaultConfig().Normalizer)
	rng := rand.New(rand.NewSource(7))

	at := offPeakNoon()
	for i := 0; i < 2000; i++ {
		variance := rng.Float64() * 2
		s := contracts.RawSample{
			Timestamp:        at,
			TempC:            -40 + rng.Float64()*120,
			Humidity:         -20 + rng.Float64()*160,
			Density:          -1 + rng.Float64()*25,
			Speed:            -1 + rng.Float64()*12,
			SpeedVar:         &variance,
			Attitude:         -1 + rng.Float64()*3,
			SubjectiveNorm:   -1 + rng.Float64()*3,
			PerceivedControl: -1 + rng.Float64()*3,
		}
		if rng.Intn(3) == 0 {
			s.Anxiety = &contracts.AnxietySignals{
				PushRate:  rng.Float64() * 30,
				ShoutRate: rng.Float64() * 40,
				NearFalls: rng.Float64() * 20,
			}
		}
		ix, _ := n.Normalize(s, at.Add(time.Duration(i)*time.Hour))
		for name, v := range map[string]float64{
			"CAI": ix.CAI, "CDI": ix.CDI, "THI": ix.THI, "TI": ix.TI,
			"EI": ix.EI, "ATI": ix.ATI, "SNI": ix.SNI, "PCI": ix.PCI,
		} {
			assert.GreaterOrEqual(t, v, 0.0, name)
			assert.LessOrEqual(t, v, 1.0, name)
		}
	}
}

func TestNormalize_THI(t *testing.T) {
	n := newNormalizer(DefaultConfig().Normalizer)

	// 35C at 80% RH: raw THI 32.745, past the danger bound.
	s := goodSample()
	s.TempC, s.Humidity = 35, 80
	ix, degraded := n.Normalize(s, offPeakNoon())
	assert.False(t, degraded)
	assert.Equal(t, 1.0, ix.THI)

	// 20C at 50% RH: raw THI 18.49, comfortable.
	s.TempC, s.Humidity = 20, 50
	ix, _ = n.Normalize(s, offPeakNoon())
	assert.Equal(t, 0.0, ix.THI)

	// 28C at 65% RH sits inside the band.
	s.TempC, s.Humidity = 28, 65
	ix, _ = n.Normalize(s, offPeakNoon())
	raw := 28 - (0.55-0.0055*65)*(28-14.5)
	assert.InDelta(t, (raw-22.0)/10.0, ix.THI, 1e-9)
}

func TestNormalize_CDI(t *testing.T) {
	n := newNormalizer(DefaultConfig().Normalizer)

	variance := 0.1
	s := goodSample()
	s.Density, s.Speed, s.SpeedVar = 2.0, 0.6, &variance
	ix, _ := n.Normalize(s, offPeakNoon())
	// density band 0.40, slowness 0.5, variance 0.2 -> 0.5*0.40+0.3*0.2+0.2*0.5
	assert.InDelta(t, 0.36, ix.CDI, 1e-9)

	// Dense standstill with heavy turbulence pins CDI high.
	variance = 0.5
	s.Density, s.Speed = 5.0, 0.05
	ix, _ = n.Normalize(s, offPeakNoon())
	assert.Greater(t, ix.CDI, 0.9)
}

func TestNormalize_CAIFallbacks(t *testing.T) {
	n := newNormalizer(DefaultConfig().Normalizer)
	at := offPeakNoon()

	s := goodSample()
	s.Density, s.Speed = 2.5, 0.4

	// No variability signal: density/slowness fallback.
	ix, _ := n.Normalize(s, at)
	dn := 0.40 + 0.35*(0.5/1.5)
	sn := 1.0 - 0.4/1.2
	assert.InDelta(t, 0.6*dn+0.4*sn, ix.CAI, 1e-9)

	// Variance present: volatility formula takes over.
	variance := 0.25
	s.SpeedVar = &variance
	ix, _ = n.Normalize(s, at)
	assert.InDelta(t, 0.45*0.5+0.35*dn+0.2*sn, ix.CAI, 1e-9)

	// Anxiety observations dominate when available.
	s.Anxiety = &contracts.AnxietySignals{PushRate: 4, ShoutRate: 8, NearFalls: 2}
	ix, _ = n.Normalize(s, at)
	base := 0.4*0.4 + 0.3*0.4 + 0.3*0.2
	assert.InDelta(t, base+0.25*dn, ix.CAI, 1e-9)
}

func TestNormalize_TimeIndex(t *testing.T) {
	n := newNormalizer(DefaultConfig().Normalizer)
	s := goodSample()

	day := time.Date(2028, time.April, 3, 0, 0, 0, 0, time.UTC)

	// Noon: off-peak, away from every window edge.
	ix, _ := n.Normalize(s, day.Add(12*time.Hour))
	assert.InDelta(t, 0.1, ix.TI, 1e-9)

	// 07:00 is inside the morning window and on a shoulder of its start.
	ix, _ = n.Normalize(s, day.Add(7*time.Hour))
	assert.InDelta(t, 0.7, ix.TI, 1e-9)

	// 02:00 is the shoulder of the pre-dawn window.
	ix, _ = n.Normalize(s, day.Add(2*time.Hour))
	assert.InDelta(t, 0.2, ix.TI, 1e-9)
}

func TestNormalize_EventIndex(t *testing.T) {
	cfg := DefaultConfig().Normalizer
	start := time.Date(2028, time.April, 8, 3, 0, 0, 0, time.UTC)
	cfg.Calendar = []CalendarEntry{
		{Start: start, End: start.Add(9 * time.Hour), Intensity: 0.9},
		{Start: start.Add(2 * time.Hour), End: start.Add(4 * time.Hour), Intensity: 0.5},
	}
	n := newNormalizer(cfg)
	s := goodSample()

	// Overlap takes the strongest active entry.
	ix, _ := n.Normalize(s, start.Add(3*time.Hour))
	assert.InDelta(t, 0.9, ix.EI, 1e-9)

	// Outside every entry the baseline applies.
	ix, _ = n.Normalize(s, start.Add(48*time.Hour))
	assert.InDelta(t, cfg.EventBaseline, ix.EI, 1e-9)
}

func TestNormalize_BehavioralClampedDefensively(t *testing.T) {
	n := newNormalizer(DefaultConfig().Normalizer)
	s := goodSample()
	s.Attitude, s.SubjectiveNorm, s.PerceivedControl = 1.08, -0.04, 0.97

	ix, degraded := n.Normalize(s, offPeakNoon())
	assert.False(t, degraded, "slight overshoot is noise, not a defect")
	assert.Equal(t, 1.0, ix.ATI)
	assert.Equal(t, 0.0, ix.SNI)
	assert.InDelta(t, 0.97, ix.PCI, 1e-9)
}

func TestNormalize_LastKnownGoodSubstitution(t *testing.T) {
	n := newNormalizer(DefaultConfig().Normalizer)
	at := offPeakNoon()

	// First sample already broken: neutral default stands in.
	s := goodSample()
	s.TempC = math.NaN()
	ix, degraded := n.Normalize(s, at)
	assert.True(t, degraded)
	firstTHI := ix.THI

	// A good reading replaces the remembered value.
	s.TempC = 36
	ix, degraded = n.Normalize(s, at)
	assert.False(t, degraded)
	hotTHI := ix.THI
	assert.Greater(t, hotTHI, firstTHI)

	// The next defect reuses the last good reading, not the default.
	s.TempC = 999
	ix, degraded = n.Normalize(s, at)
	assert.True(t, degraded)
	assert.Equal(t, hotTHI, ix.THI)
}
