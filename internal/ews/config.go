// Package ews implements the crowd early-warning core: index normalization,
// DANP-weighted composite risk, the behavioral-intention blend, the
// hysteresis alert state machine and the in-memory snapshot history.
package ews

import (
	"fmt"
	"math"
	"time"
)

// weightTolerance is how far a weight vector may drift from summing to 1
// before configuration is rejected.
const weightTolerance = 1e-6

// Weights are the DANP limit weights combining the five physical indices
// into the physical risk score.
type Weights struct {
	CAI float64
	CDI float64
	THI float64
	TI  float64
	EI  float64
}

// BehaviorWeights combine the three behavioral sub-indices into the
// behavioral-intention score.
type BehaviorWeights struct {
	Attitude         float64
	SubjectiveNorm   float64
	PerceivedControl float64
}

// Blend splits the extended risk score between the physical composite and
// the behavioral intention.
type Blend struct {
	Physical   float64
	Behavioral float64
}

// Thresholds define the alert ladder. Enter* are the rising thresholds;
// Exit* are the strictly lower fall-back thresholds that must be crossed
// before the corresponding level may be left downward.
type Thresholds struct {
	EnterYellow float64
	EnterOrange float64
	EnterRed    float64

	ExitYellow float64
	ExitOrange float64
	ExitRed    float64
}

// PeakWindow is a daily [Start,End) hour range with elevated temporal risk,
// e.g. a procession slot.
type PeakWindow struct {
	Start int
	End   int
}

// CalendarEntry assigns an event intensity to an absolute time range.
type CalendarEntry struct {
	Start     time.Time
	End       time.Time
	Intensity float64
}

// NormalizerConfig holds the physical bounds the index normalizer rescales
// against.
type NormalizerConfig struct {
	// THI comfort/danger bounds in THI units (Celsius-like).
	ComfortTHI float64
	DangerTHI  float64

	// FreeFlowSpeed is the unobstructed walking speed in m/s.
	FreeFlowSpeed float64

	// SpeedVarianceBand is the variance in (m/s)^2 treated as maximal
	// turbulence.
	SpeedVarianceBand float64

	PeakWindows []PeakWindow

	// Calendar drives EI; when no entry is active EventBaseline applies.
	Calendar      []CalendarEntry
	EventBaseline float64
}

// Config is the full engine configuration, injected once at startup.
type Config struct {
	Weights    Weights
	Behavior   BehaviorWeights
	Blend      Blend
	Thresholds Thresholds
	Normalizer NormalizerConfig

	// HistoryCapacity is the ring-buffer size N.
	HistoryCapacity int

	// Now is the injected clock used for the time index. Defaults to
	// time.Now when nil.
	Now func() time.Time
}

// DefaultConfig returns the calibration shipped with the platform: DANP
// limit weights from the prior weighting study, TPB behavior weights
// 0.3/0.5/0.2, a 0.6/0.4 blend and the 0.40/0.60/0.75 alert ladder with
// fall-backs 0.05 below each rising threshold. History capacity covers
// 24 hours at the 5-second feed cadence.
func DefaultConfig() Config {
	return Config{
		Weights: Weights{
			CAI: 0.18841,
			CDI: 0.22613,
			THI: 0.12954,
			TI:  0.21530,
			EI:  0.24063,
		},
		Behavior: BehaviorWeights{
			Attitude:         0.3,
			SubjectiveNorm:   0.5,
			PerceivedControl: 0.2,
		},
		Blend: Blend{Physical: 0.6, Behavioral: 0.4},
		Thresholds: Thresholds{
			EnterYellow: 0.40,
			EnterOrange: 0.60,
			EnterRed:    0.75,
			ExitYellow:  0.35,
			ExitOrange:  0.55,
			ExitRed:     0.70,
		},
		Normalizer: NormalizerConfig{
			ComfortTHI:        22.0,
			DangerTHI:         32.0,
			FreeFlowSpeed:     1.2,
			SpeedVarianceBand: 0.5,
			PeakWindows: []PeakWindow{
				{Start: 3, End: 6},
				{Start: 6, End: 10},
				{Start: 17, End: 20},
			},
			EventBaseline: 0.2,
		},
		HistoryCapacity: 17280,
	}
}

// Validate rejects inconsistent configuration. An engine refuses to start
// with a broken weight vector or alert ladder rather than score with it.
func (c Config) Validate() error {
	if err := validateWeightVector("index weights", []float64{
		c.Weights.CAI, c.Weights.CDI, c.Weights.THI, c.Weights.TI, c.Weights.EI,
	}); err != nil {
		return err
	}
	if err := validateWeightVector("behavior weights", []float64{
		c.Behavior.Attitude, c.Behavior.SubjectiveNorm, c.Behavior.PerceivedControl,
	}); err != nil {
		return err
	}
	if err := validateWeightVector("risk blend", []float64{
		c.Blend.Physical, c.Blend.Behavioral,
	}); err != nil {
		return err
	}
	if err := c.Thresholds.validate(); err != nil {
		return err
	}
	if c.HistoryCapacity <= 0 {
		return fmt.Errorf("history capacity must be positive, got %d", c.HistoryCapacity)
	}
	if c.Normalizer.DangerTHI <= c.Normalizer.ComfortTHI {
		return fmt.Errorf("THI danger bound %.2f must exceed comfort bound %.2f",
			c.Normalizer.DangerTHI, c.Normalizer.ComfortTHI)
	}
	if c.Normalizer.FreeFlowSpeed <= 0 {
		return fmt.Errorf("free-flow speed must be positive, got %.3f", c.Normalizer.FreeFlowSpeed)
	}
	if c.Normalizer.SpeedVarianceBand <= 0 {
		return fmt.Errorf("speed variance band must be positive, got %.3f", c.Normalizer.SpeedVarianceBand)
	}
	for _, w := range c.Normalizer.PeakWindows {
		if w.Start < 0 || w.End > 24 || w.Start >= w.End {
			return fmt.Errorf("peak window %d-%d is not a valid hour range", w.Start, w.End)
		}
	}
	for _, e := range c.Normalizer.Calendar {
		if !e.End.After(e.Start) {
			return fmt.Errorf("calendar entry ending %s does not follow its start", e.End)
		}
		if e.Intensity < 0 || e.Intensity > 1 {
			return fmt.Errorf("calendar intensity %.3f outside [0,1]", e.Intensity)
		}
	}
	if c.Normalizer.EventBaseline < 0 || c.Normalizer.EventBaseline > 1 {
		return fmt.Errorf("event baseline %.3f outside [0,1]", c.Normalizer.EventBaseline)
	}
	return nil
}

func validateWeightVector(name string, weights []float64) error {
	sum := 0.0
	for _, w := range weights {
		if math.IsNaN(w) || w < 0 {
			return fmt.Errorf("%s contain negative or NaN entry %.5f", name, w)
		}
		sum += w
	}
	if math.Abs(sum-1.0) > weightTolerance {
		return fmt.Errorf("%s sum to %.6f, expected 1", name, sum)
	}
	return nil
}

func (t Thresholds) validate() error {
	if !(t.EnterYellow < t.EnterOrange && t.EnterOrange < t.EnterRed) {
		return fmt.Errorf("rising thresholds %.2f/%.2f/%.2f are not strictly increasing",
			t.EnterYellow, t.EnterOrange, t.EnterRed)
	}
	if t.EnterYellow <= 0 || t.EnterRed >= 1 {
		return fmt.Errorf("rising thresholds must lie inside (0,1)")
	}
	pairs := []struct {
		name        string
		exit, enter float64
	}{
		{"yellow", t.ExitYellow, t.EnterYellow},
		{"orange", t.ExitOrange, t.EnterOrange},
		{"red", t.ExitRed, t.EnterRed},
	}
	for _, p := range pairs {
		if p.exit >= p.enter {
			return fmt.Errorf("%s fall-back threshold %.2f must be strictly below rising threshold %.2f",
				p.name, p.exit, p.enter)
		}
		if p.exit < 0 {
			return fmt.Errorf("%s fall-back threshold %.2f is negative", p.name, p.exit)
		}
	}
	if !(t.ExitYellow < t.ExitOrange && t.ExitOrange < t.ExitRed) {
		return fmt.Errorf("fall-back thresholds %.2f/%.2f/%.2f are not strictly increasing",
			t.ExitYellow, t.ExitOrange, t.ExitRed)
	}
	return nil
}
