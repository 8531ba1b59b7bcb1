package ews

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Sapang3/vision-crowd/internal/contracts"
)

func testThresholds() Thresholds {
	return Thresholds{
		EnterYellow: 0.40, EnterOrange: 0.60, EnterRed: 0.75,
		ExitYellow: 0.35, ExitOrange: 0.55, ExitRed: 0.70,
	}
}

func TestAlertMachine_InstantUpgrades(t *testing.T) {
	m := NewAlertMachine(testThresholds())
	assert.Equal(t, contracts.LevelGreen, m.Level())

	assert.Equal(t, contracts.LevelGreen, m.Step(0.39))
	assert.Equal(t, contracts.LevelYellow, m.Step(0.40))
	assert.Equal(t, contracts.LevelOrange, m.Step(0.60))
	assert.Equal(t, contracts.LevelRed, m.Step(0.75))
}

func TestAlertMachine_SkipsLevelsUpward(t *testing.T) {
	m := NewAlertMachine(testThresholds())
	assert.Equal(t, contracts.LevelRed, m.Step(0.92))
}

func TestAlertMachine_HysteresisHoldsNearBoundary(t *testing.T) {
	m := NewAlertMachine(testThresholds())

	assert.Equal(t, contracts.LevelOrange, m.Step(0.62))
	// 0.58 is below the Orange rising threshold but above its fall-back:
	// the level must hold.
	assert.Equal(t, contracts.LevelOrange, m.Step(0.58))
	assert.Equal(t, contracts.LevelOrange, m.Step(0.559))
	// Below the 0.55 fall-back the downgrade is taken; 0.50 still clears
	// the Yellow rising threshold, so the target is Yellow.
	assert.Equal(t, contracts.LevelYellow, m.Step(0.50))
}

func TestAlertMachine_DowngradeRequiresClearingEveryLevel(t *testing.T) {
	m := NewAlertMachine(testThresholds())
	m.Step(0.80) // Red

	// Target Green, but 0.57 is above the Orange fall-back: hold Red.
	assert.Equal(t, contracts.LevelRed, m.Step(0.57))
	// 0.30 is below every fall-back: drop straight to Green.
	assert.Equal(t, contracts.LevelGreen, m.Step(0.30))
}

func TestAlertMachine_NoFlapAroundRisingThreshold(t *testing.T) {
	m := NewAlertMachine(testThresholds())
	m.Step(0.61)

	levels := make(map[contracts.AlertLevel]bool)
	for i := 0; i < 20; i++ {
		r := 0.58
		if i%2 == 0 {
			r = 0.605
		}
		levels[m.Step(r)] = true
	}
	assert.Len(t, levels, 1, "oscillation near the boundary must not change level")
	assert.True(t, levels[contracts.LevelOrange])
}

func TestAlertMachine_MalformedScoresClamped(t *testing.T) {
	m := NewAlertMachine(testThresholds())

	assert.Equal(t, contracts.LevelRed, m.Step(42.0))
	assert.Equal(t, contracts.LevelGreen, m.Step(-3.0))
	assert.Equal(t, contracts.LevelGreen, m.Step(math.NaN()))
}

func TestAlertMachine_MonotoneInScore(t *testing.T) {
	// For a single step from Green, a higher score never yields a lower level.
	prev := contracts.LevelGreen
	for r := 0.0; r <= 1.0; r += 0.01 {
		m := NewAlertMachine(testThresholds())
		level := m.Step(r)
		assert.GreaterOrEqual(t, int(level), int(prev), "score %.2f", r)
		prev = level
	}
}
