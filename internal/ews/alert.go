package ews

import (
	"github.com/Sapang3/vision-crowd/internal/contracts"
)

// AlertMachine converts a stream of extended risk scores into a discrete
// alert level with threshold hysteresis: upgrades are instantaneous, a
// downgrade is only taken once the score has fallen below the fall-back
// threshold of every level being left. This keeps a score oscillating just
// under a rising threshold from flapping the level.
//
// The machine is deterministic (next level is a function of the current
// level and the score alone) and never errors; scores are clamped to [0,1]
// before evaluation. It is not safe for concurrent use; the engine guards
// it with its own lock.
type AlertMachine struct {
	thresholds Thresholds
	level      contracts.AlertLevel
}

// NewAlertMachine starts at Green. The thresholds are assumed validated.
func NewAlertMachine(t Thresholds) *AlertMachine {
	return &AlertMachine{thresholds: t, level: contracts.LevelGreen}
}

// Level returns the current alert level without advancing the machine.
func (m *AlertMachine) Level() contracts.AlertLevel {
	return m.level
}

// Step feeds one extended risk score and returns the resulting level.
func (m *AlertMachine) Step(risk float64) contracts.AlertLevel {
	r := clamp01(risk)
	target := m.target(r)

	switch {
	case target > m.level:
		// Safety bias: over-alerting beats a delayed escalation.
		m.level = target
	case target < m.level:
		if m.clearedDown(r, target) {
			m.level = target
		}
	}
	return m.level
}

// target is the highest level whose rising threshold the score reaches.
func (m *AlertMachine) target(r float64) contracts.AlertLevel {
	t := m.thresholds
	switch {
	case r >= t.EnterRed:
		return contracts.LevelRed
	case r >= t.EnterOrange:
		return contracts.LevelOrange
	case r >= t.EnterYellow:
		return contracts.LevelYellow
	default:
		return contracts.LevelGreen
	}
}

// clearedDown reports whether the score is below the fall-back threshold
// of every level strictly above the downgrade target.
func (m *AlertMachine) clearedDown(r float64, target contracts.AlertLevel) bool {
	for level := m.level; level > target; level-- {
		if r >= m.exitThreshold(level) {
			return false
		}
	}
	return true
}

func (m *AlertMachine) exitThreshold(level contracts.AlertLevel) float64 {
	switch level {
	case contracts.LevelRed:
		return m.thresholds.ExitRed
	case contracts.LevelOrange:
		return m.thresholds.ExitOrange
	default:
		return m.thresholds.ExitYellow
	}
}
