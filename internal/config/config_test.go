package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sapang3/vision-crowd/internal/contracts"
	"github.com/Sapang3/vision-crowd/internal/ews"
)

func setEnv(t *testing.T, key, value string) {
	t.Helper()
	old, had := os.LookupEnv(key)
	os.Setenv(key, value)
	t.Cleanup(func() {
		if had {
			os.Setenv(key, old)
		} else {
			os.Unsetenv(key)
		}
	})
}

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, []string{"localhost:19092"}, cfg.KafkaBrokers)
	assert.Equal(t, "crowd.samples.raw", cfg.KafkaTopicSamples)
	assert.Equal(t, "crowd.risk.snapshots", cfg.KafkaTopicSnapshots)
	assert.Equal(t, contracts.LevelOrange, cfg.NotifyMinLevel)
	assert.Equal(t, 30*time.Minute, cfg.NotifyCooldown)
	assert.Equal(t, 17280, cfg.Engine.HistoryCapacity)
	require.NoError(t, cfg.Engine.Validate())
}

func TestLoad_Overrides(t *testing.T) {
	setEnv(t, "KAFKA_BROKERS", "k1:9092, k2:9092")
	setEnv(t, "ALERT_ENTER_ORANGE", "0.65")
	setEnv(t, "ALERT_EXIT_ORANGE", "0.58")
	setEnv(t, "HISTORY_CAPACITY", "288")
	setEnv(t, "NOTIFY_MIN_LEVEL", "red")

	cfg := Load()

	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.InDelta(t, 0.65, cfg.Engine.Thresholds.EnterOrange, 1e-9)
	assert.InDelta(t, 0.58, cfg.Engine.Thresholds.ExitOrange, 1e-9)
	assert.Equal(t, 288, cfg.Engine.HistoryCapacity)
	assert.Equal(t, contracts.LevelRed, cfg.NotifyMinLevel)
	require.NoError(t, cfg.Engine.Validate())
}

func TestLoad_BrokenLadderIsCaughtByEngineValidation(t *testing.T) {
	// Config loading itself is lenient; the engine refuses the ladder.
	setEnv(t, "ALERT_ENTER_YELLOW", "0.70")

	cfg := Load()
	require.Error(t, cfg.Engine.Validate())
}

func TestLoad_PeakWindows(t *testing.T) {
	setEnv(t, "PEAK_WINDOWS", "4-7,18-21")

	cfg := Load()
	assert.Equal(t, []ews.PeakWindow{{Start: 4, End: 7}, {Start: 18, End: 21}},
		cfg.Engine.Normalizer.PeakWindows)
}

func TestLoad_MalformedPeakWindowsFallBack(t *testing.T) {
	setEnv(t, "PEAK_WINDOWS", "dawn-ish")

	cfg := Load()
	assert.Equal(t, ews.DefaultConfig().Normalizer.PeakWindows,
		cfg.Engine.Normalizer.PeakWindows)
}

func TestLoad_EventCalendar(t *testing.T) {
	setEnv(t, "EVENT_CALENDAR",
		"2028-04-08T03:00:00Z|2028-04-08T12:00:00Z|0.9;2028-04-13T03:00:00Z|2028-04-13T12:00:00Z|0.95")

	cfg := Load()
	require.Len(t, cfg.Engine.Normalizer.Calendar, 2)
	assert.InDelta(t, 0.9, cfg.Engine.Normalizer.Calendar[0].Intensity, 1e-9)
	assert.Equal(t, time.Date(2028, time.April, 13, 3, 0, 0, 0, time.UTC),
		cfg.Engine.Normalizer.Calendar[1].Start)
	require.NoError(t, cfg.Engine.Validate())
}
