// Package config loads service configuration from the environment, with a
// .env file honored for local development. Malformed numeric values fall
// back to defaults; the engine's own validation is the fatal gate for an
// inconsistent weight vector or alert ladder.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/Sapang3/vision-crowd/internal/contracts"
	"github.com/Sapang3/vision-crowd/internal/ews"
)

type Config struct {
	HTTPAddr string

	KafkaBrokers        []string
	KafkaTopicSamples   string
	KafkaTopicSnapshots string
	ConsumerGroupPrefix string

	// MQTT bridge is enabled only when a broker URL is set.
	MQTTBrokerURL string
	MQTTTopic     string
	MQTTClientID  string

	SimulatorTick time.Duration
	SimulatorSeed int64
	Zone          string

	LogLevel  string
	LogFormat string

	// Notifier settings.
	WebhookURL     string
	NotifyMinLevel contracts.AlertLevel
	NotifyCooldown time.Duration

	Engine ews.Config
}

func Load() Config {
	// Ignore a missing .env; environment variables win regardless.
	_ = godotenv.Load()

	level, err := contracts.ParseAlertLevel(getEnv("NOTIFY_MIN_LEVEL", "orange"))
	if err != nil {
		level = contracts.LevelOrange
	}

	return Config{
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),

		KafkaBrokers:        splitCSV(getEnv("KAFKA_BROKERS", "localhost:19092")),
		KafkaTopicSamples:   getEnv("KAFKA_TOPIC_SAMPLES", "crowd.samples.raw"),
		KafkaTopicSnapshots: getEnv("KAFKA_TOPIC_SNAPSHOTS", "crowd.risk.snapshots"),
		ConsumerGroupPrefix: getEnv("CONSUMER_GROUP_PREFIX", "crowd-ews"),

		MQTTBrokerURL: getEnv("MQTT_BROKER_URL", ""),
		MQTTTopic:     getEnv("MQTT_TOPIC", "crowd/+/samples"),
		MQTTClientID:  getEnv("MQTT_CLIENT_ID", "crowd-ews-ingest"),

		SimulatorTick: time.Duration(getEnvInt("SIMULATOR_TICK_SECONDS", 0)) * time.Second,
		SimulatorSeed: int64(getEnvInt("SIMULATOR_SEED", 0)),
		Zone:          getEnv("ZONE", "ram-ghat"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		WebhookURL:     getEnv("WEBHOOK_URL", ""),
		NotifyMinLevel: level,
		NotifyCooldown: time.Duration(getEnvInt("NOTIFY_COOLDOWN_MINUTES", 30)) * time.Minute,

		Engine: loadEngine(),
	}
}

// loadEngine overlays environment overrides on the default calibration.
func loadEngine() ews.Config {
	cfg := ews.DefaultConfig()

	cfg.Weights.CAI = getEnvFloat("RISK_WEIGHT_CAI", cfg.Weights.CAI)
	cfg.Weights.CDI = getEnvFloat("RISK_WEIGHT_CDI", cfg.Weights.CDI)
	cfg.Weights.THI = getEnvFloat("RISK_WEIGHT_THI", cfg.Weights.THI)
	cfg.Weights.TI = getEnvFloat("RISK_WEIGHT_TI", cfg.Weights.TI)
	cfg.Weights.EI = getEnvFloat("RISK_WEIGHT_EI", cfg.Weights.EI)

	cfg.Behavior.Attitude = getEnvFloat("BI_WEIGHT_ATI", cfg.Behavior.Attitude)
	cfg.Behavior.SubjectiveNorm = getEnvFloat("BI_WEIGHT_SNI", cfg.Behavior.SubjectiveNorm)
	cfg.Behavior.PerceivedControl = getEnvFloat("BI_WEIGHT_PCI", cfg.Behavior.PerceivedControl)

	cfg.Blend.Physical = getEnvFloat("BLEND_PHYSICAL", cfg.Blend.Physical)
	cfg.Blend.Behavioral = getEnvFloat("BLEND_BEHAVIORAL", cfg.Blend.Behavioral)

	cfg.Thresholds.EnterYellow = getEnvFloat("ALERT_ENTER_YELLOW", cfg.Thresholds.EnterYellow)
	cfg.Thresholds.EnterOrange = getEnvFloat("ALERT_ENTER_ORANGE", cfg.Thresholds.EnterOrange)
	cfg.Thresholds.EnterRed = getEnvFloat("ALERT_ENTER_RED", cfg.Thresholds.EnterRed)
	cfg.Thresholds.ExitYellow = getEnvFloat("ALERT_EXIT_YELLOW", cfg.Thresholds.ExitYellow)
	cfg.Thresholds.ExitOrange = getEnvFloat("ALERT_EXIT_ORANGE", cfg.Thresholds.ExitOrange)
	cfg.Thresholds.ExitRed = getEnvFloat("ALERT_EXIT_RED", cfg.Thresholds.ExitRed)

	cfg.Normalizer.ComfortTHI = getEnvFloat("THI_COMFORT", cfg.Normalizer.ComfortTHI)
	cfg.Normalizer.DangerTHI = getEnvFloat("THI_DANGER", cfg.Normalizer.DangerTHI)
	cfg.Normalizer.FreeFlowSpeed = getEnvFloat("FREE_FLOW_SPEED", cfg.Normalizer.FreeFlowSpeed)
	cfg.Normalizer.SpeedVarianceBand = getEnvFloat("SPEED_VARIANCE_BAND", cfg.Normalizer.SpeedVarianceBand)
	cfg.Normalizer.EventBaseline = getEnvFloat("EVENT_BASELINE", cfg.Normalizer.EventBaseline)

	if windows, ok := parsePeakWindows(os.Getenv("PEAK_WINDOWS")); ok {
		cfg.Normalizer.PeakWindows = windows
	}
	if calendar, ok := parseCalendar(os.Getenv("EVENT_CALENDAR")); ok {
		cfg.Normalizer.Calendar = calendar
	}

	cfg.HistoryCapacity = getEnvInt("HISTORY_CAPACITY", cfg.HistoryCapacity)

	return cfg
}

// parsePeakWindows reads "3-6,6-10,17-20" style hour ranges.
func parsePeakWindows(raw string) ([]ews.PeakWindow, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false
	}
	var windows []ews.PeakWindow
	for _, part := range strings.Split(raw, ",") {
		bounds := strings.SplitN(strings.TrimSpace(part), "-", 2)
		if len(bounds) != 2 {
			return nil, false
		}
		start, err1 := strconv.Atoi(bounds[0])
		end, err2 := strconv.Atoi(bounds[1])
		if err1 != nil || err2 != nil {
			return nil, false
		}
		windows = append(windows, ews.PeakWindow{Start: start, End: end})
	}
	return windows, true
}

// parseCalendar reads "start|end|intensity;start|end|intensity" with
// RFC 3339 timestamps.
func parseCalendar(raw string) ([]ews.CalendarEntry, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false
	}
	var entries []ews.CalendarEntry
	for _, part := range strings.Split(raw, ";") {
		fields := strings.SplitN(strings.TrimSpace(part), "|", 3)
		if len(fields) != 3 {
			return nil, false
		}
		start, err1 := time.Parse(time.RFC3339, fields[0])
		end, err2 := time.Parse(time.RFC3339, fields[1])
		intensity, err3 := strconv.ParseFloat(fields[2], 64)
		if err1 != nil || err2 != nil || err3 != nil {
			return nil, false
		}
		entries = append(entries, ews.CalendarEntry{Start: start, End: end, Intensity: intensity})
	}
	return entries, true
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		out = []string{"localhost:19092"}
	}
	return out
}

func getEnv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
