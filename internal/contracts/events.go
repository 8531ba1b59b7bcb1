package contracts

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// AlertLevel is the discrete alert ladder. Levels are totally ordered,
// Green lowest.
type AlertLevel int

const (
	LevelGreen AlertLevel = iota
	LevelYellow
	LevelOrange
	LevelRed
)

var levelNames = [...]string{"green", "yellow", "orange", "red"}

func (l AlertLevel) String() string {
	if l < LevelGreen || l > LevelRed {
		return fmt.Sprintf("alertlevel(%d)", int(l))
	}
	return levelNames[l]
}

func (l AlertLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

func (l *AlertLevel) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseAlertLevel(name)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ParseAlertLevel maps a level name (case-insensitive) to its AlertLevel.
func ParseAlertLevel(name string) (AlertLevel, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "green":
		return LevelGreen, nil
	case "yellow":
		return LevelYellow, nil
	case "orange":
		return LevelOrange, nil
	case "red":
		return LevelRed, nil
	}
	return LevelGreen, fmt.Errorf("unknown alert level %q", name)
}

// AnxietySignals are the optional discrete crowd-stress observations a CCTV
// analytics gateway may attach to a sample. Units per the collector contract:
// pushes and shouts per minute per 1000 people, near-falls per 5-minute window.
type AnxietySignals struct {
	PushRate  float64 `json:"push_rate"`
	ShoutRate float64 `json:"shout_rate"`
	NearFalls float64 `json:"near_falls"`
}

// RawSample is one crowd-sensor measurement as published on the samples topic.
// Phase and Zone are informational tags from the feed; scoring never branches
// on them. The behavioral inputs (ATI/SNI/PCI observations) arrive pre-scaled
// to [0,1] by the collector, possibly with slight out-of-range noise.
type RawSample struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Zone      string    `json:"zone"`
	Phase     string    `json:"phase"`

	TempC    float64 `json:"temp_c"`
	Humidity float64 `json:"rh"`
	Density  float64 `json:"density_p_m2"`
	Speed    float64 `json:"speed_mps"`

	// SpeedVar is the short-window speed variance in (m/s)^2, when the
	// upstream tracker provides one.
	SpeedVar *float64        `json:"speed_var,omitempty"`
	Anxiety  *AnxietySignals `json:"anxiety,omitempty"`

	Attitude         float64 `json:"ati"`
	SubjectiveNorm   float64 `json:"sni"`
	PerceivedControl float64 `json:"pci"`
}

// Key is the Kafka partition key for a sample.
func (s RawSample) Key() string {
	if s.Zone == "" {
		return "default"
	}
	return s.Zone
}

// IndexSet holds the normalized indices derived from one RawSample, each
// clamped to [0,1].
type IndexSet struct {
	CAI float64 `json:"cai"`
	CDI float64 `json:"cdi"`
	THI float64 `json:"thi"`
	TI  float64 `json:"ti"`
	EI  float64 `json:"ei"`
	ATI float64 `json:"ati"`
	SNI float64 `json:"sni"`
	PCI float64 `json:"pci"`
}

// RiskSnapshot is the engine output for one ingested sample: the full index
// set, the behavioral-intention blend, both risk scores and the alert level
// that was current once this sample was applied. Immutable after creation.
type RiskSnapshot struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Zone      string    `json:"zone"`
	Phase     string    `json:"phase"`

	IndexSet

	BI           float64    `json:"bi"`
	PhysicalRisk float64    `json:"risk"`
	ExtendedRisk float64    `json:"risk_extended"`
	Alert        AlertLevel `json:"alert"`

	// Degraded marks snapshots computed with last-known-good substitutions
	// after a missing or out-of-range raw field.
	Degraded bool `json:"degraded"`
}

// Key is the Kafka partition key for a snapshot.
func (s RiskSnapshot) Key() string {
	if s.Zone == "" {
		return "default"
	}
	return s.Zone
}
