package session

import (
	"fmt"
	"time"
)

// Filter decides whether a moment falls inside a tradeable session window.
type Filter interface {
	IsInKillZone(t time.Time) bool
}

// Window is a daily wall-clock interval, inclusive start, exclusive end.
type Window struct {
	Name      string `json:"name"`
	StartHour int    `json:"start_hour"`
	StartMin  int    `json:"start_min"`
	EndHour   int    `json:"end_hour"`
	EndMin    int    `json:"end_min"`
}

// Config holds the kill-zone windows and their IANA location.
type Config struct {
	Location string   `json:"location"`
	Windows  []Window `json:"windows"`
}

// DefaultConfig returns the London and New York open windows in UTC.
func DefaultConfig() Config {
	return Config{
		Location: "UTC",
		Windows: []Window{
			{Name: "london", StartHour: 7, EndHour: 10},
			{Name: "newyork", StartHour: 12, EndHour: 15},
		},
	}
}

// KillZones is the wall-clock session filter.
type KillZones struct {
	loc     *time.Location
	windows []Window
}

// NewKillZones builds the filter, resolving the configured location.
func NewKillZones(cfg Config) (*KillZones, error) {
	if cfg.Location == "" {
		cfg.Location = "UTC"
	}
	loc, err := time.LoadLocation(cfg.Location)
	if err != nil {
		return nil, fmt.Errorf("session: load location %q: %w", cfg.Location, err)
	}
	for _, w := range cfg.Windows {
		if w.StartHour < 0 || w.StartHour > 23 || w.EndHour < 0 || w.EndHour > 24 {
			return nil, fmt.Errorf("session: window %q has invalid hours", w.Name)
		}
	}
	return &KillZones{loc: loc, windows: cfg.Windows}, nil
}

// IsInKillZone reports whether t falls inside any configured window.
func (k *KillZones) IsInKillZone(t time.Time) bool {
	local := t.In(k.loc)
	minutes := local.Hour()*60 + local.Minute()
	for _, w := range k.windows {
		start := w.StartHour*60 + w.StartMin
		end := w.EndHour*60 + w.EndMin
		if minutes >= start && minutes < end {
			return true
		}
	}
	return false
}

// AlwaysOpen treats every moment as inside a kill zone. Used in tests
// and when session filtering is disabled.
type AlwaysOpen struct{}

func (AlwaysOpen) IsInKillZone(time.Time) bool { return true }

var (
	_ Filter = (*KillZones)(nil)
	_ Filter = AlwaysOpen{}
)
