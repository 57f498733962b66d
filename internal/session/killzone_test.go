package session

import (
	"testing"
	"time"
)

func TestKillZonesDefaults(t *testing.T) {
	k, err := NewKillZones(DefaultConfig())
	if err != nil {
		t.Fatalf("NewKillZones: %v", err)
	}

	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		hour, min int
		want      bool
	}{
		{6, 59, false},
		{7, 0, true}, // london open, inclusive
		{9, 59, true},
		{10, 0, false}, // exclusive end
		{11, 30, false},
		{12, 0, true}, // new york open
		{14, 59, true},
		{15, 0, false},
		{22, 0, false},
	}
	for _, tc := range cases {
		at := day.Add(time.Duration(tc.hour)*time.Hour + time.Duration(tc.min)*time.Minute)
		if got := k.IsInKillZone(at); got != tc.want {
			t.Errorf("%02d:%02d = %v, want %v", tc.hour, tc.min, got, tc.want)
		}
	}
}

func TestKillZonesMinutes(t *testing.T) {
	k, err := NewKillZones(Config{
		Location: "UTC",
		Windows:  []Window{{Name: "open", StartHour: 8, StartMin: 30, EndHour: 9, EndMin: 15}},
	})
	if err != nil {
		t.Fatalf("NewKillZones: %v", err)
	}
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	if k.IsInKillZone(day.Add(8*time.Hour + 29*time.Minute)) {
		t.Error("08:29 should be outside")
	}
	if !k.IsInKillZone(day.Add(8*time.Hour + 30*time.Minute)) {
		t.Error("08:30 should be inside")
	}
	if k.IsInKillZone(day.Add(9*time.Hour + 15*time.Minute)) {
		t.Error("09:15 should be outside")
	}
}

func TestKillZonesInvalidConfig(t *testing.T) {
	if _, err := NewKillZones(Config{Location: "Not/AZone"}); err == nil {
		t.Error("unknown location should error")
	}
	if _, err := NewKillZones(Config{Windows: []Window{{Name: "bad", StartHour: 25}}}); err == nil {
		t.Error("out-of-range hours should error")
	}
}

func TestAlwaysOpen(t *testing.T) {
	if !(AlwaysOpen{}).IsInKillZone(time.Now()) {
		t.Error("AlwaysOpen must accept any moment")
	}
}
