package poi

import (
	"testing"
	"time"

	"mt5-smc-bot/internal/market"
)

func TestZoneContains(t *testing.T) {
	z := Zone{Kind: ZoneDemand, Direction: market.BiasBullish, Upper: 1.1040, Lower: 1.1000}
	if !z.Contains(1.1000) || !z.Contains(1.1040) || !z.Contains(1.1020) {
		t.Error("bounds and interior must be contained")
	}
	if z.Contains(1.0999) || z.Contains(1.1041) {
		t.Error("prices outside the bounds must not be contained")
	}
	if z.Size() != 1.1040-1.1000 {
		t.Errorf("size = %v", z.Size())
	}
}

func TestMergeOverlapping(t *testing.T) {
	early := time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)
	late := early.Add(time.Hour)
	zones := []Zone{
		{Kind: ZoneDemand, Direction: market.BiasBullish, Upper: 1.1030, Lower: 1.1010, FormedAt: late, Strength: StrengthNormal, TouchCount: 1, Fresh: true},
		{Kind: ZoneDemand, Direction: market.BiasBullish, Upper: 1.1020, Lower: 1.1000, FormedAt: early, Strength: StrengthStrong, TouchCount: 2, Fresh: true},
		// Different kind, same range: untouched by the merge.
		{Kind: ZoneSupply, Direction: market.BiasBearish, Upper: 1.1030, Lower: 1.1000, FormedAt: late, Fresh: true},
	}

	merged := MergeOverlapping(zones)
	if len(merged) != 2 {
		t.Fatalf("merged = %d zones, want 2", len(merged))
	}
	var demand *Zone
	for i := range merged {
		if merged[i].Kind == ZoneDemand {
			demand = &merged[i]
		}
	}
	if demand == nil {
		t.Fatal("merged demand zone missing")
	}
	if demand.Lower != 1.1000 || demand.Upper != 1.1030 {
		t.Errorf("merged bounds = [%v, %v], want the union [1.1000, 1.1030]", demand.Lower, demand.Upper)
	}
	if !demand.FormedAt.Equal(early) {
		t.Errorf("merged time = %v, want the earlier %v", demand.FormedAt, early)
	}
	if demand.Strength != StrengthStrong {
		t.Errorf("merged strength = %v, want the stronger grade", demand.Strength)
	}
	if demand.TouchCount != 3 {
		t.Errorf("merged touches = %d, want 3", demand.TouchCount)
	}
}

func TestMergeOverlappingIdempotent(t *testing.T) {
	zones := []Zone{
		{Kind: ZoneDemand, Direction: market.BiasBullish, Upper: 1.1030, Lower: 1.1010},
		{Kind: ZoneDemand, Direction: market.BiasBullish, Upper: 1.1020, Lower: 1.1000},
		{Kind: ZoneDemand, Direction: market.BiasBullish, Upper: 1.1100, Lower: 1.1080},
		{Kind: ZoneSupply, Direction: market.BiasBearish, Upper: 1.1200, Lower: 1.1150},
	}

	once := MergeOverlapping(zones)
	twice := MergeOverlapping(once)
	if len(once) != 3 || len(twice) != len(once) {
		t.Fatalf("merge counts = %d then %d, want 3 then 3", len(once), len(twice))
	}
	for i := range once {
		if once[i] != twice[i] {
			t.Errorf("zone %d changed on re-merge: %+v vs %+v", i, once[i], twice[i])
		}
	}
}

func TestZoneStrengthString(t *testing.T) {
	if StrengthStrong.String() != "strong" || StrengthNormal.String() != "normal" || StrengthWeak.String() != "weak" {
		t.Error("strength labels wrong")
	}
}
