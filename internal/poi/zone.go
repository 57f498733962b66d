package poi

import (
	"sort"
	"time"

	"mt5-smc-bot/internal/market"
)

// ZoneKind tags the point-of-interest variant.
type ZoneKind string

const (
	ZoneOrderBlock ZoneKind = "order_block"
	ZoneFVG        ZoneKind = "fair_value_gap"
	ZoneSupply     ZoneKind = "supply"
	ZoneDemand     ZoneKind = "demand"
	ZoneEqualHighs ZoneKind = "equal_highs"
	ZoneEqualLows  ZoneKind = "equal_lows"
	ZoneBuyStops   ZoneKind = "buy_stops"
	ZoneSellStops  ZoneKind = "sell_stops"
)

// ZoneStrength grades supply/demand zones.
type ZoneStrength int

const (
	StrengthWeak ZoneStrength = iota
	StrengthNormal
	StrengthStrong
)

func (s ZoneStrength) String() string {
	switch s {
	case StrengthStrong:
		return "strong"
	case StrengthNormal:
		return "normal"
	default:
		return "weak"
	}
}

// Zone is the shared shape of every point of interest. Kind-specific
// metadata (strength, touch count, swept) is only meaningful for the
// kinds that set it. Invariant: Upper >= Lower.
type Zone struct {
	Kind       ZoneKind     `json:"kind"`
	Direction  market.Bias  `json:"direction"` // side the zone supports entering on
	Upper      float64      `json:"upper"`
	Lower      float64      `json:"lower"`
	FormedAt   time.Time    `json:"formed_at"`
	Strength   ZoneStrength `json:"strength"`
	TouchCount int          `json:"touch_count"`
	Fresh      bool         `json:"fresh"`
	Broken     bool         `json:"broken"`
	Swept      bool         `json:"swept"`
}

// Size returns the zone height in price units.
func (z Zone) Size() float64 {
	return z.Upper - z.Lower
}

// Contains reports whether the price sits inside the zone bounds.
func (z Zone) Contains(price float64) bool {
	return price >= z.Lower && price <= z.Upper
}

// validGeometry filters degenerate zones before they enter a collection.
// Liquidity kinds are level-like and may be zero height; every other
// kind must have positive height.
func (z Zone) validGeometry() bool {
	if z.Upper < z.Lower {
		return false
	}
	switch z.Kind {
	case ZoneEqualHighs, ZoneEqualLows, ZoneBuyStops, ZoneSellStops:
		return true
	}
	return z.Upper > z.Lower
}

// overlaps reports whether two zones of the same kind and direction
// share any price range.
func (z Zone) overlaps(other Zone) bool {
	if z.Kind != other.Kind || z.Direction != other.Direction {
		return false
	}
	return z.Lower <= other.Upper && other.Lower <= z.Upper
}

// merge unions the bounds, keeps the earliest formation time and the
// strongest grade, and accumulates touch counts.
func (z Zone) merge(other Zone) Zone {
	merged := z
	if other.Upper > merged.Upper {
		merged.Upper = other.Upper
	}
	if other.Lower < merged.Lower {
		merged.Lower = other.Lower
	}
	if other.FormedAt.Before(merged.FormedAt) {
		merged.FormedAt = other.FormedAt
	}
	if other.Strength > merged.Strength {
		merged.Strength = other.Strength
	}
	merged.TouchCount += other.TouchCount
	merged.Fresh = merged.Fresh && other.Fresh
	merged.Broken = merged.Broken || other.Broken
	merged.Swept = merged.Swept || other.Swept
	return merged
}

// MergeOverlapping collapses overlapping zones of the same kind and
// direction. The operation is idempotent: merging an already-merged set
// leaves it unchanged.
func MergeOverlapping(zones []Zone) []Zone {
	if len(zones) < 2 {
		return zones
	}
	sorted := make([]Zone, len(zones))
	copy(sorted, zones)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Kind != sorted[j].Kind {
			return sorted[i].Kind < sorted[j].Kind
		}
		if sorted[i].Direction != sorted[j].Direction {
			return sorted[i].Direction < sorted[j].Direction
		}
		return sorted[i].Lower < sorted[j].Lower
	})

	out := make([]Zone, 0, len(sorted))
	current := sorted[0]
	for _, z := range sorted[1:] {
		if current.overlaps(z) {
			current = current.merge(z)
			continue
		}
		out = append(out, current)
		current = z
	}
	out = append(out, current)
	return out
}

// filterValid drops zones with broken geometry.
func filterValid(zones []Zone) []Zone {
	out := zones[:0]
	for _, z := range zones {
		if z.validGeometry() {
			out = append(out, z)
		}
	}
	return out
}
