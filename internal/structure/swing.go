package structure

import (
	"time"

	"mt5-smc-bot/internal/market"
)

// SwingKind distinguishes swing highs from swing lows.
type SwingKind string

const (
	SwingHigh SwingKind = "high"
	SwingLow  SwingKind = "low"
)

// SwingPoint is a confirmed local extremum in the bar history.
type SwingPoint struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
	Kind  SwingKind `json:"kind"`
}

// FindSwingPoints scans a newest-first bar window for swing highs and lows.
// A bar is a swing high when its high strictly exceeds the highs of
// leftStrength bars before it and rightStrength bars after it in time;
// confirmation is therefore delayed by rightStrength bars. Both result
// slices are ordered most-recent-confirmed first.
func FindSwingPoints(bars []market.Bar, leftStrength, rightStrength int) (highs, lows []SwingPoint) {
	if leftStrength < 1 {
		leftStrength = 1
	}
	if rightStrength < 1 {
		rightStrength = 1
	}
	if len(bars) < leftStrength+rightStrength+1 {
		return nil, nil
	}

	// With newest-first indexing, bars after candidate i in time sit at
	// i-1..i-rightStrength and bars before it at i+1..i+leftStrength.
	for i := rightStrength; i < len(bars)-leftStrength; i++ {
		candidate := bars[i]

		isHigh := true
		isLow := true
		for j := 1; j <= leftStrength && (isHigh || isLow); j++ {
			if bars[i+j].High >= candidate.High {
				isHigh = false
			}
			if bars[i+j].Low <= candidate.Low {
				isLow = false
			}
		}
		for j := 1; j <= rightStrength && (isHigh || isLow); j++ {
			if bars[i-j].High >= candidate.High {
				isHigh = false
			}
			if bars[i-j].Low <= candidate.Low {
				isLow = false
			}
		}

		if isHigh {
			highs = append(highs, SwingPoint{Time: candidate.Time, Value: candidate.High, Kind: SwingHigh})
		}
		if isLow {
			lows = append(lows, SwingPoint{Time: candidate.Time, Value: candidate.Low, Kind: SwingLow})
		}
	}
	return highs, lows
}
