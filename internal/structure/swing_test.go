package structure

import (
	"testing"
	"time"

	"mt5-smc-bot/internal/market"
)

// newestFirst builds a newest-first bar window from oldest-first closes,
// placing High/Low at fixed offsets around the close.
func newestFirst(closes []float64, hi, lo float64) []market.Bar {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]market.Bar, len(closes))
	for i, v := range closes {
		bars[len(closes)-1-i] = market.Bar{
			Time:  base.Add(time.Duration(i) * time.Minute),
			Open:  v,
			High:  v + hi,
			Low:   v - lo,
			Close: v,
		}
	}
	return bars
}

func TestFindSwingPointsMiddleBar(t *testing.T) {
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	// Oldest to newest the highs run 1.2010, 1.2012, 1.2009.
	bars := []market.Bar{
		{Time: base.Add(2 * time.Minute), High: 1.2009, Low: 1.2004},
		{Time: base.Add(1 * time.Minute), High: 1.2012, Low: 1.2007},
		{Time: base, High: 1.2010, Low: 1.2005},
	}

	highs, lows := FindSwingPoints(bars, 1, 1)
	if len(highs) != 1 {
		t.Fatalf("swing highs = %d, want exactly 1", len(highs))
	}
	if highs[0].Value != 1.2012 {
		t.Errorf("swing high value = %v, want 1.2012", highs[0].Value)
	}
	if highs[0].Kind != SwingHigh {
		t.Errorf("swing kind = %v, want %v", highs[0].Kind, SwingHigh)
	}
	if len(lows) != 0 {
		t.Errorf("swing lows = %d, want none", len(lows))
	}
}

func TestFindSwingPointsShortWindow(t *testing.T) {
	bars := newestFirst([]float64{1, 2, 3, 4}, 0.5, 0.5)
	highs, lows := FindSwingPoints(bars, 2, 2)
	if highs != nil || lows != nil {
		t.Errorf("window shorter than left+right+1 must yield no swings, got %d/%d", len(highs), len(lows))
	}
}

func TestFindSwingPointsStrictInequality(t *testing.T) {
	// A plateau high equal to its neighbor is not a swing.
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	bars := []market.Bar{
		{Time: base.Add(2 * time.Minute), High: 1.2012, Low: 1.2004},
		{Time: base.Add(1 * time.Minute), High: 1.2012, Low: 1.2007},
		{Time: base, High: 1.2010, Low: 1.2005},
	}
	highs, _ := FindSwingPoints(bars, 1, 1)
	if len(highs) != 0 {
		t.Errorf("tied high must not confirm a swing, got %d", len(highs))
	}
}

func TestFindSwingPointsTranslationInvariant(t *testing.T) {
	closes := []float64{10, 12, 10, 13, 11, 14, 12, 15, 13}
	bars := newestFirst(closes, 0, 0)
	shifted := newestFirst(closes, 0, 0)
	for i := range shifted {
		shifted[i].High += 5
		shifted[i].Low += 5
		shifted[i].Open += 5
		shifted[i].Close += 5
	}

	highs, lows := FindSwingPoints(bars, 1, 1)
	shiftedHighs, shiftedLows := FindSwingPoints(shifted, 1, 1)
	if len(highs) != len(shiftedHighs) || len(lows) != len(shiftedLows) {
		t.Fatalf("translation changed swing counts: %d/%d vs %d/%d",
			len(highs), len(lows), len(shiftedHighs), len(shiftedLows))
	}
	for i := range highs {
		if !highs[i].Time.Equal(shiftedHighs[i].Time) {
			t.Errorf("high %d moved under translation", i)
		}
	}
}

func TestFindSwingPointsTimeShiftInvariant(t *testing.T) {
	closes := []float64{10, 12, 10, 13, 11, 14, 12, 15, 13}
	bars := newestFirst(closes, 0, 0)
	// The same window a week later: every timestamp moves by the same
	// offset, the shape does not.
	offset := 7 * 24 * time.Hour
	later := make([]market.Bar, len(bars))
	for i, b := range bars {
		b.Time = b.Time.Add(offset)
		later[i] = b
	}

	highs, lows := FindSwingPoints(bars, 1, 1)
	laterHighs, laterLows := FindSwingPoints(later, 1, 1)
	if len(highs) != len(laterHighs) || len(lows) != len(laterLows) {
		t.Fatalf("time shift changed swing counts: %d/%d vs %d/%d",
			len(highs), len(lows), len(laterHighs), len(laterLows))
	}
	for i := range highs {
		if highs[i].Value != laterHighs[i].Value {
			t.Errorf("high %d value changed under time shift: %v vs %v",
				i, highs[i].Value, laterHighs[i].Value)
		}
		if !laterHighs[i].Time.Equal(highs[i].Time.Add(offset)) {
			t.Errorf("high %d timestamp not shifted by the same offset", i)
		}
	}
	for i := range lows {
		if lows[i].Value != laterLows[i].Value {
			t.Errorf("low %d value changed under time shift: %v vs %v",
				i, lows[i].Value, laterLows[i].Value)
		}
	}
}

func TestFindSwingPointsNewestFirstOrdering(t *testing.T) {
	closes := []float64{10, 12, 10, 13, 11, 14, 12}
	highs, _ := FindSwingPoints(newestFirst(closes, 0, 0), 1, 1)
	if len(highs) < 2 {
		t.Fatalf("expected at least 2 swing highs, got %d", len(highs))
	}
	for i := 1; i < len(highs); i++ {
		if highs[i].Time.After(highs[i-1].Time) {
			t.Errorf("swings not newest-first at position %d", i)
		}
	}
	if highs[0].Value != 14 {
		t.Errorf("most recent swing high = %v, want 14", highs[0].Value)
	}
}
