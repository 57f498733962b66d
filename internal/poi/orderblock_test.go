package poi

import (
	"testing"
	"time"

	"mt5-smc-bot/internal/market"
)

func bullishBlockBars() []market.Bar {
	return window(
		// The last down candle before the displacement leg.
		market.Bar{Open: 1.1010, High: 1.1012, Low: 1.0995, Close: 1.1000},
		market.Bar{Open: 1.1000, High: 1.1015, Low: 1.1000, Close: 1.1012},
		market.Bar{Open: 1.1012, High: 1.1020, Low: 1.1008, Close: 1.1018},
		market.Bar{Open: 1.1018, High: 1.1025, Low: 1.1012, Close: 1.1022},
	)
}

func TestDetectBullishOrderBlock(t *testing.T) {
	d := NewOrderBlockDetector(testSeries(bullishBlockBars()), DefaultOrderBlockConfig())

	zones := d.Detect(market.M15)
	if len(zones) != 1 {
		t.Fatalf("zones = %d, want 1", len(zones))
	}
	z := zones[0]
	if z.Kind != ZoneOrderBlock || z.Direction != market.BiasBullish {
		t.Errorf("zone = %v/%v, want bullish order block", z.Kind, z.Direction)
	}
	if z.Lower != 1.0995 || z.Upper != 1.1012 {
		t.Errorf("bounds = [%v, %v], want candle extremes [1.0995, 1.1012]", z.Lower, z.Upper)
	}
	if !z.Fresh {
		t.Error("unmitigated block must be fresh")
	}
}

func TestDetectBearishOrderBlock(t *testing.T) {
	bars := window(
		// The last up candle before the displacement down.
		market.Bar{Open: 1.1000, High: 1.1018, Low: 1.0998, Close: 1.1012},
		market.Bar{Open: 1.1012, High: 1.1012, Low: 1.0995, Close: 1.0998},
		market.Bar{Open: 1.0998, High: 1.1002, Low: 1.0988, Close: 1.0992},
		market.Bar{Open: 1.0992, High: 1.0995, Low: 1.0980, Close: 1.0984},
	)
	d := NewOrderBlockDetector(testSeries(bars), DefaultOrderBlockConfig())

	zones := d.Detect(market.M15)
	if len(zones) != 1 {
		t.Fatalf("zones = %d, want 1", len(zones))
	}
	z := zones[0]
	if z.Direction != market.BiasBearish {
		t.Fatalf("direction = %v, want bearish", z.Direction)
	}
	if z.Lower != 1.0998 || z.Upper != 1.1018 {
		t.Errorf("bounds = [%v, %v], want [1.0998, 1.1018]", z.Lower, z.Upper)
	}
}

func TestOrderBlockNeedsDisplacement(t *testing.T) {
	// Same shape, but the 3-bar move only travels 5 points.
	bars := window(
		market.Bar{Open: 1.1010, High: 1.1012, Low: 1.0995, Close: 1.1000},
		market.Bar{Open: 1.1000, High: 1.1004, Low: 1.1000, Close: 1.1002},
		market.Bar{Open: 1.1002, High: 1.1005, Low: 1.1001, Close: 1.1004},
		market.Bar{Open: 1.1004, High: 1.1006, Low: 1.1002, Close: 1.1005},
	)
	d := NewOrderBlockDetector(testSeries(bars), DefaultOrderBlockConfig())
	if zones := d.Detect(market.M15); len(zones) != 0 {
		t.Errorf("insufficient displacement still produced %d zones", len(zones))
	}
}

func TestOrderBlockMitigation(t *testing.T) {
	series := testSeries(bullishBlockBars())
	d := NewOrderBlockDetector(series, DefaultOrderBlockConfig())

	// A later bar trading down to the block low consumes it.
	touch := market.Bar{Open: 1.1022, High: 1.1024, Low: 1.0994, Close: 1.1005}
	touch.Time = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	series.Push(market.M15, touch)

	zones := d.Detect(market.M15)
	if len(zones) != 1 {
		t.Fatalf("zones = %d, want 1", len(zones))
	}
	if zones[0].Fresh {
		t.Error("revisited block must not stay fresh")
	}
	if d.HasFreshZone(market.M15, market.BiasBullish) {
		t.Error("HasFreshZone must reflect mitigation")
	}
}

func TestOrderBlockIsInRelevantZone(t *testing.T) {
	series := testSeries(bullishBlockBars())
	d := NewOrderBlockDetector(series, DefaultOrderBlockConfig())

	// Close outside the block.
	if d.IsInRelevantZone(market.M15, market.BiasBullish) {
		t.Error("close above the block must not count as inside")
	}

	retrace := market.Bar{Open: 1.1022, High: 1.1023, Low: 1.1004, Close: 1.1006}
	retrace.Time = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	series.Push(market.M15, retrace)

	if !d.IsInRelevantZone(market.M15, market.BiasBullish) {
		t.Error("close inside the block must count as inside")
	}
	if d.IsInRelevantZone(market.M15, market.BiasBearish) {
		t.Error("a bullish block must not satisfy a bearish query")
	}
}
