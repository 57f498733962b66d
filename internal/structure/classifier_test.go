package structure

import (
	"testing"
	"time"

	"mt5-smc-bot/internal/market"
)

// zigzag builds an oldest-first close sequence of rising (or falling)
// zigzag legs: 3 steps with the trend, 2 against, drifting one unit per
// cycle so successive peaks and troughs both advance.
func zigzag(start, step float64, cycles int) []float64 {
	var out []float64
	v := start
	for c := 0; c < cycles; c++ {
		for s := 0; s < 3; s++ {
			v += step
			out = append(out, v)
		}
		for s := 0; s < 2; s++ {
			v -= step
			out = append(out, v)
		}
	}
	return out
}

func TestClassifyUptrend(t *testing.T) {
	c := NewClassifier(DefaultConfig())
	bars := newestFirst(zigzag(100, 1, 8), 0.3, 0.3)
	if got := c.Classify(bars); got != TrendUp {
		t.Fatalf("Classify = %v, want %v", got, TrendUp)
	}
	if !TrendUp.AlignedWith(market.BiasBullish) {
		t.Error("uptrend must align with bullish bias")
	}
	if TrendUp.AlignedWith(market.BiasBearish) {
		t.Error("uptrend must not align with bearish bias")
	}
}

func TestClassifyDowntrend(t *testing.T) {
	c := NewClassifier(DefaultConfig())
	bars := newestFirst(zigzag(200, -1, 8), 0.3, 0.3)
	if got := c.Classify(bars); got != TrendDown {
		t.Fatalf("Classify = %v, want %v", got, TrendDown)
	}
	if !TrendDown.AlignedWith(market.BiasBearish) {
		t.Error("downtrend must align with bearish bias")
	}
}

// flatZigzag oscillates around a level with equal peaks and troughs, the
// shape of a compressed trading range.
func flatZigzag(center, amplitude float64, cycles int) []float64 {
	var out []float64
	step := amplitude / 3
	v := center - amplitude/2
	for c := 0; c < cycles; c++ {
		for s := 0; s < 3; s++ {
			v += step
			out = append(out, v)
		}
		for s := 0; s < 3; s++ {
			v -= step
			out = append(out, v)
		}
	}
	return out
}

func TestClassifyAccumulationAfterDowntrend(t *testing.T) {
	c := NewClassifier(DefaultConfig())

	if got := c.Classify(newestFirst(zigzag(200, -1, 8), 0.3, 0.3)); got != TrendDown {
		t.Fatalf("setup classification = %v, want %v", got, TrendDown)
	}

	// A range of ~0.17 on a ~100 base is well inside the 0.3% threshold.
	compressed := newestFirst(flatZigzag(100, 0.15, 6), 0.01, 0.01)
	if got := c.Classify(compressed); got != TrendAccumulation {
		t.Fatalf("compression after downtrend = %v, want %v", got, TrendAccumulation)
	}
	if !TrendAccumulation.AlignedWith(market.BiasBullish) {
		t.Error("accumulation must align with bullish bias")
	}
}

func TestClassifyDistributionAfterUptrend(t *testing.T) {
	c := NewClassifier(DefaultConfig())
	if got := c.Classify(newestFirst(zigzag(100, 1, 8), 0.3, 0.3)); got != TrendUp {
		t.Fatalf("setup classification = %v, want %v", got, TrendUp)
	}
	compressed := newestFirst(flatZigzag(200, 0.3, 6), 0.01, 0.01)
	if got := c.Classify(compressed); got != TrendDistribution {
		t.Fatalf("compression after uptrend = %v, want %v", got, TrendDistribution)
	}
}

func TestClassifyHysteresis(t *testing.T) {
	c := NewClassifier(DefaultConfig())
	if got := c.Classify(newestFirst(zigzag(100, 1, 8), 0.3, 0.3)); got != TrendUp {
		t.Fatalf("setup classification = %v, want %v", got, TrendUp)
	}

	// Too few swings: neutral result, previous state untouched.
	if got := c.Classify(newestFirst([]float64{100, 101, 100}, 0.3, 0.3)); got != TrendNeutral {
		t.Errorf("short window = %v, want %v", got, TrendNeutral)
	}
	if c.Last() != TrendUp {
		t.Errorf("short window must not overwrite state, Last = %v", c.Last())
	}

	// Wide-ranging chop with enough swings keeps the last non-neutral call.
	chop := newestFirst(chopCloses(), 0.3, 0.3)
	if got := c.Classify(chop); got != TrendUp {
		t.Errorf("non-trending window after uptrend = %v, want %v (hysteresis)", got, TrendUp)
	}
}

// chopCloses is a wide non-trending window: peaks 112, 108, 111 and
// troughs 90, 94, 92, monotone in neither direction.
func chopCloses() []float64 {
	return []float64{
		100, 106, 112, 105, 97, 90, 96, 103, 108, 103,
		98, 94, 100, 106, 111, 105, 98, 92, 98, 104,
	}
}

func TestClassifyClampsMinSwings(t *testing.T) {
	// Two rising swing highs and two rising swing lows: with the swing
	// minimum forced below three the stride comparison would be vacuous
	// and call this an uptrend off a pair of points.
	c := NewClassifier(Config{LeftStrength: 1, RightStrength: 1, MinSwings: 1, RangeCompressionPct: 0.3})
	bars := newestFirst([]float64{10, 12, 10, 13, 11, 14}, 0, 0)
	if got := c.Classify(bars); got != TrendNeutral {
		t.Errorf("two swings of each kind = %v, want %v", got, TrendNeutral)
	}
	if c.Last() != TrendNeutral {
		t.Errorf("state overwritten on an under-populated window, Last = %v", c.Last())
	}
}

func TestClassifyNeutralWithNoHistory(t *testing.T) {
	c := NewClassifier(DefaultConfig())
	chop := newestFirst(chopCloses(), 0.3, 0.3)
	if got := c.Classify(chop); got != TrendNeutral {
		t.Errorf("chop with no prior state = %v, want %v", got, TrendNeutral)
	}
}

func TestDetectBOSBullish(t *testing.T) {
	c := NewClassifier(Config{LeftStrength: 1, RightStrength: 1, MinSwings: 1, RangeCompressionPct: 0.3})
	// Swing highs at 12 and 13; the latest close 14 clears the older one.
	bars := newestFirst([]float64{10, 12, 10, 13, 11, 14}, 0, 0)

	if !c.DetectBOS(bars, market.BiasBullish) {
		t.Fatal("expected bullish BOS")
	}
	if c.DetectBOS(bars, market.BiasBullish) {
		t.Error("same bar must not report BOS twice")
	}

	// A newer bar breaking again is a fresh event.
	extended := append([]market.Bar{{
		Time: bars[0].Time.Add(time.Minute), Open: 15, High: 15, Low: 15, Close: 15,
	}}, bars...)
	if !c.DetectBOS(extended, market.BiasBullish) {
		t.Error("break on a new bar should report again")
	}
}

func TestDetectBOSBearish(t *testing.T) {
	c := NewClassifier(Config{LeftStrength: 1, RightStrength: 1, MinSwings: 1, RangeCompressionPct: 0.3})
	// Swing lows at 12 and 11; the latest close 10 undercuts the older one.
	bars := newestFirst([]float64{14, 12, 14, 11, 13, 10}, 0, 0)
	if !c.DetectBOS(bars, market.BiasBearish) {
		t.Fatal("expected bearish BOS")
	}
}

func TestDetectBOSNeutralBias(t *testing.T) {
	c := NewClassifier(DefaultConfig())
	bars := newestFirst(zigzag(100, 1, 8), 0.3, 0.3)
	if c.DetectBOS(bars, market.BiasNeutral) {
		t.Error("neutral bias must never report BOS")
	}
}

func TestDetectCHoCHBullish(t *testing.T) {
	c := NewClassifier(Config{LeftStrength: 1, RightStrength: 1, MinSwings: 1, RangeCompressionPct: 0.3})
	// Swing lows oldest to newest: 12, 10, 11, a higher low after lower lows.
	bars := newestFirst([]float64{14, 12, 15, 10, 13, 11, 14}, 0, 0)

	if !c.DetectCHoCH(bars, market.BiasBullish) {
		t.Fatal("expected bullish CHoCH")
	}
	if c.DetectCHoCH(bars, market.BiasBullish) {
		t.Error("same bar must not report CHoCH twice")
	}
}

func TestDetectCHoCHBearish(t *testing.T) {
	c := NewClassifier(Config{LeftStrength: 1, RightStrength: 1, MinSwings: 1, RangeCompressionPct: 0.3})
	// Swing highs oldest to newest: 12, 14, 13, a lower high after higher highs.
	bars := newestFirst([]float64{10, 12, 9, 14, 11, 13, 10}, 0, 0)
	if !c.DetectCHoCH(bars, market.BiasBearish) {
		t.Fatal("expected bearish CHoCH")
	}
}

func TestLastSignificantSwing(t *testing.T) {
	c := NewClassifier(Config{LeftStrength: 1, RightStrength: 1, MinSwings: 1, RangeCompressionPct: 0.3})
	bars := newestFirst([]float64{14, 12, 15, 10, 13, 11, 14}, 0, 0)

	low, ok := c.LastSignificantSwing(bars, market.BiasBullish)
	if !ok || low.Value != 11 {
		t.Errorf("bullish swing = %v/%v, want 11", low.Value, ok)
	}
	high, ok := c.LastSignificantSwing(bars, market.BiasBearish)
	if !ok || high.Value != 13 {
		t.Errorf("bearish swing = %v/%v, want 13", high.Value, ok)
	}
	if _, ok := c.LastSignificantSwing(bars, market.BiasNeutral); ok {
		t.Error("neutral bias has no significant swing")
	}
}
