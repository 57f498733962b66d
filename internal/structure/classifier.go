package structure

import (
	"time"

	"mt5-smc-bot/internal/market"
)

// Trend is the market-structure classification of one timeframe.
type Trend string

const (
	TrendNeutral      Trend = "neutral"
	TrendUp           Trend = "uptrend"
	TrendDown         Trend = "downtrend"
	TrendAccumulation Trend = "accumulation"
	TrendDistribution Trend = "distribution"
)

// AlignedWith reports whether the structure supports entering in the
// direction of the bias: uptrend or accumulation for bullish, downtrend
// or distribution for bearish.
func (t Trend) AlignedWith(bias market.Bias) bool {
	switch bias {
	case market.BiasBullish:
		return t == TrendUp || t == TrendAccumulation
	case market.BiasBearish:
		return t == TrendDown || t == TrendDistribution
	}
	return false
}

// Config holds the structure classifier parameters.
type Config struct {
	LeftStrength        int     `json:"left_strength"`
	RightStrength       int     `json:"right_strength"`
	MinSwings           int     `json:"min_swings"`
	RangeCompressionPct float64 `json:"range_compression_pct"` // % of range high
}

// DefaultConfig returns the classifier defaults.
func DefaultConfig() Config {
	return Config{
		LeftStrength:        2,
		RightStrength:       2,
		MinSwings:           3,
		RangeCompressionPct: 0.3,
	}
}

// Classifier detects trend/range structure and break events on one
// timeframe. It keeps the previous classification for hysteresis and the
// last BOS/CHoCH bar times for de-duplication, so one Classifier
// instance must be long-lived per (symbol, timeframe).
type Classifier struct {
	cfg           Config
	last          Trend
	lastBOSTime   time.Time
	lastCHoCHTime time.Time
}

// NewClassifier creates a classifier with the previous state set to neutral.
func NewClassifier(cfg Config) *Classifier {
	if cfg.LeftStrength <= 0 {
		cfg.LeftStrength = 2
	}
	if cfg.RightStrength <= 0 {
		cfg.RightStrength = 2
	}
	// The stride comparison and the compression window both need three
	// swings of each kind, so lower configured values are meaningless.
	if cfg.MinSwings < 3 {
		cfg.MinSwings = 3
	}
	if cfg.RangeCompressionPct <= 0 {
		cfg.RangeCompressionPct = 0.3
	}
	return &Classifier{cfg: cfg, last: TrendNeutral}
}

// Last returns the previous classification.
func (c *Classifier) Last() Trend {
	return c.last
}

// Classify labels the structure of a newest-first bar window.
// With fewer than MinSwings swings of either kind it returns neutral
// without touching the hysteresis state.
func (c *Classifier) Classify(bars []market.Bar) Trend {
	highs, lows := FindSwingPoints(bars, c.cfg.LeftStrength, c.cfg.RightStrength)
	if len(highs) < c.cfg.MinSwings || len(lows) < c.cfg.MinSwings {
		return TrendNeutral
	}

	// Stride-2 comparison: each swing against the one two positions
	// older in the newest-first ordering, so a single non-conforming
	// swing in between does not break the sequence.
	if strideIncreasing(highs) && strideIncreasing(lows) {
		c.last = TrendUp
		return TrendUp
	}
	if strideDecreasing(highs) && strideDecreasing(lows) {
		c.last = TrendDown
		return TrendDown
	}

	if c.last == TrendDown && c.isCompressed(highs, lows) {
		c.last = TrendAccumulation
		return TrendAccumulation
	}
	if c.last == TrendUp && c.isCompressed(highs, lows) {
		c.last = TrendDistribution
		return TrendDistribution
	}

	if c.last != TrendNeutral {
		return c.last
	}
	return TrendNeutral
}

func strideIncreasing(points []SwingPoint) bool {
	for i := 0; i+2 < len(points); i++ {
		if points[i].Value <= points[i+2].Value {
			return false
		}
	}
	return true
}

func strideDecreasing(points []SwingPoint) bool {
	for i := 0; i+2 < len(points); i++ {
		if points[i].Value >= points[i+2].Value {
			return false
		}
	}
	return true
}

// isCompressed tests whether the 3 most recent swing highs and lows fit
// inside a range narrower than RangeCompressionPct of the range high.
func (c *Classifier) isCompressed(highs, lows []SwingPoint) bool {
	rangeHigh := highs[0].Value
	rangeLow := lows[0].Value
	for i := 0; i < 3; i++ {
		if highs[i].Value > rangeHigh {
			rangeHigh = highs[i].Value
		}
		if lows[i].Value < rangeLow {
			rangeLow = lows[i].Value
		}
	}
	if rangeHigh <= 0 {
		return false
	}
	return (rangeHigh-rangeLow)/rangeHigh*100 < c.cfg.RangeCompressionPct
}

// DetectBOS reports a break of structure: for a bullish bias the latest
// close above the second-most-recent confirmed swing high, for bearish
// below the second-most-recent swing low. The triggering bar time is
// remembered so the same break is reported once.
func (c *Classifier) DetectBOS(bars []market.Bar, bias market.Bias) bool {
	if len(bars) == 0 || bias == market.BiasNeutral {
		return false
	}
	highs, lows := FindSwingPoints(bars, c.cfg.LeftStrength, c.cfg.RightStrength)

	broke := false
	switch bias {
	case market.BiasBullish:
		broke = len(highs) >= 2 && bars[0].Close > highs[1].Value
	case market.BiasBearish:
		broke = len(lows) >= 2 && bars[0].Close < lows[1].Value
	}
	if !broke {
		return false
	}
	if bars[0].Time.Equal(c.lastBOSTime) {
		return false
	}
	c.lastBOSTime = bars[0].Time
	return true
}

// DetectCHoCH reports a change of character: for a bullish bias a
// higher low after a sequence of lower lows (lows[0] > lows[1] with
// lows[1] < lows[2]), symmetrically for bearish. De-duplicated by the
// triggering bar time like BOS.
func (c *Classifier) DetectCHoCH(bars []market.Bar, bias market.Bias) bool {
	if len(bars) == 0 || bias == market.BiasNeutral {
		return false
	}
	highs, lows := FindSwingPoints(bars, c.cfg.LeftStrength, c.cfg.RightStrength)

	changed := false
	switch bias {
	case market.BiasBullish:
		changed = len(lows) >= 3 && lows[0].Value > lows[1].Value && lows[1].Value < lows[2].Value
	case market.BiasBearish:
		changed = len(highs) >= 3 && highs[0].Value < highs[1].Value && highs[1].Value > highs[2].Value
	}
	if !changed {
		return false
	}
	if bars[0].Time.Equal(c.lastCHoCHTime) {
		return false
	}
	c.lastCHoCHTime = bars[0].Time
	return true
}

// LastSignificantSwing returns the most recent confirmed swing low (for a
// bullish bias) or swing high (bearish), used as the structural stop
// fallback when no liquidity-grab level is available.
func (c *Classifier) LastSignificantSwing(bars []market.Bar, bias market.Bias) (SwingPoint, bool) {
	highs, lows := FindSwingPoints(bars, c.cfg.LeftStrength, c.cfg.RightStrength)
	switch bias {
	case market.BiasBullish:
		if len(lows) > 0 {
			return lows[0], true
		}
	case market.BiasBearish:
		if len(highs) > 0 {
			return highs[0], true
		}
	}
	return SwingPoint{}, false
}
