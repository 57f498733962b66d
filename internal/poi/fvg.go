package poi

import "mt5-smc-bot/internal/market"

// FVGConfig holds the fair-value-gap detector parameters.
type FVGConfig struct {
	Lookback      int     `json:"lookback"`
	MinSizePoints float64 `json:"min_size_points"`
	FreshCount    int     `json:"fresh_count"` // newest gaps per polarity counted as fresh
}

// DefaultFVGConfig returns the detector defaults.
func DefaultFVGConfig() FVGConfig {
	return FVGConfig{
		Lookback:      100,
		MinSizePoints: 5,
		FreshCount:    3,
	}
}

// FVGDetector finds 3-candle imbalances. Every call rescans the full
// lookback window; fill status is derived from the bars after formation.
type FVGDetector struct {
	series market.Series
	cfg    FVGConfig
}

// NewFVGDetector creates a detector bound to one symbol's series.
func NewFVGDetector(series market.Series, cfg FVGConfig) *FVGDetector {
	if cfg.Lookback <= 0 {
		cfg.Lookback = 100
	}
	if cfg.MinSizePoints <= 0 {
		cfg.MinSizePoints = 5
	}
	if cfg.FreshCount <= 0 {
		cfg.FreshCount = 3
	}
	return &FVGDetector{series: series, cfg: cfg}
}

// Detect returns all gaps in the lookback window, newest first. A gap is
// marked Broken once filled, and Fresh while it is one of the
// FreshCount most recently formed gaps of its polarity.
func (d *FVGDetector) Detect(tf market.Timeframe) []Zone {
	bars := d.series.Bars(tf, d.cfg.Lookback)
	return detectFVGs(bars, d.series.Info().Point, d.cfg.MinSizePoints, d.cfg.FreshCount)
}

// IsInRelevantZone reports whether the current close sits inside a
// bias-aligned unfilled gap.
func (d *FVGDetector) IsInRelevantZone(tf market.Timeframe, bias market.Bias) bool {
	bars := d.series.Bars(tf, d.cfg.Lookback)
	if len(bars) == 0 {
		return false
	}
	price := bars[0].Close
	for _, z := range detectFVGs(bars, d.series.Info().Point, d.cfg.MinSizePoints, d.cfg.FreshCount) {
		if z.Direction == bias && !z.Broken && z.Contains(price) {
			return true
		}
	}
	return false
}

// HasFreshZone reports whether an unfilled fresh gap of the bias
// polarity exists, the LTF confirmation used by the fusion cascade.
func (d *FVGDetector) HasFreshZone(tf market.Timeframe, bias market.Bias) bool {
	for _, z := range d.Detect(tf) {
		if z.Direction == bias && z.Fresh && !z.Broken {
			return true
		}
	}
	return false
}

// detectFVGs scans a newest-first window. For a middle candle at i the
// newer neighbour sits at i-1 and the older at i+1. Bullish imbalance:
// the newer low clears the older high; bearish is the mirror. Once a
// later bar's low (bullish) or high (bearish) crosses into the gap it is
// filled for good: the flag never reverts as history grows.
func detectFVGs(bars []market.Bar, point, minSizePoints float64, freshCount int) []Zone {
	if len(bars) < 3 || point <= 0 {
		return nil
	}
	minSize := minSizePoints * point

	var zones []Zone
	bullish, bearish := 0, 0
	for i := 1; i+1 < len(bars); i++ {
		newer := bars[i-1]
		older := bars[i+1]

		if newer.Low > older.High && newer.Low-older.High >= minSize {
			z := Zone{
				Kind:      ZoneFVG,
				Direction: market.BiasBullish,
				Upper:     newer.Low,
				Lower:     older.High,
				FormedAt:  bars[i].Time,
				Fresh:     bullish < freshCount,
			}
			bullish++
			for j := i - 2; j >= 0; j-- {
				if bars[j].Low <= z.Upper {
					z.Broken = true
					break
				}
			}
			zones = append(zones, z)
		}

		if newer.High < older.Low && older.Low-newer.High >= minSize {
			z := Zone{
				Kind:      ZoneFVG,
				Direction: market.BiasBearish,
				Upper:     older.Low,
				Lower:     newer.High,
				FormedAt:  bars[i].Time,
				Fresh:     bearish < freshCount,
			}
			bearish++
			for j := i - 2; j >= 0; j-- {
				if bars[j].High >= z.Lower {
					z.Broken = true
					break
				}
			}
			zones = append(zones, z)
		}
	}
	return filterValid(zones)
}
