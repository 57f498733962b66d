package poi

import "mt5-smc-bot/internal/market"

// OrderBlockConfig holds the order-block detector parameters.
type OrderBlockConfig struct {
	Lookback        int     `json:"lookback"`
	MinDisplacement float64 `json:"min_displacement"` // price units over the 3 bars after the block
}

// DefaultOrderBlockConfig returns the detector defaults.
func DefaultOrderBlockConfig() OrderBlockConfig {
	return OrderBlockConfig{
		Lookback:        100,
		MinDisplacement: 0.0010,
	}
}

// OrderBlockDetector finds order blocks: the last opposing candle before
// a displacement move. Every call rescans the full lookback window.
type OrderBlockDetector struct {
	series market.Series
	cfg    OrderBlockConfig
}

// NewOrderBlockDetector creates a detector bound to one symbol's series.
func NewOrderBlockDetector(series market.Series, cfg OrderBlockConfig) *OrderBlockDetector {
	if cfg.Lookback <= 0 {
		cfg.Lookback = 100
	}
	if cfg.MinDisplacement <= 0 {
		cfg.MinDisplacement = 0.0010
	}
	return &OrderBlockDetector{series: series, cfg: cfg}
}

// Detect returns all order blocks in the lookback window, newest first.
func (d *OrderBlockDetector) Detect(tf market.Timeframe) []Zone {
	return detectOrderBlocks(d.series.Bars(tf, d.cfg.Lookback), d.cfg.MinDisplacement)
}

// IsInRelevantZone reports whether the current close sits inside a
// bias-aligned order block.
func (d *OrderBlockDetector) IsInRelevantZone(tf market.Timeframe, bias market.Bias) bool {
	bars := d.series.Bars(tf, d.cfg.Lookback)
	if len(bars) == 0 {
		return false
	}
	price := bars[0].Close
	for _, z := range detectOrderBlocks(bars, d.cfg.MinDisplacement) {
		if z.Direction == bias && z.Contains(price) {
			return true
		}
	}
	return false
}

// HasFreshZone reports whether any unmitigated bias-aligned block exists.
func (d *OrderBlockDetector) HasFreshZone(tf market.Timeframe, bias market.Bias) bool {
	for _, z := range d.Detect(tf) {
		if z.Direction == bias && z.Fresh {
			return true
		}
	}
	return false
}

// detectOrderBlocks scans a newest-first window. A bullish block is a
// down-close candle whose low undercuts the next bar's low, followed by
// a net upward displacement over the next 3 bars of at least
// minDisplacement; bearish is the mirror. A block stays fresh until a
// later bar's low (resp. high) revisits the block's low (resp. high).
func detectOrderBlocks(bars []market.Bar, minDisplacement float64) []Zone {
	if len(bars) < 4 {
		return nil
	}

	var zones []Zone
	for i := 3; i < len(bars); i++ {
		candle := bars[i]
		// The 3 bars after the candidate in time sit at i-1..i-3.
		displacement := bars[i-3].Close - candle.Close

		if candle.IsBearish() && displacement >= minDisplacement && candle.Low < bars[i-1].Low {
			z := Zone{
				Kind:      ZoneOrderBlock,
				Direction: market.BiasBullish,
				Upper:     candle.High,
				Lower:     candle.Low,
				FormedAt:  candle.Time,
				Fresh:     true,
			}
			for j := i - 1; j >= 0; j-- {
				if bars[j].Low <= z.Lower {
					z.Fresh = false
					break
				}
			}
			zones = append(zones, z)
		}

		if candle.IsBullish() && -displacement >= minDisplacement && candle.High > bars[i-1].High {
			z := Zone{
				Kind:      ZoneOrderBlock,
				Direction: market.BiasBearish,
				Upper:     candle.High,
				Lower:     candle.Low,
				FormedAt:  candle.Time,
				Fresh:     true,
			}
			for j := i - 1; j >= 0; j-- {
				if bars[j].High >= z.Upper {
					z.Fresh = false
					break
				}
			}
			zones = append(zones, z)
		}
	}
	// The scan walks old blocks last; newest-first output matches the
	// rest of the detector family.
	return filterValid(zones)
}
