package poi

import "mt5-smc-bot/internal/market"

// SupplyDemandConfig holds the supply/demand detector parameters.
type SupplyDemandConfig struct {
	Lookback           int     `json:"lookback"`
	MinDisplacementPct float64 `json:"min_displacement_pct"` // % move away from the extremum
	StrongMultiple     float64 `json:"strong_multiple"`      // displacement vs avg range for "strong"
	NormalMultiple     float64 `json:"normal_multiple"`      // displacement vs avg range for "normal"
}

// DefaultSupplyDemandConfig returns the detector defaults.
func DefaultSupplyDemandConfig() SupplyDemandConfig {
	return SupplyDemandConfig{
		Lookback:           100,
		MinDisplacementPct: 0.3,
		StrongMultiple:     3.0,
		NormalMultiple:     1.5,
	}
}

// SupplyDemandDetector finds supply and demand zones at local reversal
// extremes. Overlapping zones of the same polarity are merged.
type SupplyDemandDetector struct {
	series market.Series
	cfg    SupplyDemandConfig
}

// NewSupplyDemandDetector creates a detector bound to one symbol's series.
func NewSupplyDemandDetector(series market.Series, cfg SupplyDemandConfig) *SupplyDemandDetector {
	if cfg.Lookback <= 0 {
		cfg.Lookback = 100
	}
	if cfg.MinDisplacementPct <= 0 {
		cfg.MinDisplacementPct = 0.3
	}
	if cfg.StrongMultiple <= 0 {
		cfg.StrongMultiple = 3.0
	}
	if cfg.NormalMultiple <= 0 {
		cfg.NormalMultiple = 1.5
	}
	return &SupplyDemandDetector{series: series, cfg: cfg}
}

// Detect returns the merged supply/demand zones of the lookback window.
func (d *SupplyDemandDetector) Detect(tf market.Timeframe) []Zone {
	return detectSupplyDemand(d.series.Bars(tf, d.cfg.Lookback), d.cfg)
}

// IsInRelevantZone reports whether the current close sits inside an
// unbroken zone aligned with the bias (demand for bullish, supply for
// bearish).
func (d *SupplyDemandDetector) IsInRelevantZone(tf market.Timeframe, bias market.Bias) bool {
	bars := d.series.Bars(tf, d.cfg.Lookback)
	if len(bars) == 0 {
		return false
	}
	price := bars[0].Close
	for _, z := range detectSupplyDemand(bars, d.cfg) {
		if z.Direction == bias && !z.Broken && z.Contains(price) {
			return true
		}
	}
	return false
}

// HasFreshZone reports whether an untouched bias-aligned zone exists.
func (d *SupplyDemandDetector) HasFreshZone(tf market.Timeframe, bias market.Bias) bool {
	for _, z := range d.Detect(tf) {
		if z.Direction == bias && z.Fresh && !z.Broken {
			return true
		}
	}
	return false
}

// detectSupplyDemand scans a newest-first window for reversal extremes.
// A supply zone forms at a bar whose high exceeds both neighbours when
// at least 2 of the next 3 bars close down and price moves at least
// MinDisplacementPct away from the extremum. Strength compares the
// displacement to the 5-bar average candle range after the departure
// point. A zone is broken once a later bar closes through its far
// boundary.
func detectSupplyDemand(bars []market.Bar, cfg SupplyDemandConfig) []Zone {
	if len(bars) < 5 {
		return nil
	}

	var zones []Zone
	for i := 3; i+1 < len(bars); i++ {
		bar := bars[i]
		newer := bars[i-1]
		older := bars[i+1]

		// Supply: local high with bearish follow-through.
		if bar.High > newer.High && bar.High > older.High {
			if z, ok := buildReversalZone(bars, i, market.BiasBearish, cfg); ok {
				zones = append(zones, z)
			}
		}
		// Demand: local low with bullish follow-through.
		if bar.Low < newer.Low && bar.Low < older.Low {
			if z, ok := buildReversalZone(bars, i, market.BiasBullish, cfg); ok {
				zones = append(zones, z)
			}
		}
	}
	return MergeOverlapping(filterValid(zones))
}

func buildReversalZone(bars []market.Bar, i int, direction market.Bias, cfg SupplyDemandConfig) (Zone, bool) {
	bar := bars[i]

	downCloses, upCloses := 0, 0
	extremeClose := bars[i-1].Close
	for j := 1; j <= 3; j++ {
		next := bars[i-j]
		if next.IsBearish() {
			downCloses++
		}
		if next.IsBullish() {
			upCloses++
		}
		if direction == market.BiasBearish && next.Close < extremeClose {
			extremeClose = next.Close
		}
		if direction == market.BiasBullish && next.Close > extremeClose {
			extremeClose = next.Close
		}
	}

	var displacement float64
	z := Zone{Kind: ZoneSupply, Direction: direction, FormedAt: bar.Time, Fresh: true, TouchCount: 1}
	switch direction {
	case market.BiasBearish:
		if downCloses < 2 || bar.High <= 0 {
			return Zone{}, false
		}
		displacement = bar.High - extremeClose
		if displacement/bar.High*100 < cfg.MinDisplacementPct {
			return Zone{}, false
		}
		z.Upper = bar.High
		z.Lower = minFloat(bar.Open, bar.Close)
	case market.BiasBullish:
		if upCloses < 2 || bar.Low <= 0 {
			return Zone{}, false
		}
		displacement = extremeClose - bar.Low
		if displacement/bar.Low*100 < cfg.MinDisplacementPct {
			return Zone{}, false
		}
		z.Kind = ZoneDemand
		z.Upper = maxFloat(bar.Open, bar.Close)
		z.Lower = bar.Low
	default:
		return Zone{}, false
	}

	z.Strength = gradeStrength(displacement, averageRange(bars, i-1, 5), cfg)

	// Freshness and broken status over every bar after formation.
	for j := i - 4; j >= 0; j-- {
		later := bars[j]
		if later.Range() > 0 && later.Low <= z.Upper && later.High >= z.Lower {
			z.Fresh = false
			z.TouchCount++
		}
		if direction == market.BiasBearish && later.Close > z.Upper {
			z.Broken = true
		}
		if direction == market.BiasBullish && later.Close < z.Lower {
			z.Broken = true
		}
	}
	return z, true
}

// averageRange returns the mean high-low span of count bars starting at
// the departure point and walking forward in time.
func averageRange(bars []market.Bar, from, count int) float64 {
	sum, n := 0.0, 0
	for j := from; j > from-count && j >= 0; j-- {
		sum += bars[j].Range()
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func gradeStrength(displacement, avgRange float64, cfg SupplyDemandConfig) ZoneStrength {
	if avgRange <= 0 {
		return StrengthWeak
	}
	switch {
	case displacement > cfg.StrongMultiple*avgRange:
		return StrengthStrong
	case displacement > cfg.NormalMultiple*avgRange:
		return StrengthNormal
	default:
		return StrengthWeak
	}
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
