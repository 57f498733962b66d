package poi

import (
	"time"

	"mt5-smc-bot/internal/market"
)

// LiquidityConfig holds the liquidity detector parameters.
type LiquidityConfig struct {
	Lookback        int     `json:"lookback"`
	EqualPoints     float64 `json:"equal_points"`      // max distance in points for equal highs/lows
	StopZonePoints  float64 `json:"stop_zone_points"`  // synthetic stop-zone height beyond extremes
	GrabWindow      int     `json:"grab_window"`       // bars after a sweep inspected for reversal
	WickBodyMinimum float64 `json:"wick_body_minimum"` // wick/body multiple for single-bar rejection
}

// DefaultLiquidityConfig returns the detector defaults.
func DefaultLiquidityConfig() LiquidityConfig {
	return LiquidityConfig{
		Lookback:        100,
		EqualPoints:     10,
		StopZonePoints:  20,
		GrabWindow:      3,
		WickBodyMinimum: 2.0,
	}
}

// LiquidityGrab is a point-in-time sweep of a liquidity level with
// reversal evidence. It is an event, not a zone.
type LiquidityGrab struct {
	TargetKind    ZoneKind  `json:"target_kind"`
	Time          time.Time `json:"time"`
	SweepLevel    float64   `json:"sweep_level"`
	ReversalLevel float64   `json:"reversal_level"`
	Valid         bool      `json:"valid"`
}

// LiquidityDetector finds resting-liquidity zones (equal highs/lows and
// the stop clusters beyond the window extremes) and sweep events against
// them. Every call rescans the full lookback window.
type LiquidityDetector struct {
	series market.Series
	cfg    LiquidityConfig
}

// NewLiquidityDetector creates a detector bound to one symbol's series.
func NewLiquidityDetector(series market.Series, cfg LiquidityConfig) *LiquidityDetector {
	if cfg.Lookback <= 0 {
		cfg.Lookback = 100
	}
	if cfg.EqualPoints <= 0 {
		cfg.EqualPoints = 10
	}
	if cfg.StopZonePoints <= 0 {
		cfg.StopZonePoints = 20
	}
	if cfg.GrabWindow <= 0 {
		cfg.GrabWindow = 3
	}
	if cfg.WickBodyMinimum <= 0 {
		cfg.WickBodyMinimum = 2.0
	}
	return &LiquidityDetector{series: series, cfg: cfg}
}

// Detect returns the liquidity zones of the lookback window: equal-high
// and equal-low clusters plus the buy-stop/sell-stop zones synthesized
// just beyond the window's extreme high and low.
func (d *LiquidityDetector) Detect(tf market.Timeframe) []Zone {
	return detectLiquidityZones(d.series.Bars(tf, d.cfg.Lookback), d.series.Info().Point, d.cfg)
}

// DetectGrabs returns sweep events against the window's liquidity zones,
// newest first.
func (d *LiquidityDetector) DetectGrabs(tf market.Timeframe) []LiquidityGrab {
	bars := d.series.Bars(tf, d.cfg.Lookback)
	zones := detectLiquidityZones(bars, d.series.Info().Point, d.cfg)
	return detectGrabs(bars, zones, d.cfg)
}

// LatestGrab returns the most recent valid grab aligned with the bias: a
// bullish bias wants sell-side liquidity taken below, a bearish bias
// buy-side liquidity taken above.
func (d *LiquidityDetector) LatestGrab(tf market.Timeframe, bias market.Bias) (LiquidityGrab, bool) {
	for _, g := range d.DetectGrabs(tf) {
		if !g.Valid {
			continue
		}
		if bias == market.BiasBullish && (g.TargetKind == ZoneEqualLows || g.TargetKind == ZoneSellStops) {
			return g, true
		}
		if bias == market.BiasBearish && (g.TargetKind == ZoneEqualHighs || g.TargetKind == ZoneBuyStops) {
			return g, true
		}
	}
	return LiquidityGrab{}, false
}

// NearestOpposing returns the closest untouched liquidity level on the
// profit side of the bias, used as the preferred take-profit anchor.
func (d *LiquidityDetector) NearestOpposing(tf market.Timeframe, bias market.Bias, price float64) (float64, bool) {
	best := 0.0
	found := false
	for _, z := range d.Detect(tf) {
		if z.Swept {
			continue
		}
		switch bias {
		case market.BiasBullish:
			if (z.Kind == ZoneEqualHighs || z.Kind == ZoneBuyStops) && z.Lower > price {
				if !found || z.Lower < best {
					best = z.Lower
					found = true
				}
			}
		case market.BiasBearish:
			if (z.Kind == ZoneEqualLows || z.Kind == ZoneSellStops) && z.Upper < price {
				if !found || z.Upper > best {
					best = z.Upper
					found = true
				}
			}
		}
	}
	return best, found
}

// detectLiquidityZones builds equal-high/equal-low zones from bar pairs
// whose extremes sit within EqualPoints of each other, plus one
// buy-stop and one sell-stop zone beyond the window extremes. A zone is
// swept once a later bar trades through it.
func detectLiquidityZones(bars []market.Bar, point float64, cfg LiquidityConfig) []Zone {
	if len(bars) < 3 || point <= 0 {
		return nil
	}
	tolerance := cfg.EqualPoints * point
	stopHeight := cfg.StopZonePoints * point

	var zones []Zone
	extremeHigh, extremeLow := bars[0].High, bars[0].Low
	extremeHighAt, extremeLowAt := bars[0].Time, bars[0].Time

	for i := 0; i < len(bars); i++ {
		if bars[i].High > extremeHigh {
			extremeHigh = bars[i].High
			extremeHighAt = bars[i].Time
		}
		if bars[i].Low < extremeLow {
			extremeLow = bars[i].Low
			extremeLowAt = bars[i].Time
		}
		for j := i + 2; j < len(bars); j++ {
			hi, hj := bars[i].High, bars[j].High
			if diff := hi - hj; diff < tolerance && diff > -tolerance {
				zones = append(zones, liquidityPair(ZoneEqualHighs, market.BiasBearish, hi, hj, bars[j].Time, bars, i))
			}
			li, lj := bars[i].Low, bars[j].Low
			if diff := li - lj; diff < tolerance && diff > -tolerance {
				zones = append(zones, liquidityPair(ZoneEqualLows, market.BiasBullish, li, lj, bars[j].Time, bars, i))
			}
		}
	}

	// Stop clusters resting just beyond the window extremes.
	zones = append(zones, Zone{
		Kind:      ZoneBuyStops,
		Direction: market.BiasBearish,
		Upper:     extremeHigh + stopHeight,
		Lower:     extremeHigh,
		FormedAt:  extremeHighAt,
		Fresh:     true,
	}, Zone{
		Kind:      ZoneSellStops,
		Direction: market.BiasBullish,
		Upper:     extremeLow,
		Lower:     extremeLow - stopHeight,
		FormedAt:  extremeLowAt,
		Fresh:     true,
	})

	return filterValid(zones)
}

// liquidityPair builds an equal-extreme zone from two bar levels and
// derives its swept status from the bars that follow the newer leg.
func liquidityPair(kind ZoneKind, direction market.Bias, a, b float64, formed time.Time, bars []market.Bar, newerIdx int) Zone {
	z := Zone{
		Kind:       kind,
		Direction:  direction,
		Upper:      maxFloat(a, b),
		Lower:      minFloat(a, b),
		FormedAt:   formed,
		TouchCount: 2,
		Fresh:      true,
	}
	for j := newerIdx - 1; j >= 0; j-- {
		if kind == ZoneEqualHighs && bars[j].High > z.Upper {
			z.Swept = true
			z.Fresh = false
			break
		}
		if kind == ZoneEqualLows && bars[j].Low < z.Lower {
			z.Swept = true
			z.Fresh = false
			break
		}
	}
	return z
}

// detectGrabs finds sweep bars for each zone and validates the reversal:
// either the sweep bar rejects with an opposing wick at least
// WickBodyMinimum times its body and a close back inside the range, or
// at least 2 of the following GrabWindow bars close in the reversal
// direction. The reversal level is the sweep bar's close for both
// directions.
func detectGrabs(bars []market.Bar, zones []Zone, cfg LiquidityConfig) []LiquidityGrab {
	var grabs []LiquidityGrab
	for _, z := range zones {
		upward := z.Kind == ZoneEqualHighs || z.Kind == ZoneBuyStops
		for i := len(bars) - 1; i >= 0; i-- {
			bar := bars[i]
			if bar.Time.Before(z.FormedAt) || bar.Time.Equal(z.FormedAt) {
				continue
			}
			swept := (upward && bar.High > z.Upper) || (!upward && bar.Low < z.Lower)
			if !swept {
				continue
			}
			g := LiquidityGrab{
				TargetKind:    z.Kind,
				Time:          bar.Time,
				ReversalLevel: bar.Close,
			}
			if upward {
				g.SweepLevel = bar.High
				g.Valid = validateGrab(bars, i, bar, bar.Close < z.Upper, bar.UpperWick(), false, cfg)
			} else {
				g.SweepLevel = bar.Low
				g.Valid = validateGrab(bars, i, bar, bar.Close > z.Lower, bar.LowerWick(), true, cfg)
			}
			grabs = append(grabs, g)
			break // first sweep of this zone only
		}
	}
	// Newest first.
	for i, j := 0, len(grabs)-1; i < j; i, j = i+1, j-1 {
		grabs[i], grabs[j] = grabs[j], grabs[i]
	}
	return grabs
}

// validateGrab applies the wick-rejection test at the sweep bar and the
// follow-through test over the next bars.
func validateGrab(bars []market.Bar, i int, sweep market.Bar, closedInside bool, wick float64, reversalUp bool, cfg LiquidityConfig) bool {
	if closedInside && sweep.Body() > 0 && wick >= cfg.WickBodyMinimum*sweep.Body() {
		return true
	}
	confirming := 0
	for j := 1; j <= cfg.GrabWindow && i-j >= 0; j++ {
		next := bars[i-j]
		if reversalUp && next.IsBullish() {
			confirming++
		}
		if !reversalUp && next.IsBearish() {
			confirming++
		}
	}
	return confirming >= 2
}
