package fusion

import (
	"mt5-smc-bot/internal/market"
)

type tradeLevels struct {
	stop   float64
	target float64
	lots   float64
}

// computeLevels derives stop, target and size for an entry at the given
// price. The stop prefers the liquidity-grab sweep level plus a buffer
// and falls back to the last significant structural swing; the target
// prefers the nearest untouched opposing liquidity level and falls back
// to a fixed risk:reward multiple of the stop distance.
func (e *Engine) computeLevels(tf market.Timeframe, bars []market.Bar, entry float64, conf ltfConfirmation) (tradeLevels, bool) {
	info := e.series.Info()
	buffer := market.PointsToPrice(e.cfg.StopBufferPoints, info)

	var stop float64
	switch {
	case conf.hasGrab && e.bias == market.BiasBullish:
		stop = conf.grab.SweepLevel - buffer
	case conf.hasGrab && e.bias == market.BiasBearish:
		stop = conf.grab.SweepLevel + buffer
	default:
		swing, ok := e.structures[tf].LastSignificantSwing(bars, e.bias)
		if !ok {
			return tradeLevels{}, false
		}
		if e.bias == market.BiasBullish {
			stop = swing.Value - buffer
		} else {
			stop = swing.Value + buffer
		}
	}

	stopDistance := entry - stop
	if e.bias == market.BiasBearish {
		stopDistance = stop - entry
	}
	if stopDistance <= 0 {
		return tradeLevels{}, false
	}

	target, ok := e.liquidity.NearestOpposing(tf, e.bias, entry)
	if !ok {
		if e.bias == market.BiasBullish {
			target = entry + e.cfg.RiskRewardRatio*stopDistance
		} else {
			target = entry - e.cfg.RiskRewardRatio*stopDistance
		}
	}

	lots := positionSize(e.cfg.RiskAmount, stopDistance, info)
	if lots <= 0 {
		return tradeLevels{}, false
	}
	return tradeLevels{stop: stop, target: target, lots: lots}, true
}

// positionSize converts the account risk amount into lots: risk divided
// by the stop distance expressed in account-currency value per lot, then
// normalized to the broker's lot constraints.
func positionSize(riskAmount, stopDistance float64, info market.SymbolInfo) float64 {
	if riskAmount <= 0 || stopDistance <= 0 {
		return 0
	}
	points := market.PriceToPoints(stopDistance, info)
	if points <= 0 || info.TickValue <= 0 {
		return 0
	}
	raw := riskAmount / (points * info.TickValue)
	return market.NormalizeLots(raw, info)
}
