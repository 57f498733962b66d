package poi

import "mt5-smc-bot/internal/market"

// Inspector aggregates the four detectors for ad-hoc zone inspection.
type Inspector struct {
	orderBlocks  *OrderBlockDetector
	fvgs         *FVGDetector
	supplyDemand *SupplyDemandDetector
	liquidity    *LiquidityDetector
}

// NewInspector bundles the detectors.
func NewInspector(ob *OrderBlockDetector, fvg *FVGDetector, sd *SupplyDemandDetector, liq *LiquidityDetector) *Inspector {
	return &Inspector{orderBlocks: ob, fvgs: fvg, supplyDemand: sd, liquidity: liq}
}

// Zones runs a full rescan of every detector on the timeframe.
func (i *Inspector) Zones(tf market.Timeframe) map[string][]Zone {
	return map[string][]Zone{
		"order_blocks":    i.orderBlocks.Detect(tf),
		"fair_value_gaps": i.fvgs.Detect(tf),
		"supply_demand":   i.supplyDemand.Detect(tf),
		"liquidity":       i.liquidity.Detect(tf),
	}
}
