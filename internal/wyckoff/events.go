package wyckoff

import (
	"time"

	"mt5-smc-bot/internal/market"
)

// EventType labels a single-bar Wyckoff event.
type EventType string

const (
	SellingClimax  EventType = "selling_climax"
	BuyingClimax   EventType = "buying_climax"
	Spring         EventType = "spring"
	Upthrust       EventType = "upthrust"
	SignOfStrength EventType = "sign_of_strength"
	SignOfWeakness EventType = "sign_of_weakness"
)

// Event is a tagged bar. Each bar carries at most one event; the
// detectors run in priority order and the first match wins.
type Event struct {
	Type EventType `json:"type"`
	Time time.Time `json:"time"`
}

// EventCounts aggregates the events of one scan.
type EventCounts struct {
	SellingClimax  int
	BuyingClimax   int
	Spring         int
	Upthrust       int
	SignOfStrength int
	SignOfWeakness int
}

func (c EventCounts) accumulation() int {
	return c.SellingClimax + c.Spring + c.SignOfStrength
}

func (c EventCounts) distribution() int {
	return c.BuyingClimax + c.Upthrust + c.SignOfWeakness
}

// tagEvents walks the newest-first window and labels bars. Each test
// needs contextWindow prior bars and followWindow later bars, so only
// the middle of the window can be tagged.
func (c *Classifier) tagEvents(bars []market.Bar) []Event {
	hasVolume := anyVolume(bars)
	var events []Event

	for i := c.cfg.FollowWindow; i+c.cfg.ContextWindow < len(bars); i++ {
		bar := bars[i]
		ctx := newContext(bars, i, c.cfg)

		var tagged EventType
		switch {
		case c.isSellingClimax(bars, i, ctx, hasVolume):
			tagged = SellingClimax
		case c.isBuyingClimax(bars, i, ctx, hasVolume):
			tagged = BuyingClimax
		case c.isSpring(bars, i, ctx):
			tagged = Spring
		case c.isUpthrust(bars, i, ctx):
			tagged = Upthrust
		case c.isSignOfStrength(bars, i, ctx):
			tagged = SignOfStrength
		case c.isSignOfWeakness(bars, i, ctx):
			tagged = SignOfWeakness
		default:
			continue
		}
		events = append(events, Event{Type: tagged, Time: bar.Time})
	}
	return events
}

// barContext summarizes the ContextWindow bars preceding a candidate.
type barContext struct {
	avgRange       float64
	avgVolume      float64
	rangeHigh      float64
	rangeLow       float64
	inTradingRange bool
}

func newContext(bars []market.Bar, i int, cfg Config) barContext {
	ctx := barContext{rangeHigh: bars[i+1].High, rangeLow: bars[i+1].Low}
	sumRange, sumVolume := 0.0, 0.0
	n := 0
	for j := i + 1; j <= i+cfg.ContextWindow && j < len(bars); j++ {
		b := bars[j]
		sumRange += b.Range()
		sumVolume += b.Volume
		if b.High > ctx.rangeHigh {
			ctx.rangeHigh = b.High
		}
		if b.Low < ctx.rangeLow {
			ctx.rangeLow = b.Low
		}
		n++
	}
	if n > 0 {
		ctx.avgRange = sumRange / float64(n)
		ctx.avgVolume = sumVolume / float64(n)
	}
	mid := (ctx.rangeHigh + ctx.rangeLow) / 2
	if mid > 0 {
		ctx.inTradingRange = (ctx.rangeHigh-ctx.rangeLow)/mid*100 < cfg.TradingRangePct
	}
	return ctx
}

// volumeSpike is corroboration only: with no volume data the check is
// skipped, not failed.
func volumeSpike(bar market.Bar, ctx barContext, hasVolume bool, multiple float64) bool {
	if !hasVolume {
		return true
	}
	return ctx.avgVolume > 0 && bar.Volume > multiple*ctx.avgVolume
}

func anyVolume(bars []market.Bar) bool {
	for _, b := range bars {
		if b.Volume > 0 {
			return true
		}
	}
	return false
}

// followThrough counts closes in the given direction over the next
// window bars (smaller shifts are later in time).
func followThrough(bars []market.Bar, i, window int, up bool) int {
	n := 0
	for j := 1; j <= window && i-j >= 0; j++ {
		next := bars[i-j]
		if up && next.IsBullish() {
			n++
		}
		if !up && next.IsBearish() {
			n++
		}
	}
	return n
}

// isSellingClimax: a wide-range panic bar closing in its lower third on
// climactic volume, absorbed by buying over the following bars.
func (c *Classifier) isSellingClimax(bars []market.Bar, i int, ctx barContext, hasVolume bool) bool {
	bar := bars[i]
	if !bar.IsBearish() || ctx.avgRange <= 0 || bar.Range() < c.cfg.ClimaxRangeMultiple*ctx.avgRange {
		return false
	}
	if bar.Range() > 0 && (bar.Close-bar.Low)/bar.Range() > 1.0/3.0 {
		return false
	}
	if !volumeSpike(bar, ctx, hasVolume, c.cfg.VolumeSpikeMultiple) {
		return false
	}
	return followThrough(bars, i, c.cfg.FollowWindow, true) >= 2
}

// isBuyingClimax mirrors the selling climax at the top.
func (c *Classifier) isBuyingClimax(bars []market.Bar, i int, ctx barContext, hasVolume bool) bool {
	bar := bars[i]
	if !bar.IsBullish() || ctx.avgRange <= 0 || bar.Range() < c.cfg.ClimaxRangeMultiple*ctx.avgRange {
		return false
	}
	if bar.Range() > 0 && (bar.High-bar.Close)/bar.Range() > 1.0/3.0 {
		return false
	}
	if !volumeSpike(bar, ctx, hasVolume, c.cfg.VolumeSpikeMultiple) {
		return false
	}
	return followThrough(bars, i, c.cfg.FollowWindow, false) >= 2
}

// isSpring: a poke below an established trading range that closes back
// inside and attracts buying.
func (c *Classifier) isSpring(bars []market.Bar, i int, ctx barContext) bool {
	if !ctx.inTradingRange {
		return false
	}
	bar := bars[i]
	if bar.Low >= ctx.rangeLow || bar.Close <= ctx.rangeLow {
		return false
	}
	return followThrough(bars, i, c.cfg.FollowWindow, true) >= 2
}

// isUpthrust mirrors the spring above the range.
func (c *Classifier) isUpthrust(bars []market.Bar, i int, ctx barContext) bool {
	if !ctx.inTradingRange {
		return false
	}
	bar := bars[i]
	if bar.High <= ctx.rangeHigh || bar.Close >= ctx.rangeHigh {
		return false
	}
	return followThrough(bars, i, c.cfg.FollowWindow, false) >= 2
}

// isSignOfStrength: a strong bar closing in its upper third that clears
// the range high with continuation.
func (c *Classifier) isSignOfStrength(bars []market.Bar, i int, ctx barContext) bool {
	bar := bars[i]
	if !bar.IsBullish() || ctx.avgRange <= 0 || bar.Range() < c.cfg.EffortRangeMultiple*ctx.avgRange {
		return false
	}
	if bar.Close <= ctx.rangeHigh {
		return false
	}
	if bar.Range() > 0 && (bar.High-bar.Close)/bar.Range() > 1.0/3.0 {
		return false
	}
	return followThrough(bars, i, c.cfg.FollowWindow, true) >= 1
}

// isSignOfWeakness mirrors SOS through the range low.
func (c *Classifier) isSignOfWeakness(bars []market.Bar, i int, ctx barContext) bool {
	bar := bars[i]
	if !bar.IsBearish() || ctx.avgRange <= 0 || bar.Range() < c.cfg.EffortRangeMultiple*ctx.avgRange {
		return false
	}
	if bar.Close >= ctx.rangeLow {
		return false
	}
	if bar.Range() > 0 && (bar.Close-bar.Low)/bar.Range() > 1.0/3.0 {
		return false
	}
	return followThrough(bars, i, c.cfg.FollowWindow, false) >= 1
}
