package wyckoff

import (
	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"

	"mt5-smc-bot/internal/market"
)

// Phase is the coarse Wyckoff market phase of one timeframe.
type Phase string

const (
	PhaseUnknown           Phase = "unknown"
	PhaseEarlyAccumulation Phase = "early_accumulation"
	PhaseMidAccumulation   Phase = "mid_accumulation"
	PhaseLateAccumulation  Phase = "late_accumulation"
	PhaseMarkup            Phase = "markup"
	PhaseEarlyDistribution Phase = "early_distribution"
	PhaseMidDistribution   Phase = "mid_distribution"
	PhaseLateDistribution  Phase = "late_distribution"
	PhaseMarkdown          Phase = "markdown"
)

// Bullish reports whether the phase supports long entries in the cascade.
func (p Phase) Bullish() bool {
	return p == PhaseLateAccumulation || p == PhaseMarkup
}

// Bearish reports whether the phase supports short entries.
func (p Phase) Bearish() bool {
	return p == PhaseLateDistribution || p == PhaseMarkdown
}

// Config holds the phase classifier parameters.
type Config struct {
	MinBars             int     `json:"min_bars"`
	ContextWindow       int     `json:"context_window"`
	FollowWindow        int     `json:"follow_window"`
	TradingRangePct     float64 `json:"trading_range_pct"`
	VolumeSpikeMultiple float64 `json:"volume_spike_multiple"`
	ClimaxRangeMultiple float64 `json:"climax_range_multiple"`
	EffortRangeMultiple float64 `json:"effort_range_multiple"`
	FastMA              int     `json:"fast_ma"`
	MidMA               int     `json:"mid_ma"`
	SlowMA              int     `json:"slow_ma"`
}

// DefaultConfig returns the classifier defaults.
func DefaultConfig() Config {
	return Config{
		MinBars:             50,
		ContextWindow:       20,
		FollowWindow:        3,
		TradingRangePct:     7.0,
		VolumeSpikeMultiple: 1.5,
		ClimaxRangeMultiple: 2.0,
		EffortRangeMultiple: 1.5,
		FastMA:              20,
		MidMA:               50,
		SlowMA:              100,
	}
}

// Classifier labels the Wyckoff phase of one timeframe. The last phase
// is kept so callers can read the previous classification without a
// rescan.
type Classifier struct {
	cfg  Config
	last Phase
}

// NewClassifier creates a classifier with sane defaults filled in.
func NewClassifier(cfg Config) *Classifier {
	def := DefaultConfig()
	if cfg.MinBars <= 0 {
		cfg.MinBars = def.MinBars
	}
	if cfg.ContextWindow <= 0 {
		cfg.ContextWindow = def.ContextWindow
	}
	if cfg.FollowWindow <= 0 {
		cfg.FollowWindow = def.FollowWindow
	}
	if cfg.TradingRangePct <= 0 {
		cfg.TradingRangePct = def.TradingRangePct
	}
	if cfg.VolumeSpikeMultiple <= 0 {
		cfg.VolumeSpikeMultiple = def.VolumeSpikeMultiple
	}
	if cfg.ClimaxRangeMultiple <= 0 {
		cfg.ClimaxRangeMultiple = def.ClimaxRangeMultiple
	}
	if cfg.EffortRangeMultiple <= 0 {
		cfg.EffortRangeMultiple = def.EffortRangeMultiple
	}
	if cfg.FastMA <= 0 {
		cfg.FastMA = def.FastMA
	}
	if cfg.MidMA <= 0 {
		cfg.MidMA = def.MidMA
	}
	if cfg.SlowMA <= 0 {
		cfg.SlowMA = def.SlowMA
	}
	return &Classifier{cfg: cfg, last: PhaseUnknown}
}

// Last returns the previous classification.
func (c *Classifier) Last() Phase {
	return c.last
}

// DeterminePhase classifies a newest-first bar window. Fewer than
// MinBars bars yields PhaseUnknown without touching the kept state.
func (c *Classifier) DeterminePhase(bars []market.Bar) Phase {
	if len(bars) < c.cfg.MinBars {
		return PhaseUnknown
	}

	// A strict moving-average nesting decides the trending phases
	// outright; the event counts only arbitrate inside ranges.
	maPhase := c.trendPhase(bars)
	if maPhase != PhaseUnknown {
		c.last = maPhase
		return maPhase
	}

	counts := countEvents(c.tagEvents(bars))
	phase := phaseFromCounts(counts)
	if phase != PhaseUnknown {
		c.last = phase
	}
	return phase
}

func countEvents(events []Event) EventCounts {
	var counts EventCounts
	for _, e := range events {
		switch e.Type {
		case SellingClimax:
			counts.SellingClimax++
		case BuyingClimax:
			counts.BuyingClimax++
		case Spring:
			counts.Spring++
		case Upthrust:
			counts.Upthrust++
		case SignOfStrength:
			counts.SignOfStrength++
		case SignOfWeakness:
			counts.SignOfWeakness++
		}
	}
	return counts
}

// trendPhase computes the 20/50/100 SMA ordering on closes. Strictly
// nested averages under the current price mean markup; the mirror means
// markdown; anything else is left to the event rules.
func (c *Classifier) trendPhase(bars []market.Bar) Phase {
	if len(bars) < c.cfg.SlowMA {
		return PhaseUnknown
	}

	// cinar expects oldest-first input.
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[len(bars)-1-i] = b.Close
	}

	fast := lastSMA(closes, c.cfg.FastMA)
	mid := lastSMA(closes, c.cfg.MidMA)
	slow := lastSMA(closes, c.cfg.SlowMA)
	price := bars[0].Close

	if price > fast && fast > mid && mid > slow {
		return PhaseMarkup
	}
	if price < fast && fast < mid && mid < slow {
		return PhaseMarkdown
	}
	return PhaseUnknown
}

func lastSMA(closes []float64, period int) float64 {
	sma := trend.NewSmaWithPeriod[float64](period)
	values := helper.ChanToSlice(sma.Compute(helper.SliceToChan(closes)))
	if len(values) == 0 {
		return 0
	}
	return values[len(values)-1]
}

// phaseFromCounts applies the event-count rules: the dominant side picks
// accumulation or distribution, and the presence of a breakout event
// (SOS/SOW) after a range test (spring/upthrust) deepens the phase.
func phaseFromCounts(counts EventCounts) Phase {
	acc, dist := counts.accumulation(), counts.distribution()
	switch {
	case acc == 0 && dist == 0:
		return PhaseUnknown
	case acc >= dist:
		if counts.Spring > 0 && counts.SignOfStrength > 0 {
			return PhaseLateAccumulation
		}
		if counts.Spring > 0 {
			return PhaseMidAccumulation
		}
		return PhaseEarlyAccumulation
	default:
		if counts.Upthrust > 0 && counts.SignOfWeakness > 0 {
			return PhaseLateDistribution
		}
		if counts.Upthrust > 0 {
			return PhaseMidDistribution
		}
		return PhaseEarlyDistribution
	}
}
