package fusion

import (
	"time"

	"github.com/google/uuid"

	"mt5-smc-bot/internal/broker"
	"mt5-smc-bot/internal/market"
	"mt5-smc-bot/internal/poi"
	"mt5-smc-bot/internal/session"
	"mt5-smc-bot/internal/structure"
	"mt5-smc-bot/internal/wyckoff"
)

// Config holds the cascade parameters.
type Config struct {
	HigherTimeframes []market.Timeframe `json:"higher_timeframes"`
	MediumTimeframes []market.Timeframe `json:"medium_timeframes"`
	LowerTimeframes  []market.Timeframe `json:"lower_timeframes"`

	Lookback         int     `json:"lookback"`
	RiskAmount       float64 `json:"risk_amount"`        // account currency risked per trade
	RiskRewardRatio  float64 `json:"risk_reward_ratio"`  // take-profit fallback multiple
	StopBufferPoints float64 `json:"stop_buffer_points"` // added beyond the sweep level
}

// DefaultConfig returns the cascade defaults.
func DefaultConfig() Config {
	return Config{
		HigherTimeframes: []market.Timeframe{market.D1, market.H4},
		MediumTimeframes: []market.Timeframe{market.H1, market.M30},
		LowerTimeframes:  []market.Timeframe{market.M15, market.M5},
		Lookback:         150,
		RiskAmount:       100,
		RiskRewardRatio:  2.0,
		StopBufferPoints: 10,
	}
}

// Signal is a confirmed entry decision with computed levels.
type Signal struct {
	ID         string           `json:"id"`
	Symbol     string           `json:"symbol"`
	Direction  broker.Direction `json:"direction"`
	Bias       market.Bias      `json:"bias"`
	EntryPrice float64          `json:"entry_price"`
	StopLoss   float64          `json:"stop_loss"`
	TakeProfit float64          `json:"take_profit"`
	LotSize    float64          `json:"lot_size"`
	Time       time.Time        `json:"time"`
}

// Snapshot is the cascade's per-evaluation observable state, exposed to
// the status API.
type Snapshot struct {
	Bias       market.Bias                          `json:"bias"`
	InHTFPOI   bool                                 `json:"in_htf_poi"`
	InMTFPOI   bool                                 `json:"in_mtf_poi"`
	Structures map[market.Timeframe]structure.Trend `json:"structures"`
	Phases     map[market.Timeframe]wyckoff.Phase   `json:"phases"`
	Confirmed  market.Timeframe                     `json:"confirmed_timeframe,omitempty"`
}

// Engine fuses structure, Wyckoff phase and POI membership across the
// three timeframe tiers into one entry decision per evaluation. It owns
// the per-timeframe classifier instances, so the same Engine must serve
// every tick of one symbol.
type Engine struct {
	cfg    Config
	series market.Series
	filter session.Filter

	structures map[market.Timeframe]*structure.Classifier
	phases     map[market.Timeframe]*wyckoff.Classifier

	orderBlocks  *poi.OrderBlockDetector
	fvgs         *poi.FVGDetector
	supplyDemand *poi.SupplyDemandDetector
	liquidity    *poi.LiquidityDetector

	bias     market.Bias
	snapshot Snapshot
}

// Deps bundles the collaborators of the engine.
type Deps struct {
	Series       market.Series
	Filter       session.Filter
	StructureCfg structure.Config
	WyckoffCfg   wyckoff.Config
	OrderBlocks  *poi.OrderBlockDetector
	FVGs         *poi.FVGDetector
	SupplyDemand *poi.SupplyDemandDetector
	Liquidity    *poi.LiquidityDetector
}

// NewEngine wires a cascade engine for one symbol.
func NewEngine(cfg Config, deps Deps) *Engine {
	if cfg.Lookback <= 0 {
		cfg.Lookback = 150
	}
	if cfg.RiskRewardRatio <= 0 {
		cfg.RiskRewardRatio = 2.0
	}

	e := &Engine{
		cfg:          cfg,
		series:       deps.Series,
		filter:       deps.Filter,
		structures:   make(map[market.Timeframe]*structure.Classifier),
		phases:       make(map[market.Timeframe]*wyckoff.Classifier),
		orderBlocks:  deps.OrderBlocks,
		fvgs:         deps.FVGs,
		supplyDemand: deps.SupplyDemand,
		liquidity:    deps.Liquidity,
		bias:         market.BiasNeutral,
	}
	all := append(append(append([]market.Timeframe{}, cfg.HigherTimeframes...),
		cfg.MediumTimeframes...), cfg.LowerTimeframes...)
	for _, tf := range all {
		e.structures[tf] = structure.NewClassifier(deps.StructureCfg)
		e.phases[tf] = wyckoff.NewClassifier(deps.WyckoffCfg)
	}
	return e
}

// Bias returns the bias of the last evaluation.
func (e *Engine) Bias() market.Bias {
	return e.bias
}

// LastSnapshot returns the observable state of the last evaluation.
func (e *Engine) LastSnapshot() Snapshot {
	return e.snapshot
}

// Evaluate runs the full HTF→MTF→LTF cascade once and returns a signal
// when all entry conditions hold, nil otherwise. The bias is reset and
// recomputed on every call.
func (e *Engine) Evaluate(now time.Time) *Signal {
	e.bias = market.BiasNeutral
	e.snapshot = Snapshot{
		Bias:       market.BiasNeutral,
		Structures: make(map[market.Timeframe]structure.Trend),
		Phases:     make(map[market.Timeframe]wyckoff.Phase),
	}

	inHTFPOI := e.higherStage()
	if e.bias == market.BiasNeutral {
		return nil
	}

	inMTFPOI := e.mediumStage()
	e.snapshot.Bias = e.bias
	e.snapshot.InHTFPOI = inHTFPOI
	e.snapshot.InMTFPOI = inMTFPOI
	if !inHTFPOI && !inMTFPOI {
		return nil
	}

	conf := e.lowerStage()
	// Outside a kill zone only a strong setup may enter; the full
	// confirmation triple is then required in either case.
	if !e.filter.IsInKillZone(now) && !conf.strongSetup() {
		return nil
	}
	if !(conf.grabOK && conf.chochOK && conf.bosOK) {
		return nil
	}

	return e.buildSignal(conf, now)
}

// ltfConfirmation is the lower-stage scan result.
type ltfConfirmation struct {
	timeframe market.Timeframe
	grabOK    bool
	chochOK   bool
	bosOK     bool
	freshOK   bool
	grab      poi.LiquidityGrab
	hasGrab   bool
}

func (c ltfConfirmation) strongSetup() bool {
	return c.grabOK && c.chochOK && c.bosOK
}

// higherStage computes structure and phase per HTF timeframe; the last
// non-neutral timeframe evaluated wins, so a lower higher-timeframe
// overrides the one above it. Returns whether price sits inside any
// bias-aligned HTF POI.
func (e *Engine) higherStage() bool {
	inPOI := false
	for _, tf := range e.cfg.HigherTimeframes {
		bars := e.series.Bars(tf, e.cfg.Lookback)
		trend := e.structures[tf].Classify(bars)
		phase := e.phases[tf].DeterminePhase(bars)
		e.snapshot.Structures[tf] = trend
		e.snapshot.Phases[tf] = phase

		tfBias := market.BiasNeutral
		if trend == structure.TrendUp && phase.Bullish() {
			tfBias = market.BiasBullish
		} else if trend == structure.TrendDown && phase.Bearish() {
			tfBias = market.BiasBearish
		}
		if tfBias != market.BiasNeutral {
			e.bias = tfBias
		}
	}
	if e.bias == market.BiasNeutral {
		return false
	}
	for _, tf := range e.cfg.HigherTimeframes {
		if e.inAnyPOI(tf, e.bias) {
			inPOI = true
			break
		}
	}
	return inPOI
}

// mediumStage requires structure alignment per MTF timeframe before the
// POI membership test is applied to it.
func (e *Engine) mediumStage() bool {
	for _, tf := range e.cfg.MediumTimeframes {
		bars := e.series.Bars(tf, e.cfg.Lookback)
		trend := e.structures[tf].Classify(bars)
		e.snapshot.Structures[tf] = trend
		if !trend.AlignedWith(e.bias) {
			continue
		}
		if e.inAnyPOI(tf, e.bias) {
			return true
		}
	}
	return false
}

// lowerStage scans the LTF tier for the confirmation set and stops early
// once one timeframe satisfies all four conditions at once.
func (e *Engine) lowerStage() ltfConfirmation {
	best := ltfConfirmation{}
	for _, tf := range e.cfg.LowerTimeframes {
		bars := e.series.Bars(tf, e.cfg.Lookback)
		c := ltfConfirmation{timeframe: tf}
		c.grab, c.hasGrab = e.liquidity.LatestGrab(tf, e.bias)
		c.grabOK = c.hasGrab
		c.bosOK = e.structures[tf].DetectBOS(bars, e.bias)
		c.chochOK = e.structures[tf].DetectCHoCH(bars, e.bias)
		c.freshOK = e.fvgs.HasFreshZone(tf, e.bias) || e.orderBlocks.HasFreshZone(tf, e.bias)

		if c.grabOK && c.bosOK && c.chochOK && c.freshOK {
			e.snapshot.Confirmed = tf
			return c
		}
		if better(c, best) {
			best = c
		}
	}
	return best
}

func score(c ltfConfirmation) int {
	n := 0
	for _, ok := range []bool{c.grabOK, c.chochOK, c.bosOK, c.freshOK} {
		if ok {
			n++
		}
	}
	return n
}

func better(a, b ltfConfirmation) bool {
	return score(a) > score(b)
}

// inAnyPOI tests whether price sits inside a bias-aligned supply/demand
// zone, order block or FVG on the timeframe.
func (e *Engine) inAnyPOI(tf market.Timeframe, bias market.Bias) bool {
	return e.supplyDemand.IsInRelevantZone(tf, bias) ||
		e.orderBlocks.IsInRelevantZone(tf, bias) ||
		e.fvgs.IsInRelevantZone(tf, bias)
}

func (e *Engine) buildSignal(conf ltfConfirmation, now time.Time) *Signal {
	tf := conf.timeframe
	if tf == "" {
		return nil
	}
	bars := e.series.Bars(tf, e.cfg.Lookback)
	if len(bars) == 0 {
		return nil
	}
	entry := bars[0].Close

	levels, ok := e.computeLevels(tf, bars, entry, conf)
	if !ok {
		return nil
	}

	direction := broker.Buy
	if e.bias == market.BiasBearish {
		direction = broker.Sell
	}
	return &Signal{
		ID:         uuid.NewString(),
		Symbol:     e.series.Symbol(),
		Direction:  direction,
		Bias:       e.bias,
		EntryPrice: entry,
		StopLoss:   levels.stop,
		TakeProfit: levels.target,
		LotSize:    levels.lots,
		Time:       now,
	}
}
