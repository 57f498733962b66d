package bot

import (
	"context"
	"sync"
	"time"

	"mt5-smc-bot/internal/broker"
	"mt5-smc-bot/internal/events"
	"mt5-smc-bot/internal/fusion"
	"mt5-smc-bot/internal/lifecycle"
	"mt5-smc-bot/internal/logging"
	"mt5-smc-bot/internal/market"
)

// Config holds the engine run settings.
type Config struct {
	Symbol          string
	SignalTimeframe market.Timeframe // new-bar gate timeframe, the lowest enabled LTF
	PollInterval    time.Duration
}

// Engine is the long-lived pipeline session for one symbol. It owns all
// cross-call state: the new-bar gate, the fusion engine (which carries
// the per-timeframe hysteresis and de-duplication state) and the managed
// trades. One synchronous pass runs per tick; the mutex only serializes
// that pass against status snapshot readers.
type Engine struct {
	mu        sync.Mutex
	cfg       Config
	series    market.Series
	broker    broker.Broker
	fusion    *fusion.Engine
	lifecycle *lifecycle.Manager
	bus       *events.Bus
	log       *logging.Logger

	lastBarTime time.Time
	lastSignal  *fusion.Signal
	ticks       int64
}

// New wires an engine from its collaborators.
func New(cfg Config, series market.Series, b broker.Broker, f *fusion.Engine, lm *lifecycle.Manager, bus *events.Bus, log *logging.Logger) *Engine {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	return &Engine{
		cfg:       cfg,
		series:    series,
		broker:    b,
		fusion:    f,
		lifecycle: lm,
		bus:       bus,
		log:       log.WithComponent("engine"),
	}
}

// Start rehydrates open positions and begins the tick loop. It blocks
// until the context is cancelled.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.lifecycle.Rehydrate(e.cfg.Symbol); err != nil {
		e.log.Warn("Rehydrate failed, continuing with empty trade set", "error", err)
	}
	e.log.Info("Engine started",
		"symbol", e.cfg.Symbol,
		"signal_timeframe", string(e.cfg.SignalTimeframe),
		"poll_interval", e.cfg.PollInterval.String())

	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			e.log.Info("Engine stopped")
			return ctx.Err()
		case <-ticker.C:
			e.OnTick(time.Now())
		}
	}
}

// OnTick runs one pipeline pass: manage open trades every tick, and on a
// new bar of the signal timeframe recompute the bias cascade and act on
// any entry signal.
func (e *Engine) OnTick(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.ticks++
	e.lifecycle.ManageOpenTrades()

	bar, ok := e.series.Bar(e.cfg.SignalTimeframe, 0)
	if !ok {
		return
	}
	if bar.Time.Equal(e.lastBarTime) {
		return
	}
	e.lastBarTime = bar.Time
	if e.bus != nil {
		e.bus.Emit(events.EventNewBar, map[string]interface{}{
			"timeframe": string(e.cfg.SignalTimeframe), "time": bar.Time,
		})
	}

	signal := e.fusion.Evaluate(now)
	if signal == nil {
		return
	}
	e.lastSignal = signal
	e.log.Info("Entry signal",
		"id", signal.ID,
		"direction", string(signal.Direction),
		"entry", signal.EntryPrice,
		"stop_loss", signal.StopLoss,
		"take_profit", signal.TakeProfit,
		"lots", signal.LotSize)
	if e.bus != nil {
		e.bus.Emit(events.EventSignalGenerated, map[string]interface{}{
			"id": signal.ID, "direction": string(signal.Direction),
			"entry": signal.EntryPrice, "lots": signal.LotSize,
		})
	}

	ticket, err := e.broker.OpenPosition(broker.OrderRequest{
		Symbol:     signal.Symbol,
		Direction:  signal.Direction,
		Volume:     signal.LotSize,
		Price:      signal.EntryPrice,
		StopLoss:   signal.StopLoss,
		TakeProfit: signal.TakeProfit,
		Comment:    "smc:" + signal.ID[:8],
	})
	if err != nil {
		e.log.Error("Order rejected", "error", err, "signal", signal.ID)
		if e.bus != nil {
			e.bus.Emit(events.EventError, map[string]interface{}{"error": err.Error()})
		}
		return
	}
	e.lifecycle.RegisterTrade(ticket, signal.Symbol, signal.Direction,
		signal.EntryPrice, signal.StopLoss, signal.TakeProfit, signal.LotSize)
}

// Status is the engine snapshot served by the API.
type Status struct {
	Symbol      string          `json:"symbol"`
	Ticks       int64           `json:"ticks"`
	LastBarTime time.Time       `json:"last_bar_time"`
	Bias        market.Bias     `json:"bias"`
	Cascade     fusion.Snapshot `json:"cascade"`
	OpenTrades  int             `json:"open_trades"`
	LastSignal  *fusion.Signal  `json:"last_signal,omitempty"`
}

// Status returns a consistent snapshot of the engine state.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Status{
		Symbol:      e.cfg.Symbol,
		Ticks:       e.ticks,
		LastBarTime: e.lastBarTime,
		Bias:        e.fusion.Bias(),
		Cascade:     e.fusion.LastSnapshot(),
		OpenTrades:  e.lifecycle.Count(),
		LastSignal:  e.lastSignal,
	}
}

// Trades returns the managed-trade snapshot.
func (e *Engine) Trades() []lifecycle.ManagedTrade {
	return e.lifecycle.Trades()
}
