package lifecycle

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"mt5-smc-bot/internal/broker"
	"mt5-smc-bot/internal/events"
)

// TradeState is the lifecycle stage of one managed trade.
type TradeState string

const (
	StateNew       TradeState = "new"
	StateBreakeven TradeState = "breakeven"
	StatePartialTP TradeState = "partial_tp"
	StateTrailing  TradeState = "trailing"
	StateClosed    TradeState = "closed"
)

// ManagedTrade is one position under lifecycle management. Breakeven and
// partial-TP are independent flags; trailing requires breakeven first.
type ManagedTrade struct {
	Ticket         int64            `json:"ticket"`
	Symbol         string           `json:"symbol"`
	Direction      broker.Direction `json:"direction"`
	State          TradeState       `json:"state"`
	OpenTime       time.Time        `json:"open_time"`
	OpenPrice      float64          `json:"open_price"`
	StopLoss       float64          `json:"stop_loss"` // original stop, the R denominator
	TakeProfit     float64          `json:"take_profit"`
	LotSize        float64          `json:"lot_size"`
	PartialLotSize float64          `json:"partial_lot_size"`
	RiskAmount     float64          `json:"risk_amount"`

	BreakEvenSet    bool `json:"breakeven_set"`
	PartialClosed   bool `json:"partial_closed"`
	TrailingStopped bool `json:"trailing_stopped"`
}

// RMultiple returns the trade's current profit in risk multiples: the
// signed price move divided by the original entry-to-stop distance.
func (t *ManagedTrade) RMultiple(price float64) float64 {
	risk := t.OpenPrice - t.StopLoss
	if risk < 0 {
		risk = -risk
	}
	if risk == 0 {
		return 0
	}
	move := (price - t.OpenPrice) * t.Direction.Sign()
	return move / risk
}

// nextState derives the lifecycle stage from the flags.
func nextState(t *ManagedTrade) TradeState {
	switch {
	case t.TrailingStopped:
		return StateTrailing
	case t.PartialClosed:
		return StatePartialTP
	case t.BreakEvenSet:
		return StateBreakeven
	default:
		return StateNew
	}
}

// Config holds the lifecycle trigger parameters.
type Config struct {
	BreakEvenAfterR  float64 `json:"breakeven_after_r"`
	RiskRewardRatio  float64 `json:"risk_reward_ratio"`
	PartialTPPercent float64 `json:"partial_tp_percent"`
}

// DefaultConfig returns the lifecycle defaults.
func DefaultConfig() Config {
	return Config{
		BreakEvenAfterR:  1.0,
		RiskRewardRatio:  2.0,
		PartialTPPercent: 50,
	}
}

// Manager owns the managed-trade set and drives the breakeven,
// partial-TP and trailing transitions. All mutation happens behind one
// mutex so status readers can snapshot safely while the single pipeline
// caller manages.
type Manager struct {
	mu     sync.Mutex
	cfg    Config
	broker broker.Broker
	trades map[int64]*ManagedTrade
	bus    *events.Bus
	logger zerolog.Logger
}

// NewManager creates an empty manager.
func NewManager(cfg Config, b broker.Broker, bus *events.Bus, logger zerolog.Logger) *Manager {
	if cfg.BreakEvenAfterR <= 0 {
		cfg.BreakEvenAfterR = 1.0
	}
	if cfg.RiskRewardRatio <= 0 {
		cfg.RiskRewardRatio = 2.0
	}
	if cfg.PartialTPPercent <= 0 || cfg.PartialTPPercent > 100 {
		cfg.PartialTPPercent = 50
	}
	return &Manager{
		cfg:    cfg,
		broker: b,
		trades: make(map[int64]*ManagedTrade),
		bus:    bus,
		logger: logger.With().Str("component", "lifecycle").Logger(),
	}
}

// RegisterTrade puts a freshly opened position under management.
func (m *Manager) RegisterTrade(ticket int64, symbol string, direction broker.Direction, entry, stopLoss, takeProfit, lots float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	risk := entry - stopLoss
	if risk < 0 {
		risk = -risk
	}
	t := &ManagedTrade{
		Ticket:         ticket,
		Symbol:         symbol,
		Direction:      direction,
		State:          StateNew,
		OpenTime:       time.Now(),
		OpenPrice:      entry,
		StopLoss:       stopLoss,
		TakeProfit:     takeProfit,
		LotSize:        lots,
		PartialLotSize: lots * m.cfg.PartialTPPercent / 100,
		RiskAmount:     risk * lots,
	}
	m.trades[ticket] = t

	m.logger.Info().
		Int64("ticket", ticket).
		Str("direction", string(direction)).
		Float64("entry", entry).
		Float64("stop_loss", stopLoss).
		Float64("lots", lots).
		Msg("trade registered")
	if m.bus != nil {
		m.bus.Emit(events.EventTradeOpened, map[string]interface{}{
			"ticket": ticket, "symbol": symbol, "direction": string(direction),
			"entry": entry, "stop_loss": stopLoss, "take_profit": takeProfit, "lots": lots,
		})
	}
}

// Rehydrate adopts positions already open at the broker, typically after
// a restart. Flags start cleared; the broker-reported stop becomes the
// R denominator.
func (m *Manager) Rehydrate(symbol string) error {
	tickets, err := m.broker.ListOpenPositions(symbol)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ticket := range tickets {
		if _, exists := m.trades[ticket]; exists {
			continue
		}
		pos, ok, err := m.broker.GetPosition(ticket)
		if err != nil || !ok {
			continue
		}
		m.trades[ticket] = &ManagedTrade{
			Ticket:         ticket,
			Symbol:         pos.Symbol,
			Direction:      pos.Direction,
			State:          StateNew,
			OpenTime:       pos.OpenTime,
			OpenPrice:      pos.OpenPrice,
			StopLoss:       pos.StopLoss,
			TakeProfit:     pos.TakeProfit,
			LotSize:        pos.Volume,
			PartialLotSize: pos.Volume * m.cfg.PartialTPPercent / 100,
		}
		m.logger.Info().Int64("ticket", ticket).Msg("trade rehydrated")
	}
	return nil
}

// Trades returns a snapshot of the managed set.
func (m *Manager) Trades() []ManagedTrade {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ManagedTrade, 0, len(m.trades))
	for _, t := range m.trades {
		out = append(out, *t)
	}
	return out
}

// Count returns the managed-set size.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.trades)
}

// ManageOpenTrades runs one management pass over every trade: missing
// positions are closed out terminally, then the breakeven, partial-TP
// and trailing triggers fire in that order. A failed broker call leaves
// the flags untouched so the same condition retries next pass. Only a
// definitive not-found closes a trade; a lookup error skips it until
// the broker answers again.
func (m *Manager) ManageOpenTrades() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for ticket, t := range m.trades {
		pos, ok, err := m.broker.GetPosition(ticket)
		if err != nil {
			m.logger.Warn().Int64("ticket", ticket).Err(err).Msg("position lookup failed, keeping trade")
			continue
		}
		if !ok {
			t.State = StateClosed
			delete(m.trades, ticket)
			m.logger.Info().Int64("ticket", ticket).Msg("position gone, trade closed")
			if m.bus != nil {
				m.bus.Emit(events.EventTradeClosed, map[string]interface{}{"ticket": ticket})
			}
			continue
		}

		r := t.RMultiple(pos.CurrentPrice)
		m.applyBreakeven(t, r)
		m.applyPartialTP(t, pos, r)
		m.applyTrailing(t, pos, r)
		t.State = nextState(t)
	}
}

func (m *Manager) applyBreakeven(t *ManagedTrade, r float64) {
	if t.BreakEvenSet || r < m.cfg.BreakEvenAfterR {
		return
	}
	if !m.broker.ModifyStopLoss(t.Ticket, t.OpenPrice) {
		m.logger.Warn().Int64("ticket", t.Ticket).Msg("breakeven modify rejected")
		return
	}
	t.BreakEvenSet = true
	m.logger.Info().Int64("ticket", t.Ticket).Float64("r", r).Msg("stop moved to breakeven")
	if m.bus != nil {
		m.bus.Emit(events.EventBreakevenSet, map[string]interface{}{"ticket": t.Ticket, "r": r})
	}
}

func (m *Manager) applyPartialTP(t *ManagedTrade, pos broker.Position, r float64) {
	if t.PartialClosed || r < m.cfg.RiskRewardRatio/2 {
		return
	}
	lots := t.PartialLotSize
	if pos.Volume < lots {
		lots = pos.Volume
	}
	if lots <= 0 {
		return
	}
	if !m.broker.PartialClose(t.Ticket, lots) {
		m.logger.Warn().Int64("ticket", t.Ticket).Msg("partial close rejected")
		return
	}
	t.PartialClosed = true
	m.logger.Info().Int64("ticket", t.Ticket).Float64("lots", lots).Float64("r", r).Msg("partial profit taken")
	if m.bus != nil {
		m.bus.Emit(events.EventPartialClose, map[string]interface{}{"ticket": t.Ticket, "lots": lots, "r": r})
	}
}

func (m *Manager) applyTrailing(t *ManagedTrade, pos broker.Position, r float64) {
	if t.TrailingStopped || !t.BreakEvenSet || r < m.cfg.RiskRewardRatio {
		return
	}
	// Stop moves to half the current profit distance from entry.
	newStop := t.OpenPrice + 0.5*(pos.CurrentPrice-t.OpenPrice)
	if !m.broker.ModifyStopLoss(t.Ticket, newStop) {
		m.logger.Warn().Int64("ticket", t.Ticket).Msg("trailing modify rejected")
		return
	}
	t.TrailingStopped = true
	m.logger.Info().Int64("ticket", t.Ticket).Float64("stop", newStop).Float64("r", r).Msg("trailing stop set")
	if m.bus != nil {
		m.bus.Emit(events.EventTrailingSet, map[string]interface{}{"ticket": t.Ticket, "stop": newStop, "r": r})
	}
}
