package bot

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"mt5-smc-bot/internal/broker"
	"mt5-smc-bot/internal/events"
	"mt5-smc-bot/internal/fusion"
	"mt5-smc-bot/internal/lifecycle"
	"mt5-smc-bot/internal/logging"
	"mt5-smc-bot/internal/market"
	"mt5-smc-bot/internal/poi"
	"mt5-smc-bot/internal/session"
	"mt5-smc-bot/internal/structure"
	"mt5-smc-bot/internal/wyckoff"
)

var testInfo = market.SymbolInfo{
	Name:      "EURUSD",
	Digits:    5,
	Point:     0.00001,
	TickValue: 1,
	LotStep:   0.01,
	MinLot:    0.01,
	MaxLot:    100,
}

type harness struct {
	engine *Engine
	series *market.MemorySeries
	mock   *broker.MockBroker
	life   *lifecycle.Manager
	bus    *events.Bus
}

func newHarness() *harness {
	series := market.NewMemorySeries("EURUSD", testInfo)
	mock := broker.NewMockBroker()
	bus := events.NewBus()

	fusionCfg := fusion.Config{
		HigherTimeframes: []market.Timeframe{market.D1},
		MediumTimeframes: []market.Timeframe{market.H1},
		LowerTimeframes:  []market.Timeframe{market.M15},
		Lookback:         150,
		RiskAmount:       100,
		RiskRewardRatio:  2.0,
		StopBufferPoints: 10,
	}
	f := fusion.NewEngine(fusionCfg, fusion.Deps{
		Series:       series,
		Filter:       session.AlwaysOpen{},
		StructureCfg: structure.DefaultConfig(),
		WyckoffCfg:   wyckoff.DefaultConfig(),
		OrderBlocks:  poi.NewOrderBlockDetector(series, poi.DefaultOrderBlockConfig()),
		FVGs:         poi.NewFVGDetector(series, poi.DefaultFVGConfig()),
		SupplyDemand: poi.NewSupplyDemandDetector(series, poi.DefaultSupplyDemandConfig()),
		Liquidity:    poi.NewLiquidityDetector(series, poi.DefaultLiquidityConfig()),
	})
	life := lifecycle.NewManager(lifecycle.Config{
		BreakEvenAfterR:  1.0,
		RiskRewardRatio:  3.0,
		PartialTPPercent: 50,
	}, mock, bus, zerolog.Nop())

	quiet := logging.New(&logging.Config{Level: "FATAL", Output: "stderr"})
	e := New(Config{Symbol: "EURUSD", SignalTimeframe: market.M15, PollInterval: time.Second},
		series, mock, f, life, bus, quiet)
	return &harness{engine: e, series: series, mock: mock, life: life, bus: bus}
}

func TestOnTickManagesTradesWithoutBars(t *testing.T) {
	h := newHarness()
	ticket, err := h.mock.OpenPosition(broker.OrderRequest{
		Symbol: "EURUSD", Direction: broker.Buy, Volume: 1,
		Price: 100, StopLoss: 95, TakeProfit: 110,
	})
	if err != nil {
		t.Fatal(err)
	}
	h.life.RegisterTrade(ticket, "EURUSD", broker.Buy, 100, 95, 110, 1)

	// Price at one R of profit: the tick must move the stop to entry even
	// though the series holds no bars yet.
	h.mock.SetPrice(105)
	h.engine.OnTick(time.Now())

	pos, ok, _ := h.mock.GetPosition(ticket)
	if !ok {
		t.Fatal("position vanished")
	}
	if pos.StopLoss != 100 {
		t.Errorf("stop = %v, want breakeven at 100", pos.StopLoss)
	}
	if got := h.engine.Status().OpenTrades; got != 1 {
		t.Errorf("open trades = %d, want 1", got)
	}
}

func TestOnTickNewBarGate(t *testing.T) {
	h := newHarness()
	newBars := 0
	h.bus.Subscribe(events.EventNewBar, func(events.Event) { newBars++ })

	first := market.Bar{
		Time: time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC),
		Open: 1.1, High: 1.101, Low: 1.099, Close: 1.1,
	}
	h.series.SetBars(market.M15, []market.Bar{first})

	h.engine.OnTick(time.Now())
	h.engine.OnTick(time.Now())
	if newBars != 1 {
		t.Fatalf("new-bar events = %d, want 1 for a repeated bar", newBars)
	}

	second := first
	second.Time = first.Time.Add(15 * time.Minute)
	h.series.Push(market.M15, second)
	h.engine.OnTick(time.Now())
	if newBars != 2 {
		t.Errorf("new-bar events = %d, want 2 after a fresh bar", newBars)
	}

	st := h.engine.Status()
	if !st.LastBarTime.Equal(second.Time) {
		t.Errorf("last bar time = %v, want %v", st.LastBarTime, second.Time)
	}
	if st.Ticks != 3 {
		t.Errorf("ticks = %d, want 3", st.Ticks)
	}
	if st.Bias != market.BiasNeutral {
		t.Errorf("bias = %v, want neutral with no higher-timeframe data", st.Bias)
	}
	if st.LastSignal != nil {
		t.Errorf("signal produced with no confluence: %+v", st.LastSignal)
	}
}
