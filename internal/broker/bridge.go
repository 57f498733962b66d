package broker

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"mt5-smc-bot/internal/logging"
	"mt5-smc-bot/internal/market"
)

// BridgeConfig holds the MT5 terminal bridge connection settings.
type BridgeConfig struct {
	URL            string `json:"url"` // ws://host:port of the terminal bridge EA
	Symbol         string `json:"symbol"`
	RequestTimeout int    `json:"request_timeout_sec"`
	ReconnectDelay int    `json:"reconnect_delay_sec"`
	MaxReconnects  int    `json:"max_reconnects"`
}

// DefaultBridgeConfig returns the bridge defaults.
func DefaultBridgeConfig() BridgeConfig {
	return BridgeConfig{
		URL:            "ws://127.0.0.1:8765",
		RequestTimeout: 10,
		ReconnectDelay: 5,
		MaxReconnects:  0, // unlimited
	}
}

// bridgeRequest is one JSON frame sent to the terminal bridge.
type bridgeRequest struct {
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// bridgeResponse is one JSON frame received from the terminal bridge.
// Frames without an ID are unsolicited pushes (bar updates).
type bridgeResponse struct {
	ID     string          `json:"id,omitempty"`
	Event  string          `json:"event,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

type barsPush struct {
	Symbol    string        `json:"symbol"`
	Timeframe string        `json:"timeframe"`
	Bars      []bridgeBar   `json:"bars"`
	Info      *bridgeSymbol `json:"info,omitempty"`
}

type bridgeBar struct {
	Time   int64   `json:"time"` // unix seconds
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

type bridgeSymbol struct {
	Digits    int     `json:"digits"`
	Point     float64 `json:"point"`
	TickValue float64 `json:"tick_value"`
	LotStep   float64 `json:"lot_step"`
	MinLot    float64 `json:"min_lot"`
	MaxLot    float64 `json:"max_lot"`
}

// BridgeClient is a Broker backed by an MT5 terminal bridge speaking a
// JSON frame protocol over a websocket. Responses are correlated to
// requests by id; bar pushes feed the attached MemorySeries cache.
type BridgeClient struct {
	mu      sync.Mutex
	cfg     BridgeConfig
	conn    *websocket.Conn
	series  *market.MemorySeries
	pending map[string]chan bridgeResponse
	stop    chan struct{}
	running bool
	log     *logging.Logger
}

// NewBridgeClient creates the client; Connect must be called before use.
func NewBridgeClient(cfg BridgeConfig, series *market.MemorySeries, log *logging.Logger) *BridgeClient {
	def := DefaultBridgeConfig()
	if cfg.URL == "" {
		cfg.URL = def.URL
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = def.ReconnectDelay
	}
	return &BridgeClient{
		cfg:     cfg,
		series:  series,
		pending: make(map[string]chan bridgeResponse),
		stop:    make(chan struct{}),
		log:     log.WithComponent("bridge"),
	}
}

// Connect dials the terminal bridge and starts the read pump.
func (c *BridgeClient) Connect() error {
	conn, _, err := websocket.DefaultDialer.Dial(c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("bridge: dial %s: %w", c.cfg.URL, err)
	}
	c.mu.Lock()
	c.conn = conn
	c.running = true
	c.mu.Unlock()

	go c.readPump()
	c.log.Info("Connected to MT5 terminal bridge", "url", c.cfg.URL)
	return nil
}

// Stop closes the connection and stops reconnecting.
func (c *BridgeClient) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	c.running = false
	close(c.stop)
	if c.conn != nil {
		c.conn.Close()
	}
}

// readPump dispatches response frames to waiters and applies bar pushes
// to the series cache. On read errors it reconnects with a fixed delay.
func (c *BridgeClient) readPump() {
	reconnects := 0
	for {
		c.mu.Lock()
		conn := c.conn
		running := c.running
		c.mu.Unlock()
		if !running || conn == nil {
			return
		}

		_, payload, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.stop:
				return
			default:
			}
			reconnects++
			if c.cfg.MaxReconnects > 0 && reconnects > c.cfg.MaxReconnects {
				c.log.Error("Bridge reconnect limit reached", "attempts", reconnects)
				return
			}
			c.log.Warn("Bridge connection lost, reconnecting",
				"error", err, "attempt", reconnects)
			time.Sleep(time.Duration(c.cfg.ReconnectDelay) * time.Second)
			if dialErr := c.redial(); dialErr != nil {
				c.log.Error("Bridge redial failed", "error", dialErr)
			}
			continue
		}
		reconnects = 0

		var resp bridgeResponse
		if err := json.Unmarshal(payload, &resp); err != nil {
			c.log.Warn("Bridge sent malformed frame", "error", err)
			continue
		}
		if resp.ID != "" {
			c.mu.Lock()
			ch, ok := c.pending[resp.ID]
			if ok {
				delete(c.pending, resp.ID)
			}
			c.mu.Unlock()
			if ok {
				ch <- resp
			}
			continue
		}
		if resp.Event == "bars" {
			c.applyBarsPush(resp.Result)
		}
	}
}

func (c *BridgeClient) redial() error {
	conn, _, err := websocket.DefaultDialer.Dial(c.cfg.URL, nil)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	return nil
}

func (c *BridgeClient) applyBarsPush(raw json.RawMessage) {
	var push barsPush
	if err := json.Unmarshal(raw, &push); err != nil {
		c.log.Warn("Bridge sent malformed bars push", "error", err)
		return
	}
	tf, err := market.ParseTimeframe(push.Timeframe)
	if err != nil {
		return
	}
	bars := make([]market.Bar, len(push.Bars))
	for i, b := range push.Bars {
		bars[i] = market.Bar{
			Time:   time.Unix(b.Time, 0).UTC(),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		}
	}
	c.series.SetBars(tf, bars)
	if push.Info != nil {
		c.series.SetInfo(market.SymbolInfo{
			Name:      push.Symbol,
			Digits:    push.Info.Digits,
			Point:     push.Info.Point,
			TickValue: push.Info.TickValue,
			LotStep:   push.Info.LotStep,
			MinLot:    push.Info.MinLot,
			MaxLot:    push.Info.MaxLot,
		})
	}
}

// call sends one request and waits for its correlated response.
func (c *BridgeClient) call(method string, params interface{}, result interface{}) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("bridge: marshal params: %w", err)
	}
	req := bridgeRequest{ID: uuid.NewString(), Method: method, Params: raw}

	ch := make(chan bridgeResponse, 1)
	c.mu.Lock()
	if c.conn == nil {
		c.mu.Unlock()
		return fmt.Errorf("bridge: not connected")
	}
	c.pending[req.ID] = ch
	err = c.conn.WriteJSON(req)
	c.mu.Unlock()
	if err != nil {
		c.dropPending(req.ID)
		return fmt.Errorf("bridge: write %s: %w", method, err)
	}

	select {
	case resp := <-ch:
		if resp.Error != "" {
			return fmt.Errorf("bridge: %s: %s", method, resp.Error)
		}
		if result != nil && len(resp.Result) > 0 {
			return json.Unmarshal(resp.Result, result)
		}
		return nil
	case <-time.After(time.Duration(c.cfg.RequestTimeout) * time.Second):
		c.dropPending(req.ID)
		return fmt.Errorf("bridge: %s timed out", method)
	}
}

func (c *BridgeClient) dropPending(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// RequestBars asks the terminal for a bar window; the reply arrives as a
// bars push applied to the series cache.
func (c *BridgeClient) RequestBars(tf market.Timeframe, count int) error {
	return c.call("request_bars", map[string]interface{}{
		"symbol":    c.cfg.Symbol,
		"timeframe": string(tf),
		"count":     count,
	}, nil)
}

func (c *BridgeClient) OpenPosition(req OrderRequest) (int64, error) {
	var result struct {
		Ticket int64 `json:"ticket"`
	}
	if err := c.call("open_position", req, &result); err != nil {
		return 0, err
	}
	return result.Ticket, nil
}

func (c *BridgeClient) ModifyStopLoss(ticket int64, newStopLoss float64) bool {
	var result struct {
		OK bool `json:"ok"`
	}
	err := c.call("modify_stop_loss", map[string]interface{}{
		"ticket": ticket, "stop_loss": newStopLoss,
	}, &result)
	if err != nil {
		c.log.Warn("Stop-loss modify failed", "ticket", ticket, "error", err)
		return false
	}
	return result.OK
}

func (c *BridgeClient) PartialClose(ticket int64, lots float64) bool {
	var result struct {
		OK bool `json:"ok"`
	}
	err := c.call("partial_close", map[string]interface{}{
		"ticket": ticket, "lots": lots,
	}, &result)
	if err != nil {
		c.log.Warn("Partial close failed", "ticket", ticket, "error", err)
		return false
	}
	return result.OK
}

func (c *BridgeClient) ListOpenPositions(symbol string) ([]int64, error) {
	var result struct {
		Tickets []int64 `json:"tickets"`
	}
	err := c.call("list_positions", map[string]interface{}{"symbol": symbol}, &result)
	if err != nil {
		return nil, err
	}
	return result.Tickets, nil
}

// GetPosition reports found only from an answered request; a transport
// error is surfaced so callers do not mistake an outage for a close.
func (c *BridgeClient) GetPosition(ticket int64) (Position, bool, error) {
	var result struct {
		Found    bool     `json:"found"`
		Position Position `json:"position"`
	}
	err := c.call("get_position", map[string]interface{}{"ticket": ticket}, &result)
	if err != nil {
		return Position{}, false, err
	}
	if !result.Found {
		return Position{}, false, nil
	}
	return result.Position, true, nil
}

var _ Broker = (*BridgeClient)(nil)
