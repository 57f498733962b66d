package broker

import "time"

// Direction is the trade side.
type Direction string

const (
	Buy  Direction = "buy"
	Sell Direction = "sell"
)

// Sign returns +1 for buys and -1 for sells.
func (d Direction) Sign() float64 {
	if d == Sell {
		return -1
	}
	return 1
}

// Position is a broker-side open position snapshot.
type Position struct {
	Ticket       int64     `json:"ticket"`
	Symbol       string    `json:"symbol"`
	Direction    Direction `json:"direction"`
	OpenTime     time.Time `json:"open_time"`
	OpenPrice    float64   `json:"open_price"`
	StopLoss     float64   `json:"stop_loss"`
	TakeProfit   float64   `json:"take_profit"`
	Volume       float64   `json:"volume"`
	CurrentPrice float64   `json:"current_price"`
}

// OrderRequest describes a market order with protective levels.
type OrderRequest struct {
	Symbol     string    `json:"symbol"`
	Direction  Direction `json:"direction"`
	Volume     float64   `json:"volume"`
	Price      float64   `json:"price"`
	StopLoss   float64   `json:"stop_loss"`
	TakeProfit float64   `json:"take_profit"`
	Comment    string    `json:"comment"`
}

// Broker is the order-execution adapter. Modify and partial-close
// report success as a boolean: on false the caller keeps its state
// unchanged and the same condition retries on the next pass.
type Broker interface {
	OpenPosition(req OrderRequest) (int64, error)
	ModifyStopLoss(ticket int64, newStopLoss float64) bool
	PartialClose(ticket int64, lots float64) bool
	ListOpenPositions(symbol string) ([]int64, error)
	// GetPosition returns found=false only when the broker positively
	// reports the ticket gone, which callers treat as the position
	// having closed. A transport failure comes back as a non-nil error
	// with found undefined; callers must skip, not close.
	GetPosition(ticket int64) (Position, bool, error)
}
