package broker

import (
	"fmt"
	"sync"
	"time"
)

// MockBroker is an in-memory Broker used by tests and dry-run mode.
// Tickets are deterministic and price is driven via SetPrice.
type MockBroker struct {
	mu         sync.Mutex
	nextTicket int64
	positions  map[int64]*Position
	price      float64

	// Failure switches for exercising the retry semantics.
	FailModify       bool
	FailPartialClose bool
	FailOpen         bool
	FailLookup       bool
}

// NewMockBroker creates an empty mock broker.
func NewMockBroker() *MockBroker {
	return &MockBroker{
		nextTicket: 1000,
		positions:  make(map[int64]*Position),
	}
}

// SetPrice updates the simulated market price on every open position.
func (m *MockBroker) SetPrice(price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.price = price
	for _, p := range m.positions {
		p.CurrentPrice = price
	}
}

func (m *MockBroker) OpenPosition(req OrderRequest) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailOpen {
		return 0, fmt.Errorf("mock broker: open rejected")
	}
	if req.Volume <= 0 {
		return 0, fmt.Errorf("mock broker: invalid volume %f", req.Volume)
	}
	m.nextTicket++
	ticket := m.nextTicket
	price := req.Price
	if price == 0 {
		price = m.price
	}
	m.positions[ticket] = &Position{
		Ticket:       ticket,
		Symbol:       req.Symbol,
		Direction:    req.Direction,
		OpenTime:     time.Now(),
		OpenPrice:    price,
		StopLoss:     req.StopLoss,
		TakeProfit:   req.TakeProfit,
		Volume:       req.Volume,
		CurrentPrice: price,
	}
	return ticket, nil
}

func (m *MockBroker) ModifyStopLoss(ticket int64, newStopLoss float64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailModify {
		return false
	}
	p, ok := m.positions[ticket]
	if !ok {
		return false
	}
	p.StopLoss = newStopLoss
	return true
}

func (m *MockBroker) PartialClose(ticket int64, lots float64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailPartialClose {
		return false
	}
	p, ok := m.positions[ticket]
	if !ok || lots <= 0 || lots > p.Volume {
		return false
	}
	p.Volume -= lots
	if p.Volume <= 0 {
		delete(m.positions, ticket)
	}
	return true
}

func (m *MockBroker) ListOpenPositions(symbol string) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var tickets []int64
	for ticket, p := range m.positions {
		if symbol == "" || p.Symbol == symbol {
			tickets = append(tickets, ticket)
		}
	}
	return tickets, nil
}

func (m *MockBroker) GetPosition(ticket int64) (Position, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailLookup {
		return Position{}, false, fmt.Errorf("mock broker: lookup unavailable")
	}
	p, ok := m.positions[ticket]
	if !ok {
		return Position{}, false, nil
	}
	return *p, true, nil
}

// Close removes a position outright, simulating a stop-out or manual close.
func (m *MockBroker) Close(ticket int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.positions, ticket)
}

var _ Broker = (*MockBroker)(nil)
