package market

import "sync"

// SymbolInfo carries the broker metadata needed for point/pip math and
// lot sizing on one symbol.
type SymbolInfo struct {
	Name      string  `json:"name"`
	Digits    int     `json:"digits"`
	Point     float64 `json:"point"`      // Smallest price increment (e.g. 0.00001)
	TickValue float64 `json:"tick_value"` // Account-currency value of one point per lot
	LotStep   float64 `json:"lot_step"`
	MinLot    float64 `json:"min_lot"`
	MaxLot    float64 `json:"max_lot"`
}

// Series provides indexed access to the bar history of one symbol.
// Shift 0 is the most recent bar; time is non-increasing with growing shift.
type Series interface {
	Symbol() string
	Info() SymbolInfo
	// Bar returns the bar at the given shift, false when out of range.
	Bar(tf Timeframe, shift int) (Bar, bool)
	// Bars returns up to count bars starting at shift 0, newest first.
	Bars(tf Timeframe, count int) []Bar
	BarCount(tf Timeframe) int
}

// MemorySeries is an in-memory Series. It backs the bridge's bar cache
// and doubles as the test feed.
type MemorySeries struct {
	mu     sync.RWMutex
	symbol string
	info   SymbolInfo
	bars   map[Timeframe][]Bar // newest first
}

// NewMemorySeries creates an empty series for the symbol.
func NewMemorySeries(symbol string, info SymbolInfo) *MemorySeries {
	return &MemorySeries{
		symbol: symbol,
		info:   info,
		bars:   make(map[Timeframe][]Bar),
	}
}

func (s *MemorySeries) Symbol() string {
	return s.symbol
}

func (s *MemorySeries) Info() SymbolInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info
}

// SetInfo replaces the symbol metadata, typically after the bridge
// reports the live broker values.
func (s *MemorySeries) SetInfo(info SymbolInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.info = info
}

// SetBars replaces the history of one timeframe. Bars must be newest first.
func (s *MemorySeries) SetBars(tf Timeframe, bars []Bar) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make([]Bar, len(bars))
	copy(copied, bars)
	s.bars[tf] = copied
}

// Push prepends a new most-recent bar to the timeframe's history.
func (s *MemorySeries) Push(tf Timeframe, bar Bar) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bars[tf] = append([]Bar{bar}, s.bars[tf]...)
}

// UpdateLatest overwrites the bar at shift 0, used while a bar is still forming.
func (s *MemorySeries) UpdateLatest(tf Timeframe, bar Bar) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.bars[tf]) == 0 {
		s.bars[tf] = []Bar{bar}
		return
	}
	s.bars[tf][0] = bar
}

func (s *MemorySeries) Bar(tf Timeframe, shift int) (Bar, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bars := s.bars[tf]
	if shift < 0 || shift >= len(bars) {
		return Bar{}, false
	}
	return bars[shift], true
}

func (s *MemorySeries) Bars(tf Timeframe, count int) []Bar {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bars := s.bars[tf]
	if count > len(bars) {
		count = len(bars)
	}
	if count <= 0 {
		return nil
	}
	out := make([]Bar, count)
	copy(out, bars[:count])
	return out
}

func (s *MemorySeries) BarCount(tf Timeframe) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bars[tf])
}

var _ Series = (*MemorySeries)(nil)
