package marketdata

import (
	"sync"
	"time"

	"github.com/quantfold/odte-engine/pkg/models"
)

// History is a per-symbol rolling window of recent trade prices. Entries
// are kept sorted by time ascending; the oldest entry is evicted once the
// bound is exceeded. Out-of-order ticks are dropped.
type History struct {
	mu       sync.RWMutex
	symbol   string
	capacity int
	points   []models.PricePoint
}

// NewHistory creates a bounded price history for one symbol
func NewHistory(symbol string, capacity int) *History {
	return &History{
		symbol:   symbol,
		capacity: capacity,
		points:   make([]models.PricePoint, 0, capacity),
	}
}

// Symbol returns the tracked symbol
func (h *History) Symbol() string {
	return h.symbol
}

// Add records a price point, evicting the oldest once full
func (h *History) Add(p models.PricePoint) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if n := len(h.points); n > 0 && p.Timestamp.Before(h.points[n-1].Timestamp) {
		return
	}

	h.points = append(h.points, p)
	if len(h.points) > h.capacity {
		h.points = h.points[len(h.points)-h.capacity:]
	}
}

// Len returns the number of stored samples
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.points)
}

// Prices returns a copy of the stored prices, oldest first
func (h *History) Prices() []float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()

	prices := make([]float64, len(h.points))
	for i, p := range h.points {
		prices[i] = p.Price
	}
	return prices
}

// Last returns the most recent price point
func (h *History) Last() (models.PricePoint, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.points) == 0 {
		return models.PricePoint{}, false
	}
	return h.points[len(h.points)-1], true
}

// PercentChange returns the percentage price change over the last n
// samples, or false if fewer than n samples exist
func (h *History) PercentChange(n int) (float64, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if n < 2 || len(h.points) < n {
		return 0, false
	}

	first := h.points[len(h.points)-n].Price
	last := h.points[len(h.points)-1].Price
	if first == 0 {
		return 0, false
	}

	return (last - first) / first * 100, true
}

// HistorySet owns the price histories for the whole universe. It is the
// single writer; analytics components only read.
type HistorySet struct {
	mu        sync.RWMutex
	capacity  int
	histories map[string]*History
}

// NewHistorySet creates a history set with the given per-symbol bound
func NewHistorySet(capacity int) *HistorySet {
	return &HistorySet{
		capacity:  capacity,
		histories: make(map[string]*History),
	}
}

// Record routes a price point into its symbol history
func (s *HistorySet) Record(p models.PricePoint) {
	s.mu.Lock()
	h, ok := s.histories[p.Symbol]
	if !ok {
		h = NewHistory(p.Symbol, s.capacity)
		s.histories[p.Symbol] = h
	}
	s.mu.Unlock()

	h.Add(p)
}

// Get returns the history for a symbol, or nil if none recorded yet
func (s *HistorySet) Get(symbol string) *History {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.histories[symbol]
}

// Symbols returns all symbols with recorded data
func (s *HistorySet) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	symbols := make([]string, 0, len(s.histories))
	for sym := range s.histories {
		symbols = append(symbols, sym)
	}
	return symbols
}

// LastUpdate returns the newest tick timestamp across all symbols. Used by
// the risk monitor's staleness check.
func (s *HistorySet) LastUpdate() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var newest time.Time
	for _, h := range s.histories {
		if p, ok := h.Last(); ok && p.Timestamp.After(newest) {
			newest = p.Timestamp
		}
	}
	return newest
}
