package spread

import "sync"

// SpreadState tracks the reporting history for one symbol.
type SpreadState struct {
	LastReported float64
	LastObserved float64
}

// AlertGate suppresses repeat alerts whose spread has not moved by at least
// minChange percentage points since the last reported one, and drops
// ignored symbols outright.
type AlertGate struct {
	mu        sync.Mutex
	minChange float64
	states    map[string]*SpreadState
	ignore    *IgnoreList
}

// NewAlertGate creates a gate. ignore may be nil.
func NewAlertGate(minChange float64, ignore *IgnoreList) *AlertGate {
	return &AlertGate{
		minChange: minChange,
		states:    make(map[string]*SpreadState),
		ignore:    ignore,
	}
}

// ShouldNotify records the observed spread and reports whether it moved
// enough from the last reported value to be worth another alert.
func (g *AlertGate) ShouldNotify(symbol string, spread float64) bool {
	if g.ignore != nil && g.ignore.Ignored(symbol) {
		return false
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	state, ok := g.states[symbol]
	if !ok {
		state = &SpreadState{}
		g.states[symbol] = state
	}
	state.LastObserved = spread

	change := spread - state.LastReported
	if change < 0 {
		change = -change
	}
	if change >= g.minChange {
		state.LastReported = spread
		return true
	}
	return false
}

// State returns a copy of the tracked state for a symbol.
func (g *AlertGate) State(symbol string) (SpreadState, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	state, ok := g.states[symbol]
	if !ok {
		return SpreadState{}, false
	}
	return *state, true
}
