// Package spread detects cross-venue arbitrage opportunities from a stream
// of price updates and deduplicates the resulting alerts.
package spread

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"perpspread-scanner/internal/exchange"
	"perpspread-scanner/internal/metrics"
)

// Opportunity is a qualifying spread between two venues for one symbol.
type Opportunity struct {
	BaseToken     string         `json:"base_token"`
	BuyVenue      exchange.Venue `json:"buy_venue"`
	BuyPrice      float64        `json:"buy_price"`
	SellVenue     exchange.Venue `json:"sell_venue"`
	SellPrice     float64        `json:"sell_price"`
	SpreadPercent float64        `json:"spread_percent"`
	Timestamp     float64        `json:"timestamp"`
}

// AlertCallback consumes deduplicated opportunities. Consumers are assumed
// to keep up; there is no queue between the finder and its callbacks.
type AlertCallback func(Opportunity)

// ExistenceProbe filters opportunities for symbols that are not actually
// tradable on the quote venue.
type ExistenceProbe func(ctx context.Context, symbol string) bool

type priceKey struct {
	venue  exchange.Venue
	symbol string
}

// Finder keeps the latest price per (venue, symbol) and scans for the best
// buy/sell pair on every update. Updates from all adapters are serialized
// under one mutex.
type Finder struct {
	mu               sync.Mutex
	prices           map[priceKey]exchange.PriceUpdate
	gate             *AlertGate
	probe            ExistenceProbe
	minSpreadPercent float64
	callbacks        []AlertCallback
	logger           zerolog.Logger
}

// NewFinder creates a finder that emits opportunities at or above
// minSpreadPercent, after they pass the alert gate.
func NewFinder(minSpreadPercent float64, gate *AlertGate, logger zerolog.Logger) *Finder {
	return &Finder{
		prices:           make(map[priceKey]exchange.PriceUpdate),
		gate:             gate,
		minSpreadPercent: minSpreadPercent,
		logger:           logger.With().Str("component", "spread").Logger(),
	}
}

// SetExistenceProbe installs an optional tradability check consulted after
// deduplication; a false result drops the alert silently.
func (f *Finder) SetExistenceProbe(probe ExistenceProbe) {
	f.mu.Lock()
	f.probe = probe
	f.mu.Unlock()
}

// RegisterAlertCallback adds a consumer for emitted opportunities.
func (f *Finder) RegisterAlertCallback(cb AlertCallback) {
	f.mu.Lock()
	f.callbacks = append(f.callbacks, cb)
	f.mu.Unlock()
}

// LastPrice returns the most recent update stored for a venue and symbol.
func (f *Finder) LastPrice(venue exchange.Venue, symbol string) (exchange.PriceUpdate, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.prices[priceKey{venue, symbol}]
	return u, ok
}

// OnPriceUpdate stores the update and rescans the updated symbol across
// venues. Safe for concurrent use from adapter goroutines.
func (f *Finder) OnPriceUpdate(u exchange.PriceUpdate) {
	if u.Price <= 0 || u.Symbol == "" {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.prices[priceKey{u.Venue, u.Symbol}] = u
	f.checkSpread(u.Symbol)
}

// checkSpread finds the lowest and highest price for a symbol across venues
// and emits an opportunity when the spread clears the threshold. Caller
// holds f.mu.
func (f *Finder) checkSpread(symbol string) {
	entries := make([]exchange.PriceUpdate, 0, 8)
	for key, u := range f.prices {
		if key.symbol == symbol {
			entries = append(entries, u)
		}
	}
	if len(entries) < 2 {
		return
	}

	// Stable candidate selection regardless of map iteration order.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Venue < entries[j].Venue
	})

	buy := entries[0]
	sell := entries[0]
	for _, u := range entries[1:] {
		if u.Price < buy.Price {
			buy = u
		}
		if u.Price > sell.Price {
			sell = u
		}
	}

	if buy.Venue == sell.Venue || sell.Price <= buy.Price {
		return
	}

	spreadPercent := (sell.Price - buy.Price) / buy.Price * 100
	if spreadPercent < f.minSpreadPercent {
		return
	}
	metrics.SpreadsDetected.Inc()

	if !f.gate.ShouldNotify(symbol, spreadPercent) {
		metrics.AlertsSuppressed.Inc()
		return
	}

	if f.probe != nil && !f.probe(context.Background(), symbol) {
		return
	}

	op := Opportunity{
		BaseToken:     symbol,
		BuyVenue:      buy.Venue,
		BuyPrice:      buy.Price,
		SellVenue:     sell.Venue,
		SellPrice:     sell.Price,
		SpreadPercent: spreadPercent,
		Timestamp:     maxFloat(buy.Timestamp, sell.Timestamp),
	}

	metrics.AlertsEmitted.Inc()
	for _, cb := range f.callbacks {
		f.invoke(cb, op)
	}
}

func (f *Finder) invoke(cb AlertCallback, op Opportunity) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Error().Interface("panic", r).Str("symbol", op.BaseToken).Msg("alert callback panicked")
		}
	}()
	cb(op)
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
