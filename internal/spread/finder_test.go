package spread

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"perpspread-scanner/internal/exchange"
)

func newTestFinder(minSpread float64, ignore *IgnoreList) (*Finder, *[]Opportunity) {
	finder := NewFinder(minSpread, NewAlertGate(2.0, ignore), zerolog.Nop())
	var alerts []Opportunity
	finder.RegisterAlertCallback(func(op Opportunity) {
		alerts = append(alerts, op)
	})
	return finder, &alerts
}

func update(venue exchange.Venue, symbol string, price, ts float64) exchange.PriceUpdate {
	return exchange.PriceUpdate{Venue: venue, Symbol: symbol, Price: price, Timestamp: ts}
}

func TestFinderSingleVenueNoAlert(t *testing.T) {
	finder, alerts := newTestFinder(1.0, nil)

	finder.OnPriceUpdate(update(exchange.MEXC, "BTCUSDT", 100.0, 1))
	finder.OnPriceUpdate(update(exchange.MEXC, "BTCUSDT", 200.0, 2))

	require.Empty(t, *alerts)
}

func TestFinderTwoVenuesAboveThreshold(t *testing.T) {
	finder, alerts := newTestFinder(1.0, nil)

	finder.OnPriceUpdate(update(exchange.MEXC, "BTCUSDT", 100.0, 1))
	finder.OnPriceUpdate(update(exchange.Bitget, "BTCUSDT", 105.0, 2))

	require.Len(t, *alerts, 1)
	op := (*alerts)[0]
	require.Equal(t, "BTCUSDT", op.BaseToken)
	require.Equal(t, exchange.MEXC, op.BuyVenue)
	require.Equal(t, 100.0, op.BuyPrice)
	require.Equal(t, exchange.Bitget, op.SellVenue)
	require.Equal(t, 105.0, op.SellPrice)
	require.InDelta(t, 5.0, op.SpreadPercent, 1e-9)
	require.Equal(t, 2.0, op.Timestamp)
}

func TestFinderDedupSuppressesNearRepeats(t *testing.T) {
	finder, alerts := newTestFinder(1.0, nil)

	finder.OnPriceUpdate(update(exchange.MEXC, "BTCUSDT", 100.0, 1))
	finder.OnPriceUpdate(update(exchange.Bitget, "BTCUSDT", 105.0, 2))
	require.Len(t, *alerts, 1)

	// Spread moves 5.0 -> 6.0: below the 2.0 change threshold.
	finder.OnPriceUpdate(update(exchange.Bitget, "BTCUSDT", 106.0, 3))
	require.Len(t, *alerts, 1)

	// 6.0 -> 8.0: change 3.0 over the last reported 5.0, fires again.
	finder.OnPriceUpdate(update(exchange.Bitget, "BTCUSDT", 108.0, 4))
	require.Len(t, *alerts, 2)
	require.InDelta(t, 8.0, (*alerts)[1].SpreadPercent, 1e-9)
}

func TestFinderBelowThresholdNoAlert(t *testing.T) {
	finder, alerts := newTestFinder(1.0, nil)

	finder.OnPriceUpdate(update(exchange.MEXC, "BTCUSDT", 100.0, 1))
	finder.OnPriceUpdate(update(exchange.Bitget, "BTCUSDT", 100.5, 2))

	require.Empty(t, *alerts)
}

func TestFinderIgnoreList(t *testing.T) {
	finder, alerts := newTestFinder(1.0, NewIgnoreList("LUNA", "TEST"))

	finder.OnPriceUpdate(update(exchange.MEXC, "LUNAUSDT", 1.0, 1))
	finder.OnPriceUpdate(update(exchange.Bitget, "LUNAUSDT", 2.0, 2))

	require.Empty(t, *alerts)
}

func TestFinderLastWriterWins(t *testing.T) {
	finder, _ := newTestFinder(1.0, nil)

	finder.OnPriceUpdate(update(exchange.MEXC, "BTCUSDT", 100.0, 1))
	finder.OnPriceUpdate(update(exchange.MEXC, "BTCUSDT", 101.0, 2))

	u, ok := finder.LastPrice(exchange.MEXC, "BTCUSDT")
	require.True(t, ok)
	require.Equal(t, 101.0, u.Price)
}

func TestFinderOpportunityTimestampIsMax(t *testing.T) {
	finder, alerts := newTestFinder(1.0, nil)

	// Cross-venue timestamps arrive out of order.
	finder.OnPriceUpdate(update(exchange.MEXC, "BTCUSDT", 100.0, 50))
	finder.OnPriceUpdate(update(exchange.Bitget, "BTCUSDT", 110.0, 10))

	require.Len(t, *alerts, 1)
	require.Equal(t, 50.0, (*alerts)[0].Timestamp)
}

func TestFinderThreeVenuesPicksExtremes(t *testing.T) {
	finder, alerts := newTestFinder(1.0, nil)

	finder.OnPriceUpdate(update(exchange.MEXC, "BTCUSDT", 100.0, 1))
	finder.OnPriceUpdate(update(exchange.Bitget, "BTCUSDT", 102.0, 2))
	finder.OnPriceUpdate(update(exchange.OKX, "BTCUSDT", 110.0, 3))

	require.NotEmpty(t, *alerts)
	last := (*alerts)[len(*alerts)-1]
	require.Equal(t, exchange.MEXC, last.BuyVenue)
	require.Equal(t, exchange.OKX, last.SellVenue)
}

func TestFinderExistenceProbeDropsAlerts(t *testing.T) {
	finder, alerts := newTestFinder(1.0, nil)
	finder.SetExistenceProbe(func(ctx context.Context, symbol string) bool {
		return false
	})

	finder.OnPriceUpdate(update(exchange.MEXC, "BTCUSDT", 100.0, 1))
	finder.OnPriceUpdate(update(exchange.Bitget, "BTCUSDT", 110.0, 2))

	require.Empty(t, *alerts)
}

func TestFinderInvalidUpdatesDiscarded(t *testing.T) {
	finder, alerts := newTestFinder(1.0, nil)

	finder.OnPriceUpdate(update(exchange.MEXC, "BTCUSDT", 0, 1))
	finder.OnPriceUpdate(update(exchange.Bitget, "", 100.0, 2))

	require.Empty(t, *alerts)
	_, ok := finder.LastPrice(exchange.MEXC, "BTCUSDT")
	require.False(t, ok)
}

func TestFinderCallbackPanicDoesNotPropagate(t *testing.T) {
	finder := NewFinder(1.0, NewAlertGate(2.0, nil), zerolog.Nop())
	finder.RegisterAlertCallback(func(op Opportunity) {
		panic("consumer bug")
	})
	var got []Opportunity
	finder.RegisterAlertCallback(func(op Opportunity) {
		got = append(got, op)
	})

	require.NotPanics(t, func() {
		finder.OnPriceUpdate(update(exchange.MEXC, "BTCUSDT", 100.0, 1))
		finder.OnPriceUpdate(update(exchange.Bitget, "BTCUSDT", 110.0, 2))
	})
	require.Len(t, got, 1)
}
