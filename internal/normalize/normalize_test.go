package normalize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanonical(t *testing.T) {
	tests := []struct {
		name   string
		venue  string
		symbol string
		want   string
	}{
		{"mexc_underscore", "MEXC", "BTC_USDT", "BTCUSDT"},
		{"gate_underscore", "GATE", "ETH_USDT", "ETHUSDT"},
		{"okx_swap", "OKX", "BTC-USDT-SWAP", "BTCUSDTSWAP"},
		{"bingx_dash", "BINGX", "BTC-USDT", "BTCUSDT"},
		{"lowercase", "BYBIT", "btcusdt", "BTCUSDT"},
		{"already_canonical", "BITGET", "BTCUSDT", "BTCUSDT"},
		{"unknown_venue_default", "KRAKEN", "btc_usdt", "BTCUSDT"},
		{"mixed_separators", "LBANK", "btc_usdt-swap", "BTCUSDTSWAP"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Canonical(tc.venue, tc.symbol)
			require.Equal(t, tc.want, got)
			require.NotContains(t, got, "_")
			require.NotContains(t, got, "-")
			require.Equal(t, strings.ToUpper(got), got)
		})
	}
}

func TestStripUSDT(t *testing.T) {
	require.Equal(t, "BTC", StripUSDT("BTCUSDT"))
	require.Equal(t, "BTC", StripUSDT("btcusdt"))
	require.Equal(t, "ETH", StripUSDT("ETHUSDT"))
	require.Equal(t, "BTCUSD", StripUSDT("BTCUSD"))
	require.Equal(t, "", StripUSDT("USDT"))
}
