// Package normalize maps venue-native tickers onto canonical symbols. The
// canonical form is the sole key used when prices are matched across venues.
package normalize

import "strings"

// Canonical converts a venue-native symbol into the canonical form:
// uppercase with the "_" and "-" separators stripped. BTC_USDT, btc-usdt
// and BTCUSDT all map to BTCUSDT. Unknown venues fall through to the same
// default transform.
func Canonical(venue, symbol string) string {
	s := strings.ToUpper(symbol)
	s = strings.ReplaceAll(s, "_", "")
	s = strings.ReplaceAll(s, "-", "")
	return s
}

// StripUSDT drops a trailing USDT from a symbol, producing the base-only
// key used by coin-metadata lookups (deposit and withdrawal chains).
func StripUSDT(symbol string) string {
	s := strings.ToUpper(symbol)
	return strings.TrimSuffix(s, "USDT")
}
