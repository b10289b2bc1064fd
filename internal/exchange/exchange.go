// Package exchange provides WebSocket ticker adapters for perpetual-futures venues.
package exchange

import (
	"context"
	"time"
)

// Venue identifies a supported exchange.
type Venue string

const (
	MEXC   Venue = "MEXC"
	Bitget Venue = "BITGET"
	Bybit  Venue = "BYBIT"
	Gate   Venue = "GATE"
	OKX    Venue = "OKX"
	LBank  Venue = "LBANK"
	BingX  Venue = "BINGX"
)

// PriceUpdate is a normalized last-trade tick emitted by an adapter.
type PriceUpdate struct {
	Venue     Venue   `json:"venue"`
	Symbol    string  `json:"symbol"` // canonical, e.g. BTCUSDT
	Price     float64 `json:"price"`
	Timestamp float64 `json:"timestamp"` // unix seconds
}

// PriceCallback is invoked for every decoded ticker frame.
type PriceCallback func(PriceUpdate)

// SessionState tracks where an adapter's WebSocket session is in its lifecycle.
type SessionState int32

const (
	StateIdle SessionState = iota
	StateConnecting
	StateConnected
	StateSubscribing
	StateStreaming
	StateReconnecting
	StateClosing
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateSubscribing:
		return "subscribing"
	case StateStreaming:
		return "streaming"
	case StateReconnecting:
		return "reconnecting"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Adapter is the capability set every venue adapter satisfies.
type Adapter interface {
	// Venue returns the exchange identifier.
	Venue() Venue

	// Connect opens the WebSocket session and starts the receive and
	// keep-alive loops.
	Connect(ctx context.Context) error

	// Subscribe sends subscription frames for the given symbols. A nil or
	// empty slice subscribes to the venue's all-tickers channel when the
	// venue supports one.
	Subscribe(symbols []string) error

	// SetExchangeSymbols caches the symbol list used for re-subscription
	// after a reconnect.
	SetExchangeSymbols(symbols []string)

	// RegisterPriceCallback adds a callback invoked for every price update.
	RegisterPriceCallback(fn PriceCallback)

	// DepositWithdrawStatus reports whether deposits and withdrawals are
	// open for the symbol's base asset.
	DepositWithdrawStatus(ctx context.Context, symbol string) (deposit, withdraw bool)

	// Connected reports whether the session is currently established.
	Connected() bool

	// Close shuts the session down. It is idempotent.
	Close() error
}

// tick is a decoded venue-native ticker event.
type tick struct {
	symbol string  // venue-native symbol
	price  float64 // last trade price
	ts     float64 // unix seconds; 0 means stamp at receipt
}

// codec captures the per-venue variation points of a session: where to
// connect, how to subscribe, how to keep the peer alive and how to decode
// its ticker frames.
type codec interface {
	venue() Venue
	wsURL() string

	// subscribeFrames encodes subscription requests for the symbols.
	subscribeFrames(symbols []string) [][]byte

	// allTickersFrame returns the venue's subscribe-to-everything frame,
	// or false when the venue has no such channel.
	allTickersFrame() ([]byte, bool)

	// appPing reports whether the venue needs application-level pings. When
	// false the transport's built-in ping/pong is relied on.
	appPing() bool

	// pingFrame is the keep-alive payload, sent every pingInterval.
	pingFrame() []byte

	// decode parses one frame into ticks. Control frames (acks, pongs)
	// decode to an empty slice and a nil error.
	decode(frame []byte) ([]tick, error)
}

const (
	defaultPingInterval  = 10 * time.Second
	defaultReconnectWait = 5 * time.Second
	defaultSettleWait    = 4 * time.Second
	handshakeTimeout     = 10 * time.Second
)
