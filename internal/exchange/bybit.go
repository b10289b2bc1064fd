package exchange

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

const bybitWSURL = "wss://stream.bybit.com/v5/public/linear"

// BybitAdapter streams linear perpetual tickers from Bybit. Ticker frames
// carry no server timestamp, so updates are stamped at receipt.
type BybitAdapter struct {
	*session
}

// NewBybit creates a Bybit adapter.
func NewBybit(logger zerolog.Logger) *BybitAdapter {
	return &BybitAdapter{session: newSession(&bybitCodec{}, logger)}
}

type bybitCodec struct{}

func (c *bybitCodec) venue() Venue  { return Bybit }
func (c *bybitCodec) wsURL() string { return bybitWSURL }
func (c *bybitCodec) appPing() bool { return true }

func (c *bybitCodec) pingFrame() []byte {
	return []byte(`{"op":"ping"}`)
}

type bybitSubscribeMsg struct {
	Op   string   `json:"op"`
	Args []string `json:"args"`
}

func (c *bybitCodec) subscribeFrames(symbols []string) [][]byte {
	frames := make([][]byte, 0, len(symbols))
	for _, sym := range symbols {
		frame, _ := json.Marshal(bybitSubscribeMsg{
			Op:   "subscribe",
			Args: []string{"tickers." + sym},
		})
		frames = append(frames, frame)
	}
	return frames
}

func (c *bybitCodec) allTickersFrame() ([]byte, bool) {
	return nil, false
}

type bybitTicker struct {
	Symbol    string `json:"symbol"`
	LastPrice string `json:"lastPrice"`
}

type bybitPushMsg struct {
	Topic string      `json:"topic"`
	Data  bybitTicker `json:"data"`
}

func (c *bybitCodec) decode(frame []byte) ([]tick, error) {
	var msg bybitPushMsg
	if err := json.Unmarshal(frame, &msg); err != nil {
		return nil, fmt.Errorf("bybit: %w", err)
	}
	if !strings.HasPrefix(msg.Topic, "tickers.") {
		return nil, nil
	}
	// Delta frames may omit lastPrice; frames without one are skipped.
	if msg.Data.Symbol == "" || msg.Data.LastPrice == "" {
		return nil, nil
	}

	price, err := strconv.ParseFloat(msg.Data.LastPrice, 64)
	if err != nil {
		return nil, fmt.Errorf("bybit: bad price %q for %s: %w", msg.Data.LastPrice, msg.Data.Symbol, err)
	}

	// ts 0: no server timestamp in the payload, stamp at receipt.
	return []tick{{symbol: msg.Data.Symbol, price: price}}, nil
}
