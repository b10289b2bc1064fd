package exchange

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

const bitgetWSURL = "wss://ws.bitget.com/v2/ws/public"

// BitgetAdapter streams USDT-futures tickers from Bitget. The transport's
// built-in ping/pong keeps the connection alive, so no application ping
// loop is started.
type BitgetAdapter struct {
	*session
}

// NewBitget creates a Bitget adapter.
func NewBitget(logger zerolog.Logger) *BitgetAdapter {
	return &BitgetAdapter{session: newSession(&bitgetCodec{}, logger)}
}

type bitgetCodec struct{}

func (c *bitgetCodec) venue() Venue  { return Bitget }
func (c *bitgetCodec) wsURL() string { return bitgetWSURL }
func (c *bitgetCodec) appPing() bool { return false }

func (c *bitgetCodec) pingFrame() []byte {
	return []byte("ping")
}

type bitgetSubscribeArg struct {
	InstType string `json:"instType"`
	Channel  string `json:"channel"`
	InstID   string `json:"instId"`
}

type bitgetSubscribeMsg struct {
	Op   string               `json:"op"`
	Args []bitgetSubscribeArg `json:"args"`
}

func (c *bitgetCodec) subscribeFrames(symbols []string) [][]byte {
	frames := make([][]byte, 0, len(symbols))
	for _, sym := range symbols {
		// Catalog symbols arrive as BASE_QUOTE; the instId is separator-free.
		instID := strings.ToUpper(strings.ReplaceAll(sym, "_", ""))
		frame, _ := json.Marshal(bitgetSubscribeMsg{
			Op: "subscribe",
			Args: []bitgetSubscribeArg{{
				InstType: "USDT-FUTURES",
				Channel:  "ticker",
				InstID:   instID,
			}},
		})
		frames = append(frames, frame)
	}
	return frames
}

func (c *bitgetCodec) allTickersFrame() ([]byte, bool) {
	return nil, false
}

type bitgetTicker struct {
	InstID string `json:"instId"`
	LastPr string `json:"lastPr"`
	Ts     string `json:"ts"`
}

type bitgetPushMsg struct {
	Arg  bitgetSubscribeArg `json:"arg"`
	Data []bitgetTicker     `json:"data"`
}

func (c *bitgetCodec) decode(frame []byte) ([]tick, error) {
	var msg bitgetPushMsg
	if err := json.Unmarshal(frame, &msg); err != nil {
		return nil, fmt.Errorf("bitget: %w", err)
	}
	if msg.Arg.Channel != "ticker" || len(msg.Data) == 0 {
		return nil, nil
	}

	var firstErr error
	ticks := make([]tick, 0, len(msg.Data))
	for _, t := range msg.Data {
		price, err := strconv.ParseFloat(t.LastPr, 64)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("bitget: bad price %q for %s: %w", t.LastPr, t.InstID, err)
			}
			continue
		}
		var ts float64
		if ms, err := strconv.ParseInt(t.Ts, 10, 64); err == nil {
			ts = float64(ms) / 1000
		}
		ticks = append(ticks, tick{symbol: t.InstID, price: price, ts: ts})
	}
	return ticks, firstErr
}
