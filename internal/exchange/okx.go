package exchange

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"
)

const okxWSURL = "wss://ws.okx.com:8443/ws/v5/public"

// OKXAdapter streams swap tickers from OKX.
type OKXAdapter struct {
	*session
}

// NewOKX creates an OKX adapter.
func NewOKX(logger zerolog.Logger) *OKXAdapter {
	return &OKXAdapter{session: newSession(&okxCodec{}, logger)}
}

type okxCodec struct{}

func (c *okxCodec) venue() Venue  { return OKX }
func (c *okxCodec) wsURL() string { return okxWSURL }
func (c *okxCodec) appPing() bool { return true }

func (c *okxCodec) pingFrame() []byte {
	return []byte(`{"op":"ping"}`)
}

type okxSubscribeArg struct {
	Channel string `json:"channel"`
	InstID  string `json:"instId"`
}

type okxSubscribeMsg struct {
	Op   string            `json:"op"`
	Args []okxSubscribeArg `json:"args"`
}

func (c *okxCodec) subscribeFrames(symbols []string) [][]byte {
	frames := make([][]byte, 0, len(symbols))
	for _, sym := range symbols {
		frame, _ := json.Marshal(okxSubscribeMsg{
			Op:   "subscribe",
			Args: []okxSubscribeArg{{Channel: "tickers", InstID: sym}},
		})
		frames = append(frames, frame)
	}
	return frames
}

func (c *okxCodec) allTickersFrame() ([]byte, bool) {
	return nil, false
}

type okxTicker struct {
	InstID string `json:"instId"`
	Last   string `json:"last"`
	Ts     string `json:"ts"`
}

type okxPushMsg struct {
	Arg  okxSubscribeArg `json:"arg"`
	Data []okxTicker     `json:"data"`
}

func (c *okxCodec) decode(frame []byte) ([]tick, error) {
	var msg okxPushMsg
	if err := json.Unmarshal(frame, &msg); err != nil {
		return nil, fmt.Errorf("okx: %w", err)
	}
	if msg.Arg.Channel != "tickers" || len(msg.Data) == 0 {
		return nil, nil
	}

	var firstErr error
	ticks := make([]tick, 0, len(msg.Data))
	for _, t := range msg.Data {
		price, err := strconv.ParseFloat(t.Last, 64)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("okx: bad price %q for %s: %w", t.Last, t.InstID, err)
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
