package exchange

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	lbankWSURL = "wss://www.lbkex.net/ws/V2/"

	// LBank stamps frames with a zoneless ISO-8601 string; the fractional
	// part is parsed regardless of its length.
	lbankTimeLayout = "2006-01-02T15:04:05"
)

// LBankAdapter streams tick updates from LBank.
type LBankAdapter struct {
	*session
}

// NewLBank creates an LBank adapter.
func NewLBank(logger zerolog.Logger) *LBankAdapter {
	return &LBankAdapter{session: newSession(&lbankCodec{}, logger)}
}

type lbankCodec struct{}

func (c *lbankCodec) venue() Venue  { return LBank }
func (c *lbankCodec) wsURL() string { return lbankWSURL }
func (c *lbankCodec) appPing() bool { return true }

func (c *lbankCodec) pingFrame() []byte {
	return []byte(`{"action":"ping"}`)
}

type lbankSubscribeMsg struct {
	Action    string `json:"action"`
	Subscribe string `json:"subscribe"`
	Pair      string `json:"pair"`
}

func (c *lbankCodec) subscribeFrames(symbols []string) [][]byte {
	frames := make([][]byte, 0, len(symbols))
	for _, sym := range symbols {
		frame, _ := json.Marshal(lbankSubscribeMsg{
			Action:    "subscribe",
			Subscribe: "tick",
			Pair:      strings.ToUpper(strings.ReplaceAll(sym, "-", "_")),
		})
		frames = append(frames, frame)
	}
	return frames
}

func (c *lbankCodec) allTickersFrame() ([]byte, bool) {
	return nil, false
}

type lbankTick struct {
	Latest float64 `json:"latest"`
}

type lbankPushMsg struct {
	Action string    `json:"action"`
	Type   string    `json:"type"`
	Pair   string    `json:"pair"`
	Tick   lbankTick `json:"tick"`
	TS     string    `json:"TS"`
}

func (c *lbankCodec) decode(frame []byte) ([]tick, error) {
	var msg lbankPushMsg
	if err := json.Unmarshal(frame, &msg); err != nil {
		return nil, fmt.Errorf("lbank: %w", err)
	}
	if msg.Action == "pong" || msg.Type != "tick" {
		return nil, nil
	}
	if msg.Pair == "" || msg.Tick.Latest <= 0 {
		return nil, nil
	}

	return []tick{{
		symbol: msg.Pair,
		price:  msg.Tick.Latest,
		ts:     parseLBankTime(msg.TS),
	}}, nil
}

// parseLBankTime converts the TS field to unix seconds; an unparseable
// value falls back to wall clock.
func parseLBankTime(s string) float64 {
	t, err := time.Parse(lbankTimeLayout, s)
	if err != nil {
		return float64(time.Now().UnixNano()) / float64(time.Second)
	}
	return float64(t.UnixNano()) / float64(time.Second)
}
