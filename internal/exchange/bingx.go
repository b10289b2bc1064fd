package exchange

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const bingxWSURL = "wss://open-api-swap.bingx.com/swap-market"

// BingXAdapter streams last-price updates from the BingX swap market.
type BingXAdapter struct {
	*session
}

// NewBingX creates a BingX adapter.
func NewBingX(logger zerolog.Logger) *BingXAdapter {
	return &BingXAdapter{session: newSession(&bingxCodec{newID: uuid.NewString}, logger)}
}

type bingxCodec struct {
	newID func() string
}

func (c *bingxCodec) venue() Venue  { return BingX }
func (c *bingxCodec) wsURL() string { return bingxWSURL }
func (c *bingxCodec) appPing() bool { return true }

func (c *bingxCodec) pingFrame() []byte {
	return []byte(`{"method":"ping"}`)
}

type bingxSubscribeMsg struct {
	ID       string `json:"id"`
	ReqType  string `json:"reqType"`
	DataType string `json:"dataType"`
}

func (c *bingxCodec) subscribeFrames(symbols []string) [][]byte {
	frames := make([][]byte, 0, len(symbols))
	for _, sym := range symbols {
		frame, _ := json.Marshal(bingxSubscribeMsg{
			ID:       c.newID(),
			ReqType:  "sub",
			DataType: sym + "@lastPrice",
		})
		frames = append(frames, frame)
	}
	return frames
}

func (c *bingxCodec) allTickersFrame() ([]byte, bool) {
	return nil, false
}

type bingxPushMsg struct {
	Event  string `json:"e"`
	Symbol string `json:"s"`
	Price  string `json:"p"`
	Ts     int64  `json:"E"`
}

func (c *bingxCodec) decode(frame []byte) ([]tick, error) {
	var msg bingxPushMsg
	if err := json.Unmarshal(frame, &msg); err != nil {
		return nil, fmt.Errorf("bingx: %w", err)
	}
	if msg.Event != "lastPrice" || msg.Symbol == "" {
		return nil, nil
	}

	price, err := strconv.ParseFloat(msg.Price, 64)
	if err != nil {
		return nil, fmt.Errorf("bingx: bad price %q for %s: %w", msg.Price, msg.Symbol, err)
	}

	return []tick{{
		symbol: msg.Symbol,
		price:  price,
		ts:     float64(msg.Ts) / 1000,
	}}, nil
}
