package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"perpspread-scanner/internal/normalize"
)

const (
	gateWSURL   = "wss://fx-ws.gateio.ws/v4/ws/usdt"
	gateRestURL = "https://api.gateio.ws"
)

// GateAdapter streams USDT-futures tickers from Gate. Deposit/withdraw
// status comes from the public currency_chains endpoint.
type GateAdapter struct {
	*session
	rest *gateREST
}

// NewGate creates a Gate adapter.
func NewGate(logger zerolog.Logger) *GateAdapter {
	return &GateAdapter{
		session: newSession(&gateCodec{now: func() int64 { return time.Now().Unix() }}, logger),
		rest: &gateREST{
			baseURL: gateRestURL,
			client:  &http.Client{Timeout: 10 * time.Second},
			logger:  logger.With().Str("exchange", string(Gate)).Logger(),
		},
	}
}

// DepositWithdrawStatus ORs the per-chain deposit and withdrawal flags for
// the symbol's base asset.
func (a *GateAdapter) DepositWithdrawStatus(ctx context.Context, symbol string) (bool, bool) {
	return a.rest.depositWithdrawStatus(ctx, symbol)
}

type gateCodec struct {
	now func() int64
}

func (c *gateCodec) venue() Venue  { return Gate }
func (c *gateCodec) wsURL() string { return gateWSURL }
func (c *gateCodec) appPing() bool { return true }

func (c *gateCodec) pingFrame() []byte {
	return []byte(`{"method":"ping"}`)
}

type gateSubscribeMsg struct {
	Time    int64    `json:"time"`
	Channel string   `json:"channel"`
	Event   string   `json:"event"`
	Payload []string `json:"payload"`
}

// subscribeFrames batches every contract into a single subscribe envelope;
// the futures.tickers channel takes the full payload list at once.
func (c *gateCodec) subscribeFrames(symbols []string) [][]byte {
	frame, _ := json.Marshal(gateSubscribeMsg{
		Time:    c.now(),
		Channel: "futures.tickers",
		Event:   "subscribe",
		Payload: symbols,
	})
	return [][]byte{frame}
}

func (c *gateCodec) allTickersFrame() ([]byte, bool) {
	return nil, false
}

type gateTicker struct {
	Contract string `json:"contract"`
	Last     string `json:"last"`
}

type gatePushMsg struct {
	TimeMs  int64           `json:"time_ms"`
	Channel string          `json:"channel"`
	Event   string          `json:"event"`
	Result  json.RawMessage `json:"result"`
}

func (c *gateCodec) decode(frame []byte) ([]tick, error) {
	var msg gatePushMsg
	if err := json.Unmarshal(frame, &msg); err != nil {
		return nil, fmt.Errorf("gate: %w", err)
	}
	// Subscription acks share the channel but carry an object result;
	// only update events hold a ticker list.
	if msg.Channel != "futures.tickers" || msg.Event != "update" {
		return nil, nil
	}

	var tickers []gateTicker
	if err := json.Unmarshal(msg.Result, &tickers); err != nil {
		return nil, fmt.Errorf("gate: %w", err)
	}

	var firstErr error
	ticks := make([]tick, 0, len(tickers))
	for _, t := range tickers {
		price, err := strconv.ParseFloat(t.Last, 64)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("gate: bad price %q for %s: %w", t.Last, t.Contract, err)
			}
			continue
		}
		ticks = append(ticks, tick{
			symbol: t.Contract,
			price:  price,
			ts:     float64(msg.TimeMs) / 1000,
		})
	}
	return ticks, firstErr
}

type gateREST struct {
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
}

type gateChain struct {
	Chain              string `json:"chain"`
	IsDepositDisabled  int    `json:"is_deposit_disabled"`
	IsWithdrawDisabled int    `json:"is_withdraw_disabled"`
}

func (r *gateREST) depositWithdrawStatus(ctx context.Context, symbol string) (bool, bool) {
	base := normalize.StripUSDT(symbol)
	reqURL := r.baseURL + "/api/v4/wallet/currency_chains?currency=" + url.QueryEscape(base)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return false, false
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Error().Err(err).Str("currency", base).Msg("currency chains request failed")
		return false, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		r.logger.Error().Int("status", resp.StatusCode).Str("currency", base).Msg("currency chains request rejected")
		return false, false
	}

	var chains []gateChain
	if err := json.NewDecoder(resp.Body).Decode(&chains); err != nil {
		r.logger.Error().Err(err).Str("currency", base).Msg("currency chains decode failed")
		return false, false
	}

	var deposit, withdraw bool
	for _, chain := range chains {
		if chain.IsDepositDisabled == 0 {
			deposit = true
		}
		if chain.IsWithdrawDisabled == 0 {
			withdraw = true
		}
		if deposit && withdraw {
			break
		}
	}
	return deposit, withdraw
}
