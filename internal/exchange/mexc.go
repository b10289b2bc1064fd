package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"perpspread-scanner/internal/normalize"
)

const (
	mexcWSURL       = "wss://contract.mexc.com/edge"
	mexcContractURL = "https://contract.mexc.com"
	mexcSpotURL     = "https://api.mexc.com"
)

// MexcAdapter streams contract tickers from MEXC. Deposit/withdraw status
// and the symbol existence probe go through the REST API; the former needs
// API credentials.
type MexcAdapter struct {
	*session
	rest *mexcREST
}

// NewMexc creates a MEXC adapter. Credentials may be empty; the
// deposit/withdraw check then degrades to (false, false).
func NewMexc(logger zerolog.Logger, apiKey, apiSecret string) *MexcAdapter {
	a := &MexcAdapter{
		session: newSession(&mexcCodec{}, logger),
		rest: &mexcREST{
			contractURL: mexcContractURL,
			spotURL:     mexcSpotURL,
			apiKey:      apiKey,
			apiSecret:   apiSecret,
			client:      &http.Client{Timeout: 10 * time.Second},
			logger:      logger.With().Str("exchange", string(MEXC)).Logger(),
		},
	}
	return a
}

// DepositWithdrawStatus checks the spot capital config for the symbol's
// base asset and ORs the per-network statuses.
func (a *MexcAdapter) DepositWithdrawStatus(ctx context.Context, symbol string) (bool, bool) {
	return a.rest.depositWithdrawStatus(ctx, symbol)
}

// CheckTokenExists reports whether the canonical symbol trades as a MEXC
// perpetual contract.
func (a *MexcAdapter) CheckTokenExists(ctx context.Context, symbol string) bool {
	return a.rest.contractExists(ctx, symbol)
}

type mexcCodec struct{}

func (c *mexcCodec) venue() Venue  { return MEXC }
func (c *mexcCodec) wsURL() string { return mexcWSURL }
func (c *mexcCodec) appPing() bool { return true }

func (c *mexcCodec) pingFrame() []byte {
	return []byte(`{"method":"ping"}`)
}

type mexcSubscribeMsg struct {
	Method string            `json:"method"`
	Param  map[string]string `json:"param"`
}

func (c *mexcCodec) subscribeFrames(symbols []string) [][]byte {
	frames := make([][]byte, 0, len(symbols))
	for _, sym := range symbols {
		frame, _ := json.Marshal(mexcSubscribeMsg{
			Method: "sub.tickers",
			Param:  map[string]string{"symbol": sym},
		})
		frames = append(frames, frame)
	}
	return frames
}

func (c *mexcCodec) allTickersFrame() ([]byte, bool) {
	frame, _ := json.Marshal(mexcSubscribeMsg{
		Method: "sub.tickers",
		Param:  map[string]string{},
	})
	return frame, true
}

type mexcTicker struct {
	Symbol    string  `json:"symbol"`
	LastPrice float64 `json:"lastPrice"`
}

type mexcPushMsg struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
	Ts      int64           `json:"ts"`
}

func (c *mexcCodec) decode(frame []byte) ([]tick, error) {
	var msg mexcPushMsg
	if err := json.Unmarshal(frame, &msg); err != nil {
		return nil, fmt.Errorf("mexc: %w", err)
	}
	// Acks and pongs reuse the envelope with a non-list data field.
	if msg.Channel != "push.tickers" {
		return nil, nil
	}

	var tickers []mexcTicker
	if err := json.Unmarshal(msg.Data, &tickers); err != nil {
		return nil, fmt.Errorf("mexc: %w", err)
	}

	ticks := make([]tick, 0, len(tickers))
	for _, t := range tickers {
		if t.Symbol == "" || t.LastPrice <= 0 {
			continue
		}
		ticks = append(ticks, tick{
			symbol: t.Symbol,
			price:  t.LastPrice,
			ts:     float64(msg.Ts) / 1000,
		})
	}
	return ticks, nil
}

// mexcREST wraps the MEXC REST endpoints the adapter needs.
type mexcREST struct {
	contractURL string
	spotURL     string
	apiKey      string
	apiSecret   string
	client      *http.Client
	logger      zerolog.Logger

	warnOnce sync.Once
}

type mexcNetwork struct {
	DepositEnable  bool `json:"depositEnable"`
	WithdrawEnable bool `json:"withdrawEnable"`
}

type mexcCoin struct {
	Coin        string        `json:"coin"`
	NetworkList []mexcNetwork `json:"networkList"`
}

func (r *mexcREST) depositWithdrawStatus(ctx context.Context, symbol string) (bool, bool) {
	if r.apiKey == "" || r.apiSecret == "" {
		r.warnOnce.Do(func() {
			r.logger.Warn().Msg("MEXC_API_KEY/MEXC_API_SECRET not set, deposit/withdraw checks disabled")
		})
		return false, false
	}

	query := url.Values{}
	query.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	query.Set("signature", r.sign(query.Encode()))

	reqURL := r.spotURL + "/api/v3/capital/config/getall?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return false, false
	}
	req.Header.Set("X-MEXC-APIKEY", r.apiKey)

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Error().Err(err).Msg("capital config request failed")
		return false, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		r.logger.Error().Int("status", resp.StatusCode).Msg("capital config request rejected")
		return false, false
	}

	var coins []mexcCoin
	if err := json.NewDecoder(resp.Body).Decode(&coins); err != nil {
		r.logger.Error().Err(err).Msg("capital config decode failed")
		return false, false
	}

	base := normalize.StripUSDT(symbol)
	for _, coin := range coins {
		if coin.Coin != base {
			continue
		}
		var deposit, withdraw bool
		for _, n := range coin.NetworkList {
			deposit = deposit || n.DepositEnable
			withdraw = withdraw || n.WithdrawEnable
		}
		return deposit, withdraw
	}
	return false, false
}

func (r *mexcREST) sign(query string) string {
	mac := hmac.New(sha256.New, []byte(r.apiSecret))
	mac.Write([]byte(query))
	return hex.EncodeToString(mac.Sum(nil))
}

type mexcContractTicker struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

// contractExists probes the contract ticker endpoint for <BASE>_USDT.
func (r *mexcREST) contractExists(ctx context.Context, symbol string) bool {
	contract := normalize.StripUSDT(symbol) + "_USDT"
	reqURL := r.contractURL + "/api/v1/contract/ticker?symbol=" + url.QueryEscape(contract)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return false
	}

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Error().Err(err).Str("symbol", contract).Msg("contract ticker request failed")
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}

	var body mexcContractTicker
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false
	}
	return body.Success && len(body.Data) > 0 && string(body.Data) != "null"
}
