// Package catalog fetches the tradable symbol list per venue at startup.
// Every fetch failure degrades to an empty list; a venue with no symbols
// simply contributes no subscriptions.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"perpspread-scanner/internal/exchange"
	"perpspread-scanner/internal/metrics"
)

const (
	bitgetBaseURL = "https://api.bitget.com"
	gateBaseURL   = "https://api.gateio.ws"
	bybitBaseURL  = "https://api.bybit.com"
	okxBaseURL    = "https://www.okx.com"
	lbankBaseURL  = "https://api.lbkex.com"
)

// Fetcher loads venue symbol catalogs over HTTP. Base URLs are fields so
// tests can point them at local servers.
type Fetcher struct {
	BitgetURL string
	GateURL   string
	BybitURL  string
	OKXURL    string
	LBankURL  string

	client  *http.Client
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// NewFetcher creates a catalog fetcher with production endpoints.
func NewFetcher(logger zerolog.Logger) *Fetcher {
	return &Fetcher{
		BitgetURL: bitgetBaseURL,
		GateURL:   gateBaseURL,
		BybitURL:  bybitBaseURL,
		OKXURL:    okxBaseURL,
		LBankURL:  lbankBaseURL,
		client:    &http.Client{Timeout: 15 * time.Second},
		limiter:   rate.NewLimiter(rate.Limit(5), 5),
		logger:    logger.With().Str("component", "catalog").Logger(),
	}
}

// FetchAll fetches every venue catalog concurrently and returns the
// venue-to-symbols map. MEXC and BingX map to nil, meaning "subscribe to
// everything the adapter supports".
func (f *Fetcher) FetchAll(ctx context.Context) map[exchange.Venue][]string {
	var mu sync.Mutex
	results := map[exchange.Venue][]string{
		exchange.MEXC:  nil,
		exchange.BingX: nil,
	}

	fetches := []struct {
		venue exchange.Venue
		fn    func(context.Context) ([]string, error)
	}{
		{exchange.Bitget, f.FetchBitget},
		{exchange.Gate, f.FetchGate},
		{exchange.Bybit, f.FetchBybit},
		{exchange.OKX, f.FetchOKX},
		{exchange.LBank, f.FetchLBank},
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, fetch := range fetches {
		fetch := fetch
		g.Go(func() error {
			symbols, err := fetch.fn(ctx)
			metrics.RecordCatalog(string(fetch.venue), len(symbols), err)
			if err != nil {
				f.logger.Error().Err(err).Str("exchange", string(fetch.venue)).Msg("catalog fetch failed")
				symbols = nil
			} else {
				f.logger.Info().Str("exchange", string(fetch.venue)).Int("symbols", len(symbols)).Msg("fetched catalog")
			}
			mu.Lock()
			results[fetch.venue] = symbols
			mu.Unlock()
			// Fetch failures are non-fatal and must not cancel siblings.
			return nil
		})
	}
	g.Wait()

	return results
}

func (f *Fetcher) get(ctx context.Context, url string, out any) error {
	if err := f.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type bitgetContractsResp struct {
	Code string `json:"code"`
	Data []struct {
		BaseCoin  string `json:"baseCoin"`
		QuoteCoin string `json:"quoteCoin"`
	} `json:"data"`
}

// FetchBitget returns Bitget USDT-margined contracts as BASE_QUOTE pairs.
func (f *Fetcher) FetchBitget(ctx context.Context) ([]string, error) {
	var body bitgetContractsResp
	if err := f.get(ctx, f.BitgetURL+"/api/mix/v1/market/contracts?productType=umcbl", &body); err != nil {
		return nil, err
	}
	if body.Code != "00000" {
		return nil, fmt.Errorf("unexpected response code %q", body.Code)
	}

	symbols := make([]string, 0, len(body.Data))
	for _, item := range body.Data {
		if item.BaseCoin == "" || item.QuoteCoin == "" {
			continue
		}
		symbols = append(symbols, item.BaseCoin+"_"+item.QuoteCoin)
	}
	return symbols, nil
}

type gateContract struct {
	Name string `json:"name"`
}

// FetchGate returns Gate USDT-futures contract names.
func (f *Fetcher) FetchGate(ctx context.Context) ([]string, error) {
	var body []gateContract
	if err := f.get(ctx, f.GateURL+"/api/v4/futures/usdt/contracts", &body); err != nil {
		return nil, err
	}

	symbols := make([]string, 0, len(body))
	for _, item := range body {
		if item.Name == "" {
			continue
		}
		symbols = append(symbols, strings.ToUpper(item.Name))
	}
	return symbols, nil
}

type bybitTickersResp struct {
	Result struct {
		List []struct {
			Symbol string `json:"symbol"`
		} `json:"list"`
	} `json:"result"`
}

// FetchBybit returns Bybit linear symbols.
func (f *Fetcher) FetchBybit(ctx context.Context) ([]string, error) {
	var body bybitTickersResp
	if err := f.get(ctx, f.BybitURL+"/v5/market/tickers?category=linear", &body); err != nil {
		return nil, err
	}

	symbols := make([]string, 0, len(body.Result.List))
	for _, item := range body.Result.List {
		if item.Symbol == "" {
			continue
		}
		symbols = append(symbols, strings.ToUpper(item.Symbol))
	}
	return symbols, nil
}

type okxMarkPriceResp struct {
	Data []struct {
		InstID string `json:"instId"`
	} `json:"data"`
}

// FetchOKX returns OKX swap instrument ids.
func (f *Fetcher) FetchOKX(ctx context.Context) ([]string, error) {
	var body okxMarkPriceResp
	if err := f.get(ctx, f.OKXURL+"/api/v5/public/mark-price?instType=SWAP", &body); err != nil {
		return nil, err
	}

	symbols := make([]string, 0, len(body.Data))
	for _, item := range body.Data {
		if item.InstID == "" {
			continue
		}
		symbols = append(symbols, strings.ToUpper(item.InstID))
	}
	return symbols, nil
}

type lbankPairsResp struct {
	Msg  string   `json:"msg"`
	Data []string `json:"data"`
}

// FetchLBank returns LBank currency pairs.
func (f *Fetcher) FetchLBank(ctx context.Context) ([]string, error) {
	var body lbankPairsResp
	if err := f.get(ctx, f.LBankURL+"/v2/currencyPairs.do", &body); err != nil {
		return nil, err
	}
	if body.Msg != "Success" {
		return nil, fmt.Errorf("unexpected response msg %q", body.Msg)
	}

	symbols := make([]string, 0, len(body.Data))
	for _, pair := range body.Data {
		if pair == "" {
			continue
		}
		symbols = append(symbols, strings.ToUpper(pair))
	}
	return symbols, nil
}
