package exchange

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMexcSubscribeFrames(t *testing.T) {
	c := &mexcCodec{}

	frames := c.subscribeFrames([]string{"BTC_USDT"})
	require.Len(t, frames, 1)
	require.JSONEq(t, `{"method":"sub.tickers","param":{"symbol":"BTC_USDT"}}`, string(frames[0]))

	frame, ok := c.allTickersFrame()
	require.True(t, ok)
	require.JSONEq(t, `{"method":"sub.tickers","param":{}}`, string(frame))
}

func TestMexcDecode(t *testing.T) {
	c := &mexcCodec{}

	ticks, err := c.decode([]byte(`{"channel":"push.tickers","data":[{"symbol":"BTC_USDT","lastPrice":64250.5},{"symbol":"ETH_USDT","lastPrice":3010.1}],"ts":1700000000500}`))
	require.NoError(t, err)
	require.Len(t, ticks, 2)
	require.Equal(t, "BTC_USDT", ticks[0].symbol)
	require.Equal(t, 64250.5, ticks[0].price)
	require.InDelta(t, 1700000000.5, ticks[0].ts, 1e-9)

	ticks, err = c.decode([]byte(`{"channel":"pong","data":1700000000}`))
	require.NoError(t, err)
	require.Empty(t, ticks)

	_, err = c.decode([]byte(`not json`))
	require.Error(t, err)
}

func TestBitgetSubscribeFrame(t *testing.T) {
	c := &bitgetCodec{}

	frames := c.subscribeFrames([]string{"BTC_USDT"})
	require.Len(t, frames, 1)
	require.JSONEq(t,
		`{"op":"subscribe","args":[{"instType":"USDT-FUTURES","channel":"ticker","instId":"BTCUSDT"}]}`,
		string(frames[0]))

	_, ok := c.allTickersFrame()
	require.False(t, ok)
	require.False(t, c.appPing())
}

func TestBitgetDecode(t *testing.T) {
	c := &bitgetCodec{}

	ticks, err := c.decode([]byte(`{"action":"snapshot","arg":{"instType":"USDT-FUTURES","channel":"ticker","instId":"BTCUSDT"},"data":[{"instId":"BTCUSDT","lastPr":"64250.5","ts":"1700000000500"}]}`))
	require.NoError(t, err)
	require.Len(t, ticks, 1)
	require.Equal(t, "BTCUSDT", ticks[0].symbol)
	require.Equal(t, 64250.5, ticks[0].price)
	require.InDelta(t, 1700000000.5, ticks[0].ts, 1e-9)

	// Subscription ack carries no data.
	ticks, err = c.decode([]byte(`{"event":"subscribe","arg":{"instType":"USDT-FUTURES","channel":"ticker","instId":"BTCUSDT"}}`))
	require.NoError(t, err)
	require.Empty(t, ticks)

	// A bad price is reported but does not sink the good entries.
	ticks, err = c.decode([]byte(`{"arg":{"channel":"ticker"},"data":[{"instId":"AUSDT","lastPr":"oops","ts":"1"},{"instId":"BUSDT","lastPr":"2.5","ts":"1000"}]}`))
	require.Error(t, err)
	require.Len(t, ticks, 1)
	require.Equal(t, "BUSDT", ticks[0].symbol)
}

func TestBybitSubscribeFrame(t *testing.T) {
	c := &bybitCodec{}

	frames := c.subscribeFrames([]string{"BTCUSDT", "ETHUSDT"})
	require.Len(t, frames, 2)
	require.JSONEq(t, `{"op":"subscribe","args":["tickers.BTCUSDT"]}`, string(frames[0]))
	require.JSONEq(t, `{"op":"subscribe","args":["tickers.ETHUSDT"]}`, string(frames[1]))
}

func TestBybitDecode(t *testing.T) {
	c := &bybitCodec{}

	ticks, err := c.decode([]byte(`{"topic":"tickers.BTCUSDT","type":"snapshot","data":{"symbol":"BTCUSDT","lastPrice":"64250.5"},"ts":1700000000500}`))
	require.NoError(t, err)
	require.Len(t, ticks, 1)
	require.Equal(t, "BTCUSDT", ticks[0].symbol)
	require.Equal(t, 64250.5, ticks[0].price)
	// No server timestamp in the payload: stamped at receipt.
	require.Zero(t, ticks[0].ts)

	// Delta without lastPrice is skipped.
	ticks, err = c.decode([]byte(`{"topic":"tickers.BTCUSDT","type":"delta","data":{"symbol":"BTCUSDT"}}`))
	require.NoError(t, err)
	require.Empty(t, ticks)

	// Pong envelope.
	ticks, err = c.decode([]byte(`{"op":"pong","success":true}`))
	require.NoError(t, err)
	require.Empty(t, ticks)
}

func TestGateSubscribeFrame(t *testing.T) {
	c := &gateCodec{now: func() int64 { return 1700000000 }}

	frames := c.subscribeFrames([]string{"BTC_USDT", "ETH_USDT"})
	require.Len(t, frames, 1)
	require.JSONEq(t,
		`{"time":1700000000,"channel":"futures.tickers","event":"subscribe","payload":["BTC_USDT","ETH_USDT"]}`,
		string(frames[0]))
}

func TestGateDecode(t *testing.T) {
	c := &gateCodec{now: func() int64 { return 0 }}

	ticks, err := c.decode([]byte(`{"time":1700000000,"time_ms":1700000000500,"channel":"futures.tickers","event":"update","result":[{"contract":"BTC_USDT","last":"64250.5"}]}`))
	require.NoError(t, err)
	require.Len(t, ticks, 1)
	require.Equal(t, "BTC_USDT", ticks[0].symbol)
	require.Equal(t, 64250.5, ticks[0].price)
	require.InDelta(t, 1700000000.5, ticks[0].ts, 1e-9)

	// Subscribe ack carries an object result and is consumed silently.
	ticks, err = c.decode([]byte(`{"time":1700000000,"channel":"futures.tickers","event":"subscribe","result":{"status":"success"}}`))
	require.NoError(t, err)
	require.Empty(t, ticks)
}

func TestOKXSubscribeFrame(t *testing.T) {
	c := &okxCodec{}

	frames := c.subscribeFrames([]string{"BTC-USDT-SWAP"})
	require.Len(t, frames, 1)
	require.JSONEq(t,
		`{"op":"subscribe","args":[{"channel":"tickers","instId":"BTC-USDT-SWAP"}]}`,
		string(frames[0]))
}

func TestOKXDecode(t *testing.T) {
	c := &okxCodec{}

	ticks, err := c.decode([]byte(`{"arg":{"channel":"tickers","instId":"BTC-USDT-SWAP"},"data":[{"instId":"BTC-USDT-SWAP","last":"64250.5","ts":"1700000000500"}]}`))
	require.NoError(t, err)
	require.Len(t, ticks, 1)
	require.Equal(t, "BTC-USDT-SWAP", ticks[0].symbol)
	require.Equal(t, 64250.5, ticks[0].price)
	require.InDelta(t, 1700000000.5, ticks[0].ts, 1e-9)

	ticks, err = c.decode([]byte(`{"event":"subscribe","arg":{"channel":"tickers","instId":"BTC-USDT-SWAP"}}`))
	require.NoError(t, err)
	require.Empty(t, ticks)
}

func TestLBankSubscribeFrame(t *testing.T) {
	c := &lbankCodec{}

	frames := c.subscribeFrames([]string{"btc-usdt"})
	require.Len(t, frames, 1)
	require.JSONEq(t,
		`{"action":"subscribe","subscribe":"tick","pair":"BTC_USDT"}`,
		string(frames[0]))
}

func TestLBankDecode(t *testing.T) {
	c := &lbankCodec{}

	ticks, err := c.decode([]byte(`{"SERVER":"V2","type":"tick","pair":"btc_usdt","tick":{"latest":64250.5},"TS":"2023-11-14T22:13:20.500"}`))
	require.NoError(t, err)
	require.Len(t, ticks, 1)
	require.Equal(t, "btc_usdt", ticks[0].symbol)
	require.Equal(t, 64250.5, ticks[0].price)
	want := time.Date(2023, 11, 14, 22, 13, 20, 500_000_000, time.UTC)
	require.InDelta(t, float64(want.UnixNano())/float64(time.Second), ticks[0].ts, 1e-6)

	ticks, err = c.decode([]byte(`{"action":"pong","pong":"a1b2"}`))
	require.NoError(t, err)
	require.Empty(t, ticks)
}

func TestLBankTimeFallback(t *testing.T) {
	before := float64(time.Now().UnixNano()) / float64(time.Second)
	got := parseLBankTime("garbage")
	after := float64(time.Now().UnixNano()) / float64(time.Second)
	require.GreaterOrEqual(t, got, before)
	require.LessOrEqual(t, got, after)
}

func TestBingXSubscribeFrame(t *testing.T) {
	c := &bingxCodec{newID: func() string { return "fixed-id" }}

	frames := c.subscribeFrames([]string{"BTC-USDT"})
	require.Len(t, frames, 1)
	require.JSONEq(t,
		`{"id":"fixed-id","reqType":"sub","dataType":"BTC-USDT@lastPrice"}`,
		string(frames[0]))
}

func TestBingXDecode(t *testing.T) {
	c := &bingxCodec{newID: func() string { return "x" }}

	ticks, err := c.decode([]byte(`{"e":"lastPrice","s":"BTC-USDT","p":"64250.5","E":1700000000500}`))
	require.NoError(t, err)
	require.Len(t, ticks, 1)
	require.Equal(t, "BTC-USDT", ticks[0].symbol)
	require.Equal(t, 64250.5, ticks[0].price)
	require.InDelta(t, 1700000000.5, ticks[0].ts, 1e-9)

	ticks, err = c.decode([]byte(`{"id":"sub-ack","code":0}`))
	require.NoError(t, err)
	require.Empty(t, ticks)
}

func TestPingFrames(t *testing.T) {
	require.JSONEq(t, `{"method":"ping"}`, string((&mexcCodec{}).pingFrame()))
	require.JSONEq(t, `{"op":"ping"}`, string((&bybitCodec{}).pingFrame()))
	require.JSONEq(t, `{"op":"ping"}`, string((&okxCodec{}).pingFrame()))
	require.JSONEq(t, `{"method":"ping"}`, string((&gateCodec{}).pingFrame()))
	require.JSONEq(t, `{"action":"ping"}`, string((&lbankCodec{}).pingFrame()))
	require.JSONEq(t, `{"method":"ping"}`, string((&bingxCodec{}).pingFrame()))
	require.Equal(t, "ping", string((&bitgetCodec{}).pingFrame()))
}
