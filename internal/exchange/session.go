package exchange

import (
	"bytes"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"perpspread-scanner/internal/metrics"
	"perpspread-scanner/internal/normalize"
)

// session is the shared WebSocket skeleton every adapter is built on. The
// codec supplies the venue-specific pieces; the session owns the connection,
// the read loop, the keep-alive loop and the reconnect path.
type session struct {
	codec  codec
	logger zerolog.Logger
	url    string

	connMu  sync.Mutex
	conn    *websocket.Conn
	writeMu sync.Mutex

	state   atomic.Int32
	closing atomic.Bool

	stop        chan struct{}
	reconnectCh chan struct{}
	managerOnce sync.Once
	closeOnce   sync.Once
	wg          sync.WaitGroup

	symMu           sync.Mutex
	exchangeSymbols []string

	cbMu      sync.RWMutex
	callbacks []PriceCallback

	priceMu        sync.RWMutex
	prices         map[string]float64
	availablePairs map[string]struct{}

	pingInterval  time.Duration
	reconnectWait time.Duration
	settleWait    time.Duration
}

func newSession(c codec, logger zerolog.Logger) *session {
	return &session{
		codec:          c,
		logger:         logger.With().Str("exchange", string(c.venue())).Logger(),
		url:            c.wsURL(),
		stop:           make(chan struct{}),
		reconnectCh:    make(chan struct{}, 1),
		prices:         make(map[string]float64),
		availablePairs: make(map[string]struct{}),
		pingInterval:   defaultPingInterval,
		reconnectWait:  defaultReconnectWait,
		settleWait:     defaultSettleWait,
	}
}

// Venue returns the exchange identifier.
func (s *session) Venue() Venue {
	return s.codec.venue()
}

// State returns the current session state.
func (s *session) State() SessionState {
	return SessionState(s.state.Load())
}

func (s *session) setState(st SessionState) {
	s.state.Store(int32(st))
}

// Connected reports whether the session is established and past connect.
func (s *session) Connected() bool {
	switch s.State() {
	case StateConnected, StateSubscribing, StateStreaming:
		return true
	}
	return false
}

// RegisterPriceCallback adds a callback invoked for every price update.
func (s *session) RegisterPriceCallback(fn PriceCallback) {
	s.cbMu.Lock()
	s.callbacks = append(s.callbacks, fn)
	s.cbMu.Unlock()
}

// SetExchangeSymbols caches the symbols re-sent after a reconnect. It may
// run concurrently with the reconnect path, which reads the cache.
func (s *session) SetExchangeSymbols(symbols []string) {
	s.symMu.Lock()
	defer s.symMu.Unlock()
	if symbols == nil {
		s.exchangeSymbols = nil
		return
	}
	s.exchangeSymbols = append([]string(nil), symbols...)
}

func (s *session) cachedSymbols() []string {
	s.symMu.Lock()
	defer s.symMu.Unlock()
	if s.exchangeSymbols == nil {
		return nil
	}
	return append([]string(nil), s.exchangeSymbols...)
}

// LastPrice returns the most recent price seen for a canonical symbol.
func (s *session) LastPrice(symbol string) (float64, bool) {
	s.priceMu.RLock()
	defer s.priceMu.RUnlock()
	p, ok := s.prices[symbol]
	return p, ok
}

// AvailablePairs returns the venue-native symbols subscribed so far.
func (s *session) AvailablePairs() []string {
	s.priceMu.RLock()
	defer s.priceMu.RUnlock()
	pairs := make([]string, 0, len(s.availablePairs))
	for p := range s.availablePairs {
		pairs = append(pairs, p)
	}
	return pairs
}

// DepositWithdrawStatus is the default status used by venues without a
// dedicated asset endpoint.
func (s *session) DepositWithdrawStatus(ctx context.Context, symbol string) (bool, bool) {
	return true, true
}

// Connect dials the venue and starts the receive and keep-alive loops. On
// dial failure the session keeps retrying in the background.
func (s *session) Connect(ctx context.Context) error {
	if s.closing.Load() {
		return ErrSessionClosed
	}

	s.managerOnce.Do(func() {
		s.wg.Add(1)
		go s.reconnectManager()
	})

	s.setState(StateConnecting)

	conn, err := s.dial(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Str("url", s.url).Msg("connection failed")
		metrics.RecordConnectionError(string(s.Venue()), "connect_failed")
		s.triggerReconnect()
		return err
	}

	s.setConn(conn)
	s.setState(StateConnected)
	metrics.RecordConnectionStatus(string(s.Venue()), true)
	s.logger.Info().Str("url", s.url).Msg("connected")

	s.startLoops(conn)
	return nil
}

func (s *session) dial(ctx context.Context) (*websocket.Conn, error) {
	s.connMu.Lock()
	url := s.url
	s.connMu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	return conn, err
}

func (s *session) setConn(conn *websocket.Conn) {
	s.connMu.Lock()
	old := s.conn
	s.conn = conn
	s.connMu.Unlock()
	if old != nil && old != conn {
		old.Close()
	}
	// A close racing the swap must not leave the fresh connection open,
	// or its read loop would never unblock.
	if s.closing.Load() {
		conn.Close()
	}
}

func (s *session) currentConn() *websocket.Conn {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.conn
}

func (s *session) startLoops(conn *websocket.Conn) {
	connDone := make(chan struct{})
	s.wg.Add(1)
	go s.readLoop(conn, connDone)
	if s.codec.appPing() {
		s.wg.Add(1)
		go s.pingLoop(conn, connDone)
	}
}

// Subscribe sends subscription frames for the symbols. A nil or empty slice
// subscribes to the venue's all-tickers channel when one exists. Send errors
// are logged and non-fatal; other symbols keep flowing.
func (s *session) Subscribe(symbols []string) error {
	s.setState(StateSubscribing)
	defer s.setState(StateStreaming)

	if len(symbols) == 0 {
		frame, ok := s.codec.allTickersFrame()
		if !ok {
			s.logger.Warn().Msg("no symbols and no all-tickers channel, nothing subscribed")
			return nil
		}
		if err := s.writeFrame(frame); err != nil {
			s.logger.Error().Err(err).Msg("all-tickers subscribe failed")
			return err
		}
		s.logger.Info().Msg("subscribed to all tickers")
		return nil
	}

	for _, frame := range s.codec.subscribeFrames(symbols) {
		if err := s.writeFrame(frame); err != nil {
			s.logger.Error().Err(err).Msg("subscribe send failed")
		}
	}

	s.priceMu.Lock()
	for _, sym := range symbols {
		s.availablePairs[sym] = struct{}{}
	}
	s.priceMu.Unlock()

	s.logger.Info().Int("symbols", len(symbols)).Msg("subscribed")
	return nil
}

func (s *session) writeFrame(frame []byte) error {
	conn := s.currentConn()
	if conn == nil {
		return ErrNotConnected
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, frame)
}

// readLoop receives frames until the connection dies or the session closes.
func (s *session) readLoop(conn *websocket.Conn, connDone chan struct{}) {
	defer s.wg.Done()
	defer close(connDone)

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if s.closing.Load() {
				return
			}
			s.logger.Warn().Err(err).Msg("read error, scheduling reconnect")
			metrics.RecordConnectionStatus(string(s.Venue()), false)
			s.triggerReconnect()
			return
		}
		s.handleFrame(frame)
	}
}

var literalPong = []byte("pong")

func (s *session) handleFrame(frame []byte) {
	if bytes.Equal(bytes.TrimSpace(frame), literalPong) {
		return
	}

	ticks, err := s.codec.decode(frame)
	if err != nil {
		s.logger.Error().Err(err).Msg("frame decode failed")
		metrics.RecordDecodeError(string(s.Venue()))
	}

	// A partially decoded frame still delivers its good ticks.
	for _, tk := range ticks {
		s.handleTick(tk)
	}
}

func (s *session) handleTick(tk tick) {
	canonical := normalize.Canonical(string(s.Venue()), tk.symbol)
	if canonical == "" || tk.price <= 0 {
		return
	}

	ts := tk.ts
	if ts == 0 {
		ts = float64(time.Now().UnixNano()) / float64(time.Second)
	}

	s.priceMu.Lock()
	s.prices[canonical] = tk.price
	s.priceMu.Unlock()

	metrics.RecordPriceUpdate(string(s.Venue()))
	s.notify(PriceUpdate{
		Venue:     s.Venue(),
		Symbol:    canonical,
		Price:     tk.price,
		Timestamp: ts,
	})
}

func (s *session) notify(u PriceUpdate) {
	s.cbMu.RLock()
	callbacks := s.callbacks
	s.cbMu.RUnlock()

	for _, cb := range callbacks {
		s.invoke(cb, u)
	}
}

func (s *session) invoke(cb PriceCallback, u PriceUpdate) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Str("symbol", u.Symbol).Msg("price callback panicked")
		}
	}()
	cb(u)
}

// pingLoop sends the venue keep-alive frame every pingInterval. A failed
// write kills the connection, which the read loop turns into a reconnect.
func (s *session) pingLoop(conn *websocket.Conn, connDone chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-connDone:
			return
		case <-ticker.C:
			s.writeMu.Lock()
			err := conn.WriteMessage(websocket.TextMessage, s.codec.pingFrame())
			s.writeMu.Unlock()
			if err != nil {
				s.logger.Warn().Err(err).Msg("ping failed")
				conn.Close()
				return
			}
		}
	}
}

func (s *session) triggerReconnect() {
	if s.closing.Load() {
		return
	}
	select {
	case s.reconnectCh <- struct{}{}:
	default:
	}
}

func (s *session) reconnectManager() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stop:
			return
		case <-s.reconnectCh:
			s.reconnect()
		}
	}
}

// reconnect tears the session down, waits the back-off, re-dials and
// re-sends the cached subscriptions. It keeps retrying until it succeeds
// or the session is closed.
func (s *session) reconnect() {
	s.setState(StateReconnecting)
	metrics.RecordReconnect(string(s.Venue()))

	if conn := s.currentConn(); conn != nil {
		conn.Close()
	}

	for {
		select {
		case <-s.stop:
			return
		case <-time.After(s.reconnectWait):
		}

		s.logger.Info().Msg("attempting to reconnect")
		s.setState(StateConnecting)

		conn, err := s.dial(context.Background())
		if err != nil {
			s.logger.Warn().Err(err).Msg("reconnect dial failed")
			metrics.RecordConnectionError(string(s.Venue()), "reconnect_failed")
			s.setState(StateReconnecting)
			continue
		}
		if s.closing.Load() {
			conn.Close()
			return
		}

		s.setConn(conn)
		s.setState(StateConnected)
		metrics.RecordConnectionStatus(string(s.Venue()), true)
		s.startLoops(conn)

		select {
		case <-s.stop:
			return
		case <-time.After(s.settleWait):
		}

		if err := s.Subscribe(s.cachedSymbols()); err != nil {
			s.logger.Error().Err(err).Msg("re-subscribe failed")
		}
		s.logger.Info().Msg("reconnected")
		return
	}
}

// Close shuts the session down and waits for its loops to exit. Safe to
// call more than once.
func (s *session) Close() error {
	s.closeOnce.Do(func() {
		s.closing.Store(true)
		s.setState(StateClosing)
		close(s.stop)

		if conn := s.currentConn(); conn != nil {
			s.writeMu.Lock()
			conn.WriteMessage(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			)
			s.writeMu.Unlock()
			conn.Close()
		}

		s.wg.Wait()
		s.setState(StateClosed)
		metrics.RecordConnectionStatus(string(s.Venue()), false)
		s.logger.Info().Msg("closed")
	})
	return nil
}
