// Package service wires the exchange adapters, the symbol catalogs and the
// spread finder together and drives the start/stop lifecycle.
package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"perpspread-scanner/internal/catalog"
	"perpspread-scanner/internal/exchange"
	"perpspread-scanner/internal/spread"
)

// Service owns the adapter set. Adapters stream prices into the finder via
// the callback registered at AddExchange time.
type Service struct {
	mu       sync.Mutex
	adapters map[exchange.Venue]exchange.Adapter
	finder   *spread.Finder
	catalog  *catalog.Fetcher
	logger   zerolog.Logger
	running  bool
}

// New creates a service around the given finder and catalog fetcher.
func New(finder *spread.Finder, fetcher *catalog.Fetcher, logger zerolog.Logger) *Service {
	return &Service{
		adapters: make(map[exchange.Venue]exchange.Adapter),
		finder:   finder,
		catalog:  fetcher,
		logger:   logger.With().Str("component", "service").Logger(),
	}
}

// AddExchange registers an adapter and wires its price stream into the
// finder. Duplicate venues are rejected with a warning.
func (s *Service) AddExchange(a exchange.Adapter) error {
	if a == nil || a.Venue() == "" {
		return fmt.Errorf("invalid adapter")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	venue := a.Venue()
	if _, ok := s.adapters[venue]; ok {
		s.logger.Warn().Str("exchange", string(venue)).Msg("exchange already registered")
		return fmt.Errorf("exchange %s already registered", venue)
	}

	s.adapters[venue] = a
	a.RegisterPriceCallback(s.finder.OnPriceUpdate)
	s.logger.Info().Str("exchange", string(venue)).Msg("added exchange")
	return nil
}

// Adapter returns the registered adapter for a venue.
func (s *Service) Adapter(venue exchange.Venue) (exchange.Adapter, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.adapters[venue]
	return a, ok
}

// Venues returns the registered venues.
func (s *Service) Venues() []exchange.Venue {
	s.mu.Lock()
	defer s.mu.Unlock()
	venues := make([]exchange.Venue, 0, len(s.adapters))
	for v := range s.adapters {
		venues = append(venues, v)
	}
	return venues
}

// Start fetches the symbol catalogs and brings every adapter up
// concurrently: connect, cache the symbol slice, subscribe. A failing
// adapter logs and does not abort its peers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	adapters := make([]exchange.Adapter, 0, len(s.adapters))
	for _, a := range s.adapters {
		adapters = append(adapters, a)
	}
	s.mu.Unlock()

	if len(adapters) == 0 {
		return fmt.Errorf("no exchanges registered")
	}

	catalogs := s.catalog.FetchAll(ctx)

	g, ctx := errgroup.WithContext(ctx)
	for _, a := range adapters {
		a := a
		g.Go(func() error {
			venue := a.Venue()
			if err := a.Connect(ctx); err != nil {
				s.logger.Error().Err(err).Str("exchange", string(venue)).Msg("connect failed, adapter will keep retrying")
				return nil
			}

			symbols := catalogs[venue]
			a.SetExchangeSymbols(symbols)
			if err := a.Subscribe(symbols); err != nil {
				s.logger.Error().Err(err).Str("exchange", string(venue)).Msg("subscribe failed")
			}
			return nil
		})
	}
	g.Wait()

	s.logger.Info().Int("exchanges", len(adapters)).Msg("service started")
	return nil
}

// Stop closes every adapter concurrently. Idempotent.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	adapters := make([]exchange.Adapter, 0, len(s.adapters))
	for _, a := range s.adapters {
		adapters = append(adapters, a)
	}
	s.mu.Unlock()

	var g errgroup.Group
	for _, a := range adapters {
		a := a
		g.Go(func() error {
			if err := a.Close(); err != nil {
				s.logger.Error().Err(err).Str("exchange", string(a.Venue())).Msg("close failed")
			}
			return nil
		})
	}
	g.Wait()

	s.logger.Info().Msg("service stopped")
}
