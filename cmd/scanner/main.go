package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"perpspread-scanner/internal/catalog"
	"perpspread-scanner/internal/config"
	"perpspread-scanner/internal/exchange"
	"perpspread-scanner/internal/metrics"
	"perpspread-scanner/internal/publisher"
	"perpspread-scanner/internal/service"
	"perpspread-scanner/internal/spread"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg := config.Load()

	log.Info().
		Strs("exchanges", cfg.EnabledExchanges).
		Float64("min_spread_percent", cfg.MinSpreadPercent).
		Float64("min_spread_change_percent", cfg.MinSpreadChangePercent).
		Str("metrics", ":"+cfg.MetricsPort).
		Msg("starting spread scanner")

	metricsServer := metrics.NewServer(":" + cfg.MetricsPort)
	go func() {
		if err := metricsServer.Start(); err != nil {
			log.Error().Err(err).Msg("metrics server error")
		}
	}()

	ignore := spread.LoadIgnoreList(cfg.IgnoreTokensPath, log.Logger)
	gate := spread.NewAlertGate(cfg.MinSpreadChangePercent, ignore)
	finder := spread.NewFinder(cfg.MinSpreadPercent, gate, log.Logger)

	svc := service.New(finder, catalog.NewFetcher(log.Logger), log.Logger)

	var mexcAdapter *exchange.MexcAdapter
	for _, name := range cfg.EnabledExchanges {
		var adapter exchange.Adapter
		switch name {
		case "mexc":
			mexcAdapter = exchange.NewMexc(log.Logger, cfg.MexcAPIKey, cfg.MexcAPISecret)
			adapter = mexcAdapter
		case "bitget":
			adapter = exchange.NewBitget(log.Logger)
		case "bybit":
			adapter = exchange.NewBybit(log.Logger)
		case "gate":
			adapter = exchange.NewGate(log.Logger)
		case "okx":
			adapter = exchange.NewOKX(log.Logger)
		case "lbank":
			adapter = exchange.NewLBank(log.Logger)
		case "bingx":
			adapter = exchange.NewBingX(log.Logger)
		default:
			log.Warn().Str("exchange", name).Msg("unknown exchange, skipping")
			continue
		}
		if err := svc.AddExchange(adapter); err != nil {
			log.Warn().Err(err).Str("exchange", name).Msg("exchange not added")
		}
	}

	// Opportunities for tokens with no MEXC contract are noise for the
	// downstream flow; filter them out when the MEXC adapter is around.
	if mexcAdapter != nil {
		finder.SetExistenceProbe(mexcAdapter.CheckTokenExists)
	}

	finder.RegisterAlertCallback(func(op spread.Opportunity) {
		logOpportunity(svc, op)
	})

	if cfg.RedisAddr != "" {
		pub, err := publisher.NewRedisPublisher(cfg.RedisAddr)
		if err != nil {
			log.Error().Err(err).Str("addr", cfg.RedisAddr).Msg("redis publisher disabled")
		} else {
			defer pub.Close()
			finder.RegisterAlertCallback(func(op spread.Opportunity) {
				if err := pub.PublishOpportunity(context.Background(), op); err != nil {
					log.Error().Err(err).Str("symbol", op.BaseToken).Msg("failed to publish opportunity")
				}
			})
			log.Info().Str("addr", cfg.RedisAddr).Msg("publishing opportunities to redis")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := svc.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start service")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutting down")
	svc.Stop()

	if err := metricsServer.Stop(); err != nil {
		log.Error().Err(err).Msg("error stopping metrics server")
	}
}

// logOpportunity is the default alert consumer: the spread plus each side's
// deposit/withdraw availability.
func logOpportunity(svc *service.Service, op spread.Opportunity) {
	buyDeposit, buyWithdraw := venueStatus(svc, op.BuyVenue, op.BaseToken)
	sellDeposit, sellWithdraw := venueStatus(svc, op.SellVenue, op.BaseToken)

	log.Warn().
		Str("symbol", op.BaseToken).
		Float64("spread_percent", op.SpreadPercent).
		Str("buy", string(op.BuyVenue)).
		Float64("buy_price", op.BuyPrice).
		Str("buy_deposit", openClosed(buyDeposit)).
		Str("buy_withdraw", openClosed(buyWithdraw)).
		Str("sell", string(op.SellVenue)).
		Float64("sell_price", op.SellPrice).
		Str("sell_deposit", openClosed(sellDeposit)).
		Str("sell_withdraw", openClosed(sellWithdraw)).
		Msg("spread opportunity")
}

func venueStatus(svc *service.Service, venue exchange.Venue, symbol string) (bool, bool) {
	adapter, ok := svc.Adapter(venue)
	if !ok {
		return false, false
	}
	return adapter.DepositWithdrawStatus(context.Background(), symbol)
}

func openClosed(open bool) string {
	if open {
		return "OPEN"
	}
	return "CLOSED"
}
