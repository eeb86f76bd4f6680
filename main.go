package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"arbflow/config"
	"arbflow/internal/exchange"
	"arbflow/internal/exchange/binance"
	"arbflow/internal/exchange/coinbase"
	"arbflow/internal/market"
	"arbflow/internal/metrics"
	"arbflow/internal/state"
	"arbflow/internal/ws"
	"arbflow/logger"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service": cfg.Arbflow.Name,
		"version": cfg.Arbflow.Version,
	}).Info("starting arbflow")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if strings.ToLower(cfg.Logging.Level) == "report" {
		logger.StartReport(ctx, log, 30*time.Second)
	}

	prices := state.New(cfg.State.MaxAge)

	// One feed instance per (exchange, pair) subscription.
	var feeds []exchange.Feed
	var pairs []string
	if cfg.Source.Binance.Enabled {
		for _, pair := range cfg.Source.Binance.Pairs {
			feeds = append(feeds, binance.New(cfg.Source.Binance, cfg.Feed))
			pairs = append(pairs, pair)
		}
	}
	if cfg.Source.Coinbase.Enabled {
		for _, pair := range cfg.Source.Coinbase.Pairs {
			feeds = append(feeds, coinbase.New(cfg.Source.Coinbase, cfg.Feed))
			pairs = append(pairs, pair)
		}
	}

	if len(feeds) == 0 {
		log.WithComponent("main").Error("no exchange feeds enabled")
		os.Exit(1)
	}

	var wg sync.WaitGroup

	for i, feed := range feeds {
		pair := pairs[i]
		sub := feed.Subscribe()

		wg.Add(1)
		go func(feed exchange.Feed, pair string, sub *ws.Subscription) {
			defer wg.Done()
			runConsumer(ctx, log, prices, feed.ID(), sub)
		}(feed, pair, sub)

		if err := feed.SubscribeTicker(ctx, pair); err != nil {
			log.WithError(err).WithFields(logger.Fields{
				"exchange": feed.Name(),
				"pair":     pair,
			}).Error("failed to subscribe to ticker feed")
			os.Exit(1)
		}
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		runSweeper(ctx, log, prices, cfg.State.SweepInterval)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		runSpreadMonitor(ctx, log, prices, cfg, uniquePairs(pairs))
	}()

	if cfg.Metrics.CloudWatch.Enabled {
		cw := cfg.Metrics.CloudWatch
		publisher, err := metrics.NewCloudWatchPublisher(ctx, cw.Region, cw.Namespace, cw.Interval)
		if err != nil {
			log.WithError(err).Error("failed to create cloudwatch publisher")
			os.Exit(1)
		}
		publisher.Start(ctx)
	}

	log.Info("all components started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")

	log.Info("starting graceful shutdown")
	cancel()

	for _, feed := range feeds {
		if err := feed.Disconnect(); err != nil {
			log.WithError(err).WithFields(logger.Fields{"exchange": feed.Name()}).Warn("feed disconnect failed")
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("graceful shutdown completed")
	case <-time.After(30 * time.Second):
		log.Warn("graceful shutdown timeout exceeded")
	}

	log.Info("arbflow stopped")
}

// runConsumer drains one feed's broadcast stream into the shared price
// state, stamping each update with a per-feed sequence number.
func runConsumer(ctx context.Context, log *logger.Log, prices *state.PriceState, id market.ExchangeID, sub *ws.Subscription) {
	defer sub.Close()
	var sequence uint64
	for {
		select {
		case <-ctx.Done():
			return
		case price, ok := <-sub.C():
			if !ok {
				return
			}
			sequence++
			prices.UpdatePrice(id, price.Pair, price, sequence)
			log.WithComponent("consumer").WithFields(logger.Fields{
				"exchange": id.String(),
				"pair":     price.Pair,
				"bid":      price.Bid.String(),
				"ask":      price.Ask.String(),
			}).Debug("price updated")
		}
	}
}

// runSweeper periodically evicts stale prices so dead feeds do not pin
// entries in the cache forever.
func runSweeper(ctx context.Context, log *logger.Log, prices *state.PriceState, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := prices.RemoveStalePrices(); removed > 0 {
				metrics.AddPricesSwept(int64(removed))
				log.WithComponent("sweeper").WithFields(logger.Fields{"removed": removed}).Info("evicted stale prices")
			}
		}
	}
}

// runSpreadMonitor logs the cross-exchange spread for every pair both
// exchanges serve. Pairs with a missing or stale side are skipped silently;
// that is the normal condition during startup and outages.
func runSpreadMonitor(ctx context.Context, log *logger.Log, prices *state.PriceState, cfg *config.Config, pairs []string) {
	interval := cfg.Feed.SpreadInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	slog := log.WithComponent("spread_monitor")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, pair := range pairs {
				pct, ok := prices.GetSpreadPercentage(market.ExchangeBinance, market.ExchangeCoinbase, pair)
				if !ok {
					continue
				}
				spread, _ := prices.GetSpread(market.ExchangeBinance, market.ExchangeCoinbase, pair)
				slog.WithFields(logger.Fields{
					"pair":           pair,
					"spread":         spread.String(),
					"spread_percent": pct.StringFixed(4),
				}).Info("cross-exchange spread")
			}
		}
	}
}

func uniquePairs(pairs []string) []string {
	seen := make(map[string]struct{}, len(pairs))
	out := make([]string, 0, len(pairs))
	for _, p := range pairs {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
