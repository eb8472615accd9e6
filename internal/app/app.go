// Package app wires configuration, storage, the availability checker and
// the Telegram transport into one process.
package app

import (
	"context"
	"sync"
	"time"

	"terminbot/internal/booking"
	"terminbot/internal/catalog"
	"terminbot/internal/config"
	"terminbot/internal/health"
	"terminbot/internal/metrics"
	"terminbot/internal/scheduler"
	"terminbot/internal/subscription"
	telegram "terminbot/internal/transport/telegram"
	"terminbot/pkg/logx"
)

type App struct {
	cfgm *config.Manager
	log  logx.Logger

	store  subscription.Store
	sched  *scheduler.Service
	bot    *telegram.Bot
	msrv   *metrics.Server
	health *health.Service

	cfgCh       chan *config.Config
	watchCancel context.CancelFunc
	wg          sync.WaitGroup
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	log, err := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	if err != nil {
		return nil, err
	}
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	store, err := subscription.Open(cfg.Database.Path, 5*time.Second, log.With(logx.String("comp", "store")))
	if err != nil {
		return nil, err
	}

	reg := catalog.Defaults()
	cat := catalog.New(reg, log.With(logx.String("comp", "catalog")))
	scraper := booking.NewHTTPScraper(log.With(logx.String("comp", "scraper")))
	probe := booking.NewProbe(reg, scraper, log.With(logx.String("comp", "probe")))

	schedCfg, err := mapSchedulerConfig(cfg)
	if err != nil {
		return nil, err
	}
	sched := scheduler.New(schedCfg, reg, store, probe, metrics.NewSink(), log.With(logx.String("comp", "scheduler")))

	hlth := health.New(cfg.Health.PingURL, log.With(logx.String("comp", "health")))
	sched.SetHealthPinger(hlth)

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	bot, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, cat, probe, sched, store, log.With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}
	sched.SetNotifier(bot)

	a := &App{
		cfgm:   cfgm,
		log:    log.With(logx.String("comp", "app")),
		store:  store,
		sched:  sched,
		bot:    bot,
		health: hlth,
	}
	if cfg.Metrics.Enabled {
		addr := cfg.Metrics.Listen
		if addr == "" {
			addr = ":9090"
		}
		a.msrv = metrics.NewServer(addr, log.With(logx.String("comp", "metrics")))
	}
	return a, nil
}

func mapSchedulerConfig(cfg *config.Config) (scheduler.Config, error) {
	minInterval, err := config.ParseDurationOrDefault("watch.min_interval", cfg.Watch.MinInterval, 15*time.Minute)
	if err != nil {
		return scheduler.Config{}, err
	}
	housekeeping, err := config.ParseDurationOrDefault("watch.housekeeping_interval", cfg.Watch.HousekeepingInterval, 30*time.Minute)
	if err != nil {
		return scheduler.Config{}, err
	}
	probeTimeout, err := config.ParseDurationOrDefault("watch.probe_timeout", cfg.Watch.ProbeTimeout, 2*time.Minute)
	if err != nil {
		return scheduler.Config{}, err
	}
	return scheduler.Config{
		MinInterval:  minInterval,
		Housekeeping: housekeeping,
		ProbeTimeout: probeTimeout,
	}, nil
}

func (a *App) Start(ctx context.Context) error {
	if a.msrv != nil {
		a.msrv.Start()
	}
	if err := a.sched.Start(ctx); err != nil {
		return err
	}
	a.bot.Start(ctx)

	// Config hot reload: only the watch limits are re-applied at runtime;
	// token or database changes need a restart.
	watchCtx, cancel := context.WithCancel(context.Background())
	a.watchCancel = cancel
	a.cfgCh = a.cfgm.Subscribe(1)
	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		if err := a.cfgm.Watch(watchCtx); err != nil {
			a.log.Warn("config watch stopped", logx.Err(err))
		}
	}()
	go func() {
		defer a.wg.Done()
		for cfg := range a.cfgCh {
			schedCfg, err := mapSchedulerConfig(cfg)
			if err != nil {
				a.log.Warn("config update rejected", logx.Err(err))
				continue
			}
			a.sched.Apply(schedCfg)
			a.log.Info("watch limits re-applied", logx.Duration("min_interval", schedCfg.MinInterval))
		}
	}()

	a.health.NotifyReady()
	a.log.Info("started")
	return nil
}

func (a *App) Stop(ctx context.Context) {
	a.bot.Stop()
	a.sched.Stop(ctx)
	if a.msrv != nil {
		a.msrv.Stop(ctx)
	}
	if a.watchCancel != nil {
		a.watchCancel()
	}
	if a.cfgCh != nil {
		a.cfgm.Unsubscribe(a.cfgCh)
		a.cfgCh = nil
	}
	a.wg.Wait()
	if err := a.store.Close(); err != nil {
		a.log.Warn("store close failed", logx.Err(err))
	}
	a.log.Info("stopped")
	_ = a.log.Close()
}
