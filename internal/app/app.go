// Package app wires the bot together: configuration, logging, storage,
// the platform adapter, the broadcast engine, and maintenance jobs.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/robfig/cron/v3"

	"premiumbot/internal/bot"
	"premiumbot/internal/broadcast"
	"premiumbot/internal/config"
	"premiumbot/internal/invite"
	"premiumbot/internal/session"
	"premiumbot/internal/storage"
	kit "premiumbot/internal/transport"
	"premiumbot/internal/transport/telegram"
	"premiumbot/pkg/logx"
)

type App struct {
	cfg *config.Config
	tun *config.Manager

	logs *logx.Service
	log  logx.Logger

	store   storage.Store
	adapter *telegram.Adapter
	engine  *broadcast.Engine
	router  *bot.Router
	cron    *cron.Cron

	updates chan kit.Update

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewApp(tunablesPath string) (*App, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}

	tun := config.NewManager(tunablesPath)
	tun.SetValidator(validateTunables)
	t, err := tun.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logConfig(t))
	log = log.With(logx.String("comp", "app"))
	tun.SetLogger(log.With(logx.String("comp", "config")))

	store, err := storage.Open(storage.Config{Path: cfg.DatabasePath}, log.With(logx.String("comp", "storage")))
	if err != nil {
		logSvc.Close()
		return nil, err
	}

	pollTimeout, err := config.ParseDurationField("telegram.poll_timeout", t.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		store.Close()
		logSvc.Close()
		return nil, err
	}
	adapter, err := telegram.New(telegram.Config{
		Token:       cfg.Token,
		PollTimeout: pollTimeout,
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		store.Close()
		logSvc.Close()
		return nil, err
	}

	engine := broadcast.New(broadcast.Config{
		Workers:    t.Broadcast.Workers,
		RatePerSec: t.Broadcast.RatePerSec,
	}, adapter, log.With(logx.String("comp", "broadcast")))

	inviter := invite.New(adapter, store, log.With(logx.String("comp", "invite")))
	router := bot.NewRouter(adapter, store, session.NewManager(), engine, inviter, cfg.AdminID, log.With(logx.String("comp", "bot")))

	return &App{
		cfg:     cfg,
		tun:     tun,
		logs:    logSvc,
		log:     log,
		store:   store,
		adapter: adapter,
		engine:  engine,
		router:  router,
		cron:    cron.New(),
		updates: make(chan kit.Update, 256),
	}, nil
}

func logConfig(t *config.Tunables) logx.Config {
	return logx.Config{
		Level:   t.Logging.Level,
		Console: t.Logging.ConsoleEnabled(),
		File: logx.FileConfig{
			Enabled: t.Logging.File.Enabled,
			Path:    t.Logging.File.Path,
		},
	}
}

func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if err := a.adapter.Start(runCtx, a.updates); err != nil {
		cancel()
		return fmt.Errorf("starting telegram adapter: %w", err)
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		_ = a.router.DispatchLoop(runCtx, a.updates)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.applyTunables(runCtx)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.tun.Watch(runCtx); err != nil && runCtx.Err() == nil {
			a.log.Error("tunables watcher stopped", logx.Err(err))
		}
	}()

	if err := a.scheduleMaintenance(); err != nil {
		cancel()
		return err
	}
	a.cron.Start()

	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.log.Warn("sd_notify failed", logx.Err(err))
	} else if sent {
		a.log.Debug("sd_notify ready sent")
	}

	a.log.Info("bot started", logx.Int64("admin", a.cfg.AdminID))
	return nil
}

// applyTunables pushes hot-reloaded settings into the running services.
// The poll timeout is fixed at adapter construction; a change is noted
// but takes effect on the next restart.
func (a *App) applyTunables(ctx context.Context) {
	ch := a.tun.Subscribe(1)
	defer a.tun.Unsubscribe(ch)
	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-ch:
			if !ok {
				return
			}
			a.logs.Apply(logConfig(t))
			a.engine.Apply(broadcast.Config{
				Workers:    t.Broadcast.Workers,
				RatePerSec: t.Broadcast.RatePerSec,
			})
			a.log.Info("tunables applied",
				logx.String("log_level", t.Logging.Level),
				logx.Int("broadcast_workers", t.Broadcast.Workers),
				logx.Int("broadcast_rate", t.Broadcast.RatePerSec),
			)
		}
	}
}

func (a *App) Stop(ctx context.Context) error {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	cronCtx := a.cron.Stop()
	select {
	case <-cronCtx.Done():
	case <-ctx.Done():
	}

	if a.cancel != nil {
		a.cancel()
	}
	if err := a.adapter.Stop(ctx); err != nil {
		a.log.Warn("adapter stop", logx.Err(err))
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		a.log.Warn("shutdown timed out waiting for workers")
	}

	if err := a.store.Close(); err != nil {
		a.log.Warn("closing store", logx.Err(err))
	}
	a.log.Info("bot stopped")
	return a.logs.Close()
}
