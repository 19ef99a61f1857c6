// Package app wires chimebot together: config, logging, storage, the
// Telegram adapter, the delivery sink and the schedule engine.
package app

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"chimebot/internal/config"
	"chimebot/internal/notify"
	pprofsvc "chimebot/internal/observability/pprof"
	"chimebot/internal/schedule"
	"chimebot/internal/storage"
	kit "chimebot/internal/transport"
	telegram "chimebot/internal/transport/telegram"
	logx "chimebot/pkg/logx"
)

type App struct {
	cfgm *config.Manager

	logs *logx.Service
	log  logx.Logger

	store   storage.Store
	adapter kit.Adapter
	sink    *notify.Service
	engine  *schedule.Engine
	pprof   *pprofsvc.Service

	// maintenance runs the retention prune on a fixed cron schedule.
	maintenance *cron.Cron

	mu      sync.Mutex
	started bool
	cfgSub  chan *config.Config
	watchWG sync.WaitGroup
	stopFn  context.CancelFunc
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, config.DefaultPollTimeout)
	if err != nil {
		return nil, err
	}
	ad, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}

	busyTimeout, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return nil, err
	}
	st, err := storage.Open(storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busyTimeout,
	}, log.With(logx.String("comp", "storage")))
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}

	rate := cfg.Notify.RatePerSec
	if rate <= 0 {
		rate = config.DefaultNotifyRate
	}
	retry := cfg.Notify.RetryMax
	if retry <= 0 {
		retry = config.DefaultNotifyRetryMax
	}
	sink := notify.New(notify.Config{RatePerSec: rate, RetryMax: retry}, ad, log.With(logx.String("comp", "notify")))

	maxChunk, err := config.ParseDurationField("scheduler.max_timer_chunk", cfg.Scheduler.MaxTimerChunk)
	if err != nil {
		return nil, err
	}
	eng := schedule.NewEngine(st, sink.Deliver, schedule.Options{
		Logger:        log.With(logx.String("comp", "schedule")),
		MaxTimerChunk: maxChunk,
	})

	pp := pprofsvc.New(pprofsvc.Config{
		Enabled: cfg.Debug.Pprof.Enabled,
		Addr:    cfg.Debug.Pprof.Addr,
		Token:   cfg.Debug.Pprof.Token,
	}, log.With(logx.String("comp", "pprof")))

	return &App{
		cfgm:    cfgm,
		logs:    logSvc,
		log:     log,
		store:   st,
		adapter: ad,
		sink:    sink,
		engine:  eng,
		pprof:   pp,
	}, nil
}

// Engine exposes the scheduler API to callers embedding the app.
func (a *App) Engine() *schedule.Engine { return a.engine }

func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	a.stopFn = cancel

	if err := a.engine.Start(runCtx); err != nil {
		cancel()
		return err
	}

	if err := a.startRetentionLocked(); err != nil {
		a.engine.Stop()
		cancel()
		return err
	}

	if err := a.pprof.Start(); err != nil {
		a.log.Warn("pprof start failed", logx.Err(err))
	}

	// Live config reload: only logging applies in place; everything else
	// needs a restart and says so.
	a.cfgSub = a.cfgm.Subscribe(1)
	sub := a.cfgSub
	a.watchWG.Add(2)
	go func() {
		defer a.watchWG.Done()
		_ = a.cfgm.Watch(runCtx)
	}()
	go func() {
		defer a.watchWG.Done()
		for {
			select {
			case <-runCtx.Done():
				return
			case cfg, ok := <-sub:
				if !ok || cfg == nil {
					return
				}
				a.applyConfig(cfg)
			}
		}
	}()

	a.started = true
	a.log.Info("chimebot started")
	return nil
}

func (a *App) startRetentionLocked() error {
	rc := a.cfgm.Get().Scheduler.Retention
	if !rc.Enabled {
		return nil
	}
	spec := rc.Schedule
	if spec == "" {
		spec = config.DefaultRetentionCron
	}
	maxAge, err := config.ParseDurationOrDefault("scheduler.retention.max_age", rc.MaxAge, config.DefaultRetentionAge)
	if err != nil {
		return err
	}

	c := cron.New()
	_, err = c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		n, err := a.store.PruneInactive(ctx, maxAge)
		if err != nil {
			a.log.Warn("retention prune failed", logx.Err(err))
			return
		}
		if n > 0 {
			a.log.Info("pruned inactive entries", logx.Int64("removed", n))
		}
	})
	if err != nil {
		return err
	}
	c.Start()
	a.maintenance = c
	a.log.Info("retention enabled", logx.String("schedule", spec), logx.Duration("max_age", maxAge))
	return nil
}

func (a *App) applyConfig(cfg *config.Config) {
	a.logs.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	a.pprof.Reconfigure(ctx, pprofsvc.Config{
		Enabled: cfg.Debug.Pprof.Enabled,
		Addr:    cfg.Debug.Pprof.Addr,
		Token:   cfg.Debug.Pprof.Token,
	})
	a.log.Info("config applied (storage/telegram changes need a restart)")
}

func (a *App) Stop(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.started {
		return nil
	}
	a.started = false

	if a.maintenance != nil {
		<-a.maintenance.Stop().Done()
		a.maintenance = nil
	}
	a.pprof.Stop(ctx)
	a.engine.Stop()
	if a.stopFn != nil {
		a.stopFn()
		a.stopFn = nil
	}
	a.watchWG.Wait()
	if a.cfgSub != nil {
		a.cfgm.Unsubscribe(a.cfgSub)
		a.cfgSub = nil
	}

	_ = a.adapter.Stop(ctx)
	if err := a.store.Close(); err != nil {
		a.log.Warn("storage close failed", logx.Err(err))
	}
	a.log.Info("chimebot stopped")
	_ = a.logs.Close()
	return nil
}
