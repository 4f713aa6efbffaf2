// Package app constructs every component once, wires them explicitly and
// owns their lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"edgepurge/internal/admin"
	"edgepurge/internal/cdn"
	"edgepurge/internal/config"
	"edgepurge/internal/content"
	"edgepurge/internal/metrics"
	"edgepurge/internal/orchestrator"
	"edgepurge/internal/queue"
	"edgepurge/internal/resolver"
	"edgepurge/internal/scheduler"
	"edgepurge/internal/settings"
	"edgepurge/internal/store"
)

type App struct {
	cfg config.Config
	log zerolog.Logger

	store    store.Store
	stats    *statsCollector
	client   *cdn.Client
	settings *settings.Manager
	queue    *queue.Queue
	timer    *scheduler.CronTimer
	drainer  *scheduler.Drainer
	orch     *orchestrator.Orchestrator
	admin    *admin.Server

	baseLevel zerolog.Level

	stopCh    chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New builds the service. reg receives the Prometheus collectors and gatherer
// backs /metrics; pass a fresh registry for both in tests.
func New(cfg config.Config, log zerolog.Logger, reg prometheus.Registerer, gatherer prometheus.Gatherer) (*App, error) {
	st, err := store.Open(store.Options{
		Driver:        cfg.Storage.Driver,
		Path:          cfg.Storage.Path,
		RedisAddr:     cfg.Storage.Redis.Addr,
		RedisPassword: cfg.Storage.Redis.Password,
		RedisDB:       cfg.Storage.Redis.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	m, err := metrics.New(reg)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	a := &App{
		cfg:       cfg,
		log:       log,
		store:     st,
		stats:     newStatsCollector(),
		baseLevel: level,
		stopCh:    make(chan struct{}),
	}
	obs := observer{m: m, stats: a.stats}

	a.client = cdn.NewClient(cdn.Config{
		BaseURL:         cfg.CDN.BaseURL,
		ZoneID:          cfg.CDN.ZoneID,
		APIToken:        cfg.CDN.APIToken,
		Timeout:         cfg.CDN.TimeoutDur,
		CheckTimeout:    cfg.CDN.CheckTimeoutDur,
		MaxFiles:        cfg.CDN.MaxFilesPerRequest,
		MaxPrefixes:     cfg.CDN.MaxPrefixesPerRequest,
		MaxResponseBody: cfg.CDN.MaxResponseBodyInt,
	}, component(log, "cdn"), obs)

	a.settings = settings.NewManager(st, settings.Settings{
		ZoneID:    cfg.CDN.ZoneID,
		APIToken:  cfg.CDN.APIToken,
		BatchSize: cfg.Scheduler.BatchSize,
		Debug:     cfg.Logging.Debug,
	}, component(log, "settings"))
	a.settings.OnChange(a.applySettings)
	if _, err := a.settings.Load(context.Background()); err != nil {
		_ = st.Close()
		return nil, err
	}

	a.queue = queue.New(st, queue.Options{
		MaxItems: *cfg.Queue.MaxItems,
		Logger:   component(log, "queue"),
		Observer: obs,
	})

	a.timer = scheduler.NewCronTimer(component(log, "timer"))
	a.drainer = scheduler.New(a.queue, a.client, a.timer, scheduler.Options{
		Interval:    cfg.Scheduler.IntervalDur,
		BatchSize:   func() int { return a.settings.Current().BatchSize },
		MaxPrefixes: a.client.MaxPrefixes(),
		RunTimeout:  cfg.Scheduler.RunTimeoutDur,
		Logger:      component(log, "scheduler"),
		Observer:    obs,
	})

	a.orch = orchestrator.New(
		resolver.New(content.NewSite(cfg.Site)),
		a.client,
		a.queue,
		orchestrator.Options{
			RequeueFailedImmediate: *cfg.Orchestrator.RequeueFailedImmediate,
			PurgeTimeout:           cfg.Orchestrator.PurgeTimeoutDur,
			Logger:                 component(log, "orchestrator"),
			Observer:               obs,
		},
	)

	a.admin = admin.New(admin.Deps{
		Settings:     a.settings,
		Store:        st,
		Queue:        a.queue,
		Drainer:      a.drainer,
		Orchestrator: a.orch,
		Zone:         a.client,
		Gatherer:     gatherer,
		Token:        cfg.Admin.Token,
		DedupSize:    cfg.Events.DedupSize,
		DedupTTL:     cfg.Events.DedupTTLDur,
		ReadTimeout:  cfg.Server.ReadTimeoutDur,
		WriteTimeout: cfg.Server.WriteTimeoutDur,
		Logger:       component(log, "admin"),
	})

	// Seed the gauge so /metrics reflects a queue persisted by a previous run.
	if n, err := a.queue.Size(context.Background()); err == nil {
		obs.QueueSize(n)
	}
	return a, nil
}

func component(log zerolog.Logger, name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

func (a *App) applySettings(s settings.Settings) {
	a.client.SetCredentials(s.ZoneID, s.APIToken)
	if s.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(a.baseLevel)
	}
	if !s.Configured() {
		a.log.Warn().Msg("[app] zone id or api token missing, purging is disabled until configured")
	}
}

// Start registers the drain hook and the stats loop.
func (a *App) Start() {
	a.drainer.Schedule()

	if every := a.cfg.Logging.LogStatsDur; every > 0 {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.statsLoop(every)
		}()
	}
}

// Serve blocks serving the admin surface on ln.
func (a *App) Serve(ln net.Listener) error {
	return a.admin.Serve(ln)
}

// Shutdown stops the server and background work, then closes the store.
func (a *App) Shutdown(ctx context.Context) error {
	var err error
	a.closeOnce.Do(func() {
		err = a.admin.Shutdown(ctx)
		a.drainer.Unschedule()
		a.timer.Close()
		close(a.stopCh)
		a.wg.Wait()
		err = errors.Join(err, a.store.Close())
	})
	return err
}

// Uninstall removes the drain hook and every persisted slot.
func (a *App) Uninstall(ctx context.Context) error {
	a.drainer.Unschedule()
	if err := a.queue.Clear(ctx); err != nil {
		return err
	}
	if err := a.settings.Reset(ctx); err != nil {
		return err
	}
	for _, k := range store.Keys {
		if err := a.store.Delete(ctx, k); err != nil {
			return fmt.Errorf("uninstall: delete %s: %w", k, err)
		}
	}
	a.log.Info().Strs("keys", store.Keys).Msg("[app] persisted state removed")
	return nil
}

func (a *App) statsLoop(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-a.stopCh:
			return
		case <-t.C:
			a.logStats()
		}
	}
}

func (a *App) logStats() {
	ss := a.stats.Snapshot()
	ev := a.log.Info().
		Int64("queue", ss.QueueSize).
		Uint64("events", ss.Events).
		Uint64("skipped", ss.Skipped).
		Uint64("immediate_failures", ss.ImmediateFails).
		Uint64("drains", ss.Drains).
		Uint64("drain_failures", ss.DrainFailures).
		Uint64("dropped", ss.Dropped).
		Uint64("requests", ss.PurgeRequests).
		Uint64("request_failures", ss.PurgeFailures).
		Str("latency", fmt.Sprintf("%s/%s/%s", ss.MinPurge, ss.AvgPurge, ss.MaxPurge))
	if rss, ok := processRSSBytes(); ok {
		ev = ev.Str("rss", formatBytes(rss))
	}
	ev.Msg("[app] stats")
}
