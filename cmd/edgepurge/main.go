package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.uber.org/automaxprocs/maxprocs"

	"edgepurge/internal/app"
	"edgepurge/internal/config"
)

func main() {
	var (
		configPath string
		uninstall  bool
	)
	flag.StringVar(&configPath, "config", getenvDefault("EDGEPURGE_CONFIG", "/edgepurge.yaml"), "path to edgepurge.yaml")
	flag.BoolVar(&uninstall, "uninstall", false, "remove the queue, settings and connectivity slots, then exit")
	flag.Parse()

	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	if err := config.LoadEnvFiles(".env", ".env.local"); err != nil {
		log.Fatal().Err(err).Msg("[main] load .env files")
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", configPath).Msg("[main] load config")
	}
	log = newLogger(cfg)

	if _, err := maxprocs.Set(); err != nil {
		log.Warn().Err(err).Msg("[main] setting up GOMAXPROCS value failed")
	} else {
		log.Info().Msgf("[main] GOMAXPROCS=%d", runtime.GOMAXPROCS(0))
	}

	svc, err := app.New(cfg, log, prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
	if err != nil {
		log.Fatal().Err(err).Msg("[main] init service")
	}

	if uninstall {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		err := svc.Uninstall(ctx)
		_ = svc.Shutdown(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("[main] uninstall")
		}
		log.Info().Msg("[main] uninstalled")
		return
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatal().Err(err).Str("addr", addr).Msg("[main] listen")
	}

	svc.Start()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Str("addr", addr).Str("site", cfg.Site.URL).Msg("[main] edgepurge listening")
		if err := svc.Serve(ln); err != nil && !errors.Is(err, net.ErrClosed) {
			log.Error().Err(err).Msg("[main] server error")
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeoutDur)
	defer cancel()
	if err := svc.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("[main] shutdown")
	}
	log.Info().Msg("[main] stopped")
}

func newLogger(cfg config.Config) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	if lvl, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	if cfg.Logging.Pretty {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func getenvDefault(name, def string) string {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	return v
}
