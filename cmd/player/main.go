package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	router "github.com/dkeye/livesignal/internal/adapters/http"
	"github.com/dkeye/livesignal/internal/adapters/rtc"
	sig "github.com/dkeye/livesignal/internal/adapters/signal"
	"github.com/dkeye/livesignal/internal/app"
	"github.com/dkeye/livesignal/internal/app/orch"
	"github.com/dkeye/livesignal/internal/config"
	"github.com/dkeye/livesignal/internal/loop"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	flags := config.Flags()
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		os.Exit(2)
	}
	cfg, err := config.Load(flags)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	} else {
		log.Warn().Str("level", cfg.LogLevel).Msg("unknown log level, keeping info")
	}

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("player failed")
	}
	log.Info().Msg("Player exited gracefully")
}

func run(ctx context.Context, cfg *config.Config) error {
	var recorder *rtc.Recorder
	if cfg.Record.Enabled {
		var err error
		if recorder, err = rtc.NewRecorder(cfg.Record.Dir); err != nil {
			return err
		}
	}
	media, err := rtc.NewFactory(recorder)
	if err != nil {
		return err
	}

	ocfg := orch.Config{Target: cfg.Target, Settings: cfg.Session}
	var stats *app.FileStats
	if cfg.Stats.Enabled {
		if stats, err = app.NewFileStats(cfg.Stats.Dir); err != nil {
			return err
		}
		defer stats.Close()
		ocfg.Stats = stats
		ocfg.StatsInterval = cfg.Stats.Interval
	}

	// The loop outlives ctx so that shutdown can still run on it.
	l := loop.New()
	loopCtx, stopLoop := context.WithCancel(context.Background())
	go l.Run(loopCtx)
	defer func() {
		stopLoop()
		<-l.Done()
	}()

	board := router.NewBoard(200)
	o := orch.New(l, media, board, ocfg)

	for _, s := range cfg.Servers {
		conn := sig.New(l, sig.Config{Server: s.Address, User: s.User, Pass: s.Pass})
		if err := o.AddConnection(loopCtx, conn); err != nil {
			log.Error().Err(err).Str("server", s.Address).Msg("add connection")
		}
	}

	var srv *http.Server
	if cfg.Status.Enabled {
		srv = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Status.Port),
			Handler: router.SetupRouter(cfg.Status, o, board),
		}
		go func() {
			log.Info().Str("addr", srv.Addr).Msg("status server started")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("server error")
			}
		}()
	}

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}
	}
	return o.Shutdown(shutdownCtx)
}
