package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"

	router "github.com/dkeye/ucode/internal/adapters/http"
	"github.com/dkeye/ucode/internal/adapters/rtc"
	sig "github.com/dkeye/ucode/internal/adapters/signal"
	"github.com/dkeye/ucode/internal/app"
	"github.com/dkeye/ucode/internal/app/orch"
	"github.com/dkeye/ucode/internal/config"
	"github.com/dkeye/ucode/internal/events"
	"github.com/dkeye/ucode/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogger(cfg.Log)

	sessions, closeStore, err := store.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("failed to open session store")
	}

	ice, err := rtc.Configuration(cfg.RTC.ICEServers)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid rtc config")
	}

	var wg conc.WaitGroup
	bgCtx, stopBackground := context.WithCancel(context.Background())

	var publisher events.Publisher = events.NopPublisher{}
	var amqpPub *events.AMQPPublisher
	if cfg.AMQP.URL != "" {
		amqpPub, err = events.NewAMQPPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange, cfg.AMQP.BufferSize)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to broker")
		}
		publisher = amqpPub
		wg.Go(func() { amqpPub.Run(bgCtx) })
	}

	o := &orch.Orchestrator{
		Registry:           app.NewRegistry(),
		Rooms:              app.NewRoomManager(),
		Store:              sessions,
		Calls:              app.NewCallTracker(),
		Policy:             app.SimplePolicy{},
		Events:             publisher,
		SerializeSessions:  cfg.Relay.SerializeSessions,
		AnnounceDepartures: cfg.Relay.AnnounceDepartures,
	}

	ctl := &sig.SignalWSController{
		Orch:       o,
		Limiter:    sig.NewRoomRateLimiter(cfg.Relay.JoinRate.Limit, cfg.Relay.JoinRate.Interval),
		SendBuffer: cfg.Relay.SendBuffer,
		ReadLimit:  cfg.ReadLimit,
		PingPeriod: cfg.PingPeriod,
	}
	if cfg.RTC.ValidateSDP {
		ctl.Validator = rtc.Validator{}
	}

	r := router.SetupRouter(ctx, cfg, ctl, ice)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	wg.Go(func() {
		log.Info().Str("addr", addr).Str("store", cfg.Store.Driver).Msg("ucode server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
			cancel()
		}
	})

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	stopBackground()
	wg.Wait()

	if amqpPub != nil {
		if err := amqpPub.Close(); err != nil {
			log.Error().Err(err).Msg("close event publisher")
		}
	}
	if err := closeStore(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("close session store")
	}
	log.Info().Msg("Server exited gracefully")
}

func setupLogger(cfg config.LogConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if !cfg.Console {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}
