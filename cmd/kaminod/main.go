// Command kaminod is Kamino's entrypoint. It runs in one of two modes,
// the same split techy's entrypoint uses: the default mode serves the
// GitHub webhook and job-query HTTP surface and enqueues events onto
// Redis; "worker" mode drains that queue and drives the dispatch core.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/kamino-ci/kamino/internal/breaker"
	"github.com/kamino-ci/kamino/internal/buildcontext"
	"github.com/kamino-ci/kamino/internal/config"
	"github.com/kamino-ci/kamino/internal/consumer"
	"github.com/kamino-ci/kamino/internal/dedupe"
	"github.com/kamino-ci/kamino/internal/dispatch"
	"github.com/kamino-ci/kamino/internal/execution"
	"github.com/kamino-ci/kamino/internal/githubhost"
	"github.com/kamino-ci/kamino/internal/intake"
	"github.com/kamino-ci/kamino/internal/job"
	"github.com/kamino-ci/kamino/internal/observer"
	"github.com/kamino-ci/kamino/internal/persistence"
	"github.com/kamino-ci/kamino/internal/ratelimit"
	"github.com/kamino-ci/kamino/internal/retryhttp"
)

func main() {
	setupLogging()
	log.Info().Msg("starting kamino")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	if len(os.Args) > 1 && os.Args[1] == "worker" {
		log.Info().Msg("starting kamino worker")
		if err := runWorker(cfg); err != nil {
			log.Fatal().Err(err).Msg("worker error")
		}
		return
	}

	if err := runServer(cfg); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}

// buildCore wires every adapter into a dispatch.Core: persistence, the
// GitHub hosting adapter decorated with rate limiting, circuit
// breaking and retry, build history, and the shell-script execution
// adapter. It also starts a cron schedule that evicts expired cached
// installation tokens off the GitHub client.
func buildCore(cfg *config.Config) (*dispatch.Core, *observer.Hub, *cron.Cron, error) {
	db, err := persistence.Connect(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, err
	}
	persist := persistence.NewAdapter(db)

	ghClient := githubhost.NewClient(cfg.GitHubAppID, cfg.GitHubPrivateKey)
	hosting := githubhost.NewAdapter(ghClient, cfg.GitHubOwner, cfg.GitHubRepo)

	tokenCron := cron.New()
	if _, err := tokenCron.AddFunc("@every 1m", ghClient.EvictExpiredTokens); err != nil {
		return nil, nil, nil, fmt.Errorf("schedule token eviction: %w", err)
	}
	tokenCron.Start()

	limiter := ratelimit.NewLimiter(cfg.RateLimitMaxTokens, time.Duration(cfg.RateLimitRefillSec)*time.Second)
	limited := ratelimit.Wrap(hosting, limiter)

	brk := breaker.New(breaker.DefaultConfig("github"))
	broken := breaker.Wrap(limited, brk)

	retrier := retryhttp.New(retryhttp.Config{
		MaxRetries:     cfg.RetryMaxAttempts,
		InitialDelay:   time.Duration(cfg.RetryInitialDelay) * time.Millisecond,
		MaxDelay:       time.Duration(cfg.RetryMaxDelay) * time.Millisecond,
		Multiplier:     2,
		JitterFraction: 0.2,
	})
	resilientHosting := retryhttp.Wrap(broken, retrier)

	history := buildcontext.NewProvider(persist)
	exec := execution.NewAdapter(cfg.BuildScript, cfg.WorkDir)
	hub := observer.NewHub()

	core := dispatch.New(dispatch.Config{
		NumWorkers:     cfg.NumWorkers,
		CancelOnUpdate: cfg.CancelOnUpdate,
		BaseURL:        cfg.BaseURL,
		WorkDir:        cfg.WorkDir,
		ReadyLabel:     cfg.ReadyLabel,
	}, resilientHosting, exec, persist, hub, history)

	return core, hub, tokenCron, nil
}

func asynqRedisOpt(cfg *config.Config) asynq.RedisConnOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
}

// runServer starts the HTTP process: webhook intake, the job REST
// surface, and the observer WebSocket endpoint. Webhook events are
// never handed to a dispatch.Core here, only enqueued onto Redis, so a
// slow build never blocks GitHub's webhook delivery.
func runServer(cfg *config.Config) error {
	redisOpt := asynqRedisOpt(cfg)
	asynqClient := asynq.NewClient(redisOpt)
	defer asynqClient.Close()

	enqueuer := intake.NewEnqueuer(asynqClient, cfg.AsynqQueue)
	seen := dedupe.New(dedupe.DefaultConfig())
	webhook := githubhost.NewWebhookHandler(cfg.GitHubWebhookSecret, enqueuer, seen)

	// The REST surface and observer hub need a real dispatch.Core for
	// querying in-memory queue/running state, so the server process
	// builds and starts one too; it serves the REST queries, restarts
	// and deletions and the retention sweep, while webhook event
	// processing always arrives via the worker process.
	core, hub, tokenCron, err := buildCore(cfg)
	if err != nil {
		return err
	}
	defer tokenCron.Stop()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	core.Start(ctx)

	router := intake.Router(webhook, core, hub)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	sweep := startRetentionSweep(cfg, core)
	defer sweep.Stop()

	done := make(chan struct{})
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info().Msg("kamino is shutting down")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		httpServer.SetKeepAlivesEnabled(false)
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("could not gracefully shut down HTTP server")
		}
		core.Shutdown(shutdownCtx)
		close(done)
	}()

	log.Info().
		Str("port", cfg.Port).
		Str("queue", cfg.AsynqQueue).
		Int("num_workers", cfg.NumWorkers).
		Msg("kamino server listening")

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	<-done
	log.Info().Msg("kamino server stopped")
	return nil
}

// runWorker starts the asynq consumer process: it dequeues webhook
// events and replays them against a live dispatch.Core.
func runWorker(cfg *config.Config) error {
	core, _, tokenCron, err := buildCore(cfg)
	if err != nil {
		return err
	}
	defer tokenCron.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	core.Start(ctx)

	sweep := startRetentionSweep(cfg, core)
	defer sweep.Stop()

	// asynq.Server.Run installs its own SIGINT/SIGTERM handling and
	// blocks until a graceful shutdown completes.
	server, mux := consumer.NewServer(asynqRedisOpt(cfg), cfg.AsynqQueue, cfg.AsynqConcurrency, core)
	if err := server.Run(mux); err != nil {
		return err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	core.Shutdown(shutdownCtx)
	return nil
}

// startRetentionSweep schedules periodic pruning of finished jobs so
// the job store doesn't grow without bound.
func startRetentionSweep(cfg *config.Config, core *dispatch.Core) *cron.Cron {
	c := cron.New()
	_, err := c.AddFunc(cfg.RetentionSweepCron, func() {
		before := time.Now().Add(-cfg.RetentionMaxAge).Unix()
		n, err := core.RemoveFinishedJobs(context.Background(), job.Query{Before: &before})
		if err != nil {
			log.Error().Err(err).Msg("retention sweep failed")
			return
		}
		log.Info().Int("removed", n).Msg("retention sweep completed")
	})
	if err != nil {
		log.Error().Err(err).Str("schedule", cfg.RetentionSweepCron).Msg("invalid retention sweep schedule")
	}
	c.Start()
	return c
}

func setupLogging() {
	logLevel := os.Getenv("LOG_LEVEL")
	switch logLevel {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if os.Getenv("LOG_FORMAT") != "json" {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		})
	}
}
