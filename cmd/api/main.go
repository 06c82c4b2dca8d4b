package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"goplanit/internal/adapters/amadeus"
	"goplanit/internal/adapters/gemini"
	server "goplanit/internal/adapters/http_server"
	"goplanit/internal/adapters/mailer"
	"goplanit/internal/adapters/observability"
	redisad "goplanit/internal/adapters/redis"
	"goplanit/internal/app"
	"goplanit/internal/domain"
	"goplanit/internal/pipeline"
	"goplanit/internal/planner"
	"goplanit/internal/shared"
	mongorepo "goplanit/internal/storage/mongo"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	reg := observability.InitRegistry()
	observability.Serve(cfg.MetricsAddr, reg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// db
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	mongoClient, err := mongorepo.Connect(dialCtx, cfg.MongoURI)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("mongo connect failed")
	}
	defer func() { _ = mongoClient.Disconnect(context.Background()) }()
	log.Info().Msg("database connection ok")

	// deps
	repo := mongorepo.New(mongoClient.Database(cfg.MongoDB))
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	status := app.NewStatusWriter(cache, cfg.StatusTTL)

	travel, err := amadeus.New(cfg.AmadeusBase, cfg.AmadeusID, cfg.AmadeusSecret, cfg.AmadeusRPS, cache, amadeus.TTLs{
		City:        int(cfg.CityTTL.Seconds()),
		Activities:  int(cfg.ActivitiesTTL.Seconds()),
		TripPurpose: int(cfg.TripPurposeTTL.Seconds()),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize Amadeus client")
	}
	llm, err := gemini.New(cfg.GeminiBase, cfg.GeminiKey)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize Gemini client")
	}

	var mail domain.Mailer = mailer.Noop{}
	if cfg.SMTPHost != "" {
		mail = mailer.New(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.MailFrom)
	}

	gen := planner.New(llm, travel, cache, int(cfg.ItineraryTTL.Seconds()))
	runner := pipeline.NewRunner(repo, gen, mail, status, cfg.FrontendURL)
	dispatcher := pipeline.NewDispatcher(runner, cfg.PipelineWorkers, cfg.PipelineRetries)
	dispatcher.Start(ctx)

	intake := app.NewIntakeService(repo, dispatcher)
	q := app.NewQueryService(repo, status)

	// http
	srv := server.New(cfg.CORSOrigin)
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{Intake: intake, Q: q})

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux()}
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
	dispatcher.Wait()
}
