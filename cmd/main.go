package main

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Vovarama1992/live-support-chat/internal/ai"
	"github.com/Vovarama1992/live-support-chat/internal/auth"
	"github.com/Vovarama1992/live-support-chat/internal/chat"
	"github.com/Vovarama1992/live-support-chat/internal/config"
	"github.com/Vovarama1992/live-support-chat/internal/ws"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	setupLogging(cfg)

	if cfg.DatabaseURL == "" {
		log.Fatal().Msg("DATABASE_URL is not set")
	}
	if cfg.SessionSecret == "" {
		log.Fatal().Msg("SESSION_SECRET is not set")
	}

	// --- DB ---
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("db open")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := db.PingContext(ctx); err != nil {
		cancel()
		log.Fatal().Err(err).Msg("db ping")
	}
	if err := chat.EnsureSchema(ctx, db); err != nil {
		cancel()
		log.Fatal().Err(err).Msg("chat schema")
	}
	if err := auth.EnsureSchema(ctx, db); err != nil {
		cancel()
		log.Fatal().Err(err).Msg("auth schema")
	}
	cancel()

	// --- Router ---
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.CORSOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// --- Module wiring ---
	hub := ws.NewHub()

	var responder ai.Responder
	if cfg.AutoResponseMode == "openai" {
		client, err := ai.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel)
		if err != nil {
			log.Fatal().Err(err).Msg("openai responder")
		}
		responder = client
	}

	chatRepo := chat.NewRepo(db)
	chatService := chat.NewService(chatRepo, hub, responder, chat.Options{
		WelcomeMessage:      cfg.WelcomeMessage,
		AutoResponseMessage: cfg.AutoResponseMessage,
		AutoResponseDelay:   cfg.AutoResponseDelay,
	})
	defer chatService.Close()

	authRepo := auth.NewRepo(db)
	authService := auth.NewService(authRepo, cfg.SessionSecret, cfg.BcryptCost, cfg.SessionTTL)
	authHandler := auth.NewHandler(authService, chatService, cfg.SecureCookies)
	wsHandler := ws.NewHandler(hub, chatService, authService, cfg.CORSOrigin)

	auth.RegisterRoutes(r, authHandler)
	ws.RegisterRoutes(r, wsHandler)

	// --- health & metrics ---
	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})
	r.Handle("/metrics", promhttp.Handler())

	// --- Run ---
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := hub.Run(rootCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("hub stopped")
		}
	}()

	addr := net.JoinHostPort(cfg.Host, cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		log.Info().Str("addr", addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server error")
			stop()
		}
	}()

	<-rootCtx.Done()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
	log.Info().Msg("bye")
}

func setupLogging(cfg config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if cfg.LogFormat == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}
