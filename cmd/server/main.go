// Local development server. Runs the same chat pipeline as the Lambda
// entrypoint over plain HTTP with a SQLite session store, so the agent can
// be exercised without any AWS infrastructure. Secrets come from
// environment variables instead of Parameter Store.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"asha-agent/handler"
	"asha-agent/internal/domain"
	"asha-agent/internal/integrations/gemini"
	"asha-agent/internal/integrations/paramstore"
	"asha-agent/internal/integrations/summarize"
	"asha-agent/internal/repository"
	"asha-agent/internal/tools"
	"asha-agent/internal/usecase"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	port := envStr("PORT", "8080")
	dbPath := envStr("DB_PATH", "data/asha.db")
	geminiModel := envStr("GEMINI_MODEL", "gemini-1.5-pro")
	paramPrefix := envStr("PARAM_PREFIX", "/asha")
	maxMessageLen := envInt("MAX_MESSAGE_LENGTH", 1000)

	slog.Info("Starting server", "port", port, "db_path", dbPath, "model", geminiModel)

	store, err := repository.NewSQLite(dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			slog.Error("Failed to close database", "error", closeErr)
		}
	}()

	if err := store.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	if err := seedDevProfile(context.Background(), store); err != nil {
		slog.Error("Failed to seed development profile", "error", err)
		os.Exit(1)
	}

	// Secrets resolve from the environment locally: /asha/gemini-api-key
	// becomes ASHA_GEMINI_API_KEY and so on.
	secrets := paramstore.Env{}

	registry, err := buildRegistry(secrets, paramPrefix)
	if err != nil {
		slog.Error("Failed to build tool registry", "error", err)
		os.Exit(1)
	}

	modelClient, err := gemini.NewClient(secrets, paramPrefix, geminiModel, registry.Specs())
	if err != nil {
		slog.Error("Failed to create Gemini client", "error", err)
		os.Exit(1)
	}
	summarizer, err := summarize.NewClient(secrets, paramPrefix)
	if err != nil {
		slog.Error("Failed to create summarization client", "error", err)
		os.Exit(1)
	}

	chatService, err := usecase.NewChatService(store, store, modelClient, summarizer, registry, maxMessageLen)
	if err != nil {
		slog.Error("Failed to create chat service", "error", err)
		os.Exit(1)
	}

	chatHandler, err := handler.NewHTTP(chatService)
	if err != nil {
		slog.Error("Failed to create chat handler", "error", err)
		os.Exit(1)
	}

	// Setup router.
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))

	r.Post("/chat", chatHandler.ServeHTTP)

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}

// seedDevProfile registers a local user so requests carrying the matching
// cookie pass the known-user check. Skipped when DEV_USER_EMAIL is unset.
func seedDevProfile(ctx context.Context, store *repository.SQLiteStore) error {
	email := os.Getenv("DEV_USER_EMAIL")
	if email == "" {
		return nil
	}
	profile := domain.UserProfile{
		Email:  email,
		Name:   os.Getenv("DEV_USER_NAME"),
		Domain: os.Getenv("DEV_USER_DOMAIN"),
		Age:    os.Getenv("DEV_USER_AGE"),
	}
	if err := store.UpsertProfile(ctx, profile); err != nil {
		return err
	}
	slog.Info("Development profile seeded", "email", email)
	return nil
}

func buildRegistry(getter tools.Getter, paramPrefix string) (*tools.Registry, error) {
	registry := tools.NewRegistry()
	if err := registry.Register(tools.NewGreetTool()); err != nil {
		return nil, err
	}

	jobSearch, err := tools.NewJobSearchTool(tools.JobSearchConfig{
		Getter:       getter,
		KeyParameter: paramPrefix + "/jsearch-api-key",
	})
	if err != nil {
		return nil, err
	}
	if err := registry.Register(jobSearch); err != nil {
		return nil, err
	}

	courseSearch, err := tools.NewCourseSearchTool(tools.CourseSearchConfig{
		Getter:       getter,
		KeyParameter: paramPrefix + "/udemy-api-key",
	})
	if err != nil {
		return nil, err
	}
	if err := registry.Register(courseSearch); err != nil {
		return nil, err
	}

	webSearch, err := tools.NewWebSearchTool(tools.WebSearchConfig{
		Getter:       getter,
		KeyParameter: paramPrefix + "/brave-api-key",
	})
	if err != nil {
		return nil, err
	}
	if err := registry.Register(webSearch); err != nil {
		return nil, err
	}

	return registry, nil
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
