package main

import (
	"context"
	"log/slog"
	"os"
	"strconv"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"asha-agent/handler"
	"asha-agent/internal/integrations/gemini"
	"asha-agent/internal/integrations/paramstore"
	"asha-agent/internal/integrations/summarize"
	"asha-agent/internal/repository"
	"asha-agent/internal/tools"
	"asha-agent/internal/usecase"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	stateTable := mustEnv("STATE_TABLE")
	paramPrefix := mustEnv("PARAM_PREFIX")
	geminiModel := envStr("GEMINI_MODEL", "gemini-1.5-pro")
	maxMessageLen := envInt("MAX_MESSAGE_LENGTH", 1000)

	// ---- AWS SDK config ----
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(cfg))
	if err != nil {
		slog.Error("failed to create SSM client", "err", err)
		os.Exit(1)
	}
	store, err := repository.New(awsdynamodb.NewFromConfig(cfg), stateTable)
	if err != nil {
		slog.Error("failed to create session store", "err", err)
		os.Exit(1)
	}

	registry, err := buildRegistry(ssmClient, paramPrefix)
	if err != nil {
		slog.Error("failed to build tool registry", "err", err)
		os.Exit(1)
	}

	modelClient, err := gemini.NewClient(ssmClient, paramPrefix, geminiModel, registry.Specs())
	if err != nil {
		slog.Error("failed to create Gemini client", "err", err)
		os.Exit(1)
	}
	summarizer, err := summarize.NewClient(ssmClient, paramPrefix)
	if err != nil {
		slog.Error("failed to create summarization client", "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	chatService, err := usecase.NewChatService(store, store, modelClient, summarizer, registry, maxMessageLen)
	if err != nil {
		slog.Error("failed to create chat service", "err", err)
		os.Exit(1)
	}

	h, err := handler.NewHandler(chatService)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
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

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		slog.Error("required environment variable is not set", "key", key)
		os.Exit(1)
	}
	return v
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
