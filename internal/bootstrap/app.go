// Package bootstrap wires configuration into the stores, models and handlers
// shared by every entrypoint.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tmc/langchaingo/embeddings"

	"pdfchat-backend/internal/chat"
	"pdfchat-backend/internal/documents"
	"pdfchat-backend/internal/embedding"
	"pdfchat-backend/internal/fetch"
	"pdfchat-backend/internal/ingestion"
	"pdfchat-backend/internal/llm"
	"pdfchat-backend/internal/llm/langchain"
	"pdfchat-backend/internal/llm/openai"
	"pdfchat-backend/internal/messages"
	"pdfchat-backend/internal/queue"
	"pdfchat-backend/internal/quota"
	"pdfchat-backend/internal/retrieval"
	"pdfchat-backend/internal/services/health"
	"pdfchat-backend/internal/shared/config"
	"pdfchat-backend/internal/shared/server"
	"pdfchat-backend/internal/shared/storage/db"
	"pdfchat-backend/internal/shared/storage/object"
	localstore "pdfchat-backend/internal/shared/storage/object/local"
	s3store "pdfchat-backend/internal/shared/storage/object/s3"
	"pdfchat-backend/internal/shared/telemetry"
	"pdfchat-backend/internal/subscriptions"
	"pdfchat-backend/internal/uploads"
	"pdfchat-backend/internal/vectorindex"
)

const (
	defaultRegion          = "us-east-1"
	defaultOllamaChatModel = "llama3"
	defaultOllamaEmbedding = "nomic-embed-text"
	fetchTimeout           = 60 * time.Second
)

// App holds shared dependencies.
type App struct {
	Config        config.Config
	Router        *gin.Engine
	DB            *sql.DB
	Store         object.ObjectStore
	Quotas        *quota.Table
	Documents     documents.Repo
	Messages      messages.Store
	Index         vectorindex.Index
	Embedder      embedding.Embedder
	Completer     llm.StreamCompleter
	Subscriptions *subscriptions.Service
	Retrieval     *retrieval.Service
	Chat          *chat.Service
	Pipeline      *ingestion.Pipeline
	Dispatcher    ingestion.Dispatcher
	// Local is set when ingestion runs in-process instead of through SQS.
	Local *ingestion.LocalDispatcher
}

// Build prepares shared dependencies and the HTTP router.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.AWSRegion) == "" {
		cfg.AWSRegion = defaultRegion
	}
	telemetry.SetLevel(cfg.LogLevel)
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	quotas, err := buildQuotas(cfg)
	if err != nil {
		return nil, err
	}
	embedder, err := buildEmbedder(ctx, cfg)
	if err != nil {
		return nil, err
	}
	completer, err := buildCompleter(cfg)
	if err != nil {
		return nil, err
	}
	index, err := buildIndex(cfg, sqlDB)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:    cfg,
		DB:        sqlDB,
		Store:     store,
		Quotas:    quotas,
		Index:     index,
		Embedder:  embedder,
		Completer: completer,
	}
	if sqlDB != nil {
		app.Documents = &documents.PGRepo{DB: sqlDB}
		app.Messages = messages.NewPGStore(sqlDB)
		app.Subscriptions = subscriptions.NewPostgresService(subscriptions.NewPGStore(sqlDB))
	} else {
		app.Documents = documents.NewMemoryRepo()
		app.Messages = messages.NewMemoryStore()
		app.Subscriptions = subscriptions.NewService()
	}

	app.Retrieval = retrieval.NewService(embedding.NewCached(embedder, cfg.EmbedCacheSize), index)
	app.Chat = chat.NewService(app.Documents, app.Messages, app.Retrieval, completer)

	app.Pipeline = ingestion.NewPipeline(app.Documents, buildFetcher(cfg), embedder, index, quotas)
	app.Pipeline.BatchSize = cfg.EmbedBatchSize

	if err := buildDispatcher(ctx, app); err != nil {
		return nil, err
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:        cfg,
		Health:        health.NewService(sqlDB),
		Documents:     documents.NewHandler(documents.NewService(app.Documents)),
		Messages:      messages.NewHandler(app.Messages, app.Documents),
		Chat:          chat.NewHandler(app.Chat),
		Uploads:       uploads.NewHandler(store, app.Dispatcher, app.Subscriptions, quotas),
		Subscriptions: subscriptions.NewHandler(app.Subscriptions, quotas),
	})

	telemetry.Info("bootstrap.ready", map[string]any{
		"env":          cfg.Env,
		"llm_provider": cfg.LLMProvider,
		"vector_index": indexName(index),
		"object_store": cfg.ObjectStoreType,
		"database":     sqlDB != nil,
		"queue":        app.Local == nil,
	})
	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.database.memory", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	var (
		sqlDB *sql.DB
		err   error
	)
	if db.IsLambdaRuntime() {
		opts := db.OptionsFromEnv(db.DefaultLambdaOptions())
		sqlDB, err = db.GetSingleton(ctx, cfg.DatabaseURL, opts)
	} else {
		opts := db.OptionsFromEnv(db.DefaultServerOptions())
		sqlDB, err = db.Connect(ctx, cfg.DatabaseURL, opts)
	}
	if err != nil {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.database.memory", map[string]any{"reason": "connect failed", "error": err})
			return nil, nil
		}
		return nil, err
	}

	if cfg.IsDevLike() {
		if err := db.RunMigrations(ctx, sqlDB); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildQuotas(cfg config.Config) (*quota.Table, error) {
	if strings.TrimSpace(cfg.QuotaFile) == "" {
		return quota.Defaults(), nil
	}
	table, err := quota.LoadFile(cfg.QuotaFile)
	if err != nil {
		return nil, fmt.Errorf("load quota file: %w", err)
	}
	return table, nil
}

func buildEmbedder(ctx context.Context, cfg config.Config) (embedding.Embedder, error) {
	switch cfg.LLMProvider {
	case "openai":
		return openai.NewEmbedder(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.EmbeddingModel)
	case "ollama":
		model := cfg.EmbeddingModel
		if strings.TrimSpace(model) == "" {
			model = defaultOllamaEmbedding
		}
		client, err := langchain.NewOllamaModel(cfg.OllamaURL, model)
		if err != nil {
			return nil, err
		}
		inner, err := embeddings.NewEmbedder(client)
		if err != nil {
			return nil, fmt.Errorf("ollama embedder: %w", err)
		}
		return embedding.NewLangchainEmbedder(ctx, inner, 0)
	default:
		return embedding.NewHashEmbedder(embedding.DefaultHashDimensions), nil
	}
}

func buildCompleter(cfg config.Config) (llm.StreamCompleter, error) {
	switch cfg.LLMProvider {
	case "openai":
		return openai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.LLMModel)
	case "ollama":
		model := cfg.LLMModel
		if strings.TrimSpace(model) == "" || strings.HasPrefix(model, "gpt-") {
			model = defaultOllamaChatModel
		}
		return langchain.NewOllama(cfg.OllamaURL, model)
	default:
		return &llm.FakeCompleter{}, nil
	}
}

func buildIndex(cfg config.Config, sqlDB *sql.DB) (vectorindex.Index, error) {
	if cfg.VectorIndex != "pgvector" {
		// Queued ingestion runs in another process, which cannot see this
		// process's memory.
		if !cfg.IsDevLike() && strings.TrimSpace(cfg.SQSQueueURL) != "" {
			return nil, fmt.Errorf("VECTOR_INDEX=memory cannot be used with SQS_QUEUE_URL outside dev")
		}
		return vectorindex.NewMemoryIndex(), nil
	}
	if sqlDB == nil {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.vector_index.memory", map[string]any{"reason": "no database"})
			return vectorindex.NewMemoryIndex(), nil
		}
		return nil, fmt.Errorf("VECTOR_INDEX=pgvector requires DATABASE_URL")
	}
	version, err := db.VectorExtensionVersion(context.Background(), sqlDB)
	if err != nil {
		return nil, fmt.Errorf("VECTOR_INDEX=pgvector: %w (run cmd/migrate)", err)
	}
	telemetry.Info("bootstrap.vector_index.pgvector", map[string]any{"extension_version": version})
	return vectorindex.NewPGIndex(sqlDB), nil
}

func buildFetcher(cfg config.Config) fetch.Fetcher {
	var files fetch.Fetcher
	if cfg.ObjectStoreType != "s3" {
		files = &fetch.FileFetcher{BaseDir: cfg.LocalStoreDir}
	}
	return fetch.NewMux(fetch.NewHTTPFetcher(fetchTimeout), files)
}

func buildDispatcher(ctx context.Context, app *App) error {
	if strings.TrimSpace(app.Config.SQSQueueURL) == "" {
		app.Local = ingestion.NewLocalDispatcher(app.Pipeline)
		app.Dispatcher = app.Local
		return nil
	}
	client, err := queue.NewSQSClient(ctx, app.Config.AWSRegion, app.Config.SQSQueueURL)
	if err != nil {
		return err
	}
	app.Dispatcher = ingestion.NewQueueDispatcher(client)
	return nil
}

func indexName(index vectorindex.Index) string {
	if _, ok := index.(*vectorindex.PGIndex); ok {
		return "pgvector"
	}
	return "memory"
}
