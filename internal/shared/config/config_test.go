package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENV", "")
	t.Setenv("LLM_PROVIDER", "")
	t.Setenv("VECTOR_INDEX", "")
	t.Setenv("EMBED_BATCH_SIZE", "")
	t.Setenv("DATABASE_URL", "")

	cfg := Load()
	if cfg.Env != "dev" {
		t.Fatalf("expected env dev, got %s", cfg.Env)
	}
	if cfg.LLMProvider != "openai" {
		t.Fatalf("expected openai provider, got %s", cfg.LLMProvider)
	}
	if cfg.VectorIndex != "memory" {
		t.Fatalf("expected memory index, got %s", cfg.VectorIndex)
	}
	if cfg.EmbedBatchSize != 16 {
		t.Fatalf("expected batch size 16, got %d", cfg.EmbedBatchSize)
	}
	if !cfg.IsDevLike() {
		t.Fatalf("expected dev config to be dev-like")
	}
}

func TestLoadNormalizesValues(t *testing.T) {
	t.Setenv("ENV", "prod")
	t.Setenv("LLM_PROVIDER", "Ollama")
	t.Setenv("VECTOR_INDEX", "pg")
	t.Setenv("OBJECT_STORE", "S3")
	t.Setenv("EMBED_BATCH_SIZE", "nope")
	t.Setenv("CORS_ALLOW_ORIGINS", " http://a.test , ,http://b.test")

	cfg := Load()
	if cfg.Env != "production" || cfg.IsDevLike() {
		t.Fatalf("expected production env, got %s", cfg.Env)
	}
	if cfg.LLMProvider != "ollama" {
		t.Fatalf("expected ollama, got %s", cfg.LLMProvider)
	}
	if cfg.VectorIndex != "pgvector" {
		t.Fatalf("expected pgvector, got %s", cfg.VectorIndex)
	}
	if cfg.ObjectStoreType != "s3" {
		t.Fatalf("expected s3, got %s", cfg.ObjectStoreType)
	}
	if cfg.EmbedBatchSize != 16 {
		t.Fatalf("invalid batch size should fall back to default, got %d", cfg.EmbedBatchSize)
	}
	if len(cfg.CORSAllowOrigin) != 2 || cfg.CORSAllowOrigin[1] != "http://b.test" {
		t.Fatalf("unexpected origins %v", cfg.CORSAllowOrigin)
	}
}

func TestLoadEnvFilesDoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("PDFCHAT_TEST_A=from-file\nPDFCHAT_TEST_B=\"quoted\"\n"), 0o644); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("PDFCHAT_TEST_A", "from-env")
	t.Setenv("PDFCHAT_TEST_B", "")
	os.Unsetenv("PDFCHAT_TEST_B")

	loadEnvFiles(filepath.Join(dir, "missing.env"), path)

	if got := os.Getenv("PDFCHAT_TEST_A"); got != "from-env" {
		t.Fatalf("expected existing value kept, got %s", got)
	}
	if got := os.Getenv("PDFCHAT_TEST_B"); got != "quoted" {
		t.Fatalf("expected value loaded from file, got %s", got)
	}
}

func TestLoadDefaultsToPgvectorWithDatabase(t *testing.T) {
	t.Setenv("VECTOR_INDEX", "")
	t.Setenv("DATABASE_URL", "postgres://localhost/pdfchat")

	if cfg := Load(); cfg.VectorIndex != "pgvector" {
		t.Fatalf("expected pgvector index with a database, got %s", cfg.VectorIndex)
	}

	t.Setenv("VECTOR_INDEX", "memory")
	if cfg := Load(); cfg.VectorIndex != "memory" {
		t.Fatalf("expected explicit memory index to be kept, got %s", cfg.VectorIndex)
	}
}
