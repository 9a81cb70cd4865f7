package main

// Ingest a local PDF and stream one answer to stdout:
//   go run ./cmd/ask -pdf ./paper.pdf -q "What is the main result?"

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"pdfchat-backend/internal/bootstrap"
	"pdfchat-backend/internal/chat"
	"pdfchat-backend/internal/ingestion"
	"pdfchat-backend/internal/quota"
	"pdfchat-backend/internal/shared/config"
	"pdfchat-backend/internal/shared/telemetry"
)

const cliOwner = "cli:local"

func main() {
	cfg := config.Load()

	pdfPath := flag.String("pdf", "", "Path to a PDF file")
	question := flag.String("q", "", "Question to ask (reads stdin lines when empty)")
	provider := flag.String("provider", cfg.LLMProvider, "LLM provider: openai, ollama or fake")
	model := flag.String("model", cfg.LLMModel, "Completion model")
	tier := flag.String("tier", quota.TierPro, "Quota tier applied to the document")
	flag.Parse()

	if strings.TrimSpace(*pdfPath) == "" {
		exitErr("pdf path is required")
	}

	// The CLI always runs against the in-process stack.
	cfg.Env = "local"
	cfg.DatabaseURL = ""
	cfg.SQSQueueURL = ""
	cfg.ObjectStoreType = "local"
	cfg.VectorIndex = "memory"
	cfg.LLMProvider = *provider
	cfg.LLMModel = *model
	cfg.LogLevel = "warn"
	telemetry.SetLevel(cfg.LogLevel)

	dir, err := os.MkdirTemp("", "pdfchat-ask-*")
	if err != nil {
		exitErr(fmt.Sprintf("create temp dir: %v", err))
	}
	defer os.RemoveAll(dir)
	cfg.LocalStoreDir = dir

	app, err := bootstrap.Build(cfg)
	if err != nil {
		exitErr(fmt.Sprintf("bootstrap: %v", err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	docID, err := ingest(ctx, app, *pdfPath, *tier)
	if err != nil {
		exitErr(fmt.Sprintf("ingest: %v", err))
	}

	if strings.TrimSpace(*question) != "" {
		if err := ask(ctx, app.Chat, docID, *question); err != nil {
			exitErr(fmt.Sprintf("answer: %v", err))
		}
		return
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Fprint(os.Stderr, "> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := ask(ctx, app.Chat, docID, line); err != nil {
			exitErr(fmt.Sprintf("answer: %v", err))
		}
	}
}

func ingest(ctx context.Context, app *bootstrap.App, path, tier string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	obj, err := app.Store.Save(ctx, cliOwner, filepath.Base(path), file)
	if err != nil {
		return "", fmt.Errorf("store: %w", err)
	}
	sourceURL, err := app.Store.SourceURL(ctx, obj.Key)
	if err != nil {
		return "", fmt.Errorf("source url: %w", err)
	}

	res, err := app.Pipeline.Ingest(ctx, ingestion.Event{
		OwnerID:    cliOwner,
		StorageKey: obj.Key,
		FileName:   filepath.Base(path),
		SourceURL:  sourceURL,
		Tier:       tier,
	})
	if err != nil {
		return "", err
	}
	fmt.Fprintf(os.Stderr, "indexed %d pages of %s\n", res.Pages, filepath.Base(path))
	return res.DocumentID, nil
}

func ask(ctx context.Context, answerer chat.Answerer, docID, question string) error {
	err := answerer.Answer(ctx, chat.Turn{
		OwnerID:    cliOwner,
		DocumentID: docID,
		Question:   question,
	}, func(fragment string) error {
		_, err := os.Stdout.WriteString(fragment)
		return err
	})
	fmt.Println()
	return err
}

func exitErr(msg string) {
	_, _ = fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
