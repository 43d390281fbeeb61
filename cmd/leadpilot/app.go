package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"leadpilot/internal/config"
	"leadpilot/internal/delivery"
	"leadpilot/internal/engine"
	"leadpilot/internal/history"
	"leadpilot/internal/lead"
	"leadpilot/internal/llm"
	"leadpilot/internal/trace"
)

// app bundles the wired engine with everything that needs closing.
type app struct {
	cfg    *config.Config
	engine *engine.Engine
	traces *trace.Store
	crm    delivery.CRM

	db    *sql.DB
	queue delivery.EmailQueue
}

// buildApp loads configuration and wires the engine. With dryRun the stub
// generation client is used and delivery collaborators are left nil, so runs
// only record directives in the trace.
func buildApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	dbPath := cfg.Storage.DatabasePath
	if !filepath.IsAbs(dbPath) {
		dbPath = filepath.Join(workspace, dbPath)
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	hist, err := history.NewSQLiteStoreWithDB(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	traces, err := trace.NewStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	client, err := buildClient(cfg)
	if err != nil {
		db.Close()
		return nil, err
	}

	a := &app{cfg: cfg, traces: traces, db: db}

	if !dryRun {
		if cfg.Delivery.AMQPURL != "" {
			queue, err := delivery.NewAMQPQueue(cfg.Delivery.AMQPURL, cfg.Delivery.Exchange, cfg.Delivery.RoutingKey)
			if err != nil {
				db.Close()
				return nil, err
			}
			a.queue = queue
		} else {
			logger.Warn("No AMQP URL configured; email dispatch disabled")
		}
		if cfg.Delivery.CRMBaseURL != "" {
			timeout, err := time.ParseDuration(cfg.Delivery.CRMTimeout)
			if err != nil {
				timeout = 30 * time.Second
			}
			a.crm = delivery.NewCRMClient(cfg.Delivery.CRMBaseURL, cfg.Delivery.CRMAPIKey, timeout)
		}
	}

	eng, err := engine.New(cfg, client, hist, traces, a.queue, a.crm)
	if err != nil {
		a.close()
		return nil, err
	}
	a.engine = eng
	return a, nil
}

// buildClient selects the text-generation client from configuration.
func buildClient(cfg *config.Config) (llm.Client, error) {
	if dryRun {
		logger.Info("Dry run: using stub generation client")
		return llm.NewStubClient(), nil
	}

	switch cfg.LLM.Provider {
	case "genai", "":
		return llm.NewGenAIClient(context.Background(), cfg.LLM.APIKey, cfg.LLM.Model)
	case "openai":
		timeout, err := time.ParseDuration(cfg.LLM.Timeout)
		if err != nil || timeout <= 0 {
			timeout = 2 * time.Minute
		}
		return llm.NewOpenAIClient(llm.OpenAIConfig{
			APIKey:  cfg.LLM.APIKey,
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
			Timeout: timeout,
		}), nil
	case "stub":
		return llm.NewStubClient(), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
}

func (a *app) close() {
	if a.queue != nil {
		if err := a.queue.Close(); err != nil {
			logger.Warn("Failed to close queue", zap.Error(err))
		}
	}
	if a.db != nil {
		a.db.Close()
	}
}

// loadLeadFile reads one lead context from a JSON file.
func loadLeadFile(path string) (lead.Context, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return lead.Context{}, fmt.Errorf("failed to read lead file: %w", err)
	}
	var lc lead.Context
	if err := json.Unmarshal(data, &lc); err != nil {
		return lead.Context{}, fmt.Errorf("failed to parse lead file %s: %w", path, err)
	}
	return lc, nil
}

// loadLeadsFile reads a JSON array of lead contexts.
func loadLeadsFile(path string) ([]lead.Context, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read leads file: %w", err)
	}
	var leads []lead.Context
	if err := json.Unmarshal(data, &leads); err != nil {
		return nil, fmt.Errorf("failed to parse leads file %s: %w", path, err)
	}
	return leads, nil
}
