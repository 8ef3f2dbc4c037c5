// Package app wires configuration, logging and storage for the command
// line tools and the API server.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/wyat/capital/internal/blobstore"
	"github.com/wyat/capital/internal/config"
	"github.com/wyat/capital/internal/envelope"
	"github.com/wyat/capital/internal/extraction"
	"github.com/wyat/capital/internal/importer"
	"github.com/wyat/capital/internal/infra/memory"
	mongostore "github.com/wyat/capital/internal/infra/mongo"
	"github.com/wyat/capital/internal/ledger"
	"github.com/wyat/capital/internal/logger"
	"github.com/wyat/capital/internal/seed"
)

// Options select the backing store.
type Options struct {
	// URI and DB override MONGODB_URI and MONGODB_DB when set.
	URI string
	DB  string
	// Memory uses an in-memory store seeded with the canonical accounts
	// and envelopes. Nothing is persisted.
	Memory bool
}

// App holds the repositories and services shared by every entry point.
type App struct {
	Config *config.Config
	Log    zerolog.Logger

	Txs          ledger.TransactionRepository
	Accounts     ledger.AccountRepository
	EnvelopeRepo envelope.Repository
	Docs         extraction.DocumentRepository
	Blobs        extraction.BlobStore
	Prompts      extraction.PromptRepository

	Registry  *ledger.Registry
	Envelopes *envelope.Service

	// Mongo is nil in memory mode.
	Mongo *mongostore.Store
	gcs   *blobstore.GCS
}

// Open loads configuration and connects the store. The returned context
// carries the logger.
func Open(ctx context.Context, opts Options) (*App, context.Context, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, ctx, fmt.Errorf("Open: loading config: %w", err)
	}
	log := logger.New().Level(logger.ParseLevel(cfg.LogLevel))
	ctx = logger.WithContext(ctx, log)

	a := &App{Config: cfg, Log: log}
	if opts.Memory {
		if err := a.useMemory(ctx); err != nil {
			return nil, ctx, err
		}
		return a, ctx, nil
	}

	uri, db := cfg.MongoURI, cfg.MongoDB
	if opts.URI != "" {
		uri = opts.URI
	} else if err := cfg.Require(config.EnvMongoURI); err != nil {
		return nil, ctx, err
	}
	if opts.DB != "" {
		db = opts.DB
	}

	store, err := mongostore.Connect(ctx, uri, db)
	if err != nil {
		return nil, ctx, fmt.Errorf("Open: %w", err)
	}
	docs := store.Documents()
	a.Mongo = store
	a.Txs = store.Transactions()
	a.Accounts = store.Accounts()
	a.EnvelopeRepo = store.Envelopes()
	a.Docs = docs
	a.Blobs = docs
	a.Prompts = docs

	if cfg.GCSBucket != "" {
		g, err := blobstore.NewGCS(ctx, cfg.GCSBucket)
		if err != nil {
			_ = store.Close(context.Background())
			return nil, ctx, fmt.Errorf("Open: %w", err)
		}
		a.gcs = g
		a.Blobs = g
	}

	a.wire()
	return a, ctx, nil
}

func (a *App) useMemory(ctx context.Context) error {
	m := memory.NewStore()
	a.Txs, a.Accounts, a.EnvelopeRepo = m, m, m
	a.Docs, a.Blobs, a.Prompts = m, m, m
	a.wire()

	if _, err := seed.SeedAccounts(ctx, a.Registry, seed.Accounts()); err != nil {
		return fmt.Errorf("Open: seeding accounts: %w", err)
	}
	if _, err := seed.SeedEnvelopes(ctx, a.Envelopes, seed.FamilyBucket()); err != nil {
		return fmt.Errorf("Open: seeding envelopes: %w", err)
	}
	a.Log.Warn().Msg("Using in-memory store; nothing will be persisted")
	return nil
}

func (a *App) wire() {
	a.Registry = ledger.NewRegistry(a.Accounts)
	a.Envelopes = envelope.NewService(a.EnvelopeRepo)
}

// Importer returns an importer that checks accounts against the registry
// and can replay envelopes.
func (a *App) Importer() *importer.Importer {
	return importer.New(a.Txs, importer.WithRegistry(a.Registry), importer.WithEnvelopes(a.Envelopes))
}

// Close releases the store and blob clients.
func (a *App) Close(ctx context.Context) {
	if a.gcs != nil {
		if err := a.gcs.Close(); err != nil {
			a.Log.Warn().Err(err).Msg("Failed to close GCS client")
		}
	}
	if a.Mongo != nil {
		if err := a.Mongo.Close(ctx); err != nil {
			a.Log.Warn().Err(err).Msg("Failed to disconnect from MongoDB")
		}
	}
}

// Fatal logs err with a plain console logger and exits with status 1. It
// is for failures before an App exists.
func Fatal(err error, msg string) {
	l := logger.New()
	l.Fatal().Err(err).Msg(msg)
}
