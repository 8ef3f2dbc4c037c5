// Command api serves the capital HTTP API and runs extraction jobs in
// process.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wyat/capital/internal/api"
	"github.com/wyat/capital/internal/api/handlers"
	"github.com/wyat/capital/internal/app"
	"github.com/wyat/capital/internal/config"
	"github.com/wyat/capital/internal/extraction"
	"github.com/wyat/capital/internal/importer"
	"github.com/wyat/capital/internal/jobs"
	"github.com/wyat/capital/internal/jobs/inmemory"
)

func main() {
	port := flag.String("port", "", "HTTP server port (default PORT or "+config.DefaultPort+")")
	memory := flag.Bool("memory", false, "Use an in-memory store instead of MongoDB")
	workers := flag.Int("workers", inmemory.DefaultWorkers, "Concurrent extraction workers")
	flag.Parse()

	ctx := context.Background()
	a, ctx, err := app.Open(ctx, app.Options{Memory: *memory})
	if err != nil {
		app.Fatal(err, "Failed to open store")
	}
	defer a.Close(context.Background())
	log := a.Log

	if err := a.Config.Require(config.EnvAPIKey); err != nil {
		log.Fatal().Err(err).Msg("Refusing to start without an API key")
	}
	if *port == "" {
		*port = a.Config.Port
	}

	im := a.Importer()

	// Job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, jobStore)
	jobQueue.Workers = *workers

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	var documentsHandler *handlers.DocumentsHandler
	extractor, err := extraction.NewGeminiExtractor(ctx, a.Config.GeminiModel)
	if err != nil {
		log.Warn().Err(err).Msg("No extraction model available - document endpoints are disabled")
	} else {
		deps := &extraction.Deps{
			Docs:      a.Docs,
			Blobs:     a.Blobs,
			Prompts:   a.Prompts,
			Extractor: extractor,
			Importer:  im,
			Adapter: extraction.AdapterOptions{
				Import: importer.Options{Reclassify: true, ApplyEnvelopes: true},
			},
		}
		if err := jobQueue.Start(workerCtx, jobs.NewExtractHandler(deps)); err != nil {
			log.Fatal().Err(err).Msg("Failed to start job workers")
		}
		log.Info().Int("workers", *workers).Str("model", extractor.Model()).Msg("Started extraction workers")
		documentsHandler = handlers.NewDocumentsHandler(a.Docs, a.Blobs, jobQueue, log)
	}

	handler := api.NewRouter(api.Config{
		Capital:        handlers.NewCapitalHandler(im, a.Txs, a.Envelopes, log),
		Documents:      documentsHandler,
		Jobs:           handlers.NewJobsHandler(jobStore, log),
		APIKey:         a.Config.APIKey,
		FrontendOrigin: a.Config.FrontendOrigin,
		Log:            log,
	})

	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", *port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Let in-flight jobs finish before cancelling the workers.
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	log.Info().Msg("Server exited")
}
