// main package for the tts-gateway
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/tts-gateway/internal/api"
	"github.com/book-expert/tts-gateway/internal/audiocache"
	"github.com/book-expert/tts-gateway/internal/config"
	"github.com/book-expert/tts-gateway/internal/core"
	"github.com/book-expert/tts-gateway/internal/objectstore"
	"github.com/book-expert/tts-gateway/internal/registry"
	"github.com/book-expert/tts-gateway/internal/tts"
	"github.com/book-expert/tts-gateway/internal/tts/pipeline"
	"github.com/book-expert/tts-gateway/internal/worker"
	"github.com/nats-io/nats.go"
	"golang.org/x/sync/errgroup"
)

const (
	bootstrapLogFile = "tts-gateway-bootstrap.log"
	serviceLogFile   = "tts-gateway.log"
	shutdownTimeout  = 10 * time.Second
)

func setupLogger(logPath, fileName string) (*logger.Logger, error) {
	log, err := logger.New(logPath, fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger in %s: %w", logPath, err)
	}

	return log, nil
}

// buildEngines constructs every adapter the gateway knows. The registry
// decides which of them are reachable.
func buildEngines(cfg *config.Config, log *logger.Logger) []core.Engine {
	transcoder := pipeline.New(cfg.Transcoder.Binary)
	log.Info("Transcoding with %s.", transcoder.Binary())

	sapiClient := tts.NewSAPIClient(cfg.Windows.URL, cfg.Windows.Timeout())

	return []core.Engine{
		tts.NewPollinations(cfg.Pollinations.BaseURL, cfg.Pollinations.Model, nil),
		tts.NewEspeak(transcoder, cfg.Engines.Espeak),
		tts.NewFestival(transcoder, cfg.Engines.Festival),
		tts.NewFlite(transcoder, cfg.Engines.Flite),
		tts.NewDECtalk(transcoder, cfg.Engines.DECtalk),
		tts.NewSAM(transcoder, cfg.Engines.SAM),
		tts.NewCoqui(transcoder, cfg.Engines.Coqui),
		tts.NewEffects(transcoder, cfg.Engines.EffectsBase, cfg.Paths.TempDir),
		tts.NewWindows(sapiClient, transcoder, cfg.Windows.Enabled),
	}
}

func serveHTTP(ctx context.Context, server *http.Server, log *logger.Logger) error {
	errChan := make(chan error, 1)

	go func() {
		log.System("HTTP façade listening on %s.", server.Addr)

		listenErr := server.ListenAndServe()
		if listenErr != nil && !errors.Is(listenErr, http.ErrServerClosed) {
			errChan <- listenErr
		}

		close(errChan)
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	log.Info("Shutting down HTTP façade.")

	shutdownErr := server.Shutdown(shutdownCtx)
	if shutdownErr != nil {
		return fmt.Errorf("http server shutdown failed: %w", shutdownErr)
	}

	return nil
}

func startWorker(
	cfg *config.Config,
	manager *registry.Manager,
	cache *audiocache.Cache,
	log *logger.Logger,
) (*worker.NatsWorker, *nats.Conn, error) {
	natsConnection, err := nats.Connect(cfg.NATS.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATS.URL, err)
	}

	jetstreamContext, err := natsConnection.JetStream()
	if err != nil {
		natsConnection.Close()

		return nil, nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	store, err := objectstore.New(jetstreamContext, cfg.NATS.AudioObjectStoreBucket)
	if err != nil {
		natsConnection.Close()

		return nil, nil, err
	}

	log.Info("Object store bucket %s ready.", store.Bucket())

	natsWorker, err := worker.NewNatsWorker(
		natsConnection,
		cfg.NATS.SynthesisSubject,
		cfg.NATS.DefaultProvider,
		store,
		cache,
		manager,
		log,
	)
	if err != nil {
		natsConnection.Close()

		return nil, nil, err
	}

	return natsWorker, natsConnection, nil
}

func run() error {
	// 1. Create a temporary logger for the bootstrap process
	bootstrapLog, err := setupLogger(os.TempDir(), bootstrapLogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return err
	}

	defer func() { _ = bootstrapLog.Close() }()

	bootstrapLog.Info("Bootstrap logger created.")

	// 2. Load configuration using the central configurator
	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return fmt.Errorf("failed to load configuration: %w", err)
	}

	bootstrapLog.Info("Configuration loaded successfully.")

	// 3. Initialize the final logger based on the loaded configuration
	finalLog, err := setupLogger(cfg.Paths.BaseLogsDir, serviceLogFile)
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return fmt.Errorf("failed to create final logger: %w", err)
	}

	defer func() {
		closeErr := finalLog.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing final logger: %v\n", closeErr)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Check the engines and build the registry
	manager := registry.New(ctx, finalLog, buildEngines(cfg, finalLog)...)
	if len(manager.Names()) == 0 {
		finalLog.Warn("No synthesis providers are available; every /tts request will be rejected.")
	}

	cache, err := audiocache.New(cfg.Paths.AudioDir, manager, finalLog)
	if err != nil {
		return fmt.Errorf("failed to prepare audio cache: %w", err)
	}

	router := api.NewRouter(manager, cache, api.Options{
		MaxTextLength: cfg.Server.MaxTextLength,
		CORSOrigins:   cfg.Server.CORSOrigins,
	}, finalLog)

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.Setup(),
		ReadHeaderTimeout: cfg.Server.ReadTimeout(),
		ReadTimeout:       cfg.Server.ReadTimeout(),
		WriteTimeout:      cfg.Server.WriteTimeout(),
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return serveHTTP(groupCtx, server, finalLog)
	})

	// 5. Optionally attach the NATS job worker
	if cfg.NATS.Enabled() {
		natsWorker, natsConnection, workerErr := startWorker(cfg, manager, cache, finalLog)
		if workerErr != nil {
			stop()
			_ = group.Wait()

			return workerErr
		}

		defer natsConnection.Close()

		group.Go(func() error {
			return natsWorker.Run(groupCtx)
		})
	}

	finalLog.System("TTS-Gateway initialized with %d providers: %v", len(manager.Names()), manager.Kinds())

	return group.Wait()
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		os.Exit(1)
	}
}
