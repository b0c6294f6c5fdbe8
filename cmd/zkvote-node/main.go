package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tactizen/zkvote-node/db/metadb"
	"github.com/tactizen/zkvote-node/log"
	"github.com/tactizen/zkvote-node/notary"
	"github.com/tactizen/zkvote-node/service"
	"github.com/tactizen/zkvote-node/storage"
	"github.com/tactizen/zkvote-node/validator"
	"github.com/tactizen/zkvote-node/verifier"
)

// Services holds all the running services
type Services struct {
	Storage *storage.Storage
	API     *service.APIService
}

func main() {
	// Load configuration
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logging
	log.Init(cfg.Log.Level, cfg.Log.Output, nil)
	log.Infow("starting zkvote-node", "version", Version)

	// Validate configuration
	if err := validateConfig(cfg); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Create context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup services
	services, err := setupServices(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to setup services: %v", err)
	}
	defer shutdownServices(services)

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh
	log.Infow("received signal, shutting down", "signal", sig.String())
}

// setupServices initializes and starts all required services
func setupServices(ctx context.Context, cfg *Config) (*Services, error) {
	services := &Services{}

	// Initialize storage database
	log.Infow("initializing storage", "datadir", cfg.Datadir, "type", cfg.DB.Type)
	storagedb, err := metadb.New(cfg.DB.Type, cfg.Datadir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	services.Storage = storage.New(storagedb)

	// Load the verification key and build the proof verifier
	vkey, err := os.ReadFile(cfg.Verifier.VKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read verification key: %w", err)
	}
	groth16, err := verifier.NewGroth16(vkey)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize proof verifier: %w", err)
	}
	log.Infow("proof verifier initialized", "vkey", cfg.Verifier.VKeyPath)

	// Optional attestation service
	var nt notary.Notary
	if cfg.Notary.Endpoint != "" {
		nt = notary.NewHTTP(cfg.Notary.Endpoint, cfg.Notary.APIKey)
		log.Infow("notarization enabled", "endpoint", cfg.Notary.Endpoint)
	} else {
		log.Info("notarization disabled, votes will be recorded unattested")
	}

	// Build the ballot validation pipeline
	pipeline := validator.New(services.Storage, groth16, nt, validator.Options{
		GraceWindow:   cfg.Vote.GraceWindow,
		VerifyTimeout: cfg.Vote.VerifyTimeout,
	})

	// Start API service
	log.Infow("starting API service", "host", cfg.API.Host, "port", cfg.API.Port)
	services.API = service.NewAPI(services.Storage, pipeline,
		cfg.API.Host, cfg.API.Port, cfg.Vote.GraceWindow, false)
	if err := services.API.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start API service: %w", err)
	}

	log.Info("zkvote-node is running, ready to process ballots!")
	return services, nil
}

// shutdownServices gracefully shuts down all services
func shutdownServices(services *Services) {
	if services == nil {
		return
	}

	// Stop services in reverse order of startup
	if services.API != nil {
		services.API.Stop()
	}
	if services.Storage != nil {
		services.Storage.Close()
	}
}
