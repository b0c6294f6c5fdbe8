// Package service wires the node components into startable units.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tactizen/zkvote-node/api"
	"github.com/tactizen/zkvote-node/log"
	"github.com/tactizen/zkvote-node/storage"
	"github.com/tactizen/zkvote-node/validator"
)

// APIService represents a service that manages the HTTP API server.
type APIService struct {
	storage           *storage.Storage
	validator         *validator.Validator
	API               *api.API
	mu                sync.Mutex
	cancel            context.CancelFunc
	host              string
	port              int
	registrationGrace time.Duration
}

// NewAPI creates a new APIService instance.
func NewAPI(stg *storage.Storage, v *validator.Validator, host string, port int,
	registrationGrace time.Duration, disableLogging bool,
) *APIService {
	if disableLogging {
		api.DisabledLogging = disableLogging
		log.Debugw("API logging is disabled")
	}
	return &APIService{
		storage:           stg,
		validator:         v,
		host:              host,
		port:              port,
		registrationGrace: registrationGrace,
	}
}

// Start begins the API server. It returns an error if the service
// is already running or if it fails to start.
func (as *APIService) Start(ctx context.Context) error {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.cancel != nil {
		return fmt.Errorf("service already running")
	}

	_, as.cancel = context.WithCancel(ctx)

	var err error
	as.API, err = api.New(&api.APIConfig{
		Host:              as.host,
		Port:              as.port,
		Storage:           as.storage,
		Validator:         as.validator,
		RegistrationGrace: as.registrationGrace,
	})
	if err != nil {
		as.cancel = nil
		return fmt.Errorf("failed to start API server: %w", err)
	}

	return nil
}

// Stop halts the API server.
func (as *APIService) Stop() {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.cancel != nil {
		as.cancel()
		as.cancel = nil
	}
}

// HostPort returns the host and port of the API server.
func (as *APIService) HostPort() (string, int) {
	return as.host, as.port
}
