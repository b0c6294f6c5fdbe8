package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/tactizen/zkvote-node/log"
	stg "github.com/tactizen/zkvote-node/storage"
	"github.com/tactizen/zkvote-node/validator"
)

const (
	maxRequestBodyLog = 512 // Maximum length of request body to log
)

// APIConfig type represents the configuration for the API HTTP server.
type APIConfig struct {
	Host      string
	Port      int
	Storage   *stg.Storage         // Required: the node storage instance
	Validator *validator.Validator // Required: the ballot validation pipeline
	// RegistrationGrace bounds how long after an election freeze its
	// registry still accepts commitments. Zero uses the validator default.
	RegistrationGrace time.Duration
}

// API type represents the API HTTP server.
type API struct {
	router            *chi.Mux
	storage           *stg.Storage
	validator         *validator.Validator
	registrationGrace time.Duration
}

// New creates a new API instance with the given configuration and starts
// the HTTP server.
func New(conf *APIConfig) (*API, error) {
	if conf == nil {
		return nil, fmt.Errorf("missing API configuration")
	}
	if conf.Storage == nil {
		return nil, fmt.Errorf("missing storage instance")
	}
	if conf.Validator == nil {
		return nil, fmt.Errorf("missing ballot validator")
	}
	a := &API{
		storage:           conf.Storage,
		validator:         conf.Validator,
		registrationGrace: conf.RegistrationGrace,
	}
	if a.registrationGrace == 0 {
		a.registrationGrace = validator.DefaultGraceWindow
	}

	// Initialize router
	a.initRouter()
	go func() {
		log.Infow("Starting API server", "host", conf.Host, "port", conf.Port)
		if err := http.ListenAndServe(fmt.Sprintf("%s:%d", conf.Host, conf.Port), a.router); err != nil {
			log.Fatalf("failed to start the API server: %v", err)
		}
	}()
	return a, nil
}

// Router returns the chi router for testing purposes
func (a *API) Router() *chi.Mux {
	return a.router
}

// registerHandlers registers all the HTTP handlers for the API endpoints.
func (a *API) registerHandlers() {
	log.Infow("register handler", "endpoint", PingEndpoint, "method", "GET")
	a.router.Get(PingEndpoint, func(w http.ResponseWriter, r *http.Request) {
		httpWriteOK(w)
	})
	// election endpoints
	log.Infow("register handler", "endpoint", ElectionsEndpoint, "method", "POST")
	a.router.Post(ElectionsEndpoint, a.createElection)
	log.Infow("register handler", "endpoint", ElectionsEndpoint, "method", "GET")
	a.router.Get(ElectionsEndpoint, a.electionList)
	log.Infow("register handler", "endpoint", ElectionEndpoint, "method", "GET")
	a.router.Get(ElectionEndpoint, a.election)
	log.Infow("register handler", "endpoint", ElectionRegistrationEndpoint, "method", "POST")
	a.router.Post(ElectionRegistrationEndpoint, a.transitionHandler(a.storage.OpenRegistration))
	log.Infow("register handler", "endpoint", ElectionFreezeEndpoint, "method", "POST")
	a.router.Post(ElectionFreezeEndpoint, a.transitionHandler(a.storage.FreezeElection))
	log.Infow("register handler", "endpoint", ElectionCloseEndpoint, "method", "POST")
	a.router.Post(ElectionCloseEndpoint, a.transitionHandler(a.storage.CloseElection))
	log.Infow("register handler", "endpoint", ElectionResultsEndpoint, "method", "GET")
	a.router.Get(ElectionResultsEndpoint, a.electionResults)
	// registry endpoints
	log.Infow("register handler", "endpoint", RegistryEndpoint, "method", "POST")
	a.router.Post(RegistryEndpoint, a.register)
	log.Infow("register handler", "endpoint", RegistryProofEndpoint, "method", "GET")
	a.router.Get(RegistryProofEndpoint, a.registryProof)
	log.Infow("register handler", "endpoint", RegistryRootEndpoint, "method", "GET")
	a.router.Get(RegistryRootEndpoint, a.registryRoot)
	// vote endpoints
	log.Infow("register handler", "endpoint", VotesEndpoint, "method", "POST")
	a.router.Post(VotesEndpoint, a.newVote)
}

// initRouter creates the router with all the routes and middleware.
func (a *API) initRouter() {
	a.router = chi.NewRouter()
	a.router.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler)
	a.router.Use(requestIDMiddleware)
	a.router.Use(loggingMiddleware(maxRequestBodyLog))
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Throttle(100))
	a.router.Use(middleware.ThrottleBacklog(5000, 40000, 60*time.Second))
	a.router.Use(middleware.Timeout(45 * time.Second))

	a.registerHandlers()
}
