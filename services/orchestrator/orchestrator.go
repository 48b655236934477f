// Copyright (C) 2025 Litora AI (engineering@litora.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package orchestrator provides the LitoraChat session service.
//
// This package contains the main service type that coordinates all
// components: HTTP routing, the session machine, corpus clients, the
// LLM and text-intelligence clients, the Weaviate content store, and
// observability infrastructure.
//
// # Usage
//
//	cfg := orchestrator.Config{Port: 12220, WeaviateURL: "http://localhost:8080"}
//	svc, err := orchestrator.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Run())
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/LitoraAI/LitoraChat/services/contentstore"
	"github.com/LitoraAI/LitoraChat/services/corpus"
	"github.com/LitoraAI/LitoraChat/services/llm"
	"github.com/LitoraAI/LitoraChat/services/orchestrator/observability"
	"github.com/LitoraAI/LitoraChat/services/orchestrator/routes"
	"github.com/LitoraAI/LitoraChat/services/orchestrator/session"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Service defines the contract for the session service.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. Run() blocks and
// should only be called once per instance.
type Service interface {
	// Run starts the HTTP server and blocks until it stops.
	Run() error

	// Router returns the underlying Gin engine for testing.
	Router() *gin.Engine
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds orchestrator configuration.
//
// # Examples
//
//	// Minimal config (uses all defaults, content store disabled)
//	cfg := Config{}
//
//	// Full configuration
//	cfg := Config{
//	    Port:         12220,
//	    WeaviateURL:  "http://localhost:8080",
//	    TextIntelURL: "http://localhost:12230",
//	    OTelEndpoint: "localhost:4317",
//	}
type Config struct {
	// Port is the HTTP server port. Default: 12220
	Port int

	// WeaviateURL is the Weaviate vector database URL. If empty, the
	// content store is disabled and turns that use retrieval sources
	// fail with an error event.
	// Example: "http://localhost:8080"
	WeaviateURL string

	// TextIntelURL is the keyword-extraction and summarization service
	// URL. If empty, the TEXT_INTEL_SERVICE_URL environment variable
	// or its built-in default applies.
	TextIntelURL string

	// EncyclopediaURL overrides the MediaWiki API endpoint.
	// Default: English Wikipedia.
	EncyclopediaURL string

	// PaperArchiveURL overrides the paper archive Atom endpoint.
	// Default: the public arXiv export API.
	PaperArchiveURL string

	// OTelEndpoint is the OpenTelemetry collector endpoint.
	// Default: "litora-otel-collector:4317"
	OTelEndpoint string

	// GinMode sets the Gin framework mode.
	// Valid values: "debug", "release", "test"
	// Default: uses GIN_MODE env var or "debug"
	GinMode string

	// ContextBudgetWords bounds the rolling prompt context of the
	// session. Zero uses the session default.
	ContextBudgetWords int
}

// =============================================================================
// Implementation
// =============================================================================

// service implements Service for production use.
//
// # Thread Safety
//
// Thread-safe after construction. All fields are read-only after New()
// returns.
type service struct {
	config         Config
	router         *gin.Engine
	weaviateClient *weaviate.Client
	store          contentstore.ContentStore
	textIntel      *llm.TextIntelClient
	llmClient      llm.LLMClient
	taxonomy       *corpus.Taxonomy
	machine        *session.Machine
	metrics        *observability.SessionMetrics
	tracerCleanup  func(context.Context)
}

// =============================================================================
// Constructor
// =============================================================================

// New creates a session service with the given configuration.
//
// # Description
//
// New initializes all components:
//  1. Applies default configuration for missing values
//  2. Initializes OpenTelemetry tracing
//  3. Initializes Prometheus metrics
//  4. Creates the Weaviate content store if a URL is configured
//  5. Creates the LLM, text-intelligence, and corpus clients
//  6. Builds the session machine and HTTP routes
//
// A missing or unreachable Weaviate is not fatal: the service runs
// with the content store disabled, and only turns that need it fail.
//
// # Outputs
//
//   - Service: Ready-to-run session service
//   - error: Non-nil if initialization fails
//
// # Assumptions
//
//   - Environment variables are set for the LLM provider (API keys)
//   - Network is available for external service connections
func New(cfg Config) (Service, error) {
	s := &service{
		config: applyConfigDefaults(cfg),
	}

	cleanup, err := s.initTracer()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	s.tracerCleanup = cleanup

	s.metrics = observability.InitMetrics()

	if err := s.initContentStore(); err != nil {
		slog.Warn("Content store initialization failed, running without retrieval",
			"error", err)
		s.store = contentstore.Disabled()
	}

	if err := s.initClients(); err != nil {
		s.cleanup()
		return nil, err
	}

	s.machine = session.NewMachine(
		session.Config{ContextBudgetWords: s.config.ContextBudgetWords},
		session.Deps{
			Encyclopedia: corpus.NewWikipediaClient(s.config.EncyclopediaURL, nil),
			Papers:       corpus.NewArxivClient(s.config.PaperArchiveURL, nil, s.taxonomy),
			Store:        s.store,
			Keywords:     s.textIntel,
			Summarizer:   s.textIntel,
			Generator:    s.llmClient,
			Metrics:      s.metrics,
		})

	s.initRouter()

	return s, nil
}

// =============================================================================
// Service Interface Methods
// =============================================================================

// Run starts the HTTP server and blocks until shutdown or error.
func (s *service) Run() error {
	defer s.cleanup()

	addr := fmt.Sprintf(":%d", s.config.Port)
	slog.Info("Starting session server", "port", s.config.Port)

	return s.router.Run(addr)
}

// Router returns the underlying Gin engine for testing.
func (s *service) Router() *gin.Engine {
	return s.router
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

// applyConfigDefaults fills in missing configuration values.
func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 12220
	}
	if cfg.OTelEndpoint == "" {
		cfg.OTelEndpoint = "litora-otel-collector:4317"
	}
	return cfg
}

// initTracer initializes OpenTelemetry distributed tracing.
//
// # Description
//
// Sets up an OTLP trace exporter sending spans to the configured
// collector over insecure gRPC, appropriate for internal networks.
//
// # Outputs
//
//   - func(context.Context): Cleanup function to call on shutdown
//   - error: Non-nil if tracer setup fails
func (s *service) initTracer() (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(s.config.OTelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("session-service")))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	cleanup := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}

	return cleanup, nil
}

// initContentStore initializes the Weaviate-backed content store.
//
// # Description
//
// Creates a Weaviate client if WeaviateURL is configured and ensures
// the passage schema exists.
//
// # Limitations
//
//   - Returns an error if WeaviateURL is empty; the caller treats
//     that as a signal to run with the store disabled.
func (s *service) initContentStore() error {
	weaviateURL := strings.Trim(s.config.WeaviateURL, "\"' ")

	if weaviateURL == "" || !strings.Contains(weaviateURL, "http") {
		return fmt.Errorf("weaviate URL not configured")
	}

	parsedURL, err := url.Parse(weaviateURL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return fmt.Errorf("invalid Weaviate URL: %s", weaviateURL)
	}

	clientConf := weaviate.Config{
		Host:   parsedURL.Host,
		Scheme: parsedURL.Scheme,
	}

	s.weaviateClient, err = weaviate.NewClient(clientConf)
	if err != nil {
		return fmt.Errorf("failed to create Weaviate client: %w", err)
	}

	if err := contentstore.EnsureSchema(context.Background(), s.weaviateClient); err != nil {
		return fmt.Errorf("failed to ensure passage schema: %w", err)
	}

	s.store = contentstore.NewWeaviateStore(s.weaviateClient)
	slog.Info("Weaviate content store initialized", "url", weaviateURL)

	return nil
}

// initClients initializes the LLM, text-intelligence, and taxonomy
// dependencies of the session machine.
func (s *service) initClients() error {
	llmClient, err := llm.NewOpenAIClient()
	if err != nil {
		return fmt.Errorf("failed to initialize LLM client: %w", err)
	}
	s.llmClient = llmClient

	s.textIntel = llm.NewTextIntelClient(s.config.TextIntelURL)

	s.taxonomy, err = corpus.LoadTaxonomy()
	if err != nil {
		return fmt.Errorf("failed to load topic taxonomy: %w", err)
	}

	return nil
}

// initRouter sets up the Gin HTTP router with all routes.
func (s *service) initRouter() {
	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}

	s.router = gin.Default()
	s.router.Use(otelgin.Middleware("session-service"))

	routes.SetupRoutes(s.router, s.machine, s.taxonomy, s.metrics)
}

// cleanup releases all resources held by the service.
func (s *service) cleanup() {
	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
}

// =============================================================================
// Compile-time Interface Compliance
// =============================================================================

var _ Service = (*service)(nil)
