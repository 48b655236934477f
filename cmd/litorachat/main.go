// Copyright (C) 2025 Litora AI (engineering@litora.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command litorachat starts the LitoraChat session server.
//
// Configuration comes from flags, falling back to environment
// variables, falling back to built-in defaults.
//
// # Environment Variables
//
//   - LITORACHAT_PORT: HTTP server port (default: 12220)
//   - WEAVIATE_SERVICE_URL: Weaviate vector DB URL (optional)
//   - TEXT_INTEL_SERVICE_URL: Keyword/summarization service URL
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector (default: litora-otel-collector:4317)
//   - OPENAI_API_KEY / OPENAI_MODEL: LLM provider credentials
//   - LITORACHAT_LOG_DIR: Directory for JSON log files (optional)
//
// # Usage
//
//	# Build
//	go build -o litorachat ./cmd/litorachat
//
//	# Run
//	./litorachat serve --weaviate-url http://localhost:8080
package main

import (
	"log"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/LitoraAI/LitoraChat/pkg/logging"
	"github.com/LitoraAI/LitoraChat/services/orchestrator"
)

var (
	port               int
	weaviateURL        string
	textIntelURL       string
	otelEndpoint       string
	ginMode            string
	contextBudgetWords int
	logDir             string

	rootCmd = &cobra.Command{
		Use:   "litorachat",
		Short: "A retrieval-augmented chat session server",
		Long: `LitoraChat serves multi-turn chat sessions grounded in
encyclopedia articles, research paper abstracts, and uploaded files.`,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the session HTTP server",
		Run:   runServe,
	}
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}

func init() {
	serveCmd.Flags().IntVar(&port, "port",
		getEnvInt("LITORACHAT_PORT", 12220), "HTTP server port")
	serveCmd.Flags().StringVar(&weaviateURL, "weaviate-url",
		os.Getenv("WEAVIATE_SERVICE_URL"), "Weaviate vector database URL")
	serveCmd.Flags().StringVar(&textIntelURL, "text-intel-url",
		os.Getenv("TEXT_INTEL_SERVICE_URL"), "Keyword extraction and summarization service URL")
	serveCmd.Flags().StringVar(&otelEndpoint, "otel-endpoint",
		getEnvString("OTEL_EXPORTER_OTLP_ENDPOINT", "litora-otel-collector:4317"),
		"OpenTelemetry collector endpoint")
	serveCmd.Flags().StringVar(&ginMode, "gin-mode", "", "Gin framework mode (debug, release, test)")
	serveCmd.Flags().IntVar(&contextBudgetWords, "context-budget-words", 0,
		"Rolling prompt context budget in words (0 uses the default)")
	serveCmd.Flags().StringVar(&logDir, "log-dir",
		os.Getenv("LITORACHAT_LOG_DIR"), "Directory for JSON log files (empty disables file logging)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) {
	logCloser, err := logging.Setup(logging.Config{
		Service: "session-service",
		JSON:    true,
		LogDir:  logDir,
	})
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logCloser.Close()

	cfg := orchestrator.Config{
		Port:               port,
		WeaviateURL:        weaviateURL,
		TextIntelURL:       textIntelURL,
		OTelEndpoint:       otelEndpoint,
		GinMode:            ginMode,
		ContextBudgetWords: contextBudgetWords,
	}

	slog.Info("Starting LitoraChat",
		"port", cfg.Port,
		"weaviate_url", cfg.WeaviateURL,
	)

	svc, err := orchestrator.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create session service: %v", err)
	}

	if err := svc.Run(); err != nil {
		log.Fatalf("Session server error: %v", err)
	}
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
