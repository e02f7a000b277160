package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/textlift/enhanced-ocr-service/api"
	"github.com/textlift/enhanced-ocr-service/internal/ai"
	"github.com/textlift/enhanced-ocr-service/internal/async"
	"github.com/textlift/enhanced-ocr-service/internal/auth"
	"github.com/textlift/enhanced-ocr-service/internal/db"
	"github.com/textlift/enhanced-ocr-service/internal/models"
	"github.com/textlift/enhanced-ocr-service/internal/ocr"
	"github.com/textlift/enhanced-ocr-service/internal/pipeline"
	"github.com/textlift/enhanced-ocr-service/internal/storage"
)

func main() {
	// Initialize JWT
	if err := auth.Init(); err != nil {
		log.Fatalf("Failed to initialize auth: %v", err)
	}
	log.Println("JWT authentication initialized")

	// Initialize database connection pool. Work items live here, so unlike
	// the AI providers this dependency is not optional.
	if err := db.Init(); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()
	log.Println("Database connection pool initialized")

	// Initialize MinIO storage
	if err := storage.Init(); err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	log.Println("MinIO storage initialized")

	// Load configuration
	config, err := loadConfig("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Assemble the processing pipeline
	store := db.NewStore(db.Pool)

	engine, err := ocr.NewEngine(config.OCR)
	if err != nil {
		log.Fatalf("Failed to initialize OCR engine: %v", err)
	}

	enhancer := ai.NewEnhancer(config.AI)
	if enhancer.Enabled() {
		log.Printf("AI enhancement enabled (provider: %s)", enhancer.ProviderName())
	} else {
		log.Println("AI enhancement disabled (no provider configured)")
	}

	orchestrator := pipeline.NewOrchestrator(
		store,
		storage.ObjectStore{},
		ocr.NewPreprocessor(),
		engine,
		enhancer,
	)

	queue := async.NewQueue(orchestrator,
		async.WithWorkers(config.Workers.Count),
		async.WithQueueSize(config.Workers.QueueSize),
		async.WithRunTimeout(time.Duration(config.Workers.TimeoutSeconds)*time.Second),
	)

	// Create API handler
	handler := api.NewHandler(config, store, queue, storage.Images{})
	router := handler.SetupRoutes()

	// Add login endpoint
	router.HandleFunc("/api/login", auth.LoginHandler).Methods("POST")

	// Wrap router with JWT middleware (skips /health and /api/login)
	protectedRouter := auth.JWTMiddleware(router)

	// Start server
	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{Addr: addr, Handler: protectedRouter}

	go func() {
		log.Printf("Starting Enhanced OCR Service v%s on %s", api.Version, addr)
		log.Printf("OCR Engine: %s", config.OCR.Engine)
		log.Printf("Default AI Provider: %s", config.AI.DefaultProvider)
		log.Printf("Workers: %d", config.Workers.Count)
		log.Printf("Endpoints:")
		log.Printf("  POST http://%s/api/login        - Authenticate", addr)
		log.Printf("  POST http://%s/api/upload       - Upload images (requires JWT)", addr)
		log.Printf("  GET  http://%s/api/result/{id}  - Processing result (requires JWT)", addr)
		log.Printf("  GET  http://%s/api/images       - List images (requires JWT)", addr)
		log.Printf("  DELETE http://%s/api/image/{id} - Delete image (requires JWT)", addr)
		log.Printf("  GET  http://%s/health           - Health check", addr)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Let in-flight pipeline runs finish before exiting
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	server.Shutdown(ctx)
	queue.Shutdown(ctx)
	log.Println("Shutdown complete")
}

func loadConfig(path string) (*models.Config, error) {
	// Read config file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML
	var config models.Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables if present
	if port := os.Getenv("PORT"); port != "" {
		fmt.Sscanf(port, "%d", &config.Port)
	}
	if host := os.Getenv("HOST"); host != "" {
		config.Host = host
	}
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.AI.OpenAI.APIKey = apiKey
	}
	if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		config.AI.Gemini.APIKey = apiKey
	}
	if provider := os.Getenv("AI_PROVIDER"); provider != "" {
		config.AI.DefaultProvider = provider
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		config.AI.OpenAI.BaseURL = baseURL
	}
	if model := os.Getenv("OPENAI_MODEL"); model != "" {
		config.AI.OpenAI.Model = model
	}
	if model := os.Getenv("GEMINI_MODEL"); model != "" {
		config.AI.Gemini.Model = model
	}
	if engine := os.Getenv("OCR_ENGINE"); engine != "" {
		config.OCR.Engine = engine
	}

	return &config, nil
}
