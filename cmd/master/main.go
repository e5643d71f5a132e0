package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/danpasecinic/harvester/internal/api"
	"github.com/danpasecinic/harvester/internal/archive"
	"github.com/danpasecinic/harvester/internal/jobs"
	"github.com/danpasecinic/harvester/internal/orchestrator"
	"github.com/danpasecinic/harvester/internal/registry"
)

func main() {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	store := initStore()
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("error closing store: %v", err)
		}
	}()

	docker := &jobs.DockerConnector{}
	defer func() {
		if err := docker.Close(); err != nil {
			log.Printf("error closing docker client: %v", err)
		}
	}()

	reg := registry.New()
	jobs.RegisterCatalog(
		reg, jobs.CatalogConfig{
			DockerEnabled: getEnvBool("DOCKER_ENABLED", true),
			ScraperImage:  os.Getenv("SCRAPER_IMAGE"),
			HTTPClient:    &http.Client{Timeout: 60 * time.Second},
			Connect:       docker.Connect,
		},
	)

	engine, err := orchestrator.New(orchestrator.ConfigFromEnv(), reg, orchestrator.WithArchive(store))
	if err != nil {
		log.Fatalf("failed to initialize orchestrator: %v", err)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	if err := engine.Start(ctx); err != nil {
		log.Fatalf("failed to start orchestrator: %v", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	api.NewServer(engine).RegisterRoutes(e)

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.Logger.Fatal("shutting down the server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("http server shutdown error: %v", err)
	}

	if err := engine.Shutdown(context.Background()); err != nil {
		log.Printf("orchestrator shutdown error: %v", err)
	}

	log.Println("server stopped")
}

// initStore initializes the session archive based on environment variables
func initStore() archive.Store {
	storeType := os.Getenv("STORE_TYPE")
	if storeType == "" {
		storeType = "memory" // default to in-memory
	}

	switch storeType {
	case "postgres":
		dbURL := os.Getenv("DATABASE_URL")
		if dbURL == "" {
			log.Fatal("DATABASE_URL environment variable is required when STORE_TYPE=postgres")
		}

		log.Printf("initializing PostgreSQL archive with connection: %s", maskPassword())
		pgStore, err := archive.NewPostgresStore(dbURL)
		if err != nil {
			log.Fatalf("failed to initialize PostgreSQL archive: %v", err)
		}

		log.Println("PostgreSQL archive initialized successfully")
		return pgStore

	case "memory":
		log.Println("using in-memory archive (history will not persist)")
		return archive.NewInMemoryStore()

	default:
		log.Fatalf("unknown STORE_TYPE: %s (valid options: memory, postgres)", storeType)
		return nil
	}
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// maskPassword masks the password in a database URL for logging
func maskPassword() string {
	return "***masked***"
}
