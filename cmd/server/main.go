/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the loyalty progression server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Read environment config, apply flag overrides
  2. Load the catalog (YAML file or built-in default)
  3. Initialize SQLite event store
  4. Wire service, handler, router
  5. Start server with graceful shutdown

CONFIGURATION:
  Environment variables (flags override them):
    PORT          HTTP server port (default: 8080)
    DB_PATH       SQLite database path (default: loyalty.db, ":memory:" ok)
    CATALOG_PATH  YAML catalog file (default: built-in catalog)

COMMAND-LINE FLAGS:
  -port     HTTP server port
  -db       SQLite database path
  -catalog  YAML catalog file

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database and the built-in catalog
  ./server -db="./data/loyalty.db"

  # Run with an in-memory database and a custom catalog
  ./server -db=":memory:" -catalog="./catalog.yaml"

SEE ALSO:
  - api/server.go: Router configuration
  - service/service.go: The mutation boundary
  - store/sqlite/sqlite.go: Event store implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/wandertrip/loyalty-engine/api"
	"github.com/wandertrip/loyalty-engine/catalog"
	"github.com/wandertrip/loyalty-engine/service"
	"github.com/wandertrip/loyalty-engine/store/sqlite"
)

type config struct {
	Port        int    `env:"PORT" envDefault:"8080"`
	DBPath      string `env:"DB_PATH" envDefault:"loyalty.db"`
	CatalogPath string `env:"CATALOG_PATH"`
}

func main() {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("Failed to read environment: %v", err)
	}

	// Flags override the environment.
	port := flag.Int("port", cfg.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.DBPath, "SQLite database path")
	catalogPath := flag.String("catalog", cfg.CatalogPath, "YAML catalog file (empty for built-in)")
	flag.Parse()

	// Load catalog
	var (
		cat *catalog.Catalog
		err error
	)
	if *catalogPath != "" {
		cat, err = catalog.LoadFile(*catalogPath)
		if err != nil {
			log.Fatalf("Failed to load catalog %s: %v", *catalogPath, err)
		}
		log.Printf("Catalog loaded from %s", *catalogPath)
	} else {
		cat = catalog.Default()
		log.Printf("Using built-in catalog")
	}

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Wire service and router
	svc := service.New(store, cat)
	handler := api.NewHandler(svc)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on http://localhost:%d", *port)
		log.Printf("API available at http://localhost:%d/api", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
