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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/ilyakaznacheev/cleanenv"

	"github.com/apdi/blobstore/pkg/blobstore/api"
	"github.com/apdi/blobstore/pkg/blobstore/config"
)

const apiVersion = "v1"

// serverEnv holds the process-level settings read directly from the
// environment; everything service-related goes through config.WithEnv.
type serverEnv struct {
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" env-default:"10s"`
}

func main() {
	var env serverEnv
	if err := cleanenv.ReadEnv(&env); err != nil {
		log.Fatalf("Failed to read environment: %v", err)
	}

	serverConfig, err := config.Load(config.WithEnv(""))
	if err != nil {
		log.Fatalf("Failed to load server configuration: %v", err)
	}

	svc, shutdownService, err := serverConfig.BuildService(context.Background())
	if err != nil {
		log.Fatalf("Failed to build service: %v", err)
	}
	defer shutdownService()

	handler := api.NewHandler(svc)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/", statusHandler)
	r.Route("/api/"+apiVersion, func(r chi.Router) {
		r.Get("/status", statusHandler)
		r.Mount("/blobs", handler.Routes())
	})

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", serverConfig.Port),
		Handler: r,
	}

	go func() {
		log.Printf("Blob server starting on port %s (env: %s)", serverConfig.Port, serverConfig.Environment)
		log.Printf("Metadata store: %s, content store: %s", serverConfig.DatabaseType, serverConfig.StorageType)

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), env.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting")
}

func statusHandler(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{
		"message": fmt.Sprintf("blob API %s up and running", apiVersion),
	})
}
