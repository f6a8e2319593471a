package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/HairScan-Mara/Scan-Service/cmd/middleware"
	"github.com/HairScan-Mara/Scan-Service/internal/api"
	"github.com/HairScan-Mara/Scan-Service/internal/api/handlers/contact"
	"github.com/HairScan-Mara/Scan-Service/internal/api/handlers/upload"
	"github.com/HairScan-Mara/Scan-Service/internal/configuration"
	natsroutes "github.com/HairScan-Mara/Scan-Service/internal/nats"
	"github.com/HairScan-Mara/Scan-Service/internal/services"
	"github.com/HairScan-Mara/Scan-Service/internal/services/infrastructure"
	"github.com/gin-gonic/gin"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"
)

func main() {
	cfg := configuration.Load()

	tracer.Start(tracer.WithService("scan-service"))
	defer tracer.Stop()

	// Record store: one pool for the process lifetime, drained on exit.
	if err := infrastructure.InitializePostgres(cfg.Database); err != nil {
		log.Fatalf("Failed to initialize PostgreSQL: %v", err)
	}
	defer func() {
		if err := infrastructure.GetPostgres().Close(); err != nil {
			log.Printf("Warning: failed to close PostgreSQL pool: %v", err)
		}
	}()

	if err := services.InitializeMinio(
		cfg.MinIO.Endpoint,
		cfg.MinIO.AccessKey,
		cfg.MinIO.SecretKey,
		cfg.MinIO.BucketName,
		cfg.MinIO.UseSSL,
	); err != nil {
		log.Fatalf("Failed to initialize MinIO: %v", err)
	}

	// Events are useful but not load-bearing; run without them if NATS is
	// down.
	if _, _, err := services.ConnectNATS(cfg.NATSURL); err != nil {
		log.Printf("Warning: failed to connect to NATS: %v", err)
	} else {
		defer services.CloseNATS()
		for subject, handler := range natsroutes.Routes(cfg) {
			// Durable names may not contain subject separators.
			durable := "scan-service-" + strings.ReplaceAll(subject, ".", "-")
			if _, err := services.SubscribeEvent(subject, durable, handler); err != nil {
				log.Printf("Warning: failed to subscribe to %s: %v", subject, err)
			}
		}
	}

	inference := services.NewInferenceGateway(cfg.Inference)
	if cfg.Inference.PredictURL == "" {
		log.Println("No inference endpoint configured, serving mock predictions")
	}

	contacts := services.NewContactsService(cfg.Contacts)

	store := infrastructure.GetPostgres()
	objects := services.GetMinioService()

	coordinator := &services.IngestionCoordinator{
		Store:     store,
		Objects:   objects,
		Inference: inference,
		Contacts:  contacts,
		Events:    services.PublishEvent,
	}

	var authMW gin.HandlerFunc
	if cfg.AuthURL != "" {
		if err := middleware.InitAuth(cfg.AuthURL); err != nil {
			log.Fatalf("Failed to initialize auth: %v", err)
		}
		authMW = middleware.RequireAuth()
	}

	r := gin.Default()
	api.RegisterRoutes(r,
		upload.NewHandler(objects, store, coordinator),
		contact.NewHandler(contacts),
		authMW,
	)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("Server starting on :%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Warning: server shutdown: %v", err)
	}
}
