package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"syllabus/api/internal/app"
	"syllabus/api/internal/config"
	"syllabus/api/internal/courseload"
	"syllabus/api/internal/notify"
	"syllabus/api/internal/search"
	"syllabus/api/internal/status"
	"syllabus/api/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	if err := os.MkdirAll(cfg.CoursesDir, 0o755); err != nil {
		log.Fatalf("failed to create courses dir: %v", err)
	}
	if err := os.MkdirAll(cfg.ReposDir, 0o755); err != nil {
		log.Fatalf("failed to create repos dir: %v", err)
	}

	dataStore := store.NewPostgresStore(db)

	pgfts := search.NewPgFTS(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
	}
	searchService := search.NewService(meiliClient, pgfts)
	if meiliClient != nil {
		defer meiliClient.Close()
	}

	var runStore *status.RedisStore
	if strings.TrimSpace(cfg.RedisURL) != "" {
		runStore, err = status.NewRedisStore(cfg.RedisURL, cfg.RunTTL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer runStore.Close()
	} else {
		log.Printf("WARNING: REDIS_URL not set, sync run status disabled")
	}

	notifyService := notify.NewService(notify.Config{
		Host:      cfg.SMTPHost,
		Port:      cfg.SMTPPort,
		Username:  cfg.SMTPUsername,
		Password:  cfg.SMTPPassword,
		From:      cfg.SMTPFrom,
		FromName:  cfg.SMTPFromName,
		Recipient: cfg.SMTPRecipient,
	})
	if !notifyService.IsConfigured() {
		log.Printf("SMTP not configured, sync failure alerts disabled")
	}

	gitSource := courseload.NewGitSource(cfg.ReposDir)
	var objectSource *courseload.ObjectSource
	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		objectSource, err = courseload.NewObjectSource(ctx, cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.CoursesDir, cfg.MinioUseSSL)
		if err != nil {
			log.Fatalf("object storage connection failed: %v", err)
		}
	} else {
		log.Printf("MINIO_ENDPOINT not set, object storage source disabled")
	}

	service := app.New(cfg, dataStore, runStore, searchService, notifyService, gitSource, objectSource)
	if err := service.Bootstrap(ctx); err != nil {
		log.Printf("WARNING: bootstrap error (will retry on next restart): %v", err)
	}

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Syllabus API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
