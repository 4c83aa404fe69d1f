package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"commauth/internal/audit"
	"commauth/internal/config"
	"commauth/internal/credentials"
	"commauth/internal/db"
	"commauth/internal/db/migrate"
	"commauth/internal/handler"
	"commauth/internal/session/repository"
	"commauth/internal/session/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	keys, err := cfg.Keys()
	if err != nil {
		log.Fatalf("keys: %v", err)
	}

	if err := migrate.Run(cfg.DatabaseURL, "up"); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatalf("migrate: %v", err)
	}

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer database.Close()

	repo := repository.NewPostgresRepository(database)
	svc := service.New(repo, audit.NewDBLogger(database))

	translations, err := credentials.LoadTranslations()
	if err != nil {
		log.Fatalf("translations: %v", err)
	}
	renderer, err := credentials.NewRenderer(translations)
	if err != nil {
		log.Fatalf("templates: %v", err)
	}

	var authHandler *handler.AuthHandler
	oauthProvider, err := cfg.Provider()
	if err != nil {
		log.Fatalf("auth provider: %v", err)
	}
	if oauthProvider != nil {
		authHandler = handler.NewAuthHandler(oauthProvider)
	} else {
		log.Println("no AUTH_PROVIDER configured; login routes disabled")
	}

	sessions := handler.NewSessionHandler(svc, repo, keys, renderer, handler.NewCoreClient(cfg.CoreURL), handler.URLs{
		Server:      cfg.ServerURL,
		Internal:    cfg.InternalURL,
		Widget:      cfg.WidgetURL,
		DisplayName: cfg.DisplayName,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.NewRouter(authHandler, sessions),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.RunSweeper(ctx, cfg.CleanIntervalDuration())

	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down HTTP server...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	log.Println("HTTP server stopped")
}
