package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth"
	"github.com/pubflow/pubflow/pkg/pubflow"
	"github.com/pubflow/pubflow/pkg/pubflow/api"
	"github.com/pubflow/pubflow/pkg/pubflow/config"
)

// newRegistry declares the content types served by this deployment.
func newRegistry() (*pubflow.Registry, error) {
	return pubflow.NewRegistry(
		pubflow.TypeDescriptor{
			Name:  "article",
			Title: "Article",
			Fields: []pubflow.Field{
				pubflow.FieldTitle, pubflow.FieldDescription, pubflow.FieldBody,
				pubflow.FieldImages, pubflow.FieldVideoLinks, pubflow.FieldStatus,
				pubflow.FieldAlias, pubflow.FieldPublishTime, pubflow.FieldAuthor,
				pubflow.FieldSection, pubflow.FieldTags,
			},
			Sitemap:         true,
			Feed:            true,
			FeedTitle:       "Articles",
			FeedDescription: "Most recent articles",
		},
		pubflow.TypeDescriptor{
			Name:     "page",
			Title:    "Page",
			Statuses: []pubflow.Status{pubflow.StatusUnpublished, pubflow.StatusPublished},
			Fields: []pubflow.Field{
				pubflow.FieldTitle, pubflow.FieldBody, pubflow.FieldImages,
				pubflow.FieldStatus, pubflow.FieldAlias, pubflow.FieldAuthor,
			},
			Sitemap: true,
		},
	)
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	registry, err := newRegistry()
	if err != nil {
		logger.Error("Failed to build content type registry", "error", err)
		os.Exit(1)
	}

	svc, err := cfg.BuildService(registry, pubflow.WithLogger(logger))
	if err != nil {
		logger.Error("Failed to build service", "error", err)
		os.Exit(1)
	}

	tokenAuth := api.NewTokenAuth(cfg.JWTSecret)

	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(jwtauth.Verifier(tokenAuth))
	r.Use(api.PrincipalCtx)

	r.Mount("/contents", api.NewContentHandler(svc).Routes())
	r.With(api.RequirePrincipal).Mount("/jobs", api.NewJobsHandler(svc).Routes())

	// Generated sitemap shards and feeds are served as plain files.
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(cfg.OutputDir))))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: r,
	}

	go func() {
		logger.Info("Server starting", "port", cfg.Port, "types", registry.Names())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("Server exiting")
}
