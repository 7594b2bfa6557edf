package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/mikeboe/deep-leads/pkg/config"
	"github.com/mikeboe/deep-leads/pkg/database"
	"github.com/mikeboe/deep-leads/pkg/embeddings"
	"github.com/mikeboe/deep-leads/pkg/research"
	"github.com/mikeboe/deep-leads/pkg/server"
	"github.com/mikeboe/deep-leads/pkg/vectorstore"
)

const version = "0.1.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	logger := cfg.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database Connection
	db, err := database.NewPostgresDB(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.InitSchema(ctx); err != nil {
		slog.Error("Failed to initialize schema", "error", err)
		os.Exit(1)
	}

	index := newLeadIndex(ctx, cfg, db)

	web, err := research.NewWeb(cfg, logger)
	if err != nil {
		slog.Error("Failed to init web tools", "error", err)
		os.Exit(1)
	}

	svc := server.NewService(db, func(jobLogger *slog.Logger) (*research.ResearchEngine, error) {
		engine, err := research.NewEngineFromConfig(context.Background(), cfg, jobLogger)
		if err != nil {
			return nil, err
		}
		engine.Index = index
		return engine, nil
	})
	svc.Index = index
	svc.Logger = logger

	mcpHandler := server.NewMCPHandler(server.NewMCPServer(web, index, version))
	handler := server.NewHandler(svc, mcpHandler)

	// Web Server Setup
	r := gin.Default()

	// CORS Setup
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"}, // Allow all for dev
		AllowMethods:     []string{"GET", "POST", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Mcp-Session-Id"},
		ExposeHeaders:    []string{"Content-Length", "Mcp-Session-Id"},
		AllowCredentials: true,
	}))

	handler.RegisterRoutes(r)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		slog.Info("Server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Failed to start server", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server shutdown failed", "error", err)
	}
	// running jobs write their final state before the pool closes
	svc.Wait()
}

// newLeadIndex prepares the lead vector table. Similarity search is disabled
// when no embedder is configured.
func newLeadIndex(ctx context.Context, cfg *config.Config, db *database.PostgresDB) *vectorstore.LeadIndex {
	embedder, err := embeddings.New(ctx, cfg)
	if err != nil {
		slog.Warn("Lead index disabled", "error", err)
		return nil
	}
	if err := db.EnsureVectorExtension(ctx); err != nil {
		slog.Warn("Lead index disabled", "error", err)
		return nil
	}
	if err := db.CreateEmbeddingsTable(ctx, cfg.CollectionName, embeddings.Dimensions); err != nil {
		slog.Warn("Lead index disabled", "error", err)
		return nil
	}
	index, err := vectorstore.NewLeadIndex(db.Pool, cfg.CollectionName, embedder)
	if err != nil {
		slog.Warn("Lead index disabled", "error", err)
		return nil
	}
	return index
}
