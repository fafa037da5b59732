package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"fridgedoor/internal/config"
	"fridgedoor/internal/database"
	"fridgedoor/internal/handler"
	"fridgedoor/internal/logging"
	"fridgedoor/internal/repository"
)

func main() {
	// .envファイルを読み込み
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  .env file not found, using default values: %v", err)
	}

	// 環境変数と config.yaml を読み込み
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("❌ Failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, defaultSteps); err != nil {
		logger.Fatal("❌ Server stopped", zap.Error(err))
	}
}

// steps are the startup stages run goes through; tests replace them.
type steps struct {
	openDB  func(config.Config, *zap.Logger) (*sql.DB, error)
	migrate func(context.Context, *sql.DB, *zap.Logger) error
	serve   func(*http.Server) error
}

var defaultSteps = steps{
	openDB:  database.Init,
	migrate: database.Migrate,
	serve:   (*http.Server).ListenAndServe,
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger, s steps) error {
	// データベース接続を初期化
	db, err := s.openDB(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	// マイグレーションに失敗したらリクエストを受け付けずに終了する
	if err := s.migrate(ctx, db, logger); err != nil {
		return fmt.Errorf("database migrations failed: %w", err)
	}

	h := handler.New(repository.NewMySQLRepository(db), cfg, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           h.HTTPHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("🚀 Fridge Door API Server started",
		zap.String("env", cfg.Env),
		zap.String("addr", "http://localhost:"+cfg.ServerPort),
		zap.String("static_dir", cfg.StaticDir),
		zap.Strings("allowed_origins", cfg.AllowedOrigins),
		zap.Bool("metrics", cfg.MetricsEnabled),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.serve(srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
