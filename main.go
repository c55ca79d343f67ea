package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gradient/config"
	"gradient/handler"
	"gradient/middleware"
	"gradient/repository"
	"gradient/services"
	"gradient/usecase"
	"gradient/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
)

type app struct {
	cfg      *config.Config
	store    repository.Store
	media    *services.MediaPipeline
	notifier usecase.Notifier
	closers  []func(context.Context)
}

func (a *app) close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i](ctx)
	}
}

// openStore connects the document store and, for mongo, ensures indexes.
func openStore(ctx context.Context, cfg *config.Config) (repository.Store, *mongo.Database, func(context.Context), error) {
	if cfg.Store == config.StoreMemory {
		utils.Log.Warn("using in-memory store, data is lost on exit")
		return repository.NewMemoryStore(), nil, func(context.Context) {}, nil
	}

	db := cfg.Database
	client, err := utils.NewMongoClient(ctx, utils.MongoClientOptions{
		URI:             db.URI,
		MaxPoolSize:     db.MaxPoolSize,
		MinPoolSize:     db.MinPoolSize,
		MaxConnIdleTime: db.MaxConnIdleTime,
		RetryWrites:     db.RetryWrites,
		ConnectTimeout:  db.ConnectTimeout,
	})
	if err != nil {
		return nil, nil, nil, err
	}
	disconnect := func(ctx context.Context) {
		if err := client.Disconnect(ctx); err != nil {
			utils.Log.WithError(err).Warn("mongo disconnect failed")
		}
	}

	store := repository.NewMongoStore(client, db.DatabaseName)
	if err := repository.SetupIndexes(ctx, store.Database()); err != nil {
		disconnect(ctx)
		return nil, nil, nil, err
	}
	return store, store.Database(), disconnect, nil
}

// openMedia builds the upload pipeline on GridFS or the local filesystem.
func openMedia(cfg config.MediaConfig, db *mongo.Database) (*services.MediaPipeline, error) {
	var blobs services.BlobStore
	switch cfg.Backend {
	case config.MediaGridFS:
		store, err := services.NewGridFSStore(db, cfg.Bucket)
		if err != nil {
			return nil, err
		}
		blobs = store
	default:
		store, err := services.NewLocalStore(cfg.Dir)
		if err != nil {
			return nil, err
		}
		blobs = store
	}

	pipeline := services.NewMediaPipeline(blobs, services.NewImageThumbnailer())
	if cfg.MirrorDir != "" {
		mirror, err := services.NewLocalStore(cfg.MirrorDir)
		if err != nil {
			return nil, err
		}
		pipeline.WithMirror(mirror)
	}
	return pipeline, nil
}

func setup(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}

	store, db, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.store = store
	a.closers = append(a.closers, closeStore)

	media, err := openMedia(cfg.Media, db)
	if err != nil {
		a.close(ctx)
		return nil, err
	}
	a.media = media

	if cfg.Redis.URL != "" {
		client, err := services.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			a.close(ctx)
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) { client.Close() })
		a.notifier = services.NewRedisReminders(client)
	} else {
		utils.Log.Info("REDIS_URL not set, task reminders are disabled")
	}
	return a, nil
}

func setupRouter(a *app) *gin.Engine {
	router := gin.New()
	router.Use(middleware.RecoveryMiddleware())
	router.Use(middleware.LoggingMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.CORSMiddleware(a.cfg.Server.AllowedOrigins))
	router.Use(middleware.RateLimitMiddleware(a.cfg.Server.RateLimitRPS, a.cfg.Server.RateLimitBurst))

	router.GET("/health", func(c *gin.Context) {
		handler.HealthHandler(c, a.store)
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Protected routes (authentication required when a secret is set)
	api := router.Group("/api")
	api.Use(middleware.AuthMiddleware(a.cfg.Auth.JWTSecret))
	handler.RegisterRoutes(api, handler.Services{
		Projects:       usecase.NewProjectsService(a.store, a.media, a.notifier),
		Tasks:          usecase.NewTasksService(a.store, a.notifier),
		Notes:          usecase.NewNotesService(a.store, a.media),
		MaxUploadBytes: a.cfg.Server.MaxUploadBytes,
	})

	return router
}

var rootCmd = &cobra.Command{
	Use:   "gradient",
	Short: "Project, task and note sync server",
	Long: `gradient serves projects with their tasks and notes over HTTP and
streams live lists of them to clients. Configuration comes from the
environment and an optional .env file.`,
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server (default)",
	RunE:  runServe,
}

var tokenTTL time.Duration

var tokenCmd = &cobra.Command{
	Use:   "token <subject>",
	Short: "Print an API token signed with JWT_SECRET_KEY",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		token, err := services.IssueToken(cfg.Auth.JWTSecret, args[0], tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 30*24*time.Hour, "token lifetime")
	rootCmd.AddCommand(serveCmd, tokenCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	utils.InitLogger(utils.LogOptions{
		Level:      cfg.Log.Level,
		JSON:       cfg.Log.JSON,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	})
	utils.InitValidator()
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}

	if reminders, ok := a.notifier.(*services.RedisReminders); ok {
		poller, err := services.NewReminderPoller(reminders, cfg.Redis.PollInterval, func(r services.Reminder) {
			utils.Component("reminders").WithFields(logrus.Fields{
				"task":  r.ID,
				"title": r.Title,
				"body":  r.Body,
			}).Info("reminder due")
		})
		if err != nil {
			a.close(ctx)
			return err
		}
		poller.Start()
		a.closers = append(a.closers, func(context.Context) {
			if err := poller.Stop(); err != nil {
				utils.Log.WithError(err).Warn("reminder poller shutdown failed")
			}
		})
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: setupRouter(a),
		// Open streams end with the signal context
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	serveErr := make(chan error, 1)
	go func() {
		utils.Log.WithField("addr", srv.Addr).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		utils.Log.Info("shutting down")
	case err := <-serveErr:
		stop()
		a.close(context.Background())
		return fmt.Errorf("server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.Log.WithError(err).Warn("server shutdown incomplete")
	}
	a.close(shutdownCtx)
	utils.Log.Info("server stopped")
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
