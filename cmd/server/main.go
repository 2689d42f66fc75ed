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

	_ "github.com/go-kivik/kivik/v4/couchdb"

	"github.com/go-kivik/kivik/v4"
	"go.uber.org/zap"

	"course-planner-sync/internal/config"
	"course-planner-sync/internal/conflict"
	"course-planner-sync/internal/handler"
	"course-planner-sync/internal/repository"
	"course-planner-sync/internal/service"
	"course-planner-sync/pkg/hash"
	"course-planner-sync/pkg/logger"
)

type repositories struct {
	users       repository.UserRepository
	preferences repository.PreferenceRepository
	courses     repository.CourseRepository
	schedules   repository.ScheduleRepository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zl, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zl.Sync()

	repos, err := openRepositories(context.Background(), cfg.Database, zl)
	if err != nil {
		zl.Fatal("failed to open store", zap.Error(err))
	}

	courseService := service.NewCourseService(repos.courses, zl)
	if cfg.Planner.SeedCourses {
		if _, err := courseService.Seed(context.Background()); err != nil {
			zl.Fatal("failed to seed courses", zap.Error(err))
		}
	}

	services := handler.Services{
		Auth: service.NewAuthService(repos.users, repos.preferences, hash.New(cfg.JWT.BcryptCost), zl,
			cfg.JWT.Secret, cfg.JWT.Expiration, cfg.JWT.RefreshTokenExpiration),
		Users:       service.NewUserService(repos.users),
		Preferences: service.NewPreferenceService(repos.users, repos.preferences),
		Courses:     courseService,
		Schedules: service.NewScheduleService(repos.schedules, repos.courses, repos.preferences,
			conflict.NewDetector(cfg.Planner.ConflictPolicy), zl),
	}

	r := handler.NewRouter(services, cfg.JWT.Secret, handler.CORS{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		AllowedMethods: cfg.CORS.AllowedMethods,
		AllowedHeaders: cfg.CORS.AllowedHeaders,
	}, zl)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		zl.Info("starting course planner server",
			zap.String("addr", addr),
			zap.String("env", cfg.Server.Env),
			zap.String("db_driver", cfg.Database.Driver),
			zap.String("conflict_policy", string(cfg.Planner.ConflictPolicy)),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zl.Fatal("server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zl.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zl.Fatal("server forced to shutdown", zap.Error(err))
	}

	zl.Info("server stopped gracefully")
}

func openRepositories(ctx context.Context, db config.DatabaseConfig, zl *zap.Logger) (*repositories, error) {
	if db.Driver == "memory" {
		store := repository.NewMemoryStore()
		return &repositories{
			users:       store.Users(),
			preferences: store.Preferences(),
			courses:     store.Courses(),
			schedules:   store.Schedules(),
		}, nil
	}

	client, err := kivik.New("couch", db.CouchURL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to CouchDB: %w", err)
	}

	created, err := repository.EnsureDatabase(ctx, client, db.Name)
	if err != nil {
		return nil, err
	}
	if created {
		zl.Info("created database", zap.String("name", db.Name))
	}

	return &repositories{
		users:       repository.NewUserRepository(client, db.Name),
		preferences: repository.NewPreferenceRepository(client, db.Name),
		courses:     repository.NewCourseRepository(client, db.Name),
		schedules:   repository.NewScheduleRepository(client, db.Name),
	}, nil
}
