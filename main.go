package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"elearn_backend/helpers"
	"elearn_backend/helpers/auth"
	"elearn_backend/helpers/logs"
	"elearn_backend/modules/catalog"
	"elearn_backend/modules/notifications"
	"elearn_backend/modules/students"
	"elearn_backend/modules/watch"
	"elearn_backend/modules/web"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var (
	configPath = flag.String("config", "config.yaml", "path to the configuration file")
	issueToken = flag.String("issue-token", "", "print a 24h bearer token for the given student id and exit")
)

func init() {
	flag.Parse()
	helpers.ConfigFile = *configPath

	if !helpers.IsFFprobeInstalled() {
		logs.GetLogger().Warn(`ffprobe is not installed, course durations must be given explicitly`)
	}
}

// connectRedis returns nil when Redis is not configured or unreachable.
func connectRedis(ctx context.Context) *redis.Client {
	cfg := helpers.GetConfig().Redis
	if cfg.Addr == "" {
		return nil
	}
	logger := logs.GetLogger().WithFields(logrus.Fields{
		"module": "main",
		"addr":   cfg.Addr,
	})

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.WithError(err).Warn("Redis unreachable, using in-process locks and no rate limiting")
		client.Close()
		return nil
	}
	logger.Info("✓ Connected to Redis")
	return client
}

// reconcile periodically compares stored totals with the watch records and playlists.
func reconcile(ctx context.Context, interval time.Duration, fix bool, registry *students.Registry, playlists *catalog.Playlists) {
	logger := logs.GetLogger().WithFields(logrus.Fields{
		"module":   "main",
		"function": "reconcile",
	})
	if interval <= 0 {
		logger.Info("Reconciliation disabled")
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		drifts, err := registry.ReconcileWatchingHours(ctx, fix)
		if err != nil {
			logger.WithError(err).Error("Watching hours reconciliation failed")
		} else if len(drifts) > 0 {
			logger.WithField("students", len(drifts)).Warn("Watching hours drift detected")
		}

		lengths, err := playlists.ReconcileVideoLength(ctx, fix)
		if err != nil {
			logger.WithError(err).Error("Video length reconciliation failed")
		} else if len(lengths) > 0 {
			logger.WithField("playlists", len(lengths)).Warn("Playlist video length drift detected")
		}
	}
}

// run wires the services and blocks until the HTTP server stops.
func run() error {
	cfg := helpers.GetConfig()
	if err := logs.Configure(cfg.Log.Level, cfg.Log.Format); err != nil {
		return fmt.Errorf("log config: %w", err)
	}
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret)

	if *issueToken != "" {
		token, err := tokens.Generate(*issueToken, 24*time.Hour)
		if err != nil {
			return fmt.Errorf("issue token: %w", err)
		}
		fmt.Println(token)
		return nil
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is not set")
	}

	logs.GetLogger().Info(`Starting ...`)
	engine := helpers.GetXORM()
	// close properly
	defer engine.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := connectRedis(ctx)
	var locker watch.Locker
	if redisClient != nil {
		defer redisClient.Close()
		locker = watch.NewRedisLocker(redisClient)
	}

	opts := catalog.Options{MediaDir: cfg.App.MediaDir, HostImage: cfg.App.HostImage}
	registry := students.NewRegistry(engine)
	courses := catalog.NewCourses(engine, opts)
	playlists := catalog.NewPlaylists(engine)
	cart := catalog.NewCart(engine, opts)
	settings := notifications.NewSettings(engine)

	go reconcile(ctx, cfg.Jobs.ReconcileInterval, cfg.Jobs.ReconcileFix, registry, playlists)

	err := web.Run(ctx, web.Deps{
		Tokens:             tokens,
		Students:           registry,
		Tracker:            watch.NewTracker(engine, registry, courses, locker),
		Courses:            courses,
		Playlists:          playlists,
		Cart:               cart,
		Settings:           settings,
		Notifications:      notifications.NewService(engine, settings, registry, playlists, cart),
		Redis:              redisClient,
		AllowedOrigins:     cfg.App.AllowedOrigins,
		ProgressPerMinute:  cfg.Limits.ProgressPerMinute,
		DashboardPerMinute: cfg.Limits.DashboardPerMinute,
	}, cfg.App.WebPort)
	if err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	logs.GetLogger().Info("✓ Shut down cleanly")
	return nil
}

func main() {
	if err := run(); err != nil {
		logs.GetLogger().WithError(err).Error("Exiting")
		os.Exit(1)
	}
}
