package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"anoa.com/mediagallery/internal/bootstrap"
	"anoa.com/mediagallery/internal/config"
	"anoa.com/mediagallery/internal/memstore"
	searchService "anoa.com/mediagallery/internal/modules/search/service"
	"anoa.com/mediagallery/internal/server"
	"anoa.com/mediagallery/pkg/database"
	"anoa.com/mediagallery/pkg/logger"
	"anoa.com/mediagallery/pkg/storage"
	"github.com/gin-gonic/gin"
	"github.com/meilisearch/meilisearch-go"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}

	logger.Init(logger.Options{
		Level:      cfg.LogLevel,
		File:       cfg.LogFile,
		MaxSize:    cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAge:     cfg.LogMaxAgeDays,
	})

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, err := openStores(cfg)
	if err != nil {
		logrus.Fatalf("failed to open stores: %v", err)
	}

	if !cfg.IsProduction() {
		if _, err := bootstrap.SeedUser(ctx, stores.Users, cfg.SeedUsername, cfg.SeedPassword); err != nil {
			logrus.Fatalf("failed to seed user: %v", err)
		}
	}

	deps := server.Deps{Stores: stores}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logrus.Fatalf("invalid REDIS_URL: %v", err)
		}
		rdb := redis.NewClient(opts)
		if err := rdb.Ping(ctx).Err(); err != nil {
			logrus.WithError(err).Warn("redis unreachable, continuing without cache and rate limits")
			_ = rdb.Close()
		} else {
			defer rdb.Close()
			deps.Redis = rdb
		}
	}

	if cfg.MeiliSearchHost != "" {
		client := meilisearch.New(cfg.MeiliSearchHost, meilisearch.WithAPIKey(cfg.MeiliMasterKey))
		deps.Index = searchService.NewMeiliSearchService(client)
	}

	if cfg.CloudinaryEnabled() {
		cdn, err := storage.NewCloudinaryStorage(storage.Options{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		})
		if err != nil {
			logrus.Fatalf("failed to initialize cloudinary storage: %v", err)
		}
		deps.Storage = cdn
	} else {
		logrus.Warn("cloudinary is not configured, media binaries are kept in memory")
	}

	srv, err := server.NewServer(cfg, deps)
	if err != nil {
		logrus.Fatalf("failed to build server: %v", err)
	}

	if err := srv.Run(ctx, ":"+cfg.Port); err != nil {
		logrus.Fatalf("server exited with error: %v", err)
	}
}

func openStores(cfg *config.Config) (server.Stores, error) {
	if cfg.StoreDriver == config.DriverMemory {
		logrus.Warn("using the in-memory store, data is lost on restart")
		return server.MemoryStores(memstore.New()), nil
	}

	db, err := database.Connect(database.Options{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPass,
		Name:     cfg.DBName,
		Debug:    !cfg.IsProduction(),
	})
	if err != nil {
		return server.Stores{}, err
	}

	if err := bootstrap.Migrate(db); err != nil {
		return server.Stores{}, err
	}

	return server.PostgresStores(db), nil
}
