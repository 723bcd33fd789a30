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

	"timetable-api/config"
	"timetable-api/handlers"
	"timetable-api/services"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	log.Println("Start service")
	// .env is optional in production
	_ = godotenv.Load()

	cfg := config.Load()
	loc := cfg.Location()

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		defer redisClient.Close()
	}

	log.Println("init services")
	store, closeStore, err := newStore(cfg, redisClient)
	if err != nil {
		log.Fatalf("Failed to initialize %s store: %v", cfg.StoreBackend, err)
	}
	defer closeStore()

	upstream, err := newUpstream(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize %s upstream: %v", cfg.UpstreamSource, err)
	}
	fetcher := services.NewRetryingFetcher(upstream, services.RetryPolicy{
		Timeout:     cfg.RequestTimeout,
		MaxAttempts: cfg.MaxRetries,
		Delay:       cfg.RetryDelay,
	})

	notifier := services.MultiNotifier{services.LogNotifier{}}
	if cfg.NotifyChannel != "" {
		if redisClient == nil {
			log.Fatalf("NOTIFY_CHANNEL is set but REDIS_ADDR is empty")
		}
		notifier = append(notifier, services.NewRedisNotifier(redisClient, cfg.NotifyChannel))
	}

	coordinator := services.NewRefreshCoordinator(store, fetcher, notifier)
	timetableService := services.NewTimetableService(store)
	exportService := services.NewExportService(timetableService, loc)

	if cfg.DailyRefreshAt != "" {
		daily, err := services.NewDailyRefresher(coordinator, cfg.DailyRefreshAt, loc)
		if err != nil {
			log.Fatalf("Failed to configure daily refresh: %v", err)
		}
		daily.Start()
		defer daily.Stop()
	}

	log.Println("init handlers")
	h := handlers.Handlers{
		Timetable: handlers.NewTimetableHandler(timetableService, exportService, loc),
		Refresh:   handlers.NewRefreshHandler(coordinator),
		Status:    handlers.NewStatusHandler(timetableService, cfg.Version),
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	log.Println("init router")
	router := handlers.NewRouter(h, cfg.AllowedOrigins)

	// refresh may hold a request for the whole upstream round trip
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	log.Println("Server exited")
}

func newStore(cfg *config.Config, redisClient *redis.Client) (services.CacheStore, func(), error) {
	noop := func() {}
	switch cfg.StoreBackend {
	case "memory":
		return services.NewCacheService(), noop, nil
	case "sqlite":
		store, err := services.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, noop, err
		}
		return store, func() { _ = store.Close() }, nil
	case "minio":
		minioService, err := services.NewMinIOService(cfg)
		if err != nil {
			return nil, noop, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
		defer cancel()
		if err := minioService.EnsureBucket(ctx); err != nil {
			return nil, noop, err
		}
		return services.NewMinIOStore(minioService, cfg.MinIOObjectKey), noop, nil
	case "redis":
		if redisClient == nil {
			return nil, noop, errors.New("REDIS_ADDR is required for the redis store")
		}
		return services.NewRedisStore(redisClient, cfg.RedisKeyPrefix), noop, nil
	}
	return nil, noop, errors.New("unknown STORE_BACKEND " + cfg.StoreBackend)
}

func newUpstream(cfg *config.Config) (services.Fetcher, error) {
	switch cfg.UpstreamSource {
	case "portal":
		var solver services.CaptchaSolver
		if cfg.CaptchaAPIURL != "" {
			solver = services.NewHTTPCaptchaSolver(cfg.CaptchaAPIURL, cfg.CaptchaAPIKey, &http.Client{Timeout: cfg.RequestTimeout})
		}
		return services.NewPortalFetcher(services.PortalConfig{
			BaseURL:       cfg.PortalBaseURL,
			LoginPath:     cfg.PortalLoginPath,
			TimetablePath: cfg.PortalTimetablePath,
			Username:      cfg.PortalUsername,
			Password:      cfg.PortalPassword,
		}, solver, nil), nil
	case "xlsx-file":
		return services.NewFileSpreadsheetFetcher(cfg.XLSXSourcePath), nil
	case "xlsx-minio":
		minioService, err := services.NewMinIOService(cfg)
		if err != nil {
			return nil, err
		}
		return services.NewMinIOSpreadsheetFetcher(minioService, cfg.XLSXSourcePath), nil
	}
	return nil, errors.New("unknown UPSTREAM_SOURCE " + cfg.UpstreamSource)
}
