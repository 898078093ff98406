package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/playku/playku/internal/database"
	"github.com/playku/playku/internal/geoip"
	"github.com/playku/playku/internal/server"
	"github.com/playku/playku/internal/shop"
	"github.com/playku/playku/internal/shopify"
	"github.com/playku/playku/internal/storage"
)

func main() {
	port := getEnv("PORT", "8080")

	databaseURL := requireEnv("DATABASE_URL")
	apiKey := requireEnv("SHOPIFY_API_KEY")
	apiSecret := requireEnv("SHOPIFY_API_SECRET")

	tokenKey, err := shop.ParseKey(requireEnv("TOKEN_ENCRYPTION_KEY"))
	if err != nil {
		log.Fatalf("TOKEN_ENCRYPTION_KEY: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := database.Connect(ctx, databaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := db.Migrate(databaseURL); err != nil {
		log.Fatalf("database migration failed: %v", err)
	}
	log.Println("database migrations applied")

	baseURL := strings.TrimRight(getEnv("BASE_URL", "http://localhost:8080"), "/")
	maxUploadBytes := getEnvInt64("MAX_UPLOAD_BYTES", 20*1024*1024)

	cfg := server.Config{
		DB:                db.Pool,
		Pinger:            db,
		TokenSealer:       shop.NewSealer(tokenKey),
		HTTPClient:        &http.Client{Timeout: 30 * time.Second},
		ShopifyAPIKey:     apiKey,
		ShopifyAPISecret:  apiSecret,
		ShopifyAPIVersion: getEnv("SHOPIFY_API_VERSION", shopify.DefaultAPIVersion),
		BaseURL:           baseURL,
		MaxUploadBytes:    maxUploadBytes,
		InjectAssetDir:    os.Getenv("INJECT_ASSET_DIR"),
		ProxyMaxAge:       time.Duration(getEnvInt64("PROXY_MAX_AGE_SECONDS", 300)) * time.Second,
	}

	if endpoint := os.Getenv("S3_ENDPOINT"); endpoint != "" {
		store, err := storage.New(ctx, storage.Config{
			Endpoint:       endpoint,
			PublicEndpoint: os.Getenv("S3_PUBLIC_ENDPOINT"),
			PublicBaseURL:  os.Getenv("S3_PUBLIC_BASE_URL"),
			Bucket:         getEnv("S3_BUCKET", "playku"),
			AccessKey:      os.Getenv("S3_ACCESS_KEY"),
			SecretKey:      os.Getenv("S3_SECRET_KEY"),
			Region:         getEnv("S3_REGION", "us-east-1"),
			MaxUploadBytes: maxUploadBytes,
		})
		if err != nil {
			log.Fatalf("storage initialization failed: %v", err)
		}
		if err := store.EnsureBucket(ctx); err != nil {
			log.Fatalf("storage bucket check failed: %v", err)
		}
		if err := store.SetCORS(ctx, adminOrigins(baseURL)); err != nil {
			log.Printf("storage CORS not applied: %v", err)
		}
		cfg.Storage = store
		cfg.StorageEndpoint = originOf(getEnv("S3_PUBLIC_ENDPOINT", endpoint))
		log.Println("storage bucket ready")
	} else {
		log.Println("S3_ENDPOINT not set, clip uploads disabled")
	}

	geo, err := geoip.New(os.Getenv("GEOIP_DB_PATH"))
	if err != nil {
		log.Fatalf("geoip initialization failed: %v", err)
	}
	defer func() { _ = geo.Close() }()
	if geo.Enabled() {
		cfg.Geo = geo
	}

	if dir := os.Getenv("ADMIN_DIR"); dir != "" {
		if _, err := fs.Stat(os.DirFS(dir), "index.html"); err == nil {
			cfg.AdminFS = os.DirFS(dir)
			log.Printf("serving admin app from %s", dir)
		} else {
			log.Printf("ADMIN_DIR %s has no index.html, admin app disabled", dir)
		}
	}

	srv := server.New(cfg)

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()
	srv.Start(bgCtx)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("playku listening on :%s", port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-shutdownCh
	log.Println("shutting down...")
	bgCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("shutdown failed: %v", err)
	}
	log.Println("shutdown complete")
}

// adminOrigins are the origins the admin uploads clips from.
func adminOrigins(baseURL string) []string {
	origins := []string{"https://admin.shopify.com"}
	if o := originOf(baseURL); o != "" {
		origins = append(origins, o)
	}
	return origins
}

func originOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

func requireEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		log.Fatalf("%s is required", key)
	}
	return value
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}
