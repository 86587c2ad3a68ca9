package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	ginGzip "github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/samber/lo"

	"hintwheel/internal/constants"
	"hintwheel/internal/handlers"
	"hintwheel/internal/locks"
	"hintwheel/internal/models"
	"hintwheel/internal/quota"
	"hintwheel/internal/selection"
	"hintwheel/internal/store"
	"hintwheel/internal/util"
)

func main() {
	_ = godotenv.Load()

	isProduction := os.Getenv("GIN_MODE") == "release" || os.Getenv("ENV") == "production"
	util.LogInfo("Starting hintwheel in %s mode", map[bool]string{true: "production", false: "development"}[isProduction])

	adminPassword := os.Getenv("ADMIN_PASSWORD")
	if adminPassword == "" {
		util.LogWarn("ADMIN_PASSWORD is not set, admin endpoints will reject every request")
	}

	dbPath := util.GetEnvString("DB_PATH", filepath.Join("data", "hintwheel.db"))
	db, err := store.Open(dbPath)
	if err != nil {
		util.LogFatal("Failed to open database: %v", err)
	}
	util.LogInfo("Connected to SQLite database at %s", dbPath)

	hints := store.NewHintStore(db)
	users := store.NewUserStore(db)
	history := store.NewHistoryStore(db)

	if err := seedHints(hints); err != nil {
		util.LogWarn("Failed to seed hints: %v", err)
	}

	policy := quota.Policy{
		MaxActions: util.GetEnvInt("QUOTA_MAX_ACTIONS", constants.DefaultMaxActions),
		Window:     util.GetEnvDuration("QUOTA_WINDOW", constants.DefaultQuotaWindow),
	}

	api := &handlers.API{
		Hints:          hints,
		Users:          users,
		History:        history,
		Picker:         selection.NewEngine(hints, history, policy.Window),
		SpinPolicy:     policy,
		AddPolicy:      policy,
		UserLocks:      locks.NewRegistry(),
		AdminPassword:  adminPassword,
		IsProduction:   isProduction,
		StartTime:      time.Now(),
		StaticCacheAge: util.GetEnvDuration("STATIC_CACHE_AGE", 5*time.Minute),
		RateLimitRPS:   util.GetEnvInt("RATE_LIMIT_RPS", 5),
		RateLimitBurst: util.GetEnvInt("RATE_LIMIT_BURST", 10),
	}

	router := gin.Default()

	router.Use(handlers.RequestIDMiddleware())
	router.Use(handlers.SecurityHeadersMiddleware())
	router.Use(ginGzip.Gzip(ginGzip.DefaultCompression,
		ginGzip.WithExcludedExtensions([]string{".svg", ".ico", ".png", ".jpg", ".jpeg", ".gif"})))
	router.Use(api.CacheHeadersMiddleware())

	if err := router.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		util.LogWarn("Failed to set trusted proxies: %v", err)
	}

	if util.DirExists("public") {
		util.LogInfo("Serving static assets from public/")
		router.Static("/public", "./public")
		router.StaticFile("/", filepath.Join("public", "index.html"))
		router.StaticFile("/admin.html", filepath.Join("public", "admin.html"))
	}

	router.GET(constants.RouteUserStatus, api.UserStatus)
	router.GET(constants.RouteRandomHint, api.RateLimitMiddleware(), api.RandomHint)
	router.POST(constants.RouteHints, api.RateLimitMiddleware(), api.AddHint)
	router.POST(constants.RouteAdminAll, api.AdminListHints)
	router.DELETE(constants.RouteAdminHint, api.AdminDeleteHint)
	router.PUT(constants.RouteAdminHint, api.AdminUpdateHint)
	router.GET(constants.RouteSpinHistory, api.SpinHistory)
	router.GET(constants.RouteHealthz, api.Healthz)

	startCleanupRoutines(api)

	startServer(router)
}

func seedHints(hints *store.HintStore) error {
	ctx := context.Background()

	count, err := hints.Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	data, err := os.ReadFile(filepath.Join("data", "hints.json"))
	if err != nil {
		if os.IsNotExist(err) {
			util.LogWarn("No seed file at data/hints.json, starting with an empty hint table")
			return nil
		}
		return err
	}

	var seed struct {
		Hints []models.Hint `json:"hints"`
	}
	if err := json.Unmarshal(data, &seed); err != nil {
		return err
	}

	valid := lo.Filter(seed.Hints, func(h models.Hint, _ int) bool {
		if strings.TrimSpace(h.Faculty) == "" || strings.TrimSpace(h.Text) == "" {
			util.LogWarn("Skipping seed hint with empty faculty or text")
			return false
		}
		return true
	})
	if err := hints.Seed(ctx, valid); err != nil {
		return err
	}
	util.LogInfo("Seeded %d hints from data/hints.json", len(valid))
	return nil
}

func startCleanupRoutines(api *handlers.API) {
	limiterTTL := util.GetEnvDuration("RATE_LIMITER_TTL", 1*time.Hour)

	go func() {
		ticker := time.NewTicker(30 * time.Minute)
		defer ticker.Stop()

		for range ticker.C {
			api.CleanupStaleLimiters(limiterTTL)
		}
	}()

	go func() {
		ticker := time.NewTicker(30 * time.Minute)
		defer ticker.Stop()

		for range ticker.C {
			if removed := api.UserLocks.Sweep(limiterTTL); removed > 0 {
				util.LogInfo("Cleaned up %d idle user locks", removed)
			}
		}
	}()

	util.LogInfo("Started cleanup routines for rate limiters and user locks")
}

func startServer(router *gin.Engine) {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	idleConnsClosed := make(chan struct{})
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, syscall.SIGINT, syscall.SIGTERM)
		<-sigint
		util.LogInfo("Shutdown signal received, shutting down server gracefully...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			util.LogWarn("HTTP server Shutdown: %v", err)
		}
		close(idleConnsClosed)
	}()

	util.LogInfo("Server starting on http://localhost:%s", port)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		util.LogFatal("Server failed to start: %v", err)
	}
	<-idleConnsClosed
	util.LogInfo("Server shutdown complete")
}
