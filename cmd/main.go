// 程序入口：仅负责读取配置、初始化依赖并启动服务；API 注册在 internal/api 以便扩展
package main

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"elevation-api/internal/api"
	"elevation-api/internal/cache"
	"elevation-api/internal/config"
	"elevation-api/internal/elevation"
	"elevation-api/internal/index"
	"elevation-api/internal/logger"
	"elevation-api/internal/metrics"
	"elevation-api/internal/middleware"
	"elevation-api/internal/migrate"
	"elevation-api/internal/store"
	"elevation-api/internal/utils"
)

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
	l := logger.Setup()
	l.Debug("log_init_ok")

	cfg := config.FromEnv()
	l.Debug("config_loaded",
		"tif_dir", cfg.TifDirectory,
		"index_dir", cfg.IndexDirectory,
		"cache_max", cfg.CacheMaxSize,
		"workers", cfg.MaxWorkers,
		"api_base", cfg.APIBase,
	)

	// 背景：索引必须在对外服务之前完整就绪；根目录不可用属于致命错误，进程直接退出
	ix, err := index.BuildOrLoad(cfg.TifDirectory, cfg.IndexDirectory)
	if err != nil {
		l.Error("index_init_error", "err", err)
		os.Exit(1)
	}
	metrics.IndexedTiles.Set(float64(ix.Len()))
	l.Info("index_ready", "tiles", ix.Len())

	// 可选统计库：未开启时查询路径完全不依赖数据库
	var st *store.Store
	if os.Getenv("STATS_DB_ENABLE") == "true" {
		db, err := utils.OpenPostgresFromEnv()
		if err != nil {
			l.Error("db_open_error", "err", err)
		} else if err := db.Ping(); err != nil {
			l.Error("db_ping_error", "err", err)
			_ = db.Close()
		} else {
			if err := migrate.EnsureSchema(db); err != nil {
				l.Error("schema_error", "err", err)
				_ = db.Close()
			} else {
				st = store.AttachDB(db)
				defer db.Close()
				l.Info("db_open_ok")
			}
		}
	} else {
		l.Info("stats_db_disabled")
	}

	rc := utils.OpenRedisFromEnv()
	if rc == nil {
		l.Info("redis_disabled")
	} else {
		l.Info("redis_enabled")
	}

	svc := elevation.NewService(ix, cache.NewLRU(cfg.CacheMaxSize), rc, cfg.MaxWorkers)

	mux := http.NewServeMux()
	apiMux := api.BuildRoutes(svc, st)
	mux.Handle(cfg.APIBase+"/", http.StripPrefix(cfg.APIBase, apiMux))
	mux.Handle(cfg.APIBase+"/metrics", metrics.Handler())

	handler := logger.AccessMiddleware(l)(mux)
	handler = middleware.Wrap(handler)
	s := &http.Server{Addr: cfg.Addr, Handler: handler}

	if os.Getenv("TLS_ENABLE") == "true" {
		certPath := os.Getenv("TLS_CERT_PATH")
		keyPath := os.Getenv("TLS_KEY_PATH")
		if certPath == "" {
			certPath = filepath.Join("data", "certs", "server.crt")
		}
		if keyPath == "" {
			keyPath = filepath.Join("data", "certs", "server.key")
		}
		_ = utils.EnsureSelfSignedCert(certPath, keyPath, "elevation-api.local")
		l.Info("listening_tls", "addr", cfg.Addr, "cert", certPath)
		_ = s.ListenAndServeTLS(certPath, keyPath)
		return
	}
	l.Info("listening", "addr", cfg.Addr)
	_ = s.ListenAndServe()
}
