package main

import (
	"os"

	"github.com/joho/godotenv"

	"elevation-api/internal/config"
	"elevation-api/internal/index"
	"elevation-api/internal/logger"
)

// 文档注释：离线预构建空间索引
// 背景：大瓦片库的全量扫描可能耗时数分钟，部署前离线生成清单可让服务进程秒级启动。
// 约束：清单与瓦片集必须同代；瓦片增删后需要重跑本工具。
func main() {
	_ = godotenv.Load(".env")
	l := logger.Setup()
	cfg := config.FromEnv()

	ix, err := index.Build(cfg.TifDirectory)
	if err != nil {
		l.Error("index_build_error", "err", err)
		os.Exit(1)
	}
	manifest := index.ManifestPath(cfg.IndexDirectory)
	if err := ix.Save(manifest); err != nil {
		l.Error("index_save_error", "path", manifest, "err", err)
		os.Exit(1)
	}
	l.Info("index_build_success", "tiles", ix.Len(), "manifest", manifest)
}
