package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"elevation-api/internal/cache"
	"elevation-api/internal/config"
	"elevation-api/internal/elevation"
	"elevation-api/internal/index"
	"elevation-api/internal/logger"
)

// 文档注释：单次命令行查询
// 背景：排查某个坐标的取值时不必起 HTTP 服务；直接复用索引与编排层，行为与线上一致。
// 约束：参数形如 "51.5,-0.1"；索引按环境变量定位，存在清单则直接加载。
func main() {
	_ = godotenv.Load(".env")
	l := logger.Setup()
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: lookup <latitude,longitude>")
		os.Exit(2)
	}
	cfg := config.FromEnv()

	ix, err := index.BuildOrLoad(cfg.TifDirectory, cfg.IndexDirectory)
	if err != nil {
		l.Error("index_init_error", "err", err)
		os.Exit(1)
	}
	svc := elevation.NewService(ix, cache.NewLRU(1), nil, 1)
	res, err := svc.Lookup(context.Background(), os.Args[1])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(res.Elevation)
}
