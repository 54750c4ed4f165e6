// 包 config：进程级配置集中读取；核心查询层只接收标量参数，不自行读环境
package config

import (
	"os"
	"path/filepath"
	"strconv"
)

// Settings：服务运行参数
// 背景：瓦片根目录、索引存放位置、结果缓存容量与工作协程数由部署环境提供；
// 核心组件通过构造参数接收，便于测试中注入隔离实例
type Settings struct {
	TifDirectory   string
	IndexDirectory string
	CacheMaxSize   int
	MaxWorkers     int
	Addr           string
	APIBase        string
}

// FromEnv：从环境变量构建配置
// 约束：数值解析失败时静默回退默认值；INDEX_DIRECTORY 未设置时挂在瓦片目录下
func FromEnv() Settings {
	tif := os.Getenv("TIF_DIRECTORY")
	if tif == "" {
		tif = filepath.Join("data", "tif")
	}
	idx := os.Getenv("INDEX_DIRECTORY")
	if idx == "" {
		idx = filepath.Join(tif, "index")
	}
	s := Settings{
		TifDirectory:   tif,
		IndexDirectory: idx,
		CacheMaxSize:   envInt("CACHE_MAX_SIZE", 100000),
		MaxWorkers:     envInt("MAX_WORKERS", 100),
		Addr:           os.Getenv("ADDR"),
		APIBase:        os.Getenv("API_BASE"),
	}
	if s.Addr == "" {
		s.Addr = ":8080"
	}
	if s.APIBase == "" {
		s.APIBase = "/api/v1"
	}
	return s
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
