// 包 logger：集中初始化与获取日志器；级别与输出格式由环境变量控制，各模块不重复配置
package logger

import (
	"log/slog"
	"os"
	"strings"
)

// 进程级默认日志器：全局复用一个实例，保证输出格式与级别一致
var defaultLogger *slog.Logger

// Setup：按环境变量初始化默认日志器
// 背景：LOG_LEVEL 控制级别（debug/warn/error，默认 info），LOG_FORMAT=json 切换 JSON 输出
// 约束：固定写标准错误；文件落盘与聚合由外部采集方负责
func Setup() *slog.Logger {
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	var h slog.Handler
	if strings.ToLower(os.Getenv("LOG_FORMAT")) == "json" {
		h = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	} else {
		h = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	}
	defaultLogger = slog.New(h)
	return defaultLogger
}

// L：获取默认日志器；未初始化时回退到 Setup
func L() *slog.Logger {
	if defaultLogger == nil {
		return Setup()
	}
	return defaultLogger
}
