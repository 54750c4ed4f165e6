package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	LookupsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "elevapi_lookups_total",
		Help: "Total number of elevation lookups",
	})
	LookupDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "elevapi_lookup_duration_ms",
		Help:    "Lookup duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	})
	CacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "elevapi_cache_hits_total",
		Help: "Total in-process LRU cache hits",
	})
	CacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "elevapi_cache_misses_total",
		Help: "Total in-process LRU cache misses",
	})
	RedisHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "elevapi_redis_hits_total",
		Help: "Total redis cache hits",
	})
	RedisMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "elevapi_redis_misses_total",
		Help: "Total redis cache misses",
	})
	NotFoundTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "elevapi_not_found_total",
		Help: "Total lookups with no covering tile",
	})
	InvalidTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "elevapi_invalid_total",
		Help: "Total lookups rejected for malformed or out-of-range coordinates",
	})
	TileReadsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "elevapi_tile_reads_total",
		Help: "Total single-pixel tile reads attempted",
	})
	TileReadErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "elevapi_tile_read_errors_total",
		Help: "Total tile read failures (per candidate tile)",
	})
	IndexedTiles = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "elevapi_indexed_tiles",
		Help: "Number of tiles in the spatial index",
	})
)

func init() {
	prometheus.MustRegister(LookupsTotal)
	prometheus.MustRegister(LookupDurationMs)
	prometheus.MustRegister(CacheHitsTotal)
	prometheus.MustRegister(CacheMissesTotal)
	prometheus.MustRegister(RedisHitsTotal)
	prometheus.MustRegister(RedisMissesTotal)
	prometheus.MustRegister(NotFoundTotal)
	prometheus.MustRegister(InvalidTotal)
	prometheus.MustRegister(TileReadsTotal)
	prometheus.MustRegister(TileReadErrorsTotal)
	prometheus.MustRegister(IndexedTiles)
}

// 文档注释：返回 Prometheus 指标监听器
// 背景：统一暴露注册指标到 /metrics 路径，供 Prometheus 抓取；在主入口挂载。
func Handler() http.Handler { return promhttp.Handler() }
