package elevation

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sourcegraph/conc/pool"

	"elevation-api/internal/cache"
	"elevation-api/internal/geotiff"
	"elevation-api/internal/index"
	"elevation-api/internal/logger"
	"elevation-api/internal/metrics"
)

// 共享缓存键的过期时间，与瓦片数据静态假设无关，只是控制 redis 占用
const redisTTL = 24 * time.Hour

// Result：一次成功查询的结果；海平面以下与负哨兵之外的负值都是合法高程
type Result struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Elevation float64 `json:"elevation"`
}

// Outcome：批量查询中单个位置的独立结局，结果与错误二选一
type Outcome struct {
	Result Result
	Err    error
}

// Service：查询编排器
// 背景：进程持有一个显式构造的实例并按引用传给各 worker，不设全局单例，
// 测试里可以并存多个隔离实例；索引构建完成之前不对外提供查询
// 约束：rdb 可为 nil（未配置共享缓存时自动跳过该层）
type Service struct {
	idx     *index.Index
	lru     *cache.LRU
	rdb     *redis.Client
	workers int
}

// NewService：组装编排器；workers 决定批量扇出的并发上限
func NewService(idx *index.Index, lru *cache.LRU, rdb *redis.Client, workers int) *Service {
	if workers <= 0 {
		workers = 100
	}
	return &Service{idx: idx, lru: lru, rdb: rdb, workers: workers}
}

// parseLocation：解析 "纬度,经度" 并校验取值范围
// 约束：必须恰好两个逗号分隔的数值，分量两侧允许空白；±90/±180 含边界
func parseLocation(raw string) (float64, float64, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 2 {
		return 0, 0, &InvalidCoordinateError{
			Msg: "invalid location format: '" + raw + "', expected 'latitude,longitude'",
		}
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, &InvalidCoordinateError{
			Msg: "invalid location format: '" + raw + "', expected 'latitude,longitude'",
		}
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, &InvalidCoordinateError{
			Msg: "invalid location format: '" + raw + "', expected 'latitude,longitude'",
		}
	}
	if lat < -90 || lat > 90 {
		return 0, 0, &InvalidCoordinateError{
			Msg: "invalid latitude: " + strconv.FormatFloat(lat, 'g', -1, 64) + ", must be between -90 and 90",
		}
	}
	if lon < -180 || lon > 180 {
		return 0, 0, &InvalidCoordinateError{
			Msg: "invalid longitude: " + strconv.FormatFloat(lon, 'g', -1, 64) + ", must be between -180 and 180",
		}
	}
	return lat, lon, nil
}

func redisKey(lat, lon float64) string {
	return "elev:" + strconv.FormatFloat(lat, 'g', -1, 64) + "," + strconv.FormatFloat(lon, 'g', -1, 64)
}

// Lookup：解析并查询一个位置的高程
// 背景：快路径走进程内 LRU，其次可选的 redis 共享层；都未命中时查索引取候选瓦片，
// 按插入顺序取第一个给出有效采样的瓦片
// 返回：Result，或 InvalidCoordinateError / NotFoundError / ReadError 之一
func (s *Service) Lookup(ctx context.Context, raw string) (Result, error) {
	start := time.Now()
	metrics.LookupsTotal.Inc()
	defer func() {
		metrics.LookupDurationMs.Observe(float64(time.Since(start).Milliseconds()))
	}()

	lat, lon, err := parseLocation(raw)
	if err != nil {
		metrics.InvalidTotal.Inc()
		return Result{}, err
	}

	key := cache.Key{Lat: lat, Lon: lon}
	if v, ok := s.lru.Get(key); ok {
		metrics.CacheHitsTotal.Inc()
		return Result{Latitude: lat, Longitude: lon, Elevation: v}, nil
	}
	metrics.CacheMissesTotal.Inc()

	if s.rdb != nil {
		if sv, err := s.rdb.Get(ctx, redisKey(lat, lon)).Result(); err == nil {
			if v, perr := strconv.ParseFloat(sv, 64); perr == nil {
				metrics.RedisHitsTotal.Inc()
				s.lru.Set(key, v)
				return Result{Latitude: lat, Longitude: lon, Elevation: v}, nil
			}
		}
		metrics.RedisMissesTotal.Inc()
	}

	cands := s.idx.Query(lon, lat)
	if len(cands) == 0 {
		metrics.NotFoundTotal.Inc()
		return Result{}, &NotFoundError{Latitude: lat, Longitude: lon}
	}

	// 候选逐个尝试：读失败记日志后落到下一个重叠瓦片，单个坏文件不拖垮整次查询
	readFails := 0
	var failPath string
	var lastErr error
	for _, t := range cands {
		metrics.TileReadsTotal.Inc()
		ds, err := geotiff.Open(t.Path)
		if err != nil {
			metrics.TileReadErrorsTotal.Inc()
			logger.L().Error("tile_open_error", "path", t.Path, "err", err)
			readFails++
			failPath, lastErr = t.Path, err
			continue
		}
		v, ok, err := ds.Sample(lon, lat)
		_ = ds.Close()
		if err != nil {
			metrics.TileReadErrorsTotal.Inc()
			logger.L().Error("tile_read_error", "path", t.Path, "err", err)
			readFails++
			failPath, lastErr = t.Path, err
			continue
		}
		if !ok {
			logger.L().Debug("tile_miss", "path", t.Path, "lat", lat, "lon", lon)
			continue
		}
		s.lru.Set(key, v)
		if s.rdb != nil {
			s.rdb.Set(ctx, redisKey(lat, lon), strconv.FormatFloat(v, 'g', -1, 64), redisTTL)
		}
		return Result{Latitude: lat, Longitude: lon, Elevation: v}, nil
	}

	// 所有候选都读失败才算故障；存在正常未命中（网格外/无数据哨兵）则按覆盖缺口处理
	if readFails == len(cands) {
		return Result{}, &ReadError{Path: failPath, Err: lastErr}
	}
	metrics.NotFoundTotal.Inc()
	return Result{}, &NotFoundError{Latitude: lat, Longitude: lon}
}

// LookupBatch：批量查询，保持输入顺序，逐位置独立成败
// 背景：在容量受限的协程池上扇出，慢位置不阻塞其他位置；调用方放弃时
// 在途工作自然跑完，结果被丢弃即可，不强行中断读取
func (s *Service) LookupBatch(ctx context.Context, raws []string) []Outcome {
	out := make([]Outcome, len(raws))
	p := pool.New().WithMaxGoroutines(s.workers)
	for i := range raws {
		i := i
		p.Go(func() {
			r, err := s.Lookup(ctx, raws[i])
			out[i] = Outcome{Result: r, Err: err}
		})
	}
	p.Wait()
	return out
}
