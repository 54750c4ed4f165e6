// 包 index：持久化包围盒索引，把地理矩形映射到瓦片文件
// 背景：瓦片库可能有数十万文件，逐个打开头部判断覆盖不可行；启动时一次构建 R 树，
// 服务期间只读，点查询无需加锁
// 约束：不支持在线增删瓦片；瓦片集变更通过重建索引生效
package index

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dhconnelly/rtreego"

	"elevation-api/internal/geotiff"
	"elevation-api/internal/logger"
)

// 近似零边长：rtreego 要求矩形边长为正，退化瓦片与点查询统一用此下限
const minExtent = 1e-9

// BuildError：瓦片根目录缺失或不可读导致的索引构建失败
// 背景：单个瓦片损坏只是跳过，根目录不可用则进程不应开始服务
type BuildError struct {
	Msg string
	Err error
}

func (e *BuildError) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *BuildError) Unwrap() error { return e.Err }

// GeoRect：地理包围矩形，四边闭区间
type GeoRect struct {
	MinLon float64 `json:"min_lon"`
	MinLat float64 `json:"min_lat"`
	MaxLon float64 `json:"max_lon"`
	MaxLat float64 `json:"max_lat"`
}

// Contains：点包含判定，边界算命中
func (r GeoRect) Contains(lon, lat float64) bool {
	return lon >= r.MinLon && lon <= r.MaxLon && lat >= r.MinLat && lat <= r.MaxLat
}

// TileRef：一个已索引的瓦片文件
// 背景：ID 在一次索引构建内按插入顺序递增，用于保证候选遍历顺序可复现；
// Path 指向的文件在索引生命周期内必须保持可读
type TileRef struct {
	ID   int     `json:"id"`
	Path string  `json:"path"`
	Rect GeoRect `json:"bounds"`

	bounds *rtreego.Rect
}

// Bounds：实现 rtreego.Spatial
func (t *TileRef) Bounds() rtreego.Rect {
	if t.bounds == nil {
		w := t.Rect.MaxLon - t.Rect.MinLon
		h := t.Rect.MaxLat - t.Rect.MinLat
		if w < minExtent {
			w = minExtent
		}
		if h < minExtent {
			h = minExtent
		}
		r, err := rtreego.NewRect(rtreego.Point{t.Rect.MinLon, t.Rect.MinLat}, []float64{w, h})
		if err != nil {
			// 构造参数已钳到正值，这里只可能是维度错误
			panic(err)
		}
		t.bounds = &r
	}
	return *t.bounds
}

// Index：只读空间索引
type Index struct {
	tree  *rtreego.Rtree
	tiles []*TileRef
}

// Len：已索引瓦片数
func (ix *Index) Len() int { return len(ix.tiles) }

// Tiles：全部瓦片引用，按插入顺序
func (ix *Index) Tiles() []*TileRef { return ix.tiles }

// Build：递归扫描瓦片根目录并构建索引
// 背景：对每个 .tif 只读头部取包围矩形；打不开或缺地理标签的文件记日志跳过，不中断构建
// 返回：构建完成的索引；仅当根目录本身不存在或不可读时返回 BuildError
func Build(root string) (*Index, error) {
	if st, err := os.Stat(root); err != nil {
		return nil, &BuildError{Msg: fmt.Sprintf("tile directory not found: %s", root), Err: err}
	} else if !st.IsDir() {
		return nil, &BuildError{Msg: fmt.Sprintf("tile directory is not a directory: %s", root)}
	}
	logger.L().Info("index_build_begin", "root", root)
	ix := &Index{tree: rtreego.NewTree(2, 25, 50)}
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			logger.L().Error("index_walk_error", "path", path, "err", err)
			return nil
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), ".tif") {
			return nil
		}
		ds, err := geotiff.Open(path)
		if err != nil {
			logger.L().Error("index_tile_skip", "path", path, "err", err)
			return nil
		}
		minLon, minLat, maxLon, maxLat := ds.Bounds()
		_ = ds.Close()
		ix.insert(&TileRef{
			ID:   len(ix.tiles) + 1,
			Path: path,
			Rect: GeoRect{MinLon: minLon, MinLat: minLat, MaxLon: maxLon, MaxLat: maxLat},
		})
		logger.L().Debug("index_tile_added", "path", path,
			"min_lon", minLon, "min_lat", minLat, "max_lon", maxLon, "max_lat", maxLat)
		return nil
	})
	if walkErr != nil {
		return nil, &BuildError{Msg: fmt.Sprintf("tile directory unreadable: %s", root), Err: walkErr}
	}
	logger.L().Info("index_build_done", "tiles", len(ix.tiles))
	return ix, nil
}

func (ix *Index) insert(t *TileRef) {
	ix.tiles = append(ix.tiles, t)
	ix.tree.Insert(t)
}

// Query：返回包围矩形覆盖 (lon, lat) 的全部瓦片，按插入顺序
// 背景：R 树检索结果顺序不稳定，这里用自身的闭区间判定过滤后按 ID 排序，
// 使上层“首个可读采样”策略在同一代索引内可复现
func (ix *Index) Query(lon, lat float64) []*TileRef {
	hits := ix.tree.SearchIntersect(rtreego.Point{lon, lat}.ToRect(minExtent))
	var out []*TileRef
	for _, h := range hits {
		t := h.(*TileRef)
		if t.Rect.Contains(lon, lat) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Save：把瓦片清单写盘，路径整体原子替换
// 背景：持久化仅为省掉重启时的全量目录扫描；清单无损往返 TileRef 集合即可
func (ix *Index) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.Marshal(ix.tiles)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return err
	}
	logger.L().Info("index_saved", "path", path, "tiles", len(ix.tiles))
	return nil
}

// Load：从清单恢复索引，不再触碰瓦片头部
// 返回：重建的索引；清单缺失或损坏返回 BuildError，调用方可回退到 Build
func Load(path string) (*Index, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &BuildError{Msg: fmt.Sprintf("index manifest unreadable: %s", path), Err: err}
	}
	var tiles []*TileRef
	if err := json.Unmarshal(b, &tiles); err != nil {
		return nil, &BuildError{Msg: fmt.Sprintf("index manifest corrupt: %s", path), Err: err}
	}
	ix := &Index{tree: rtreego.NewTree(2, 25, 50)}
	for _, t := range tiles {
		ix.insert(t)
	}
	logger.L().Info("index_loaded", "path", path, "tiles", len(ix.tiles))
	return ix, nil
}

// ManifestPath：索引目录下的清单文件位置
func ManifestPath(indexDir string) string { return filepath.Join(indexDir, "tiles.json") }

// BuildOrLoad：有有效清单时加载，否则扫描构建并写盘
// 背景：与启动流程解耦的唯一入口；构建成功但写盘失败只记日志，索引仍然可用
func BuildOrLoad(root, indexDir string) (*Index, error) {
	manifest := ManifestPath(indexDir)
	if _, err := os.Stat(manifest); err == nil {
		ix, err := Load(manifest)
		if err == nil {
			return ix, nil
		}
		var be *BuildError
		if errors.As(err, &be) {
			logger.L().Error("index_load_fallback", "path", manifest, "err", err)
		}
	}
	ix, err := Build(root)
	if err != nil {
		return nil, err
	}
	if err := ix.Save(manifest); err != nil {
		logger.L().Error("index_save_error", "path", manifest, "err", err)
	}
	return ix, nil
}
