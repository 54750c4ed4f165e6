package elevation

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"elevation-api/internal/cache"
	"elevation-api/internal/index"
	"elevation-api/internal/testutil"
)

func newTestService(t *testing.T, cacheSize int) (string, *Service) {
	t.Helper()
	dir := t.TempDir()
	testutil.WriteTIFF(t, filepath.Join(dir, "gradient.tif"), testutil.GradientTile(nil))
	ix, err := index.Build(dir)
	require.NoError(t, err)
	return dir, NewService(ix, cache.NewLRU(cacheSize), nil, 4)
}

func TestLookupGradient(t *testing.T) {
	_, svc := newTestService(t, 16)
	ctx := context.Background()

	cases := []struct {
		raw  string
		want float64
	}{
		{"50.5,0.55", 150},
		{"50.95,0.05", 100},
		{"50.05,0.95", 190},
		{" 50.5 , 0.55 ", 150},
	}
	for _, c := range cases {
		res, err := svc.Lookup(ctx, c.raw)
		require.NoError(t, err, "lookup %q", c.raw)
		assert.Equal(t, c.want, res.Elevation)
	}
}

func TestLookupNotFound(t *testing.T) {
	_, svc := newTestService(t, 16)
	_, err := svc.Lookup(context.Background(), "40.0,10.0")
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, 40.0, nf.Latitude)
	assert.Equal(t, 10.0, nf.Longitude)
}

func TestLookupInvalidInput(t *testing.T) {
	_, svc := newTestService(t, 16)
	ctx := context.Background()

	for _, raw := range []string{
		"not-a-coordinate",
		"51.5",
		"51.5,0.1,7",
		"abc,0.1",
		"51.5,xyz",
		"",
		"91.0,0.0",
		"-90.1,0.0",
		"0.0,180.5",
		"0.0,-181",
	} {
		_, err := svc.Lookup(ctx, raw)
		var inv *InvalidCoordinateError
		assert.ErrorAs(t, err, &inv, "input %q", raw)
	}
}

func TestLookupBoundaryCoordinatesAccepted(t *testing.T) {
	_, svc := newTestService(t, 16)
	ctx := context.Background()

	// 边界值通过校验；无覆盖只会是 NotFound，绝不是 Invalid
	for _, raw := range []string{"90,0", "-90,0", "0,180", "0,-180"} {
		_, err := svc.Lookup(ctx, raw)
		var inv *InvalidCoordinateError
		assert.False(t, errors.As(err, &inv), "input %q must pass validation", raw)
		var nf *NotFoundError
		assert.ErrorAs(t, err, &nf, "input %q", raw)
	}
}

func TestLookupServedFromCache(t *testing.T) {
	dir, svc := newTestService(t, 16)
	ctx := context.Background()

	first, err := svc.Lookup(ctx, "50.5,0.55")
	require.NoError(t, err)

	// 删掉瓦片后相同查询仍需命中：第二次不允许发生瓦片读取
	require.NoError(t, os.Remove(filepath.Join(dir, "gradient.tif")))
	second, err := svc.Lookup(ctx, "50.5,0.55")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// 仅坐标文本不同（语义相同的数值也算不同键时才算不同）会绕过缓存并撞上已删除的瓦片
	_, err = svc.Lookup(ctx, "50.5,0.56")
	assert.Error(t, err)
}

func TestLookupCacheEviction(t *testing.T) {
	dir, svc := newTestService(t, 1)
	ctx := context.Background()

	_, err := svc.Lookup(ctx, "50.5,0.55")
	require.NoError(t, err)
	_, err = svc.Lookup(ctx, "50.5,0.65")
	require.NoError(t, err)

	// 容量 1：第一条已被淘汰，重查必须重新读瓦片；瓦片已删除故报读取错误
	require.NoError(t, os.Remove(filepath.Join(dir, "gradient.tif")))
	_, err = svc.Lookup(ctx, "50.5,0.55")
	var re *ReadError
	assert.ErrorAs(t, err, &re)

	// 最近使用的一条仍在缓存
	res, err := svc.Lookup(ctx, "50.5,0.65")
	require.NoError(t, err)
	assert.Equal(t, 160.0, res.Elevation)
}

func TestLookupFallsThroughBrokenTile(t *testing.T) {
	dir := t.TempDir()
	// 同一片区域两张瓦片：a 先入索引，损坏后查询应落到 b
	testutil.WriteTIFF(t, filepath.Join(dir, "a.tif"), testutil.GradientTile(nil))
	testutil.WriteTIFF(t, filepath.Join(dir, "b.tif"), testutil.GradientTile(nil))
	ix, err := index.Build(dir)
	require.NoError(t, err)
	require.Equal(t, 2, ix.Len())

	require.NoError(t, os.Truncate(filepath.Join(dir, "a.tif"), 4))

	svc := NewService(ix, cache.NewLRU(4), nil, 2)
	res, err := svc.Lookup(context.Background(), "50.5,0.55")
	require.NoError(t, err)
	assert.Equal(t, 150.0, res.Elevation)
}

func TestLookupAllCandidatesFail(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteTIFF(t, filepath.Join(dir, "a.tif"), testutil.GradientTile(nil))
	ix, err := index.Build(dir)
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(dir, "a.tif")))

	svc := NewService(ix, cache.NewLRU(4), nil, 2)
	_, err = svc.Lookup(context.Background(), "50.5,0.55")
	var re *ReadError
	require.ErrorAs(t, err, &re)
	assert.Contains(t, re.Path, "a.tif")
}

func TestLookupNoDataFallsThrough(t *testing.T) {
	dir := t.TempDir()
	nodata := -9999.0
	holed := testutil.GradientTile(&nodata)
	// a 瓦片该像素是哨兵值，b 瓦片有真实数据
	holed.Samples[5*10+5] = nodata
	testutil.WriteTIFF(t, filepath.Join(dir, "a.tif"), holed)
	testutil.WriteTIFF(t, filepath.Join(dir, "b.tif"), testutil.GradientTile(nil))
	ix, err := index.Build(dir)
	require.NoError(t, err)

	svc := NewService(ix, cache.NewLRU(4), nil, 2)
	res, err := svc.Lookup(context.Background(), "50.5,0.55")
	require.NoError(t, err)
	assert.Equal(t, 150.0, res.Elevation)
}

func TestLookupNoDataEverywhereIsNotFound(t *testing.T) {
	dir := t.TempDir()
	nodata := -9999.0
	holed := testutil.GradientTile(&nodata)
	holed.Samples[5*10+5] = nodata
	testutil.WriteTIFF(t, filepath.Join(dir, "a.tif"), holed)
	ix, err := index.Build(dir)
	require.NoError(t, err)

	svc := NewService(ix, cache.NewLRU(4), nil, 2)
	_, err = svc.Lookup(context.Background(), "50.5,0.55")
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestLookupBatchPartialFailure(t *testing.T) {
	_, svc := newTestService(t, 16)

	raws := []string{"50.5,0.55", "999,999", "40.0,10.0", "50.05,0.95"}
	outcomes := svc.LookupBatch(context.Background(), raws)
	require.Len(t, outcomes, len(raws))

	require.NoError(t, outcomes[0].Err)
	assert.Equal(t, 150.0, outcomes[0].Result.Elevation)

	var inv *InvalidCoordinateError
	assert.ErrorAs(t, outcomes[1].Err, &inv)

	var nf *NotFoundError
	assert.ErrorAs(t, outcomes[2].Err, &nf)

	require.NoError(t, outcomes[3].Err)
	assert.Equal(t, 190.0, outcomes[3].Result.Elevation)
}

func TestLookupBatchPreservesOrder(t *testing.T) {
	_, svc := newTestService(t, 64)

	raws := make([]string, 0, 40)
	for i := 0; i < 40; i++ {
		// 交替列，确保每个位置的期望值各不相同时顺序可验证
		if i%2 == 0 {
			raws = append(raws, "50.5,0.15")
		} else {
			raws = append(raws, "50.5,0.85")
		}
	}
	outcomes := svc.LookupBatch(context.Background(), raws)
	require.Len(t, outcomes, 40)
	for i, o := range outcomes {
		require.NoError(t, o.Err)
		if i%2 == 0 {
			assert.Equal(t, 110.0, o.Result.Elevation)
		} else {
			assert.Equal(t, 180.0, o.Result.Elevation)
		}
	}
}

func TestErrorCodes(t *testing.T) {
	assert.Equal(t, CodeInvalidCoordinate, Code(&InvalidCoordinateError{Msg: "x"}))
	assert.Equal(t, CodeNotFound, Code(&NotFoundError{}))
	assert.Equal(t, CodeReadError, Code(&ReadError{Err: errors.New("io")}))
}
