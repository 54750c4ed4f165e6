package geotiff

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"elevation-api/internal/testutil"
)

func writeGradient(t *testing.T, dir string, nodata *float64) string {
	t.Helper()
	path := filepath.Join(dir, "gradient.tif")
	testutil.WriteTIFF(t, path, testutil.GradientTile(nodata))
	return path
}

func TestSampleGradient(t *testing.T) {
	path := writeGradient(t, t.TempDir(), nil)
	ds, err := Open(path)
	require.NoError(t, err)
	defer ds.Close()

	w, h := ds.Size()
	assert.Equal(t, 10, w)
	assert.Equal(t, 10, h)

	minLon, minLat, maxLon, maxLat := ds.Bounds()
	assert.InDelta(t, 0.0, minLon, 1e-12)
	assert.InDelta(t, 50.0, minLat, 1e-12)
	assert.InDelta(t, 1.0, maxLon, 1e-12)
	assert.InDelta(t, 51.0, maxLat, 1e-12)

	cases := []struct {
		lon, lat float64
		want     float64
	}{
		{0.55, 50.5, 150},
		{0.05, 50.95, 100},
		{0.95, 50.05, 190},
	}
	for _, c := range cases {
		v, ok, err := ds.Sample(c.lon, c.lat)
		require.NoError(t, err)
		require.True(t, ok, "expected hit at (%v, %v)", c.lat, c.lon)
		assert.Equal(t, c.want, v)
	}
}

func TestSampleOutsideGridIsMiss(t *testing.T) {
	path := writeGradient(t, t.TempDir(), nil)
	ds, err := Open(path)
	require.NoError(t, err)
	defer ds.Close()

	for _, p := range [][2]float64{{-0.5, 50.5}, {1.5, 50.5}, {0.5, 49.0}, {0.5, 52.0}} {
		v, ok, err := ds.Sample(p[0], p[1])
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Zero(t, v)
	}
}

func TestSampleNoDataIsMiss(t *testing.T) {
	nodata := -9999.0
	spec := testutil.GradientTile(&nodata)
	// 左上角像素改成哨兵值
	spec.Samples[0] = nodata
	path := filepath.Join(t.TempDir(), "nodata.tif")
	testutil.WriteTIFF(t, path, spec)

	ds, err := Open(path)
	require.NoError(t, err)
	defer ds.Close()

	nd, ok := ds.NoData()
	require.True(t, ok)
	assert.Equal(t, nodata, nd)

	_, ok, err = ds.Sample(0.05, 50.95)
	require.NoError(t, err)
	assert.False(t, ok, "nodata sample must be a miss")

	// 同一行其他像素不受影响
	v, ok, err := ds.Sample(0.15, 50.95)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 110.0, v)
}

func TestSampleFloat32(t *testing.T) {
	spec := testutil.GradientTile(nil)
	spec.Format = testutil.FormatFloat32
	path := filepath.Join(t.TempDir(), "float.tif")
	testutil.WriteTIFF(t, path, spec)

	ds, err := Open(path)
	require.NoError(t, err)
	defer ds.Close()

	v, ok, err := ds.Sample(0.55, 50.5)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 150.0, v)
}

func TestOpenRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "garbage.tif")
	require.NoError(t, os.WriteFile(path, []byte("this is not a tiff"), 0o644))

	_, err := Open(path)
	assert.Error(t, err)
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "absent.tif"))
	assert.Error(t, err)
}

func TestSampleTruncatedFile(t *testing.T) {
	dir := t.TempDir()
	path := writeGradient(t, dir, nil)
	ds, err := Open(path)
	require.NoError(t, err)
	defer ds.Close()

	// 打开后截断文件，像素读取必须报错而不是返回未命中
	require.NoError(t, os.Truncate(path, 8))
	_, _, err = ds.Sample(0.55, 50.5)
	assert.Error(t, err)
}
