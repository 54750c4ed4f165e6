package index

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"elevation-api/internal/testutil"
)

// 两张共享经度 1 这条边的相邻瓦片，外加子目录嵌套与编入失败的干扰文件
func buildFixture(t *testing.T) (string, *Index) {
	t.Helper()
	dir := t.TempDir()

	testutil.WriteTIFF(t, filepath.Join(dir, "a.tif"), testutil.GradientTile(nil))

	east := testutil.GradientTile(nil)
	east.OriginLon = 1
	sub := filepath.Join(dir, "east", "n50")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	testutil.WriteTIFF(t, filepath.Join(sub, "b.tif"), east)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "corrupt.tif"), []byte("nope"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("ignored"), 0o644))

	ix, err := Build(dir)
	require.NoError(t, err)
	return dir, ix
}

func TestBuildSkipsUnreadableFiles(t *testing.T) {
	_, ix := buildFixture(t)
	// corrupt.tif 与 readme.txt 都不入索引
	assert.Equal(t, 2, ix.Len())
}

func TestBuildMissingRoot(t *testing.T) {
	_, err := Build(filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
	var be *BuildError
	assert.ErrorAs(t, err, &be)
}

func TestQueryContainment(t *testing.T) {
	_, ix := buildFixture(t)

	hits := ix.Query(0.5, 50.5)
	require.Len(t, hits, 1)
	assert.True(t, hits[0].Rect.Contains(0.5, 50.5))

	hits = ix.Query(1.5, 50.5)
	require.Len(t, hits, 1)

	assert.Empty(t, ix.Query(10.0, 40.0))
	assert.Empty(t, ix.Query(0.5, 55.0))
}

func TestQueryEdgeInclusive(t *testing.T) {
	_, ix := buildFixture(t)

	// 共享边上的点两张瓦片都命中，且按插入顺序返回
	hits := ix.Query(1.0, 50.5)
	require.Len(t, hits, 2)
	assert.Less(t, hits[0].ID, hits[1].ID)

	// 外缘角点也算命中
	hits = ix.Query(0.0, 51.0)
	require.Len(t, hits, 1)
}

func TestQueryOrderIsInsertionOrder(t *testing.T) {
	_, ix := buildFixture(t)
	hits := ix.Query(1.0, 50.5)
	require.Len(t, hits, 2)
	for i := 1; i < len(hits); i++ {
		assert.Greater(t, hits[i].ID, hits[i-1].ID)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir, ix := buildFixture(t)
	manifest := ManifestPath(filepath.Join(dir, "index"))
	require.NoError(t, ix.Save(manifest))

	loaded, err := Load(manifest)
	require.NoError(t, err)
	require.Equal(t, ix.Len(), loaded.Len())

	want := ix.Query(1.0, 50.5)
	got := loaded.Query(1.0, 50.5)
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].ID, got[i].ID)
		assert.Equal(t, want[i].Path, got[i].Path)
		assert.Equal(t, want[i].Rect, got[i].Rect)
	}
}

func TestLoadCorruptManifest(t *testing.T) {
	dir := t.TempDir()
	manifest := ManifestPath(dir)
	require.NoError(t, os.WriteFile(manifest, []byte("{broken"), 0o644))
	_, err := Load(manifest)
	var be *BuildError
	assert.ErrorAs(t, err, &be)
}

func TestBuildOrLoadPrefersManifest(t *testing.T) {
	dir, ix := buildFixture(t)
	idxDir := filepath.Join(dir, "index")
	require.NoError(t, ix.Save(ManifestPath(idxDir)))

	// 清单存在时直接加载，即使根目录已清空也不影响
	require.NoError(t, os.Remove(filepath.Join(dir, "a.tif")))
	loaded, err := BuildOrLoad(dir, idxDir)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Len())
}
