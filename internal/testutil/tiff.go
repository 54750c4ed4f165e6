// 包 testutil：测试用的最小 GeoTIFF 生成器
// 背景：仓库不携带真实瓦片样本，测试按需在临时目录合成小尺寸瓦片；
// 只产出读取器支持的子集（经典 TIFF、小端、无压缩、单条带、单波段）
package testutil

import (
	"encoding/binary"
	"math"
	"os"
	"strconv"
	"testing"
)

// 采样值编码
const (
	FormatInt16   = "int16"
	FormatFloat32 = "float32"
)

// TileSpec：合成瓦片描述
// 背景：OriginLon/OriginLat 是左上角地理坐标，PixelWidth/PixelHeight 均为正，
// 纬度随行号递减；Samples 按行主序排列，长度必须为 Width*Height
type TileSpec struct {
	Width       int
	Height      int
	OriginLon   float64
	OriginLat   float64
	PixelWidth  float64
	PixelHeight float64
	Samples     []float64
	Format      string
	NoData      *float64
}

func pad2(n int) int {
	if n%2 != 0 {
		return n + 1
	}
	return n
}

func ifdEntry(buf []byte, off int, tag, typ uint16, count, val uint32) int {
	le := binary.LittleEndian
	le.PutUint16(buf[off:], tag)
	le.PutUint16(buf[off+2:], typ)
	le.PutUint32(buf[off+4:], count)
	if typ == 3 && count == 1 {
		le.PutUint16(buf[off+8:], uint16(val))
	} else {
		le.PutUint32(buf[off+8:], val)
	}
	return off + 12
}

// WriteTIFF：把合成瓦片写到 path
func WriteTIFF(t *testing.T, path string, spec TileSpec) {
	t.Helper()
	if len(spec.Samples) != spec.Width*spec.Height {
		t.Fatalf("tile spec: %d samples for %dx%d grid", len(spec.Samples), spec.Width, spec.Height)
	}
	le := binary.LittleEndian

	var bps int
	var format uint16
	switch spec.Format {
	case FormatFloat32:
		bps, format = 4, 3
	case FormatInt16, "":
		bps, format = 2, 2
	default:
		t.Fatalf("tile spec: unsupported format %q", spec.Format)
	}

	pix := make([]byte, spec.Width*spec.Height*bps)
	for i, v := range spec.Samples {
		if format == 3 {
			le.PutUint32(pix[i*4:], math.Float32bits(float32(v)))
		} else {
			le.PutUint16(pix[i*2:], uint16(int16(v)))
		}
	}

	var nd []byte
	if spec.NoData != nil {
		s := strconvNoData(*spec.NoData)
		nd = append([]byte(s), 0)
	}

	pixOff := 8
	scaleOff := pixOff + pad2(len(pix))
	tieOff := scaleOff + 24
	ndOff := tieOff + 48
	ifdOff := ndOff + pad2(len(nd))

	entries := 12
	if nd != nil {
		entries++
	}
	total := ifdOff + 2 + entries*12 + 4
	out := make([]byte, total)

	copy(out[0:2], "II")
	le.PutUint16(out[2:], 42)
	le.PutUint32(out[4:], uint32(ifdOff))
	copy(out[pixOff:], pix)

	scale := []float64{spec.PixelWidth, spec.PixelHeight, 0}
	for i, v := range scale {
		le.PutUint64(out[scaleOff+i*8:], math.Float64bits(v))
	}
	tie := []float64{0, 0, 0, spec.OriginLon, spec.OriginLat, 0}
	for i, v := range tie {
		le.PutUint64(out[tieOff+i*8:], math.Float64bits(v))
	}
	copy(out[ndOff:], nd)

	le.PutUint16(out[ifdOff:], uint16(entries))
	off := ifdOff + 2
	off = ifdEntry(out, off, 256, 4, 1, uint32(spec.Width))
	off = ifdEntry(out, off, 257, 4, 1, uint32(spec.Height))
	off = ifdEntry(out, off, 258, 3, 1, uint32(bps*8))
	off = ifdEntry(out, off, 259, 3, 1, 1)
	off = ifdEntry(out, off, 262, 3, 1, 1)
	off = ifdEntry(out, off, 273, 4, 1, uint32(pixOff))
	off = ifdEntry(out, off, 277, 3, 1, 1)
	off = ifdEntry(out, off, 278, 4, 1, uint32(spec.Height))
	off = ifdEntry(out, off, 279, 4, 1, uint32(len(pix)))
	off = ifdEntry(out, off, 339, 3, 1, uint32(format))
	off = ifdEntry(out, off, 33550, 12, 3, uint32(scaleOff))
	off = ifdEntry(out, off, 33922, 12, 6, uint32(tieOff))
	if nd != nil {
		off = ifdEntry(out, off, 42113, 2, uint32(len(nd)), uint32(ndOff))
	}
	le.PutUint32(out[off:], 0)

	if err := os.WriteFile(path, out, 0o644); err != nil {
		t.Fatalf("write tiff: %v", err)
	}
}

func strconvNoData(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// GradientTile：经度 0–1、纬度 50–51、0.1° 分辨率的测试瓦片，
// 高程自西向东 100→190，每列递增 10 米
func GradientTile(nodata *float64) TileSpec {
	samples := make([]float64, 100)
	for row := 0; row < 10; row++ {
		for col := 0; col < 10; col++ {
			samples[row*10+col] = 100 + float64(col)*10
		}
	}
	return TileSpec{
		Width: 10, Height: 10,
		OriginLon: 0, OriginLat: 51,
		PixelWidth: 0.1, PixelHeight: 0.1,
		Samples: samples,
		Format:  FormatInt16,
		NoData:  nodata,
	}
}
