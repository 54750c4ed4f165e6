// 包 geotiff：最小化 GeoTIFF 读取器，只解析头部与地理标签并按需读取单个像素
// 背景：查询路径每次只需要一个采样值，整幅解码既浪费 I/O 也无法控制大瓦片的内存占用；
// 这里直接解析 TIFF 目录项，通过仿射参数反算行列号后 ReadAt 取样
// 约束：仅支持经典 TIFF（非 BigTIFF）、无压缩、chunky 排列；条带与分块两种组织方式均支持
package geotiff

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
)

// TIFF 目录标签
const (
	tagImageWidth      = 256
	tagImageLength     = 257
	tagBitsPerSample   = 258
	tagCompression     = 259
	tagStripOffsets    = 273
	tagSamplesPerPixel = 277
	tagRowsPerStrip    = 278
	tagStripByteCounts = 279
	tagPlanarConfig    = 284
	tagTileWidth       = 322
	tagTileLength      = 323
	tagTileOffsets     = 324
	tagSampleFormat    = 339
	tagPixelScale      = 33550
	tagTiepoint        = 33922
	tagTransformation  = 34264
	tagGDALNoData      = 42113
)

// 采样值类型（SampleFormat）
const (
	formatUint  = 1
	formatInt   = 2
	formatFloat = 3
)

// 目录项字节长度按类型
var typeSize = map[uint16]int{
	1: 1, 2: 1, 3: 2, 4: 4, 5: 8, 6: 1, 7: 1, 8: 2, 9: 4, 10: 8, 11: 4, 12: 8,
}

type ifdEntry struct {
	typ   uint16
	count uint32
	val   [4]byte
}

// Dataset：一个已打开的 GeoTIFF 瓦片
// 背景：Open 时解析目录与地理参数并保持句柄，Sample 只做一次定位读；
// ReadAt 本身并发安全，但约定每次查询独立 Open/Close，句柄不跨请求共享
type Dataset struct {
	path string
	f    *os.File
	bo   binary.ByteOrder
	tags map[uint16]ifdEntry

	width           int
	height          int
	bits            int
	format          uint16
	samplesPerPixel int

	rowsPerStrip int
	stripOffsets []int64

	tileWidth   int
	tileLength  int
	tileOffsets []int64

	// 仿射参数：geoX = originX + col*stepX；geoY = originY + row*stepY（stepY 一般为负）
	originX float64
	originY float64
	stepX   float64
	stepY   float64

	hasNoData bool
	noData    float64
}

// Open：打开瓦片并解析头部
// 返回：可采样的 Dataset；文件缺失、目录损坏、缺少地理标签或组织方式不支持时返回错误
func Open(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	d := &Dataset{path: path, f: f}
	if err := d.parse(); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("geotiff %s: %w", path, err)
	}
	return d, nil
}

// Close：释放文件句柄
func (d *Dataset) Close() error { return d.f.Close() }

// Path：瓦片文件路径
func (d *Dataset) Path() string { return d.path }

// Size：像素网格宽高
func (d *Dataset) Size() (int, int) { return d.width, d.height }

// NoData：无数据哨兵值；未声明时第二返回值为 false
func (d *Dataset) NoData() (float64, bool) { return d.noData, d.hasNoData }

// Bounds：瓦片的地理包围矩形
// 背景：由仿射参数与网格尺寸推出四边界；stepY 为负时 y 轴翻转在此归一化
func (d *Dataset) Bounds() (minLon, minLat, maxLon, maxLat float64) {
	x0 := d.originX
	x1 := d.originX + float64(d.width)*d.stepX
	y0 := d.originY
	y1 := d.originY + float64(d.height)*d.stepY
	return math.Min(x0, x1), math.Min(y0, y1), math.Max(x0, x1), math.Max(y0, y1)
}

// Sample：读取覆盖 (lon, lat) 的那个像素
// 背景：反算仿射得到行列号后只读一个采样值；点落在网格之外或命中无数据哨兵按未命中处理
// 返回：值、是否命中、I/O 或解码错误；未命中不是错误
func (d *Dataset) Sample(lon, lat float64) (float64, bool, error) {
	col := int(math.Floor((lon - d.originX) / d.stepX))
	row := int(math.Floor((lat - d.originY) / d.stepY))
	if col < 0 || col >= d.width || row < 0 || row >= d.height {
		return 0, false, nil
	}
	bps := d.bits / 8
	var off int64
	if d.tileWidth > 0 {
		across := (d.width + d.tileWidth - 1) / d.tileWidth
		idx := (row/d.tileLength)*across + col/d.tileWidth
		if idx < 0 || idx >= len(d.tileOffsets) {
			return 0, false, fmt.Errorf("geotiff %s: tile %d out of range", d.path, idx)
		}
		within := (row%d.tileLength)*d.tileWidth + col%d.tileWidth
		off = d.tileOffsets[idx] + int64(within*d.samplesPerPixel)*int64(bps)
	} else {
		strip := row / d.rowsPerStrip
		if strip < 0 || strip >= len(d.stripOffsets) {
			return 0, false, fmt.Errorf("geotiff %s: strip %d out of range", d.path, strip)
		}
		within := (row%d.rowsPerStrip)*d.width + col
		off = d.stripOffsets[strip] + int64(within*d.samplesPerPixel)*int64(bps)
	}
	buf := make([]byte, bps)
	if _, err := d.f.ReadAt(buf, off); err != nil {
		return 0, false, fmt.Errorf("geotiff %s: read pixel (%d,%d): %w", d.path, row, col, err)
	}
	v := d.decode(buf)
	if d.hasNoData && (v == d.noData || (math.IsNaN(v) && math.IsNaN(d.noData))) {
		return 0, false, nil
	}
	return v, true, nil
}

func (d *Dataset) decode(buf []byte) float64 {
	switch d.format {
	case formatInt:
		switch d.bits {
		case 8:
			return float64(int8(buf[0]))
		case 16:
			return float64(int16(d.bo.Uint16(buf)))
		default:
			return float64(int32(d.bo.Uint32(buf)))
		}
	case formatFloat:
		if d.bits == 32 {
			return float64(math.Float32frombits(d.bo.Uint32(buf)))
		}
		return math.Float64frombits(d.bo.Uint64(buf))
	default:
		switch d.bits {
		case 8:
			return float64(buf[0])
		case 16:
			return float64(d.bo.Uint16(buf))
		default:
			return float64(d.bo.Uint32(buf))
		}
	}
}

func (d *Dataset) parse() error {
	var hdr [8]byte
	if _, err := d.f.ReadAt(hdr[:], 0); err != nil {
		return fmt.Errorf("header: %w", err)
	}
	switch string(hdr[0:2]) {
	case "II":
		d.bo = binary.LittleEndian
	case "MM":
		d.bo = binary.BigEndian
	default:
		return fmt.Errorf("not a TIFF file")
	}
	switch d.bo.Uint16(hdr[2:4]) {
	case 42:
	case 43:
		return fmt.Errorf("BigTIFF not supported")
	default:
		return fmt.Errorf("bad TIFF magic")
	}
	if err := d.readIFD(int64(d.bo.Uint32(hdr[4:8]))); err != nil {
		return err
	}
	if err := d.resolveLayout(); err != nil {
		return err
	}
	return d.resolveGeo()
}

func (d *Dataset) readIFD(off int64) error {
	var cnt [2]byte
	if _, err := d.f.ReadAt(cnt[:], off); err != nil {
		return fmt.Errorf("ifd: %w", err)
	}
	n := int(d.bo.Uint16(cnt[:]))
	buf := make([]byte, n*12)
	if _, err := d.f.ReadAt(buf, off+2); err != nil {
		return fmt.Errorf("ifd entries: %w", err)
	}
	d.tags = make(map[uint16]ifdEntry, n)
	for i := 0; i < n; i++ {
		e := buf[i*12 : i*12+12]
		ent := ifdEntry{typ: d.bo.Uint16(e[2:4]), count: d.bo.Uint32(e[4:8])}
		copy(ent.val[:], e[8:12])
		d.tags[d.bo.Uint16(e[0:2])] = ent
	}
	return nil
}

// valueBytes：取目录项的原始数据，区分内联与外部偏移两种存放方式
func (d *Dataset) valueBytes(e ifdEntry) ([]byte, error) {
	size, ok := typeSize[e.typ]
	if !ok {
		return nil, fmt.Errorf("unknown field type %d", e.typ)
	}
	total := size * int(e.count)
	if total <= 4 {
		return e.val[:total], nil
	}
	buf := make([]byte, total)
	if _, err := d.f.ReadAt(buf, int64(d.bo.Uint32(e.val[:]))); err != nil {
		return nil, err
	}
	return buf, nil
}

func (d *Dataset) entryInts(tag uint16) ([]int64, bool, error) {
	e, ok := d.tags[tag]
	if !ok {
		return nil, false, nil
	}
	buf, err := d.valueBytes(e)
	if err != nil {
		return nil, false, err
	}
	out := make([]int64, e.count)
	for i := range out {
		switch e.typ {
		case 1:
			out[i] = int64(buf[i])
		case 3:
			out[i] = int64(d.bo.Uint16(buf[i*2:]))
		case 4:
			out[i] = int64(d.bo.Uint32(buf[i*4:]))
		default:
			return nil, false, fmt.Errorf("tag %d: unexpected field type %d", tag, e.typ)
		}
	}
	return out, true, nil
}

func (d *Dataset) entryInt(tag uint16, def int64) (int64, error) {
	vs, ok, err := d.entryInts(tag)
	if err != nil {
		return 0, err
	}
	if !ok || len(vs) == 0 {
		return def, nil
	}
	return vs[0], nil
}

func (d *Dataset) entryDoubles(tag uint16) ([]float64, bool, error) {
	e, ok := d.tags[tag]
	if !ok {
		return nil, false, nil
	}
	buf, err := d.valueBytes(e)
	if err != nil {
		return nil, false, err
	}
	out := make([]float64, e.count)
	for i := range out {
		switch e.typ {
		case 11:
			out[i] = float64(math.Float32frombits(d.bo.Uint32(buf[i*4:])))
		case 12:
			out[i] = math.Float64frombits(d.bo.Uint64(buf[i*8:]))
		default:
			return nil, false, fmt.Errorf("tag %d: unexpected field type %d", tag, e.typ)
		}
	}
	return out, true, nil
}

func (d *Dataset) entryASCII(tag uint16) (string, bool, error) {
	e, ok := d.tags[tag]
	if !ok {
		return "", false, nil
	}
	if e.typ != 2 {
		return "", false, fmt.Errorf("tag %d: unexpected field type %d", tag, e.typ)
	}
	buf, err := d.valueBytes(e)
	if err != nil {
		return "", false, err
	}
	return strings.TrimRight(string(buf), "\x00"), true, nil
}

func (d *Dataset) resolveLayout() error {
	w, err := d.entryInt(tagImageWidth, 0)
	if err != nil {
		return err
	}
	h, err := d.entryInt(tagImageLength, 0)
	if err != nil {
		return err
	}
	if w <= 0 || h <= 0 {
		return fmt.Errorf("missing image dimensions")
	}
	d.width, d.height = int(w), int(h)

	comp, err := d.entryInt(tagCompression, 1)
	if err != nil {
		return err
	}
	if comp != 1 {
		return fmt.Errorf("unsupported compression %d", comp)
	}
	planar, err := d.entryInt(tagPlanarConfig, 1)
	if err != nil {
		return err
	}
	if planar != 1 {
		return fmt.Errorf("unsupported planar configuration %d", planar)
	}
	spp, err := d.entryInt(tagSamplesPerPixel, 1)
	if err != nil {
		return err
	}
	d.samplesPerPixel = int(spp)

	bits, err := d.entryInt(tagBitsPerSample, 0)
	if err != nil {
		return err
	}
	format, err := d.entryInt(tagSampleFormat, formatUint)
	if err != nil {
		return err
	}
	d.bits, d.format = int(bits), uint16(format)
	switch d.format {
	case formatUint, formatInt:
		if d.bits != 8 && d.bits != 16 && d.bits != 32 {
			return fmt.Errorf("unsupported integer sample width %d", d.bits)
		}
	case formatFloat:
		if d.bits != 32 && d.bits != 64 {
			return fmt.Errorf("unsupported float sample width %d", d.bits)
		}
	default:
		return fmt.Errorf("unsupported sample format %d", d.format)
	}

	if offs, ok, err := d.entryInts(tagTileOffsets); err != nil {
		return err
	} else if ok {
		tw, err := d.entryInt(tagTileWidth, 0)
		if err != nil {
			return err
		}
		tl, err := d.entryInt(tagTileLength, 0)
		if err != nil {
			return err
		}
		if tw <= 0 || tl <= 0 {
			return fmt.Errorf("missing tile dimensions")
		}
		d.tileWidth, d.tileLength, d.tileOffsets = int(tw), int(tl), offs
		return nil
	}

	offs, ok, err := d.entryInts(tagStripOffsets)
	if err != nil {
		return err
	}
	if !ok || len(offs) == 0 {
		return fmt.Errorf("missing strip or tile offsets")
	}
	d.stripOffsets = offs
	rps, err := d.entryInt(tagRowsPerStrip, int64(d.height))
	if err != nil {
		return err
	}
	// 约定 2^32-1 表示全图单条带
	if rps <= 0 || rps > int64(d.height) {
		rps = int64(d.height)
	}
	d.rowsPerStrip = int(rps)
	return nil
}

func (d *Dataset) resolveGeo() error {
	scale, hasScale, err := d.entryDoubles(tagPixelScale)
	if err != nil {
		return err
	}
	tie, hasTie, err := d.entryDoubles(tagTiepoint)
	if err != nil {
		return err
	}
	switch {
	case hasScale && hasTie && len(scale) >= 2 && len(tie) >= 5:
		if scale[0] == 0 || scale[1] == 0 {
			return fmt.Errorf("degenerate pixel scale")
		}
		// 锚点像素 (i,j) 对应地理点 (x,y)；y 轴按行号递减
		d.stepX = scale[0]
		d.stepY = -scale[1]
		d.originX = tie[3] - tie[0]*scale[0]
		d.originY = tie[4] + tie[1]*scale[1]
	default:
		m, hasM, err := d.entryDoubles(tagTransformation)
		if err != nil {
			return err
		}
		if !hasM || len(m) < 16 {
			return fmt.Errorf("no georeferencing tags")
		}
		if m[1] != 0 || m[4] != 0 {
			return fmt.Errorf("rotated rasters not supported")
		}
		if m[0] == 0 || m[5] == 0 {
			return fmt.Errorf("degenerate model transformation")
		}
		d.stepX, d.stepY = m[0], m[5]
		d.originX, d.originY = m[3], m[7]
	}

	if s, ok, err := d.entryASCII(tagGDALNoData); err != nil {
		return err
	} else if ok {
		if v, perr := strconv.ParseFloat(strings.TrimSpace(s), 64); perr == nil {
			d.noData = v
			d.hasNoData = true
		}
	}
	return nil
}
