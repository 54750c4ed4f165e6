// 包 elevation：高程查询编排层，对外只暴露 Lookup 与批量形式
package elevation

import (
	"errors"
	"fmt"
)

// 对外信封使用的错误码
const (
	CodeInvalidCoordinate = "INVALID_COORDINATE"
	CodeNotFound          = "ELEVATION_NOT_FOUND"
	CodeReadError         = "ELEVATION_READ_ERROR"
)

// InvalidCoordinateError：输入格式错误或经纬度越界
// 背景：按位置立即返回，不重试；信息中带上出错的轴与值便于调用方定位
type InvalidCoordinateError struct {
	Msg string
}

func (e *InvalidCoordinateError) Error() string { return e.Msg }

// NotFoundError：没有任何瓦片矩形覆盖该点
// 背景：数据覆盖缺口，不是故障；与读取失败严格区分
type NotFoundError struct {
	Latitude  float64
	Longitude float64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("elevation data not found for coordinates (%v, %v)", e.Latitude, e.Longitude)
}

// ReadError：所有覆盖瓦片的实际读取都失败
// 背景：基础设施故障（文件缺失、截断、解码失败）；逐瓦片的失败已先行记日志
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("error reading elevation from %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// Code：把查询错误映射为对外错误码；未知错误按读取失败处理
func Code(err error) string {
	var inv *InvalidCoordinateError
	if errors.As(err, &inv) {
		return CodeInvalidCoordinate
	}
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return CodeNotFound
	}
	return CodeReadError
}
