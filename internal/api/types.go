package api

// 文档注释：对外信封结构
// 背景：批量查询逐位置独立成败，信封里每个条目要么携带结果要么携带错误对象，
// 一个位置失败不影响同批其他位置的返回
// 约束：字段稳定；新增字段需评估前端与缓存兼容性

// lookupEntry：单个位置的结局；成功时填坐标与高程，失败时填原始位置串与错误
type lookupEntry struct {
	Latitude  *float64   `json:"latitude,omitempty"`
	Longitude *float64   `json:"longitude,omitempty"`
	Elevation *float64   `json:"elevation,omitempty"`
	Location  string     `json:"location,omitempty"`
	Error     *wireError `json:"error,omitempty"`
}

// wireError：对外错误对象，code 取自查询层错误码
type wireError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// lookupResponse：查询信封
type lookupResponse struct {
	Results []lookupEntry `json:"results"`
}

// lookupRequest：POST 请求体
type lookupRequest struct {
	Locations []string `json:"locations"`
}
