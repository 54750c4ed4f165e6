// 包 api：集中注册 HTTP API 路由以解耦主入口，便于后续扩展与替换
package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"elevation-api/internal/elevation"
	"elevation-api/internal/store"
	"elevation-api/internal/version"
)

// collectLocations：从查询参数或 JSON 体收集位置串
// 背景：GET 允许重复 locations 参数，单个参数内还可用竖线携带多个坐标对
// （locations=51.5,-0.1|48.8,2.3）；POST 用 {"locations": [...]}
func collectLocations(r *http.Request) ([]string, error) {
	if r.Method == http.MethodPost {
		var req lookupRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, err
		}
		return req.Locations, nil
	}
	var out []string
	for _, p := range r.URL.Query()["locations"] {
		for _, loc := range strings.Split(p, "|") {
			if loc != "" {
				out = append(out, loc)
			}
		}
	}
	return out, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.Header().Set("cache-control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// BuildRoutes：构建 API 路由；st 可为 nil（未配置统计库）
func BuildRoutes(svc *elevation.Service, st *store.Store) *http.ServeMux {
	apiMux := http.NewServeMux()

	apiMux.HandleFunc("/lookup", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		locs, err := collectLocations(r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "malformed request body"})
			return
		}
		if len(locs) == 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "no locations provided"})
			return
		}

		outcomes := svc.LookupBatch(r.Context(), locs)
		resp := lookupResponse{Results: make([]lookupEntry, 0, len(outcomes))}
		okCount := 0
		for i, o := range outcomes {
			if o.Err != nil {
				resp.Results = append(resp.Results, lookupEntry{
					Location: locs[i],
					Error:    &wireError{Code: elevation.Code(o.Err), Message: o.Err.Error()},
				})
				continue
			}
			okCount++
			res := o.Result
			resp.Results = append(resp.Results, lookupEntry{
				Latitude:  &res.Latitude,
				Longitude: &res.Longitude,
				Elevation: &res.Elevation,
			})
		}
		if st != nil && okCount > 0 {
			_ = st.IncrStats(r.Context(), okCount)
		}
		writeJSON(w, http.StatusOK, resp)
	})

	apiMux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		m := map[string]any{"total": int64(0), "today": int64(0)}
		if st != nil {
			t, _ := st.GetTotals(r.Context())
			m["total"] = t.Total
			m["today"] = t.Today
		}
		writeJSON(w, http.StatusOK, m)
	})

	apiMux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "commit": version.Commit})
	})

	return apiMux
}
