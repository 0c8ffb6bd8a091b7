// 包 api：集中注册 HTTP API 路由以解耦主入口，便于后续扩展与替换
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"snap-api/internal/crs"
	"snap-api/internal/geomindex"
	"snap-api/internal/indexer"
	"snap-api/internal/layers"
	"snap-api/internal/logger"
	"snap-api/internal/plugins"
	"snap-api/internal/settings"
	"snap-api/internal/snap"
	"snap-api/internal/store"
	"snap-api/internal/version"

	"github.com/paulmach/orb"
	"github.com/redis/go-redis/v9"
)

// Deps：路由依赖集合
// 约束：St 与 RC 都可为 nil；无 Postgres 时跳过统计与热点记录，无 Redis 时
//      /snap 退化为进程内 LRU 缓存。
type Deps struct {
	St       *store.Store
	RC       *redis.Client
	Registry *layers.Registry
	Handle   *geomindex.Handle
	Coord    *indexer.Coordinator
	Resolver *snap.Resolver
	Settings *settings.Service
	Engines  *plugins.Manager
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.Header().Set("cache-control", "no-store")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func queryFloat(r *http.Request, name string) (float64, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return 0, fmt.Errorf("missing %s", name)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("bad %s: %w", name, err)
	}
	return v, nil
}

// 解析视口参数：extent=minx,miny,maxx,maxy 加 width/height（像素）
// 约束：全部可选；缺省视口的单位比例为 1，容差按地图单位原值处理
func parseViewport(r *http.Request) (crs.Viewport, error) {
	var vp crs.Viewport
	q := r.URL.Query()
	if s := q.Get("extent"); s != "" {
		parts := strings.Split(s, ",")
		if len(parts) != 4 {
			return vp, fmt.Errorf("bad extent: want minx,miny,maxx,maxy")
		}
		vals := make([]float64, 4)
		for i, p := range parts {
			v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return vp, fmt.Errorf("bad extent: %w", err)
			}
			vals[i] = v
		}
		vp.Extent = orb.Bound{Min: orb.Point{vals[0], vals[1]}, Max: orb.Point{vals[2], vals[3]}}
	}
	if s := q.Get("width"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return vp, fmt.Errorf("bad width: %w", err)
		}
		vp.WidthPx = n
	}
	if s := q.Get("height"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return vp, fmt.Errorf("bad height: %w", err)
		}
		vp.HeightPx = n
	}
	vp.CRS = q.Get("crs")
	return vp, nil
}

// 缓存键包含点束代次与换算后的容差，索引重建或配置变更后旧键自然失效
func snapCacheKey(runID string, x, y, tol float64, s settings.Settings) string {
	return fmt.Sprintf("snap:%s:%.3f:%.3f:%.3f:%t:%t:%t",
		runID, x, y, tol, s.SnapVertices, s.SnapSegments, s.UseFallbackIndex)
}

func cacheTTL() time.Duration {
	if s := os.Getenv("SNAP_CACHE_TTL_S"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	return 60 * time.Second
}

// 命中则计数；未命中额外落一条热点记录，便于发现图层缺口
func recordOutcome(ctx context.Context, st *store.Store, res snapResult, x, y float64) {
	if st == nil {
		return
	}
	_ = st.IncrSnapStats(ctx, res.Matched)
	if !res.Matched {
		_ = st.RecordRecentMiss(ctx, x, y)
	}
}

// 构建并返回 API 路由：独立 ServeMux 便于在主入口挂载到 /api 前缀
func BuildRoutes(d Deps) *http.ServeMux {
	apiMux := http.NewServeMux()
	local := newLRU(4096, cacheTTL())
	ttl := cacheTTL()

	apiMux.HandleFunc("/snap", func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		x, errX := queryFloat(r, "x")
		y, errY := queryFloat(r, "y")
		if errX != nil || errY != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "x and y are required numbers"})
			return
		}
		vp, err := parseViewport(r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		s := d.Settings.Load(ctx)
		tol := snap.MapTolerance(s, vp)
		key := snapCacheKey(d.Handle.Current().RunID(), x, y, tol, s)

		if d.RC != nil {
			if raw, _ := d.RC.Get(ctx, key).Result(); raw != "" {
				var res snapResult
				if json.Unmarshal([]byte(raw), &res) == nil {
					recordOutcome(ctx, d.St, res, x, y)
					writeJSON(w, http.StatusOK, res)
					return
				}
			}
		} else if res, ok := local.Get(key); ok {
			recordOutcome(ctx, d.St, res, x, y)
			writeJSON(w, http.StatusOK, res)
			return
		}

		out := d.Resolver.Resolve(ctx, orb.Point{x, y}, vp, s)
		res := snapResult{Matched: out.Matched, Source: out.Source, Engine: out.Engine, Kind: out.Kind}
		if out.Matched {
			res.X, res.Y = out.Point[0], out.Point[1]
		}
		if d.RC != nil {
			if b, err := json.Marshal(res); err == nil {
				d.RC.Set(ctx, key, string(b), ttl)
			}
		} else {
			local.Set(key, res)
		}
		recordOutcome(ctx, d.St, res, x, y)
		writeJSON(w, http.StatusOK, res)
	})

	apiMux.HandleFunc("/settings", func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, d.Settings.Load(ctx))
		case http.MethodPut, http.MethodPost:
			var body map[string]any
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad json body"})
				return
			}
			// 部分更新：当前值铺底，新值覆盖；旧键名先折算成规范键再覆盖
			kv := d.Settings.Load(ctx).ToMap()
			for k, v := range body {
				kv[settings.CanonicalKey(strings.ToLower(strings.TrimSpace(k)))] = fmt.Sprintf("%v", v)
			}
			next := settings.FromMap(kv)
			if err := d.Settings.Save(ctx, next); err != nil {
				logger.L().Error("settings_save_failed", "err", err.Error())
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "save failed"})
				return
			}
			writeJSON(w, http.StatusOK, next)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})

	apiMux.HandleFunc("/layers", func(w http.ResponseWriter, r *http.Request) {
		visible := d.Registry.VisibleIDs()
		ls := d.Registry.Layers()
		out := make([]layerInfo, 0, len(ls))
		for _, l := range ls {
			kind := "unknown"
			if k, err := l.Kind(); err == nil {
				kind = k.String()
			}
			_, vis := visible[l.ID()]
			out = append(out, layerInfo{
				ID: l.ID(), Name: l.Name(), Kind: kind, CRS: l.CRS(), Visible: vis, Valid: l.Valid(),
			})
		}
		writeJSON(w, http.StatusOK, out)
	})

	apiMux.HandleFunc("/index/rebuild", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		token := os.Getenv("ADMIN_TOKEN")
		if token == "" || r.Header.Get("x-admin-token") != token {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		if d.Coord.Rebuild("api") {
			writeJSON(w, http.StatusAccepted, map[string]bool{"accepted": true})
			return
		}
		writeJSON(w, http.StatusConflict, map[string]bool{"accepted": false})
	})

	apiMux.HandleFunc("/index/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, d.Coord.Status())
	})

	apiMux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		if d.St == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "store unavailable"})
			return
		}
		t, err := d.St.GetTotals(r.Context())
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "query failed"})
			return
		}
		writeJSON(w, http.StatusOK, statsResult{Total: t.Total, Matched: t.Matched, Today: t.Today})
	})

	apiMux.HandleFunc("/stats/misses", func(w http.ResponseWriter, r *http.Request) {
		if d.St == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "store unavailable"})
			return
		}
		hours, _ := strconv.Atoi(r.URL.Query().Get("hours"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		cells, err := d.St.FetchMissHotspots(r.Context(), hours, limit)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "query failed"})
			return
		}
		out := make([]missRow, 0, len(cells))
		for _, c := range cells {
			out = append(out, missRow{X: c.X, Y: c.Y, Misses: c.Misses})
		}
		writeJSON(w, http.StatusOK, out)
	})

	apiMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		b := d.Handle.Current()
		engines := []string{}
		for _, e := range d.Engines.HealthyEngines() {
			engines = append(engines, e.Name())
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  "ok",
			"version": version.Version,
			"points":  b.Len(),
			"run_id":  b.RunID(),
			"engines": engines,
		})
	})

	return apiMux
}
