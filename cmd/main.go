// 程序入口：仅负责读取配置、初始化依赖并启动服务；API 注册在 internal/api 以便扩展
package main

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"snap-api/internal/api"
	"snap-api/internal/crs"
	"snap-api/internal/geomindex"
	"snap-api/internal/indexer"
	"snap-api/internal/ingest"
	"snap-api/internal/layers"
	"snap-api/internal/logger"
	"snap-api/internal/metrics"
	"snap-api/internal/middleware"
	"snap-api/internal/migrate"
	"snap-api/internal/plugins"
	"snap-api/internal/settings"
	"snap-api/internal/snap"
	"snap-api/internal/store"
	"snap-api/internal/utils"
	"snap-api/internal/version"

	"github.com/joho/godotenv"
	"github.com/paulmach/orb"
)

// parseViewportEnv：从环境变量装配视口
// 背景：无头部署时没有前端告知视口，按配置的工作范围做候选过滤与容差换算；
//      未配置则返回零视口，构建不过滤、像素容差按 1:1 处理
func parseViewportEnv() crs.Viewport {
	var vp crs.Viewport
	ext := os.Getenv("SNAP_VIEWPORT_EXTENT")
	if ext != "" {
		parts := strings.Split(ext, ",")
		if len(parts) == 4 {
			vals := make([]float64, 4)
			ok := true
			for i, p := range parts {
				v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
				if err != nil {
					ok = false
					break
				}
				vals[i] = v
			}
			if ok {
				vp.Extent = orb.Bound{Min: orb.Point{vals[0], vals[1]}, Max: orb.Point{vals[2], vals[3]}}
			}
		}
	}
	vp.CRS = os.Getenv("SNAP_VIEWPORT_CRS")
	if v, err := strconv.Atoi(os.Getenv("SNAP_VIEWPORT_WIDTH")); err == nil {
		vp.WidthPx = v
	}
	if v, err := strconv.Atoi(os.Getenv("SNAP_VIEWPORT_HEIGHT")); err == nil {
		vp.HeightPx = v
	}
	return vp
}

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
	l := logger.Setup()
	l.Debug("log_init_ok")
	apiBase := os.Getenv("API_BASE")
	if apiBase == "" {
		apiBase = "/api"
	}
	l.Debug("config_api_base", "base", apiBase)

	ctx := context.Background()

	// Postgres 可选：关闭时跑「纯文件图层」模式，统计与持久化配置降级
	var st *store.Store
	if os.Getenv("PG_ENABLE") != "false" {
		db, err := utils.OpenPostgresFromEnv()
		if err != nil {
			l.Error("db_open_error", "err", err)
			os.Exit(1)
		}
		defer db.Close()
		l.Info("db_open_ok")
		if err := db.Ping(); err != nil {
			l.Error("db_ping_error", "err", err)
		} else {
			l.Info("db_ping_ok")
		}
		if err := migrate.EnsureSchema(db); err != nil {
			l.Error("schema_error", "err", err)
			os.Exit(1)
		}
		st = store.AttachDB(db)
	} else {
		l.Info("pg_disabled")
	}

	rc := utils.OpenRedisFromEnv()
	if rc == nil {
		l.Info("redis_disabled")
	} else {
		if err := rc.Ping(ctx).Err(); err != nil {
			l.Error("redis_ping_error", "err", err)
		} else {
			l.Info("redis_ping_ok")
		}
	}

	// 配置后端：有库走键值表，无库走 YAML 文件
	ns := os.Getenv("SETTINGS_NAMESPACE")
	if ns == "" {
		ns = settings.DefaultNamespace
	}
	var sstore settings.Store
	if st != nil {
		sstore = settings.NewPGStore(st, ns)
	} else {
		path := os.Getenv("SNAP_SETTINGS_FILE")
		if path == "" {
			path = filepath.Join("data", "settings.yaml")
		}
		sstore = settings.NewFileStore(path)
	}
	svc := settings.NewService(sstore, rc, ns)

	// 图层注册表：目录图层 + 库内图层 + 可选 MMDB 点集
	layerDir := os.Getenv("SNAP_LAYER_DIR")
	if layerDir == "" {
		layerDir = filepath.Join("data", "layers")
	}
	l.Debug("config_layer_dir", "dir", layerDir)
	reg := layers.NewRegistry()
	for _, fl := range layers.LoadDir(layerDir) {
		reg.Add(fl, true)
	}
	if st != nil {
		seedDir := os.Getenv("SNAP_SEED_DIR")
		if err := ingest.EnsureSeeded(ctx, st.DB(), seedDir); err != nil {
			l.Error("seed_error", "err", err)
		}
		pgl, vis, err := layers.NewPGProvider(st.DB()).LoadLayers(ctx)
		if err != nil {
			l.Error("pg_layers_error", "err", err)
		} else {
			for _, pl := range pgl {
				reg.Add(pl, vis[pl.ID()])
			}
		}
	}
	if mmdbPath := os.Getenv("SNAP_MMDB_PATH"); mmdbPath != "" {
		if ml, err := layers.LoadMMDB(mmdbPath); err == nil {
			reg.Add(ml, true)
			l.Info("mmdb_layer_ok", "path", mmdbPath)
		} else {
			l.Error("mmdb_layer_error", "err", err)
		}
	}
	l.Info("layers_ready", "count", reg.Len())

	// 文档注释：吸附引擎管理器初始化
	// 背景：统一管理内置/外部引擎，提供健康引擎链给解析层；在后台启动心跳监控。
	pm := plugins.NewManager()
	if os.Getenv("SNAP_GRID_ENABLE") == "true" {
		pm.Register(plugins.NewGridFromEnv())
		l.Info("engine_register", "name", "grid")
	}
	// 文档注释：可选注册外部 HTTP 吸附引擎
	// 背景：通过简单 HTTP 契约接入第三方引擎；避免 Go 动态插件在 Windows 的可移植性问题。
	// 约束：SNAP_ENGINE_URLS 形如 name=url 逗号分隔，次序即解析优先级
	if eps := os.Getenv("SNAP_ENGINE_URLS"); eps != "" {
		for _, item := range strings.Split(eps, ",") {
			item = strings.TrimSpace(item)
			name, url, ok := strings.Cut(item, "=")
			if !ok || name == "" || url == "" {
				l.Warn("engine_url_skip", "item", item)
				continue
			}
			pm.Register(plugins.NewHTTP(name, "1.0", url))
			l.Info("engine_register", "name", name, "endpoint", url)
		}
	}
	pm.Start(ctx)

	handle := geomindex.NewHandle()
	bundleDir := os.Getenv("SNAP_BUNDLE_DIR")
	if bundleDir == "" {
		bundleDir = filepath.Join("data", "bundles")
	}
	backend := os.Getenv("SNAP_INDEX_BACKEND")
	co := indexer.New(indexer.Options{
		Handle:      handle,
		Builder:     geomindex.NewBuilder(backend),
		Registry:    reg,
		Settings:    svc,
		Viewport:    parseViewportEnv(),
		LayerDir:    layerDir,
		BundleDir:   bundleDir,
		Backend:     backend,
		OnlyVisible: os.Getenv("SNAP_ONLY_VISIBLE") != "false",
	})
	co.LoadSaved()
	co.Rebuild("startup")
	if err := co.StartWatcher(ctx); err != nil {
		l.Error("layer_watch_start_error", "err", err)
	}
	co.StartPeriodic(ctx)

	// 远端数据集每周刷新：完成后重载库内图层并触发重建
	if refreshURL := os.Getenv("SNAP_REFRESH_URL"); refreshURL != "" && st != nil {
		layerID := os.Getenv("SNAP_REFRESH_LAYER")
		if layerID == "" {
			layerID = "pg:remote"
		}
		db := st.DB()
		ingest.StartWeeklyRefresh(db, refreshURL, layerID, strings.TrimPrefix(layerID, "pg:"), func() {
			reg.RemovePrefix("pg:")
			pgl, vis, err := layers.NewPGProvider(db).LoadLayers(context.Background())
			if err != nil {
				l.Error("pg_layers_error", "err", err)
				return
			}
			for _, pl := range pgl {
				reg.Add(pl, vis[pl.ID()])
			}
			co.Rebuild("dataset_refresh")
		})
	}

	resolver := snap.NewResolver(pm, handle)
	apiMux := api.BuildRoutes(api.Deps{
		St:       st,
		RC:       rc,
		Registry: reg,
		Handle:   handle,
		Coord:    co,
		Resolver: resolver,
		Settings: svc,
		Engines:  pm,
	})

	mux := http.NewServeMux()
	mux.Handle(apiBase+"/", http.StripPrefix(apiBase, apiMux))
	mux.Handle(apiBase+"/metrics", metrics.Handler())

	ui := os.Getenv("UI_DIST")
	if ui == "" {
		ui = filepath.Join("ui", "dist")
	}
	mux.Handle("/", http.FileServer(http.Dir(ui)))

	// NOTE: 向前端暴露 API 基础路径，避免硬编码；生产环境由后端统一提供
	mux.HandleFunc("/config.js", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "application/javascript; charset=utf-8")
		w.Header().Set("cache-control", "no-store")
		_, _ = w.Write([]byte("window.__API_BASE__='" + apiBase + "'"))
		_, _ = w.Write([]byte("\n"))
		_, _ = w.Write([]byte("window.__SERVICE__='snap-api'"))
		_, _ = w.Write([]byte("\n"))
		_, _ = w.Write([]byte("window.__COMMIT_SHA__='" + version.Commit + "'"))
	})

	addr := os.Getenv("ADDR")
	if addr == "" {
		addr = ":8080"
	}
	handler := logger.AccessMiddleware(l)(mux)
	handler = middleware.Wrap(handler)
	s := &http.Server{Addr: addr, Handler: handler}
	tlsEnable := os.Getenv("TLS_ENABLE")
	if tlsEnable == "" || tlsEnable == "true" {
		certPath := os.Getenv("TLS_CERT_PATH")
		keyPath := os.Getenv("TLS_KEY_PATH")
		if certPath == "" {
			certPath = filepath.Join("data", "certs", "server.crt")
		}
		if keyPath == "" {
			keyPath = filepath.Join("data", "certs", "server.key")
		}
		_ = utils.EnsureSelfSignedCert(certPath, keyPath, "snap-api.local")
		// 可选：启动HTTP重定向到HTTPS（不改变HTTPS运行端口）
		if os.Getenv("TLS_REDIRECT_ENABLE") == "true" {
			redirAddr := os.Getenv("TLS_REDIRECT_ADDR")
			if redirAddr == "" {
				redirAddr = ":80"
			}
			go func() {
				httpRedir := http.NewServeMux()
				httpRedir.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
					host := r.Host
					httpsPort := strings.TrimPrefix(addr, ":")
					baseHost := host
					if i := strings.LastIndex(host, ":"); i != -1 {
						baseHost = host[:i]
					}
					targetHost := baseHost
					if httpsPort != "" {
						targetHost = baseHost + ":" + httpsPort
					}
					target := "https://" + targetHost + r.URL.RequestURI()
					http.Redirect(w, r, target, http.StatusMovedPermanently)
					l.Debug("http_redirect", "from", r.Host, "to", target)
				})
				l.Info("http_redirect_listening", "addr", redirAddr, "to", "https"+addr)
				_ = http.ListenAndServe(redirAddr, logger.AccessMiddleware(l)(httpRedir))
			}()
		}
		l.Info("listening_tls", "addr", addr, "cert", certPath)
		_ = s.ListenAndServeTLS(certPath, keyPath)
		return
	}
	l.Info("listening", "addr", addr)
	_ = s.ListenAndServe()
}
