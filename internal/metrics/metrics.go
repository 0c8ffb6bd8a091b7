package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SnapRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "snapapi_snap_requests_total",
		Help: "Total number of /api/snap requests",
	})
	SnapResolveDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "snapapi_snap_resolve_duration_ms",
		Help:    "Snap resolution duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	})
	SnapPrimaryHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "snapapi_snap_primary_hits_total",
		Help: "Total matches answered by the primary engine chain",
	})
	SnapFallbackHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "snapapi_snap_fallback_hits_total",
		Help: "Total matches answered by the fallback point index",
	})
	SnapMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "snapapi_snap_misses_total",
		Help: "Total resolutions that produced no match",
	})
	RedisHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "snapapi_redis_hits_total",
		Help: "Total redis cache hits",
	})
	RedisMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "snapapi_redis_misses_total",
		Help: "Total redis cache misses",
	})
	IndexBuildTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "snapapi_index_build_total",
		Help: "Index build runs by result",
	}, []string{"result"})
	IndexBuildDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "snapapi_index_build_duration_ms",
		Help:    "Index build duration in milliseconds",
		Buckets: []float64{5, 20, 50, 100, 500, 1000, 5000, 20000, 60000},
	})
	IndexPoints = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "snapapi_index_points",
		Help: "Points held by the currently published bundle",
	})
	IndexLayerErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "snapapi_index_layer_errors_total",
		Help: "Layers skipped with errors during index builds",
	})
	EngineRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "snapapi_engine_requests_total",
		Help: "Total snap engine Snap requests",
	}, []string{"engine"})
	EngineMatchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "snapapi_engine_match_total",
		Help: "Total snap engine valid matches",
	}, []string{"engine"})
	EngineFailTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "snapapi_engine_fail_total",
		Help: "Total snap engine failures (error or invalid result)",
	}, []string{"engine"})
	EngineDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "snapapi_engine_duration_ms",
		Help:    "Snap engine call duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	}, []string{"engine"})
	EngineHeartbeatTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "snapapi_engine_heartbeat_total",
		Help: "Snap engine heartbeat count by status",
	}, []string{"engine", "status"})
)

func init() {
	prometheus.MustRegister(SnapRequestsTotal)
	prometheus.MustRegister(SnapResolveDurationMs)
	prometheus.MustRegister(SnapPrimaryHitsTotal)
	prometheus.MustRegister(SnapFallbackHitsTotal)
	prometheus.MustRegister(SnapMissesTotal)
	prometheus.MustRegister(RedisHitsTotal)
	prometheus.MustRegister(RedisMissesTotal)
	prometheus.MustRegister(IndexBuildTotal)
	prometheus.MustRegister(IndexBuildDurationMs)
	prometheus.MustRegister(IndexPoints)
	prometheus.MustRegister(IndexLayerErrorsTotal)
	prometheus.MustRegister(EngineRequestsTotal)
	prometheus.MustRegister(EngineMatchTotal)
	prometheus.MustRegister(EngineFailTotal)
	prometheus.MustRegister(EngineDurationMs)
	prometheus.MustRegister(EngineHeartbeatTotal)
}

// 文档注释：返回 Prometheus 指标监听器
// 背景：统一暴露注册指标到 /metrics 路径，供 Prometheus 抓取；在主入口挂载。
func Handler() http.Handler { return promhttp.Handler() }
