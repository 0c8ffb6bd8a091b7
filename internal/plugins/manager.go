package plugins

import (
	"context"
	"os"
	"strconv"
	"sync"
	"time"

	"snap-api/internal/logger"
	"snap-api/internal/metrics"
	"snap-api/pkg/snapengine"
)

// 文档注释：吸附引擎接口（统一契约）
// 背景：抽象各吸附数据源为同构引擎，解析层通过统一接口按优先级逐个查询；
//      引擎侧决定命中判定与吸附坐标。
// 约束：Snap 返回 nil 响应视为未命中；Heartbeat 用于健康检测与熔断。
type Engine interface {
	Name() string
	Version() string
	Snap(ctx context.Context, q snapengine.Request) (*snapengine.Response, error)
	Heartbeat(ctx context.Context) error
}

// 文档注释：引擎健康状态缓存
// 背景：记录健康与最近心跳时间；管理层据此筛选“健康引擎链”。
type status struct {
	healthy bool
	last    time.Time
}

// 文档注释：引擎管理器
// 背景：负责引擎注册、心跳、健康筛选；为解析层提供按注册顺序排列的可用引擎链，
//      注册顺序即吸附优先级。
// 约束：心跳周期默认 10s，可用 ENGINE_HEARTBEAT_INTERVAL_S 调整；
//      心跳异常视为不健康，自动从链中剔除；线程安全读写。
type Manager struct {
	mu         sync.RWMutex
	es         map[string]Engine
	st         map[string]status
	order      []string
	hbInterval time.Duration
}

func NewManager() *Manager {
	iv := 10
	if s := os.Getenv("ENGINE_HEARTBEAT_INTERVAL_S"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			iv = n
		}
	}
	return &Manager{es: make(map[string]Engine), st: make(map[string]status), hbInterval: time.Duration(iv) * time.Second}
}

// 文档注释：注册引擎
// 背景：进程内/外引擎均通过此方法注册到管理器；默认设置为健康状态以便参与解析。
// 约束：同名重复注册覆盖实现但保留原有优先级位置。
func (m *Manager) Register(e Engine) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.es[e.Name()]; !ok {
		m.order = append(m.order, e.Name())
	}
	m.es[e.Name()] = e
	m.st[e.Name()] = status{healthy: true, last: time.Now()}
	logger.L().Info("engine_registered", "name", e.Name(), "version", e.Version())
}

// 文档注释：获取健康引擎链
// 背景：供解析层调用；仅返回当前判定为健康的引擎，顺序与注册顺序一致。
func (m *Manager) HealthyEngines() []Engine {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Engine
	for _, k := range m.order {
		if m.st[k].healthy {
			out = append(out, m.es[k])
		}
	}
	return out
}

// Names：全部已注册引擎名，按优先级排列
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// 文档注释：启动心跳循环
// 背景：周期性调用引擎 Heartbeat 更新健康状态；在 ctx 取消时停止。
func (m *Manager) Start(ctx context.Context) {
	t := time.NewTicker(m.hbInterval)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				m.doHeartbeat(ctx)
			}
		}
	}()
}

func (m *Manager) doHeartbeat(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, e := range m.es {
		err := e.Heartbeat(ctx)
		if err != nil {
			m.st[k] = status{healthy: false, last: time.Now()}
			logger.L().Debug("engine_heartbeat_fail", "name", e.Name(), "err", err)
			metrics.EngineHeartbeatTotal.WithLabelValues(e.Name(), "fail").Inc()
		} else {
			m.st[k] = status{healthy: true, last: time.Now()}
			logger.L().Debug("engine_heartbeat_ok", "name", e.Name())
			metrics.EngineHeartbeatTotal.WithLabelValues(e.Name(), "ok").Inc()
		}
	}
}
