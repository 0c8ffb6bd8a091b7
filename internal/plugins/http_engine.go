package plugins

import (
	"context"

	"snap-api/pkg/snapengine"
)

// 文档注释：外部 HTTP 引擎适配器
// 背景：为进程外引擎（精确几何内核、商业 SDK 包装等）提供接入方式，
//      复用契约包的客户端实现查询与心跳。
// 约束：契约见 pkg/snapengine；请求超时由客户端控制，心跳失败由管理器熔断。
type HTTPEngine struct {
	name    string
	version string
	client  *snapengine.Client
}

func NewHTTP(name, version, endpoint string) *HTTPEngine {
	return &HTTPEngine{name: name, version: version, client: snapengine.NewClient(endpoint)}
}

func (h *HTTPEngine) Name() string    { return h.name }
func (h *HTTPEngine) Version() string { return h.version }

func (h *HTTPEngine) Heartbeat(ctx context.Context) error { return h.client.Health(ctx) }

func (h *HTTPEngine) Snap(ctx context.Context, q snapengine.Request) (*snapengine.Response, error) {
	return h.client.Snap(ctx, q)
}
