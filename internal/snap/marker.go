package snap

import (
	"snap-api/internal/logger"

	"github.com/paulmach/orb"
)

// Marker：吸附标记
// 背景：桌面端在命中处画十字标记、未命中时擦除；服务端场景由实现决定表现形式。
// 约束：每次解析恰好触发 Show 或 Hide 其中之一。
type Marker interface {
	Show(p orb.Point)
	Hide()
}

// LogMarker：把标记动作写进结构化日志，用于无界面环境与回放诊断
type LogMarker struct{}

func (LogMarker) Show(p orb.Point) { logger.L().Info("marker_show", "x", p[0], "y", p[1]) }
func (LogMarker) Hide()            { logger.L().Info("marker_hide") }
