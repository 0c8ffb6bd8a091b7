// 文档注释：外部吸附引擎的 HTTP 契约
// 背景：吸附引擎可以进程外部署（精确几何内核、商业 SDK 的包装等），主服务通过
//      统一的 HTTP 契约调用；本包同时提供客户端与服务端脚手架，便于双方独立复用。
// 约束：
// 1) 不依赖项目内部代码，独立包可在其他工程直接引用；
// 2) 约定 GET /health 与 GET /snap 两个接口；
// 3) /snap 查询参数：x、y、tolerance（地图单位）、vertices、segments；
// 4) 响应 JSON：matched 为真时 x/y 为吸附结果，kind 标注命中部位。
package snapengine

import (
	"errors"
	"math"
	"strconv"
)

// 命中部位取值
const (
	KindVertex  = "vertex"
	KindSegment = "segment"
)

// Request：一次吸附查询，容差用地图单位表达
type Request struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Tolerance float64 `json:"tolerance"`
	Vertices  bool    `json:"vertices"`
	Segments  bool    `json:"segments"`
}

// Response：吸附结果，matched 为假时其余字段无意义
type Response struct {
	Matched bool    `json:"matched"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Kind    string  `json:"kind,omitempty"`
}

func parseCoord(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errors.New("not finite")
	}
	return f, nil
}

func formatCoord(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
