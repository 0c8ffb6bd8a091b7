package api

// 文档注释：吸附查询返回结构（对外）
// 背景：统一对外序列化模型，仅包含必要字段，避免泄露内部差异；便于缓存与统计一致化处理。
// 约束：字段稳定；Matched 为假时 x/y 固定为 0，前端以 matched 判断有效性。
type snapResult struct {
	Matched bool    `json:"matched"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Source  string  `json:"source,omitempty"`
	Engine  string  `json:"engine,omitempty"`
	Kind    string  `json:"kind,omitempty"`
}

// 图层清单条目：来自注册表的只读视图
type layerInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	CRS     string `json:"crs,omitempty"`
	Visible bool   `json:"visible"`
	Valid   bool   `json:"valid"`
}

type statsResult struct {
	Total   int64 `json:"total"`
	Matched int64 `json:"matched"`
	Today   int64 `json:"today"`
}

type missRow struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Misses int64   `json:"misses"`
}
