package geomindex

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"snap-api/internal/logger"

	"github.com/paulmach/orb"
)

// 文档注释：点束文件化
// 背景：把最近一次成功构建落盘，进程重启后先载入旧束提供兜底，再在后台跑新构建；
// 布局为 meta.json（运行元信息）+ points.bin（计数 + 定长记录，大端）。
// 约束：编号连续从 0 起，文件只存坐标序列；载入时长度校验不过即判损坏。
const (
	metaFileName   = "meta.json"
	pointsFileName = "points.bin"
	pointRecordLen = 16
)

type bundleMeta struct {
	RunID   string    `json:"run_id"`
	BuiltAt time.Time `json:"built_at"`
	Points  int       `json:"points"`
}

// SaveBundle：落盘当前束
func SaveBundle(dir string, b *Bundle) error {
	if b == nil {
		return fmt.Errorf("nil bundle")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	n := b.Len()
	buf := make([]byte, 4+n*pointRecordLen)
	binary.BigEndian.PutUint32(buf[0:4], uint32(n))
	for id := int64(0); id < int64(n); id++ {
		p, ok := b.points[id]
		if !ok {
			return fmt.Errorf("bundle ids not contiguous at %d", id)
		}
		off := 4 + int(id)*pointRecordLen
		binary.BigEndian.PutUint64(buf[off:off+8], math.Float64bits(p[0]))
		binary.BigEndian.PutUint64(buf[off+8:off+16], math.Float64bits(p[1]))
	}
	if err := os.WriteFile(filepath.Join(dir, pointsFileName), buf, 0o644); err != nil {
		return err
	}
	meta := bundleMeta{RunID: b.runID, BuiltAt: b.builtAt, Points: n}
	mb, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, metaFileName), mb, 0o644); err != nil {
		return err
	}
	logger.L().Debug("bundle_file_saved", "dir", dir, "points", n)
	return nil
}

// LoadBundle：从目录载入束
// 返回：重建索引后的束；文件缺失或损坏返回错误，调用方按「无历史束」处理
func LoadBundle(dir string, backend string) (*Bundle, error) {
	mb, err := os.ReadFile(filepath.Join(dir, metaFileName))
	if err != nil {
		return nil, err
	}
	var meta bundleMeta
	if err := json.Unmarshal(mb, &meta); err != nil {
		return nil, fmt.Errorf("bundle meta corrupt: %w", err)
	}
	raw, err := os.ReadFile(filepath.Join(dir, pointsFileName))
	if err != nil {
		return nil, err
	}
	if len(raw) < 4 {
		return nil, fmt.Errorf("bundle points truncated")
	}
	n := int(binary.BigEndian.Uint32(raw[0:4]))
	if len(raw) != 4+n*pointRecordLen {
		return nil, fmt.Errorf("bundle points size mismatch: header %d records, %d bytes", n, len(raw))
	}
	pts := make(map[int64]orb.Point, n)
	for i := 0; i < n; i++ {
		off := 4 + i*pointRecordLen
		x := math.Float64frombits(binary.BigEndian.Uint64(raw[off : off+8]))
		y := math.Float64frombits(binary.BigEndian.Uint64(raw[off+8 : off+16]))
		pts[int64(i)] = orb.Point{x, y}
	}
	b, err := NewFromPoints(meta.RunID, meta.BuiltAt, backend, pts)
	if err != nil {
		return nil, fmt.Errorf("bundle rebuild: %w", err)
	}
	logger.L().Debug("bundle_file_loaded", "dir", dir, "points", n, "run_id", meta.RunID)
	return b, nil
}
