package settings

import (
	"context"
	"fmt"
	"sort"

	"snap-api/internal/store"
)

// PGStore：把设置键值落在 PostgreSQL 的 _snap_settings_kv 表
type PGStore struct {
	st *store.Store
	ns string
}

func NewPGStore(st *store.Store, namespace string) *PGStore {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &PGStore{st: st, ns: namespace}
}

func (p *PGStore) Load(ctx context.Context) (map[string]string, error) {
	return p.st.LoadSettingsKV(ctx, p.ns)
}

// Save：逐键 upsert；按键名排序让部分失败时的落库进度可复现
func (p *PGStore) Save(ctx context.Context, kv map[string]string) error {
	keys := make([]string, 0, len(kv))
	for k := range kv {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := p.st.UpsertSettingsKV(ctx, p.ns, k, kv[k]); err != nil {
			return fmt.Errorf("upsert %s: %w", k, err)
		}
	}
	return nil
}
