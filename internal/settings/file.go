package settings

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"snap-api/internal/logger"

	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// EnvPrefix：环境变量覆盖层的前缀，SNAPZEN_TOLERANCE_VALUE 覆盖 tolerance_value
const EnvPrefix = "SNAPZEN_"

// FileStore：基于单个 YAML 文件的设置存储
// 背景：离线/桌面场景没有 PostgreSQL，设置落在文件里随工程目录走；
//      环境变量以 SNAPZEN_ 前缀覆盖文件值，便于容器部署时临时调参。
// 约束：Save 只写文件，环境变量覆盖层是只读的。
type FileStore struct {
	path      string
	envPrefix string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, envPrefix: EnvPrefix}
}

// Load：文件在前、环境变量在后合并为扁平键值
// 约束：文件缺失视为空配置；文件存在但无法解析时报错，由上层决定回退
func (f *FileStore) Load(ctx context.Context) (map[string]string, error) {
	k := koanf.New(".")
	if f.path != "" {
		if _, err := os.Stat(f.path); err == nil {
			if err := k.Load(file.Provider(f.path), kyaml.Parser()); err != nil {
				return nil, fmt.Errorf("load settings file %s: %w", f.path, err)
			}
		}
	}
	tr := func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, f.envPrefix))
	}
	if err := k.Load(env.Provider(f.envPrefix, ".", tr), nil); err != nil {
		return nil, fmt.Errorf("load settings env: %w", err)
	}
	out := map[string]string{}
	for key, v := range k.All() {
		out[key] = fmt.Sprintf("%v", v)
	}
	return out, nil
}

// Save：整组键值写回 YAML 文件，键名字典序稳定输出
func (f *FileStore) Save(ctx context.Context, kv map[string]string) error {
	if f.path == "" {
		return errors.New("settings file path not set")
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return err
	}
	b, err := yamlv3.Marshal(kv)
	if err != nil {
		return err
	}
	if err := os.WriteFile(f.path, b, 0o644); err != nil {
		return err
	}
	logger.L().Debug("settings_file_saved", "path", f.path, "keys", len(kv))
	return nil
}
