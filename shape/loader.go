package shape

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/BaSui01/extractflow/schema"
)

// LoadFile 读取形状文件，按扩展名识别格式（.yaml、.yml、.json）。
func LoadFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read shape file: %w", err)
	}
	format := detectFormat(path)
	if format == "" {
		return nil, fmt.Errorf("unsupported shape file extension: %s", filepath.Ext(path))
	}
	return LoadBytes(data, format)
}

// LoadBytes 解析 format（"yaml" 或 "json"）格式的形状定义。
func LoadBytes(data []byte, format string) (*Definition, error) {
	var def Definition
	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &def); err != nil {
			return nil, fmt.Errorf("parse YAML: %w", err)
		}
	case "json":
		if err := json.Unmarshal(data, &def); err != nil {
			return nil, fmt.Errorf("parse JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported format %q, use \"yaml\" or \"json\"", format)
	}
	return &def, nil
}

// Load 读取形状文件并构建描述符，definitions 注册到 f。
func Load(path string, f *schema.Factory) (*schema.TypeDescriptor, error) {
	def, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return def.Build(f)
}

func detectFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	case ".json":
		return "json"
	default:
		return ""
	}
}
