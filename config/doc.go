// Package config 提供 ExtractFlow 的配置加载。
//
// 配置优先级：默认值 → YAML 文件 → 环境变量（EXTRACTFLOW_ 前缀）。
package config
