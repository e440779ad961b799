package extract

import (
	"fmt"
	"strings"
)

// Mode 决定 Schema 以何种方式传达给模型。
type Mode string

const (
	ModeTools        Mode = "tools"
	ModeJSON         Mode = "json"
	ModeMarkdownJSON Mode = "markdown_json"
)

// ParseMode 解析配置或命令行中的模式名称，大小写不敏感，"md_json" 视为 markdown_json。
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "tools", "tool", "function":
		return ModeTools, nil
	case "json", "json_mode":
		return ModeJSON, nil
	case "markdown_json", "md_json", "markdown":
		return ModeMarkdownJSON, nil
	}
	return "", fmt.Errorf("unknown extraction mode %q", s)
}

func (m Mode) String() string { return string(m) }

// State 是单次抽取调用所处的阶段。
type State int

const (
	StateBuilding State = iota
	StateRequesting
	StateParsing
	StateDeserializing
	StateValidating
	StateSucceeded
	StateRetrying
	StateFailed
)

var stateNames = [...]string{
	StateBuilding:      "building",
	StateRequesting:    "requesting",
	StateParsing:       "parsing",
	StateDeserializing: "deserializing",
	StateValidating:    "validating",
	StateSucceeded:     "succeeded",
	StateRetrying:      "retrying",
	StateFailed:        "failed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal 报告该状态是否为终态。
func (s State) Terminal() bool { return s == StateSucceeded || s == StateFailed }
