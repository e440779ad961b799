// Copyright (c) ExtractFlow Authors.
// Licensed under the MIT License.

/*
Package types 提供 ExtractFlow 的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 schema、extract、llm
等上层模块提供统一的类型契约，以避免循环依赖。

# 核心类型

  - Message / Role     : 对话消息，重试循环中的纠错轮次同样使用它
  - ToolCall           : 模型返回的工具调用（tool-call 抽取模式的载体）
  - ToolSchema         : 工具定义（name + description + JSON Schema parameters）
  - Error / ErrorCode  : 结构化错误体系，含 Retryable 标记与 Cause 链

# 主要能力

  - Context 传播：WithTraceID / WithCallID / WithLLMModel
  - 错误工具链：IsRetryable / GetErrorCode
*/
package types
