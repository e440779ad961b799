// Copyright (c) ExtractFlow Authors.
// Licensed under the MIT License.

/*
Package extract 实现结构化抽取的控制器：把形状描述转换为 Schema，
通过 Adapter 请求模型，解析、反序列化并校验输出，失败时把错误反馈给模型重试。

# 状态机

每次调用按以下状态推进，尝试之间严格串行：

	Building → Requesting → Parsing → Deserializing → Validating → {Succeeded | Retrying | Failed}

Retrying 会在会话末尾追加一条 assistant 消息（上次的原始输出）与一条 user
纠错消息（错误列表），然后以同一个 Schema 回到 Requesting。尝试次数而非时间
限制循环；传输超时由 Adapter 背后的 llm.Provider 负责。

# 错误

  - *schema.SchemaError 与传输错误立即返回，不会重试
  - *ExtractionEmptyError、*structure.DeserializationError、*ValidationError
    在还有剩余次数时由控制器内部消化
  - 次数用尽时返回 *RetriesExhaustedError，Unwrap 得到最后一次尝试的错误

# 模式

ModeTools 通过强制调用单个函数传递 Schema；ModeJSON 使用 JSON 模式并在
system 消息中给出 Schema；ModeMarkdownJSON 要求模型把 JSON 放在 ```json 代码块中。
Provider 不支持原生函数调用时，ModeTools 自动降级为 ModeJSON。
*/
package extract
