/*
包 cache 提供 LLM 补全响应的多级缓存，本地 LRU 作为 L1、Redis 作为 L2。

# 概述

结构化抽取常对同一输入、同一 Schema 重复调用模型。[MultiLevelCache]
按请求内容（模型、消息、工具、输出格式）的 SHA-256 摘要缓存 ChatResponse，
[Provider] 把任意 llm.Provider 包裹为带缓存的实现：

	cached := cache.NewProvider(inner, cache.NewMultiLevelCache(rdb, nil, logger), logger)

只缓存非流式 Completion；Stream 直接透传。自我纠正重试会在对话中追加
纠正轮次，请求摘要随之变化，因此不会命中上一轮的错误响应。

# 键

[Key] 忽略 TraceID、Metadata、Timeout 与消息时间戳，只对影响模型输出的字段取摘要。
*/
package cache
