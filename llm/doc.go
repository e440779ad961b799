/*
包 llm 提供抽取流程使用的大语言模型接入层。

# 概述

本包定义统一的 [Provider] 接口与请求/响应模型，屏蔽不同服务商在
协议、鉴权与流式格式上的差异。extract 包只依赖 Completion 与 Stream。

# 核心类型

  - [Provider]：Completion / Stream / HealthCheck / Name /
    SupportsNativeFunctionCalling
  - [ChatRequest] / [ChatResponse]：聊天请求与响应，
    [ResponseFormat] 对应 JSON 模式的 response_format
  - [StreamChunk]：流式增量，由 [StreamAccumulator] 拼接
  - [ProviderMiddleware]：Provider 装饰器，由 [Wrap] 组合

# 中间件

  - [RateLimitedProvider]：令牌桶限流（golang.org/x/time/rate）
  - [RetryingProvider]：传输层瞬时失败的指数退避重试

模型输出不合法时的自我纠正不在本层处理，由 extract 包负责。

# 相关子包

  - llm/providers/openaicompat：OpenAI Chat Completions 兼容实现
  - llm/cache：本地 LRU + Redis 的补全缓存
  - llm/retry：退避策略
  - llm/tokenizer：tiktoken 与估算分词器
*/
package llm
