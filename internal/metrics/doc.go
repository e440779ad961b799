// Copyright (c) ExtractFlow Authors.
// Licensed under the MIT License.

/*
包 metrics 提供基于 Prometheus 的抽取指标采集能力，覆盖抽取调用、
LLM 请求与响应缓存三个维度。

# 核心类型

  - Collector：指标收集器，持有 Counter、Histogram 向量指标，
    并拥有独立的 Registry，便于 CLI 导出为文本文件。
  - Collector.Sink：把抽取生命周期事件转换为指标的 events.Sink。

# 主要能力

  - 抽取指标：调用总数（按 mode/status）、每次调用的尝试次数、
    调用耗时、纠错重试次数、流式部分结果次数。
  - LLM 指标：请求总数、请求耗时、Token 用量（prompt/completion），
    按 provider/model 分组。
  - 缓存指标：命中与未命中计数，按 level（local/redis）分组。
*/
package metrics
