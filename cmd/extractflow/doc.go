// Copyright (c) ExtractFlow Authors.
// Licensed under the MIT License.

/*
Package main 提供 ExtractFlow 命令行程序入口。

# 概述

cmd/extractflow 读取 YAML/JSON 形状定义与输入文本，调用 OpenAI 兼容
接口完成结构化抽取，并把校验通过的结果以 JSON 输出到 stdout。

# 子命令

  - extract：对单个输入执行抽取（支持 --stream 输出部分结果）
  - batch：并发抽取多个输入文件，每行输出一个 JSON 结果
  - schema：打印形状对应的 JSON Schema 或工具定义
  - version：显示版本信息

# 组装

Provider 依次经过补全缓存（本地 LRU + Redis）、限流与传输层重试，
再交给 extract.Extractor；抽取事件同时写入 zap 日志与 Prometheus
指标，指标可通过 metrics.output_path 导出为文本文件。
*/
package main
