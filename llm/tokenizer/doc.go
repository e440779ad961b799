// Package tokenizer 提供统一的 Token 计数接口，支持 tiktoken 精确计数与 CJK 估算器。
// 抽取流程用它估算每次请求的 prompt 大小并写入 RequestSent 事件。
package tokenizer
