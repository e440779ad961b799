// Package openaicompat 实现 OpenAI Chat Completions 兼容协议的 Provider。
//
// OpenAI、DeepSeek、Qwen、GLM、Moonshot 以及 vLLM/Ollama 等本地服务共用这一协议，
// 只需配置 BaseURL、APIKey 与默认模型：
//
//	p := openaicompat.New(openaicompat.Config{
//	    ProviderName: "deepseek",
//	    APIKey:       cfg.APIKey,
//	    BaseURL:      "https://api.deepseek.com",
//	    DefaultModel: "deepseek-chat",
//	}, logger)
//
// 工具调用参数在协议中是 JSON 编码的字符串，本包负责与 types.ToolCall.Arguments
// （原始 JSON）之间的转换；流式响应按 SSE 解析。
package openaicompat
