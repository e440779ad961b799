// Package telemetry 封装 OpenTelemetry SDK 初始化逻辑，
// 为抽取流程提供 TracerProvider 和 MeterProvider。
// 遥测禁用时返回 noop Tracer，不连接任何外部服务。
package telemetry
