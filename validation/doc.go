/*
Package validation 定义抽取结果的校验结果类型与内置校验规则。

Result 要么有效，要么携带按顺序排列的 Violation 列表；多个 Result 通过
Combine 合并，任一无效则整体无效。Validator 作用于单个字段值，
ShapeValidator 作用于整个对象，可跨字段检查一致性。

内置规则（Minimum、MaxLength、Pattern、Format 等）既会渲染进发送给模型的
JSON Schema，也会在本地强制执行。
*/
package validation
