/*
Package schema 将目标数据形状（TypeDescriptor）推导为可渲染、可缓存的 Schema。

# 概述

调用方通过构建器 API 声明形状：

	person := schema.NewObject("Person").
		Field(schema.StringField("name").Describe("full name")).
		Field(schema.IntField("age").ValidIf(positive, "age must be positive")).
		MustBuild()

Factory 将 TypeDescriptor 推导为 Schema 标签联合体：
ScalarSchema、EnumSchema、ObjectSchema、ObjectRefSchema、ArraySchema。
嵌套对象默认内联；启用 WithObjectReferences 后以命名引用
（ObjectRefSchema）指向共享注册表，循环结构只能通过引用表达。

# 缓存

Factory 内部持有两级 Cache：按形状标识缓存 Schema，按
owner + 字段名缓存 Property。并发推导同一 key 时通过 singleflight 合并。

# 渲染

Render 生成发送给模型的 JSON Schema，ToToolSchema 生成 tool-call
模式下的函数定义。标量与数组在顶层通过 Wrap 包装为对象（value / list）。
*/
package schema
