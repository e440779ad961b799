// Copyright (c) ExtractFlow Authors.
// Licensed under the MIT License.

/*
Package shape 从 YAML 或 JSON 文件加载声明式的形状定义，并构建 schema.TypeDescriptor。

文件示例：

	name: User
	description: A person mentioned in the text
	fields:
	  - name: name
	    type: string
	  - name: age
	    type: int
	    minimum: 0
	  - name: role
	    type: enum
	    values: [admin, member]
	    optional: true
	  - name: friends
	    type: array
	    items: {type: ref, ref: User}
	definitions:
	  - name: Address
	    fields: [...]

带 fields 的节点默认为 object。definitions 中的对象会先注册到 Factory，
供 ref 节点引用（递归形状只能通过 ref 表达）。
*/
package shape
