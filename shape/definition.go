package shape

// Node 描述一个形状节点，同时用于顶层形状、字段与数组元素。
type Node struct {
	Name        string `yaml:"name,omitempty" json:"name,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	// Type: string, int, float, bool, enum, object, array, ref
	Type     string `yaml:"type,omitempty" json:"type,omitempty"`
	Optional bool   `yaml:"optional,omitempty" json:"optional,omitempty"`

	Values []string `yaml:"values,omitempty" json:"values,omitempty"` // enum
	Items  *Node    `yaml:"items,omitempty" json:"items,omitempty"`   // array
	Ref    string   `yaml:"ref,omitempty" json:"ref,omitempty"`       // ref
	Fields []Node   `yaml:"fields,omitempty" json:"fields,omitempty"` // object

	// 约束
	Minimum   *float64 `yaml:"minimum,omitempty" json:"minimum,omitempty"`
	Maximum   *float64 `yaml:"maximum,omitempty" json:"maximum,omitempty"`
	MinLength *int     `yaml:"min_length,omitempty" json:"min_length,omitempty"`
	MaxLength *int     `yaml:"max_length,omitempty" json:"max_length,omitempty"`
	Pattern   string   `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	Format    string   `yaml:"format,omitempty" json:"format,omitempty"`
	MinItems  *int     `yaml:"min_items,omitempty" json:"min_items,omitempty"`
	MaxItems  *int     `yaml:"max_items,omitempty" json:"max_items,omitempty"`
}

// Definition 是一个形状文件：根节点加上可被引用的对象定义。
type Definition struct {
	Node        `yaml:",inline" json:",inline"`
	Definitions []Node `yaml:"definitions,omitempty" json:"definitions,omitempty"`
}

// kind 返回规范化后的类型名。
func (n *Node) kind() string {
	switch n.Type {
	case "":
		if len(n.Fields) > 0 {
			return "object"
		}
		if n.Ref != "" {
			return "ref"
		}
		return "string"
	case "integer":
		return "int"
	case "number":
		return "float"
	case "boolean":
		return "bool"
	case "list":
		return "array"
	}
	return n.Type
}
