package shape

import (
	"fmt"

	"github.com/BaSui01/extractflow/schema"
	"github.com/BaSui01/extractflow/validation"
)

// Build 注册 definitions 并构建根节点的描述符。f 为 nil 时使用进程级 Factory。
func (d *Definition) Build(f *schema.Factory) (*schema.TypeDescriptor, error) {
	if f == nil {
		f = schema.Default()
	}
	for i := range d.Definitions {
		def := &d.Definitions[i]
		if def.kind() != "object" {
			return nil, &schema.SchemaError{Shape: def.Name, Reason: "definitions must be objects"}
		}
		td, err := def.Descriptor()
		if err != nil {
			return nil, err
		}
		if err := f.Register(td); err != nil {
			return nil, err
		}
	}
	root, err := d.Node.Descriptor()
	if err != nil {
		return nil, err
	}
	if root.Kind() == schema.KindObject {
		// 根对象也可被自身引用
		if err := f.Register(root); err != nil {
			return nil, err
		}
	}
	return root, nil
}

// Descriptor 把节点转换为 TypeDescriptor。
func (n *Node) Descriptor() (*schema.TypeDescriptor, error) {
	switch k := n.kind(); k {
	case "string":
		return schema.String(), nil
	case "int":
		return schema.Int(), nil
	case "float":
		return schema.Float(), nil
	case "bool":
		return schema.Bool(), nil
	case "enum":
		name := n.Name
		if name == "" {
			name = "enum"
		}
		return schema.Enum(name, n.Values...), nil
	case "ref":
		return schema.Ref(n.Ref), nil
	case "array":
		if n.Items == nil {
			return nil, &schema.SchemaError{Shape: n.Name, Reason: "array without items"}
		}
		elem, err := n.Items.Descriptor()
		if err != nil {
			return nil, err
		}
		return schema.ArrayOf(elem), nil
	case "object":
		if n.Name == "" {
			return nil, &schema.SchemaError{Reason: "object shape without name"}
		}
		b := schema.NewObject(n.Name).Describe(n.Description)
		for i := range n.Fields {
			fd, err := n.Fields[i].field()
			if err != nil {
				return nil, fmt.Errorf("%s: %w", n.Name, err)
			}
			b.Field(fd)
		}
		return b.Build()
	default:
		return nil, &schema.SchemaError{Shape: n.Name, Reason: fmt.Sprintf("unknown type %q", k)}
	}
}

// field 把字段节点转换为 schema.Field 并附加约束。
func (n *Node) field() (*schema.Field, error) {
	if n.Name == "" {
		return nil, &schema.SchemaError{Reason: "field without name"}
	}
	// 内联对象以字段名命名
	td, err := n.Descriptor()
	if err != nil {
		return nil, err
	}

	fd := schema.NewField(n.Name, td).Describe(n.Description)
	if n.Optional {
		fd.Optional()
	}
	if n.Minimum != nil {
		fd.Min(*n.Minimum)
	}
	if n.Maximum != nil {
		fd.Max(*n.Maximum)
	}
	if n.MinLength != nil {
		fd.MinLength(*n.MinLength)
	}
	if n.MaxLength != nil {
		fd.MaxLength(*n.MaxLength)
	}
	if n.Pattern != "" {
		fd.Pattern(n.Pattern)
	}
	if n.Format != "" {
		format := validation.StringFormat(n.Format)
		if !validation.KnownFormat(format) {
			return nil, &schema.SchemaError{Shape: n.Name, Reason: fmt.Sprintf("unknown format %q", n.Format)}
		}
		fd.Format(format)
	}
	if n.MinItems != nil {
		fd.MinItems(*n.MinItems)
	}
	if n.MaxItems != nil {
		fd.MaxItems(*n.MaxItems)
	}
	return fd, nil
}
