package schema

import (
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/BaSui01/extractflow/validation"
)

// Kind enumerates the shape kinds a TypeDescriptor can describe.
type Kind int

const (
	KindString Kind = iota + 1
	KindInt
	KindFloat
	KindBool
	KindEnum
	KindArray
	KindObject
	KindRef
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "integer"
	case KindFloat:
		return "number"
	case KindBool:
		return "boolean"
	case KindEnum:
		return "enum"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	case KindRef:
		return "ref"
	}
	return "unknown(" + strconv.Itoa(int(k)) + ")"
}

// IsScalar reports whether k is one of the four scalar kinds.
func (k Kind) IsScalar() bool {
	return k >= KindString && k <= KindBool
}

var descriptorSeq atomic.Uint64

func nextID(prefix, name string) string {
	return fmt.Sprintf("%s#%d:%s", prefix, descriptorSeq.Add(1), name)
}

// TypeDescriptor describes a target shape. It is immutable once built.
type TypeDescriptor struct {
	id          string
	kind        Kind
	name        string
	description string
	values      []string
	elem        *TypeDescriptor
	fields      []*Field
	checks      []validation.ShapeValidator
	err         error
}

var (
	stringType = &TypeDescriptor{id: "string", kind: KindString, name: "string"}
	intType    = &TypeDescriptor{id: "integer", kind: KindInt, name: "integer"}
	floatType  = &TypeDescriptor{id: "number", kind: KindFloat, name: "number"}
	boolType   = &TypeDescriptor{id: "boolean", kind: KindBool, name: "boolean"}
)

// String describes a string scalar.
func String() *TypeDescriptor { return stringType }

// Int describes an integer scalar.
func Int() *TypeDescriptor { return intType }

// Float describes a floating point scalar.
func Float() *TypeDescriptor { return floatType }

// Bool describes a boolean scalar.
func Bool() *TypeDescriptor { return boolType }

// Enum describes a fixed set of string literals.
func Enum(name string, values ...string) *TypeDescriptor {
	d := &TypeDescriptor{
		id:     nextID("enum", name),
		kind:   KindEnum,
		name:   name,
		values: append([]string(nil), values...),
	}
	if len(values) == 0 {
		d.err = fmt.Errorf("enum %q declares no values", name)
	}
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if _, dup := seen[v]; dup {
			d.err = fmt.Errorf("enum %q declares %q twice", name, v)
			break
		}
		seen[v] = struct{}{}
	}
	return d
}

// ArrayOf describes a homogeneous list of elem.
func ArrayOf(elem *TypeDescriptor) *TypeDescriptor {
	d := &TypeDescriptor{kind: KindArray, name: "array", elem: elem}
	if elem == nil {
		d.id = nextID("array", "nil")
		d.err = fmt.Errorf("array element descriptor is nil")
		return d
	}
	d.id = "[]" + elem.id
	return d
}

// Ref describes a named pointer to an object registered with a Factory.
// It is the only way to express a recursive shape.
func Ref(name string) *TypeDescriptor {
	d := &TypeDescriptor{id: "ref:" + name, kind: KindRef, name: name}
	if name == "" {
		d.err = fmt.Errorf("reference name is empty")
	}
	return d
}

// ID returns the identity used as cache key.
func (d *TypeDescriptor) ID() string { return d.id }

// Kind returns the descriptor kind.
func (d *TypeDescriptor) Kind() Kind { return d.kind }

// Name returns the human-readable name.
func (d *TypeDescriptor) Name() string { return d.name }

// Description returns the human-readable description.
func (d *TypeDescriptor) Description() string { return d.description }

// Values returns the enum literals.
func (d *TypeDescriptor) Values() []string { return append([]string(nil), d.values...) }

// Elem returns the element descriptor of an array.
func (d *TypeDescriptor) Elem() *TypeDescriptor { return d.elem }

// Fields returns the declared fields of an object, in declaration order.
func (d *TypeDescriptor) Fields() []*Field { return append([]*Field(nil), d.fields...) }

// Field returns the declared field with the given name.
func (d *TypeDescriptor) Field(name string) (*Field, bool) {
	for _, f := range d.fields {
		if f.name == name {
			return f, true
		}
	}
	return nil, false
}

// ObjectBuilder assembles an object TypeDescriptor.
type ObjectBuilder struct {
	name        string
	description string
	fields      []*Field
	checks      []validation.ShapeValidator
	id          string
}

// NewObject starts an object shape.
func NewObject(name string) *ObjectBuilder {
	return &ObjectBuilder{name: name}
}

// Describe sets the object description.
func (b *ObjectBuilder) Describe(description string) *ObjectBuilder {
	b.description = description
	return b
}

// Field appends fields in declaration order.
func (b *ObjectBuilder) Field(fields ...*Field) *ObjectBuilder {
	b.fields = append(b.fields, fields...)
	return b
}

// ValidateShape adds a whole-object validator, run after all field validators.
func (b *ObjectBuilder) ValidateShape(v validation.ShapeValidator) *ObjectBuilder {
	b.checks = append(b.checks, v)
	return b
}

// withID pins the identity, used for descriptors introspected from Go types.
func (b *ObjectBuilder) withID(id string) *ObjectBuilder {
	b.id = id
	return b
}

// Build finalizes the object. Field declaration errors are reported here.
func (b *ObjectBuilder) Build() (*TypeDescriptor, error) {
	if b.name == "" {
		return nil, &SchemaError{Reason: "object name is empty"}
	}
	seen := make(map[string]struct{}, len(b.fields))
	fields := make([]*Field, 0, len(b.fields))
	for _, f := range b.fields {
		if f == nil {
			return nil, &SchemaError{Shape: b.name, Reason: "nil field"}
		}
		if f.name == "" {
			return nil, &SchemaError{Shape: b.name, Reason: "field name is empty"}
		}
		if _, dup := seen[f.name]; dup {
			return nil, &SchemaError{Shape: b.name, Reason: fmt.Sprintf("field %q declared twice", f.name)}
		}
		seen[f.name] = struct{}{}
		if f.err != nil {
			return nil, &SchemaError{Shape: b.name, Reason: fmt.Sprintf("field %q", f.name), Err: f.err}
		}
		if f.typ == nil {
			return nil, &SchemaError{Shape: b.name, Reason: fmt.Sprintf("field %q has no type", f.name)}
		}
		fields = append(fields, f.clone())
	}
	id := b.id
	if id == "" {
		id = nextID("object", b.name)
	}
	return &TypeDescriptor{
		id:          id,
		kind:        KindObject,
		name:        b.name,
		description: b.description,
		fields:      fields,
		checks:      append([]validation.ShapeValidator(nil), b.checks...),
	}, nil
}

// MustBuild is like Build but panics on error. Intended for package-level shape declarations.
func (b *ObjectBuilder) MustBuild() *TypeDescriptor {
	d, err := b.Build()
	if err != nil {
		panic(err)
	}
	return d
}
