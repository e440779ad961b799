package schema

import (
	"github.com/BaSui01/extractflow/validation"
)

// Schema is the derived, renderable form of a TypeDescriptor.
// The concrete type is one of *ScalarSchema, *EnumSchema, *ObjectSchema,
// *ObjectRefSchema or *ArraySchema. Schemas returned by a Factory are shared
// and must be treated as read-only.
type Schema interface {
	SchemaName() string
	SchemaDescription() string
	sealed()
}

// ScalarType is the JSON type of a scalar schema.
type ScalarType string

const (
	TypeString  ScalarType = "string"
	TypeInteger ScalarType = "integer"
	TypeNumber  ScalarType = "number"
	TypeBoolean ScalarType = "boolean"
)

// ScalarSchema is a bool, int, float or string.
type ScalarSchema struct {
	Name        string
	Description string
	Type        ScalarType
}

// EnumSchema restricts values to a fixed set of literals.
type EnumSchema struct {
	Name        string
	Description string
	Values      []string
}

// Allows reports whether v is one of the declared literals (case-sensitive).
func (s *EnumSchema) Allows(v string) bool {
	for _, allowed := range s.Values {
		if allowed == v {
			return true
		}
	}
	return false
}

// Property is one member of an ObjectSchema.
type Property struct {
	Name        string
	Description string
	Schema      Schema
	Optional    bool
	Constraints Constraints
	Validators  []validation.Validator
}

// ObjectSchema is an ordered set of properties with a required subset.
type ObjectSchema struct {
	Name            string
	Description     string
	Properties      []*Property
	Required        []string
	ShapeValidators []validation.ShapeValidator

	index map[string]int
}

func newObjectSchema(name, description string, props []*Property, checks []validation.ShapeValidator) *ObjectSchema {
	o := &ObjectSchema{
		Name:            name,
		Description:     description,
		Properties:      props,
		ShapeValidators: checks,
		index:           make(map[string]int, len(props)),
	}
	for i, p := range props {
		o.index[p.Name] = i
		if !p.Optional {
			o.Required = append(o.Required, p.Name)
		}
	}
	return o
}

// Property returns the named property.
func (o *ObjectSchema) Property(name string) (*Property, bool) {
	if o.index == nil {
		for _, p := range o.Properties {
			if p.Name == name {
				return p, true
			}
		}
		return nil, false
	}
	i, ok := o.index[name]
	if !ok {
		return nil, false
	}
	return o.Properties[i], true
}

// IsRequired reports whether name is in the required set.
func (o *ObjectSchema) IsRequired(name string) bool {
	for _, r := range o.Required {
		if r == name {
			return true
		}
	}
	return false
}

// ObjectRefSchema points at an ObjectSchema registered under Ref.
type ObjectRefSchema struct {
	Name        string
	Description string
	Ref         string
}

// ArraySchema is a homogeneous list.
type ArraySchema struct {
	Name        string
	Description string
	Items       Schema
}

func (s *ScalarSchema) SchemaName() string    { return s.Name }
func (s *EnumSchema) SchemaName() string      { return s.Name }
func (s *ObjectSchema) SchemaName() string    { return s.Name }
func (s *ObjectRefSchema) SchemaName() string { return s.Name }
func (s *ArraySchema) SchemaName() string     { return s.Name }

func (s *ScalarSchema) SchemaDescription() string    { return s.Description }
func (s *EnumSchema) SchemaDescription() string      { return s.Description }
func (s *ObjectSchema) SchemaDescription() string    { return s.Description }
func (s *ObjectRefSchema) SchemaDescription() string { return s.Description }
func (s *ArraySchema) SchemaDescription() string     { return s.Description }

func (*ScalarSchema) sealed()    {}
func (*EnumSchema) sealed()      {}
func (*ObjectSchema) sealed()    {}
func (*ObjectRefSchema) sealed() {}
func (*ArraySchema) sealed()     {}

// Resolver looks up objects behind ObjectRefSchema pointers.
type Resolver interface {
	Resolve(ref string) (*ObjectSchema, error)
}

// ResolveObject returns s as an object, following a reference if needed.
func ResolveObject(s Schema, r Resolver) (*ObjectSchema, error) {
	switch v := s.(type) {
	case *ObjectSchema:
		return v, nil
	case *ObjectRefSchema:
		if r == nil {
			return nil, &SchemaError{Shape: v.Ref, Reason: "reference without resolver"}
		}
		return r.Resolve(v.Ref)
	default:
		return nil, &SchemaError{Shape: s.SchemaName(), Reason: "not an object schema"}
	}
}
