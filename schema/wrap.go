package schema

// Wrapping records how a non-object top-level schema was wrapped for the model.
type Wrapping int

const (
	WrapNone Wrapping = iota
	WrapValue
	WrapList
)

const (
	// ValueProperty holds a wrapped scalar or enum.
	ValueProperty = "value"
	// ListProperty holds a wrapped array.
	ListProperty = "list"
)

// Wrap returns an object schema suitable as a top-level response model.
// Objects pass through; scalars and enums become {"value": ...}; arrays become {"list": [...]}.
func Wrap(s Schema) (Schema, Wrapping) {
	switch v := s.(type) {
	case *ScalarSchema, *EnumSchema:
		prop := &Property{Name: ValueProperty, Description: "Correctly extracted value", Schema: v}
		return newObjectSchema("Value", s.SchemaDescription(), []*Property{prop}, nil), WrapValue
	case *ArraySchema:
		prop := &Property{Name: ListProperty, Description: v.Description, Schema: v}
		return newObjectSchema("Sequence", v.Description, []*Property{prop}, nil), WrapList
	default:
		return s, WrapNone
	}
}

// Normalize rewrites a parsed payload whose list was nested under
// "properties", which some models emit when echoing the schema.
func (w Wrapping) Normalize(payload any) any {
	if w != WrapList {
		return payload
	}
	obj, ok := payload.(map[string]any)
	if !ok {
		return payload
	}
	if _, ok := obj[ListProperty]; ok {
		return payload
	}
	if props, ok := obj["properties"].(map[string]any); ok {
		if list, ok := props[ListProperty]; ok {
			return map[string]any{ListProperty: list}
		}
	}
	return payload
}

// Unwrap extracts the caller-facing value from a deserialized wrapper.
func (w Wrapping) Unwrap(get func(name string) (any, bool)) any {
	switch w {
	case WrapValue:
		v, _ := get(ValueProperty)
		return v
	case WrapList:
		v, _ := get(ListProperty)
		return v
	}
	return nil
}
