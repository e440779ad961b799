package schema

import (
	"github.com/BaSui01/extractflow/validation"
)

// Constraints are field-level restrictions rendered into the JSON Schema
// and enforced by the validation engine.
type Constraints struct {
	Minimum   *float64
	Maximum   *float64
	MinLength *int
	MaxLength *int
	Pattern   string
	Format    validation.StringFormat
	MinItems  *int
	MaxItems  *int
}

// Field declares one named member of an object shape.
// Fields are consumed when the owning object is built.
type Field struct {
	name        string
	typ         *TypeDescriptor
	description string
	optional    bool
	validators  []validation.Validator
	constraints Constraints
	err         error
}

// NewField declares a field of an arbitrary type.
func NewField(name string, typ *TypeDescriptor) *Field {
	return &Field{name: name, typ: typ}
}

// StringField declares a string field.
func StringField(name string) *Field { return NewField(name, String()) }

// IntField declares an integer field.
func IntField(name string) *Field { return NewField(name, Int()) }

// FloatField declares a floating point field.
func FloatField(name string) *Field { return NewField(name, Float()) }

// BoolField declares a boolean field.
func BoolField(name string) *Field { return NewField(name, Bool()) }

// EnumField declares a field restricted to the given literals.
func EnumField(name string, values ...string) *Field {
	return NewField(name, Enum(name, values...))
}

// ObjectField declares a nested object field.
func ObjectField(name string, obj *TypeDescriptor) *Field { return NewField(name, obj) }

// ArrayField declares a list field.
func ArrayField(name string, elem *TypeDescriptor) *Field { return NewField(name, ArrayOf(elem)) }

// Optional marks the field as not required.
func (f *Field) Optional() *Field {
	f.optional = true
	return f
}

// Describe sets the description shown to the model.
func (f *Field) Describe(description string) *Field {
	f.description = description
	return f
}

// ValidIf adds a predicate validator reported with message on failure.
func (f *Field) ValidIf(pred func(value any) bool, message string) *Field {
	f.validators = append(f.validators, validation.ValidIf(pred, message))
	return f
}

// Validate adds a validator returning a structured result.
func (f *Field) Validate(v validation.Validator) *Field {
	f.validators = append(f.validators, v)
	return f
}

// Min sets an inclusive numeric lower bound.
func (f *Field) Min(v float64) *Field {
	f.constraints.Minimum = &v
	f.validators = append(f.validators, validation.Minimum(v))
	return f
}

// Max sets an inclusive numeric upper bound.
func (f *Field) Max(v float64) *Field {
	f.constraints.Maximum = &v
	f.validators = append(f.validators, validation.Maximum(v))
	return f
}

// MinLength sets a minimum string length in characters.
func (f *Field) MinLength(n int) *Field {
	f.constraints.MinLength = &n
	f.validators = append(f.validators, validation.MinLength(n))
	return f
}

// MaxLength sets a maximum string length in characters.
func (f *Field) MaxLength(n int) *Field {
	f.constraints.MaxLength = &n
	f.validators = append(f.validators, validation.MaxLength(n))
	return f
}

// Pattern requires string values to match re.
func (f *Field) Pattern(re string) *Field {
	v, err := validation.Pattern(re)
	if err != nil {
		f.err = err
		return f
	}
	f.constraints.Pattern = re
	f.validators = append(f.validators, v)
	return f
}

// Format requires string values to satisfy a well-known format.
func (f *Field) Format(format validation.StringFormat) *Field {
	f.constraints.Format = format
	f.validators = append(f.validators, validation.Format(format))
	return f
}

// MinItems sets a minimum list length.
func (f *Field) MinItems(n int) *Field {
	f.constraints.MinItems = &n
	f.validators = append(f.validators, validation.MinItems(n))
	return f
}

// MaxItems sets a maximum list length.
func (f *Field) MaxItems(n int) *Field {
	f.constraints.MaxItems = &n
	f.validators = append(f.validators, validation.MaxItems(n))
	return f
}

// Name returns the field name.
func (f *Field) Name() string { return f.name }

// Type returns the field type descriptor.
func (f *Field) Type() *TypeDescriptor { return f.typ }

// IsOptional reports whether the field may be absent.
func (f *Field) IsOptional() bool { return f.optional }

func (f *Field) clone() *Field {
	cp := *f
	cp.validators = append([]validation.Validator(nil), f.validators...)
	return &cp
}
