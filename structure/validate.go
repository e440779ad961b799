package structure

import (
	"strconv"

	"github.com/BaSui01/extractflow/schema"
	"github.com/BaSui01/extractflow/validation"
)

// Validate runs declared validators against a deserialized value.
//
// For each property in declaration order its validators run in order, then
// nested objects and array elements are validated recursively. Whole-object
// validators run after all properties. Failures never short-circuit sibling
// properties, so the result lists every violation. Absent properties are
// skipped.
func Validate(value any, s schema.Schema, r schema.Resolver) validation.Result {
	return validateValue(value, s, r)
}

func validateValue(value any, s schema.Schema, r schema.Resolver) validation.Result {
	switch sc := s.(type) {
	case *schema.ObjectSchema, *schema.ObjectRefSchema:
		st, ok := value.(*Structure)
		if !ok {
			return validation.Valid()
		}
		obj, err := schema.ResolveObject(sc, r)
		if err != nil {
			return validation.Invalid(err.Error())
		}
		return validateObject(st, obj, r)
	case *schema.ArraySchema:
		items, ok := value.([]any)
		if !ok {
			return validation.Valid()
		}
		results := make([]validation.Result, 0, len(items))
		for i, item := range items {
			results = append(results, validateValue(item, sc.Items, r).WithPrefix("["+strconv.Itoa(i)+"]"))
		}
		return validation.Combine(results...)
	}
	return validation.Valid()
}

func validateObject(st *Structure, obj *schema.ObjectSchema, r schema.Resolver) validation.Result {
	var results []validation.Result
	for _, p := range obj.Properties {
		v, ok := st.Get(p.Name)
		if !ok {
			continue
		}
		for _, check := range p.Validators {
			results = append(results, check(v).WithPrefix(p.Name))
		}
		results = append(results, validateValue(v, p.Schema, r).WithPrefix(p.Name))
	}
	for _, check := range obj.ShapeValidators {
		results = append(results, check(st))
	}
	return validation.Combine(results...)
}
