package validation

// Validator checks a single field value.
type Validator func(value any) Result

// ValidIf builds a Validator from a predicate and the message reported when it fails.
func ValidIf(pred func(value any) bool, message string) Validator {
	return func(value any) Result {
		if pred(value) {
			return Valid()
		}
		return Invalid(message)
	}
}

// Fields gives whole-shape validators read access to a deserialized object.
type Fields interface {
	// Get returns the field value; ok is false when the field is absent.
	Get(name string) (value any, ok bool)
}

// ShapeValidator checks an object as a whole, after all field validators ran.
type ShapeValidator func(fields Fields) Result
