package structure

import (
	"encoding/json"
	"fmt"

	"github.com/BaSui01/extractflow/schema"
)

type absent struct{}

func (absent) String() string { return "<absent>" }

// Absent marks an optional property that was not provided.
var Absent any = absent{}

// IsAbsent reports whether v is the Absent marker.
func IsAbsent(v any) bool {
	_, ok := v.(absent)
	return ok
}

// Structure is a deserialized object.
type Structure struct {
	schema *schema.ObjectSchema
	values map[string]any
}

func newStructure(s *schema.ObjectSchema) *Structure {
	st := &Structure{schema: s, values: make(map[string]any, len(s.Properties))}
	for _, p := range s.Properties {
		st.values[p.Name] = Absent
	}
	return st
}

// Schema returns the object schema the structure was built against.
func (s *Structure) Schema() *schema.ObjectSchema { return s.schema }

// Get returns a property value. ok is false for absent or undeclared properties.
func (s *Structure) Get(name string) (any, bool) {
	v, ok := s.values[name]
	if !ok || IsAbsent(v) {
		return nil, false
	}
	return v, true
}

// Value returns the raw entry, which may be Absent. Undeclared names return nil.
func (s *Structure) Value(name string) any {
	return s.values[name]
}

// Has reports whether the property was provided.
func (s *Structure) Has(name string) bool {
	_, ok := s.Get(name)
	return ok
}

// Names returns the declared property names in order.
func (s *Structure) Names() []string {
	out := make([]string, len(s.schema.Properties))
	for i, p := range s.schema.Properties {
		out[i] = p.Name
	}
	return out
}

// ToMap converts the structure into plain maps and slices, omitting absent properties.
func (s *Structure) ToMap() map[string]any {
	out := make(map[string]any, len(s.values))
	for _, p := range s.schema.Properties {
		v := s.values[p.Name]
		if IsAbsent(v) {
			continue
		}
		out[p.Name] = Plain(v)
	}
	return out
}

// Plain converts any deserialized value into maps and slices.
func Plain(v any) any {
	switch t := v.(type) {
	case *Structure:
		return t.ToMap()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Plain(e)
		}
		return out
	}
	return v
}

// MarshalJSON encodes the provided properties.
func (s *Structure) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.ToMap())
}

// Decode copies the structure into target, which follows encoding/json rules.
func (s *Structure) Decode(target any) error {
	return DecodeValue(s, target)
}

// DecodeValue copies any deserialized value into target through its JSON form.
func DecodeValue(v any, target any) error {
	raw, err := json.Marshal(Plain(v))
	if err != nil {
		return fmt.Errorf("encode structure: %w", err)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("decode structure into %T: %w", target, err)
	}
	return nil
}

// MarshalValue renders any deserialized value as JSON text.
func MarshalValue(v any) (string, error) {
	raw, err := json.Marshal(Plain(v))
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
