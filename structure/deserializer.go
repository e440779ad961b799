package structure

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/BaSui01/extractflow/jsonx"
	"github.com/BaSui01/extractflow/schema"
	"github.com/BaSui01/extractflow/validation"
)

// Deserializer builds values of a target schema from parsed JSON.
type Deserializer struct {
	resolver schema.Resolver
}

// NewDeserializer creates a Deserializer. resolver is required only for
// schemas containing ObjectRefSchema.
func NewDeserializer(resolver schema.Resolver) *Deserializer {
	return &Deserializer{resolver: resolver}
}

// FromJSON parses text strictly and deserializes it against s.
func (d *Deserializer) FromJSON(text string, s schema.Schema) (any, error) {
	raw, err := jsonx.Parse(text)
	if err != nil {
		return nil, &DeserializationError{Issues: []Issue{{Message: err.Error()}}, Err: err}
	}
	return d.Deserialize(raw, s)
}

// Deserialize converts a parsed JSON value into a value of s. Object
// properties collect every issue; arrays stop at the first bad element.
func (d *Deserializer) Deserialize(raw any, s schema.Schema) (any, error) {
	st := &state{resolver: d.resolver}
	v := st.value(raw, s, "")
	if len(st.issues) > 0 {
		return nil, &DeserializationError{Issues: st.issues, Value: st.enumValue, Allowed: st.enumAllowed}
	}
	return v, nil
}

// FromPartialJSON parses an in-flight candidate and deserializes it best-effort.
func (d *Deserializer) FromPartialJSON(text string, s schema.Schema) any {
	raw, _ := jsonx.ParsePartial(text)
	return d.DeserializePartial(raw, s)
}

// DeserializePartial never fails: properties that are missing, incomplete or
// mistyped become Absent, and array elements that do not fit are skipped.
// For object schemas the result is always a *Structure; otherwise it may be nil.
func (d *Deserializer) DeserializePartial(raw any, s schema.Schema) any {
	st := &state{resolver: d.resolver, partial: true}
	v := st.value(raw, s, "")
	if v == nil {
		if obj, err := schema.ResolveObject(s, d.resolver); err == nil {
			return newStructure(obj)
		}
	}
	return v
}

type state struct {
	resolver schema.Resolver
	partial  bool

	issues      []Issue
	enumValue   any
	enumAllowed []string
}

func (st *state) fail(path, format string, args ...any) any {
	if !st.partial {
		st.issues = append(st.issues, Issue{Path: path, Message: fmt.Sprintf(format, args...)})
	}
	return nil
}

func (st *state) value(raw any, s schema.Schema, path string) any {
	switch sc := s.(type) {
	case *schema.ScalarSchema:
		return st.scalar(raw, sc.Type, path)
	case *schema.EnumSchema:
		str, ok := raw.(string)
		if !ok || !sc.Allows(str) {
			if !st.partial && st.enumAllowed == nil {
				st.enumValue, st.enumAllowed = raw, sc.Values
			}
			return st.fail(path, "value %s is not one of [%s]", describe(raw), strings.Join(sc.Values, ", "))
		}
		return str
	case *schema.ArraySchema:
		return st.array(raw, sc, path)
	case *schema.ObjectSchema:
		return st.object(raw, sc, path)
	case *schema.ObjectRefSchema:
		obj, err := schema.ResolveObject(sc, st.resolver)
		if err != nil {
			return st.fail(path, "%v", err)
		}
		return st.object(raw, obj, path)
	default:
		return st.fail(path, "unsupported schema %T", s)
	}
}

func (st *state) object(raw any, s *schema.ObjectSchema, path string) any {
	m, ok := raw.(map[string]any)
	if !ok {
		return st.fail(path, "expected object, got %s", describe(raw))
	}
	out := newStructure(s)
	for _, p := range s.Properties {
		fieldPath := validation.JoinPath(path, p.Name)
		rv, present := m[p.Name]
		if !present || rv == nil {
			if !p.Optional && !st.partial {
				if present {
					st.fail(fieldPath, "required field must not be null")
				} else {
					st.fail(fieldPath, "required field is missing")
				}
			}
			continue
		}
		if v := st.value(rv, p.Schema, fieldPath); v != nil {
			out.values[p.Name] = v
		}
	}
	return out
}

func (st *state) array(raw any, s *schema.ArraySchema, path string) any {
	items, ok := raw.([]any)
	if !ok {
		return st.fail(path, "expected array, got %s", describe(raw))
	}
	out := make([]any, 0, len(items))
	for i, item := range items {
		itemPath := validation.JoinPath(path, "["+strconv.Itoa(i)+"]")
		if item == nil {
			if st.partial {
				continue
			}
			return st.fail(itemPath, "array element must not be null")
		}
		before := len(st.issues)
		v := st.value(item, s.Items, itemPath)
		if v == nil {
			if st.partial {
				continue
			}
			if len(st.issues) == before {
				return st.fail(itemPath, "invalid array element")
			}
			return nil
		}
		out = append(out, v)
	}
	return out
}

func (st *state) scalar(raw any, t schema.ScalarType, path string) any {
	switch t {
	case schema.TypeString:
		switch v := raw.(type) {
		case string:
			return v
		case json.Number:
			return v.String()
		}
		return st.fail(path, "expected string, got %s", describe(raw))

	case schema.TypeInteger:
		n, ok := toNumber(raw)
		if !ok {
			return st.fail(path, "expected integer, got %s", describe(raw))
		}
		if i, err := n.Int64(); err == nil {
			return i
		}
		f, err := n.Float64()
		if err != nil || math.IsInf(f, 0) || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
			return st.fail(path, "expected integer, got %s", n.String())
		}
		return int64(f)

	case schema.TypeNumber:
		n, ok := toNumber(raw)
		if !ok {
			return st.fail(path, "expected number, got %s", describe(raw))
		}
		f, err := n.Float64()
		if err != nil || math.IsInf(f, 0) {
			return st.fail(path, "expected number, got %s", n.String())
		}
		return f

	case schema.TypeBoolean:
		switch v := raw.(type) {
		case bool:
			return v
		case string:
			switch strings.ToLower(strings.TrimSpace(v)) {
			case "true":
				return true
			case "false":
				return false
			}
		}
		return st.fail(path, "expected boolean, got %s", describe(raw))
	}
	return st.fail(path, "unsupported scalar type %q", t)
}

var numericString = regexp.MustCompile(`^-?(0|[1-9]\d*)(\.\d+)?([eE][+-]?\d+)?$`)

// toNumber accepts JSON numbers and numeric strings.
func toNumber(raw any) (json.Number, bool) {
	switch v := raw.(type) {
	case json.Number:
		return v, true
	case float64:
		return json.Number(strconv.FormatFloat(v, 'g', -1, 64)), true
	case string:
		if s := strings.TrimSpace(v); numericString.MatchString(s) {
			return json.Number(s), true
		}
	}
	return "", false
}

func describe(raw any) string {
	switch v := raw.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(v)
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	case map[string]any:
		return "object"
	case []any:
		return "array"
	}
	return fmt.Sprintf("%T", raw)
}
