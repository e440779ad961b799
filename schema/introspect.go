package schema

import (
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BaSui01/extractflow/validation"
)

var timeType = reflect.TypeOf(time.Time{})

// DescribeType introspects a Go type with the process-wide Factory.
func DescribeType(t reflect.Type) (*TypeDescriptor, error) {
	return Default().Describe(t)
}

// Describe builds a TypeDescriptor from a Go type.
//
// Exported struct fields become object fields named by their json tag. A field is
// required unless it is a pointer, tagged omitempty, or tagged jsonschema:"optional";
// jsonschema:"required" overrides all three. Supported jsonschema tag options:
//   - required / optional
//   - description=...
//   - enum=a,b,c
//   - minimum=0, maximum=100
//   - minLength=1, maxLength=100, pattern=^[a-z]+$, format=email
//   - minItems=1, maxItems=10
//
// Recursive struct types are emitted as references and registered with the Factory.
// Descriptors are cached per Go type.
func (f *Factory) Describe(t reflect.Type) (*TypeDescriptor, error) {
	if t == nil {
		return nil, &SchemaError{Reason: "cannot describe nil type"}
	}
	in := &introspector{
		factory:    f,
		visiting:   make(map[reflect.Type]bool),
		referenced: make(map[reflect.Type]bool),
	}
	return in.describe(t)
}

type introspector struct {
	factory    *Factory
	visiting   map[reflect.Type]bool
	referenced map[reflect.Type]bool
}

func (in *introspector) describe(t reflect.Type) (*TypeDescriptor, error) {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == timeType {
		return String(), nil
	}

	switch t.Kind() {
	case reflect.String:
		return String(), nil
	case reflect.Bool:
		return Bool(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return Int(), nil
	case reflect.Float32, reflect.Float64:
		return Float(), nil
	case reflect.Slice, reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			return String(), nil
		}
		elem, err := in.describe(t.Elem())
		if err != nil {
			return nil, err
		}
		return ArrayOf(elem), nil
	case reflect.Struct:
		return in.describeStruct(t)
	default:
		return nil, &SchemaError{Shape: t.String(), Reason: "unsupported Go kind " + t.Kind().String()}
	}
}

func (in *introspector) describeStruct(t reflect.Type) (*TypeDescriptor, error) {
	if d, ok := in.factory.goTypes.Load(t); ok {
		return d.(*TypeDescriptor), nil
	}
	name := goTypeName(t)
	if in.visiting[t] {
		in.referenced[t] = true
		return Ref(name), nil
	}
	in.visiting[t] = true
	defer delete(in.visiting, t)

	id := "go:" + t.String()
	if t.Name() != "" {
		id = "go:" + t.PkgPath() + "." + t.Name()
	}
	b := NewObject(name).withID(id)
	if err := in.addFields(b, t); err != nil {
		return nil, err
	}
	d, err := b.Build()
	if err != nil {
		return nil, err
	}
	if in.referenced[t] {
		if err := in.factory.Register(d); err != nil {
			return nil, err
		}
	}
	actual, _ := in.factory.goTypes.LoadOrStore(t, d)
	return actual.(*TypeDescriptor), nil
}

func (in *introspector) addFields(b *ObjectBuilder, t reflect.Type) error {
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		name, omitempty := jsonFieldName(sf)
		if name == "-" {
			continue
		}
		// 与 encoding/json 一致：无 json 名称的匿名结构体字段展开到外层
		if sf.Anonymous && sf.Tag.Get("json") == "" && sf.Type.Kind() == reflect.Struct {
			if err := in.addFields(b, sf.Type); err != nil {
				return err
			}
			continue
		}

		opts := parseTagOptions(sf.Tag.Get("jsonschema"))
		var typ *TypeDescriptor
		if enum, ok := opts["enum"]; ok {
			values := strings.Split(enum, ",")
			for j := range values {
				values[j] = strings.TrimSpace(values[j])
			}
			typ = Enum(name, values...)
		} else {
			var err error
			if typ, err = in.describe(sf.Type); err != nil {
				return &SchemaError{Shape: goTypeName(t), Reason: "field " + sf.Name, Err: err}
			}
		}

		fd := NewField(name, typ)
		_, optTag := opts["optional"]
		_, reqTag := opts["required"]
		if !reqTag && (optTag || omitempty || sf.Type.Kind() == reflect.Ptr) {
			fd.Optional()
		}
		if sf.Type == timeType {
			fd.Format(validation.FormatDateTime)
		}
		applyTagConstraints(fd, opts)
		b.Field(fd)
	}
	return nil
}

func applyTagConstraints(fd *Field, opts map[string]string) {
	if v, ok := opts["description"]; ok {
		fd.Describe(v)
	}
	if v, ok := opts["minimum"]; ok {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			fd.Min(n)
		}
	}
	if v, ok := opts["maximum"]; ok {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			fd.Max(n)
		}
	}
	if v, ok := opts["minLength"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			fd.MinLength(n)
		}
	}
	if v, ok := opts["maxLength"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			fd.MaxLength(n)
		}
	}
	if v, ok := opts["pattern"]; ok {
		fd.Pattern(v)
	}
	if v, ok := opts["format"]; ok {
		fd.Format(validation.StringFormat(v))
	}
	if v, ok := opts["minItems"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			fd.MinItems(n)
		}
	}
	if v, ok := opts["maxItems"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			fd.MaxItems(n)
		}
	}
}

func goTypeName(t reflect.Type) string {
	if t.Name() != "" {
		return t.Name()
	}
	return "Object"
}

func jsonFieldName(sf reflect.StructField) (name string, omitempty bool) {
	tag := sf.Tag.Get("json")
	if tag == "" {
		return sf.Name, false
	}
	parts := strings.Split(tag, ",")
	name = parts[0]
	for _, p := range parts[1:] {
		if p == "omitempty" {
			omitempty = true
		}
	}
	if name == "" {
		name = sf.Name
	}
	return name, omitempty
}

var flagOptions = map[string]bool{"required": true, "optional": true}

// parseTagOptions splits "required,enum=a,b,c,minimum=0" into options.
// A comma-separated segment without "=" that is not a known flag continues
// the previous value, which keeps enum lists and regex quantifiers intact.
func parseTagOptions(tag string) map[string]string {
	opts := make(map[string]string)
	last := ""
	for _, part := range strings.Split(tag, ",") {
		trimmed := strings.TrimSpace(part)
		if flagOptions[trimmed] {
			opts[trimmed] = ""
			last = ""
			continue
		}
		if idx := strings.Index(part, "="); idx > 0 && isTagKey(strings.TrimSpace(part[:idx])) {
			last = strings.TrimSpace(part[:idx])
			opts[last] = part[idx+1:]
			continue
		}
		if last != "" {
			opts[last] += "," + part
		}
	}
	return opts
}

func isTagKey(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')) {
			return false
		}
	}
	return true
}
