package schema

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Factory derives Schemas from TypeDescriptors and memoizes the results.
// A Factory is safe for concurrent use.
type Factory struct {
	useRefs bool
	logger  *zap.Logger

	schemas *Cache[Schema]
	props   *Cache[*Property]
	goTypes sync.Map // reflect.Type -> *TypeDescriptor

	mu       sync.RWMutex
	registry map[string]*TypeDescriptor

	derivations atomic.Int64
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithObjectReferences emits nested objects as ObjectRefSchema pointers instead of inlining them.
// Inlining is the default since not every provider dereferences $ref.
func WithObjectReferences(enabled bool) FactoryOption {
	return func(f *Factory) { f.useRefs = enabled }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) FactoryOption {
	return func(f *Factory) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewFactory creates a Factory.
func NewFactory(opts ...FactoryOption) *Factory {
	f := &Factory{
		logger:   zap.NewNop(),
		schemas:  NewCache[Schema](),
		props:    NewCache[*Property](),
		registry: make(map[string]*TypeDescriptor),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = f.logger.With(zap.String("component", "schema_factory"))
	return f
}

var (
	defaultFactory     *Factory
	defaultFactoryOnce sync.Once
)

// Default returns the process-wide Factory.
func Default() *Factory {
	defaultFactoryOnce.Do(func() {
		defaultFactory = NewFactory()
	})
	return defaultFactory
}

// UsesObjectReferences reports whether nested objects are emitted as references.
func (f *Factory) UsesObjectReferences() bool { return f.useRefs }

// Derivations returns how many schemas were actually computed (cache misses).
func (f *Factory) Derivations() int64 { return f.derivations.Load() }

// CacheStats returns hit/miss counters for the schema and property caches.
func (f *Factory) CacheStats() (schemaHits, schemaMisses, propHits, propMisses int64) {
	schemaHits, schemaMisses = f.schemas.Stats()
	propHits, propMisses = f.props.Stats()
	return
}

// Register makes an object descriptor addressable by name through Ref.
func (f *Factory) Register(d *TypeDescriptor) error {
	if d == nil || d.kind != KindObject {
		return &SchemaError{Reason: "only object shapes can be registered"}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.registry[d.name]; ok && existing.id != d.id {
		return &SchemaError{Shape: d.name, Reason: "a different shape is already registered under this name"}
	}
	f.registry[d.name] = d
	return nil
}

func (f *Factory) registered(name string) (*TypeDescriptor, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	d, ok := f.registry[name]
	return d, ok
}

// Resolve implements Resolver against the registry.
func (f *Factory) Resolve(ref string) (*ObjectSchema, error) {
	d, ok := f.registered(ref)
	if !ok {
		return nil, &SchemaError{Shape: ref, Reason: "referenced shape is not registered"}
	}
	s, err := f.Schema(d)
	if err != nil {
		return nil, err
	}
	obj, ok := s.(*ObjectSchema)
	if !ok {
		return nil, &SchemaError{Shape: ref, Reason: "referenced shape is not an object"}
	}
	return obj, nil
}

// Schema derives (or fetches from cache) the Schema for d.
// A top-level Ref is resolved to the registered object.
func (f *Factory) Schema(d *TypeDescriptor) (Schema, error) {
	if err := checkDescriptor(d); err != nil {
		return nil, err
	}
	if d.kind == KindRef {
		target, ok := f.registered(d.name)
		if !ok {
			return nil, &SchemaError{Shape: d.name, Reason: "referenced shape is not registered"}
		}
		return f.Schema(target)
	}
	return f.schemas.GetOrCompute(d.id, func() (Schema, error) {
		f.derivations.Add(1)
		s, err := f.derive(d)
		if err != nil {
			return nil, err
		}
		f.logger.Debug("schema derived",
			zap.String("shape", d.name),
			zap.Stringer("kind", d.kind),
		)
		return s, nil
	})
}

// SchemaFor introspects the Go type of v and derives its Schema.
func (f *Factory) SchemaFor(v any) (Schema, error) {
	d, err := f.Describe(reflect.TypeOf(v))
	if err != nil {
		return nil, err
	}
	return f.Schema(d)
}

// PropertySchema derives the property for one field of an object shape,
// memoized per owner shape and field name.
func (f *Factory) PropertySchema(owner *TypeDescriptor, field string) (*Property, error) {
	if err := checkDescriptor(owner); err != nil {
		return nil, err
	}
	if owner.kind != KindObject {
		return nil, &SchemaError{Shape: owner.name, Reason: "properties exist only on object shapes"}
	}
	return f.props.GetOrCompute(owner.id+"::"+field, func() (*Property, error) {
		fd, ok := owner.Field(field)
		if !ok {
			return nil, &SchemaError{Shape: owner.name, Reason: fmt.Sprintf("unknown field %q", field)}
		}
		s, err := f.nested(fd.typ)
		if err != nil {
			return nil, fmt.Errorf("field %s.%s: %w", owner.name, field, err)
		}
		return &Property{
			Name:        fd.name,
			Description: fd.description,
			Schema:      s,
			Optional:    fd.optional,
			Constraints: fd.constraints,
			Validators:  fd.validators,
		}, nil
	})
}

func checkDescriptor(d *TypeDescriptor) error {
	if d == nil {
		return &SchemaError{Reason: "nil type descriptor"}
	}
	if d.err != nil {
		return &SchemaError{Shape: d.name, Reason: "malformed type descriptor", Err: d.err}
	}
	return nil
}

func (f *Factory) derive(d *TypeDescriptor) (Schema, error) {
	switch d.kind {
	case KindString:
		return &ScalarSchema{Name: d.name, Description: d.description, Type: TypeString}, nil
	case KindInt:
		return &ScalarSchema{Name: d.name, Description: d.description, Type: TypeInteger}, nil
	case KindFloat:
		return &ScalarSchema{Name: d.name, Description: d.description, Type: TypeNumber}, nil
	case KindBool:
		return &ScalarSchema{Name: d.name, Description: d.description, Type: TypeBoolean}, nil
	case KindEnum:
		return &EnumSchema{Name: d.name, Description: d.description, Values: append([]string(nil), d.values...)}, nil
	case KindArray:
		items, err := f.item(d.elem)
		if err != nil {
			return nil, err
		}
		return &ArraySchema{Name: d.name, Description: d.description, Items: items}, nil
	case KindObject:
		props := make([]*Property, 0, len(d.fields))
		for _, fd := range d.fields {
			p, err := f.PropertySchema(d, fd.name)
			if err != nil {
				return nil, err
			}
			props = append(props, p)
		}
		return newObjectSchema(d.name, d.description, props, d.checks), nil
	default:
		return nil, &SchemaError{Shape: d.name, Reason: "unrecognized shape kind " + d.kind.String()}
	}
}

// nested derives the schema of a field or array element.
func (f *Factory) nested(d *TypeDescriptor) (Schema, error) {
	if err := checkDescriptor(d); err != nil {
		return nil, err
	}
	switch {
	case d.kind == KindRef:
		target, ok := f.registered(d.name)
		if !ok {
			return nil, &SchemaError{Shape: d.name, Reason: "referenced shape is not registered"}
		}
		return &ObjectRefSchema{Name: target.name, Description: target.description, Ref: target.name}, nil
	case d.kind == KindObject && f.useRefs:
		if err := f.Register(d); err != nil {
			return nil, err
		}
		return &ObjectRefSchema{Name: d.name, Description: d.description, Ref: d.name}, nil
	}
	return f.Schema(d)
}

func (f *Factory) item(elem *TypeDescriptor) (Schema, error) {
	s, err := f.nested(elem)
	if err != nil {
		return nil, err
	}
	desc := "Correctly extract items of type: " + elem.name
	switch v := s.(type) {
	case *ScalarSchema:
		return &ScalarSchema{Name: "item", Description: desc, Type: v.Type}, nil
	case *EnumSchema:
		return &EnumSchema{Name: "item", Description: desc, Values: v.Values}, nil
	}
	return s, nil
}
