package schema

import (
	"encoding/json"
	"fmt"

	"github.com/BaSui01/extractflow/types"
)

// JSONSchema is the wire representation handed to provider adapters.
type JSONSchema struct {
	Ref         string                 `json:"$ref,omitempty"`
	Title       string                 `json:"title,omitempty"`
	Description string                 `json:"description,omitempty"`
	Type        string                 `json:"type,omitempty"`
	Properties  map[string]*JSONSchema `json:"properties,omitempty"`
	Required    []string               `json:"required,omitempty"`
	Items       *JSONSchema            `json:"items,omitempty"`
	Enum        []string               `json:"enum,omitempty"`

	MinLength *int     `json:"minLength,omitempty"`
	MaxLength *int     `json:"maxLength,omitempty"`
	Pattern   string   `json:"pattern,omitempty"`
	Format    string   `json:"format,omitempty"`
	Minimum   *float64 `json:"minimum,omitempty"`
	Maximum   *float64 `json:"maximum,omitempty"`
	MinItems  *int     `json:"minItems,omitempty"`
	MaxItems  *int     `json:"maxItems,omitempty"`

	Defs map[string]*JSONSchema `json:"$defs,omitempty"`
}

// ToJSON serializes the schema.
func (s *JSONSchema) ToJSON() ([]byte, error) {
	return json.Marshal(s)
}

// ToJSONIndent serializes the schema with indentation.
func (s *JSONSchema) ToJSONIndent() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// Render converts s into a JSON Schema document. Referenced objects are
// resolved through r and collected under $defs.
func Render(s Schema, r Resolver) (*JSONSchema, error) {
	rd := &renderer{resolver: r, pending: map[string]bool{}}
	root, err := rd.render(s)
	if err != nil {
		return nil, err
	}
	for len(rd.queue) > 0 {
		ref := rd.queue[0]
		rd.queue = rd.queue[1:]
		obj, err := ResolveObject(&ObjectRefSchema{Ref: ref}, r)
		if err != nil {
			return nil, err
		}
		def, err := rd.render(obj)
		if err != nil {
			return nil, err
		}
		if root.Defs == nil {
			root.Defs = make(map[string]*JSONSchema)
		}
		root.Defs[ref] = def
	}
	return root, nil
}

type renderer struct {
	resolver Resolver
	pending  map[string]bool
	queue    []string
}

func (rd *renderer) render(s Schema) (*JSONSchema, error) {
	switch v := s.(type) {
	case *ScalarSchema:
		return &JSONSchema{Type: string(v.Type), Description: v.Description}, nil
	case *EnumSchema:
		return &JSONSchema{Type: "string", Description: v.Description, Enum: append([]string(nil), v.Values...)}, nil
	case *ArraySchema:
		items, err := rd.render(v.Items)
		if err != nil {
			return nil, err
		}
		return &JSONSchema{Type: "array", Description: v.Description, Items: items}, nil
	case *ObjectRefSchema:
		if !rd.pending[v.Ref] {
			rd.pending[v.Ref] = true
			rd.queue = append(rd.queue, v.Ref)
		}
		return &JSONSchema{Ref: "#/$defs/" + v.Ref, Description: v.Description}, nil
	case *ObjectSchema:
		out := &JSONSchema{
			Type:        "object",
			Title:       v.Name,
			Description: v.Description,
			Properties:  make(map[string]*JSONSchema, len(v.Properties)),
			Required:    append([]string(nil), v.Required...),
		}
		for _, p := range v.Properties {
			ps, err := rd.render(p.Schema)
			if err != nil {
				return nil, fmt.Errorf("property %s: %w", p.Name, err)
			}
			if p.Description != "" {
				ps.Description = p.Description
			}
			applyConstraints(ps, p.Constraints)
			out.Properties[p.Name] = ps
		}
		return out, nil
	case nil:
		return nil, &SchemaError{Reason: "nil schema"}
	default:
		return nil, &SchemaError{Shape: s.SchemaName(), Reason: fmt.Sprintf("cannot render %T", s)}
	}
}

func applyConstraints(js *JSONSchema, c Constraints) {
	js.Minimum = c.Minimum
	js.Maximum = c.Maximum
	js.MinLength = c.MinLength
	js.MaxLength = c.MaxLength
	js.Pattern = c.Pattern
	js.Format = string(c.Format)
	js.MinItems = c.MinItems
	js.MaxItems = c.MaxItems
}

// ToToolSchema renders s as the parameters of a single callable function.
func ToToolSchema(name, description string, s Schema, r Resolver) (types.ToolSchema, error) {
	js, err := Render(s, r)
	if err != nil {
		return types.ToolSchema{}, err
	}
	params, err := js.ToJSON()
	if err != nil {
		return types.ToolSchema{}, fmt.Errorf("marshal tool parameters: %w", err)
	}
	if description == "" {
		description = s.SchemaDescription()
	}
	if description == "" {
		description = "Correctly extracted `" + s.SchemaName() + "` with all the required parameters with correct types"
	}
	return types.ToolSchema{Name: name, Description: description, Parameters: params}, nil
}
