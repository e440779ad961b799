package schema

import (
	"fmt"

	"github.com/BaSui01/extractflow/types"
)

// SchemaError reports a malformed or unsupported shape. It is never retried.
type SchemaError struct {
	Shape  string
	Reason string
	Err    error
}

func (e *SchemaError) Error() string {
	msg := "schema: " + e.Reason
	if e.Shape != "" {
		msg = fmt.Sprintf("schema %s: %s", e.Shape, e.Reason)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SchemaError) Unwrap() error { return e.Err }

// Code maps the error onto the shared error code set.
func (e *SchemaError) Code() types.ErrorCode { return types.ErrSchemaInvalid }
