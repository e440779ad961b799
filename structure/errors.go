package structure

import (
	"fmt"
	"strings"

	"github.com/BaSui01/extractflow/types"
)

// Issue is one structural mismatch between the JSON and the schema.
type Issue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	if i.Path == "" {
		return i.Message
	}
	return i.Path + ": " + i.Message
}

// DeserializationError reports JSON that does not fit the schema.
// It is fed back to the model on retry.
type DeserializationError struct {
	Issues []Issue
	// Value and Allowed describe the first enum mismatch, if any.
	Value   any
	Allowed []string
	Err     error
}

func (e *DeserializationError) Error() string {
	msgs := e.Messages()
	switch len(msgs) {
	case 0:
		return "deserialization failed"
	case 1:
		return "deserialization failed: " + msgs[0]
	}
	return fmt.Sprintf("deserialization failed with %d errors: %s", len(msgs), strings.Join(msgs, "; "))
}

func (e *DeserializationError) Unwrap() error { return e.Err }

// Messages returns the rendered issues.
func (e *DeserializationError) Messages() []string {
	out := make([]string, 0, len(e.Issues)+1)
	for _, i := range e.Issues {
		out = append(out, i.String())
	}
	if len(out) == 0 && e.Err != nil {
		out = append(out, e.Err.Error())
	}
	return out
}

// Code maps the error onto the shared error code set.
func (e *DeserializationError) Code() types.ErrorCode { return types.ErrDeserializationFailed }
