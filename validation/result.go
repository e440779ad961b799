package validation

import (
	"fmt"
	"strings"
)

// Violation is a single failed check, optionally tied to a field path.
type Violation struct {
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
}

// String renders the violation as "path: message".
func (v Violation) String() string {
	if v.Path == "" {
		return v.Message
	}
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Result is either valid or an ordered list of violations.
// The zero value is valid.
type Result struct {
	violations []Violation
}

// Valid returns a passing result.
func Valid() Result { return Result{} }

// Invalid returns a failing result with one violation per message.
func Invalid(messages ...string) Result {
	if len(messages) == 0 {
		messages = []string{"validation failed"}
	}
	r := Result{violations: make([]Violation, 0, len(messages))}
	for _, m := range messages {
		r.violations = append(r.violations, Violation{Message: m})
	}
	return r
}

// InvalidAt returns a failing result for a specific path.
func InvalidAt(path, message string) Result {
	return Result{violations: []Violation{{Path: path, Message: message}}}
}

// IsValid reports whether no check failed.
func (r Result) IsValid() bool { return len(r.violations) == 0 }

// Violations returns a copy of the collected violations.
func (r Result) Violations() []Violation {
	if len(r.violations) == 0 {
		return nil
	}
	return append([]Violation(nil), r.violations...)
}

// Messages returns the rendered violations in order.
func (r Result) Messages() []string {
	if len(r.violations) == 0 {
		return nil
	}
	out := make([]string, len(r.violations))
	for i, v := range r.violations {
		out[i] = v.String()
	}
	return out
}

// WithPrefix returns a copy whose violation paths are nested under prefix.
func (r Result) WithPrefix(prefix string) Result {
	if prefix == "" || r.IsValid() {
		return r
	}
	out := Result{violations: make([]Violation, len(r.violations))}
	for i, v := range r.violations {
		v.Path = JoinPath(prefix, v.Path)
		out.violations[i] = v
	}
	return out
}

// Error implements error so an invalid result can be returned directly.
func (r Result) Error() string {
	switch len(r.violations) {
	case 0:
		return "valid"
	case 1:
		return r.violations[0].String()
	}
	return fmt.Sprintf("validation failed with %d errors: %s", len(r.violations), strings.Join(r.Messages(), "; "))
}

// Combine merges results in order. The result is invalid iff any input is.
func Combine(results ...Result) Result {
	n := 0
	for _, r := range results {
		n += len(r.violations)
	}
	if n == 0 {
		return Result{}
	}
	out := Result{violations: make([]Violation, 0, n)}
	for _, r := range results {
		out.violations = append(out.violations, r.violations...)
	}
	return out
}

// JoinPath joins a parent path and a child segment. Index segments ("[0]") attach without a dot.
func JoinPath(parent, child string) string {
	switch {
	case parent == "":
		return child
	case child == "":
		return parent
	case strings.HasPrefix(child, "["):
		return parent + child
	}
	return parent + "." + child
}
