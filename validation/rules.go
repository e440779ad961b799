package validation

import (
	"encoding/json"
	"fmt"
	"math"
	"net"
	"reflect"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// StringFormat names a well-known string format.
type StringFormat string

const (
	FormatDateTime StringFormat = "date-time"
	FormatDate     StringFormat = "date"
	FormatTime     StringFormat = "time"
	FormatEmail    StringFormat = "email"
	FormatURI      StringFormat = "uri"
	FormatUUID     StringFormat = "uuid"
	FormatIPv4     StringFormat = "ipv4"
	FormatIPv6     StringFormat = "ipv6"
	FormatHostname StringFormat = "hostname"
)

var (
	emailRe    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	uriRe      = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*://`)
	dateTimeRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?(Z|[+-]\d{2}:\d{2})?$`)
	dateRe     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	timeRe     = regexp.MustCompile(`^\d{2}:\d{2}:\d{2}(\.\d+)?(Z|[+-]\d{2}:\d{2})?$`)
	hostnameRe = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)
)

var formatCheckers = map[StringFormat]func(string) bool{
	FormatEmail:    emailRe.MatchString,
	FormatURI:      uriRe.MatchString,
	FormatDateTime: dateTimeRe.MatchString,
	FormatDate:     dateRe.MatchString,
	FormatTime:     timeRe.MatchString,
	FormatUUID: func(s string) bool {
		_, err := uuid.Parse(s)
		return err == nil && len(s) == 36
	},
	FormatIPv4: func(s string) bool {
		ip := net.ParseIP(s)
		return ip != nil && ip.To4() != nil && strings.Count(s, ".") == 3
	},
	FormatIPv6: func(s string) bool {
		ip := net.ParseIP(s)
		return ip != nil && strings.Contains(s, ":")
	},
	FormatHostname: func(s string) bool {
		return len(s) <= 253 && hostnameRe.MatchString(s)
	},
}

// KnownFormat reports whether f has a built-in checker.
func KnownFormat(f StringFormat) bool {
	_, ok := formatCheckers[f]
	return ok
}

// Minimum fails numbers below min.
func Minimum(min float64) Validator {
	return func(value any) Result {
		n, ok := ToFloat64(value)
		if !ok {
			return Invalid(fmt.Sprintf("expected number, got %T", value))
		}
		if n < min {
			return Invalid(fmt.Sprintf("value %v is less than minimum %v", n, min))
		}
		return Valid()
	}
}

// Maximum fails numbers above max.
func Maximum(max float64) Validator {
	return func(value any) Result {
		n, ok := ToFloat64(value)
		if !ok {
			return Invalid(fmt.Sprintf("expected number, got %T", value))
		}
		if n > max {
			return Invalid(fmt.Sprintf("value %v exceeds maximum %v", n, max))
		}
		return Valid()
	}
}

// MinLength fails strings shorter than n characters.
func MinLength(n int) Validator {
	return func(value any) Result {
		s, ok := value.(string)
		if !ok {
			return Invalid(fmt.Sprintf("expected string, got %T", value))
		}
		if l := utf8.RuneCountInString(s); l < n {
			return Invalid(fmt.Sprintf("string length %d is less than minimum %d", l, n))
		}
		return Valid()
	}
}

// MaxLength fails strings longer than n characters.
func MaxLength(n int) Validator {
	return func(value any) Result {
		s, ok := value.(string)
		if !ok {
			return Invalid(fmt.Sprintf("expected string, got %T", value))
		}
		if l := utf8.RuneCountInString(s); l > n {
			return Invalid(fmt.Sprintf("string length %d exceeds maximum %d", l, n))
		}
		return Valid()
	}
}

// Pattern fails strings that do not match re. An invalid expression is reported
// as an error here rather than at validation time.
func Pattern(re string) (Validator, error) {
	compiled, err := regexp.Compile(re)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", re, err)
	}
	return func(value any) Result {
		s, ok := value.(string)
		if !ok {
			return Invalid(fmt.Sprintf("expected string, got %T", value))
		}
		if !compiled.MatchString(s) {
			return Invalid(fmt.Sprintf("string does not match pattern %q", re))
		}
		return Valid()
	}, nil
}

// Format fails strings that do not satisfy a built-in format. Unknown formats always pass.
func Format(f StringFormat) Validator {
	check, ok := formatCheckers[f]
	return func(value any) Result {
		s, isStr := value.(string)
		if !isStr {
			return Invalid(fmt.Sprintf("expected string, got %T", value))
		}
		if ok && !check(s) {
			return Invalid(fmt.Sprintf("string does not match format %q", f))
		}
		return Valid()
	}
}

// MinItems fails arrays with fewer than n elements.
func MinItems(n int) Validator {
	return func(value any) Result {
		l, ok := sliceLen(value)
		if !ok {
			return Invalid(fmt.Sprintf("expected array, got %T", value))
		}
		if l < n {
			return Invalid(fmt.Sprintf("array has %d items, minimum is %d", l, n))
		}
		return Valid()
	}
}

// MaxItems fails arrays with more than n elements.
func MaxItems(n int) Validator {
	return func(value any) Result {
		l, ok := sliceLen(value)
		if !ok {
			return Invalid(fmt.Sprintf("expected array, got %T", value))
		}
		if l > n {
			return Invalid(fmt.Sprintf("array has %d items, maximum is %d", l, n))
		}
		return Valid()
	}
}

// ToFloat64 converts the numeric representations produced by deserialization.
func ToFloat64(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil && !math.IsInf(f, 0)
	}
	return 0, false
}

func sliceLen(value any) (int, bool) {
	if value == nil {
		return 0, false
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return 0, false
	}
	return rv.Len(), true
}
