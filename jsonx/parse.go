package jsonx

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrEmpty is returned when there is nothing to parse.
var ErrEmpty = errors.New("jsonx: empty input")

var trailingComma = regexp.MustCompile(`,\s*(\}|\])`)

// Parse decodes the first JSON value in candidate. Numbers are kept as
// json.Number. Trailing commas before '}' or ']' are repaired when the input
// does not decode as-is. Content after the first value is ignored.
func Parse(candidate string) (any, error) {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return nil, ErrEmpty
	}
	v, err := decodeFirst([]byte(trimmed))
	if err == nil {
		return v, nil
	}
	repaired := trailingComma.ReplaceAll([]byte(trimmed), []byte("$1"))
	if !bytes.Equal(repaired, []byte(trimmed)) {
		if v, rerr := decodeFirst(repaired); rerr == nil {
			return v, nil
		}
	}
	return nil, fmt.Errorf("jsonx: invalid JSON: %w", err)
}

func decodeFirst(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}
