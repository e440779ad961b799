package jsonx

import (
	"encoding/json"
	"strings"
)

type frame struct {
	obj    map[string]any
	arr    []any
	isObj  bool
	key    string
	hasKey bool
}

func (f *frame) value() any {
	if f.isObj {
		return f.obj
	}
	if f.arr == nil {
		return []any{}
	}
	return f.arr
}

func (f *frame) add(v any) {
	if f.isObj {
		f.obj[f.key] = v
		f.key, f.hasKey = "", false
		return
	}
	f.arr = append(f.arr, v)
}

// ParsePartial decodes as much of the first JSON value in candidate as is
// syntactically complete. Open objects and arrays are closed implicitly; a
// key without a value and any truncated string or literal are dropped, as is
// a number inside an open container with nothing after it (it may still
// grow). A
// syntax error ends parsing and keeps what was complete before it. complete
// reports whether the first value was fully closed. A nil result means
// nothing usable was found.
func ParsePartial(candidate string) (v any, complete bool) {
	dec := json.NewDecoder(strings.NewReader(candidate))
	dec.UseNumber()

	var stack []*frame
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}

		var (
			val    any
			closed bool
		)
		switch t := tok.(type) {
		case json.Delim:
			switch t {
			case '{':
				stack = append(stack, &frame{obj: make(map[string]any), isObj: true})
				continue
			case '[':
				stack = append(stack, &frame{})
				continue
			default:
				top := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				val, closed = top.value(), true
			}
		default:
			if len(stack) > 0 {
				top := stack[len(stack)-1]
				if top.isObj && !top.hasKey {
					top.key, top.hasKey = t.(string), true
					continue
				}
			}
			if _, isNum := t.(json.Number); isNum && len(stack) > 0 && dec.InputOffset() == int64(len(candidate)) {
				continue
			}
			val, closed = t, true
		}

		if closed {
			if len(stack) == 0 {
				return val, true
			}
			stack[len(stack)-1].add(val)
		}
	}

	if len(stack) == 0 {
		return nil, false
	}
	for i := len(stack) - 1; i > 0; i-- {
		stack[i-1].add(stack[i].value())
	}
	return stack[0].value(), false
}
