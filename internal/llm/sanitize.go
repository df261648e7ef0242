package llm

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

var fenceRe = regexp.MustCompile("(?s)```[A-Za-z0-9_-]*[ \t]*\r?\n?(.*?)```")

// wrapperKeys are object keys models use to wrap the record array.
var wrapperKeys = []string{"records", "providers", "data", "results", "items", "entries", "rows"}

var errNoJSON = errors.New("no JSON value found in response")

// StripCodeFences returns the body of the first fenced block, or the trimmed
// input when there is no complete fence. An unterminated opening fence is dropped.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if m := fenceRe.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	if strings.HasPrefix(s, "```") {
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			return strings.TrimSpace(s[i+1:])
		}
		return ""
	}
	return s
}

// ExtractJSON decodes the JSON value in an engine response, tolerating code
// fences and prose before or after the payload. Numbers decode as json.Number.
func ExtractJSON(text string) (any, error) {
	body := StripCodeFences(text)
	if body == "" {
		return nil, errNoJSON
	}
	if v, err := decodeJSON(body); err == nil {
		return v, nil
	}

	// Prose can contain stray brackets; prefer a segment holding objects.
	var fallback any
	found := false
	firstErr := errNoJSON
	for _, open := range []byte{'[', '{'} {
		start := strings.IndexByte(body, open)
		for start >= 0 {
			if seg, ok := balancedSegment(body, start); ok {
				v, err := decodeJSON(seg)
				switch {
				case err != nil:
					firstErr = err
				case holdsObjects(v):
					return v, nil
				case !found:
					fallback, found = v, true
				}
			}
			next := strings.IndexByte(body[start+1:], open)
			if next < 0 {
				break
			}
			start += next + 1
		}
	}
	if found {
		return fallback, nil
	}
	return nil, firstErr
}

func holdsObjects(v any) bool {
	switch t := v.(type) {
	case map[string]any:
		return true
	case []any:
		for _, e := range t {
			if _, ok := e.(map[string]any); ok {
				return true
			}
		}
	}
	return false
}

func decodeJSON(s string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("trailing data after JSON value")
	}
	return v, nil
}

// balancedSegment returns s[start:end] where end closes the bracket opened at
// start, skipping brackets inside string literals.
func balancedSegment(s string, start int) (string, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[', '{':
			depth++
		case ']', '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// AsRecordArray turns a decoded response into a list of record candidates. It
// accepts a bare array, an object wrapping a single array, or one record object.
func AsRecordArray(v any) ([]any, error) {
	switch t := v.(type) {
	case []any:
		return t, nil
	case map[string]any:
		for _, k := range wrapperKeys {
			if arr, ok := t[k].([]any); ok {
				return arr, nil
			}
		}
		var only []any
		arrays := 0
		for _, val := range t {
			if arr, ok := val.([]any); ok {
				only = arr
				arrays++
			}
		}
		if arrays == 1 && !looksLikeRecord(t) {
			return only, nil
		}
		if looksLikeRecord(t) {
			return []any{t}, nil
		}
		return nil, errors.New("object does not contain a record array")
	case nil:
		return nil, errors.New("response is null")
	default:
		return nil, errors.New("response is not an array or object")
	}
}

func looksLikeRecord(m map[string]any) bool {
	for k := range m {
		if _, ok := canonicalKey(k); ok {
			return true
		}
	}
	return false
}
