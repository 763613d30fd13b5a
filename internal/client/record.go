package client

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Record is one untyped JSON object returned by the backend. Accessors take
// a list of candidate keys, each of which may be a dotted path, and return
// the first usable value. Missing or mistyped values yield zero values;
// accessors never panic.
type Record map[string]any

// AsRecord returns v as a Record, or nil if v is not a JSON object.
func AsRecord(v any) Record {
	switch m := v.(type) {
	case Record:
		return m
	case map[string]any:
		return Record(m)
	}
	return nil
}

// Lookup resolves a dotted path. "$" resolves to the record itself.
func (r Record) Lookup(path string) (any, bool) {
	if r == nil {
		return nil, false
	}
	if path == "$" || path == "" {
		return map[string]any(r), true
	}
	return lookupPath(map[string]any(r), path)
}

func lookupPath(v any, path string) (any, bool) {
	cur := v
	for _, seg := range strings.Split(path, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	if cur == nil {
		return nil, false
	}
	return cur, true
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Record:
		return map[string]any(m), true
	}
	return nil, false
}

// String returns the first candidate that holds a non-empty string or a
// number.
func (r Record) String(keys ...string) string {
	for _, k := range keys {
		v, ok := r.Lookup(k)
		if !ok {
			continue
		}
		switch s := v.(type) {
		case string:
			if s != "" {
				return s
			}
		case json.Number:
			return s.String()
		case float64:
			return strconv.FormatFloat(s, 'f', -1, 64)
		case bool:
			return strconv.FormatBool(s)
		}
	}
	return ""
}

// Int returns the first candidate that parses as an integer, or nil.
func (r Record) Int(keys ...string) *int {
	f := r.Float(keys...)
	if f == nil {
		return nil
	}
	n := int(*f)
	return &n
}

// Float returns the first candidate that parses as a number, or nil.
// Numeric strings such as "$1,250.00" are accepted.
func (r Record) Float(keys ...string) *float64 {
	for _, k := range keys {
		v, ok := r.Lookup(k)
		if !ok {
			continue
		}
		if f, ok := toFloat(v); ok {
			return &f
		}
	}
	return nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		s := strings.NewReplacer("$", "", ",", "", " ", "").Replace(n)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	}
	return 0, false
}

// Bool returns the first candidate holding a boolean and whether one was
// found.
func (r Record) Bool(keys ...string) (value, ok bool) {
	for _, k := range keys {
		v, found := r.Lookup(k)
		if !found {
			continue
		}
		if b, isBool := v.(bool); isBool {
			return b, true
		}
	}
	return false, false
}

// Strings returns the first candidate holding an array, keeping its string
// elements.
func (r Record) Strings(keys ...string) []string {
	for _, k := range keys {
		v, ok := r.Lookup(k)
		if !ok {
			continue
		}
		arr, isArr := v.([]any)
		if !isArr {
			continue
		}
		out := make([]string, 0, len(arr))
		for _, e := range arr {
			if s, isStr := e.(string); isStr && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Object returns the first candidate holding a JSON object.
func (r Record) Object(keys ...string) Record {
	for _, k := range keys {
		v, ok := r.Lookup(k)
		if !ok {
			continue
		}
		if m := AsRecord(v); m != nil {
			return m
		}
	}
	return nil
}

// Records returns the object elements of the first candidate holding an
// array.
func (r Record) Records(keys ...string) []Record {
	for _, k := range keys {
		v, ok := r.Lookup(k)
		if !ok {
			continue
		}
		if arr, isArr := v.([]any); isArr {
			return toRecords(arr)
		}
	}
	return nil
}

func toRecords(arr []any) []Record {
	out := make([]Record, 0, len(arr))
	for _, e := range arr {
		if m := AsRecord(e); m != nil {
			out = append(out, m)
		}
	}
	return out
}
