package client

import "math"

// ListStrategy names one place a list response may keep its items. Path is
// a dotted path into the body; "$" means the body itself is the array.
type ListStrategy struct {
	Source string
	Path   string
}

// Root is the strategy for a bare JSON array body.
var Root = ListStrategy{Source: "root", Path: "$"}

// ListAt is shorthand for a strategy whose source name is its path.
func ListAt(path string) ListStrategy {
	return ListStrategy{Source: path, Path: path}
}

// ExtractList tries the strategies in order and returns the items of the
// first one that resolves to an array, together with the strategy's source.
// A body with no matching shape yields an empty list and ok=false.
func ExtractList(body any, strategies []ListStrategy) (items []Record, source string, ok bool) {
	for _, s := range strategies {
		v, found := resolve(body, s.Path)
		if !found {
			continue
		}
		if arr, isArr := v.([]any); isArr {
			return toRecords(arr), s.Source, true
		}
	}
	return []Record{}, "", false
}

// ExtractTotal returns the first numeric value found at paths, or fallback.
func ExtractTotal(body any, paths []string, fallback int) int {
	for _, p := range paths {
		v, found := resolve(body, p)
		if !found {
			continue
		}
		if f, ok := toFloat(v); ok && f >= 0 {
			return int(f)
		}
	}
	return fallback
}

// ExtractObject returns the first JSON object found at paths. "$" matches
// the body itself.
func ExtractObject(body any, paths ...string) Record {
	for _, p := range paths {
		v, found := resolve(body, p)
		if !found {
			continue
		}
		if m := AsRecord(v); m != nil {
			return m
		}
	}
	return nil
}

func resolve(body any, path string) (any, bool) {
	if path == "$" || path == "" {
		return body, body != nil
	}
	return lookupPath(body, path)
}

// pageCount is ceil(total/pageSize), at least 1.
func pageCount(total, pageSize int) int {
	if pageSize < 1 || total <= 0 {
		return 1
	}
	return int(math.Ceil(float64(total) / float64(pageSize)))
}
