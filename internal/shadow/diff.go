package shadow

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Change describes one difference between two documents.
type Change struct {
	Path string
	Old  string
	New  string
}

// unset marks a missing value on either side of a change.
const unset = "UNSET"

// String renders the change the way it is logged.
//
//	batPct: "100" -> "99"
//	bin.full: "false" -> "true"
//	lastCommand: "{...}" -> UNSET
//	regions: Length 2 -> Length 3
func (c Change) String() string {
	return fmt.Sprintf("%s: %s -> %s", c.Path, c.Old, c.New)
}

// Diff compares two top-level documents. Objects are compared key by key
// with a dotted path, arrays only by length, and any other value by its
// rendered text. Output is sorted by path.
func Diff(before, after map[string]json.RawMessage) []Change {
	a := make(map[string]any, len(before))
	for k, v := range before {
		if dv, err := decodeValue(v); err == nil {
			a[k] = dv
		}
	}
	b := make(map[string]any, len(after))
	for k, v := range after {
		if dv, err := decodeValue(v); err == nil {
			b[k] = dv
		}
	}
	return diffObjects(a, b, "")
}

func diffObjects(a, b map[string]any, prefix string) []Change {
	var out []Change
	keys := slices.Sorted(maps.Keys(a))
	for _, k := range keys {
		path := prefix + k
		av := a[k]
		bv, ok := b[k]
		if !ok {
			out = append(out, Change{Path: path, Old: quote(av), New: unset})
			continue
		}

		aArr, aIsArr := av.([]any)
		bArr, bIsArr := bv.([]any)
		if aIsArr && bIsArr {
			if len(aArr) != len(bArr) {
				out = append(out, Change{
					Path: path,
					Old:  fmt.Sprintf("Length %d", len(aArr)),
					New:  fmt.Sprintf("Length %d", len(bArr)),
				})
			}
			continue
		}

		aObj, aIsObj := av.(map[string]any)
		bObj, bIsObj := bv.(map[string]any)
		if aIsObj && bIsObj {
			out = append(out, diffObjects(aObj, bObj, path+".")...)
			continue
		}

		if oldText, newText := render(av), render(bv); oldText != newText || kind(av) != kind(bv) {
			out = append(out, Change{Path: path, Old: quote(av), New: quote(bv)})
		}
	}

	for _, k := range slices.Sorted(maps.Keys(b)) {
		if _, ok := a[k]; !ok {
			out = append(out, Change{Path: prefix + k, Old: unset, New: quote(b[k])})
		}
	}

	slices.SortStableFunc(out, func(x, y Change) int {
		return strings.Compare(x.Path, y.Path)
	})
	return out
}

func render(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return "null"
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(data)
	}
}

func quote(v any) string {
	return `"` + render(v) + `"`
}

func kind(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case json.Number:
		return "number"
	case bool:
		return "bool"
	case nil:
		return "null"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return "other"
	}
}
