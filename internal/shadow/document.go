package shadow

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// ErrNotObject is returned when a report is not a JSON object.
var ErrNotObject = errors.New("shadow: report is not a JSON object")

// Document is the accumulated top-level key/value state of one robot.
type Document struct {
	fields map[string]json.RawMessage
}

// New returns an empty document.
func New() *Document {
	return &Document{fields: make(map[string]json.RawMessage)}
}

// Reset empties the document. Sessions call it on every new connection.
func (d *Document) Reset() {
	clear(d.fields)
}

// Len returns the number of top-level keys.
func (d *Document) Len() int {
	return len(d.fields)
}

// Merge replaces each top-level key present in report and returns the
// changes relative to the previous contents.
func (d *Document) Merge(report map[string]json.RawMessage) []Change {
	previous := maps.Clone(d.fields)
	for k, v := range report {
		d.fields[k] = slices.Clone(v)
	}
	return Diff(previous, d.fields)
}

// MergeJSON decodes a JSON object and merges it.
func (d *Document) MergeJSON(data []byte) ([]Change, error) {
	var report map[string]json.RawMessage
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("decoding report: %w", err)
	}
	if report == nil {
		return nil, ErrNotObject
	}
	return d.Merge(report), nil
}

// Snapshot returns an immutable copy of the current document.
func (d *Document) Snapshot() Snapshot {
	return Snapshot{fields: maps.Clone(d.fields)}
}

// Snapshot is a point-in-time copy of a Document.
type Snapshot struct {
	fields map[string]json.RawMessage
}

// Has reports whether the top-level key is present, regardless of its value.
func (s Snapshot) Has(key string) bool {
	_, ok := s.fields[key]
	return ok
}

// Keys returns the sorted top-level keys.
func (s Snapshot) Keys() []string {
	return slices.Sorted(maps.Keys(s.fields))
}

// Raw returns the raw JSON of a top-level key.
func (s Snapshot) Raw(key string) (json.RawMessage, bool) {
	v, ok := s.fields[key]
	return v, ok
}

// Decode unmarshals the whole document into v.
func (s Snapshot) Decode(v any) error {
	data, err := json.Marshal(s.fields)
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding document: %w", err)
	}
	return nil
}

// Lookup walks a dotted path ("cap.multiPass") and returns the decoded
// value. Numbers are returned as json.Number so integer-ness survives.
func (s Snapshot) Lookup(path string) (any, bool) {
	parts := strings.Split(path, ".")
	raw, ok := s.fields[parts[0]]
	if !ok {
		return nil, false
	}
	value, err := decodeValue(raw)
	if err != nil {
		return nil, false
	}
	for _, part := range parts[1:] {
		obj, isObj := value.(map[string]any)
		if !isObj {
			return nil, false
		}
		value, ok = obj[part]
		if !ok {
			return nil, false
		}
	}
	return value, true
}

// IsInteger reports whether path holds a JSON number without a fractional part.
func (s Snapshot) IsInteger(path string) bool {
	v, ok := s.Lookup(path)
	if !ok {
		return false
	}
	n, isNum := v.(json.Number)
	if !isNum {
		return false
	}
	_, err := n.Int64()
	return err == nil
}

// Int returns the integer at path, or false when absent or not an integer.
func (s Snapshot) Int(path string) (int64, bool) {
	v, ok := s.Lookup(path)
	if !ok {
		return 0, false
	}
	n, isNum := v.(json.Number)
	if !isNum {
		return 0, false
	}
	i, err := n.Int64()
	return i, err == nil
}

// MarshalJSON encodes the snapshot as a single JSON object.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	if s.fields == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(s.fields)
}

func decodeValue(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}
