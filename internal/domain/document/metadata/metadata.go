// Package metadata holds the ordered, string-keyed metadata container attached to documents.
//
// Values are tagged scalars (string, int, float, bool). JSON objects keep their key order
// on decode and encode; nested objects and arrays are rendered to their JSON text and
// stored as strings.
package metadata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// Kind is the type tag of a metadata value.
type Kind uint8

// Value kinds.
const (
	KindString Kind = iota + 1
	KindInt
	KindFloat
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	default:
		return "unknown"
	}
}

// Value is a tagged scalar.
type Value struct {
	kind Kind
	s    string
	i    int64
	f    float64
	b    bool
}

// String creates a string value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Int creates an integer value.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float creates a floating-point value.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// Bool creates a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Kind returns the value's type tag.
func (v Value) Kind() Kind { return v.kind }

// Str returns the string payload and whether the value is a string.
func (v Value) Str() (string, bool) { return v.s, v.kind == KindString }

// Int64 returns the integer payload and whether the value is an int.
func (v Value) Int64() (int64, bool) { return v.i, v.kind == KindInt }

// Float64 returns the numeric payload as float64. Ints are widened.
func (v Value) Float64() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.f, true
	case KindInt:
		return float64(v.i), true
	default:
		return 0, false
	}
}

// Boolean returns the bool payload and whether the value is a bool.
func (v Value) Boolean() (bool, bool) { return v.b, v.kind == KindBool }

// Interface returns the payload as a plain Go value.
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.s
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindBool:
		return v.b
	default:
		return nil
	}
}

// Render returns the canonical string form of the value.
func (v Value) Render() string {
	switch v.kind {
	case KindString:
		return v.s
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return ""
	}
}

// MarshalJSON encodes the payload without the tag.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == KindFloat && (math.IsNaN(v.f) || math.IsInf(v.f, 0)) {
		return nil, fmt.Errorf("metadata: non-finite float %v", v.f)
	}
	return json.Marshal(v.Interface())
}

// Map is an insertion-ordered map of metadata values. The zero value is empty and ready to use.
type Map struct {
	keys   []string
	values map[string]Value
}

// Set inserts or replaces a value. Replacing keeps the original position.
func (m *Map) Set(key string, v Value) {
	if m.values == nil {
		m.values = make(map[string]Value)
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = v
}

// Get returns the value for key.
func (m Map) Get(key string) (Value, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Delete removes key. Reports whether it was present.
func (m *Map) Delete(key string) bool {
	if _, ok := m.values[key]; !ok {
		return false
	}
	delete(m.values, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
	return true
}

// Len returns the number of entries.
func (m Map) Len() int { return len(m.keys) }

// Keys returns the keys in insertion order.
func (m Map) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Range calls fn for each entry in order until fn returns false.
func (m Map) Range(fn func(key string, v Value) bool) {
	for _, k := range m.keys {
		if !fn(k, m.values[k]) {
			return
		}
	}
}

// Clone returns a deep copy.
func (m Map) Clone() Map {
	c := Map{keys: make([]string, len(m.keys)), values: make(map[string]Value, len(m.values))}
	copy(c.keys, m.keys)
	for k, v := range m.values {
		c.values[k] = v
	}
	return c
}

// FromAny converts a decoded map into a Map with keys sorted, since Go maps carry no order.
func FromAny(in map[string]any) (Map, error) {
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var m Map
	for _, k := range keys {
		v, err := valueOf(in[k])
		if err != nil {
			return Map{}, fmt.Errorf("metadata key %q: %w", k, err)
		}
		m.Set(k, v)
	}
	return m, nil
}

func valueOf(x any) (Value, error) {
	switch t := x.(type) {
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case int:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case int32:
		return Int(int64(t)), nil
	case float32:
		return Float(float64(t)), nil
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1<<53 {
			return Int(int64(t)), nil
		}
		return Float(t), nil
	case json.Number:
		return numberValue(t)
	case nil:
		return String(""), nil
	default:
		raw, err := json.Marshal(t)
		if err != nil {
			return Value{}, fmt.Errorf("unsupported value %T: %w", x, err)
		}
		return String(string(raw)), nil
	}
}

func numberValue(n json.Number) (Value, error) {
	if i, err := n.Int64(); err == nil {
		return Int(i), nil
	}
	f, err := n.Float64()
	if err != nil {
		return Value{}, fmt.Errorf("invalid number %q: %w", n, err)
	}
	return Float(f), nil
}

// MarshalJSON encodes the map as a JSON object preserving key order.
func (m Map) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := m.values[k].MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("metadata key %q: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object preserving key order. null decodes to an empty map.
func (m *Map) UnmarshalJSON(data []byte) error {
	*m = Map{}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("metadata: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("metadata: expected object, got %v", tok)
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("metadata: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("metadata: expected key, got %v", tok)
		}
		var raw any
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("metadata key %q: %w", key, err)
		}
		v, err := valueOf(raw)
		if err != nil {
			return fmt.Errorf("metadata key %q: %w", key, err)
		}
		m.Set(key, v)
	}

	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("metadata: %w", err)
	}
	return nil
}
