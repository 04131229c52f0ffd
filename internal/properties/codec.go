package properties

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

// Delimiter separates tokens in the encoded keys and values strings.
const Delimiter = ";"

// ErrMalformed is returned when the keys and values strings do not carry
// the same number of tokens.
var ErrMalformed = errors.New("properties: keys and values token counts differ")

// Map is an insertion-ordered string-to-string mapping. The zero value is
// not usable; construct with New or Decode.
//
// Map is not safe for concurrent mutation. Once handed to a shard it is
// owned by that shard and must not be modified by the caller.
type Map struct {
	keys   []string
	values map[string]string
}

// New returns an empty mapping.
func New() *Map {
	return &Map{values: make(map[string]string)}
}

// Decode parses the delimited keys and values strings into a mapping.
//
// An empty keys string yields an empty mapping regardless of values.
// Token counts that differ fail with ErrMalformed. Duplicate keys keep
// their first position and take the last value.
func Decode(keys, values string) (*Map, error) {
	m := New()
	if keys == "" {
		return m, nil
	}

	keyTokens := strings.Split(keys, Delimiter)
	valueTokens := strings.Split(values, Delimiter)
	if len(keyTokens) != len(valueTokens) {
		return nil, ErrMalformed
	}

	for i, k := range keyTokens {
		m.Set(k, valueTokens[i])
	}
	return m, nil
}

// Set stores value under key. A key already present keeps its original
// position and only its value is replaced.
func (m *Map) Set(key, value string) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Get returns the value stored under key and whether the key is present.
func (m *Map) Get(key string) (string, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Len returns the number of entries.
func (m *Map) Len() int {
	return len(m.keys)
}

// Keys returns the keys in insertion order. The slice is a copy.
func (m *Map) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Clone returns an independent copy preserving insertion order.
func (m *Map) Clone() *Map {
	c := New()
	for _, k := range m.keys {
		c.Set(k, m.values[k])
	}
	return c
}

// Encode renders the mapping back into its delimited keys and values
// strings, in insertion order. Decode(Encode(m)) reproduces m for any
// mapping whose keys and values are free of the delimiter.
func (m *Map) Encode() (keys, values string) {
	vals := make([]string, len(m.keys))
	for i, k := range m.keys {
		vals[i] = m.values[k]
	}
	return strings.Join(m.keys, Delimiter), strings.Join(vals, Delimiter)
}

// MarshalJSON renders the mapping as a JSON object whose members appear
// in insertion order.
func (m *Map) MarshalJSON() ([]byte, error) {
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
		vb, err := json.Marshal(m.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
