package event

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// ErrMalformed is returned when a wire frame is not a JSON object.
var ErrMalformed = errors.New("malformed payload")

// Field is one key/value pair of a decoded JSON object.
type Field struct {
	Key   string
	Value interface{}
}

// Fields is a JSON object that remembers the order its keys arrived in.
// Order is kept for display only and carries no meaning.
type Fields []Field

// ParseFields decodes a JSON object, keeping the client's key order.
// Nested values decode to the usual interface{} shapes. A repeated key keeps
// its first position and its last value.
func ParseFields(data []byte) (Fields, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrMalformed)
	}
	result := gjson.ParseBytes(data)
	if !result.IsObject() {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrMalformed)
	}

	fields := Fields{}
	result.ForEach(func(key, value gjson.Result) bool {
		fields = fields.Set(key.String(), value.Value())
		return true
	})
	return fields, nil
}

// Get returns the value stored under key.
func (f Fields) Get(key string) (interface{}, bool) {
	for _, field := range f {
		if field.Key == key {
			return field.Value, true
		}
	}
	return nil, false
}

// Set replaces the value of key in place, or appends it.
func (f Fields) Set(key string, value interface{}) Fields {
	for i := range f {
		if f[i].Key == key {
			f[i].Value = value
			return f
		}
	}
	return append(f, Field{Key: key, Value: value})
}

// String returns the value of key when it is a string, "" otherwise.
func (f Fields) String(key string) string {
	v, _ := f.Get(key)
	s, _ := v.(string)
	return s
}

// Strings returns the string elements of an array value.
func (f Fields) Strings(key string) []string {
	v, ok := f.Get(key)
	if !ok {
		return []string{}
	}
	switch list := v.(type) {
	case []string:
		return append([]string{}, list...)
	case []interface{}:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return []string{}
}

// Keys returns the keys in wire order.
func (f Fields) Keys() []string {
	keys := make([]string, len(f))
	for i, field := range f {
		keys[i] = field.Key
	}
	return keys
}

// MarshalJSON writes the object with keys in wire order.
func (f Fields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, field := range f {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(field.Key)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(field.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
