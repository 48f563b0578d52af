package normalize

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrNotObject is returned when a body is valid or invalid JSON but not a single object.
var ErrNotObject = errors.New("not a JSON object")

// Field is one top-level member of an Object. Value holds the original bytes.
type Field struct {
	Key   string
	Value json.RawMessage
}

// Object is a JSON object that remembers member order and keeps every
// value as raw bytes, so unknown upstream fields survive a round trip.
type Object struct {
	fields []Field
}

// ParseObject decodes raw as exactly one JSON object.
func ParseObject(raw []byte) (*Object, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotObject, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, ErrNotObject
	}

	obj := &Object{}
	for dec.More() {
		tok, err = dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v", tok)
		}
		var val json.RawMessage
		if err = dec.Decode(&val); err != nil {
			return nil, err
		}
		obj.fields = append(obj.fields, Field{Key: key, Value: val})
	}
	if _, err = dec.Token(); err != nil { // closing '}'
		return nil, err
	}
	if _, err = dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data", ErrNotObject)
	}
	return obj, nil
}

// Len reports the number of members.
func (o *Object) Len() int { return len(o.fields) }

// Fields returns the members in order.
func (o *Object) Fields() []Field { return append([]Field(nil), o.fields...) }

// Get returns the value for key. With duplicate keys the last one wins,
// matching encoding/json.
func (o *Object) Get(key string) (json.RawMessage, bool) {
	for i := len(o.fields) - 1; i >= 0; i-- {
		if o.fields[i].Key == key {
			return o.fields[i].Value, true
		}
	}
	return nil, false
}

// Prepend removes every member named key and inserts key=value first.
func (o *Object) Prepend(key string, value json.RawMessage) {
	kept := make([]Field, 0, len(o.fields)+1)
	kept = append(kept, Field{Key: key, Value: value})
	for _, f := range o.fields {
		if f.Key != key {
			kept = append(kept, f)
		}
	}
	o.fields = kept
}

// MarshalJSON writes members in order. Values are written byte for byte as
// parsed; only the whitespace between members is dropped.
func (o *Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range o.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		if len(f.Value) == 0 {
			return nil, fmt.Errorf("empty value for %q", f.Key)
		}
		buf.Write(f.Value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
