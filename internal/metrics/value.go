package metrics

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Kind names the payload shape of a Value.
type Kind string

const (
	KindBoolean  Kind = "boolean"
	KindCounter  Kind = "counter"
	KindQuantity Kind = "quantity"
	KindString   Kind = "string"
	KindURL      Kind = "url"
	KindObject   Kind = "object"
)

// Value is a stored metric payload. Only the field matching Kind is meaningful.
// Object values hold a canonical serialized JSON document in Str.
type Value struct {
	Kind Kind
	Bool bool
	Int  int64
	Str  string
}

func Boolean(b bool) Value { return Value{Kind: KindBoolean, Bool: b} }
func Counter(n int64) Value { return Value{Kind: KindCounter, Int: n} }
func Quantity(n int64) Value { return Value{Kind: KindQuantity, Int: n} }
func String(s string) Value { return Value{Kind: KindString, Str: s} }
func URL(s string) Value { return Value{Kind: KindURL, Str: s} }
func Object(doc string) Value { return Value{Kind: KindObject, Str: doc} }

// Payload returns the form used inside a ping document.
func (v Value) Payload() interface{} {
	switch v.Kind {
	case KindBoolean:
		return v.Bool
	case KindCounter, KindQuantity:
		return v.Int
	case KindObject:
		return json.RawMessage(v.Str)
	default:
		return v.Str
	}
}

type encodedValue struct {
	Type  Kind            `json:"type"`
	Value json.RawMessage `json:"value"`
}

func (v Value) MarshalJSON() ([]byte, error) {
	var raw []byte
	var err error
	if v.Kind == KindObject {
		raw = []byte(v.Str)
		if !json.Valid(raw) {
			return nil, fmt.Errorf("object value is not valid json")
		}
	} else {
		raw, err = json.Marshal(v.Payload())
		if err != nil {
			return nil, err
		}
	}
	return json.Marshal(encodedValue{Type: v.Kind, Value: raw})
}

func (v *Value) UnmarshalJSON(b []byte) error {
	var enc encodedValue
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&enc); err != nil {
		return err
	}
	if len(enc.Value) == 0 {
		return fmt.Errorf("missing value for %q", enc.Type)
	}

	out := Value{Kind: enc.Type}
	var err error
	switch enc.Type {
	case KindBoolean:
		err = json.Unmarshal(enc.Value, &out.Bool)
	case KindCounter, KindQuantity:
		err = json.Unmarshal(enc.Value, &out.Int)
	case KindString, KindURL:
		err = json.Unmarshal(enc.Value, &out.Str)
	case KindObject:
		out.Str, err = Canonicalize(enc.Value)
	default:
		err = fmt.Errorf("unknown value type %q", enc.Type)
	}
	if err != nil {
		return err
	}
	*v = out
	return nil
}

// Canonicalize parses a JSON document and re-serializes it with sorted keys
// and no insignificant whitespace.
func Canonicalize(doc []byte) (string, error) {
	var parsed interface{}
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.UseNumber()
	if err := dec.Decode(&parsed); err != nil {
		return "", err
	}
	if dec.More() {
		return "", fmt.Errorf("trailing data after json document")
	}
	out, err := json.Marshal(parsed)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
