// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package printfile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"strings"
)

// Object is a JSON object that remembers key order and keeps values as raw
// JSON, so settings this package does not understand survive a round trip
// byte for byte.
type Object struct {
	keys []string
	vals map[string]json.RawMessage
}

// NewObject returns an empty object.
func NewObject() *Object {
	return &Object{vals: make(map[string]json.RawMessage)}
}

// Len returns the number of keys.
func (o *Object) Len() int { return len(o.keys) }

// Keys returns the keys in document order.
func (o *Object) Keys() []string {
	out := make([]string, len(o.keys))
	copy(out, o.keys)
	return out
}

// Has reports whether key is present.
func (o *Object) Has(key string) bool {
	_, ok := o.vals[key]
	return ok
}

// Get returns the raw value stored under key.
func (o *Object) Get(key string) (json.RawMessage, bool) {
	v, ok := o.vals[key]
	return v, ok
}

// Decode unmarshals the value under key into dst.
func (o *Object) Decode(key string, dst any) error {
	raw, ok := o.vals[key]
	if !ok {
		return fmt.Errorf("%w: %q", ErrMissingKey, key)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode %q: %w", key, err)
	}
	return nil
}

// SetRaw stores raw under key. New keys are appended; existing keys keep
// their position.
func (o *Object) SetRaw(key string, raw json.RawMessage) {
	if o.vals == nil {
		o.vals = make(map[string]json.RawMessage)
	}
	if _, ok := o.vals[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.vals[key] = raw
}

// Set marshals v and stores it under key.
func (o *Object) Set(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	o.SetRaw(key, raw)
	return nil
}

// Delete removes key.
func (o *Object) Delete(key string) {
	if _, ok := o.vals[key]; !ok {
		return
	}
	delete(o.vals, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i:i], o.keys[i+1:]...)
			break
		}
	}
}

// Clone returns a deep copy.
func (o *Object) Clone() *Object {
	c := &Object{
		keys: make([]string, len(o.keys)),
		vals: make(map[string]json.RawMessage, len(o.vals)),
	}
	copy(c.keys, o.keys)
	for k, v := range o.vals {
		c.vals[k] = append(json.RawMessage(nil), v...)
	}
	return c
}

// MarshalJSON implements json.Marshaler.
func (o *Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		v := o.vals[k]
		if len(v) == 0 {
			v = json.RawMessage("null")
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler. Duplicate keys keep their first
// position and their last value, matching common JSON parsers.
func (o *Object) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return &json.UnmarshalTypeError{Value: fmt.Sprint(tok), Type: objectType}
	}
	o.keys = o.keys[:0]
	o.vals = make(map[string]json.RawMessage)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("object key is %T, not string", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		o.SetRaw(key, raw)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("trailing data after object")
	}
	return nil
}

// maxCanonicalExponent bounds number exponents so canonicalising a
// literal like 1e999999999 cannot allocate an enormous integer.
const maxCanonicalExponent = 400

// canonical returns a representation of raw in which equal JSON values are
// equal strings: objects get sorted keys and numbers are normalised
// exactly, so 255.0 matches 255 but 2^53+1 does not match 2^53.
func canonical(raw json.RawMessage) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return "", err
	}
	v, err := canonicalValue(v)
	if err != nil {
		return "", err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func canonicalValue(v any) (any, error) {
	var err error
	switch t := v.(type) {
	case json.Number:
		return canonicalNumber(t)
	case []any:
		for i := range t {
			if t[i], err = canonicalValue(t[i]); err != nil {
				return nil, err
			}
		}
	case map[string]any:
		for k := range t {
			if t[k], err = canonicalValue(t[k]); err != nil {
				return nil, err
			}
		}
	}
	return v, nil
}

func canonicalNumber(n json.Number) (json.Number, error) {
	s := string(n)
	if i := strings.IndexAny(s, "eE"); i >= 0 {
		exp, err := strconv.Atoi(strings.TrimPrefix(s[i+1:], "+"))
		if err != nil || exp > maxCanonicalExponent || exp < -maxCanonicalExponent {
			return "", fmt.Errorf("%w: number %s out of range", ErrInvalidValue, s)
		}
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return "", fmt.Errorf("%w: number %s", ErrInvalidValue, s)
	}
	if r.IsInt() {
		return json.Number(r.Num().String()), nil
	}
	return json.Number(r.FloatString(decimalPlaces(r.Denom()))), nil
}

// decimalPlaces returns the smallest k with 10^k divisible by d. d comes
// from a decimal literal, so it only has the prime factors 2 and 5.
func decimalPlaces(d *big.Int) int {
	ten := big.NewInt(10)
	p := big.NewInt(1)
	rem := new(big.Int)
	k := 0
	for rem.Rem(p, d).Sign() != 0 {
		p.Mul(p, ten)
		k++
	}
	return k
}
