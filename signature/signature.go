// Package signature derives deterministic cache keys from request payloads.
//
// Two logically identical payloads (same keys and values, any key order,
// nested arbitrarily) produce the same signature. The signature is a local
// in-memory dedup key, not a security boundary, so no cryptographic hashing
// is applied on top of the canonical form.
package signature

import (
	"bytes"
	"reflect"
	"strings"
	"time"

	canonicaljson "github.com/gibson042/canonicaljson-go"
)

// CircularSentinel replaces any self-referential value reachable during
// payload traversal, guaranteeing termination.
const CircularSentinel = "[Circular]"

// Sign builds the signature for a request: the endpoint descriptor, the
// public key, and the canonical JSON of the normalized body joined by ':'.
// It never fails; values that cannot be represented are dropped or replaced
// by [CircularSentinel].
func Sign(endpoint, publicKey string, body any) string {
	var buf bytes.Buffer
	buf.WriteString(endpoint)
	buf.WriteByte(':')
	buf.WriteString(publicKey)
	buf.WriteByte(':')
	buf.Write(Canonical(body))
	return buf.String()
}

// Canonical returns the canonical JSON of the normalized body. Object keys
// are emitted sorted, dates become RFC 3339 UTC strings, function and
// channel valued fields are dropped, and cycles collapse to the sentinel.
func Canonical(body any) []byte {
	norm := normalize(reflect.ValueOf(body), map[uintptr]bool{})
	out, err := canonicaljson.Marshal(norm)
	if err != nil {
		// Normalization only emits JSON-safe values; keep the contract of
		// never failing if marshaling still rejects the value.
		return []byte(`"` + CircularSentinel + `"`)
	}
	return out
}

// normalize walks v and produces a value composed solely of JSON-safe types.
// seen tracks the addresses of pointers, maps, and slices on the current
// path so self-references terminate at the sentinel.
func normalize(v reflect.Value, seen map[uintptr]bool) any {
	if !v.IsValid() {
		return nil
	}
	switch v.Kind() {
	case reflect.Interface:
		if v.IsNil() {
			return nil
		}
		return normalize(v.Elem(), seen)

	case reflect.Pointer:
		if v.IsNil() {
			return nil
		}
		addr := v.Pointer()
		if seen[addr] {
			return CircularSentinel
		}
		seen[addr] = true
		out := normalize(v.Elem(), seen)
		delete(seen, addr)
		return out

	case reflect.Map:
		if v.IsNil() {
			return nil
		}
		addr := v.Pointer()
		if seen[addr] {
			return CircularSentinel
		}
		seen[addr] = true
		out := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			val, keep := normalizeField(iter.Value(), seen)
			if !keep {
				continue
			}
			out[mapKey(iter.Key())] = val
		}
		delete(seen, addr)
		return out

	case reflect.Slice:
		if v.IsNil() {
			return []any{}
		}
		addr := v.Pointer()
		if seen[addr] {
			return CircularSentinel
		}
		seen[addr] = true
		out := normalizeElems(v, seen)
		delete(seen, addr)
		return out

	case reflect.Array:
		return normalizeElems(v, seen)

	case reflect.Struct:
		if t, ok := v.Interface().(time.Time); ok {
			return t.UTC().Format(time.RFC3339Nano)
		}
		return normalizeStruct(v, seen)

	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return nil

	default:
		return v.Interface()
	}
}

// normalizeField normalizes a map or struct field value, reporting whether
// the field should be kept. Function and channel values are dropped the way
// unserializable object fields are.
func normalizeField(v reflect.Value, seen map[uintptr]bool) (any, bool) {
	fv := v
	for fv.Kind() == reflect.Interface {
		if fv.IsNil() {
			return nil, true
		}
		fv = fv.Elem()
	}
	switch fv.Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return nil, false
	}
	return normalize(fv, seen), true
}

func normalizeElems(v reflect.Value, seen map[uintptr]bool) []any {
	out := make([]any, 0, v.Len())
	for i := 0; i < v.Len(); i++ {
		// Unserializable slice elements keep their position as null.
		elem, keep := normalizeField(v.Index(i), seen)
		if !keep {
			elem = nil
		}
		out = append(out, elem)
	}
	return out
}

func normalizeStruct(v reflect.Value, seen map[uintptr]bool) map[string]any {
	t := v.Type()
	out := make(map[string]any, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name := field.Name
		omitEmpty := false
		if tag := field.Tag.Get("json"); tag != "" {
			parts := strings.Split(tag, ",")
			if parts[0] == "-" {
				continue
			}
			if parts[0] != "" {
				name = parts[0]
			}
			for _, p := range parts[1:] {
				if p == "omitempty" {
					omitEmpty = true
				}
			}
		}
		fv := v.Field(i)
		if omitEmpty && fv.IsZero() {
			continue
		}
		val, keep := normalizeField(fv, seen)
		if !keep {
			continue
		}
		out[name] = val
	}
	return out
}

func mapKey(k reflect.Value) string {
	for k.Kind() == reflect.Interface {
		k = k.Elem()
	}
	if k.Kind() == reflect.String {
		return k.String()
	}
	b, err := canonicaljson.Marshal(k.Interface())
	if err != nil {
		return CircularSentinel
	}
	return string(b)
}
