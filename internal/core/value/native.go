package value

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrUnsupportedType is returned when a native Go value has no Value mapping.
var ErrUnsupportedType = errors.New("unsupported native type")

// Native converts v into plain Go values: nil, bool, float64, string,
// []interface{} and map[string]interface{}.
func (v Value) Native() interface{} {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.n
	case KindString:
		return v.s
	case KindArray:
		out := make([]interface{}, len(v.arr))
		for i, item := range v.arr {
			out[i] = item.Native()
		}
		return out
	case KindObject:
		out := make(map[string]interface{}, len(v.obj))
		for k, f := range v.obj {
			out[k] = f.Native()
		}
		return out
	default:
		return nil
	}
}

// FromNative converts decoded JSON, msgpack, YAML or hand-built Go data into a Value.
func FromNative(x interface{}) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case float64:
		return Number(t), nil
	case float32:
		return Number(float64(t)), nil
	case int:
		return Number(float64(t)), nil
	case int8:
		return Number(float64(t)), nil
	case int16:
		return Number(float64(t)), nil
	case int32:
		return Number(float64(t)), nil
	case int64:
		return Number(float64(t)), nil
	case uint:
		return Number(float64(t)), nil
	case uint8:
		return Number(float64(t)), nil
	case uint16:
		return Number(float64(t)), nil
	case uint32:
		return Number(float64(t)), nil
	case uint64:
		return Number(float64(t)), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Null(), fmt.Errorf("invalid json number %q: %w", t, err)
		}
		return Number(f), nil
	case []interface{}:
		items := make([]Value, len(t))
		for i, e := range t {
			iv, err := FromNative(e)
			if err != nil {
				return Null(), fmt.Errorf("index %d: %w", i, err)
			}
			items[i] = iv
		}
		return Value{kind: KindArray, arr: items}, nil
	case []string:
		return Strings(t...), nil
	case map[string]interface{}:
		fields := make(map[string]Value, len(t))
		for k, e := range t {
			fv, err := FromNative(e)
			if err != nil {
				return Null(), fmt.Errorf("field %q: %w", k, err)
			}
			fields[k] = fv
		}
		return Value{kind: KindObject, obj: fields}, nil
	case map[interface{}]interface{}:
		fields := make(map[string]Value, len(t))
		for k, e := range t {
			fv, err := FromNative(e)
			if err != nil {
				return Null(), fmt.Errorf("field %v: %w", k, err)
			}
			fields[fmt.Sprint(k)] = fv
		}
		return Value{kind: KindObject, obj: fields}, nil
	case map[string]Value:
		return Object(t), nil
	case []Value:
		return Array(t...), nil
	default:
		return Null(), fmt.Errorf("%w: %s", ErrUnsupportedType, reflect.TypeOf(x))
	}
}

// MustFromNative is FromNative for literals known to be convertible.
func MustFromNative(x interface{}) Value {
	v, err := FromNative(x)
	if err != nil {
		panic(err)
	}
	return v
}

// FromMap converts a native map into a map of Values.
func FromMap(m map[string]interface{}) (map[string]Value, error) {
	out := make(map[string]Value, len(m))
	for k, x := range m {
		v, err := FromNative(x)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}

// ToMap converts a map of Values into native Go values.
func ToMap(m map[string]Value) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v.Native()
	}
	return out
}

// MarshalJSON encodes v through its native form.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Native())
}

// UnmarshalJSON decodes any JSON document into v.
func (v *Value) UnmarshalJSON(data []byte) error {
	var x interface{}
	if err := json.Unmarshal(data, &x); err != nil {
		return err
	}
	parsed, err := FromNative(x)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

var (
	_ msgpack.CustomEncoder = Value{}
	_ msgpack.CustomDecoder = (*Value)(nil)
)

// EncodeMsgpack implements msgpack.CustomEncoder.
func (v Value) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.Encode(v.Native())
}

// DecodeMsgpack implements msgpack.CustomDecoder.
func (v *Value) DecodeMsgpack(dec *msgpack.Decoder) error {
	x, err := dec.DecodeInterface()
	if err != nil {
		return err
	}
	parsed, err := FromNative(x)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
