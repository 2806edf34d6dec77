package serialization

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec turns Go values into bytes and back.
// PRINCIPLES:
// - ISP: Simple interface with ≤5 methods
// - SRP: Single responsibility for encoding
type Codec interface {
	Encode(v interface{}) ([]byte, error)
	Decode(data []byte, v interface{}) error
	Name() string
}

// JSONCodec implements JSON serialization
type JSONCodec struct{}

func (JSONCodec) Encode(v interface{}) ([]byte, error) { return json.Marshal(v) }

func (JSONCodec) Decode(data []byte, v interface{}) error { return json.Unmarshal(data, v) }

func (JSONCodec) Name() string { return "json" }

// MsgPackCodec implements MessagePack serialization. Map keys are written in
// sorted order so equal values always produce equal bytes.
type MsgPackCodec struct{}

func (MsgPackCodec) Encode(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (MsgPackCodec) Decode(data []byte, v interface{}) error { return msgpack.Unmarshal(data, v) }

func (MsgPackCodec) Name() string { return "msgpack" }

// CodecByName resolves "json" or "msgpack".
func CodecByName(name string) (Codec, error) {
	switch name {
	case "json":
		return JSONCodec{}, nil
	case "msgpack", "":
		return MsgPackCodec{}, nil
	default:
		return nil, fmt.Errorf("%w: codec %q", ErrUnknownFormat, name)
	}
}
