package serialization

import (
	"crypto/rand"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgraph/workflow/internal/core/value"
)

type payload struct {
	Workflow string                 `json:"workflow" msgpack:"workflow"`
	Output   map[string]value.Value `json:"output" msgpack:"output"`
	Nodes    []string               `json:"nodes" msgpack:"nodes"`
}

func samplePayload() payload {
	return payload{
		Workflow: "router",
		Output: map[string]value.Value{
			"final_result": value.String(strings.Repeat("repeated content ", 20)),
			"log":          value.Strings("a", "b"),
			"meta": value.Object(map[string]value.Value{
				"ok":    value.Bool(true),
				"count": value.Number(3),
				"none":  value.Null(),
			}),
		},
		Nodes: []string{"Pre", "Validate", "Branch"},
	}
}

func newKey(t testing.TB) []byte {
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

func TestCodecs(t *testing.T) {
	for _, codec := range []Codec{JSONCodec{}, MsgPackCodec{}} {
		t.Run(codec.Name(), func(t *testing.T) {
			in := samplePayload()
			encoded, err := codec.Encode(in)
			require.NoError(t, err)

			var out payload
			require.NoError(t, codec.Decode(encoded, &out))
			assert.Equal(t, in, out)
		})
	}
}

func TestMsgPackCodec_Deterministic(t *testing.T) {
	a := map[string]interface{}{"x": 1, "y": 2, "z": 3}
	b := map[string]interface{}{"z": 3, "y": 2, "x": 1}

	first, err := MsgPackCodec{}.Encode(a)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := MsgPackCodec{}.Encode(b)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestCodecByName(t *testing.T) {
	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{name: "json", want: "json"},
		{name: "msgpack", want: "msgpack"},
		{name: "", want: "msgpack"},
		{name: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := CodecByName(tt.name)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.Name())
		})
	}
}

func TestSerializer_RoundTrip(t *testing.T) {
	key := newKey(t)
	tests := []struct {
		name     string
		config   Config
		wantName string
	}{
		{name: "json plain", config: Config{Codec: JSONCodec{}}, wantName: "json"},
		{name: "msgpack gzip", config: Config{Compression: CompressionGzip}, wantName: "msgpack+gzip"},
		{name: "msgpack zstd", config: Config{Compression: CompressionZstd}, wantName: "msgpack+zstd"},
		{name: "json encrypted", config: Config{Codec: JSONCodec{}, EncryptKey: key}, wantName: "json+aes-gcm"},
		{name: "full pipeline", config: Config{Compression: CompressionZstd, EncryptKey: key}, wantName: "msgpack+zstd+aes-gcm"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewSerializer(tt.config)
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, s.Name())

			in := samplePayload()
			data, err := s.Serialize(in)
			require.NoError(t, err)
			assert.NotEmpty(t, data)

			var out payload
			require.NoError(t, s.Deserialize(data, &out))
			assert.Equal(t, in, out)
		})
	}
}

func TestSerializer_EncryptionHidesPlaintext(t *testing.T) {
	s, err := NewSerializer(Config{Codec: JSONCodec{}, EncryptKey: newKey(t)})
	require.NoError(t, err)

	data, err := s.Serialize(samplePayload())
	require.NoError(t, err)
	assert.NotContains(t, string(data), "router")
}

func TestDefaultSerializer(t *testing.T) {
	s := DefaultSerializer()
	assert.Equal(t, "msgpack+zstd", s.Name())

	in := samplePayload()
	data, err := s.Serialize(in)
	require.NoError(t, err)

	var out payload
	require.NoError(t, s.Deserialize(data, &out))
	assert.Equal(t, in, out)
}

func TestSerializer_Errors(t *testing.T) {
	t.Run("invalid key size", func(t *testing.T) {
		_, err := NewSerializer(Config{EncryptKey: []byte("short")})
		assert.ErrorIs(t, err, ErrInvalidKey)
	})

	t.Run("unknown compression", func(t *testing.T) {
		_, err := NewSerializer(Config{Compression: "lz4"})
		assert.ErrorIs(t, err, ErrUnknownFormat)
	})

	t.Run("truncated ciphertext", func(t *testing.T) {
		s, err := NewSerializer(Config{EncryptKey: newKey(t)})
		require.NoError(t, err)
		var out payload
		err = s.Deserialize([]byte("x"), &out)
		assert.ErrorIs(t, err, ErrInvalidCiphertext)
	})

	t.Run("corrupted ciphertext", func(t *testing.T) {
		s, err := NewSerializer(Config{EncryptKey: newKey(t)})
		require.NoError(t, err)
		var out payload
		err = s.Deserialize([]byte("corrupted encrypted data"), &out)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "decryption failed")
	})

	t.Run("corrupted zstd", func(t *testing.T) {
		var out payload
		err := DefaultSerializer().Deserialize([]byte("not zstd"), &out)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "decompression failed")
	})
}

func TestParseCompression(t *testing.T) {
	for _, name := range []string{"", "none", "gzip", "zstd"} {
		_, err := ParseCompression(name)
		assert.NoError(t, err, name)
	}
	_, err := ParseCompression("brotli")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func BenchmarkSerializer_Zstd(b *testing.B) {
	s := DefaultSerializer()
	out := make(map[string]value.Value)
	for i := 0; i < 100; i++ {
		out[fmt.Sprintf("node%d_output", i)] = value.String(strings.Repeat("content ", 16))
	}
	in := payload{Workflow: "bench", Output: out}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		data, _ := s.Serialize(in)
		var decoded payload
		_ = s.Deserialize(data, &decoded)
	}
}
