// Package serialization encodes run history payloads for storage.
// PRINCIPLES:
// - KISS: Simple interface with multiple codec implementations
// - DRY: Reusable across all history stores
package serialization

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	ErrUnknownFormat     = errors.New("unknown serialization format")
	ErrInvalidKey        = errors.New("encryption key must be 16, 24 or 32 bytes")
	ErrInvalidCiphertext = errors.New("invalid ciphertext size")
)

// Config holds serialization settings
type Config struct {
	Codec       Codec
	Compression CompressionType
	EncryptKey  []byte // AES key; empty disables encryption
}

// Serializer runs the encode, compress, encrypt pipeline and its inverse.
// It is safe for concurrent use.
type Serializer struct {
	codec       Codec
	compression CompressionType
	aead        cipher.AEAD
}

// NewSerializer validates cfg and prepares the cipher once.
func NewSerializer(cfg Config) (*Serializer, error) {
	if cfg.Codec == nil {
		cfg.Codec = MsgPackCodec{}
	}
	if cfg.Compression == "" {
		cfg.Compression = CompressionNone
	}
	if _, err := ParseCompression(string(cfg.Compression)); err != nil {
		return nil, err
	}

	s := &Serializer{codec: cfg.Codec, compression: cfg.Compression}
	if len(cfg.EncryptKey) > 0 {
		block, err := aes.NewCipher(cfg.EncryptKey)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		if s.aead, err = cipher.NewGCM(block); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// DefaultSerializer uses msgpack with zstd and no encryption.
func DefaultSerializer() *Serializer {
	return &Serializer{codec: MsgPackCodec{}, compression: CompressionZstd}
}

// Name describes the pipeline, e.g. "msgpack+zstd+aes-gcm".
func (s *Serializer) Name() string {
	parts := []string{s.codec.Name()}
	if s.compression != CompressionNone {
		parts = append(parts, string(s.compression))
	}
	if s.aead != nil {
		parts = append(parts, "aes-gcm")
	}
	return strings.Join(parts, "+")
}

// Serialize encodes, compresses, and encrypts v.
func (s *Serializer) Serialize(v interface{}) ([]byte, error) {
	data, err := s.codec.Encode(v)
	if err != nil {
		return nil, fmt.Errorf("codec encoding failed: %w", err)
	}
	if data, err = compress(s.compression, data); err != nil {
		return nil, fmt.Errorf("compression failed: %w", err)
	}
	if s.aead == nil {
		return data, nil
	}

	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(data)+s.aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("encryption failed: %w", err)
	}
	return s.aead.Seal(nonce, nonce, data, nil), nil
}

// Deserialize decrypts, decompresses, and decodes data into v.
func (s *Serializer) Deserialize(data []byte, v interface{}) error {
	if s.aead != nil {
		n := s.aead.NonceSize()
		if len(data) < n {
			return fmt.Errorf("decryption failed: %w", ErrInvalidCiphertext)
		}
		plain, err := s.aead.Open(nil, data[:n], data[n:], nil)
		if err != nil {
			return fmt.Errorf("decryption failed: %w", err)
		}
		data = plain
	}

	data, err := decompress(s.compression, data)
	if err != nil {
		return fmt.Errorf("decompression failed: %w", err)
	}
	if err := s.codec.Decode(data, v); err != nil {
		return fmt.Errorf("codec decoding failed: %w", err)
	}
	return nil
}
