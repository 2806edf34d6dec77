// Package repository selects and opens a run history backend.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/flowgraph/workflow/internal/adapters/repository/memory"
	"github.com/flowgraph/workflow/internal/adapters/repository/postgres"
	"github.com/flowgraph/workflow/internal/adapters/repository/sqlite"
	"github.com/flowgraph/workflow/internal/core/history"
	"github.com/flowgraph/workflow/pkg/serialization"
)

// Backends.
const (
	Memory   = "memory"
	SQLite   = "sqlite"
	Postgres = "postgres"
)

var ErrUnknownBackend = errors.New("unknown history backend")

// Options describes a history backend and its payload encoding.
type Options struct {
	Backend     string
	SQLitePath  string
	DatabaseURL string

	// Memory backend limits.
	TTL         time.Duration
	MaxMemoryMB int

	Codec       string // json | msgpack; empty means msgpack
	Compression string // none | gzip | zstd; empty means zstd
	EncryptKey  []byte
}

// ParseSpec reads a backend spec of the form memory, sqlite:PATH,
// postgres or postgres:URL. A bare postgres uses defaultURL.
func ParseSpec(spec, defaultURL string) (Options, error) {
	backend, arg, _ := strings.Cut(spec, ":")
	switch backend {
	case "", Memory:
		return Options{Backend: Memory}, nil
	case SQLite:
		if arg == "" {
			return Options{}, fmt.Errorf("%w: sqlite needs a path, as in sqlite:runs.db", ErrUnknownBackend)
		}
		return Options{Backend: SQLite, SQLitePath: arg}, nil
	case Postgres:
		if arg == "" {
			arg = defaultURL
		}
		if arg == "" {
			return Options{}, fmt.Errorf("%w: postgres needs a URL or DATABASE_URL", ErrUnknownBackend)
		}
		return Options{Backend: Postgres, DatabaseURL: arg}, nil
	default:
		return Options{}, fmt.Errorf("%w: %q", ErrUnknownBackend, spec)
	}
}

// Serializer builds the payload serializer described by o.
func (o Options) Serializer() (*serialization.Serializer, error) {
	codec, err := serialization.CodecByName(o.Codec)
	if err != nil {
		return nil, err
	}
	compression := serialization.CompressionZstd
	if o.Compression != "" {
		if compression, err = serialization.ParseCompression(o.Compression); err != nil {
			return nil, err
		}
	}
	return serialization.NewSerializer(serialization.Config{
		Codec:       codec,
		Compression: compression,
		EncryptKey:  o.EncryptKey,
	})
}

// Open opens the store described by o. The returned func releases it.
func Open(ctx context.Context, o Options) (history.Store, func() error, error) {
	serializer, err := o.Serializer()
	if err != nil {
		return nil, nil, err
	}

	switch o.Backend {
	case "", Memory:
		s := memory.New(memory.Config{
			DefaultTTL:  o.TTL,
			MaxMemoryMB: int64(o.MaxMemoryMB),
			Serializer:  serializer,
		})
		return s, s.Close, nil
	case SQLite:
		s, err := sqlite.Open(ctx, o.SQLitePath, serializer)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case Postgres:
		s, err := postgres.Connect(ctx, o.DatabaseURL, serializer)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() error {
			s.Close()
			return nil
		}
		return s, closeFn, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownBackend, o.Backend)
	}
}
