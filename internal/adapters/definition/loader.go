// Package definition turns workflow definition files (HCL, YAML, JSON) into
// compiled graphs, resolving function names through a functions.Registry.
package definition

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/flowgraph/workflow/internal/infrastructure/ctxlog"
	"github.com/flowgraph/workflow/pkg/validation"
)

var ErrUnknownFormat = errors.New("unknown definition format")

// Format is a definition file syntax.
type Format string

const (
	FormatHCL  Format = "hcl"
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatFromPath infers the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".hcl":
		return FormatHCL, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, path)
	}
}

// ParseFormat resolves a format name such as "yaml" or "application/json".
func ParseFormat(name string) (Format, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if i := strings.IndexByte(name, ';'); i >= 0 {
		name = strings.TrimSpace(name[:i])
	}
	switch name {
	case "hcl", "application/hcl", "text/hcl":
		return FormatHCL, nil
	case "", "yaml", "yml", "application/yaml", "application/x-yaml", "text/yaml":
		return FormatYAML, nil
	case "json", "application/json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

// Parse decodes a definition document. It does not validate it.
func Parse(data []byte, format Format, filename string) (*validation.WorkflowConfig, error) {
	switch format {
	case FormatHCL:
		return parseHCL(data, filename)
	case FormatYAML:
		var wc validation.WorkflowConfig
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&wc); err != nil {
			return nil, fmt.Errorf("failed to decode YAML %s: %w", filename, err)
		}
		return &wc, nil
	case FormatJSON:
		var wc validation.WorkflowConfig
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&wc); err != nil {
			return nil, fmt.Errorf("failed to decode JSON %s: %w", filename, err)
		}
		return &wc, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// LoadFile reads and parses one definition file.
func LoadFile(path string) (*validation.WorkflowConfig, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definition: %w", err)
	}
	return Parse(data, format, path)
}

// LoadDir parses every definition file under dir, in path order.
func LoadDir(ctx context.Context, dir string) ([]*validation.WorkflowConfig, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading workflow definitions", "path", dir)

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if _, ferr := FormatFromPath(path); ferr == nil {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find definitions in %s: %w", dir, err)
	}
	sort.Strings(files)

	if len(files) == 0 {
		logger.Warn("No workflow definitions found", "path", dir)
		return nil, nil
	}

	out := make([]*validation.WorkflowConfig, 0, len(files))
	for _, f := range files {
		wc, err := LoadFile(f)
		if err != nil {
			return nil, err
		}
		logger.Debug("Loaded workflow definition", "file", f, "workflow", wc.Name)
		out = append(out, wc)
	}
	return out, nil
}
