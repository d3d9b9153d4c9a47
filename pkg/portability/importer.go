package portability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/msgsight/cfgd/pkg/manager"
	"github.com/msgsight/cfgd/pkg/schema"
	"github.com/msgsight/cfgd/pkg/store"
)

// LoadOptions configures Load.
type LoadOptions struct {
	// BaseDir resolves relative patterns. Defaults to the working directory.
	BaseDir string

	// Registry, when set, checks every file against the document schema.
	Registry *schema.Registry
}

// Bundle is a set of documents merged into one request body.
type Bundle struct {
	// Files lists the loaded files in load order.
	Files []string

	// Document is the merged document.
	Document map[string]any
}

// Body returns the merged document as a JSON request body.
func (b *Bundle) Body() ([]byte, error) {
	return json.Marshal(b.Document)
}

// ExpandPaths expands glob patterns to a sorted, de-duplicated file list.
// A pattern without glob metacharacters must name an existing file; a glob
// that matches nothing is an error as well.
func ExpandPaths(patterns []string, baseDir string) ([]string, error) {
	var files []string
	for _, pattern := range patterns {
		if !filepath.IsAbs(pattern) && baseDir != "" {
			pattern = filepath.Join(baseDir, pattern)
		}
		if !strings.ContainsAny(pattern, "*?[{") {
			info, err := os.Stat(pattern)
			if err != nil {
				return nil, err
			}
			if info.IsDir() {
				return nil, fmt.Errorf("%s is a directory", pattern)
			}
			files = append(files, pattern)
			continue
		}
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("expanding glob pattern %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no files match %q", pattern)
		}
		files = append(files, matches...)
	}
	slices.Sort(files)
	return slices.Compact(files), nil
}

// Decode parses one document. The result uses JSON value types (numbers are
// json.Number) whatever the source format.
func Decode(data []byte, format Format) (map[string]any, error) {
	var raw any
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
	case FormatJSON:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}

	// Normalize through JSON so YAML ints and JSON floats look the same.
	normalized, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(normalized))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, errors.New("document is not an object")
	}
	if doc == nil {
		return nil, errors.New("document is empty")
	}
	return doc, nil
}

// Load reads, decodes and checks every file matched by patterns and merges
// them. The same object defined in two files is an error.
func Load(patterns []string, opts LoadOptions) (*Bundle, error) {
	files, err := ExpandPaths(patterns, opts.BaseDir)
	if err != nil {
		return nil, err
	}

	var checker *jsonschema.Schema
	if opts.Registry != nil {
		if checker, err = opts.Registry.CompileDocumentSchema(); err != nil {
			return nil, err
		}
	}

	bundle := &Bundle{Document: make(map[string]any)}
	origin := make(map[string]string)
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		format := DetectFormat(data, path)
		doc, err := Decode(data, format)
		if err != nil {
			return nil, &ImportError{Path: path, Format: format, Message: "decode document", Cause: err}
		}
		if checker != nil {
			if err := checker.Validate(doc); err != nil {
				return nil, &ImportError{Path: path, Format: format, Message: "document does not match schema", Cause: err}
			}
		}
		if err := merge(bundle.Document, doc, path, origin, opts.Registry); err != nil {
			return nil, err
		}
		bundle.Files = append(bundle.Files, path)
	}
	return bundle, nil
}

func merge(dst, src map[string]any, path string, origin map[string]string, reg *schema.Registry) error {
	for typeName, section := range src {
		if typeName == manager.VersionKey {
			dst[typeName] = section
			continue
		}
		instances, isMap := section.(map[string]any)
		collection := isMap && (reg == nil || reg.IsCollection(typeName))
		if !collection {
			if prev, dup := origin[typeName]; dup {
				return &ImportError{Path: path, Message: fmt.Sprintf("%s is already defined in %s", typeName, prev)}
			}
			origin[typeName] = path
			dst[typeName] = section
			continue
		}
		out, _ := dst[typeName].(map[string]any)
		if out == nil {
			out = make(map[string]any, len(instances))
			dst[typeName] = out
		}
		for name, body := range instances {
			key := typeName + "/" + name
			if prev, dup := origin[key]; dup {
				return &ImportError{Path: path, Message: fmt.Sprintf("%s is already defined in %s", key, prev)}
			}
			origin[key] = path
			out[name] = body
		}
	}
	return nil
}

// Apply submits a bundle to a running manager as one batch.
func Apply(ctx context.Context, m *manager.Manager, b *Bundle) (*manager.Result, error) {
	body, err := b.Body()
	if err != nil {
		return nil, err
	}
	batch, err := manager.ParseRequest(m.Registry(), body)
	if err != nil {
		return nil, err
	}
	return m.Apply(ctx, batch)
}

// Validate applies a bundle to a scratch in-memory configuration seeded
// with the defaults. It reports the first error the server would return.
func Validate(ctx context.Context, reg *schema.Registry, b *Bundle) (*manager.Result, error) {
	m := manager.New(reg, store.NewMemoryBackend())
	defer m.Close()
	if _, err := m.Reload(ctx); err != nil {
		return nil, err
	}
	return Apply(ctx, m, b)
}

// ImportError represents an error during import.
type ImportError struct {
	Path    string
	Format  Format
	Message string
	Cause   error
}

func (e *ImportError) Error() string {
	msg := e.Message
	if e.Format != FormatUnknown {
		msg = string(e.Format) + ": " + msg
	}
	if e.Path != "" {
		msg = e.Path + ": " + msg
	}
	if e.Cause != nil {
		msg = msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *ImportError) Unwrap() error {
	return e.Cause
}
