package portability

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"gopkg.in/yaml.v3"
)

// ExportOptions provides configuration for the export process.
type ExportOptions struct {
	// Format is the output encoding. Defaults to JSON.
	Format Format

	// Types limits the export to the named object types. Version is always
	// kept.
	Types []string
}

// Export renders a configuration document.
func Export(doc map[string]any, opts ExportOptions) ([]byte, error) {
	if opts.Format == FormatUnknown {
		opts.Format = FormatJSON
	}
	if !opts.Format.IsValid() {
		return nil, &ExportError{Format: opts.Format, Message: "unsupported format"}
	}

	out := doc
	if len(opts.Types) > 0 {
		out = make(map[string]any, len(opts.Types)+1)
		for _, k := range slices.Sorted(maps.Keys(doc)) {
			if k == "Version" || slices.Contains(opts.Types, k) {
				out[k] = doc[k]
			}
		}
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, &ExportError{Format: opts.Format, Message: "encode document", Cause: err}
	}
	if opts.Format == FormatJSON {
		return append(data, '\n'), nil
	}

	// Go through the JSON form so property values use their wire
	// representation rather than their Go struct layout.
	var plain any
	if err := json.Unmarshal(data, &plain); err != nil {
		return nil, &ExportError{Format: opts.Format, Message: "encode document", Cause: err}
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(plain); err != nil {
		return nil, &ExportError{Format: opts.Format, Message: "encode yaml", Cause: err}
	}
	if err := enc.Close(); err != nil {
		return nil, &ExportError{Format: opts.Format, Message: "encode yaml", Cause: err}
	}
	return buf.Bytes(), nil
}

// ExportError represents an error during export.
type ExportError struct {
	Format  Format
	Message string
	Cause   error
}

func (e *ExportError) Error() string {
	msg := fmt.Sprintf("%s export: %s", e.Format, e.Message)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ExportError) Unwrap() error {
	return e.Cause
}
