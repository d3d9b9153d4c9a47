// Package output renders admin API responses for the terminal.
package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
	"gopkg.in/yaml.v3"
)

// Formats accepted by Render.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Render writes a JSON response body in the given format, optionally
// narrowed by a JSONPath expression. A path that selects exactly one value
// prints that value; otherwise the matches are printed as a list.
func Render(w io.Writer, body []byte, format, path string) error {
	var data any
	if err := oj.Unmarshal(body, &data); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if path != "" {
		expr, err := jp.ParseString(path)
		if err != nil {
			return fmt.Errorf("invalid JSONPath %q: %w", path, err)
		}
		matches := expr.Get(data)
		switch len(matches) {
		case 0:
			data = []any{}
		case 1:
			data = matches[0]
		default:
			data = matches
		}
	}

	switch format {
	case "", FormatJSON:
		return JSON(w, data)
	case FormatYAML:
		return YAML(w, data)
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

// JSON writes indented JSON.
func JSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// YAML writes a YAML document.
func YAML(w io.Writer, v any) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// Table creates an aligned table writer.
// Remember to call Flush() when done writing.
func Table(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

// Warn prints a warning message.
func Warn(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "Warning: "+format+"\n", args...)
}
