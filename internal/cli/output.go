package cli

import (
	"encoding/json"
	"io"
)

// printer renders command results either as indented JSON or through a
// command-specific text renderer.
type printer struct {
	format string
	w      io.Writer
}

func newPrinter(opts *RootOptions, w io.Writer) printer {
	return printer{format: opts.Format, w: w}
}

func (p printer) print(data any, text func(w io.Writer) error) error {
	if p.format == "json" {
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	}
	return text(p.w)
}

func compactJSON(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return "<invalid>"
	}
	return string(raw)
}
