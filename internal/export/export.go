// Package export serializes normalized sessions for downstream consumers.
package export

import (
	"fmt"
	"io"

	"github.com/sessiontrace/sessiontrace/internal/parse"
)

// Exporter writes a normalized session in one output format.
type Exporter interface {
	Export(session *parse.Session, w io.Writer) error
	Extension() string
}

// NewExporter creates an exporter for the named format.
func NewExporter(format string) (Exporter, error) {
	switch format {
	case "json":
		return &JSONExporter{}, nil
	case "yaml", "yml":
		return &YAMLExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s (supported: json, yaml)", format)
	}
}
