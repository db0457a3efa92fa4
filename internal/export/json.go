package export

import (
	"encoding/json"
	"io"

	"github.com/sessiontrace/sessiontrace/internal/parse"
)

// JSONExporter writes sessions as pretty-printed JSON.
type JSONExporter struct{}

func (e *JSONExporter) Export(session *parse.Session, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(session)
}

func (e *JSONExporter) Extension() string {
	return "json"
}
