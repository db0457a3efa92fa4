package export

import (
	"io"

	"github.com/sessiontrace/sessiontrace/internal/parse"
	"gopkg.in/yaml.v3"
)

// YAMLExporter writes sessions as YAML.
type YAMLExporter struct{}

func (e *YAMLExporter) Export(session *parse.Session, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	defer func() { _ = enc.Close() }()

	return enc.Encode(session)
}

func (e *YAMLExporter) Extension() string {
	return "yaml"
}
