package output

import (
	"bufio"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/entityxtract/entityxtract/pkg/extraction"
)

// YAMLWriter writes the result set as one YAML document.
type YAMLWriter struct {
	w io.Writer
}

// Write serializes the result set.
func (w *YAMLWriter) Write(set *extraction.ResultSet) error {
	bw := bufio.NewWriter(w.w)

	encoder := yaml.NewEncoder(bw)
	encoder.SetIndent(2)
	if err := encoder.Encode(set); err != nil {
		return err
	}
	if err := encoder.Close(); err != nil {
		return err
	}
	return bw.Flush()
}
