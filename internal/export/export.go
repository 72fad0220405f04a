package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/satdecay/core"
	"github.com/signalsfoundry/satdecay/internal/logging"
)

// Format is the on-disk encoding of a chart document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts json, yaml or yml.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown output format %q", s)
	}
}

// Extension returns the file extension, without the dot.
func (f Format) Extension() string { return string(f) }

// Encode writes one chart document to w.
func Encode(w io.Writer, f Format, chart core.Chart) error {
	switch f {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(chart); err != nil {
			return fmt.Errorf("encode chart %q as yaml: %w", chart.Title, err)
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(chart); err != nil {
			return fmt.Errorf("encode chart %q as json: %w", chart.Title, err)
		}
		return nil
	}
}

// Writer stores chart documents in a directory, one file per chart.
type Writer struct {
	dir    string
	format Format
	log    logging.Logger
}

func NewWriter(dir string, f Format, log logging.Logger) *Writer {
	if dir == "" {
		dir = "."
	}
	if log == nil {
		log = logging.Noop()
	}
	return &Writer{dir: dir, format: f, log: log}
}

// Path returns the file a chart is written to.
func (w *Writer) Path(chart core.Chart) string {
	stem := core.SanitizeFileName(chart.FileStem)
	if stem == "" {
		stem = core.DefaultCombinedName
	}
	return filepath.Join(w.dir, stem+"."+w.format.Extension())
}

// WriteCharts writes every chart and returns the paths written, in order.
func (w *Writer) WriteCharts(ctx context.Context, charts []core.Chart) ([]string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	paths := make([]string, 0, len(charts))
	for _, chart := range charts {
		path := w.Path(chart)
		if err := w.write(path, chart); err != nil {
			return paths, err
		}
		w.log.Info(ctx, "chart written",
			logging.String("title", chart.Title),
			logging.String("path", path),
		)
		paths = append(paths, path)
	}
	return paths, nil
}

func (w *Writer) write(path string, chart core.Chart) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()
	return Encode(f, w.format, chart)
}
