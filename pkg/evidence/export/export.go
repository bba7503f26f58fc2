// Package export writes run records as JSON or CSV.
package export

import (
	"context"
	"fmt"
	"io"

	"mercator-hq/certify/pkg/evidence"
)

// Exporter writes records to w.
type Exporter interface {
	Export(ctx context.Context, records []*evidence.Record, w io.Writer) error
}

// Formats lists the supported export formats.
var Formats = []string{"json", "csv"}

// New returns the exporter for format.
func New(format string) (Exporter, error) {
	switch format {
	case "", "json":
		return NewJSONExporter(true), nil
	case "csv":
		return NewCSVExporter(true), nil
	default:
		return nil, evidence.NewExportError(format, 0, fmt.Errorf("unsupported format %q", format))
	}
}
