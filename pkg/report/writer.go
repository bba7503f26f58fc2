package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mercator-hq/certify/pkg/config"
	"mercator-hq/certify/pkg/telemetry/metrics"
)

// File name prefixes.
const (
	PrefixReport        = "report"
	PrefixComprehensive = "comprehensive_report"
	PrefixFolder        = "folder_report"
)

var extensions = map[string]string{
	"markdown": "md",
	"html":     "html",
	"pdf":      "pdf",
	"json":     "json",
}

// Writer writes reports to disk.
type Writer struct {
	outputDir string
	formats   []string
	pdf       *PDFConverter
	logger    *slog.Logger
	metrics   *metrics.Collector
	now       func() time.Time
}

// NewWriter creates a writer from report configuration.
func NewWriter(cfg config.ReportConfig, logger *slog.Logger, collector *metrics.Collector) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	outDir := cfg.OutputDir
	if outDir == "" {
		outDir = config.DefaultReportOutputDir
	}
	formats := cfg.Formats
	if len(formats) == 0 {
		formats = []string{config.DefaultReportFormat}
	}
	return &Writer{
		outputDir: outDir,
		formats:   formats,
		pdf:       &PDFConverter{Command: cfg.PDFCommand, Timeout: cfg.PDFTimeout},
		logger:    logger.With("component", "report"),
		metrics:   collector,
		now:       time.Now,
	}
}

// SetClock replaces the clock used for file name timestamps.
func (w *Writer) SetClock(now func() time.Time) { w.now = now }

// WriteOptions selects what Write produces. Zero values use the writer's
// configuration.
type WriteOptions struct {
	Prefix    string
	Formats   []string
	OutputDir string
}

// FileName returns the file name for a report of app in format at t:
// <prefix>_<app>_<YYYYMMDD_HHMMSS>.<ext>, with spaces and path separators
// in app replaced by underscores.
func FileName(prefix, app, format string, t time.Time) string {
	if prefix == "" {
		prefix = PrefixReport
	}
	ext, ok := extensions[format]
	if !ok {
		ext = "txt"
	}
	safe := strings.NewReplacer(" ", "_", "/", "_", "\\", "_").Replace(app)
	return fmt.Sprintf("%s_%s_%s.%s", prefix, safe, t.Format("20060102_150405"), ext)
}

// Write renders r in every requested format and returns the written paths
// keyed by format. Files are overwritten. A missing PDF converter omits the
// PDF without failing; other failures are joined into the returned error
// alongside the paths that were written.
func (w *Writer) Write(ctx context.Context, r *Report, opts WriteOptions) (map[string]string, error) {
	formats := opts.Formats
	if len(formats) == 0 {
		formats = w.formats
	}
	dir := opts.OutputDir
	if dir == "" {
		dir = w.outputDir
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create report directory: %w", err)
	}

	now := w.now()
	md := RenderMarkdown(r)
	paths := make(map[string]string, len(formats))
	var errs []error

	for _, format := range formats {
		format = strings.ToLower(strings.TrimSpace(format))
		path := filepath.Join(dir, FileName(opts.Prefix, r.AppDetails.Name, format, now))

		var err error
		switch format {
		case "markdown":
			err = writeFile(path, []byte(md))
		case "html":
			err = writeFile(path, []byte(RenderHTML(md)))
		case "json":
			var data []byte
			data, err = json.MarshalIndent(r, "", "  ")
			if err == nil {
				err = writeFile(path, data)
			}
		case "pdf":
			err = w.writePDF(ctx, dir, path, md)
			if errors.Is(err, ErrConverterUnavailable) {
				w.logger.WarnContext(ctx, "pdf converter unavailable, skipping pdf report", "error", err)
				w.metrics.RecordReport(format, "unavailable")
				continue
			}
		default:
			err = fmt.Errorf("unknown report format %q", format)
		}

		if err != nil {
			w.metrics.RecordReport(format, "failed")
			errs = append(errs, fmt.Errorf("%s report: %w", format, err))
			continue
		}
		w.metrics.RecordReport(format, "ok")
		paths[format] = path
		w.logger.InfoContext(ctx, "report written", "format", format, "path", path)
	}

	return paths, errors.Join(errs...)
}

func (w *Writer) writePDF(ctx context.Context, dir, pdfPath, md string) error {
	tmp, err := os.CreateTemp(dir, ".report-*.md")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(md); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return w.pdf.Convert(ctx, tmp.Name(), pdfPath)
}

func writeFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0644)
}
