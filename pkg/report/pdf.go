package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ErrConverterUnavailable is returned when the PDF converter is not installed.
var ErrConverterUnavailable = errors.New("pdf converter unavailable")

// PDFConverter converts Markdown files to PDF with an external command,
// invoked as: <command> <input.md> -o <output.pdf>.
type PDFConverter struct {
	Command string
	Timeout time.Duration
}

// Convert converts mdPath to pdfPath. A missing command returns
// ErrConverterUnavailable.
func (c *PDFConverter) Convert(ctx context.Context, mdPath, pdfPath string) error {
	if c == nil || c.Command == "" {
		return ErrConverterUnavailable
	}
	bin, err := exec.LookPath(c.Command)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrConverterUnavailable, c.Command, err)
	}

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, mdPath, "-o", pdfPath)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("pdf conversion failed: %w: %s", err, msg)
		}
		return fmt.Errorf("pdf conversion failed: %w", err)
	}
	return nil
}
