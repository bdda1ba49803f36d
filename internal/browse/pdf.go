package browse

import (
	"context"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"aura/internal/types"
)

// PdfExtractor extracts text from the document open in the frontmost PDF
// reader. There is no portable way to read another process's document
// buffer, so it works off the reader's window title: most readers put the
// file path or name there, and pdftotext does the rest.
type PdfExtractor struct {
	logger *zap.Logger

	// ResolvePath turns the detected application into the path of the
	// open document. The default uses the window title; hosts with a
	// native bridge inject a better resolver.
	ResolvePath func(ctx context.Context, app types.ApplicationInfo) (string, error)
}

// NewPdfExtractor creates the extractor with the default path resolver.
func NewPdfExtractor(logger *zap.Logger) *PdfExtractor {
	return &PdfExtractor{logger: logger, ResolvePath: pathFromWindowTitle}
}

// ExtractText runs pdftotext over the resolved document.
func (e *PdfExtractor) ExtractText(ctx context.Context, app types.ApplicationInfo) (string, error) {
	if _, err := exec.LookPath("pdftotext"); err != nil {
		return "", types.WrapError(types.ErrModuleUnavailable, err, "pdftotext not installed").
			WithHint("install poppler-utils to enable PDF reading")
	}

	path, err := e.ResolvePath(ctx, app)
	if err != nil {
		return "", types.WrapError(types.ErrExtractionFailed, err, "cannot locate the open PDF")
	}

	out, err := exec.CommandContext(ctx, "pdftotext", "-layout", path, "-").Output()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", types.WrapError(types.ErrExtractionTimeout, err, "PDF extraction timed out")
		}
		return "", types.WrapError(types.ErrExtractionFailed, err, "pdftotext failed on %s", path)
	}

	text := strings.TrimSpace(string(out))
	if text == "" {
		return "", types.NewError(types.ErrExtractionFailed, "PDF %s contains no extractable text", path)
	}

	e.logger.Debug("pdf text extracted",
		zap.String("path", path),
		zap.Int("chars", len(text)))
	return text, nil
}
