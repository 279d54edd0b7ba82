package converter

import (
	"context"

	"github.com/converti/converti-api/internal/domain/model"
)

var documentFormats = []string{"docx", "html", "md", "odt", "pdf", "rtf", "txt"}

// DocumentConverter converts documents with pandoc. PDF output needs tectonic.
type DocumentConverter struct {
	tools  toolSet
	runner CommandRunner
}

// NewDocumentConverter resolves pandoc and tectonic through lookPath.
func NewDocumentConverter(lookPath LookPathFunc, runner CommandRunner) *DocumentConverter {
	return &DocumentConverter{
		tools:  resolveTools(lookPath, "pandoc", "tectonic"),
		runner: runner,
	}
}

// Formats returns the supported target formats.
func (c *DocumentConverter) Formats() []string { return documentFormats }

// Available reports whether pandoc was found.
func (c *DocumentConverter) Available() bool { return c.tools.has("pandoc") }

// Convert runs pandoc src -o dst, adding the tectonic engine for PDF.
func (c *DocumentConverter) Convert(ctx context.Context, src, dst, format string) error {
	pandoc, err := c.tools.path("pandoc")
	if err != nil {
		return err
	}

	args := []string{src, "-o", dst}
	if format == "pdf" {
		if !c.tools.has("tectonic") {
			return model.NewConversionError("PDF engine not found; install tectonic or texlive")
		}
		args = append(args, "--pdf-engine", "tectonic")
	}
	return c.runner.Run(ctx, pandoc, args...)
}
