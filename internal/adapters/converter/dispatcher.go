// Package converter implements the conversion capabilities and routes
// requests to them by category.
package converter

import (
	"context"
	"log/slog"
	"os/exec"
	"slices"

	"github.com/converti/converti-api/internal/core"
	"github.com/converti/converti-api/internal/domain/model"
)

// capability is one conversion backend.
type capability interface {
	Formats() []string
	Available() bool
	Convert(ctx context.Context, src, dst, format string) error
}

// DispatcherOptions configures NewDispatcher. Zero values use the host's PATH and os/exec.
type DispatcherOptions struct {
	LookPath LookPathFunc
	Runner   CommandRunner
	Logger   *slog.Logger
}

// Dispatcher routes conversions to the capability for each category.
type Dispatcher struct {
	images    *ImageConverter
	audio     *MediaConverter
	video     *MediaConverter
	documents *DocumentConverter
}

// NewDispatcher probes the host for tools and builds every capability.
func NewDispatcher(opts DispatcherOptions) *Dispatcher {
	lookPath := opts.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	runner := opts.Runner
	if runner == nil {
		runner = ExecRunner{}
	}

	d := &Dispatcher{
		images:    NewImageConverter(lookPath, runner),
		audio:     NewAudioConverter(lookPath, runner),
		video:     NewVideoConverter(lookPath, runner),
		documents: NewDocumentConverter(lookPath, runner),
	}

	if opts.Logger != nil {
		for _, cat := range model.Categories() {
			opts.Logger.Info("conversion capability",
				"component", "converter",
				"category", cat,
				"available", d.capabilityFor(cat).Available())
		}
	}
	return d
}

func (d *Dispatcher) capabilityFor(cat model.Category) capability {
	switch cat {
	case model.CategoryImages:
		return d.images
	case model.CategoryAudio:
		return d.audio
	case model.CategoryVideo:
		return d.video
	case model.CategoryDocuments:
		return d.documents
	default:
		return nil
	}
}

// Catalog returns available categories with their sorted target formats.
func (d *Dispatcher) Catalog() map[model.Category][]string {
	out := make(map[model.Category][]string)
	for _, cat := range model.Categories() {
		c := d.capabilityFor(cat)
		if !c.Available() {
			continue
		}
		formats := slices.Clone(c.Formats())
		slices.Sort(formats)
		out[cat] = formats
	}
	return out
}

// Supports reports whether cat is available and accepts format.
func (d *Dispatcher) Supports(cat model.Category, format string) bool {
	c := d.capabilityFor(cat)
	if c == nil || !c.Available() {
		return false
	}
	return slices.Contains(c.Formats(), model.NormalizeFormat(format))
}

// Convert runs a single conversion through the category's capability.
func (d *Dispatcher) Convert(ctx context.Context, req model.ConversionRequest) error {
	format := model.NormalizeFormat(req.TargetFormat)
	if !d.Supports(req.Category, format) {
		return model.NewConversionError("Conversion to %s not supported for %s", format, req.Category)
	}
	return d.capabilityFor(req.Category).Convert(ctx, req.SourcePath, req.OutputPath, format)
}

var _ core.ConversionDispatcher = (*Dispatcher)(nil)
