package converter

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"slices"

	"github.com/converti/converti-api/internal/domain/model"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	// Registers the WebP decoder with image.Decode.
	_ "golang.org/x/image/webp"
)

const jpegQuality = 90

var imageFormats = []string{"bmp", "jpeg", "jpg", "png", "tiff"}

// ImageConverter converts raster images with Go codecs.
// WebP output is delegated to cwebp since x/image only decodes WebP, so webp
// is offered only when cwebp is installed.
type ImageConverter struct {
	tools  toolSet
	runner CommandRunner
}

// NewImageConverter resolves optional tools through lookPath.
func NewImageConverter(lookPath LookPathFunc, runner CommandRunner) *ImageConverter {
	return &ImageConverter{
		tools:  resolveTools(lookPath, "cwebp"),
		runner: runner,
	}
}

// Formats returns the supported target formats.
func (c *ImageConverter) Formats() []string {
	if c.tools.has("cwebp") {
		return append(slices.Clone(imageFormats), "webp")
	}
	return imageFormats
}

// Available is always true: decoding and most encoders are built in.
func (c *ImageConverter) Available() bool { return true }

// Convert decodes src and writes it to dst in format.
func (c *ImageConverter) Convert(ctx context.Context, src, dst, format string) error {
	img, err := decodeImage(src)
	if err != nil {
		return err
	}

	if format == "webp" {
		return c.encodeWebP(ctx, img, dst)
	}

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}

	switch format {
	case "png":
		err = png.Encode(out, img)
	case "jpg", "jpeg":
		err = jpeg.Encode(out, flattenOnWhite(img), &jpeg.Options{Quality: jpegQuality})
	case "bmp":
		err = bmp.Encode(out, img)
	case "tiff":
		err = tiff.Encode(out, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		err = model.NewConversionError("Unsupported image format: %s", format)
	}

	if cerr := out.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close output: %w", cerr)
	}
	if err != nil {
		_ = os.Remove(dst)
		var convErr *model.ConversionError
		if errors.As(err, &convErr) {
			return err
		}
		return &model.ConversionError{Message: "Image conversion failed: " + err.Error(), Cause: err}
	}
	return nil
}

func decodeImage(src string) (image.Image, error) {
	f, err := os.Open(src)
	if err != nil {
		return nil, &model.ConversionError{Message: "Image conversion failed: " + err.Error(), Cause: err}
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, &model.ConversionError{
				Message: "Unsupported image file: " + filepath.Base(src),
				Cause:   err,
			}
		}
		return nil, &model.ConversionError{Message: "Image conversion failed: " + err.Error(), Cause: err}
	}
	return img, nil
}

// flattenOnWhite composites img over an opaque white background.
// JPEG has no alpha channel.
func flattenOnWhite(img image.Image) image.Image {
	b := img.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(dst, b, img, b.Min, draw.Over)
	return dst
}

func (c *ImageConverter) encodeWebP(ctx context.Context, img image.Image, dst string) error {
	cwebp, err := c.tools.path("cwebp")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".webp-src-*.png")
	if err != nil {
		return fmt.Errorf("create webp staging file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := png.Encode(tmp, img); err != nil {
		_ = tmp.Close()
		return &model.ConversionError{Message: "Image conversion failed: " + err.Error(), Cause: err}
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close webp staging file: %w", err)
	}

	return c.runner.Run(ctx, cwebp, "-quiet", tmp.Name(), "-o", dst)
}
