package converter

import "context"

var (
	audioFormats = []string{"aac", "flac", "m4a", "mp3", "ogg", "wav"}
	videoFormats = []string{"avi", "mkv", "mov", "mp4", "webm"}
)

// MediaConverter transcodes audio or video through ffmpeg.
// ffmpeg infers the container and codecs from the output extension.
type MediaConverter struct {
	formats []string
	tools   toolSet
	runner  CommandRunner
}

// NewAudioConverter builds the audio capability.
func NewAudioConverter(lookPath LookPathFunc, runner CommandRunner) *MediaConverter {
	return &MediaConverter{formats: audioFormats, tools: resolveTools(lookPath, "ffmpeg"), runner: runner}
}

// NewVideoConverter builds the video capability.
func NewVideoConverter(lookPath LookPathFunc, runner CommandRunner) *MediaConverter {
	return &MediaConverter{formats: videoFormats, tools: resolveTools(lookPath, "ffmpeg"), runner: runner}
}

// Formats returns the supported target formats.
func (c *MediaConverter) Formats() []string { return c.formats }

// Available reports whether ffmpeg was found.
func (c *MediaConverter) Available() bool { return c.tools.has("ffmpeg") }

// Convert runs ffmpeg -y -i src dst.
func (c *MediaConverter) Convert(ctx context.Context, src, dst, _ string) error {
	ffmpeg, err := c.tools.path("ffmpeg")
	if err != nil {
		return err
	}
	return c.runner.Run(ctx, ffmpeg, "-y", "-i", src, dst)
}
