package media

import (
	"context"
	"fmt"
	"os/exec"

	"go.uber.org/zap"
)

// Processor generates thumbnails with ffmpeg
type Processor struct {
	ffmpegPath string
	logger     *zap.Logger
}

// NewProcessor creates a new thumbnail processor
func NewProcessor(ffmpegPath string, logger *zap.Logger) *Processor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Processor{
		ffmpegPath: ffmpegPath,
		logger:     logger,
	}
}

// GenerateVideoThumbnail extracts a single frame at the given timestamp
// and scales it to thumbnail width
func (p *Processor) GenerateVideoThumbnail(ctx context.Context, inputPath, outputPath string, timestamp float64) error {
	args := []string{
		"-y",
		"-ss", fmt.Sprintf("%.2f", timestamp),
		"-i", inputPath,
		"-vframes", "1",
		"-vf", "scale=320:-1",
		outputPath,
	}

	cmd := exec.CommandContext(ctx, p.ffmpegPath, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		p.logger.Error("video thumbnail generation failed",
			zap.Error(err),
			zap.String("input", inputPath),
			zap.ByteString("ffmpeg_output", output))
		return fmt.Errorf("ffmpeg thumbnail failed: %w", err)
	}

	return nil
}

// GenerateImageThumbnail scales an image down to thumbnail width
func (p *Processor) GenerateImageThumbnail(ctx context.Context, inputPath, outputPath string) error {
	args := []string{
		"-y",
		"-i", inputPath,
		"-vf", "scale=320:-1",
		outputPath,
	}

	cmd := exec.CommandContext(ctx, p.ffmpegPath, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		p.logger.Error("image thumbnail generation failed",
			zap.Error(err),
			zap.String("input", inputPath),
			zap.ByteString("ffmpeg_output", output))
		return fmt.Errorf("ffmpeg thumbnail failed: %w", err)
	}

	return nil
}
