package segmenter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"audio-transcriber/pkg/models"
)

var (
	ErrEmptyAudio        = errors.New("audio contains no samples")
	ErrUnsupportedFormat = errors.New("unsupported audio format")
)

// Segmenter splits a source file into chronologically ordered chunk files.
type Segmenter interface {
	Split(ctx context.Context, path string, chunk time.Duration) ([]models.Segment, error)
}

// ChunkCount is ceil(total/per), the number of chunks needed to cover total.
func ChunkCount(total, per int) int {
	if total <= 0 || per <= 0 {
		return 0
	}
	return (total + per - 1) / per
}

func checkChunk(chunk time.Duration) error {
	if chunk < time.Second {
		return fmt.Errorf("chunk length must be at least 1s, got %s", chunk)
	}
	return nil
}

// New returns the segmenter for kind: "decode", "ffmpeg" or "auto".
// maxDecodeBytes caps the file size auto will decode in memory; 0 means no cap.
func New(kind, ffmpegPath string, maxDecodeBytes int64, logger *zap.Logger) (Segmenter, error) {
	decoder := NewDecoder(logger)
	ff := NewFFmpeg(ffmpegPath, logger)
	switch kind {
	case "decode":
		return decoder, nil
	case "ffmpeg":
		return ff, nil
	case "auto", "":
		return &Auto{Decoder: decoder, FFmpeg: ff, MaxDecodeBytes: maxDecodeBytes, logger: logger}, nil
	}
	return nil, fmt.Errorf("unknown segmenter %q", kind)
}

// Auto decodes formats beep understands in memory and hands everything else,
// or anything the decoder rejects, to ffmpeg. Files larger than
// MaxDecodeBytes also go to ffmpeg: decoded PCM takes 16 bytes per frame,
// roughly 40 times the size of a typical mp3.
type Auto struct {
	Decoder        Segmenter
	FFmpeg         Segmenter
	MaxDecodeBytes int64
	logger         *zap.Logger
}

func (a *Auto) Split(ctx context.Context, path string, chunk time.Duration) ([]models.Segment, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !decodable(ext) {
		return a.FFmpeg.Split(ctx, path, chunk)
	}
	if a.MaxDecodeBytes > 0 {
		if fi, err := os.Stat(path); err == nil && fi.Size() > a.MaxDecodeBytes {
			if a.logger != nil {
				a.logger.Debug("file too large to decode in memory, using ffmpeg",
					zap.String("path", path),
					zap.Int64("size", fi.Size()),
				)
			}
			return a.FFmpeg.Split(ctx, path, chunk)
		}
	}

	segments, err := a.Decoder.Split(ctx, path, chunk)
	if errors.Is(err, ErrUnsupportedFormat) {
		if a.logger != nil {
			a.logger.Warn("decoder rejected file, falling back to ffmpeg",
				zap.String("path", path),
				zap.Error(err),
			)
		}
		return a.FFmpeg.Split(ctx, path, chunk)
	}
	return segments, err
}
