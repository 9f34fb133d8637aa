package segmenter

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"audio-transcriber/pkg/models"
)

// FFmpeg cuts the source at the container level with the segment muxer,
// without re-encoding.
type FFmpeg struct {
	Path   string
	logger *zap.Logger
}

func NewFFmpeg(path string, logger *zap.Logger) *FFmpeg {
	if path == "" {
		path = "ffmpeg"
	}
	return &FFmpeg{Path: path, logger: logger}
}

// Args builds the ffmpeg command line for one split.
func Args(input, pattern, list string, chunk time.Duration) []string {
	return []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", input,
		"-f", "segment",
		"-segment_time", strconv.FormatFloat(chunk.Seconds(), 'f', -1, 64),
		"-segment_list", list,
		"-segment_list_type", "csv",
		"-reset_timestamps", "1",
		"-c", "copy",
		pattern,
	}
}

func (f *FFmpeg) Split(ctx context.Context, path string, chunk time.Duration) ([]models.Segment, error) {
	if err := checkChunk(chunk); err != nil {
		return nil, err
	}
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("opening source: %w", err)
	}
	if fi.Size() == 0 {
		return nil, ErrEmptyAudio
	}

	dir := filepath.Dir(path)
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(filepath.Base(path), ext)
	pattern := filepath.Join(dir, base+"_part%03d"+ext)
	list := filepath.Join(dir, base+"_segments.csv")
	defer os.Remove(list)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, f.Path, Args(path, pattern, list, chunk)...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("ffmpeg interrupted: %w", ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("%w: ffmpeg: %s", ErrUnsupportedFormat, strings.TrimSpace(stderr.String()))
		}
		return nil, fmt.Errorf("running ffmpeg: %w", err)
	}

	lf, err := os.Open(list)
	if err != nil {
		return nil, fmt.Errorf("reading segment list: %w", err)
	}
	defer lf.Close()

	segments, err := parseSegmentList(lf, dir)
	if err != nil {
		return nil, err
	}
	if len(segments) == 0 {
		return nil, ErrEmptyAudio
	}

	if f.logger != nil {
		f.logger.Debug("split audio with ffmpeg",
			zap.String("path", path),
			zap.Int("chunks", len(segments)),
		)
	}
	return segments, nil
}

// parseSegmentList reads ffmpeg's csv segment list (file,start,end per line),
// which ffmpeg writes in output order.
func parseSegmentList(r io.Reader, dir string) ([]models.Segment, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 3

	var segments []models.Segment
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing segment list: %w", err)
		}
		start, err := decimal.NewFromString(rec[1])
		if err != nil {
			return nil, fmt.Errorf("segment start %q: %w", rec[1], err)
		}
		end, err := decimal.NewFromString(rec[2])
		if err != nil {
			return nil, fmt.Errorf("segment end %q: %w", rec[2], err)
		}
		p := rec[0]
		if !filepath.IsAbs(p) {
			p = filepath.Join(dir, filepath.Base(p))
		}
		if !end.GreaterThan(start) {
			os.Remove(p)
			continue
		}
		segments = append(segments, models.Segment{
			Index: len(segments),
			Path:  p,
			Start: models.Seconds(start),
			End:   models.Seconds(end),
		})
	}
	return segments, nil
}
