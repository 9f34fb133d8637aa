package segmenter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/wav"
	"go.uber.org/zap"

	"audio-transcriber/pkg/models"
)

// Decoder loads the whole waveform into memory and cuts it by sample count,
// writing each slice as WAV next to the source.
type Decoder struct {
	logger *zap.Logger
}

func NewDecoder(logger *zap.Logger) *Decoder {
	return &Decoder{logger: logger}
}

func decodable(ext string) bool {
	return ext == ".wav" || ext == ".mp3"
}

func decode(f *os.File) (beep.StreamSeekCloser, beep.Format, error) {
	switch strings.ToLower(filepath.Ext(f.Name())) {
	case ".wav":
		return wav.Decode(f)
	case ".mp3":
		return mp3.Decode(f)
	}
	return nil, beep.Format{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(f.Name()))
}

func (d *Decoder) Split(ctx context.Context, path string, chunk time.Duration) ([]models.Segment, error) {
	if err := checkChunk(chunk); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening source: %w", err)
	}
	defer f.Close()

	if fi, err := f.Stat(); err == nil && fi.Size() == 0 {
		return nil, ErrEmptyAudio
	}

	streamer, format, err := decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	defer streamer.Close()

	buf := beep.NewBuffer(format)
	buf.Append(streamer)
	if err := streamer.Err(); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", filepath.Base(path), err)
	}

	total := buf.Len()
	if total == 0 {
		return nil, ErrEmptyAudio
	}
	per := format.SampleRate.N(chunk)
	count := ChunkCount(total, per)

	segments := make([]models.Segment, 0, count)
	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			removeSegments(segments)
			return nil, err
		}

		from := i * per
		to := from + per
		if to > total {
			to = total
		}
		seg := models.Segment{
			Index: i,
			Start: format.SampleRate.D(from),
			End:   format.SampleRate.D(to),
		}
		seg.Path = fmt.Sprintf("%s_part%d.wav", path, int(seg.Start/time.Second))

		if err := writeWAV(seg.Path, buf.Streamer(from, to), format); err != nil {
			removeSegments(segments)
			return nil, fmt.Errorf("writing chunk %d: %w", i, err)
		}
		segments = append(segments, seg)
	}

	if d.logger != nil {
		d.logger.Debug("split audio in memory",
			zap.String("path", path),
			zap.Int("sample_rate", int(format.SampleRate)),
			zap.Int("samples", total),
			zap.Int("chunks", len(segments)),
		)
	}
	return segments, nil
}

func writeWAV(path string, s beep.Streamer, format beep.Format) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := wav.Encode(out, s, format); err != nil {
		out.Close()
		os.Remove(path)
		return err
	}
	return out.Close()
}

func removeSegments(segments []models.Segment) {
	for _, s := range segments {
		os.Remove(s.Path)
	}
}
