package segmenter

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/generators"
	"github.com/gopxl/beep/wav"
	"github.com/stretchr/testify/require"
	"gotest.tools/assert"

	"audio-transcriber/pkg/models"
)

const testRate = beep.SampleRate(8000)

func writeTestWAV(t *testing.T, dir string, d time.Duration) string {
	t.Helper()
	path := filepath.Join(dir, "source.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	format := beep.Format{SampleRate: testRate, NumChannels: 1, Precision: 2}
	require.NoError(t, wav.Encode(f, generators.Silence(testRate.N(d)), format))
	require.NoError(t, f.Close())
	return path
}

func wavLen(t *testing.T, path string) int {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	s, _, err := wav.Decode(f)
	require.NoError(t, err)
	defer s.Close()
	return s.Len()
}

func TestChunkCount(t *testing.T) {
	tests := []struct {
		total, per, want int
	}{
		{0, 10, 0},
		{10, 0, 0},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{20, 10, 2},
		{150, 60, 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ChunkCount(tt.total, tt.per), "total=%d per=%d", tt.total, tt.per)
	}
}

func TestDecoderSplitCoversSourceInOrder(t *testing.T) {
	dir := t.TempDir()
	src := writeTestWAV(t, dir, 2500*time.Millisecond)

	segments, err := NewDecoder(nil).Split(context.Background(), src, time.Second)
	require.NoError(t, err)

	want := []models.Segment{
		{Index: 0, Path: src + "_part0.wav", Start: 0, End: time.Second},
		{Index: 1, Path: src + "_part1.wav", Start: time.Second, End: 2 * time.Second},
		{Index: 2, Path: src + "_part2.wav", Start: 2 * time.Second, End: 2500 * time.Millisecond},
	}
	assert.DeepEqual(t, want, segments)

	total := 0
	for i, s := range segments {
		if i > 0 {
			assert.Equal(t, segments[i-1].End, s.Start, "gap or overlap before chunk %d", i)
		}
		total += wavLen(t, s.Path)
	}
	assert.Equal(t, testRate.N(2500*time.Millisecond), total)
	assert.Equal(t, testRate.N(time.Second), wavLen(t, segments[0].Path))
	assert.Equal(t, testRate.N(500*time.Millisecond), wavLen(t, segments[2].Path))
}

func TestDecoderSplitExactMultipleHasNoEmptyTail(t *testing.T) {
	dir := t.TempDir()
	src := writeTestWAV(t, dir, 2*time.Second)

	segments, err := NewDecoder(nil).Split(context.Background(), src, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 2, len(segments))

	_, err = os.Stat(src + "_part2.wav")
	assert.Assert(t, os.IsNotExist(err))
}

func TestDecoderSplitRejectsBadInput(t *testing.T) {
	dir := t.TempDir()

	empty := filepath.Join(dir, "empty.wav")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	_, err := NewDecoder(nil).Split(context.Background(), empty, time.Second)
	assert.Assert(t, errors.Is(err, ErrEmptyAudio), "got %v", err)

	garbage := filepath.Join(dir, "garbage.wav")
	require.NoError(t, os.WriteFile(garbage, []byte("this is not a riff header"), 0o644))
	_, err = NewDecoder(nil).Split(context.Background(), garbage, time.Second)
	assert.Assert(t, errors.Is(err, ErrUnsupportedFormat), "got %v", err)

	src := writeTestWAV(t, dir, time.Second)
	_, err = NewDecoder(nil).Split(context.Background(), src, 500*time.Millisecond)
	assert.ErrorContains(t, err, "at least 1s")
}

func TestDecoderSplitHonoursCancellation(t *testing.T) {
	dir := t.TempDir()
	src := writeTestWAV(t, dir, 3*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewDecoder(nil).Split(ctx, src, time.Second)
	assert.Assert(t, errors.Is(err, context.Canceled))

	matches, _ := filepath.Glob(src + "_part*")
	assert.Equal(t, 0, len(matches))
}

type fakeSegmenter struct {
	name  string
	err   error
	calls int
}

func (f *fakeSegmenter) Split(ctx context.Context, path string, chunk time.Duration) ([]models.Segment, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []models.Segment{{Path: f.name}}, nil
}

func TestAutoRouting(t *testing.T) {
	tests := []struct {
		path       string
		decoderErr error
		want       string
	}{
		{"a.wav", nil, "decoder"},
		{"a.MP3", nil, "decoder"},
		{"a.m4a", nil, "ffmpeg"},
		{"a.wav", ErrUnsupportedFormat, "ffmpeg"},
	}
	for _, tt := range tests {
		dec := &fakeSegmenter{name: "decoder", err: tt.decoderErr}
		ff := &fakeSegmenter{name: "ffmpeg"}
		auto := &Auto{Decoder: dec, FFmpeg: ff}

		got, err := auto.Split(context.Background(), tt.path, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got[0].Path, tt.path)
	}
}

func TestAutoDoesNotMaskOtherErrors(t *testing.T) {
	dec := &fakeSegmenter{err: ErrEmptyAudio}
	ff := &fakeSegmenter{}
	_, err := (&Auto{Decoder: dec, FFmpeg: ff}).Split(context.Background(), "a.wav", time.Minute)
	assert.Assert(t, errors.Is(err, ErrEmptyAudio))
	assert.Equal(t, 0, ff.calls)
}

func TestNewRejectsUnknownKind(t *testing.T) {
	_, err := New("sox", "", 0, nil)
	assert.ErrorContains(t, err, "unknown segmenter")
}

func TestAutoSendsLargeFilesToFFmpeg(t *testing.T) {
	dir := t.TempDir()
	small := filepath.Join(dir, "small.mp3")
	large := filepath.Join(dir, "large.mp3")
	require.NoError(t, os.WriteFile(small, make([]byte, 1024), 0o644))
	require.NoError(t, os.WriteFile(large, make([]byte, 4096), 0o644))

	dec := &fakeSegmenter{name: "decoder"}
	ff := &fakeSegmenter{name: "ffmpeg"}
	auto := &Auto{Decoder: dec, FFmpeg: ff, MaxDecodeBytes: 2048}

	got, err := auto.Split(context.Background(), small, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "decoder", got[0].Path)

	got, err = auto.Split(context.Background(), large, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "ffmpeg", got[0].Path)
	assert.Equal(t, 1, dec.calls)
}

func TestNewAutoCarriesDecodeLimit(t *testing.T) {
	seg, err := New("auto", "ffmpeg", 8<<20, nil)
	require.NoError(t, err)
	auto, ok := seg.(*Auto)
	require.True(t, ok)
	assert.Equal(t, int64(8<<20), auto.MaxDecodeBytes)
}
