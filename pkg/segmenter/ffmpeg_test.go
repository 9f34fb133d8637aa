package segmenter

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gotest.tools/assert"

	"audio-transcriber/pkg/models"
)

func TestArgs(t *testing.T) {
	got := Args("/tmp/in.m4a", "/tmp/in_part%03d.m4a", "/tmp/in_segments.csv", 60*time.Second)
	want := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", "/tmp/in.m4a",
		"-f", "segment",
		"-segment_time", "60",
		"-segment_list", "/tmp/in_segments.csv",
		"-segment_list_type", "csv",
		"-reset_timestamps", "1",
		"-c", "copy",
		"/tmp/in_part%03d.m4a",
	}
	assert.DeepEqual(t, want, got)
}

func TestParseSegmentList(t *testing.T) {
	dir := t.TempDir()
	list := strings.Join([]string{
		"in_part000.m4a,0.000000,60.000000",
		"in_part001.m4a,60.000000,120.000000",
		"in_part002.m4a,120.000000,125.400000",
		"in_part003.m4a,125.400000,125.400000",
	}, "\n") + "\n"

	got, err := parseSegmentList(strings.NewReader(list), dir)
	require.NoError(t, err)

	want := []models.Segment{
		{Index: 0, Path: filepath.Join(dir, "in_part000.m4a"), Start: 0, End: time.Minute},
		{Index: 1, Path: filepath.Join(dir, "in_part001.m4a"), Start: time.Minute, End: 2 * time.Minute},
		{Index: 2, Path: filepath.Join(dir, "in_part002.m4a"), Start: 2 * time.Minute, End: 125400 * time.Millisecond},
	}
	assert.DeepEqual(t, want, got)
}

func TestParseSegmentListRejectsGarbage(t *testing.T) {
	_, err := parseSegmentList(strings.NewReader("a,b,c\n"), t.TempDir())
	assert.ErrorContains(t, err, "segment start")
}

func TestFFmpegSplit(t *testing.T) {
	bin, err := exec.LookPath("ffmpeg")
	if err != nil {
		t.Skip("ffmpeg not installed")
	}
	dir := t.TempDir()
	src := writeTestWAV(t, dir, 2500*time.Millisecond)

	segments, err := NewFFmpeg(bin, nil).Split(context.Background(), src, time.Second)
	require.NoError(t, err)
	// packet boundaries make the exact count codec dependent
	assert.Assert(t, len(segments) >= 2, "got %d segments", len(segments))
	for i, s := range segments {
		assert.Equal(t, i, s.Index)
		_, err := os.Stat(s.Path)
		require.NoError(t, err)
		if i > 0 {
			assert.Assert(t, s.Start >= segments[i-1].Start)
		}
	}
	_, err = os.Stat(filepath.Join(dir, "source_segments.csv"))
	assert.Assert(t, os.IsNotExist(err))
}

func TestFFmpegSplitEmptyFile(t *testing.T) {
	empty := filepath.Join(t.TempDir(), "empty.m4a")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))

	_, err := NewFFmpeg("ffmpeg-does-not-matter", nil).Split(context.Background(), empty, time.Minute)
	assert.Assert(t, errors.Is(err, ErrEmptyAudio))
}

// fakeFFmpeg writes an executable shell script standing in for ffmpeg.
func fakeFFmpeg(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "ffmpeg")
	require.NoError(t, os.WriteFile(p, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return p
}

func TestFFmpegSplitReportsRejectedInput(t *testing.T) {
	bin := fakeFFmpeg(t, "echo 'Invalid data found when processing input' >&2; exit 1")
	src := filepath.Join(t.TempDir(), "in.m4a")
	require.NoError(t, os.WriteFile(src, []byte("not audio"), 0o644))

	_, err := NewFFmpeg(bin, nil).Split(context.Background(), src, time.Minute)
	assert.Assert(t, errors.Is(err, ErrUnsupportedFormat))
	assert.ErrorContains(t, err, "Invalid data found")
}

func TestFFmpegSplitTimeoutIsNotAFormatError(t *testing.T) {
	bin := fakeFFmpeg(t, "exec sleep 10")
	src := filepath.Join(t.TempDir(), "in.m4a")
	require.NoError(t, os.WriteFile(src, []byte("audio"), 0o644))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := NewFFmpeg(bin, nil).Split(ctx, src, time.Minute)
	assert.Assert(t, errors.Is(err, context.DeadlineExceeded), err)
	assert.Assert(t, !errors.Is(err, ErrUnsupportedFormat), err)
}
