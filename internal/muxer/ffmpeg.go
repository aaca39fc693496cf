// Package muxer turns a finished capture directory (per-track segment
// files plus the metadata sidecar) into a single playable file via ffmpeg.
package muxer

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/glubsy/livestream-saver-sub000/internal/capture"
)

// Muxer assembles the final recording from a capture directory.
type Muxer interface {
	Available() bool
	Merge(ctx context.Context, captureDir string) (string, error)
}

// FFmpegMuxer drives the ffmpeg command line tool: each track's segments
// are concatenated with the concat demuxer, then both tracks are remuxed
// into one container with stream copy.
type FFmpegMuxer struct {
	Path string
	Log  hclog.Logger

	// KeepSegments leaves the segment directories in place after a
	// successful merge instead of deleting them.
	KeepSegments bool
}

// NewFFmpegMuxer returns a muxer using the given ffmpeg binary, or "ffmpeg"
// from PATH when empty.
func NewFFmpegMuxer(path string, logger hclog.Logger) *FFmpegMuxer {
	if path == "" {
		path = "ffmpeg"
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &FFmpegMuxer{Path: path, Log: logger.Named("muxer")}
}

// Available checks that the ffmpeg binary is executable.
func (f *FFmpegMuxer) Available() bool {
	_, err := exec.LookPath(f.Path)
	return err == nil
}

// Merge produces <captureDir>/<video_id>.mp4 from the capture's segments
// and returns its path. Gaps in the segment numbering are tolerated: the
// concat list simply lists what exists, in order.
func (f *FFmpegMuxer) Merge(ctx context.Context, captureDir string) (string, error) {
	meta, err := capture.ReadMetadata(captureDir)
	if err != nil {
		return "", fmt.Errorf("read capture metadata: %w", err)
	}

	videoList, err := writeConcatList(captureDir, capture.TrackVideo)
	if err != nil {
		return "", err
	}
	defer os.Remove(videoList)
	audioList, err := writeConcatList(captureDir, capture.TrackAudio)
	if err != nil {
		return "", err
	}
	defer os.Remove(audioList)

	outPath := filepath.Join(captureDir, sanitizeBaseName(meta.VideoID)+".mp4")
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-f", "concat", "-safe", "0", "-i", videoList,
		"-f", "concat", "-safe", "0", "-i", audioList,
		"-c", "copy",
	}
	if meta.Title != "" {
		args = append(args, "-metadata", "title="+meta.Title)
	}
	if meta.Description != "" {
		args = append(args, "-metadata", "comment="+meta.Description)
	}
	args = append(args, "-y", outPath)

	f.Log.Info("muxing capture", "dir", captureDir, "output", outPath)
	cmd := exec.CommandContext(ctx, f.Path, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("ffmpeg merge failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	if !f.KeepSegments {
		for _, kind := range []capture.TrackKind{capture.TrackVideo, capture.TrackAudio} {
			if err := os.RemoveAll(filepath.Join(captureDir, kind.Dir())); err != nil {
				f.Log.Warn("segment cleanup failed", "error", err)
			}
		}
	}
	return outPath, nil
}

// writeConcatList materializes the ffmpeg concat demuxer input for one
// track. Segment names are zero padded, so lexical sort is stream order.
func writeConcatList(captureDir string, kind capture.TrackKind) (string, error) {
	trackDir := filepath.Join(captureDir, kind.Dir())
	entries, err := os.ReadDir(trackDir)
	if err != nil {
		return "", fmt.Errorf("read %s segments: %w", kind, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".ts") {
			continue
		}
		names = append(names, e.Name())
	}
	if len(names) == 0 {
		return "", fmt.Errorf("no %s segments in %s", kind, trackDir)
	}
	sort.Strings(names)

	var list strings.Builder
	for _, name := range names {
		fmt.Fprintf(&list, "file '%s'\n", filepath.Join(trackDir, name))
	}

	listPath := filepath.Join(captureDir, string(kind)+"_concat.txt")
	if err := os.WriteFile(listPath, []byte(list.String()), 0o644); err != nil {
		return "", err
	}
	return listPath, nil
}

// sanitizeBaseName strips characters that are unsafe in file names.
func sanitizeBaseName(name string) string {
	if name == "" {
		return "output"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name)
}
