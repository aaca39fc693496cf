package capture

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
)

// TrackKind distinguishes the two recorded tracks.
type TrackKind string

const (
	TrackVideo TrackKind = "video"
	TrackAudio TrackKind = "audio"
)

// Dir returns the per-track subdirectory name under the session directory.
func (k TrackKind) Dir() string {
	if k == TrackAudio {
		return "aud"
	}
	return "vid"
}

var segmentNamePattern = regexp.MustCompile(`^(\d{10})_(?:video|audio)\.ts$`)

// segmentPath builds the on-disk path for one segment. The zero-padded
// sequence number keeps lexical and numeric order identical, which the
// muxer's concat step relies on.
func segmentPath(root string, kind TrackKind, seq int64) string {
	name := fmt.Sprintf("%010d_%s.ts", seq, kind)
	return filepath.Join(root, kind.Dir(), name)
}

// maxSegment scans one track directory for the highest segment number.
// Returns -1 when the directory is missing or holds no segments.
func maxSegment(root string, kind TrackKind) (int64, error) {
	entries, err := os.ReadDir(filepath.Join(root, kind.Dir()))
	if err != nil {
		if os.IsNotExist(err) {
			return -1, nil
		}
		return -1, err
	}
	max := int64(-1)
	for _, e := range entries {
		m := segmentNamePattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		seq, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			continue
		}
		if seq > max {
			max = seq
		}
	}
	return max, nil
}

// ResumeCursor derives the sequence number capture should (re)start at from
// the segments already on disk: one before the lagging track's newest
// segment, clamped at 0. Stepping back one segment refetches anything an
// interrupted write may have truncated; fetches overwrite in place, so
// resuming is idempotent. A fresh directory resumes at 0.
func ResumeCursor(root string) (int64, error) {
	maxVid, err := maxSegment(root, TrackVideo)
	if err != nil {
		return 0, err
	}
	maxAud, err := maxSegment(root, TrackAudio)
	if err != nil {
		return 0, err
	}

	cursor := maxVid
	if maxAud < cursor {
		cursor = maxAud
	}
	cursor--
	if cursor < 0 {
		cursor = 0
	}
	return cursor, nil
}

// writeSegment lands a segment atomically: write to a temp file in the same
// directory, then rename over the final name. A crash mid-write leaves only
// the temp file, which the resume scan ignores.
func writeSegment(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".seg-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
