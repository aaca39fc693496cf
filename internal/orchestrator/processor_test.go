package orchestrator

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"regexp"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/glubsy/livestream-saver-sub000/internal/capture"
	"github.com/glubsy/livestream-saver-sub000/internal/innertube"
	"github.com/glubsy/livestream-saver-sub000/internal/types"
)

// scriptedFetcher replays a fixed sequence of player responses, repeating
// the last one once exhausted.
type scriptedFetcher struct {
	mu    sync.Mutex
	steps []func() (*innertube.PlayerResponse, error)
	calls int
}

func (f *scriptedFetcher) FetchPlayerResponse(ctx context.Context, videoID string) (*innertube.PlayerResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	if i >= len(f.steps) {
		i = len(f.steps) - 1
	}
	f.calls++
	return f.steps[i]()
}

func liveResponse(title, segmentBase string) *innertube.PlayerResponse {
	pr := &innertube.PlayerResponse{}
	pr.PlayabilityStatus.Status = "OK"
	pr.VideoDetails.IsLive = true
	pr.VideoDetails.Title = title
	pr.StreamingData.AdaptiveFormats = []innertube.RawFormat{
		{Itag: 137, URL: segmentBase + "/vid", MimeType: `video/mp4; codecs="avc1"`, Bitrate: 4000000, Width: 1920, Height: 1080},
		{Itag: 140, URL: segmentBase + "/aud", MimeType: `audio/mp4; codecs="mp4a"`, Bitrate: 144000},
	}
	return pr
}

func scheduledResponse(title string) *innertube.PlayerResponse {
	pr := &innertube.PlayerResponse{}
	pr.PlayabilityStatus.Status = "LIVE_STREAM_OFFLINE"
	pr.PlayabilityStatus.Reason = "starts soon"
	pr.PlayabilityStatus.LiveStreamability = &innertube.LiveStreamability{}
	pr.PlayabilityStatus.LiveStreamability.LiveStreamabilityRenderer.OfflineSlate = &innertube.OfflineSlate{}
	pr.PlayabilityStatus.LiveStreamability.LiveStreamabilityRenderer.OfflineSlate.
		LiveStreamOfflineSlateRenderer.ScheduledStartTime = "1700000000"
	pr.VideoDetails.Title = title
	return pr
}

// fakeMerger records the merge call without running ffmpeg.
type fakeMerger struct {
	merged string
}

func (m *fakeMerger) Available() bool { return true }
func (m *fakeMerger) Merge(ctx context.Context, dir string) (string, error) {
	m.merged = dir
	return dir + "/out.mp4", nil
}

func segmentBackend(end int64) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seq, _ := strconv.ParseInt(r.URL.Query().Get("sq"), 10, 64)
		if seq >= end {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		fmt.Fprintf(w, "segment-%d", seq)
	}))
}

func fastProcessorConfig(root string) Config {
	return Config{
		OutputRoot:       root,
		WaitPollInterval: time.Millisecond,
		Capture: capture.Config{
			RetryDelay:          time.Millisecond,
			MaxFetchAttempts:    2,
			MaxRoundsPerSegment: 2,
		},
	}
}

func TestProcessCapturesLiveBroadcast(t *testing.T) {
	srv := segmentBackend(3)
	defer srv.Close()

	fetcher := &scriptedFetcher{steps: []func() (*innertube.PlayerResponse, error){
		func() (*innertube.PlayerResponse, error) { return liveResponse("a stream", srv.URL), nil },
	}}
	merger := &fakeMerger{}
	root := t.TempDir()

	p := NewProcessor(fetcher, srv.Client(), nil, merger, nil, Filter{}, fastProcessorConfig(root), nil)
	rec := types.MetadataRecord{VideoID: "vidA", Title: "a stream"}

	out := p.Process(context.Background(), rec)
	if out.Kind != OutcomeDone {
		t.Fatalf("outcome = %+v", out)
	}
	if merger.merged == "" {
		t.Fatalf("merge not invoked")
	}
	if out.OutputPath == "" {
		t.Fatalf("no output path recorded")
	}
	if _, err := os.Stat(merger.merged); err != nil {
		t.Fatalf("capture dir missing: %v", err)
	}

	// The same candidate surfacing again is a no-op.
	again := p.Process(context.Background(), rec)
	if again.Kind != OutcomeSkipped || again.Reason != "already handled" {
		t.Fatalf("repeat outcome = %+v", again)
	}
}

func TestProcessWaitsForScheduledStart(t *testing.T) {
	srv := segmentBackend(2)
	defer srv.Close()

	fetcher := &scriptedFetcher{steps: []func() (*innertube.PlayerResponse, error){
		func() (*innertube.PlayerResponse, error) { return scheduledResponse("soon"), nil },
		func() (*innertube.PlayerResponse, error) { return scheduledResponse("soon"), nil },
		func() (*innertube.PlayerResponse, error) { return liveResponse("soon", srv.URL), nil },
	}}

	p := NewProcessor(fetcher, srv.Client(), nil, nil, nil, Filter{},
		fastProcessorConfig(t.TempDir()), nil)
	out := p.Process(context.Background(), types.MetadataRecord{VideoID: "vidB", Title: "soon"})
	if out.Kind != OutcomeDone {
		t.Fatalf("outcome = %+v", out)
	}
	if fetcher.calls < 3 {
		t.Fatalf("fetcher called %d times, expected at least 3", fetcher.calls)
	}
}

func TestProcessFilterBlocks(t *testing.T) {
	p := NewProcessor(&scriptedFetcher{}, nil, nil, nil, nil,
		Filter{Block: regexp.MustCompile("unarchived")},
		fastProcessorConfig(t.TempDir()), nil)

	out := p.Process(context.Background(), types.MetadataRecord{VideoID: "vidC", Title: "unarchived karaoke"})
	if out.Kind != OutcomeSkipped {
		t.Fatalf("outcome = %+v", out)
	}
	// Filtered candidates are not recorded as processed: an allow-listed
	// rename next cycle deserves a fresh look.
	if _, ok := p.Registry().Outcome("vidC"); ok {
		t.Fatalf("filtered video recorded as processed")
	}
}

func TestProcessTitleRenameWhileWaiting(t *testing.T) {
	fetcher := &scriptedFetcher{steps: []func() (*innertube.PlayerResponse, error){
		func() (*innertube.PlayerResponse, error) { return scheduledResponse("members stream"), nil },
	}}
	p := NewProcessor(fetcher, nil, nil, nil, nil,
		Filter{Block: regexp.MustCompile("members")},
		fastProcessorConfig(t.TempDir()), nil)

	// Record passed the filter under its old title; the fresh metadata
	// reveals the rename.
	out := p.Process(context.Background(), types.MetadataRecord{VideoID: "vidD", Title: "tba"})
	if out.Kind != OutcomeSkipped {
		t.Fatalf("outcome = %+v", out)
	}
}

func TestProcessLoginRequired(t *testing.T) {
	fetcher := &scriptedFetcher{steps: []func() (*innertube.PlayerResponse, error){
		func() (*innertube.PlayerResponse, error) {
			pr := &innertube.PlayerResponse{}
			pr.PlayabilityStatus.Status = "LOGIN_REQUIRED"
			pr.PlayabilityStatus.Reason = "members only"
			return pr, nil
		},
	}}
	p := NewProcessor(fetcher, nil, nil, nil, nil, Filter{}, fastProcessorConfig(t.TempDir()), nil)

	out := p.Process(context.Background(), types.MetadataRecord{VideoID: "vidE"})
	if out.Kind != OutcomeError {
		t.Fatalf("outcome = %+v", out)
	}
}

func TestProcessRecoversPanic(t *testing.T) {
	fetcher := &scriptedFetcher{steps: []func() (*innertube.PlayerResponse, error){
		func() (*innertube.PlayerResponse, error) { panic("renderer exploded") },
	}}
	p := NewProcessor(fetcher, nil, nil, nil, nil, Filter{}, fastProcessorConfig(t.TempDir()), nil)

	out := p.Process(context.Background(), types.MetadataRecord{VideoID: "vidF"})
	if out.Kind != OutcomeError {
		t.Fatalf("outcome = %+v", out)
	}
	recorded, ok := p.Registry().Outcome("vidF")
	if !ok || recorded.Kind != OutcomeError {
		t.Fatalf("panic outcome not recorded: %+v ok=%v", recorded, ok)
	}
}

func TestProcessSkipsNonLiveVideo(t *testing.T) {
	fetcher := &scriptedFetcher{steps: []func() (*innertube.PlayerResponse, error){
		func() (*innertube.PlayerResponse, error) {
			pr := &innertube.PlayerResponse{}
			pr.PlayabilityStatus.Status = "OK"
			pr.VideoDetails.Title = "plain upload"
			return pr, nil
		},
	}}
	p := NewProcessor(fetcher, nil, nil, nil, nil, Filter{}, fastProcessorConfig(t.TempDir()), nil)

	out := p.Process(context.Background(), types.MetadataRecord{VideoID: "vidG"})
	if out.Kind != OutcomeSkipped {
		t.Fatalf("outcome = %+v", out)
	}
}
