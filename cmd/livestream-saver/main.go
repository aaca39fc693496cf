package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/glubsy/livestream-saver-sub000/internal/orchestrator"
	"github.com/glubsy/livestream-saver-sub000/saver"
)

func main() {
	var (
		channelURL = flag.String("channel", "", "Channel URL to monitor")
		videoID    = flag.String("video", "", "Capture a single video ID and exit")
		outputRoot = flag.String("output", ".", "Directory for capture output")
		cookies    = flag.String("cookies", "", "Path to Netscape cookies.txt")
		interval   = flag.Duration("interval", 2*time.Minute, "Channel poll interval")
		maxHeight  = flag.Int("max-height", 0, "Resolution ceiling in pixels (0 = best)")
		container  = flag.String("container", "mp4", "Preferred container: mp4 or webm")
		allow      = flag.String("allow", "", "Only capture titles matching this regexp")
		block      = flag.String("block", "", "Never capture titles matching this regexp")
		webhook    = flag.String("webhook", "", "POST lifecycle events to this URL")
		ffmpegPath = flag.String("ffmpeg", "", "Path to ffmpeg binary")
		skipMerge  = flag.Bool("no-merge", false, "Keep raw segments, skip the final mux")
		ignoreQC   = flag.Bool("ignore-quality-change", false, "Tolerate itag changes across URL refreshes")
		logLevel   = flag.String("log-level", "info", "Log level: trace, debug, info, warn, error")
	)
	flag.Parse()

	if *channelURL == "" && *videoID == "" {
		fmt.Fprintln(os.Stderr, "Usage: livestream-saver -channel <url> | -video <id> [options]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "livestream-saver",
		Level: hclog.LevelFromString(*logLevel),
	})

	cfg := saver.Config{
		ChannelURL:          *channelURL,
		OutputRoot:          *outputRoot,
		CookiesPath:         *cookies,
		PollInterval:        *interval,
		MaxHeight:           *maxHeight,
		Container:           *container,
		AllowPattern:        *allow,
		BlockPattern:        *block,
		WebhookURL:          *webhook,
		FFmpegPath:          *ffmpegPath,
		SkipMerge:           *skipMerge,
		IgnoreQualityChange: *ignoreQC,
		Logger:              logger,
	}
	if cfg.ChannelURL == "" {
		// Single-shot mode does not poll, but the config layer still wants
		// a channel; the watch URL of the target works fine.
		cfg.ChannelURL = "https://www.youtube.com/watch?v=" + *videoID
	}

	s, err := saver.New(cfg)
	if err != nil {
		logger.Error("configuration error", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *videoID != "" {
		out := s.CaptureOne(ctx, *videoID)
		logger.Info("capture finished", "video_id", *videoID, "outcome", out.String())
		if out.Kind == orchestrator.OutcomeError {
			os.Exit(1)
		}
		return
	}

	logger.Info("monitoring channel", "url", *channelURL, "interval", *interval)
	if err := s.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("monitor stopped", "error", err)
		os.Exit(1)
	}
}
