package capture

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/glubsy/livestream-saver-sub000/internal/types"
)

const metadataFileName = "metadata.json"

// Metadata is the sidecar written next to the segment directories so
// the final mux (and a human poking at a half-finished capture) can identify
// what was recorded.
type Metadata struct {
	VideoID     string    `json:"video_id"`
	Title       string    `json:"title,omitempty"`
	Description string    `json:"description,omitempty"`
	ChannelTab  string    `json:"channel_tab,omitempty"`
	MembersOnly bool      `json:"members_only,omitempty"`
	StartedAt   time.Time `json:"started_at"`

	VideoItag int `json:"video_itag"`
	AudioItag int `json:"audio_itag"`
}

// writeMetadataOnce persists the sidecar unless a previous run of this
// session already did. Resumed captures keep the original record.
func writeMetadataOnce(root string, rec types.MetadataRecord, videoItag, audioItag int) error {
	path := filepath.Join(root, metadataFileName)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return err
	}

	meta := Metadata{
		VideoID:     rec.VideoID,
		Title:       rec.Title,
		Description: rec.Description,
		ChannelTab:  rec.SourceTab,
		MembersOnly: rec.MembersOnly,
		StartedAt:   time.Now().UTC(),
		VideoItag:   videoItag,
		AudioItag:   audioItag,
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadMetadata loads the sidecar of a capture directory.
func ReadMetadata(root string) (*Metadata, error) {
	data, err := os.ReadFile(filepath.Join(root, metadataFileName))
	if err != nil {
		return nil, err
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}
