package channel

import (
	"strconv"
	"time"

	"github.com/glubsy/livestream-saver-sub000/internal/innertube"
	"github.com/glubsy/livestream-saver-sub000/internal/types"
)

// extractTab walks one tab's renderer tree and returns its video records.
// Both grid (videos, live) and section-list (home, community) layouts are
// handled; unknown renderers are skipped silently because the provider adds
// new ones without notice.
func extractTab(content *innertube.TabContent, feed Feed) []types.MetadataRecord {
	if content == nil {
		return nil
	}
	var out []types.MetadataRecord

	if grid := content.RichGridRenderer; grid != nil {
		for _, item := range grid.Contents {
			if item.RichItemRenderer == nil {
				continue
			}
			if vr := item.RichItemRenderer.Content.VideoRenderer; vr != nil {
				out = append(out, recordFromRenderer(vr, feed))
			}
		}
	}

	if list := content.SectionListRenderer; list != nil {
		for _, section := range list.Contents {
			if section.ItemSectionRenderer == nil {
				continue
			}
			for _, item := range section.ItemSectionRenderer.Contents {
				out = append(out, recordsFromItem(item, feed)...)
			}
		}
	}
	return out
}

func recordsFromItem(item innertube.ItemSectionContent, feed Feed) []types.MetadataRecord {
	var out []types.MetadataRecord
	if item.VideoRenderer != nil {
		out = append(out, recordFromRenderer(item.VideoRenderer, feed))
	}
	if item.GridVideoRenderer != nil {
		out = append(out, recordFromRenderer(item.GridVideoRenderer, feed))
	}
	if shelf := item.ShelfRenderer; shelf != nil && shelf.Content.HorizontalListRenderer != nil {
		for _, shelfItem := range shelf.Content.HorizontalListRenderer.Items {
			out = append(out, recordsFromItem(shelfItem, feed)...)
		}
	}
	if post := item.BackstagePost; post != nil &&
		post.Post.BackstagePostRenderer != nil &&
		post.Post.BackstagePostRenderer.BackstageAttachment != nil {
		if vr := post.Post.BackstagePostRenderer.BackstageAttachment.VideoRenderer; vr != nil {
			out = append(out, recordFromRenderer(vr, feed))
		}
	}
	return out
}

func recordFromRenderer(vr *innertube.VideoRenderer, feed Feed) types.MetadataRecord {
	rec := types.MetadataRecord{
		VideoID:     vr.VideoID,
		Title:       vr.Title.Text(),
		Description: vr.DescriptionSnippet.Text(),
		SourceTab:   string(feed),
	}

	for _, overlay := range vr.ThumbnailOverlays {
		if overlay.TimeStatusRenderer == nil {
			continue
		}
		switch overlay.TimeStatusRenderer.Style {
		case "LIVE":
			rec.IsLiveNow = true
		case "UPCOMING":
			rec.IsUpcoming = true
		}
	}
	for _, badge := range vr.Badges {
		if badge.MetadataBadgeRenderer == nil {
			continue
		}
		switch badge.MetadataBadgeRenderer.Style {
		case "BADGE_STYLE_TYPE_LIVE_NOW":
			rec.IsLiveNow = true
		case "BADGE_STYLE_TYPE_MEMBERS_ONLY":
			rec.MembersOnly = true
		}
	}

	if up := vr.UpcomingEventData; up != nil {
		rec.IsUpcoming = true
		if sec, err := strconv.ParseInt(up.StartTime, 10, 64); err == nil {
			t := time.Unix(sec, 0).UTC()
			rec.ScheduledStart = &t
		}
	}

	// Membership feeds are members-only by construction even when the
	// renderer omits the badge.
	if feed == FeedMembership {
		rec.MembersOnly = true
	}
	return rec
}
