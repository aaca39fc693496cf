package innertube

// PlayerResponse is the top-level response from the /player endpoint,
// trimmed to the fields the status tracker and format parser consume.
type PlayerResponse struct {
	ResponseContext   ResponseContext   `json:"responseContext"`
	PlayabilityStatus PlayabilityStatus `json:"playabilityStatus"`
	StreamingData     StreamingData     `json:"streamingData"`
	VideoDetails      VideoDetails      `json:"videoDetails"`
	Microformat       Microformat       `json:"microformat"`
}

type ResponseContext struct {
	MainAppWebResponseContext MainAppWebResponseContext `json:"mainAppWebResponseContext"`
}

type MainAppWebResponseContext struct {
	LoggedOut bool `json:"loggedOut"`
}

type PlayabilityStatus struct {
	Status            string             `json:"status"`
	Reason            string             `json:"reason"`
	LiveStreamability *LiveStreamability `json:"liveStreamability"`
}

func (p *PlayabilityStatus) IsOK() bool {
	return p.Status == "OK"
}

func (p *PlayabilityStatus) IsLiveStream() bool {
	return p.LiveStreamability != nil
}

// ScheduledStartUnix returns the offline-slate scheduled start time in unix
// seconds, or the empty string when none is advertised.
func (p *PlayabilityStatus) ScheduledStartUnix() string {
	if p.LiveStreamability == nil {
		return ""
	}
	slate := p.LiveStreamability.LiveStreamabilityRenderer.OfflineSlate
	if slate == nil {
		return ""
	}
	return slate.LiveStreamOfflineSlateRenderer.ScheduledStartTime
}

type LiveStreamability struct {
	LiveStreamabilityRenderer LiveStreamabilityRenderer `json:"liveStreamabilityRenderer"`
}

type LiveStreamabilityRenderer struct {
	VideoID      string        `json:"videoId"`
	PollDelayMs  string        `json:"pollDelayMs"`
	OfflineSlate *OfflineSlate `json:"offlineSlate"`
}

type OfflineSlate struct {
	LiveStreamOfflineSlateRenderer LiveStreamOfflineSlateRenderer `json:"liveStreamOfflineSlateRenderer"`
}

type LiveStreamOfflineSlateRenderer struct {
	ScheduledStartTime string `json:"scheduledStartTime"`
}

type StreamingData struct {
	ExpiresInSeconds string      `json:"expiresInSeconds"`
	AdaptiveFormats  []RawFormat `json:"adaptiveFormats"`
	DashManifestURL  string      `json:"dashManifestUrl"`
	HlsManifestURL   string      `json:"hlsManifestUrl"`
}

type RawFormat struct {
	Itag             int     `json:"itag"`
	URL              string  `json:"url"`
	MimeType         string  `json:"mimeType"`
	Bitrate          int     `json:"bitrate"`
	Width            int     `json:"width"`
	Height           int     `json:"height"`
	QualityLabel     string  `json:"qualityLabel"`
	AudioSampleRate  string  `json:"audioSampleRate"`
	TargetDurationMs float64 `json:"targetDurationSec"`
	SignatureCipher  string  `json:"signatureCipher"`
	Cipher           string  `json:"cipher"` // legacy field name
}

type VideoDetails struct {
	VideoID          string `json:"videoId"`
	Title            string `json:"title"`
	ShortDescription string `json:"shortDescription"`
	ChannelID        string `json:"channelId"`
	Author           string `json:"author"`
	IsLive           bool   `json:"isLive"`
	IsLiveContent    bool   `json:"isLiveContent"`
	IsUpcoming       bool   `json:"isUpcoming"`
	IsPrivate        bool   `json:"isPrivate"`
}

type Microformat struct {
	PlayerMicroformatRenderer PlayerMicroformatRenderer `json:"playerMicroformatRenderer"`
}

type PlayerMicroformatRenderer struct {
	LiveBroadcastDetails LiveBroadcastDetails `json:"liveBroadcastDetails"`
	PublishDate          string               `json:"publishDate"`
}

type LiveBroadcastDetails struct {
	IsLiveNow      bool   `json:"isLiveNow"`
	StartTimestamp string `json:"startTimestamp"`
	EndTimestamp   string `json:"endTimestamp"`
}

// BrowseResponse is the /browse response for one channel tab, trimmed to
// the renderer paths channel feed walking needs.
type BrowseResponse struct {
	ResponseContext ResponseContext `json:"responseContext"`
	Contents        BrowseContents  `json:"contents"`
}

type BrowseContents struct {
	TwoColumnBrowseResultsRenderer *TwoColumnBrowseResultsRenderer `json:"twoColumnBrowseResultsRenderer"`
}

type TwoColumnBrowseResultsRenderer struct {
	Tabs []Tab `json:"tabs"`
}

type Tab struct {
	TabRenderer *TabRenderer `json:"tabRenderer"`
}

type TabRenderer struct {
	Title    string      `json:"title"`
	Selected bool        `json:"selected"`
	Endpoint TabEndpoint `json:"endpoint"`
	Content  *TabContent `json:"content"`
}

type TabEndpoint struct {
	BrowseEndpoint BrowseEndpoint `json:"browseEndpoint"`
}

type BrowseEndpoint struct {
	BrowseID string `json:"browseId"`
	Params   string `json:"params"`
}

type TabContent struct {
	RichGridRenderer    *RichGridRenderer    `json:"richGridRenderer"`
	SectionListRenderer *SectionListRenderer `json:"sectionListRenderer"`
}

type RichGridRenderer struct {
	Contents []RichGridItem `json:"contents"`
}

type RichGridItem struct {
	RichItemRenderer *RichItemRenderer `json:"richItemRenderer"`
}

type RichItemRenderer struct {
	Content RichItemContent `json:"content"`
}

type RichItemContent struct {
	VideoRenderer *VideoRenderer `json:"videoRenderer"`
}

type SectionListRenderer struct {
	Contents []SectionListContent `json:"contents"`
}

type SectionListContent struct {
	ItemSectionRenderer *ItemSectionRenderer `json:"itemSectionRenderer"`
}

type ItemSectionRenderer struct {
	Contents []ItemSectionContent `json:"contents"`
}

type ItemSectionContent struct {
	VideoRenderer     *VideoRenderer     `json:"videoRenderer"`
	GridVideoRenderer *VideoRenderer     `json:"gridVideoRenderer"`
	ShelfRenderer     *ShelfRenderer     `json:"shelfRenderer"`
	BackstagePost     *BackstagePostItem `json:"backstagePostThreadRenderer"`
}

type ShelfRenderer struct {
	Content ShelfContent `json:"content"`
}

type ShelfContent struct {
	HorizontalListRenderer *HorizontalListRenderer `json:"horizontalListRenderer"`
}

type HorizontalListRenderer struct {
	Items []ItemSectionContent `json:"items"`
}

// BackstagePostItem covers community posts that embed a video attachment.
type BackstagePostItem struct {
	Post BackstagePost `json:"post"`
}

type BackstagePost struct {
	BackstagePostRenderer *BackstagePostRenderer `json:"backstagePostRenderer"`
}

type BackstagePostRenderer struct {
	BackstageAttachment *BackstageAttachment `json:"backstageAttachment"`
}

type BackstageAttachment struct {
	VideoRenderer *VideoRenderer `json:"videoRenderer"`
}

// VideoRenderer is the per-video cell shared by grid and list layouts.
type VideoRenderer struct {
	VideoID            string             `json:"videoId"`
	Title              LangText           `json:"title"`
	DescriptionSnippet LangText           `json:"descriptionSnippet"`
	UpcomingEventData  *UpcomingEventData `json:"upcomingEventData"`
	ThumbnailOverlays  []ThumbnailOverlay `json:"thumbnailOverlays"`
	Badges             []Badge            `json:"badges"`
}

type UpcomingEventData struct {
	StartTime string `json:"startTime"` // unix seconds
}

type ThumbnailOverlay struct {
	TimeStatusRenderer *TimeStatusRenderer `json:"thumbnailOverlayTimeStatusRenderer"`
}

type TimeStatusRenderer struct {
	Style string `json:"style"` // "LIVE", "UPCOMING", "DEFAULT"
}

type Badge struct {
	MetadataBadgeRenderer *MetadataBadgeRenderer `json:"metadataBadgeRenderer"`
}

type MetadataBadgeRenderer struct {
	Style string `json:"style"`
	Label string `json:"label"`
}

type LangText struct {
	SimpleText string    `json:"simpleText"`
	Runs       []TextRun `json:"runs"`
}

type TextRun struct {
	Text string `json:"text"`
}

// Text flattens a LangText to its plain string form.
func (t LangText) Text() string {
	if t.SimpleText != "" {
		return t.SimpleText
	}
	out := ""
	for _, r := range t.Runs {
		out += r.Text
	}
	return out
}
