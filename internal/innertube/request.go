package innertube

// Context is the client context block sent with every API request.
type Context struct {
	Client ClientInfo `json:"client"`
}

type ClientInfo struct {
	ClientName       string `json:"clientName"`
	ClientVersion    string `json:"clientVersion"`
	UserAgent        string `json:"userAgent,omitempty"`
	AcceptLanguage   string `json:"hl"`
	TimeZone         string `json:"timeZone"`
	UtcOffsetMinutes int    `json:"utcOffsetMinutes"`
}

// PlayerRequest is the payload for the /player endpoint.
type PlayerRequest struct {
	Context        Context `json:"context"`
	VideoID        string  `json:"videoId"`
	ContentCheckOk bool    `json:"contentCheckOk,omitempty"`
	RacyCheckOk    bool    `json:"racyCheckOk,omitempty"`
}

// BrowseRequest is the payload for the /browse endpoint (channel tabs).
type BrowseRequest struct {
	Context  Context `json:"context"`
	BrowseID string  `json:"browseId"`
	Params   string  `json:"params,omitempty"`
}

func contextFor(profile ClientProfile) Context {
	return Context{
		Client: ClientInfo{
			ClientName:     profile.Name,
			ClientVersion:  profile.Version,
			UserAgent:      profile.UserAgent,
			AcceptLanguage: "en",
			TimeZone:       "UTC",
		},
	}
}

// NewPlayerRequest builds a /player payload for the given video.
func NewPlayerRequest(profile ClientProfile, videoID string) *PlayerRequest {
	return &PlayerRequest{
		Context:        contextFor(profile),
		VideoID:        videoID,
		ContentCheckOk: true,
		RacyCheckOk:    true,
	}
}

// NewBrowseRequest builds a /browse payload for a channel tab. params is the
// protobuf-encoded tab selector discovered from the channel page navigation.
func NewBrowseRequest(profile ClientProfile, browseID, params string) *BrowseRequest {
	return &BrowseRequest{
		Context:  contextFor(profile),
		BrowseID: browseID,
		Params:   params,
	}
}
