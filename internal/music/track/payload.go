package track

// Payload is the persisted form of a Track.
type Payload struct {
	Title         string `json:"title"`
	URI           string `json:"uri"`
	Duration      int64  `json:"duration"`
	RequesterID   string `json:"requester_id"`
	Source        string `json:"source"`
	Thumbnail     string `json:"thumbnail,omitempty"`
	LavalinkTrack string `json:"lavalink_track,omitempty"`
}

// ToPayload converts the track into its storage form.
func (t *Track) ToPayload() Payload {
	return Payload{
		Title:         t.title,
		URI:           t.uri,
		Duration:      t.durationMs,
		RequesterID:   t.requesterID,
		Source:        t.source,
		Thumbnail:     t.thumbnail,
		LavalinkTrack: t.handle,
	}
}

// FromPayload restores a track from storage.
func FromPayload(p Payload) *Track {
	return New(Info{
		Title:       p.Title,
		URI:         p.URI,
		DurationMs:  p.Duration,
		RequesterID: p.RequesterID,
		Source:      p.Source,
		Thumbnail:   p.Thumbnail,
		Handle:      p.LavalinkTrack,
	})
}

// IsZero reports whether the payload holds no track, which is how an empty
// "current" slot is persisted.
func (p Payload) IsZero() bool {
	return p == Payload{}
}
