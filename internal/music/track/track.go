package track

import (
	"fmt"
	"time"

	youtube "github.com/kkdai/youtube/v2"
)

const (
	unknownTitle  = "Unknown Track"
	unknownSource = "unknown"

	SourceYouTube = "youtube"
)

// Track is an immutable resolved track. Build it with New or FromPayload.
type Track struct {
	title       string
	uri         string
	durationMs  int64
	requesterID string
	source      string
	thumbnail   string
	handle      string
}

// Info carries the fields needed to construct a Track.
type Info struct {
	Title       string
	URI         string
	DurationMs  int64
	RequesterID string
	Source      string
	Thumbnail   string
	Handle      string
}

// New builds a Track, filling defaults for missing title and source.
func New(info Info) *Track {
	t := &Track{
		title:       info.Title,
		uri:         info.URI,
		durationMs:  info.DurationMs,
		requesterID: info.RequesterID,
		source:      info.Source,
		thumbnail:   info.Thumbnail,
		handle:      info.Handle,
	}
	if t.title == "" {
		t.title = unknownTitle
	}
	if t.source == "" {
		t.source = unknownSource
	}
	if t.durationMs < 0 {
		t.durationMs = 0
	}
	return t
}

func (t *Track) Title() string       { return t.title }
func (t *Track) URI() string         { return t.uri }
func (t *Track) DurationMs() int64   { return t.durationMs }
func (t *Track) RequesterID() string { return t.requesterID }
func (t *Track) Source() string      { return t.source }
func (t *Track) Thumbnail() string   { return t.thumbnail }

// Handle is the opaque node-specific playback handle.
func (t *Track) Handle() string { return t.handle }

// Duration returns the track length as a time.Duration.
func (t *Track) Duration() time.Duration {
	return time.Duration(t.durationMs) * time.Millisecond
}

// WithRequester returns a copy tagged with another requester.
func (t *Track) WithRequester(requesterID string) *Track {
	c := *t
	c.requesterID = requesterID
	return &c
}

func (t *Track) String() string {
	return fmt.Sprintf("%s • %s", t.title, FormatDuration(t.durationMs))
}

// Thumbnail picks the artwork URL reported by the node, falling back to the
// YouTube preview image derived from the identifier or the URI.
func Thumbnail(artworkURL, source, identifier, uri string) string {
	if artworkURL != "" {
		return artworkURL
	}
	if source != SourceYouTube {
		return ""
	}
	id := identifier
	if id == "" {
		extracted, err := youtube.ExtractVideoID(uri)
		if err != nil {
			return ""
		}
		id = extracted
	}
	return fmt.Sprintf("https://img.youtube.com/vi/%s/hqdefault.jpg", id)
}

// FormatDuration renders milliseconds as m:ss or h:mm:ss.
func FormatDuration(ms int64) string {
	seconds := ms / 1000
	minutes, seconds := seconds/60, seconds%60
	hours, minutes := minutes/60, minutes%60
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}
