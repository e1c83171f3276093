package track

import "testing"

func TestNewDefaults(t *testing.T) {
	tr := New(Info{URI: "https://example.com/a", DurationMs: -5})

	if tr.Title() != unknownTitle {
		t.Errorf("Expected title %q, got %q", unknownTitle, tr.Title())
	}
	if tr.Source() != unknownSource {
		t.Errorf("Expected source %q, got %q", unknownSource, tr.Source())
	}
	if tr.DurationMs() != 0 {
		t.Errorf("Expected negative duration to clamp to 0, got %d", tr.DurationMs())
	}
}

func TestPayloadRestoresTrack(t *testing.T) {
	orig := New(Info{
		Title:       "Song",
		URI:         "https://youtu.be/abc",
		DurationMs:  215000,
		RequesterID: "42",
		Source:      "youtube",
		Handle:      "QAAA",
	})

	got := FromPayload(orig.ToPayload())
	if *got != *orig {
		t.Errorf("Expected %+v, got %+v", *orig, *got)
	}
	if orig.ToPayload().IsZero() {
		t.Error("Expected populated payload not to be zero")
	}
	if !(Payload{}).IsZero() {
		t.Error("Expected empty payload to be zero")
	}
}

func TestWithRequesterCopies(t *testing.T) {
	orig := New(Info{Title: "Song", RequesterID: "1"})
	c := orig.WithRequester("2")

	if orig.RequesterID() != "1" {
		t.Errorf("Expected original requester to stay 1, got %s", orig.RequesterID())
	}
	if c.RequesterID() != "2" {
		t.Errorf("Expected copy requester 2, got %s", c.RequesterID())
	}
}

func TestThumbnail(t *testing.T) {
	tests := []struct {
		name                        string
		artwork, source, ident, uri string
		want                        string
	}{
		{"artwork wins", "https://art/x.jpg", "youtube", "id", "", "https://art/x.jpg"},
		{"youtube identifier", "", "youtube", "dQw4w9WgXcQ", "", "https://img.youtube.com/vi/dQw4w9WgXcQ/hqdefault.jpg"},
		{"youtube from uri", "", "youtube", "", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "https://img.youtube.com/vi/dQw4w9WgXcQ/hqdefault.jpg"},
		{"other source", "", "soundcloud", "abc", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Thumbnail(tt.artwork, tt.source, tt.ident, tt.uri); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestFormatDuration(t *testing.T) {
	tests := map[int64]string{
		0:       "0:00",
		65000:   "1:05",
		3723000: "1:02:03",
	}
	for ms, want := range tests {
		if got := FormatDuration(ms); got != want {
			t.Errorf("FormatDuration(%d): expected %q, got %q", ms, want, got)
		}
	}
}
