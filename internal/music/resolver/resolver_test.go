package resolver

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/keshon/muse/internal/music/cache"
	"github.com/keshon/muse/internal/music/node"
	"github.com/keshon/muse/internal/music/track"
	"github.com/rs/zerolog"
)

type fakeNode struct {
	calls   []string
	results []node.TrackData
	err     error
}

func (f *fakeNode) Search(_ context.Context, identifier string) ([]node.TrackData, error) {
	f.calls = append(f.calls, identifier)
	return f.results, f.err
}

func nodeTracks(n int) []node.TrackData {
	out := make([]node.TrackData, n)
	for i := range out {
		out[i] = node.TrackData{
			Encoded: fmt.Sprintf("enc-%d", i),
			Info: node.TrackInfo{
				Identifier: fmt.Sprintf("id%d", i),
				Title:      fmt.Sprintf("Song %d", i),
				URI:        fmt.Sprintf("https://youtube.com/watch?v=id%d", i),
				Length:     1000,
				SourceName: "youtube",
			},
		}
	}
	return out
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"yt:hello", "ytsearch:hello"},
		{"YT:  hello ", "ytsearch:hello"},
		{"sc:lofi", "scsearch:lofi"},
		{"https://youtu.be/abc", "https://youtu.be/abc"},
		{"ytsearch:already", "ytsearch:already"},
		{"scsearch:already", "scsearch:already"},
		{"  plain words ", "ytsearch:plain words"},
		{"lyrics for a://b", "ytsearch:lyrics for a://b"},
		{"://nothing", "ytsearch:://nothing"},
		{"soundcloud+https://x/y", "soundcloud+https://x/y"},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}

func TestSearchCachesByNormalisedKey(t *testing.T) {
	fn := &fakeNode{results: nodeTracks(2)}
	r := New(fn, nil, zerolog.Nop())

	first, err := r.Search(context.Background(), "yt:song", "u1")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	second, err := r.Search(context.Background(), "ytsearch:song", "u2")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(fn.calls) != 1 {
		t.Errorf("Expected one node call, got %d", len(fn.calls))
	}
	if first[0].RequesterID() != "u1" || second[0].RequesterID() != "u2" {
		t.Errorf("Expected results tagged per caller, got %q and %q", first[0].RequesterID(), second[0].RequesterID())
	}
	if first[0].Handle() != "enc-0" || first[0].Thumbnail() != "https://img.youtube.com/vi/id0/hqdefault.jpg" {
		t.Errorf("Unexpected conversion: %q %q", first[0].Handle(), first[0].Thumbnail())
	}
}

func TestSearchCapsResults(t *testing.T) {
	fn := &fakeNode{results: nodeTracks(40)}
	r := New(fn, nil, zerolog.Nop())
	got, err := r.Search(context.Background(), "many", "u")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(got) != MaxResults {
		t.Errorf("Expected %d results, got %d", MaxResults, len(got))
	}
}

func TestSearchCachesEmptyResult(t *testing.T) {
	fn := &fakeNode{}
	r := New(fn, nil, zerolog.Nop())
	for i := 0; i < 2; i++ {
		got, err := r.Search(context.Background(), "nothing", "u")
		if err != nil || len(got) != 0 {
			t.Fatalf("Expected empty result, got %v (%v)", got, err)
		}
	}
	if len(fn.calls) != 1 {
		t.Errorf("Expected empty result to be cached, got %d calls", len(fn.calls))
	}
}

func TestSearchPropagatesNodeErrors(t *testing.T) {
	for _, sentinel := range []error{node.ErrNodeUnavailable, node.ErrLoadFailed} {
		fn := &fakeNode{err: fmt.Errorf("wrapped: %w", sentinel)}
		r := New(fn, cache.New[[]*track.Track](0, 0), zerolog.Nop())
		if _, err := r.Search(context.Background(), "x", "u"); !errors.Is(err, sentinel) {
			t.Errorf("Expected %v, got %v", sentinel, err)
		}
		if r.Cache().Len() != 0 {
			t.Error("Expected failures not to be cached")
		}
	}
}

type fakeSearch struct {
	query   string
	results []*track.Track
	err     error
}

func (f *fakeSearch) Search(_ context.Context, query, requesterID string) ([]*track.Track, error) {
	f.query = query
	return f.results, f.err
}

func TestAdvisorSkipsLastTrack(t *testing.T) {
	last := track.New(track.Info{Title: "Same", URI: "u-last"})
	other := track.New(track.Info{Title: "Other", URI: "u-other"})
	fs := &fakeSearch{results: []*track.Track{last, other}}

	got := NewAdvisor(fs, zerolog.Nop()).Suggest(context.Background(), last, "req")
	if got != other {
		t.Errorf("Expected the other track, got %v", got)
	}
	if fs.query != "ytsearch:Same" {
		t.Errorf("Expected title query, got %q", fs.query)
	}
}

func TestAdvisorFallsBackToFirst(t *testing.T) {
	last := track.New(track.Info{Title: "Same", URI: "u"})
	fs := &fakeSearch{results: []*track.Track{last}}
	if got := NewAdvisor(fs, zerolog.Nop()).Suggest(context.Background(), last, "req"); got != last {
		t.Errorf("Expected fallback to first result, got %v", got)
	}
}

func TestAdvisorSwallowsErrors(t *testing.T) {
	fs := &fakeSearch{err: node.ErrNodeUnavailable}
	a := NewAdvisor(fs, zerolog.Nop())
	if got := a.Suggest(context.Background(), track.New(track.Info{Title: "x"}), "req"); got != nil {
		t.Errorf("Expected no suggestion, got %v", got)
	}
	if got := a.Suggest(context.Background(), nil, "req"); got != nil {
		t.Errorf("Expected no suggestion without a last track, got %v", got)
	}
}

func TestSearchRefetchesAfterTTL(t *testing.T) {
	fn := &fakeNode{results: nodeTracks(1)}
	r := New(fn, cache.New[[]*track.Track](20*time.Millisecond, 8), zerolog.Nop())

	if _, err := r.Search(context.Background(), "song", "u"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Search(context.Background(), "song", "u"); err != nil {
		t.Fatal(err)
	}
	if len(fn.calls) != 1 {
		t.Fatalf("Expected cached second lookup, got %d calls", len(fn.calls))
	}

	time.Sleep(30 * time.Millisecond)
	if _, err := r.Search(context.Background(), "song", "u"); err != nil {
		t.Fatal(err)
	}
	if len(fn.calls) != 2 {
		t.Errorf("Expected a new node call after TTL, got %d calls", len(fn.calls))
	}
}
