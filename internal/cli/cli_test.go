package cli

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/keshon/muse/internal/music/track"
	"github.com/keshon/muse/internal/storage"
	"github.com/rs/zerolog"
)

func init() {
	color.NoColor = true
}

type fakeSearcher struct {
	tracks []*track.Track
	err    error
	query  string
}

func (f *fakeSearcher) Search(_ context.Context, query, _ string) ([]*track.Track, error) {
	f.query = query
	return f.tracks, f.err
}

func seededStore(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "datastore.json")
	store, err := storage.New(path)
	if err != nil {
		t.Fatal(err)
	}
	st := storage.DefaultMusicState()
	st.LoopMode = "queue"
	st.Queue = []track.Payload{
		track.New(track.Info{Title: "First", DurationMs: 61_000}).ToPayload(),
		track.New(track.Info{Title: "Second"}).ToPayload(),
	}
	if err := store.SaveMusicState("g1", st); err != nil {
		t.Fatal(err)
	}
	if err := store.AppendCommandToHistory("g1", storage.CommandHistoryRecord{
		Username: "alice", Command: "music", Param: "play query=lofi", Datetime: time.Now(),
	}); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func newApp(path string, s Searcher) (*App, *bytes.Buffer, *bytes.Buffer) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	return &App{
		Out: out,
		Err: errOut,
		OpenStore: func() (storage.Backend, error) {
			return storage.Open(storage.Options{Driver: storage.DriverJSON, Path: path, ReadOnly: true, Logger: zerolog.Nop()})
		},
		NewSearcher: func(context.Context) (Searcher, error) { return s, nil },
	}, out, errOut
}

func TestStateCommand(t *testing.T) {
	app, out, _ := newApp(seededStore(t), nil)
	if code := Execute(context.Background(), app, []string{"state", "g1"}); code != 0 {
		t.Fatalf("Expected exit code 0, got %d", code)
	}
	got := out.String()
	for _, want := range []string{"Guild g1", "queue", "1. First [1:01]", "2. Second"} {
		if !strings.Contains(got, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, got)
		}
	}
}

func TestGuildsAndHistoryCommands(t *testing.T) {
	path := seededStore(t)

	app, out, _ := newApp(path, nil)
	if code := Execute(context.Background(), app, []string{"guilds"}); code != 0 || strings.TrimSpace(out.String()) != "g1" {
		t.Errorf("Expected g1, got %q (code %d)", out.String(), code)
	}

	app, out, _ = newApp(path, nil)
	if code := Execute(context.Background(), app, []string{"history", "g1"}); code != 0 {
		t.Fatalf("Expected exit code 0, got %d", code)
	}
	if !strings.Contains(out.String(), "alice /music play query=lofi") {
		t.Errorf("Unexpected history output %q", out.String())
	}
}

func TestSearchCommand(t *testing.T) {
	s := &fakeSearcher{tracks: []*track.Track{
		track.New(track.Info{Title: "A", URI: "https://a", Source: "youtube", DurationMs: 1000}),
		track.New(track.Info{Title: "B", Source: "youtube"}),
		track.New(track.Info{Title: "C", Source: "youtube"}),
	}}
	app, out, _ := newApp("", s)
	if code := Execute(context.Background(), app, []string{"search", "-n", "2", "yt:", "lofi", "beats"}); code != 0 {
		t.Fatalf("Expected exit code 0, got %d", code)
	}
	if s.query != "yt: lofi beats" {
		t.Errorf("Expected joined query, got %q", s.query)
	}
	got := out.String()
	if !strings.Contains(got, "1. A [0:01] youtube") || !strings.Contains(got, "https://a") || !strings.Contains(got, "... 1 more") {
		t.Errorf("Unexpected search output:\n%s", got)
	}
	if strings.Contains(got, "3. C") {
		t.Error("Expected limit to hide the third result")
	}
}

func TestSearchCommandFailure(t *testing.T) {
	app, _, errOut := newApp("", &fakeSearcher{err: errors.New("node down")})
	if code := Execute(context.Background(), app, []string{"search", "x"}); code != 1 {
		t.Errorf("Expected exit code 1, got %d", code)
	}
	if !strings.Contains(errOut.String(), "node down") {
		t.Errorf("Expected error to be printed, got %q", errOut.String())
	}
}

func TestStateCommandRequiresGuild(t *testing.T) {
	app, _, _ := newApp(seededStore(t), nil)
	if code := Execute(context.Background(), app, []string{"state"}); code != 1 {
		t.Errorf("Expected exit code 1 without a guild id, got %d", code)
	}
}
