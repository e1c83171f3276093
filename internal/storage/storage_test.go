package storage

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/keshon/muse/internal/music/track"
	"github.com/rs/zerolog"
)

func sampleState() MusicState {
	st := DefaultMusicState()
	st.Queue = []track.Payload{
		{Title: "One", URI: "u1", Duration: 1000, RequesterID: "42", Source: "youtube", LavalinkTrack: "h1"},
		{Title: "Two", URI: "u2", Duration: 2000, RequesterID: "43", Source: "soundcloud"},
	}
	st.LoopMode = "queue"
	st.DefaultVolume = 80
	st.Autoplay = true
	st.MaxQueueLength = 10
	return st
}

func TestMusicStateEmptyCurrentIsObject(t *testing.T) {
	raw, err := json.Marshal(DefaultMusicState())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), `"current":{}`) {
		t.Errorf("Expected empty current as {}, got %s", raw)
	}

	var back MusicState
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatal(err)
	}
	if back.Current != nil {
		t.Errorf("Expected nil current after decode, got %+v", back.Current)
	}
}

func TestMusicStateCurrentRoundTrip(t *testing.T) {
	st := sampleState()
	st.Current = &track.Payload{Title: "Now", URI: "u0", Source: "youtube"}
	raw, _ := json.Marshal(st)
	var back MusicState
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatal(err)
	}
	if back.Current == nil || back.Current.Title != "Now" {
		t.Errorf("Expected current to survive, got %+v", back.Current)
	}
}

func backends(t *testing.T) map[string]Backend {
	t.Helper()
	dir := t.TempDir()
	out := map[string]Backend{}
	for _, driver := range []string{DriverJSON, DriverSQLite} {
		b, err := Open(Options{Driver: driver, Path: filepath.Join(dir, "state."+driver), Logger: zerolog.Nop()})
		if err != nil {
			t.Fatalf("Expected %s backend to open, got %v", driver, err)
		}
		t.Cleanup(func() { b.Close() })
		out[driver] = b
	}
	return out
}

func TestBackendsRoundTripMusicState(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			fresh, err := b.LoadMusicState("unknown")
			if err != nil {
				t.Fatalf("Expected defaults, got %v", err)
			}
			if fresh.DefaultVolume != DefaultVolume || fresh.MaxQueueLength != DefaultMaxQueueLength || fresh.LoopMode != "off" {
				t.Errorf("Unexpected defaults %+v", fresh)
			}

			want := sampleState()
			if err := b.SaveMusicState("g1", want); err != nil {
				t.Fatalf("Expected save to succeed, got %v", err)
			}
			got, err := b.LoadMusicState("g1")
			if err != nil {
				t.Fatal(err)
			}
			if len(got.Queue) != 2 || got.Queue[0] != want.Queue[0] || got.Queue[1] != want.Queue[1] {
				t.Errorf("Expected queue %+v, got %+v", want.Queue, got.Queue)
			}
			if got.LoopMode != "queue" || got.DefaultVolume != 80 || !got.Autoplay || got.MaxQueueLength != 10 {
				t.Errorf("Unexpected scalar fields %+v", got)
			}

			ids, err := b.GuildIDs()
			if err != nil || len(ids) != 1 || ids[0] != "g1" {
				t.Errorf("Expected [g1], got %v (%v)", ids, err)
			}
		})
	}
}

func TestBackendsTrimCommandHistory(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			for i := 0; i < commandHistoryLimit+5; i++ {
				if err := b.AppendCommandToHistory("g1", CommandHistoryRecord{Command: "music", Param: string(rune('a' + i))}); err != nil {
					t.Fatal(err)
				}
			}
			history, err := b.FetchCommandHistory("g1")
			if err != nil {
				t.Fatal(err)
			}
			if len(history) != commandHistoryLimit {
				t.Fatalf("Expected %d records, got %d", commandHistoryLimit, len(history))
			}
			if history[0].Param != string(rune('a'+5)) {
				t.Errorf("Expected oldest records dropped, first is %q", history[0].Param)
			}
		})
	}
}

func TestCloseLogsDatastoreStats(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)
	b, err := Open(Options{Driver: DriverJSON, Path: filepath.Join(t.TempDir(), "state.json"), Logger: logger})
	if err != nil {
		t.Fatal(err)
	}
	if err := b.SaveMusicState("g1", sampleState()); err != nil {
		t.Fatal(err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Expected close to succeed, got %v", err)
	}
	if out := buf.String(); !strings.Contains(out, `"keys":1`) || !strings.Contains(out, "closing datastore") {
		t.Errorf("Expected stats in the close log, got %s", out)
	}
}
