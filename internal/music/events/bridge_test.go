package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/keshon/muse/internal/music/node"
	"github.com/keshon/muse/internal/music/player"
	"github.com/keshon/muse/internal/music/track"
	"github.com/rs/zerolog"
)

type fakeNode struct {
	mu       sync.Mutex
	plays    []string
	stops    int
	failPlay map[string]bool // by track handle
	panicOn  string          // guild whose Play panics
}

func (f *fakeNode) Connect(context.Context, string, string) error { return nil }
func (f *fakeNode) Play(_ context.Context, guildID string, handle string, _ int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if guildID == f.panicOn {
		panic("play exploded")
	}
	f.plays = append(f.plays, handle)
	if f.failPlay[handle] {
		return errors.New("node refused track")
	}
	return nil
}

func (f *fakeNode) configure(fn func(f *fakeNode)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}
func (f *fakeNode) Stop(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	return nil
}
func (f *fakeNode) SetPause(context.Context, string, bool) error { return nil }
func (f *fakeNode) SetVolume(context.Context, string, int) error { return nil }

func (f *fakeNode) snapshot() ([]string, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.plays...), f.stops
}

type fakeAdvisor struct {
	suggestion *track.Track
}

func (f *fakeAdvisor) Suggest(context.Context, *track.Track, string) *track.Track {
	return f.suggestion
}

func tr(name string) *track.Track {
	return track.New(track.Info{Title: name, URI: "uri-" + name, Handle: "h-" + name, RequesterID: "u1"})
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func setup(t *testing.T, advisor Advisor) (*Bridge, *player.Registry, *fakeNode) {
	t.Helper()
	n := &fakeNode{}
	reg := player.NewRegistry(n, nil, zerolog.Nop())
	b := NewBridge(reg, advisor, func(string) string { return "voice-1" }, zerolog.Nop())
	return b, reg, n
}

func endEvent(guild, handle, reason string) Event {
	return Event{ID: "t", Kind: KindTrackEnd, SessionID: guild, TrackHandle: handle, Reason: reason, ChannelID: "voice-1"}
}

func TestTrackEndStartsNext(t *testing.T) {
	b, reg, n := setup(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := reg.Get("g1")
	_ = p.Enqueue(tr("B"))
	if err := p.StartPlayback(ctx, "", tr("A")); err != nil {
		t.Fatal(err)
	}

	b.Dispatch(ctx, endEvent("g1", "h-A", "finished"))
	waitFor(t, func() bool {
		cur := p.Current()
		return cur != nil && cur.Title() == "B"
	})
	if plays, _ := n.snapshot(); len(plays) != 2 || plays[1] != "h-B" {
		t.Errorf("Expected B played second, got %v", plays)
	}
}

func TestStaleTrackEndIgnored(t *testing.T) {
	b, reg, n := setup(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := reg.Get("g1")
	if err := p.StartPlayback(ctx, "", tr("A")); err != nil {
		t.Fatal(err)
	}
	b.Dispatch(ctx, endEvent("g1", "h-OLD", "stopped"))
	b.Dispatch(ctx, Event{ID: "t2", Kind: KindTrackStart, SessionID: "g1", TrackTitle: "A"})

	time.Sleep(30 * time.Millisecond)
	if cur := p.Current(); cur == nil || cur.Title() != "A" {
		t.Errorf("Expected A still current, got %v", cur)
	}
	if _, stops := n.snapshot(); stops != 0 {
		t.Errorf("Expected no stop for a stale end, got %d", stops)
	}
}

func TestAutoplayStartsSuggestionOnce(t *testing.T) {
	b, reg, n := setup(t, &fakeAdvisor{suggestion: tr("S")})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := reg.Get("g1")
	p.SetAutoplay(true)
	if err := p.StartPlayback(ctx, "", tr("A")); err != nil {
		t.Fatal(err)
	}
	b.Dispatch(ctx, endEvent("g1", "h-A", "finished"))

	waitFor(t, func() bool {
		cur := p.Current()
		return cur != nil && cur.Title() == "S"
	})
	plays, stops := n.snapshot()
	if len(plays) != 2 {
		t.Errorf("Expected the suggestion to be played once, got %v", plays)
	}
	if stops != 0 {
		t.Errorf("Expected no stop, got %d", stops)
	}
	if len(p.Snapshot().Queue) != 0 {
		t.Error("Expected suggestion to be consumed from the queue")
	}
}

func TestNoNextStops(t *testing.T) {
	b, reg, n := setup(t, &fakeAdvisor{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := reg.Get("g1")
	p.SetAutoplay(true)
	if err := p.StartPlayback(ctx, "", tr("A")); err != nil {
		t.Fatal(err)
	}
	b.Dispatch(ctx, endEvent("g1", "h-A", "finished"))

	waitFor(t, func() bool {
		_, stops := n.snapshot()
		return stops == 1
	})
	if p.Current() != nil {
		t.Error("Expected player idle")
	}
}

func TestNodeLostResetsPlayers(t *testing.T) {
	b, reg, _ := setup(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, g := range []string{"g1", "g2"} {
		if err := reg.Get(g).StartPlayback(ctx, "", tr(g)); err != nil {
			t.Fatal(err)
		}
	}
	b.Dispatch(ctx, Event{Kind: KindNodeLost})
	for _, g := range []string{"g1", "g2"} {
		if cur := reg.Get(g).Current(); cur != nil {
			t.Errorf("Expected %s idle after node loss, got %v", g, cur)
		}
	}
}

func TestRunDecodesAndDrains(t *testing.T) {
	b, reg, n := setup(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := reg.Get("g1")
	if err := p.StartPlayback(ctx, "", tr("A")); err != nil {
		t.Fatal(err)
	}

	msgs := make(chan node.Message, 4)
	msgs <- node.Message{Payload: json.RawMessage(`not json`)}
	msgs <- node.Message{Payload: json.RawMessage(`{"op":"event","type":"TrackEndEvent","guildId":"g1","reason":"finished","track":{"encoded":"h-A"}}`)}
	close(msgs)

	b.Run(ctx, msgs)
	if p.Current() != nil {
		t.Error("Expected the end event to be handled before Run returned")
	}
	if _, stops := n.snapshot(); stops != 1 {
		t.Errorf("Expected a stop with an empty queue, got %d", stops)
	}
}

func TestFailedStartOfNextLeavesSessionIdle(t *testing.T) {
	b, reg, n := setup(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := reg.Get("g1")
	_ = p.Enqueue(tr("B"))
	if err := p.StartPlayback(ctx, "", tr("A")); err != nil {
		t.Fatal(err)
	}
	n.configure(func(f *fakeNode) { f.failPlay = map[string]bool{"h-B": true} })

	b.Dispatch(ctx, endEvent("g1", "h-A", "finished"))
	waitFor(t, func() bool {
		_, stops := n.snapshot()
		return stops == 1
	})
	time.Sleep(20 * time.Millisecond)

	if cur := p.Current(); cur != nil {
		t.Errorf("Expected idle after a failed start, got %v", cur)
	}
	if plays, _ := n.snapshot(); len(plays) != 2 || plays[1] != "h-B" {
		t.Errorf("Expected a single attempt at B, got %v", plays)
	}
}

func TestFailedAutoplayStartStops(t *testing.T) {
	b, reg, n := setup(t, &fakeAdvisor{suggestion: tr("S")})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := reg.Get("g1")
	p.SetAutoplay(true)
	if err := p.StartPlayback(ctx, "", tr("A")); err != nil {
		t.Fatal(err)
	}
	n.configure(func(f *fakeNode) { f.failPlay = map[string]bool{"h-S": true} })

	b.Dispatch(ctx, endEvent("g1", "h-A", "finished"))
	waitFor(t, func() bool {
		_, stops := n.snapshot()
		return stops == 1
	})
	if cur := p.Current(); cur != nil {
		t.Errorf("Expected idle after a failed autoplay start, got %v", cur)
	}
	if plays, _ := n.snapshot(); len(plays) != 2 {
		t.Errorf("Expected one autoplay attempt, got %v", plays)
	}
}

func TestPanicInOneGuildLeavesOthersRunning(t *testing.T) {
	b, reg, n := setup(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, g := range []string{"g1", "g2"} {
		p := reg.Get(g)
		_ = p.Enqueue(tr("B"))
		if err := p.StartPlayback(ctx, "", tr("A")); err != nil {
			t.Fatal(err)
		}
	}
	n.configure(func(f *fakeNode) { f.panicOn = "g1" })

	b.Dispatch(ctx, endEvent("g1", "h-A", "finished"))
	b.Dispatch(ctx, endEvent("g2", "h-A", "finished"))

	g2 := reg.Get("g2")
	waitFor(t, func() bool {
		cur := g2.Current()
		return cur != nil && cur.Title() == "B"
	})

	// the g1 worker recovered and keeps handling events
	n.configure(func(f *fakeNode) { f.panicOn = "" })
	g1 := reg.Get("g1")
	_ = g1.Enqueue(tr("C"))
	b.Dispatch(ctx, endEvent("g1", "h-B", "finished"))
	waitFor(t, func() bool {
		cur := g1.Current()
		return cur != nil && cur.Title() == "C"
	})
}
