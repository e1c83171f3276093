package events

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/keshon/muse/internal/music/node"
	"github.com/keshon/muse/internal/music/player"
	"github.com/keshon/muse/internal/music/track"
	"github.com/rs/zerolog"
)

const (
	workerBuffer  = 64
	workerIdle    = 5 * time.Minute
	handleTimeout = 30 * time.Second
)

// Players is the registry view the bridge needs.
type Players interface {
	Get(guildID string) *player.Player
	Each(fn func(*player.Player))
}

// Advisor proposes a track when the queue runs dry and autoplay is on.
type Advisor interface {
	Suggest(ctx context.Context, last *track.Track, requesterID string) *track.Track
}

// Bridge consumes node messages and drives the matching players. Events of
// one guild are handled in arrival order by that guild's worker; guilds do
// not wait on each other.
type Bridge struct {
	players   Players
	advisor   Advisor
	channelOf ChannelLookup
	log       zerolog.Logger

	mu      sync.Mutex
	workers map[string]chan Event
	wg      sync.WaitGroup
}

// NewBridge wires a bridge. advisor and channelOf may be nil.
func NewBridge(players Players, advisor Advisor, channelOf ChannelLookup, logger zerolog.Logger) *Bridge {
	return &Bridge{
		players:   players,
		advisor:   advisor,
		channelOf: channelOf,
		log:       logger.With().Str("component", "events").Logger(),
		workers:   make(map[string]chan Event),
	}
}

// Run reads msgs until ctx ends or msgs is closed, then waits for the
// workers to drain.
func (b *Bridge) Run(ctx context.Context, msgs <-chan node.Message) {
	defer b.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				b.closeWorkers()
				return
			}
			ev, ok := Decode(msg, b.channelOf)
			if !ok {
				b.log.Debug().RawJSON("payload", msg.Payload).Msg("dropping node frame")
				continue
			}
			b.Dispatch(ctx, ev)
		}
	}
}

// Dispatch routes one event. Node loss is handled inline; everything else
// goes to the guild's worker.
func (b *Bridge) Dispatch(ctx context.Context, ev Event) {
	switch ev.Kind {
	case KindNodeLost:
		b.handleNodeLost()
		return
	case KindPlayerUpdate:
		return
	}

	b.mu.Lock()
	ch, ok := b.workers[ev.SessionID]
	if !ok {
		ch = make(chan Event, workerBuffer)
		b.workers[ev.SessionID] = ch
		b.wg.Add(1)
		go b.worker(ctx, ev.SessionID, ch)
	}
	select {
	case ch <- ev:
		b.mu.Unlock()
		return
	default:
	}
	b.mu.Unlock()

	// A full queue means the worker is busy and will not idle out, so the
	// blocking send can happen without the lock.
	select {
	case ch <- ev:
	case <-ctx.Done():
	}
}

func (b *Bridge) closeWorkers() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.workers {
		close(ch)
		delete(b.workers, id)
	}
}

func (b *Bridge) worker(ctx context.Context, guildID string, ch chan Event) {
	defer b.wg.Done()
	idle := time.NewTimer(workerIdle)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			b.handle(ctx, ev)
			idle.Reset(workerIdle)
		case <-idle.C:
			b.mu.Lock()
			if len(ch) > 0 {
				b.mu.Unlock()
				idle.Reset(workerIdle)
				continue
			}
			delete(b.workers, guildID)
			b.mu.Unlock()
			return
		}
	}
}

func (b *Bridge) handle(ctx context.Context, ev Event) {
	log := b.log.With().Str("trace", ev.ID).Str("guild", ev.SessionID).Str("kind", string(ev.Kind)).Logger()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("event handler panicked")
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, handleTimeout)
	defer cancel()

	switch ev.Kind {
	case KindTrackStart:
		log.Info().Str("track", ev.TrackTitle).Msg("track started")
	case KindTrackError:
		log.Warn().Str("track", ev.TrackTitle).Str("reason", ev.Reason).Msg("track failed on node")
	case KindTrackEnd:
		if err := b.handleTrackEnd(ctx, ev, log); err != nil {
			log.Error().Err(err).Msg("track end handling failed")
		}
	}
}

func (b *Bridge) handleTrackEnd(ctx context.Context, ev Event, log zerolog.Logger) error {
	p := b.players.Get(ev.SessionID)

	finished, next, stale := p.EndIfCurrent(ev.TrackHandle, ev.Reason)
	if stale {
		log.Debug().Str("reason", ev.Reason).Msg("stale track end ignored")
		return nil
	}

	if next != nil {
		if err := p.StartPlayback(ctx, ev.ChannelID, next); err != nil {
			b.stop(ctx, p, log)
			return fmt.Errorf("start %q: %w", next.Title(), err)
		}
		return nil
	}

	if finished != nil && b.advisor != nil && p.Autoplay() {
		if b.autoplay(ctx, p, finished, ev.ChannelID, log) {
			return nil
		}
	}

	b.stop(ctx, p, log)
	return nil
}

func (b *Bridge) autoplay(ctx context.Context, p *player.Player, finished *track.Track, channelID string, log zerolog.Logger) bool {
	suggestion := b.advisor.Suggest(ctx, finished, finished.RequesterID())
	if suggestion == nil {
		return false
	}
	if err := p.Enqueue(suggestion); err != nil {
		log.Warn().Err(err).Str("track", suggestion.Title()).Msg("autoplay enqueue failed")
		return false
	}
	started, err := p.MaybeStartNext(ctx, channelID)
	if err != nil {
		log.Warn().Err(err).Str("track", suggestion.Title()).Msg("autoplay start failed")
		return false
	}
	if started == nil {
		return false
	}
	log.Info().Str("track", started.Title()).Msg("autoplay started")
	return true
}

func (b *Bridge) stop(ctx context.Context, p *player.Player, log zerolog.Logger) {
	if err := p.Stop(ctx); err != nil {
		log.Warn().Err(err).Msg("stop after track end failed")
	}
}

func (b *Bridge) handleNodeLost() {
	b.log.Warn().Msg("audio node lost, resetting all players")
	b.players.Each(func(p *player.Player) {
		p.ResetPlayback()
	})
}
