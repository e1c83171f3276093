// Package player holds the per-guild playback state machine: the queue, the
// current track and the settings that decide what plays next.
package player

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/keshon/muse/internal/music/track"
	"github.com/keshon/muse/internal/storage"
	"github.com/rs/zerolog"
)

const (
	MinVolume         = 0
	MaxVolume         = 150
	MinMaxQueueLength = 1
	MaxMaxQueueLength = 1000
)

// Node is the slice of the audio node a player drives.
type Node interface {
	Connect(ctx context.Context, guildID, channelID string) error
	Play(ctx context.Context, guildID, handle string, startMs int64) error
	Stop(ctx context.Context, guildID string) error
	SetPause(ctx context.Context, guildID string, paused bool) error
	SetVolume(ctx context.Context, guildID string, level int) error
}

// Store persists the durable fields of a player.
type Store interface {
	LoadMusicState(guildID string) (storage.MusicState, error)
	SaveMusicState(guildID string, state storage.MusicState) error
}

// Snapshot is a point-in-time copy of a player for rendering.
type Snapshot struct {
	GuildID        string
	Queue          []*track.Track
	Current        *track.Track
	Loop           LoopMode
	Volume         int
	Autoplay       bool
	MaxQueueLength int
	Paused         bool
	Elapsed        time.Duration // position estimate within Current
}

// Player is one guild's playback state. Every method holds the player's
// lock for its whole duration, node and storage calls included, so
// operations on one guild are applied one at a time.
type Player struct {
	mu       sync.Mutex
	guildID  string
	queue    []*track.Track
	current  *track.Track
	loop     LoopMode
	volume   int
	autoplay bool
	maxQueue int

	// position estimate for the current track
	startedAt time.Time
	pausedAt  time.Time
	paused    bool

	node  Node
	store Store
	log   zerolog.Logger
}

// New creates a player for guildID and loads its durable state from store.
// A nil store keeps everything in memory.
func New(guildID string, node Node, store Store, logger zerolog.Logger) *Player {
	p := &Player{
		guildID:  guildID,
		queue:    []*track.Track{},
		loop:     LoopOff,
		volume:   storage.DefaultVolume,
		maxQueue: storage.DefaultMaxQueueLength,
		node:     node,
		store:    store,
		log:      logger.With().Str("component", "player").Str("guild", guildID).Logger(),
	}
	p.load()
	return p
}

func (p *Player) load() {
	if p.store == nil {
		return
	}
	st, err := p.store.LoadMusicState(p.guildID)
	if err != nil {
		p.log.Error().Err(err).Msg("failed to load music state, using defaults")
		return
	}

	for _, payload := range st.Queue {
		p.queue = append(p.queue, track.FromPayload(payload))
	}
	if mode, err := ParseLoopMode(st.LoopMode); err == nil {
		p.loop = mode
	}
	if st.DefaultVolume >= MinVolume && st.DefaultVolume <= MaxVolume {
		p.volume = st.DefaultVolume
	}
	if st.MaxQueueLength >= MinMaxQueueLength && st.MaxQueueLength <= MaxMaxQueueLength {
		p.maxQueue = st.MaxQueueLength
	}
	p.autoplay = st.Autoplay

	if st.Current != nil {
		// nothing is rendering after a restart
		p.persistLocked()
	}
	p.log.Debug().Int("queue", len(p.queue)).Str("loop", string(p.loop)).Msg("music state loaded")
}

func (p *Player) persistLocked() {
	if p.store == nil {
		return
	}
	st := storage.MusicState{
		Queue:          make([]track.Payload, 0, len(p.queue)),
		LoopMode:       string(p.loop),
		DefaultVolume:  p.volume,
		Autoplay:       p.autoplay,
		MaxQueueLength: p.maxQueue,
	}
	for _, t := range p.queue {
		st.Queue = append(st.Queue, t.ToPayload())
	}
	if p.current != nil {
		payload := p.current.ToPayload()
		st.Current = &payload
	}
	if err := p.store.SaveMusicState(p.guildID, st); err != nil {
		p.log.Error().Err(err).Msg("failed to persist music state")
	}
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %w", ErrPlaybackUnavailable, err)
}

// GuildID returns the guild this player belongs to.
func (p *Player) GuildID() string { return p.guildID }

// Enqueue appends t to the queue. It never starts playback.
func (p *Player) Enqueue(t *track.Track) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.queue) >= p.maxQueue {
		return fmt.Errorf("%w: %d tracks", ErrQueueFull, p.maxQueue)
	}
	p.queue = append(p.queue, t)
	p.persistLocked()
	p.log.Debug().Str("track", t.Title()).Int("queue", len(p.queue)).Msg("enqueued")
	return nil
}

// Remove deletes the track at the 1-based index and returns it.
func (p *Player) Remove(index int) (*track.Track, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if index < 1 || index > len(p.queue) {
		return nil, fmt.Errorf("%w: %d not in 1..%d", ErrIndexOutOfRange, index, len(p.queue))
	}
	removed := p.queue[index-1]
	p.queue = slices.Delete(p.queue, index-1, index)
	p.persistLocked()
	return removed, nil
}

// Move takes the track at 1-based start and reinserts it at 1-based end,
// where end refers to the queue after the removal.
func (p *Player) Move(start, end int) (*track.Track, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.queue)
	if start < 1 || start > n || end < 1 || end > n {
		return nil, fmt.Errorf("%w: positions must be in 1..%d", ErrIndexOutOfRange, n)
	}
	moved := p.queue[start-1]
	p.queue = slices.Delete(p.queue, start-1, start)
	p.queue = slices.Insert(p.queue, end-1, moved)
	p.persistLocked()
	return moved, nil
}

// Clear empties the queue. The current track is untouched.
func (p *Player) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queue = p.queue[:0]
	p.persistLocked()
}

// SetLoopMode changes the loop mode.
func (p *Player) SetLoopMode(mode LoopMode) error {
	if _, err := ParseLoopMode(string(mode)); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loop = mode
	p.persistLocked()
	return nil
}

// SetAutoplay toggles autoplay.
func (p *Player) SetAutoplay(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.autoplay = enabled
	p.persistLocked()
}

// Autoplay reports whether autoplay is enabled.
func (p *Player) Autoplay() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.autoplay
}

// SetMaxQueueLength changes the queue limit. Tracks already queued beyond
// the new limit stay; only further enqueues are refused.
func (p *Player) SetMaxQueueLength(n int) error {
	if n < MinMaxQueueLength || n > MaxMaxQueueLength {
		return fmt.Errorf("%w: max queue length must be %d-%d", ErrInvalidRange, MinMaxQueueLength, MaxMaxQueueLength)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.maxQueue = n
	p.persistLocked()
	return nil
}

// PeekNext returns the head of the queue without removing it.
func (p *Player) PeekNext() *track.Track {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) == 0 {
		return nil
	}
	return p.queue[0]
}

// PopNext removes and returns the head of the queue.
func (p *Player) PopNext() *track.Track {
	p.mu.Lock()
	defer p.mu.Unlock()
	next := p.popLocked()
	if next != nil {
		p.persistLocked()
	}
	return next
}

func (p *Player) popLocked() *track.Track {
	if len(p.queue) == 0 {
		return nil
	}
	next := p.queue[0]
	p.queue = slices.Delete(p.queue, 0, 1)
	return next
}

// Current returns the track being rendered, if any.
func (p *Player) Current() *track.Track {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// OnTrackEnd records that the current track finished and picks what plays
// next according to the loop mode. It returns (nil, nil) when nothing was
// playing. The caller starts next.
func (p *Player) OnTrackEnd(reason string) (finished, next *track.Track) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.endLocked(reason)
}

// EndIfCurrent is OnTrackEnd guarded by the track handle carried in the
// end notification. A non-empty handle that does not match the current
// track means the notification is late and stale is reported instead.
func (p *Player) EndIfCurrent(handle, reason string) (finished, next *track.Track, stale bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if handle != "" && (p.current == nil || p.current.Handle() != handle) {
		p.log.Debug().Str("reason", reason).Msg("ignoring end of a track that is no longer current")
		return nil, nil, true
	}
	finished, next = p.endLocked(reason)
	return finished, next, false
}

func (p *Player) endLocked(reason string) (finished, next *track.Track) {
	finished = p.current
	p.current = nil
	if finished == nil {
		return nil, nil
	}

	switch p.loop {
	case LoopTrack:
		next = finished
	case LoopQueue:
		p.queue = append(p.queue, finished)
		next = p.popLocked()
	default:
		next = p.popLocked()
	}
	p.persistLocked()

	ev := p.log.Debug().Str("finished", finished.Title()).Str("reason", reason)
	if next != nil {
		ev = ev.Str("next", next.Title())
	}
	ev.Msg("track ended")
	return finished, next
}

// StartPlayback joins destination (when given) and starts t from the
// beginning at the stored default volume.
func (p *Player) StartPlayback(ctx context.Context, destination string, t *track.Track) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.startLocked(ctx, destination, t)
}

func (p *Player) startLocked(ctx context.Context, destination string, t *track.Track) error {
	if destination != "" {
		if err := p.node.Connect(ctx, p.guildID, destination); err != nil {
			return unavailable(err)
		}
	}

	p.current = t
	p.startedAt, p.paused = time.Now(), false
	if err := p.node.Play(ctx, p.guildID, t.Handle(), 0); err != nil {
		p.current = nil
		p.persistLocked()
		return unavailable(err)
	}
	if err := p.node.SetVolume(ctx, p.guildID, p.volume); err != nil {
		p.log.Warn().Err(err).Int("volume", p.volume).Msg("failed to apply default volume")
	}
	p.persistLocked()
	p.log.Info().Str("track", t.Title()).Str("channel", destination).Msg("playback started")
	return nil
}

// MaybeStartNext starts the head of the queue unless something is already
// playing. It returns the playing track, or nil when the queue is empty.
// If the start fails the track goes back to the head of the queue.
func (p *Player) MaybeStartNext(ctx context.Context, destination string) (*track.Track, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current != nil {
		return p.current, nil
	}
	next := p.popLocked()
	if next == nil {
		return nil, nil
	}
	if err := p.startLocked(ctx, destination, next); err != nil {
		p.queue = slices.Insert(p.queue, 0, next)
		p.persistLocked()
		return nil, err
	}
	return next, nil
}

// Stop halts playback and forgets the current track. The track is cleared
// even when the node call fails; that failure is still returned.
func (p *Player) Stop(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.node.Stop(ctx, p.guildID)
	p.current = nil
	p.persistLocked()
	if err != nil {
		return unavailable(err)
	}
	return nil
}

// Skip stops the node but keeps the current track, so the node's end
// notification advances the queue through the normal transition.
func (p *Player) Skip(ctx context.Context) (*track.Track, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil {
		return nil, ErrNothingPlaying
	}
	if err := p.node.Stop(ctx, p.guildID); err != nil {
		return nil, unavailable(err)
	}
	return p.current, nil
}

// SetPause pauses or resumes the current track.
func (p *Player) SetPause(ctx context.Context, paused bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil {
		return unavailable(ErrNothingPlaying)
	}
	if err := p.node.SetPause(ctx, p.guildID, paused); err != nil {
		return unavailable(err)
	}
	switch {
	case paused && !p.paused:
		p.pausedAt = time.Now()
	case !paused && p.paused:
		p.startedAt = p.startedAt.Add(time.Since(p.pausedAt))
	}
	p.paused = paused
	return nil
}

func (p *Player) elapsedLocked() time.Duration {
	if p.current == nil {
		return 0
	}
	end := time.Now()
	if p.paused {
		end = p.pausedAt
	}
	elapsed := max(end.Sub(p.startedAt), 0)
	if d := p.current.Duration(); d > 0 {
		elapsed = min(elapsed, d)
	}
	return elapsed
}

// SetVolume applies level to the current track and stores it as the
// default for later tracks.
func (p *Player) SetVolume(ctx context.Context, level int) error {
	if level < MinVolume || level > MaxVolume {
		return fmt.Errorf("%w: volume must be %d-%d", ErrInvalidRange, MinVolume, MaxVolume)
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil {
		return unavailable(ErrNothingPlaying)
	}
	if err := p.node.SetVolume(ctx, p.guildID, level); err != nil {
		return unavailable(err)
	}
	p.volume = level
	p.persistLocked()
	return nil
}

// ResetPlayback forgets the current track without talking to the node.
// Used when the node itself went away.
func (p *Player) ResetPlayback() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return
	}
	p.current = nil
	p.persistLocked()
	p.log.Warn().Msg("playback reset")
}

// Snapshot copies the player state.
func (p *Player) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Snapshot{
		GuildID:        p.guildID,
		Queue:          slices.Clone(p.queue),
		Current:        p.current,
		Loop:           p.loop,
		Volume:         p.volume,
		Autoplay:       p.autoplay,
		MaxQueueLength: p.maxQueue,
		Paused:         p.current != nil && p.paused,
		Elapsed:        p.elapsedLocked(),
	}
}
