package storage

import (
	"encoding/json"

	"github.com/keshon/muse/internal/music/track"
)

// Defaults for a guild that has never been seen.
const (
	DefaultVolume         = 100
	DefaultMaxQueueLength = 200
	DefaultLoopMode       = "off"
)

// MusicState is the durable part of a guild's player.
type MusicState struct {
	Queue          []track.Payload `json:"queue"`
	LoopMode       string          `json:"loop_mode"`
	DefaultVolume  int             `json:"default_volume"`
	Autoplay       bool            `json:"autoplay"`
	MaxQueueLength int             `json:"max_queue_length"`
	Current        *track.Payload  `json:"current"`
}

// DefaultMusicState is the state of a fresh guild.
func DefaultMusicState() MusicState {
	return MusicState{
		Queue:          []track.Payload{},
		LoopMode:       DefaultLoopMode,
		DefaultVolume:  DefaultVolume,
		MaxQueueLength: DefaultMaxQueueLength,
	}
}

// MarshalJSON writes an empty current slot as {} rather than null.
func (s MusicState) MarshalJSON() ([]byte, error) {
	type plain MusicState
	out := struct {
		plain
		Current any `json:"current"`
	}{plain: plain(s), Current: struct{}{}}
	if s.Current != nil && !s.Current.IsZero() {
		out.Current = s.Current
	}
	if out.Queue == nil {
		out.Queue = []track.Payload{}
	}
	return json.Marshal(out)
}

// UnmarshalJSON treats {} and null in the current slot as no track.
func (s *MusicState) UnmarshalJSON(data []byte) error {
	type plain MusicState
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if p.Current != nil && p.Current.IsZero() {
		p.Current = nil
	}
	*s = MusicState(p)
	return nil
}
