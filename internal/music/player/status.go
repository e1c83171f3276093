package player

import (
	"fmt"
	"strings"
)

// LoopMode decides what follows a finished track.
type LoopMode string

const (
	LoopOff   LoopMode = "off"
	LoopTrack LoopMode = "track"
	LoopQueue LoopMode = "queue"
)

// ParseLoopMode accepts off, track or queue in any case.
func ParseLoopMode(s string) (LoopMode, error) {
	switch m := LoopMode(strings.ToLower(strings.TrimSpace(s))); m {
	case LoopOff, LoopTrack, LoopQueue:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// Status labels what a command just did to the player.
type Status string

const (
	StatusPlaying Status = "Now Playing"
	StatusAdded   Status = "Track Added"
	StatusStopped Status = "Playback Stopped"
	StatusSkipped Status = "Track Skipped"
	StatusPaused  Status = "Playback Paused"
	StatusResumed Status = "Playback Resumed"
	StatusError   Status = "Error"
)

func (s Status) StringEmoji() string {
	m := map[Status]string{
		StatusPlaying: "▶️",
		StatusAdded:   "🎶",
		StatusStopped: "⏹",
		StatusSkipped: "⏭",
		StatusPaused:  "⏸",
		StatusResumed: "▶️",
		StatusError:   "❌",
	}
	return m[s]
}
