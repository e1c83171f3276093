package player

import "errors"

var (
	ErrQueueFull           = errors.New("queue is full")
	ErrIndexOutOfRange     = errors.New("queue index out of range")
	ErrPlaybackUnavailable = errors.New("playback is unavailable")
	ErrInvalidMode         = errors.New("invalid loop mode")
	ErrInvalidRange        = errors.New("value out of range")
	ErrNothingPlaying      = errors.New("no track is currently playing")
)
