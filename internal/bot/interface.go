// Package bot holds what commands need from the running Discord bot without
// importing it: the voice and player lookups, and interaction reply helpers.
package bot

import (
	"errors"

	"github.com/keshon/muse/internal/music/player"
)

// ErrNotInVoice means the user is not connected to a voice channel in the guild.
var ErrNotInVoice = errors.New("user not in any voice channel")

type BotVoice interface {
	GetOrCreatePlayer(guildID string) *player.Player
	FindUserVoiceState(guildID, userID string) (*VoiceState, error)
}

// VoiceState holds minimal voice channel state for a user.
type VoiceState struct {
	ChannelID string
	UserID    string
}
