package node

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/bwmarrin/discordgo"
)

const voiceHandshakeTimeout = 10 * time.Second

// ErrVoiceTimeout means Discord did not deliver both voice updates in time.
var ErrVoiceTimeout = errors.New("voice connection timed out")

// voiceSession collects the two halves of a Discord voice handshake for one
// guild. Once both are present they are forwarded to the node and done is
// closed.
type voiceSession struct {
	channelID string
	sessionID string
	token     string
	endpoint  string
	sending   bool
	sent      bool
	done      chan struct{}
}

func (v *voiceSession) complete() bool {
	return v.sessionID != "" && v.token != "" && v.endpoint != ""
}

// Connect joins the guild's voice channel and waits until the node has the
// voice credentials it needs to play there.
func (c *Client) Connect(ctx context.Context, guildID, channelID string) error {
	if _, err := c.WaitReady(ctx); err != nil {
		return err
	}

	c.joinerMu.RLock()
	joiner := c.joiner
	c.joinerMu.RUnlock()
	if joiner == nil {
		return fmt.Errorf("%w: discord session not attached", ErrNodeUnavailable)
	}

	c.voiceMu.Lock()
	vs, ok := c.voice[guildID]
	if ok && vs.channelID == channelID && vs.sent {
		c.voiceMu.Unlock()
		return nil
	}
	vs = &voiceSession{channelID: channelID, done: make(chan struct{})}
	c.voice[guildID] = vs
	c.voiceMu.Unlock()

	if err := joiner.ChannelVoiceJoinManual(guildID, channelID, false, true); err != nil {
		return fmt.Errorf("join voice channel: %w", err)
	}

	timer := time.NewTimer(voiceHandshakeTimeout)
	defer timer.Stop()
	select {
	case <-vs.done:
		c.log.Debug().Str("guild", guildID).Str("channel", channelID).Msg("voice forwarded to node")
		return nil
	case <-timer.C:
		return ErrVoiceTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Disconnect leaves voice in the guild and destroys the node player.
func (c *Client) Disconnect(ctx context.Context, guildID string) error {
	c.voiceMu.Lock()
	delete(c.voice, guildID)
	c.voiceMu.Unlock()

	c.joinerMu.RLock()
	joiner := c.joiner
	c.joinerMu.RUnlock()
	if joiner != nil {
		if err := joiner.ChannelVoiceJoinManual(guildID, "", false, true); err != nil {
			c.log.Warn().Err(err).Str("guild", guildID).Msg("failed to leave voice channel")
		}
	}
	return c.DestroyPlayer(ctx, guildID)
}

// VoiceChannel returns the voice channel the bot was last asked to join in
// the guild.
func (c *Client) VoiceChannel(guildID string) string {
	c.voiceMu.Lock()
	defer c.voiceMu.Unlock()
	if vs, ok := c.voice[guildID]; ok {
		return vs.channelID
	}
	return ""
}

// OnVoiceStateUpdate is a discordgo handler. It records the bot's own voice
// session id.
func (c *Client) OnVoiceStateUpdate(s *discordgo.Session, v *discordgo.VoiceStateUpdate) {
	if v == nil || v.VoiceState == nil {
		return
	}
	self := c.userID()
	if self == "" && s != nil && s.State != nil && s.State.User != nil {
		self = s.State.User.ID
	}
	if v.UserID != self {
		return
	}

	c.voiceMu.Lock()
	if v.ChannelID == "" {
		delete(c.voice, v.GuildID)
		c.voiceMu.Unlock()
		return
	}
	vs, ok := c.voice[v.GuildID]
	if !ok {
		vs = &voiceSession{done: make(chan struct{})}
		c.voice[v.GuildID] = vs
	}
	if vs.sessionID != v.SessionID {
		vs.sent = false
	}
	vs.channelID = v.ChannelID
	vs.sessionID = v.SessionID
	c.voiceMu.Unlock()

	c.forwardVoice(v.GuildID)
}

// OnVoiceServerUpdate is a discordgo handler. It records the voice server
// token and endpoint.
func (c *Client) OnVoiceServerUpdate(_ *discordgo.Session, v *discordgo.VoiceServerUpdate) {
	if v == nil {
		return
	}
	c.voiceMu.Lock()
	vs, ok := c.voice[v.GuildID]
	if !ok {
		vs = &voiceSession{done: make(chan struct{})}
		c.voice[v.GuildID] = vs
	}
	vs.token = v.Token
	vs.endpoint = v.Endpoint
	vs.sent = false
	c.voiceMu.Unlock()

	c.forwardVoice(v.GuildID)
}

// forgetVoice marks every voice session as not yet delivered and returns
// the guilds whose credentials are complete enough to send again.
func (c *Client) forgetVoice() []string {
	c.voiceMu.Lock()
	defer c.voiceMu.Unlock()

	var guilds []string
	for guildID, vs := range c.voice {
		if vs.sent {
			vs.sent = false
			vs.done = make(chan struct{})
		}
		if vs.complete() {
			guilds = append(guilds, guildID)
		}
	}
	sort.Strings(guilds)
	return guilds
}

func (c *Client) forwardVoice(guildID string) {
	c.voiceMu.Lock()
	vs, ok := c.voice[guildID]
	if !ok || !vs.complete() || vs.sent || vs.sending {
		c.voiceMu.Unlock()
		return
	}
	vs.sending = true
	payload := voicePayload{Token: vs.token, Endpoint: vs.endpoint, SessionID: vs.sessionID}
	c.voiceMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), voiceHandshakeTimeout)
	defer cancel()
	err := c.updatePlayer(ctx, guildID, playerUpdate{Voice: &payload})

	c.voiceMu.Lock()
	vs.sending = false
	if err != nil {
		c.voiceMu.Unlock()
		c.log.Error().Err(err).Str("guild", guildID).Msg("failed to forward voice update")
		return
	}
	stale := payload != voicePayload{Token: vs.token, Endpoint: vs.endpoint, SessionID: vs.sessionID}
	if !stale {
		vs.sent = true
		select {
		case <-vs.done:
		default:
			close(vs.done)
		}
	}
	c.voiceMu.Unlock()

	if stale {
		c.forwardVoice(guildID)
	}
}
