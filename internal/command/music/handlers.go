package music

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/muse/internal/bot"
	"github.com/keshon/muse/internal/music/node"
	"github.com/keshon/muse/internal/music/player"
)

// reply is the outcome of one subcommand. err is kept for logging only;
// the embed already describes it to the user.
type reply struct {
	embed *discordgo.MessageEmbed
	err   error
}

func done(embed *discordgo.MessageEmbed) reply { return reply{embed: embed} }

func failed(err error) reply { return reply{embed: errorEmbed(err), err: err} }

type options map[string]*discordgo.ApplicationCommandInteractionDataOption

func (o options) str(name string) string {
	if v, ok := o[name]; ok {
		return v.StringValue()
	}
	return ""
}

func (o options) integer(name string, def int) int {
	if v, ok := o[name]; ok {
		return int(v.IntValue())
	}
	return def
}

func (o options) boolean(name string) bool {
	if v, ok := o[name]; ok {
		return v.BoolValue()
	}
	return false
}

func (c *MusicCommand) execute(ctx context.Context, guildID, userID string, sub *discordgo.ApplicationCommandInteractionDataOption) reply {
	opts := options{}
	for _, o := range sub.Options {
		opts[o.Name] = o
	}
	p := c.Bot.GetOrCreatePlayer(guildID)

	switch sub.Name {
	case "play":
		return c.runPlay(ctx, p, guildID, userID, opts.str("query"))

	case "pause", "resume":
		paused := sub.Name == "pause"
		if err := p.SetPause(ctx, paused); err != nil {
			return failed(err)
		}
		status := player.StatusResumed
		if paused {
			status = player.StatusPaused
		}
		return done(statusEmbed(status, trackLink(p.Current())))

	case "skip":
		skipped, err := p.Skip(ctx)
		if err != nil {
			return failed(err)
		}
		return done(statusEmbed(player.StatusSkipped, trackLink(skipped)))

	case "stop":
		err := p.Stop(ctx)
		p.Clear()
		if err != nil {
			return failed(err)
		}
		return done(statusEmbed(player.StatusStopped, "Playback stopped. Queue cleared."))

	case "queue":
		return done(queueEmbed(p.Snapshot(), opts.integer("page", 1)))

	case "nowplaying":
		snap := p.Snapshot()
		if snap.Current == nil {
			return failed(player.ErrNothingPlaying)
		}
		return done(nowPlayingEmbed(snap))

	case "loop":
		mode, err := player.ParseLoopMode(opts.str("mode"))
		if err != nil {
			return failed(err)
		}
		if err := p.SetLoopMode(mode); err != nil {
			return failed(err)
		}
		return done(infoEmbed("🔁 Loop", fmt.Sprintf("Loop mode set to **%s**.", mode)))

	case "remove":
		removed, err := p.Remove(opts.integer("position", 0))
		if err != nil {
			return failed(err)
		}
		return done(infoEmbed("🗑 Removed", trackLink(removed)))

	case "move":
		from, to := opts.integer("from", 0), opts.integer("to", 0)
		moved, err := p.Move(from, to)
		if err != nil {
			return failed(err)
		}
		return done(infoEmbed("↕️ Moved", fmt.Sprintf("%s\nfrom position %d to %d.", trackLink(moved), from, to)))

	case "clear":
		p.Clear()
		return done(infoEmbed("🧹 Queue Cleared", "The queue is now empty."))

	case "volume":
		level := opts.integer("level", -1)
		if err := p.SetVolume(ctx, level); err != nil {
			return failed(err)
		}
		return done(infoEmbed("🔊 Volume", fmt.Sprintf("Volume set to **%d**.", level)))

	case "autoplay":
		enabled := opts.boolean("enabled")
		p.SetAutoplay(enabled)
		return done(infoEmbed("📻 Autoplay", fmt.Sprintf("Autoplay is now **%s**.", onOff(enabled))))

	case "maxqueue":
		n := opts.integer("length", 0)
		if err := p.SetMaxQueueLength(n); err != nil {
			return failed(err)
		}
		return done(infoEmbed("📏 Queue Limit", fmt.Sprintf("The queue now holds up to **%d** tracks.", n)))

	default:
		return failed(fmt.Errorf("unknown subcommand: %s", sub.Name))
	}
}

func (c *MusicCommand) runPlay(ctx context.Context, p *player.Player, guildID, userID, query string) reply {
	if query == "" {
		return failed(errors.New("input is required"))
	}
	vs, err := c.Bot.FindUserVoiceState(guildID, userID)
	if err != nil {
		return failed(err)
	}

	tracks, err := c.Search.Search(ctx, query, userID)
	if err != nil {
		return failed(err)
	}
	if len(tracks) == 0 {
		return done(infoEmbed("🔍 No Results", fmt.Sprintf("Nothing found for `%s`.", query)))
	}

	t := tracks[0]
	if err := p.Enqueue(t); err != nil {
		return failed(err)
	}
	started, err := p.MaybeStartNext(ctx, vs.ChannelID)
	if err != nil {
		return failed(err)
	}
	if started == t {
		return done(nowPlayingEmbed(p.Snapshot()))
	}
	position := len(p.Snapshot().Queue)
	return done(statusEmbed(player.StatusAdded, fmt.Sprintf("%s\nPosition in queue: **%d**", trackLink(t), position)))
}

// userMessage turns an error into something a listener can act on.
func userMessage(err error) string {
	switch {
	case errors.Is(err, bot.ErrNotInVoice):
		return "Join a voice channel first."
	case errors.Is(err, player.ErrNothingPlaying):
		return "Nothing is playing."
	case errors.Is(err, player.ErrQueueFull):
		return "The queue is full. Remove some tracks or raise the limit with `/music maxqueue`."
	case errors.Is(err, player.ErrIndexOutOfRange):
		return "There is no track at that position."
	case errors.Is(err, player.ErrInvalidMode):
		return "Loop mode must be off, track or queue."
	case errors.Is(err, player.ErrInvalidRange):
		return "Out of range: " + strings.TrimPrefix(err.Error(), player.ErrInvalidRange.Error()+": ") + "."
	case errors.Is(err, node.ErrLoadFailed):
		return "The audio node could not load that query."
	case errors.Is(err, node.ErrNodeUnavailable), errors.Is(err, player.ErrPlaybackUnavailable):
		return "Playback is unavailable right now. Try again in a moment."
	default:
		return fmt.Sprintf("Something went wrong: %v", err)
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
