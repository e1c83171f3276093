package music

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/muse/internal/bot"
	"github.com/keshon/muse/internal/command"
	"github.com/keshon/muse/internal/music/player"
	"github.com/keshon/muse/internal/music/track"
)

// commandTimeout bounds one subcommand, node round trips and voice join included.
const commandTimeout = 30 * time.Second

// Searcher resolves a user query into playable tracks.
type Searcher interface {
	Search(ctx context.Context, query, requesterID string) ([]*track.Track, error)
}

type MusicCommand struct {
	Bot    bot.BotVoice
	Search Searcher
}

func (c *MusicCommand) Name() string        { return "music" }
func (c *MusicCommand) Description() string { return "Control music playback" }
func (c *MusicCommand) Aliases() []string   { return []string{} }
func (c *MusicCommand) Group() string       { return "music" }
func (c *MusicCommand) Category() string    { return "🎵 Music" }
func (c *MusicCommand) RequireAdmin() bool  { return false }
func (c *MusicCommand) RequireDev() bool    { return false }

func intOption(name, description string, required bool, minValue, maxValue int) *discordgo.ApplicationCommandOption {
	minV := float64(minValue)
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionInteger,
		Name:        name,
		Description: description,
		Required:    required,
		MinValue:    &minV,
		MaxValue:    float64(maxValue),
	}
}

func subcommand(name, description string, opts ...*discordgo.ApplicationCommandOption) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionSubCommand,
		Name:        name,
		Description: description,
		Options:     opts,
	}
}

func (c *MusicCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			subcommand("play", "Play a track or add it to the queue", &discordgo.ApplicationCommandOption{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "query",
				Description: "Link or search query (prefix yt: or sc: to pick a source)",
				Required:    true,
			}),
			subcommand("pause", "Pause the current track"),
			subcommand("resume", "Resume the current track"),
			subcommand("skip", "Skip to the next track"),
			subcommand("stop", "Stop playback and clear queue"),
			subcommand("queue", "Show the queue",
				intOption("page", "Page number", false, 1, 100)),
			subcommand("nowplaying", "Show the current track"),
			subcommand("loop", "Set the loop mode", &discordgo.ApplicationCommandOption{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "mode",
				Description: "What plays after a track ends",
				Required:    true,
				Choices: []*discordgo.ApplicationCommandOptionChoice{
					{Name: "Off", Value: string(player.LoopOff)},
					{Name: "Track", Value: string(player.LoopTrack)},
					{Name: "Queue", Value: string(player.LoopQueue)},
				},
			}),
			subcommand("remove", "Remove a track from the queue",
				intOption("position", "Queue position", true, 1, player.MaxMaxQueueLength)),
			subcommand("move", "Move a track within the queue",
				intOption("from", "Current position", true, 1, player.MaxMaxQueueLength),
				intOption("to", "New position", true, 1, player.MaxMaxQueueLength)),
			subcommand("clear", "Remove every queued track"),
			subcommand("volume", "Set the playback volume",
				intOption("level", "Volume level", true, player.MinVolume, player.MaxVolume)),
			subcommand("autoplay", "Queue related tracks when the queue runs out", &discordgo.ApplicationCommandOption{
				Type:        discordgo.ApplicationCommandOptionBoolean,
				Name:        "enabled",
				Description: "Enable autoplay",
				Required:    true,
			}),
			subcommand("maxqueue", "Set the maximum queue length",
				intOption("length", "Maximum number of queued tracks", true, player.MinMaxQueueLength, player.MaxMaxQueueLength)),
		},
	}
}

func (c *MusicCommand) Run(ctx interface{}) error {
	sc, ok := ctx.(*command.SlashContext)
	if !ok {
		return nil
	}

	s := sc.Session
	e := sc.Event

	if len(e.ApplicationCommandData().Options) == 0 {
		return bot.RespondEmbedEphemeral(s, e, &discordgo.MessageEmbed{
			Description: "Missing subcommand.",
		})
	}
	sub := e.ApplicationCommandData().Options[0]

	if err := bot.RespondDeferred(s, e, false); err != nil {
		return fmt.Errorf("failed to send deferred response: %w", err)
	}

	runCtx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	r := c.execute(runCtx, e.GuildID, sc.UserID(), sub)
	if r.err != nil {
		sc.Logger.Debug().Err(r.err).Str("guild", e.GuildID).Str("subcommand", sub.Name).Msg("music command failed")
	}
	return bot.FollowupEmbed(s, e, r.embed)
}
