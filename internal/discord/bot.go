// Package discord runs the Discord side of the bot: the gateway session,
// slash command sync and dispatch, and the voice lookups commands rely on.
package discord

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/muse/internal/bot"
	"github.com/keshon/muse/internal/command"
	"github.com/keshon/muse/internal/config"
	"github.com/keshon/muse/internal/music/node"
	"github.com/keshon/muse/internal/music/player"
	"github.com/keshon/muse/internal/storage"
	"github.com/keshon/muse/pkg/util"
	"github.com/rs/zerolog"
)

const (
	shutdownTimeout = 5 * time.Second
	guildWorkers    = 4
)

// Bot is a Discord bot
type Bot struct {
	dg      *discordgo.Session
	cfg     *config.Config
	storage storage.Backend
	node    *node.Client
	players *player.Registry
	log     zerolog.Logger
}

var _ bot.BotVoice = (*Bot)(nil)

// NewBot creates the Discord session and attaches it to the audio node for
// voice signalling. Nothing connects until Run.
func NewBot(cfg *config.Config, store storage.Backend, n *node.Client, players *player.Registry, logger zerolog.Logger) (*Bot, error) {
	dg, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates

	b := &Bot{
		dg:      dg,
		cfg:     cfg,
		storage: store,
		node:    n,
		players: players,
		log:     logger.With().Str("component", "discord").Logger(),
	}

	n.SetVoiceJoiner(dg)
	dg.AddHandler(b.onReady)
	dg.AddHandler(b.onGuildCreate)
	dg.AddHandler(b.onInteractionCreate)
	dg.AddHandler(n.OnVoiceStateUpdate)
	dg.AddHandler(n.OnVoiceServerUpdate)
	return b, nil
}

// Run opens the gateway session and blocks until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.dg.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	defer b.dg.Close()

	<-ctx.Done()
	b.log.Info().Msg("❎ Shutdown signal received. Cleaning up...")
	b.leaveVoice()
	return nil
}

// leaveVoice disconnects every guild that still has a player, with a short
// deadline so shutdown is not held up by a slow node.
func (b *Bot) leaveVoice() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var guilds []string
	b.players.Each(func(p *player.Player) {
		if b.node.VoiceChannel(p.GuildID()) != "" {
			guilds = append(guilds, p.GuildID())
		}
	})
	err := util.Parallel(ctx, guilds, guildWorkers, func(ctx context.Context, guildID string) error {
		return b.node.Disconnect(ctx, guildID)
	})
	if err != nil {
		b.log.Warn().Err(err).Msg("failed to leave voice")
	}
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.node.SetUserID(r.User.ID)

	var guilds []string
	for _, g := range r.Guilds {
		if b.isGuildBlacklisted(g.ID) {
			b.leaveGuild(s, g.ID)
			continue
		}
		guilds = append(guilds, g.ID)
	}

	if b.cfg.InitSlashCommands {
		err := util.Parallel(context.Background(), guilds, guildWorkers, func(_ context.Context, guildID string) error {
			if err := b.registerCommands(guildID); err != nil {
				return fmt.Errorf("guild %s: %w", guildID, err)
			}
			return nil
		})
		if err != nil {
			b.log.Error().Err(err).Msg("error registering slash commands")
		}
	} else {
		b.log.Info().Msg("registering slash commands skipped")
	}

	b.log.Info().Str("user", r.User.Username).Int("guilds", len(guilds)).Msg("✅ Discord bot is running")
}

func (b *Bot) onGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	if g.Guild == nil || g.Unavailable {
		return
	}
	if b.isGuildBlacklisted(g.ID) {
		b.leaveGuild(s, g.ID)
		return
	}
	if !b.cfg.InitSlashCommands {
		return
	}
	if err := b.registerCommands(g.ID); err != nil {
		b.log.Error().Err(err).Str("guild", g.ID).Msg("failed to register commands for guild")
	}
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := i.ApplicationCommandData()
	cmd, ok := command.Get(data.Name)
	if !ok {
		b.log.Warn().Str("command", data.Name).Msg("unknown command")
		return
	}

	ctx := &command.SlashContext{
		Session: s,
		Event:   i,
		Storage: b.storage,
		Logger:  b.log.With().Str("guild", i.GuildID).Str("command", data.Name).Logger(),
	}
	if err := cmd.Run(ctx); err != nil {
		ctx.Logger.Error().Err(err).Msg("error running slash command")
		_ = bot.RespondEmbedEphemeral(s, i, &discordgo.MessageEmbed{
			Description: fmt.Sprintf("Error running slash command: %v", err),
			Color:       bot.EmbedColor,
		})
	}
}

func (b *Bot) isGuildBlacklisted(guildID string) bool {
	return slices.Contains(b.cfg.DiscordGuildBlacklist, guildID)
}

func (b *Bot) leaveGuild(s *discordgo.Session, guildID string) {
	b.log.Info().Str("guild", guildID).Msg("leaving blacklisted guild")
	if err := s.GuildLeave(guildID); err != nil {
		b.log.Error().Err(err).Str("guild", guildID).Msg("failed to leave guild")
	}
}

// GetOrCreatePlayer returns the guild's player, creating it on first use.
func (b *Bot) GetOrCreatePlayer(guildID string) *player.Player {
	return b.players.Get(guildID)
}

// FindUserVoiceState finds the voice channel a user is connected to.
func (b *Bot) FindUserVoiceState(guildID, userID string) (*bot.VoiceState, error) {
	return findUserVoiceState(b.dg.State, guildID, userID)
}

func findUserVoiceState(state *discordgo.State, guildID, userID string) (*bot.VoiceState, error) {
	guild, err := state.Guild(guildID)
	if err != nil {
		return nil, fmt.Errorf("error retrieving guild: %w", err)
	}
	for _, vs := range guild.VoiceStates {
		if vs.UserID == userID && vs.ChannelID != "" {
			return &bot.VoiceState{ChannelID: vs.ChannelID, UserID: vs.UserID}, nil
		}
	}
	return nil, bot.ErrNotInVoice
}
