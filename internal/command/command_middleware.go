package command

import (
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/muse/internal/storage"
)

type Middleware func(Command) Command

func WithGuildOnly(cmd Command) Command {
	return &wrappedCommand{
		Command: cmd,
		wrap: func(ctx interface{}) error {
			switch v := ctx.(type) {
			case *SlashContext:
				if v.Event.GuildID == "" {
					_ = v.Session.InteractionRespond(v.Event.Interaction, &discordgo.InteractionResponse{
						Type: discordgo.InteractionResponseChannelMessageWithSource,
						Data: &discordgo.InteractionResponseData{
							Content: "You must be in a guild to use this command.",
							Flags:   discordgo.MessageFlagsEphemeral,
						},
					})
					return nil
				}
			}
			return cmd.Run(ctx)
		},
	}
}

// WithCommandLogger runs cmd and then appends the invocation to the guild's
// command history.
func WithCommandLogger(cmd Command) Command {
	return &wrappedCommand{
		Command: cmd,
		wrap: func(ctx interface{}) error {
			err := cmd.Run(ctx)

			v, ok := ctx.(*SlashContext)
			if !ok || v.Storage == nil || v.Event.GuildID == "" {
				return err
			}
			rec := storage.CommandHistoryRecord{
				ChannelID: v.Event.ChannelID,
				UserID:    v.UserID(),
				Username:  v.Username(),
				Command:   cmd.Name(),
				Param:     slashParams(v.Event),
				Datetime:  time.Now(),
			}
			if v.Session != nil && v.Session.State != nil {
				if ch, e := v.Session.State.Channel(v.Event.ChannelID); e == nil {
					rec.ChannelName = ch.Name
				}
				if g, e := v.Session.State.Guild(v.Event.GuildID); e == nil {
					rec.GuildName = g.Name
				}
			}
			if e := v.Storage.AppendCommandToHistory(v.Event.GuildID, rec); e != nil {
				v.Logger.Warn().Err(e).Str("command", cmd.Name()).Msg("failed to log command")
			}
			return err
		},
	}
}

// slashParams flattens the invoked subcommand and its options, e.g.
// "play query=lofi".
func slashParams(e *discordgo.InteractionCreate) string {
	if e.Interaction == nil || e.Type != discordgo.InteractionApplicationCommand {
		return ""
	}
	var parts []string
	var walk func(opts []*discordgo.ApplicationCommandInteractionDataOption)
	walk = func(opts []*discordgo.ApplicationCommandInteractionDataOption) {
		for _, o := range opts {
			switch o.Type {
			case discordgo.ApplicationCommandOptionSubCommand, discordgo.ApplicationCommandOptionSubCommandGroup:
				parts = append(parts, o.Name)
				walk(o.Options)
			default:
				parts = append(parts, o.Name+"="+optionString(o))
			}
		}
	}
	walk(e.ApplicationCommandData().Options)
	return strings.Join(parts, " ")
}

func optionString(o *discordgo.ApplicationCommandInteractionDataOption) string {
	switch o.Type {
	case discordgo.ApplicationCommandOptionString:
		return o.StringValue()
	case discordgo.ApplicationCommandOptionInteger:
		return strconv.FormatInt(o.IntValue(), 10)
	case discordgo.ApplicationCommandOptionBoolean:
		if o.BoolValue() {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}

type wrappedCommand struct {
	Command
	wrap func(ctx interface{}) error
}

func (w *wrappedCommand) Run(ctx interface{}) error {
	return w.wrap(ctx)
}

// SlashDefinition forwards to the wrapped command so middleware does not hide
// its slash definition. It returns nil for commands without one.
func (w *wrappedCommand) SlashDefinition() *discordgo.ApplicationCommand {
	if sp, ok := w.Command.(SlashProvider); ok {
		return sp.SlashDefinition()
	}
	return nil
}
