package command

import (
	"github.com/bwmarrin/discordgo"
	"github.com/keshon/muse/internal/storage"
	"github.com/rs/zerolog"
)

type Command interface {
	Name() string
	Description() string
	Aliases() []string
	Group() string
	Category() string
	RequireAdmin() bool
	RequireDev() bool
	Run(ctx interface{}) error
}

type SlashProvider interface {
	SlashDefinition() *discordgo.ApplicationCommand
}

// SlashContext is what a slash command receives when invoked.
type SlashContext struct {
	Session *discordgo.Session
	Event   *discordgo.InteractionCreate
	Storage storage.Backend
	Logger  zerolog.Logger
}

// UserID returns the invoking user in guilds and in DMs.
func (c *SlashContext) UserID() string {
	if c.Event.Member != nil && c.Event.Member.User != nil {
		return c.Event.Member.User.ID
	}
	if c.Event.User != nil {
		return c.Event.User.ID
	}
	return ""
}

// Username mirrors UserID.
func (c *SlashContext) Username() string {
	if c.Event.Member != nil && c.Event.Member.User != nil {
		return c.Event.Member.User.Username
	}
	if c.Event.User != nil {
		return c.Event.User.Username
	}
	return ""
}
