package discord

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/muse/internal/command"
)

// commandCreateInterval keeps command registration under Discord's rate limit.
const commandCreateInterval = 25 * time.Millisecond

// registerCommands syncs slash commands for a guild with Discord:
// deletes obsolete ones, creates/updates commands whose definition has changed.
func (b *Bot) registerCommands(guildID string) error {
	appID, err := b.appID()
	if err != nil {
		return err
	}

	remote, err := b.dg.ApplicationCommands(appID, guildID)
	if err != nil {
		b.log.Warn().Err(err).Str("guild", guildID).Msg("failed to list registered commands")
	}
	local := buildCommandDefinitions()
	cached := b.loadCommandHashes(guildID)

	wanted := make(map[string]string, len(local))
	for _, d := range local {
		wanted[d.Name] = hashCommand(d)
	}

	for _, rc := range remote {
		if _, ok := wanted[rc.Name]; ok {
			continue
		}
		b.log.Info().Str("guild", guildID).Str("command", rc.Name).Msg("deleting obsolete command")
		if err := b.dg.ApplicationCommandDelete(appID, guildID, rc.ID); err != nil {
			b.log.Error().Err(err).Str("guild", guildID).Str("command", rc.Name).Msg("failed to delete command")
			continue
		}
		delete(cached, rc.Name)
	}

	for _, d := range changedCommands(local, wanted, cached, remote) {
		if _, err := b.dg.ApplicationCommandCreate(appID, guildID, d); err != nil {
			b.log.Error().Err(err).Str("guild", guildID).Str("command", d.Name).Msg("failed to register command")
		} else {
			cached[d.Name] = wanted[d.Name]
			b.log.Info().Str("guild", guildID).Str("command", d.Name).Msg("command registered")
		}
		time.Sleep(commandCreateInterval)
	}

	b.saveCommandHashes(guildID, cached)
	return nil
}

// changedCommands returns the definitions whose hash differs from the cache
// or which Discord does not know about.
func changedCommands(local []*discordgo.ApplicationCommand, wanted, cached map[string]string, remote []*discordgo.ApplicationCommand) []*discordgo.ApplicationCommand {
	known := make(map[string]bool, len(remote))
	for _, rc := range remote {
		known[rc.Name] = true
	}
	var changed []*discordgo.ApplicationCommand
	for _, d := range local {
		if cached[d.Name] != wanted[d.Name] || !known[d.Name] {
			changed = append(changed, d)
		}
	}
	return changed
}

// buildCommandDefinitions returns ApplicationCommand definitions for all registered commands.
func buildCommandDefinitions() []*discordgo.ApplicationCommand {
	var defs []*discordgo.ApplicationCommand
	for _, c := range command.All() {
		sp, ok := c.(command.SlashProvider)
		if !ok {
			continue
		}
		def := sp.SlashDefinition()
		if def == nil {
			continue
		}
		if def.Type == 0 {
			def.Type = discordgo.ChatApplicationCommand
		}
		defs = append(defs, def)
	}
	return defs
}

func (b *Bot) appID() (string, error) {
	if b.dg.State != nil && b.dg.State.User != nil && b.dg.State.User.ID != "" {
		return b.dg.State.User.ID, nil
	}
	user, err := b.dg.User("@me")
	if err != nil {
		return "", err
	}
	return user.ID, nil
}

func (b *Bot) commandCachePath(guildID string) string {
	return filepath.Join(b.cfg.CommandCacheDir, guildID+".json")
}

func (b *Bot) loadCommandHashes(guildID string) map[string]string {
	data := make(map[string]string)
	file, err := os.ReadFile(b.commandCachePath(guildID))
	if err == nil {
		_ = json.Unmarshal(file, &data)
	}
	return data
}

func (b *Bot) saveCommandHashes(guildID string, hashes map[string]string) {
	path := b.commandCachePath(guildID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		b.log.Warn().Err(err).Msg("failed to create command cache directory")
		return
	}
	data, _ := json.MarshalIndent(hashes, "", "  ")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		b.log.Warn().Err(err).Str("guild", guildID).Msg("failed to save command hashes")
	}
}
