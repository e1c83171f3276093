package music

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	embed "github.com/clinet/discordgo-embed"
	"github.com/keshon/muse/internal/bot"
	"github.com/keshon/muse/internal/music/player"
	"github.com/keshon/muse/internal/music/track"
	"github.com/samber/lo"
)

const (
	queuePageSize = 10
	progressWidth = 18
)

func trackLink(t *track.Track) string {
	switch {
	case t == nil:
		return "🎶 Unknown track"
	case t.Title() != "" && t.URI() != "":
		return fmt.Sprintf("🎶 [%s](%s)", t.Title(), t.URI())
	case t.Title() != "":
		return "🎶 " + t.Title()
	case t.URI() != "":
		return "🎶 " + t.URI()
	default:
		return "🎶 Unknown track"
	}
}

func statusEmbed(status player.Status, description string) *discordgo.MessageEmbed {
	return embed.NewEmbed().
		SetColor(bot.EmbedColor).
		SetTitle(status.StringEmoji() + " " + string(status)).
		SetDescription(description).
		MessageEmbed
}

func infoEmbed(title, description string) *discordgo.MessageEmbed {
	return embed.NewEmbed().
		SetColor(bot.EmbedColor).
		SetTitle(title).
		SetDescription(description).
		MessageEmbed
}

func errorEmbed(err error) *discordgo.MessageEmbed {
	return statusEmbed(player.StatusError, userMessage(err))
}

// progressBar renders elapsed/total as a bar with a position marker. Tracks
// without a known length render as a live marker.
func progressBar(elapsed, total time.Duration, width int) string {
	if total <= 0 {
		return "🔴 LIVE"
	}
	pos := int(float64(width) * float64(elapsed) / float64(total))
	pos = min(max(pos, 0), width-1)
	return strings.Repeat("▬", pos) + "🔘" + strings.Repeat("▬", width-pos-1)
}

func nowPlayingEmbed(snap player.Snapshot) *discordgo.MessageEmbed {
	status := player.StatusPlaying
	if snap.Paused {
		status = player.StatusPaused
	}
	t := snap.Current
	if t == nil {
		return errorEmbed(player.ErrNothingPlaying)
	}

	e := embed.NewEmbed().
		SetColor(bot.EmbedColor).
		SetTitle(status.StringEmoji() + " " + string(status)).
		SetDescription(trackLink(t) + "\n\n" + progressBar(snap.Elapsed, t.Duration(), progressWidth)).
		AddField("Duration", fmt.Sprintf("%s / %s", track.FormatDuration(snap.Elapsed.Milliseconds()), track.FormatDuration(t.DurationMs()))).
		AddField("Source", t.Source())
	if t.RequesterID() != "" {
		e.AddField("Requested by", "<@"+t.RequesterID()+">")
	}
	if next := lo.FirstOr(snap.Queue, nil); next != nil {
		e.AddField("Up next", trackLink(next))
	}
	if t.Thumbnail() != "" {
		e.SetThumbnail(t.Thumbnail())
	}
	e.SetFooter(settingsLine(snap))
	return e.InlineAllFields().MessageEmbed
}

// queueEmbed shows page (1-based, clamped) of the queue.
func queueEmbed(snap player.Snapshot, page int) *discordgo.MessageEmbed {
	pages := lo.Chunk(snap.Queue, queuePageSize)
	total := max(len(pages), 1)
	page = min(max(page, 1), total)

	var b strings.Builder
	if snap.Current != nil {
		fmt.Fprintf(&b, "**Now:** %s\n\n", trackLink(snap.Current))
	}
	if len(pages) == 0 {
		b.WriteString("The queue is empty.")
	} else {
		offset := (page - 1) * queuePageSize
		for i, t := range pages[page-1] {
			fmt.Fprintf(&b, "`%d.` %s `%s`\n", offset+i+1, trackLink(t), track.FormatDuration(t.DurationMs()))
		}
	}

	length := lo.SumBy(snap.Queue, func(t *track.Track) int64 { return t.DurationMs() })
	return embed.NewEmbed().
		SetColor(bot.EmbedColor).
		SetTitle("📜 Queue").
		SetDescription(b.String()).
		SetFooter(fmt.Sprintf("Page %d/%d · %d/%d tracks · %s · %s",
			page, total, len(snap.Queue), snap.MaxQueueLength, track.FormatDuration(length), settingsLine(snap))).
		MessageEmbed
}

func settingsLine(snap player.Snapshot) string {
	return fmt.Sprintf("loop: %s · volume: %d · autoplay: %s", snap.Loop, snap.Volume, onOff(snap.Autoplay))
}
