package cli

import (
	"fmt"

	"github.com/keshon/muse/internal/music/track"
	"github.com/keshon/muse/internal/storage"
	"github.com/spf13/cobra"
)

func stateCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "state <guild-id>",
		Short: "Print the persisted music state of a guild",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(app, func(store storage.Backend) error {
				st, err := store.LoadMusicState(args[0])
				if err != nil {
					return err
				}
				printState(app, args[0], st)
				return nil
			})
		},
	}
}

func printState(app *App, guildID string, st storage.MusicState) {
	titleColor.Fprintf(app.Out, "Guild %s\n", guildID)
	field := func(k string, v any) {
		keyColor.Fprintf(app.Out, "  %-16s", k)
		fmt.Fprintf(app.Out, "%v\n", v)
	}
	field("loop", st.LoopMode)
	field("volume", st.DefaultVolume)
	field("autoplay", st.Autoplay)
	field("max queue", st.MaxQueueLength)
	if st.Current != nil && !st.Current.IsZero() {
		field("current", track.FromPayload(*st.Current).String())
	} else {
		field("current", "-")
	}
	field("queued", len(st.Queue))
	for i, p := range st.Queue {
		t := track.FromPayload(p)
		fmt.Fprintf(app.Out, "  %3d. %s ", i+1, t.Title())
		dimColor.Fprintf(app.Out, "[%s]\n", track.FormatDuration(t.DurationMs()))
	}
}

func guildsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "guilds",
		Short: "List guilds with persisted state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(app, func(store storage.Backend) error {
				ids, err := store.GuildIDs()
				if err != nil {
					return err
				}
				if len(ids) == 0 {
					dimColor.Fprintln(app.Out, "no guilds stored")
				}
				for _, id := range ids {
					fmt.Fprintln(app.Out, id)
				}
				return nil
			})
		},
	}
}

func historyCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "history <guild-id>",
		Short: "Print the recent command history of a guild",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(app, func(store storage.Backend) error {
				records, err := store.FetchCommandHistory(args[0])
				if err != nil {
					return err
				}
				if len(records) == 0 {
					dimColor.Fprintln(app.Out, "no commands recorded")
				}
				for _, r := range records {
					dimColor.Fprintf(app.Out, "%s ", r.Datetime.Format("2006-01-02 15:04:05"))
					keyColor.Fprintf(app.Out, "%s ", r.Username)
					fmt.Fprintf(app.Out, "/%s %s\n", r.Command, r.Param)
				}
				return nil
			})
		},
	}
}
