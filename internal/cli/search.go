package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/keshon/muse/internal/music/track"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

func searchCmd(app *App) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Resolve a query through the audio node",
		Long:  "Resolve a query the way /music play does. Prefix with yt: or sc: to pick a source, or pass a URL.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return errors.New("--limit must be positive")
			}
			searcher, err := app.NewSearcher(cmd.Context())
			if err != nil {
				return err
			}
			query := strings.Join(args, " ")
			tracks, err := searcher.Search(cmd.Context(), query, "")
			if err != nil {
				return err
			}
			printTracks(app, query, lo.Slice(tracks, 0, limit), len(tracks))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum number of results to print")
	return cmd
}

func printTracks(app *App, query string, shown []*track.Track, total int) {
	titleColor.Fprintf(app.Out, "Results for %q\n", query)
	if total == 0 {
		dimColor.Fprintln(app.Out, "  no results")
		return
	}
	for i, t := range shown {
		fmt.Fprintf(app.Out, "%3d. %s ", i+1, t.Title())
		dimColor.Fprintf(app.Out, "[%s] %s\n", track.FormatDuration(t.DurationMs()), t.Source())
		if t.URI() != "" {
			fmt.Fprintf(app.Out, "     %s\n", t.URI())
		}
	}
	if total > len(shown) {
		dimColor.Fprintf(app.Out, "  ... %d more\n", total-len(shown))
	}
}
