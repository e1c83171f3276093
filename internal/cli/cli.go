// Package cli is the maintenance command line: it searches through the audio
// node and inspects persisted guild state without starting the bot.
package cli

import (
	"context"
	"io"

	"github.com/fatih/color"
	"github.com/keshon/muse/internal/music/track"
	"github.com/keshon/muse/internal/storage"
	"github.com/spf13/cobra"
)

var (
	titleColor = color.New(color.FgHiMagenta, color.Bold)
	dimColor   = color.New(color.FgHiBlack)
	keyColor   = color.New(color.FgHiCyan)
	errColor   = color.New(color.FgHiRed)
)

// Searcher resolves queries the same way the bot does.
type Searcher interface {
	Search(ctx context.Context, query, requesterID string) ([]*track.Track, error)
}

// App carries what the commands need. The factories are called lazily so
// storage-only commands never dial the node.
type App struct {
	Out io.Writer
	Err io.Writer

	OpenStore   func() (storage.Backend, error)
	NewSearcher func(ctx context.Context) (Searcher, error)
}

// NewRootCmd builds the command tree.
func NewRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "muse-cli",
		Short:         "Maintenance tools for the muse music bot",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(app.Out)
	root.SetErr(app.Err)
	root.AddCommand(
		searchCmd(app),
		stateCmd(app),
		guildsCmd(app),
		historyCmd(app),
	)
	return root
}

// Execute runs the tree and prints a failure in red. It returns the exit code.
func Execute(ctx context.Context, app *App, args []string) int {
	root := NewRootCmd(app)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		errColor.Fprintf(app.Err, "error: %v\n", err)
		return 1
	}
	return 0
}

func withStore(app *App, fn func(storage.Backend) error) error {
	store, err := app.OpenStore()
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}
