package commands

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"waxscore/internal/listener"
)

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Score spec sheets as they land in the inbox directory",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	dir := state.cfg.InboxDir
	if len(args) == 1 {
		dir = args[0]
	}
	db, err := state.openDB()
	if err != nil {
		return err
	}
	w := listener.NewWatcher(dir, state.cfg.WatchDebounce(), state.processor(db), db, state.log)

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return serveWithMetrics(ctx, w.Run)
}

// serveWithMetrics runs fn next to the metrics endpoint. Whichever stops first
// cancels the other.
func serveWithMetrics(ctx context.Context, fn func(context.Context) error) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return state.metrics.Serve(ctx, state.cfg.MetricsAddr, state.log)
	})
	g.Go(func() error {
		err := fn(ctx)
		if err == nil {
			err = context.Canceled
		}
		return err
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
