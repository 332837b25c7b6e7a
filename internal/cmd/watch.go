package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/giftswap/internal/errors"
	"github.com/Iron-Ham/giftswap/internal/store"
	"github.com/Iron-Ham/giftswap/internal/turn"
	"github.com/Iron-Ham/giftswap/internal/watch"
	"github.com/Iron-Ham/giftswap/internal/world"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print a line every time the game changes",
	Long: `Follow the state file and print a summary after every committed change,
until interrupted. Only the file backend can be watched.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

var watchDebounce = watch.DefaultDebounce

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", watch.DefaultDebounce, "Wait this long for a change to settle")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	svc, done, err := openGame(cmd)
	if err != nil {
		return err
	}
	defer done()

	fs, ok := svc.Backend().(*store.FileStore)
	if !ok {
		return errors.NewValidationError("watch needs the file backend").
			WithField("store.backend").WithValue(svc.Backend().Name())
	}

	w, err := watch.New(fs, watch.WithDebounce(watchDebounce))
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", fs.Path(), err)
	}
	defer func() { _ = w.Close() }()

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, render(out, mutedStyle, fmt.Sprintf("Watching %s (Ctrl+C to stop)", fs.Path())))
	err = w.Run(cmd.Context(), func(st *world.State) {
		fmt.Fprintln(out, summaryLine(st))
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// summaryLine condenses st into one line.
func summaryLine(st *world.State) string {
	v := turn.ViewOf(st)
	locked := 0
	for _, g := range st.Gifts {
		if g.Locked {
			locked++
		}
	}
	return fmt.Sprintf("[%s] phase=%s turn=%s participants=%d gifts=%d locked=%d",
		st.Meta.LastUpdated.Format("15:04:05"), v.Phase, currentLabel(v),
		len(st.Participants), len(st.Gifts), locked)
}
