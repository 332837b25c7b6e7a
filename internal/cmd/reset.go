package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/giftswap/internal/errors"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete every participant, gift and turn",
	Long: `Delete all game data: participants, gifts, turn order and phase. The
game returns to registration. This cannot be undone, so --yes is required.`,
	Args: cobra.NoArgs,
	RunE: runReset,
}

var resetConfirmed bool

func init() {
	resetCmd.Flags().BoolVarP(&resetConfirmed, "yes", "y", false, "Confirm deleting all data")
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) error {
	if !resetConfirmed {
		return errors.NewValidationError("refusing to delete all data without --yes").WithField("yes")
	}

	svc, done, err := openGame(cmd)
	if err != nil {
		return err
	}
	defer done()

	sum, err := svc.Reset(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, render(out, errorStyle, "All data has been permanently deleted"))
	fmt.Fprintf(out, "Deleted %d participants and %d gifts\n", sum.ParticipantsDeleted, sum.GiftsDeleted)
	return nil
}
