package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the state backend is reachable",
	Long: `Read the game document through the retry layer and report the backend,
whether it serializes concurrent updates, and the size of the game.

A backend that reports consistent: false falls back to last-writer-wins
and can lose updates made at the same moment.`,
	Args: cobra.NoArgs,
	RunE: runHealth,
}

var (
	healthJSON  bool
	healthStats bool
)

func init() {
	healthCmd.Flags().BoolVar(&healthJSON, "json", false, "Output health as JSON")
	healthCmd.Flags().BoolVar(&healthStats, "stats", false, "Include retry counters for this invocation")
	rootCmd.AddCommand(healthCmd)
}

func runHealth(cmd *cobra.Command, args []string) error {
	svc, done, err := openGame(cmd)
	if err != nil {
		return err
	}
	defer done()

	h, err := svc.Health(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if healthJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(h)
	}

	consistency := render(out, successStyle, "yes")
	if !h.Consistent {
		consistency = render(out, warningStyle, "no (last writer wins)")
	}
	fmt.Fprintln(out, render(out, titleStyle, "Backend health"))
	fmt.Fprintln(out, rule(out))
	fmt.Fprintf(out, "Backend:      %s\n", h.Backend)
	fmt.Fprintf(out, "Consistent:   %s\n", consistency)
	if !h.Stored {
		fmt.Fprintf(out, "Stored:       %s\n", render(out, mutedStyle, "no (nothing written yet)"))
	}
	fmt.Fprintf(out, "Phase:        %s\n", h.Phase)
	fmt.Fprintf(out, "Participants: %d\n", h.Participants)
	fmt.Fprintf(out, "Gifts:        %d\n", h.Gifts)
	fmt.Fprintf(out, "Last updated: %s\n", h.LastUpdated)

	if healthStats {
		fmt.Fprintln(out)
		fmt.Fprintln(out, render(out, titleStyle, "Retries"))
		fmt.Fprintln(out, rule(out))
		return writeYAML(out, svc.RetryStats())
	}
	return nil
}
