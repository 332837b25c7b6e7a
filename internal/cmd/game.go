package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/giftswap/internal/turn"
	"github.com/Iron-Ham/giftswap/internal/world"
)

var gameCmd = &cobra.Command{
	Use:   "game",
	Short: "Start the game and move between turns",
}

var gameStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the phase, turn order and whose turn it is",
	Args:  cobra.NoArgs,
	RunE:  runGameStatus,
}

var gameStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Close registration and start the first turn",
	Args:  cobra.NoArgs,
	RunE:  runGameStart,
}

var gameNextCmd = &cobra.Command{
	Use:     "next",
	Aliases: []string{"advance"},
	Short:   "Move to the next turn",
	Long: `Move to the next turn. During registration this starts the game. After
the last participant's turn the game is completed.`,
	Args: cobra.NoArgs,
	RunE: runGameNext,
}

var gamePreviousCmd = &cobra.Command{
	Use:     "previous",
	Aliases: []string{"prev", "back"},
	Short:   "Move back one turn",
	Args:    cobra.NoArgs,
	RunE:    runGamePrevious,
}

var gameJSON bool // Output as JSON

func init() {
	gameStatusCmd.Flags().BoolVar(&gameJSON, "json", false, "Output status as JSON")

	gameCmd.AddCommand(gameStatusCmd)
	gameCmd.AddCommand(gameStartCmd)
	gameCmd.AddCommand(gameNextCmd)
	gameCmd.AddCommand(gamePreviousCmd)
	rootCmd.AddCommand(gameCmd)
}

// statusOutput is the JSON form of a turn view.
type statusOutput struct {
	Phase              world.Phase        `json:"game_phase"`
	CurrentTurn        *int               `json:"current_turn"`
	CurrentParticipant *world.Participant `json:"current_participant"`
	TurnOrder          []int              `json:"turn_order"`
	TotalParticipants  int                `json:"total_participants"`
}

func runGameStatus(cmd *cobra.Command, args []string) error {
	svc, done, err := openGame(cmd)
	if err != nil {
		return err
	}
	defer done()

	v, err := svc.Turns.Current(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if gameJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(statusOutput{
			Phase:              v.Phase,
			CurrentTurn:        v.CurrentTurn,
			CurrentParticipant: v.CurrentParticipant,
			TurnOrder:          v.TurnOrder,
			TotalParticipants:  v.TotalParticipants,
		})
	}

	fmt.Fprintln(out, render(out, titleStyle, "Game status"))
	fmt.Fprintln(out, rule(out))
	fmt.Fprintf(out, "Phase:        %s\n", v.Phase)
	fmt.Fprintf(out, "Participants: %d\n", v.TotalParticipants)
	fmt.Fprintf(out, "Turn order:   %s\n", orderLabel(v.TurnOrder))
	fmt.Fprintf(out, "Current turn: %s\n", currentLabel(v))
	return nil
}

func runGameStart(cmd *cobra.Command, args []string) error {
	svc, done, err := openGame(cmd)
	if err != nil {
		return err
	}
	defer done()

	v, err := svc.Turns.Start(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, render(out, successStyle, fmt.Sprintf("Game started! It's %s's turn.", currentLabel(v))))
	return nil
}

func runGameNext(cmd *cobra.Command, args []string) error {
	svc, done, err := openGame(cmd)
	if err != nil {
		return err
	}
	defer done()

	mv, err := svc.Turns.Advance(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if mv.Turn == nil && mv.View.Phase == world.PhaseCompleted {
		fmt.Fprintln(out, render(out, titleStyle, "Game completed - all participants have had their turn"))
		return nil
	}
	printMove(out, "Advanced to next turn", mv.View)
	return nil
}

func runGamePrevious(cmd *cobra.Command, args []string) error {
	svc, done, err := openGame(cmd)
	if err != nil {
		return err
	}
	defer done()

	mv, err := svc.Turns.Previous(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if mv.Turn == nil {
		fmt.Fprintln(out, render(out, warningStyle, "Already at the first turn - cannot go back further"))
		return nil
	}
	printMove(out, "Went back to previous turn", mv.View)
	return nil
}

func printMove(w io.Writer, msg string, v turn.View) {
	fmt.Fprintln(w, render(w, successStyle, msg))
	fmt.Fprintf(w, "It's %s's turn.\n", currentLabel(v))
}

func currentLabel(v turn.View) string {
	switch {
	case v.CurrentParticipant != nil:
		return fmt.Sprintf("%s (#%d)", v.CurrentParticipant.Name, v.CurrentParticipant.ID)
	case v.CurrentTurn != nil:
		return "#" + strconv.Itoa(*v.CurrentTurn)
	default:
		return "(none)"
	}
}

func orderLabel(order []int) string {
	if len(order) == 0 {
		return "(not set)"
	}
	parts := make([]string, len(order))
	for i, id := range order {
		parts[i] = "#" + strconv.Itoa(id)
	}
	return strings.Join(parts, " ")
}
