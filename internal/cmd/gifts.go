package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/giftswap/internal/world"
)

var giftsCmd = &cobra.Command{
	Use:     "gifts",
	Aliases: []string{"g"},
	Short:   "Add, steal and inspect gifts",
}

var giftsAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Put a gift on the table",
	Args:  cobra.ExactArgs(1),
	RunE:  runGiftsAdd,
}

var giftsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List gifts in the order they were added",
	Args:  cobra.NoArgs,
	RunE:  runGiftsList,
}

var giftsShowCmd = &cobra.Command{
	Use:   "show <gift-id>",
	Short: "Show a gift and its steal history",
	Args:  cobra.ExactArgs(1),
	RunE:  runGiftsShow,
}

var giftsStealCmd = &cobra.Command{
	Use:   "steal <gift-id> <participant-id>",
	Short: "Steal a gift for a participant",
	Long: `Move a gift to a new owner. The previous owner is appended to the gift's
history. A gift locks after its third steal and cannot be stolen again
until its steal count is reset.`,
	Args: cobra.ExactArgs(2),
	RunE: runGiftsSteal,
}

var giftsResetCmd = &cobra.Command{
	Use:   "reset <gift-id>",
	Short: "Reset a gift's steal count and unlock it",
	Long: `Reset a gift's steal count to 0 and unlock it. Its owner and steal
history are kept.`,
	Args: cobra.ExactArgs(1),
	RunE: runGiftsReset,
}

var giftsRenameCmd = &cobra.Command{
	Use:   "rename <gift-id> <name>",
	Short: "Rename a gift",
	Args:  cobra.ExactArgs(2),
	RunE:  runGiftsRename,
}

var (
	giftOwner string // Owner of a new gift
	giftsJSON bool   // Output as JSON
)

func init() {
	giftsAddCmd.Flags().StringVar(&giftOwner, "owner", "", "Participant id that brought the gift")
	giftsListCmd.Flags().BoolVar(&giftsJSON, "json", false, "Output gifts as JSON")

	giftsCmd.AddCommand(giftsAddCmd)
	giftsCmd.AddCommand(giftsListCmd)
	giftsCmd.AddCommand(giftsShowCmd)
	giftsCmd.AddCommand(giftsStealCmd)
	giftsCmd.AddCommand(giftsResetCmd)
	giftsCmd.AddCommand(giftsRenameCmd)
	rootCmd.AddCommand(giftsCmd)
}

func runGiftsAdd(cmd *cobra.Command, args []string) error {
	var owner *int
	if giftOwner != "" {
		id, err := parseParticipantID("owner", giftOwner)
		if err != nil {
			return err
		}
		owner = &id
	}

	svc, done, err := openGame(cmd)
	if err != nil {
		return err
	}
	defer done()

	g, err := svc.Gifts.Add(cmd.Context(), args[0], owner)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s (%s)\n", render(out, successStyle, "Added gift"), g.Name, g.ID)
	return nil
}

func runGiftsList(cmd *cobra.Command, args []string) error {
	svc, done, err := openGame(cmd)
	if err != nil {
		return err
	}
	defer done()

	gifts, err := svc.Gifts.List(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if giftsJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(gifts)
	}

	if len(gifts) == 0 {
		fmt.Fprintln(out, "No gifts yet")
		return nil
	}
	fmt.Fprintln(out, render(out, titleStyle, fmt.Sprintf("Gifts (%d)", len(gifts))))
	fmt.Fprintln(out, rule(out))
	for _, g := range gifts {
		fmt.Fprintf(out, "%s  %-24s owner %-4s steals %d%s\n",
			g.ID, g.Name, ownerLabel(g.Owner), g.StealCount, lockedLabel(out, g.Locked))
	}
	return nil
}

func runGiftsShow(cmd *cobra.Command, args []string) error {
	svc, done, err := openGame(cmd)
	if err != nil {
		return err
	}
	defer done()

	g, err := svc.Gifts.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, render(out, titleStyle, g.Name)+lockedLabel(out, g.Locked))
	fmt.Fprintln(out, rule(out))
	fmt.Fprintf(out, "ID:      %s\n", g.ID)
	fmt.Fprintf(out, "Owner:   %s\n", ownerLabel(g.Owner))
	fmt.Fprintf(out, "Steals:  %d/%d\n", g.StealCount, world.LockThreshold)
	fmt.Fprintf(out, "History: %s\n", historyLabel(g.History))
	return nil
}

func runGiftsSteal(cmd *cobra.Command, args []string) error {
	to, err := parseParticipantID("new_owner", args[1])
	if err != nil {
		return err
	}

	svc, done, err := openGame(cmd)
	if err != nil {
		return err
	}
	defer done()

	res, err := svc.Gifts.Steal(cmd.Context(), args[0], to)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	switch {
	case !res.Stolen:
		fmt.Fprintln(out, render(out, warningStyle, res.Message()))
	default:
		fmt.Fprintln(out, render(out, successStyle, res.Message()))
	}
	return nil
}

func runGiftsReset(cmd *cobra.Command, args []string) error {
	svc, done, err := openGame(cmd)
	if err != nil {
		return err
	}
	defer done()

	changed, err := svc.Gifts.ResetSteals(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if !changed {
		fmt.Fprintln(out, render(out, mutedStyle, "Gift already has 0 steals and is unlocked"))
		return nil
	}
	fmt.Fprintln(out, render(out, successStyle, "Gift steal count reset to 0 and unlocked - can be stolen again!"))
	return nil
}

func runGiftsRename(cmd *cobra.Command, args []string) error {
	svc, done, err := openGame(cmd)
	if err != nil {
		return err
	}
	defer done()

	if _, err := svc.Gifts.Rename(cmd.Context(), args[0], args[1]); err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, render(out, successStyle, "Gift name updated successfully"))
	return nil
}

func ownerLabel(owner *int) string {
	if owner == nil {
		return "-"
	}
	return "#" + strconv.Itoa(*owner)
}

func lockedLabel(w io.Writer, locked bool) string {
	if !locked {
		return ""
	}
	return " " + render(w, lockedStyle, "[locked]")
}

func historyLabel(history []int) string {
	if len(history) == 0 {
		return "(none)"
	}
	parts := make([]string, len(history))
	for i, id := range history {
		parts[i] = "#" + strconv.Itoa(id)
	}
	return strings.Join(parts, " -> ")
}
