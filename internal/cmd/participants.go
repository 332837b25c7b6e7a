package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/giftswap/internal/errors"
	"github.com/Iron-Ham/giftswap/internal/world"
)

var participantsCmd = &cobra.Command{
	Use:     "participants",
	Aliases: []string{"p"},
	Short:   "Register and list participants",
}

var participantsAddCmd = &cobra.Command{
	Use:   "add <name>...",
	Short: "Register one or more participants",
	Long: `Register participants. Each one is assigned a random free slot between 1
and 100; that number is their participant id.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runParticipantsAdd,
}

var participantsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List participants by id",
	Args:  cobra.NoArgs,
	RunE:  runParticipantsList,
}

var participantsCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Show how many slots are taken",
	Args:  cobra.NoArgs,
	RunE:  runParticipantsCount,
}

var participantsImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Register every name in a file",
	Long: `Register every name in a file, one per line. Blank lines and lines
starting with # are skipped. Use - to read from stdin.

Names are registered concurrently; every registration is still its own
transaction, so the import stops short only when the game is full.`,
	Args: cobra.ExactArgs(1),
	RunE: runParticipantsImport,
}

var (
	participantsJSON  bool // Output as JSON
	importConcurrency int  // Parallel registrations
)

func init() {
	participantsListCmd.Flags().BoolVar(&participantsJSON, "json", false, "Output participants as JSON")
	participantsImportCmd.Flags().IntVar(&importConcurrency, "concurrency", 4, "Number of registrations in flight")

	participantsCmd.AddCommand(participantsAddCmd)
	participantsCmd.AddCommand(participantsListCmd)
	participantsCmd.AddCommand(participantsCountCmd)
	participantsCmd.AddCommand(participantsImportCmd)
	rootCmd.AddCommand(participantsCmd)
}

func runParticipantsAdd(cmd *cobra.Command, args []string) error {
	svc, done, err := openGame(cmd)
	if err != nil {
		return err
	}
	defer done()

	out := cmd.OutOrStdout()
	for _, name := range args {
		p, err := svc.Participants.Add(cmd.Context(), name)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s %s as #%d\n", render(out, successStyle, "Registered"), p.Name, p.ID)
	}
	return nil
}

func runParticipantsList(cmd *cobra.Command, args []string) error {
	svc, done, err := openGame(cmd)
	if err != nil {
		return err
	}
	defer done()

	list, err := svc.Participants.List(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if participantsJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	}

	if len(list) == 0 {
		fmt.Fprintln(out, "No participants registered")
		return nil
	}
	fmt.Fprintln(out, render(out, titleStyle, fmt.Sprintf("Participants (%d/%d)", len(list), world.MaxParticipants)))
	fmt.Fprintln(out, rule(out))
	for _, p := range list {
		fmt.Fprintf(out, "%4d  %-30s %s\n", p.ID, p.Name, render(out, mutedStyle, p.RegisteredAt.String()))
	}
	return nil
}

func runParticipantsCount(cmd *cobra.Command, args []string) error {
	svc, done, err := openGame(cmd)
	if err != nil {
		return err
	}
	defer done()

	n, err := svc.Participants.Count(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d/%d participants\n", n, world.MaxParticipants)
	return nil
}

func runParticipantsImport(cmd *cobra.Command, args []string) error {
	if importConcurrency < 1 {
		return errors.NewValidationError("concurrency must be at least 1").
			WithField("concurrency").WithValue(importConcurrency)
	}

	var in io.Reader
	if args[0] == "-" {
		in = cmd.InOrStdin()
	} else {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", args[0], err)
		}
		defer func() { _ = f.Close() }()
		in = f
	}
	names, err := readNames(in)
	if err != nil {
		return err
	}

	svc, done, err := openGame(cmd)
	if err != nil {
		return err
	}
	defer done()

	ctx := cmd.Context()
	p := pool.NewWithResults[world.Participant]().WithErrors().WithMaxGoroutines(importConcurrency)
	for _, name := range names {
		p.Go(func() (world.Participant, error) {
			reg, err := svc.Participants.Add(ctx, name)
			if err != nil {
				return world.Participant{}, fmt.Errorf("%s: %w", name, err)
			}
			return reg, nil
		})
	}
	added, err := p.Wait()

	slices.SortFunc(added, func(a, b world.Participant) int { return a.ID - b.ID })
	out := cmd.OutOrStdout()
	for _, reg := range added {
		fmt.Fprintf(out, "%s %s as #%d\n", render(out, successStyle, "Registered"), reg.Name, reg.ID)
	}
	fmt.Fprintf(out, "Imported %d of %d names\n", len(added), len(names))
	return err
}

// readNames returns the non-blank, non-comment lines of r.
func readNames(r io.Reader) ([]string, error) {
	var names []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		names = append(names, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read names: %w", err)
	}
	return names, nil
}

// parseParticipantID parses a participant id argument.
func parseParticipantID(field, s string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, errors.NewValidationError("must be a number").WithField(field).WithValue(s)
	}
	if err := world.CheckParticipantID(field, id); err != nil {
		return 0, err
	}
	return id, nil
}
