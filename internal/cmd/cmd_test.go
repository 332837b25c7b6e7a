package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/giftswap/internal/errors"
	"github.com/Iron-Ham/giftswap/internal/game"
	"github.com/Iron-Ham/giftswap/internal/world"
)

// executeCommand runs a cobra command with args and returns captured output
func executeCommand(root *cobra.Command, args ...string) (output string, err error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err = root.Execute()
	return buf.String(), err
}

// resetFlags restores every flag to its default so values from one
// invocation do not leak into the next.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.PersistentFlags().VisitAll(reset)
	c.Flags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// cli runs giftswap against a state file private to the test.
type cli struct {
	t     *testing.T
	state string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	return &cli{t: t, state: filepath.Join(t.TempDir(), "state.json")}
}

func (c *cli) run(args ...string) (string, error) {
	c.t.Helper()
	viper.Reset()
	bindGlobalFlags()
	resetFlags(rootCmd)
	return executeCommand(rootCmd, append([]string{"--state", c.state}, args...)...)
}

func (c *cli) mustRun(args ...string) string {
	c.t.Helper()
	out, err := c.run(args...)
	if err != nil {
		c.t.Fatalf("giftswap %s: error = %v\noutput:\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func (c *cli) participants() []world.Participant {
	c.t.Helper()
	var list []world.Participant
	if err := json.Unmarshal([]byte(c.mustRun("participants", "list", "--json")), &list); err != nil {
		c.t.Fatalf("decode participants: %v", err)
	}
	return list
}

func (c *cli) gifts() []world.Gift {
	c.t.Helper()
	var list []world.Gift
	if err := json.Unmarshal([]byte(c.mustRun("gifts", "list", "--json")), &list); err != nil {
		c.t.Fatalf("decode gifts: %v", err)
	}
	return list
}

func TestParticipantsAddAndList(t *testing.T) {
	c := newCLI(t)

	out := c.mustRun("participants", "add", "Alice", "  Bob  ")
	if !strings.Contains(out, "Registered Alice as #") || !strings.Contains(out, "Registered Bob as #") {
		t.Errorf("add output = %q", out)
	}

	list := c.participants()
	if len(list) != 2 {
		t.Fatalf("participants = %+v, want 2", list)
	}
	if list[0].ID >= list[1].ID {
		t.Errorf("participants not sorted by id: %+v", list)
	}

	out = c.mustRun("participants", "count")
	if strings.TrimSpace(out) != "2/100 participants" {
		t.Errorf("count output = %q", out)
	}
}

func TestParticipantsAdd_InvalidName(t *testing.T) {
	c := newCLI(t)
	_, err := c.run("participants", "add", "A")
	if err == nil {
		t.Fatal("expected error for a one-character name")
	}
	if got := ExitCode(err); got != ExitValidation {
		t.Errorf("ExitCode() = %d, want %d", got, ExitValidation)
	}
}

func TestParticipantsImport(t *testing.T) {
	c := newCLI(t)
	file := filepath.Join(t.TempDir(), "names.txt")
	content := "# guests\nAlice\n\nBob\n  Charlie  \nDana\n"
	if err := os.WriteFile(file, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	out := c.mustRun("participants", "import", file, "--concurrency", "3")
	if !strings.Contains(out, "Imported 4 of 4 names") {
		t.Errorf("import output = %q", out)
	}

	seen := map[int]bool{}
	for _, p := range c.participants() {
		if seen[p.ID] {
			t.Errorf("duplicate id %d", p.ID)
		}
		seen[p.ID] = true
	}
	if len(seen) != 4 {
		t.Errorf("registered %d participants, want 4", len(seen))
	}
}

func TestParticipantsImport_BadConcurrency(t *testing.T) {
	c := newCLI(t)
	_, err := c.run("participants", "import", "-", "--concurrency", "0")
	if ExitCode(err) != ExitValidation {
		t.Errorf("error = %v, want a validation error", err)
	}
}

func TestReadNames(t *testing.T) {
	names, err := readNames(strings.NewReader("Alice\n#skip\n \n Bob \n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 || names[0] != "Alice" || names[1] != "Bob" {
		t.Errorf("readNames() = %q, want [Alice Bob]", names)
	}
}

func TestGiftsStealLockAndReset(t *testing.T) {
	c := newCLI(t)
	c.mustRun("participants", "add", "Alice", "Bob", "Charlie")
	ps := c.participants()
	a, b, ch := ps[0].ID, ps[1].ID, ps[2].ID

	out := c.mustRun("gifts", "add", "Book", "--owner", strconv.Itoa(a))
	if !strings.Contains(out, "Added gift Book") {
		t.Errorf("gifts add output = %q", out)
	}
	gifts := c.gifts()
	if len(gifts) != 1 || gifts[0].Owner == nil || *gifts[0].Owner != a {
		t.Fatalf("gifts = %+v, want Book owned by %d", gifts, a)
	}
	id := gifts[0].ID

	steals := []struct {
		to   int
		want string
	}{
		{b, "Gift stolen successfully"},
		{ch, "Gift stolen successfully"},
		{a, "Gift stolen successfully - Gift is now locked after 3 steals"},
		{b, "Gift cannot be stolen - it is locked"},
	}
	for i, s := range steals {
		out := c.mustRun("gifts", "steal", id, strconv.Itoa(s.to))
		if strings.TrimSpace(out) != s.want {
			t.Errorf("steal %d output = %q, want %q", i+1, out, s.want)
		}
	}

	out = c.mustRun("gifts", "show", id)
	wantHistory := "History: #" + strconv.Itoa(a) + " -> #" + strconv.Itoa(b) + " -> #" + strconv.Itoa(ch)
	if !strings.Contains(out, wantHistory) || !strings.Contains(out, "[locked]") {
		t.Errorf("show output = %q, want %q and [locked]", out, wantHistory)
	}

	out = c.mustRun("gifts", "reset", id)
	if !strings.Contains(out, "Gift steal count reset to 0 and unlocked - can be stolen again!") {
		t.Errorf("reset output = %q", out)
	}
	out = c.mustRun("gifts", "reset", id)
	if !strings.Contains(out, "Gift already has 0 steals and is unlocked") {
		t.Errorf("second reset output = %q", out)
	}

	g := c.gifts()[0]
	if g.StealCount != 0 || g.Locked || len(g.History) != 3 {
		t.Errorf("after reset = %+v, want count 0 unlocked with history kept", g)
	}
}

func TestGiftsErrors(t *testing.T) {
	c := newCLI(t)
	c.mustRun("participants", "add", "Alice")

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"steal unknown gift", []string{"gifts", "steal", "nope", "5"}, ExitNotFound},
		{"steal non-numeric owner", []string{"gifts", "steal", "nope", "abc"}, ExitValidation},
		{"owner out of range", []string{"gifts", "add", "Lamp", "--owner", "101"}, ExitValidation},
		{"rename unknown gift", []string{"gifts", "rename", "nope", "Lamp"}, ExitNotFound},
		{"reset unknown gift", []string{"gifts", "reset", "nope"}, ExitNotFound},
		{"show unknown gift", []string{"gifts", "show", "nope"}, ExitNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.run(tt.args...)
			if got := ExitCode(err); got != tt.want {
				t.Errorf("ExitCode(%v) = %d, want %d", err, got, tt.want)
			}
		})
	}
}

func TestGiftsRename(t *testing.T) {
	c := newCLI(t)
	c.mustRun("gifts", "add", "Mug")
	id := c.gifts()[0].ID

	out := c.mustRun("gifts", "rename", id, "Big Mug")
	if strings.TrimSpace(out) != "Gift name updated successfully" {
		t.Errorf("rename output = %q", out)
	}
	if got := c.gifts()[0].Name; got != "Big Mug" {
		t.Errorf("Name = %q, want Big Mug", got)
	}
}

func TestGameFlow(t *testing.T) {
	c := newCLI(t)

	_, err := c.run("game", "start")
	if !errors.Is(err, errors.ErrNoParticipants) {
		t.Errorf("start with no participants error = %v, want ErrNoParticipants", err)
	}

	c.mustRun("participants", "add", "Alice", "Bob")

	_, err = c.run("game", "previous")
	if !errors.Is(err, errors.ErrNotStarted) {
		t.Errorf("previous before order error = %v, want ErrNotStarted", err)
	}

	out := c.mustRun("game", "start")
	if !strings.Contains(out, "Game started! It's ") {
		t.Errorf("start output = %q", out)
	}

	out = c.mustRun("game", "previous")
	if strings.TrimSpace(out) != "Already at the first turn - cannot go back further" {
		t.Errorf("previous at first output = %q", out)
	}

	out = c.mustRun("game", "next")
	if !strings.Contains(out, "Advanced to next turn") {
		t.Errorf("next output = %q", out)
	}

	out = c.mustRun("game", "previous")
	if !strings.Contains(out, "Went back to previous turn") {
		t.Errorf("previous output = %q", out)
	}

	c.mustRun("game", "next")
	out = c.mustRun("game", "next")
	if strings.TrimSpace(out) != "Game completed - all participants have had their turn" {
		t.Errorf("final next output = %q", out)
	}

	var status statusOutput
	if err := json.Unmarshal([]byte(c.mustRun("game", "status", "--json")), &status); err != nil {
		t.Fatal(err)
	}
	if status.Phase != world.PhaseCompleted || status.CurrentTurn != nil || status.TotalParticipants != 2 {
		t.Errorf("status = %+v, want completed with no current turn", status)
	}
}

func TestGameNextStartsGame(t *testing.T) {
	c := newCLI(t)
	c.mustRun("participants", "add", "Alice", "Bob")

	c.mustRun("game", "next")

	var status statusOutput
	if err := json.Unmarshal([]byte(c.mustRun("game", "status", "--json")), &status); err != nil {
		t.Fatal(err)
	}
	if status.Phase != world.PhaseActive || status.CurrentTurn == nil || *status.CurrentTurn != status.TurnOrder[0] {
		t.Errorf("status = %+v, want active on the first turn", status)
	}
}

func TestGameStatus_Text(t *testing.T) {
	c := newCLI(t)
	out := c.mustRun("game", "status")
	for _, want := range []string{"Phase:        registration", "Turn order:   (not set)", "Current turn: (none)"} {
		if !strings.Contains(out, want) {
			t.Errorf("status output missing %q:\n%s", want, out)
		}
	}
}

func TestReset(t *testing.T) {
	c := newCLI(t)
	c.mustRun("participants", "add", "Alice", "Bob")
	c.mustRun("gifts", "add", "Mug")

	_, err := c.run("reset")
	if ExitCode(err) != ExitValidation {
		t.Errorf("reset without --yes error = %v, want a validation error", err)
	}
	if n := len(c.participants()); n != 2 {
		t.Fatalf("participants after refused reset = %d, want 2", n)
	}

	out := c.mustRun("reset", "--yes")
	if !strings.Contains(out, "All data has been permanently deleted") ||
		!strings.Contains(out, "Deleted 2 participants and 1 gifts") {
		t.Errorf("reset output = %q", out)
	}
	if n := len(c.participants()); n != 0 {
		t.Errorf("participants after reset = %d, want 0", n)
	}
}

func TestExport(t *testing.T) {
	c := newCLI(t)
	c.mustRun("participants", "add", "Alice")
	c.mustRun("gifts", "add", "Mug")

	st, err := world.Decode([]byte(c.mustRun("export")), time.Now())
	if err != nil {
		t.Fatalf("Decode(export) error = %v", err)
	}
	if len(st.Participants) != 1 || len(st.Gifts) != 1 {
		t.Errorf("exported state = %+v", st)
	}

	out := c.mustRun("export", "--format", "yaml")
	for _, want := range []string{"participants:", "game_state:", "steal_count: 0"} {
		if !strings.Contains(out, want) {
			t.Errorf("yaml export missing %q:\n%s", want, out)
		}
	}

	file := filepath.Join(t.TempDir(), "backup.json")
	out = c.mustRun("export", "-o", file)
	if !strings.Contains(out, "Exported 1 participants and 1 gifts") {
		t.Errorf("export -o output = %q", out)
	}
	if _, err := os.Stat(file); err != nil {
		t.Errorf("backup not written: %v", err)
	}

	_, err = c.run("export", "--format", "xml")
	if ExitCode(err) != ExitValidation {
		t.Errorf("export xml error = %v, want a validation error", err)
	}
}

func TestHealth(t *testing.T) {
	c := newCLI(t)
	if out := c.mustRun("health"); !strings.Contains(out, "nothing written yet") {
		t.Errorf("health before any write = %q, want a not-stored notice", out)
	}
	c.mustRun("participants", "add", "Alice")

	var h game.Health
	if err := json.Unmarshal([]byte(c.mustRun("health", "--json")), &h); err != nil {
		t.Fatal(err)
	}
	if h.Backend != "file" || !h.Consistent || !h.Stored || h.Participants != 1 {
		t.Errorf("health = %+v", h)
	}

	out := c.mustRun("health", "--stats")
	if !strings.Contains(out, "op: read_all") {
		t.Errorf("health --stats output = %q, want read_all counters", out)
	}
}

func TestWatchNeedsFileBackend(t *testing.T) {
	c := newCLI(t)
	_, err := c.run("--backend", "memory", "watch")
	if ExitCode(err) != ExitValidation {
		t.Errorf("watch on memory backend error = %v, want a validation error", err)
	}
}

func TestInvalidBackend(t *testing.T) {
	c := newCLI(t)
	_, err := c.run("--backend", "floppy", "participants", "count")
	if err == nil || !strings.Contains(err.Error(), "store.backend") {
		t.Errorf("error = %v, want a store.backend validation failure", err)
	}
}

func TestConfigCommands(t *testing.T) {
	c := newCLI(t)

	out := c.mustRun("config", "path")
	if filepath.Base(strings.TrimSpace(out)) != "config.yaml" {
		t.Errorf("config path = %q", out)
	}

	out = c.mustRun("config", "set", "retry.max_retries", "7")
	if !strings.Contains(out, "Set retry.max_retries = 7") {
		t.Errorf("config set output = %q", out)
	}
	data, err := os.ReadFile(strings.TrimSpace(c.mustRun("config", "path")))
	if err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if !strings.Contains(string(data), "max_retries: 7") {
		t.Errorf("config file = %s, want max_retries: 7", data)
	}

	if _, err := c.run("config", "set", "retry.max_retries", "500"); err == nil {
		t.Error("expected error for max_retries above the limit")
	}
	if _, err := c.run("config", "set", "no.such.key", "1"); err == nil {
		t.Error("expected error for an unknown key")
	}
	if _, err := c.run("config", "init"); err == nil {
		t.Error("expected error when the config file already exists")
	}
}

func TestConfigInit(t *testing.T) {
	c := newCLI(t)
	out := c.mustRun("config", "init")
	if !strings.Contains(out, "Created config file at") {
		t.Errorf("config init output = %q", out)
	}
	out = c.mustRun("config", "show")
	if !strings.Contains(out, "backend: file") {
		t.Errorf("config show output = %q", out)
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		key     string
		value   string
		want    any
		wantErr bool
	}{
		{"store.s3.conditional_writes", "false", false, false},
		{"store.s3.use_path_style", "yes", nil, true},
		{"retry.max_retries", "3", 3, false},
		{"retry.max_retries", "-1", nil, true},
		{"retry.max_retries", "three", nil, true},
		{"retry.base_delay", "250ms", "250ms", false},
		{"retry.base_delay", "soon", nil, true},
		{"game.seed", "42", uint64(42), false},
		{"logging.level", "debug", "DEBUG", false},
		{"store.backend", "sqlite", "sqlite", false},
		{"tui.theme", "dark", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			got, err := parseValue(tt.key, tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseValue() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("parseValue() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"validation", errors.NewValidationError("bad"), ExitValidation},
		{"not found", errors.NewNotFoundError("gift", "x"), ExitNotFound},
		{"capacity", errors.NewCapacityError("participants", 100), ExitCapacity},
		{"game", errors.NewGameError("previous", errors.ErrNotStarted), ExitConflict},
		{"unavailable", errors.NewUnavailableError(3, time.Second, nil), ExitUnavailable},
		{"store", errors.NewStoreError("read", errors.New("disk")), ExitUnavailable},
		{"plain", errors.New("boom"), ExitInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}
