package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/giftswap/internal/errors"
	"github.com/Iron-Ham/giftswap/internal/world"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the whole game document",
	Long: `Write the whole game document to stdout or a file. The JSON form is the
document the file backend stores and can be used as a backup.`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

var (
	exportFormat string // json or yaml
	exportOutput string // Destination file
)

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "json", "Output format: json or yaml")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Write to a file instead of stdout")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	encode, err := exportEncoder(exportFormat)
	if err != nil {
		return err
	}

	svc, done, err := openGame(cmd)
	if err != nil {
		return err
	}
	defer done()

	st, err := svc.Snapshot(cmd.Context())
	if err != nil {
		return err
	}
	data, err := encode(st)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	if exportOutput == "" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(exportOutput, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", exportOutput, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d participants and %d gifts to %s\n",
		len(st.Participants), len(st.Gifts), exportOutput)
	return nil
}

func exportEncoder(format string) (func(*world.State) ([]byte, error), error) {
	switch format {
	case "json":
		return world.Encode, nil
	case "yaml", "yml":
		return func(st *world.State) ([]byte, error) {
			return yaml.Marshal(st)
		}, nil
	default:
		return nil, errors.NewValidationError("format must be json or yaml").
			WithField("format").WithValue(format)
	}
}

// writeYAML writes v as a YAML document.
func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
