package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/syntrixbase/chatstore/internal/statestore"
)

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every record of the store as JSON lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", out, err)
				}
				defer f.Close()
				w = f
			}

			return rootOpts.withStore(func(s *statestore.Store) error {
				n, err := s.Export(cmd.Context(), w)
				if err != nil {
					return err
				}
				if f, ok := w.(*os.File); ok && out != "" {
					if err := f.Sync(); err != nil {
						return fmt.Errorf("failed to sync %s: %w", out, err)
					}
				}
				slog.Info("Exported store", "records", n, "out", out)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	return cmd
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	var in string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load JSON lines written by export into the store",
		Long: `Load records written by export into the store as one atomic commit.
Joined and invited indexes are rebuilt from the member records.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if in != "" {
				f, err := os.Open(in)
				if err != nil {
					return fmt.Errorf("failed to open %s: %w", in, err)
				}
				defer f.Close()
				r = f
			}

			return rootOpts.withStore(func(s *statestore.Store) error {
				n, err := s.Import(cmd.Context(), r)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), map[string]int{"imported": n})
			})
		},
	}
	cmd.Flags().StringVarP(&in, "in", "i", "", "input file (default stdin)")
	return cmd
}
