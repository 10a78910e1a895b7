// Package cli implements the chatstore operator commands.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/syntrixbase/chatstore/internal/config"
	"github.com/syntrixbase/chatstore/internal/logging"
	"github.com/syntrixbase/chatstore/internal/statestore"
)

// RootOptions holds global flags and the configuration they resolve to.
type RootOptions struct {
	ConfigPath string
	StorePath  string

	cfg *config.Config
}

// NewRootCommand creates the root command for the chatstore CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "chatstore",
		Short: "Inspect and move chat client state stores",
		Long: `chatstore reads the on-disk state store of a chat client: the session,
rooms, memberships and room state. Stores can be exported to JSON lines and
imported into a fresh directory.`,
		SilenceUsage:  true,
		SilenceErrors: true, // main prints the error
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return logging.Shutdown()
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", config.DefaultPath, "config file")
	cmd.PersistentFlags().StringVarP(&opts.StorePath, "path", "p", "", "store directory (overrides store.path)")

	cmd.AddCommand(NewSessionCommand(opts))
	cmd.AddCommand(NewRoomsCommand(opts))
	cmd.AddCommand(NewMembersCommand(opts))
	cmd.AddCommand(NewStateCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))

	return cmd
}

func (o *RootOptions) load(cmd *cobra.Command) error {
	cfg, err := config.LoadConfig(o.ConfigPath)
	if err != nil {
		return err
	}
	if o.StorePath != "" {
		cfg.Store.Path = o.StorePath
		cfg.Store.Ephemeral = false
	}
	// The CLI is only useful on a store that outlives it.
	if cfg.Store.Ephemeral {
		return fmt.Errorf("store.ephemeral is set; the CLI needs a store directory")
	}
	if err := logging.Initialize(cfg.Logging, cmd.ErrOrStderr()); err != nil {
		return err
	}
	o.cfg = cfg
	return nil
}

// openStore opens the configured store. The caller closes it.
func (o *RootOptions) openStore() (*statestore.Store, error) {
	if o.cfg == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	store, err := statestore.New(o.cfg.Store, statestore.WithLogger(slog.Default()))
	if err != nil {
		return nil, fmt.Errorf("failed to open store at %s: %w", o.cfg.Store.Path, err)
	}
	return store, nil
}

// withStore opens the store, runs fn and closes the store, reporting the
// first error.
func (o *RootOptions) withStore(fn func(*statestore.Store) error) (err error) {
	store, err := o.openStore()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(store)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
