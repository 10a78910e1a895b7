package cli

import (
	"iter"

	"github.com/spf13/cobra"
	"github.com/syntrixbase/chatstore/internal/statestore"
)

// NewSessionCommand creates the session command.
func NewSessionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "session",
		Short: "Print the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withStore(func(s *statestore.Store) error {
				session, err := s.GetSession(cmd.Context())
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), session)
			})
		},
	}
}

// NewRoomsCommand creates the rooms command.
func NewRoomsCommand(rootOpts *RootOptions) *cobra.Command {
	var stripped bool

	cmd := &cobra.Command{
		Use:   "rooms",
		Short: "List room summaries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withStore(func(s *statestore.Store) error {
				seq := s.GetRoomInfos(cmd.Context())
				if stripped {
					seq = s.GetStrippedRoomInfos(cmd.Context())
				}
				return writeSeq(cmd, seq)
			})
		},
	}
	cmd.Flags().BoolVar(&stripped, "stripped", false, "list rooms known only through invites")
	return cmd
}

// NewMembersCommand creates the members command.
func NewMembersCommand(rootOpts *RootOptions) *cobra.Command {
	var invited bool

	cmd := &cobra.Command{
		Use:   "members <room-id>",
		Short: "List joined (or invited) users of a room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withStore(func(s *statestore.Store) error {
				seq := s.GetJoinedUserIDs(cmd.Context(), args[0])
				if invited {
					seq = s.GetInvitedUserIDs(cmd.Context(), args[0])
				}
				return writeSeq(cmd, seq)
			})
		},
	}
	cmd.Flags().BoolVar(&invited, "invited", false, "list invited instead of joined users")
	return cmd
}

// NewStateCommand creates the state command.
func NewStateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "state <room-id> <event-type> [state-key]",
		Short: "Print room state events",
		Long: `Print the state event of the given type and state key, or every state
event of that type when no state key is given. Use "" for the empty key.`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withStore(func(s *statestore.Store) error {
				if len(args) == 3 {
					ev, err := s.GetStateEvent(cmd.Context(), args[0], args[1], args[2])
					if err != nil {
						return err
					}
					return writeJSON(cmd.OutOrStdout(), ev)
				}
				return writeSeq(cmd, s.GetStateEvents(cmd.Context(), args[0], args[1]))
			})
		},
	}
}

// writeSeq prints a sequence as a JSON array; an empty sequence prints [].
func writeSeq[T any](cmd *cobra.Command, seq iter.Seq2[T, error]) error {
	items, err := statestore.Collect(seq)
	if err != nil {
		return err
	}
	if items == nil {
		items = []T{}
	}
	return writeJSON(cmd.OutOrStdout(), items)
}
