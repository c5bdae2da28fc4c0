package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// TickOptions holds flags for the tick command.
type TickOptions struct {
	*RootOptions
	Advance uint64
}

// NewTickCommand creates the tick command.
func NewTickCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TickOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "tick",
		Short: "Advance the block counter and run periodic work",
		Long: `Advance the block counter and run the periodic work loop.

The tick applies queued core-count changes, distributes queued
revenue, commits elapsed timeslices' schedules and rotates the sale
when its region begins.

Example:
  broker tick --advance 80`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTick(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().Uint64Var(&opts.Advance, "advance", 1, "blocks to advance before ticking")

	return cmd
}

func runTick(ctx context.Context, opts *TickOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	s, err := openSession(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.close()

	s.clock.Advance(opts.Advance)
	if err := s.broker.Tick(); err != nil {
		return reportRejection(f, err)
	}
	if err := s.commit(ctx); err != nil {
		return err
	}

	if opts.Format == "json" {
		return f.Success(map[string]interface{}{
			"block":  s.clock.Block,
			"events": notificationViews(s.events.pending),
		})
	}
	return f.Success(fmt.Sprintf("Ticked at block %d, %d events", s.clock.Block, len(s.events.pending)))
}
