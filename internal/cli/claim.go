package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/coremarket/broker/internal/broker"
)

// ClaimOptions holds flags for the claim command.
type ClaimOptions struct {
	*RootOptions
	Max uint32
}

// NewClaimCommand creates the claim command.
func NewClaimCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ClaimOptions{RootOptions: rootOpts}
	ref := &regionRef{}

	cmd := &cobra.Command{
		Use:   "claim",
		Short: "Claim revenue earned by a pooled region",
		Long: `Claim the revenue a pooled region earned from the on-demand pool.

Each call walks at most --max timeslices and pays out the region's
share of each resolved one. The printed cursor resumes where the walk
stopped; re-run with it until the claim reports no remainder.

Example:
  broker claim --begin 3 --core 0 --max 10 --as payee`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClaim(cmd.Context(), opts, *ref, cmd)
		},
	}

	addRegionFlags(cmd, ref)
	cmd.Flags().Uint32Var(&opts.Max, "max", 10, "maximum timeslices to walk")

	return cmd
}

func runClaim(ctx context.Context, opts *ClaimOptions, ref regionRef, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	id, err := ref.id()
	if err != nil {
		return err
	}

	s, err := openSession(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.close()

	next, err := s.broker.ClaimRevenue(s.caller(), id, broker.Timeslice(opts.Max))
	if err != nil {
		return reportRejection(f, err)
	}
	if err := s.commit(ctx); err != nil {
		return err
	}

	if opts.Format == "json" {
		return f.Success(notificationViews(s.events.pending))
	}
	if next != nil {
		return f.Success(fmt.Sprintf("Claim incomplete, resume with:\n  %s", formatRegionId(*next)))
	}
	return f.Success("Claim complete")
}

// NewPoolCommand creates the pool housekeeping command group.
func NewPoolCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pool",
		Short: "Inspect and clean up the on-demand pool",
	}

	cmd.AddCommand(newPoolDropContributionCommand(rootOpts))
	cmd.AddCommand(newPoolDropHistoryCommand(rootOpts))

	return cmd
}

func newPoolDropContributionCommand(rootOpts *RootOptions) *cobra.Command {
	ref := &regionRef{}

	cmd := &cobra.Command{
		Use:           "drop-contribution",
		Short:         "Drop a timed-out pool contribution",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			id, err := ref.id()
			if err != nil {
				return err
			}
			s, err := openSession(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer s.close()
			if err := s.broker.DropContribution(id); err != nil {
				return reportRejection(f, err)
			}
			if err := s.commit(cmd.Context()); err != nil {
				return err
			}
			return f.Success("Dropped")
		},
	}
	addRegionFlags(cmd, ref)
	return cmd
}

func newPoolDropHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "drop-history <timeslice>",
		Short:         "Drop a timed-out pool history record",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			when, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid timeslice", err)
			}
			s, err := openSession(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer s.close()
			if err := s.broker.DropHistory(broker.Timeslice(when)); err != nil {
				return reportRejection(f, err)
			}
			if err := s.commit(cmd.Context()); err != nil {
				return err
			}
			return f.Success("Dropped")
		},
	}
}
