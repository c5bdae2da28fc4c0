package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/coremarket/broker/internal/broker"
)

// NewRenewCommand creates the renew command.
func NewRenewCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "renew <core>",
		Short: "Renew a core's expiring commitment",
		Long: `Renew a core's expiring commitment for the upcoming region.

The workload a finally-assigned core runs can be re-purchased at the
recorded price plus the configured bump, outside the open sale. The
renewed workload may land on a different core.

Example:
  broker renew 0 --as alice`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRenew(cmd.Context(), rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runRenew(ctx context.Context, opts *RootOptions, coreArg string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	core, err := parseCore(coreArg)
	if err != nil {
		return err
	}

	s, err := openSession(ctx, opts)
	if err != nil {
		return err
	}
	defer s.close()

	newCore, err := s.broker.Renew(s.caller(), core)
	if err != nil {
		return reportRejection(f, err)
	}
	if err := s.commit(ctx); err != nil {
		return err
	}

	if opts.Format == "json" {
		return f.Success(notificationViews(s.events.pending))
	}
	return f.Success(fmt.Sprintf("Renewed onto core %d", newCore))
}

// NewAutoRenewCommand creates the autorenew command group.
func NewAutoRenewCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "autorenew",
		Short: "Manage standing renewal intents",
	}

	cmd.AddCommand(newAutoRenewEnableCommand(rootOpts))
	cmd.AddCommand(newAutoRenewDisableCommand(rootOpts))
	cmd.AddCommand(newRenewalDropCommand(rootOpts))

	return cmd
}

func newAutoRenewEnableCommand(rootOpts *RootOptions) *cobra.Command {
	var when uint32

	cmd := &cobra.Command{
		Use:           "enable <core> <task>",
		Short:         "Renew a core's commitment automatically at every rotation",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAutoRenewEnable(cmd.Context(), rootOpts, args, cmd, when)
		},
	}

	cmd.Flags().Uint32Var(&when, "when", 0, "begin timeslice of the renewal record (found automatically when omitted)")

	return cmd
}

func runAutoRenewEnable(ctx context.Context, opts *RootOptions, args []string, cmd *cobra.Command, when uint32) error {
	f := newFormatter(opts, cmd)

	core, err := parseCore(args[0])
	if err != nil {
		return err
	}
	task, err := parseTask(args[1])
	if err != nil {
		return err
	}
	var expectedWhen *broker.Timeslice
	if cmd.Flags().Changed("when") {
		w := broker.Timeslice(when)
		expectedWhen = &w
	}

	s, err := openSession(ctx, opts)
	if err != nil {
		return err
	}
	defer s.close()

	if err := s.broker.EnableAutoRenew(s.caller(), core, task, expectedWhen); err != nil {
		return reportRejection(f, err)
	}
	if err := s.commit(ctx); err != nil {
		return err
	}

	if opts.Format == "json" {
		return f.Success(notificationViews(s.events.pending))
	}
	return f.Success(fmt.Sprintf("Auto-renew enabled for core %d task %d", core, task))
}

func newAutoRenewDisableCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "disable <core> <task>",
		Short:         "Withdraw a standing renewal intent",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAutoRenewDisable(cmd.Context(), rootOpts, args, cmd)
		},
	}
}

func runAutoRenewDisable(ctx context.Context, opts *RootOptions, args []string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	core, err := parseCore(args[0])
	if err != nil {
		return err
	}
	task, err := parseTask(args[1])
	if err != nil {
		return err
	}

	s, err := openSession(ctx, opts)
	if err != nil {
		return err
	}
	defer s.close()

	if err := s.broker.DisableAutoRenew(s.caller(), core, task); err != nil {
		return reportRejection(f, err)
	}
	if err := s.commit(ctx); err != nil {
		return err
	}
	return f.Success(fmt.Sprintf("Auto-renew disabled for core %d task %d", core, task))
}

func newRenewalDropCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "drop <core> <when>",
		Short:         "Drop a lapsed renewal record",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRenewalDrop(cmd.Context(), rootOpts, args, cmd)
		},
	}
}

func runRenewalDrop(ctx context.Context, opts *RootOptions, args []string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	core, err := parseCore(args[0])
	if err != nil {
		return err
	}
	when, err := strconv.ParseUint(args[1], 10, 32)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid timeslice", err)
	}

	s, err := openSession(ctx, opts)
	if err != nil {
		return err
	}
	defer s.close()

	if err := s.broker.DropRenewal(core, broker.Timeslice(when)); err != nil {
		return reportRejection(f, err)
	}
	if err := s.commit(ctx); err != nil {
		return err
	}
	return f.Success("Dropped")
}

func parseCore(s string) (broker.CoreIndex, error) {
	v, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, WrapExitError(ExitCommandError, "invalid core index", err)
	}
	return broker.CoreIndex(v), nil
}

func parseTask(s string) (broker.TaskId, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, WrapExitError(ExitCommandError, "invalid task id", err)
	}
	return broker.TaskId(v), nil
}
