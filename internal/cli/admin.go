package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/coremarket/broker/internal/broker"
)

// NewReserveCommand creates the reserve command.
func NewReserveCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reserve <schedule-json>",
		Short: "Reserve a core for a fixed workload",
		Long: `Reserve a core for a fixed workload, exempt from the sale.

The schedule is a JSON array of items binding part masks to
assignments. Reserved cores occupy the lowest indices at every
rotation.

Example:
  broker reserve '[{"mask":"ffffffffffffffffffff","assignment":{"kind":"pool"}}]'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReserve(cmd.Context(), rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runReserve(ctx context.Context, opts *RootOptions, scheduleArg string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	var sched broker.Schedule
	if err := json.Unmarshal([]byte(scheduleArg), &sched); err != nil {
		return WrapExitError(ExitCommandError, "invalid schedule JSON", err)
	}

	s, err := openSession(ctx, opts)
	if err != nil {
		return err
	}
	defer s.close()

	index, err := s.broker.Reserve(s.caller(), sched)
	if err != nil {
		return reportRejection(f, err)
	}
	if err := s.commit(ctx); err != nil {
		return err
	}

	if opts.Format == "json" {
		return f.Success(map[string]int{"index": index})
	}
	return f.Success(fmt.Sprintf("Reserved at index %d", index))
}

// NewUnreserveCommand creates the unreserve command.
func NewUnreserveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "unreserve <index>",
		Short:         "Cancel a reservation",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			index, err := strconv.Atoi(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid index", err)
			}
			s, err := openSession(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer s.close()
			if err := s.broker.Unreserve(s.caller(), index); err != nil {
				return reportRejection(f, err)
			}
			if err := s.commit(cmd.Context()); err != nil {
				return err
			}
			return f.Success(fmt.Sprintf("Cancelled reservation %d", index))
		},
	}
}

// NewLeaseCommand creates the lease command group.
func NewLeaseCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lease",
		Short: "Manage fixed-term task leases",
	}

	cmd.AddCommand(newLeaseSetCommand(rootOpts))
	cmd.AddCommand(newLeaseSwapCommand(rootOpts))

	return cmd
}

func newLeaseSetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "set <task> <until>",
		Short:         "Grant a task a core until the given timeslice",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			task, err := parseTask(args[0])
			if err != nil {
				return err
			}
			until, err := strconv.ParseUint(args[1], 10, 32)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid timeslice", err)
			}
			s, err := openSession(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer s.close()
			if err := s.broker.SetLease(s.caller(), task, broker.Timeslice(until)); err != nil {
				return reportRejection(f, err)
			}
			if err := s.commit(cmd.Context()); err != nil {
				return err
			}
			return f.Success(fmt.Sprintf("Leased to task %d until timeslice %d", task, until))
		},
	}
}

func newLeaseSwapCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "swap <task> <other>",
		Short:         "Swap the expiries of two leases",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			task, err := parseTask(args[0])
			if err != nil {
				return err
			}
			other, err := parseTask(args[1])
			if err != nil {
				return err
			}
			s, err := openSession(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer s.close()
			if err := s.broker.SwapLeases(s.caller(), task, other); err != nil {
				return reportRejection(f, err)
			}
			if err := s.commit(cmd.Context()); err != nil {
				return err
			}
			return f.Success(fmt.Sprintf("Swapped leases of tasks %d and %d", task, other))
		},
	}
}

// NewCoreCountCommand creates the core-count command group.
func NewCoreCountCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "core-count",
		Short: "Adjust the number of schedulable cores",
	}

	cmd.AddCommand(newCoreCountSubcommand(rootOpts, "request",
		"Request a new core count from the capacity provider",
		func(s *session, count uint16) error { return s.broker.RequestCoreCount(s.caller(), count) }))
	cmd.AddCommand(newCoreCountSubcommand(rootOpts, "notify",
		"Record the core count the capacity provider granted",
		func(s *session, count uint16) error { return s.broker.NotifyCoreCount(s.caller(), count) }))

	return cmd
}

func newCoreCountSubcommand(rootOpts *RootOptions, verb, short string, op func(*session, uint16) error) *cobra.Command {
	return &cobra.Command{
		Use:           verb + " <count>",
		Short:         short,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			count, err := strconv.ParseUint(args[0], 10, 16)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid core count", err)
			}
			s, err := openSession(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer s.close()
			if err := op(s, uint16(count)); err != nil {
				return reportRejection(f, err)
			}
			if err := s.commit(cmd.Context()); err != nil {
				return err
			}
			return f.Success(fmt.Sprintf("Core count %d queued, applied at the next tick", count))
		},
	}
}

// NewRevenueCommand creates the revenue command.
func NewRevenueCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "revenue <until-block> <amount>",
		Short: "Record on-demand revenue for distribution",
		Long: `Record revenue collected from the on-demand pool.

The amount covers blocks up to (excluding) the given block and is
split between pool contributors and the system at the next tick.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			until, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid block number", err)
			}
			amount, err := parseBalance(args[1])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid amount", err)
			}
			s, err := openSession(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer s.close()
			if err := s.broker.NotifyRevenue(s.caller(), until, amount); err != nil {
				return reportRejection(f, err)
			}
			if err := s.commit(cmd.Context()); err != nil {
				return err
			}
			return f.Success(fmt.Sprintf("Revenue %s queued, distributed at the next tick", formatAmount(amount)))
		},
	}
}

// CreditOptions holds flags for the credit command.
type CreditOptions struct {
	*RootOptions
	Beneficiary string
}

// NewCreditCommand creates the credit command.
func NewCreditCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CreditOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "credit <amount>",
		Short:         "Buy on-demand credit for an account",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCredit(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Beneficiary, "beneficiary", "", "account credited (defaults to the caller)")

	return cmd
}

func runCredit(ctx context.Context, opts *CreditOptions, amountArg string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	amount, err := parseBalance(amountArg)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid amount", err)
	}

	s, err := openSession(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.close()

	beneficiary := s.caller()
	if opts.Beneficiary != "" {
		beneficiary = broker.AccountId(opts.Beneficiary)
	}

	if err := s.broker.PurchaseCredit(s.caller(), amount, beneficiary); err != nil {
		return reportRejection(f, err)
	}
	if err := s.commit(ctx); err != nil {
		return err
	}
	return f.Success(fmt.Sprintf("Credited %s to %s", formatAmount(amount), beneficiary))
}
