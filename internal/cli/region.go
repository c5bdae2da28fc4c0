package cli

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/coremarket/broker/internal/broker"
	"github.com/coremarket/broker/internal/mask"
)

// regionRef names one region through flags; the mask defaults to the
// complete core so unsplit regions need only --begin and --core.
type regionRef struct {
	Begin uint32
	Core  uint16
	Mask  string
}

func addRegionFlags(cmd *cobra.Command, r *regionRef) {
	cmd.Flags().Uint32Var(&r.Begin, "begin", 0, "region begin timeslice")
	cmd.Flags().Uint16Var(&r.Core, "core", 0, "region core index")
	cmd.Flags().StringVar(&r.Mask, "mask", mask.Complete().String(), "region part mask (20 hex digits)")
	_ = cmd.MarkFlagRequired("begin")
}

func (r regionRef) id() (broker.RegionId, error) {
	m, err := mask.Parse(r.Mask)
	if err != nil {
		return broker.RegionId{}, WrapExitError(ExitCommandError, "invalid --mask", err)
	}
	return broker.RegionId{
		Begin: broker.Timeslice(r.Begin),
		Core:  broker.CoreIndex(r.Core),
		Mask:  m,
	}, nil
}

// NewRegionCommand creates the region command group.
func NewRegionCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "region",
		Short: "Manipulate owned regions",
	}

	cmd.AddCommand(newRegionListCommand(rootOpts))
	cmd.AddCommand(newRegionTransferCommand(rootOpts))
	cmd.AddCommand(newRegionPartitionCommand(rootOpts))
	cmd.AddCommand(newRegionInterlaceCommand(rootOpts))
	cmd.AddCommand(newRegionAssignCommand(rootOpts))
	cmd.AddCommand(newRegionPoolCommand(rootOpts))
	cmd.AddCommand(newRegionDropCommand(rootOpts))

	return cmd
}

// regionRow pairs a region id with its record for listing.
type regionRow struct {
	Id     broker.RegionId     `json:"id"`
	Record broker.RegionRecord `json:"record"`
}

func newRegionListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List all regions",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegionList(cmd.Context(), rootOpts, cmd)
		},
	}
}

func runRegionList(ctx context.Context, opts *RootOptions, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	s, err := openSession(ctx, opts)
	if err != nil {
		return err
	}
	defer s.close()

	rows := make([]regionRow, 0, len(s.broker.Regions))
	for id, rec := range s.broker.Regions {
		rows = append(rows, regionRow{Id: id, Record: *rec})
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i].Id, rows[j].Id
		if a.Begin != b.Begin {
			return a.Begin < b.Begin
		}
		if a.Core != b.Core {
			return a.Core < b.Core
		}
		return a.Mask.String() < b.Mask.String()
	})

	if opts.Format == "json" {
		return f.Success(rows)
	}

	if len(rows) == 0 {
		return f.Success("No regions")
	}
	var b strings.Builder
	for i, row := range rows {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "begin=%d core=%d mask=%s end=%d owner=%s",
			row.Id.Begin, row.Id.Core, row.Id.Mask, row.Record.End, row.Record.Owner)
		if row.Record.Paid != nil {
			fmt.Fprintf(&b, " paid=%s", formatAmount(*row.Record.Paid))
		}
	}
	return f.Success(b.String())
}

func newRegionTransferCommand(rootOpts *RootOptions) *cobra.Command {
	ref := &regionRef{}

	cmd := &cobra.Command{
		Use:           "transfer <new-owner>",
		Short:         "Transfer a region to another account",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegionOp(cmd.Context(), rootOpts, cmd, *ref, func(s *session, id broker.RegionId) (string, error) {
				if err := s.broker.Transfer(s.caller(), id, broker.AccountId(args[0])); err != nil {
					return "", err
				}
				return fmt.Sprintf("Transferred to %s", args[0]), nil
			})
		},
	}
	addRegionFlags(cmd, ref)
	return cmd
}

func newRegionPartitionCommand(rootOpts *RootOptions) *cobra.Command {
	ref := &regionRef{}

	cmd := &cobra.Command{
		Use:   "partition <pivot>",
		Short: "Split a region in two on the time axis",
		Long: `Split a region in two on the time axis.

The pivot is an offset in timeslices from the region's begin, strictly
inside its span. Both pieces lose renewal eligibility.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			pivot, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid pivot", err)
			}
			return runRegionOp(cmd.Context(), rootOpts, cmd, *ref, func(s *session, id broker.RegionId) (string, error) {
				first, second, err := s.broker.Partition(s.caller(), id, broker.Timeslice(pivot))
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("Split into:\n  %s\n  %s", formatRegionId(first), formatRegionId(second)), nil
			})
		},
	}
	addRegionFlags(cmd, ref)
	return cmd
}

func newRegionInterlaceCommand(rootOpts *RootOptions) *cobra.Command {
	ref := &regionRef{}
	var pick string

	cmd := &cobra.Command{
		Use:   "interlace",
		Short: "Split a region in two on the part axis",
		Long: `Split a region in two on the part axis.

The --pick mask selects the parts of the first piece; it must be a
proper non-empty subset of the region's mask. The second piece keeps
the remainder.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			pickMask, err := mask.Parse(pick)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid --pick", err)
			}
			return runRegionOp(cmd.Context(), rootOpts, cmd, *ref, func(s *session, id broker.RegionId) (string, error) {
				first, second, err := s.broker.Interlace(s.caller(), id, pickMask)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("Split into:\n  %s\n  %s", formatRegionId(first), formatRegionId(second)), nil
			})
		},
	}
	addRegionFlags(cmd, ref)
	cmd.Flags().StringVar(&pick, "pick", "", "mask of the parts for the first piece")
	_ = cmd.MarkFlagRequired("pick")
	return cmd
}

func newRegionAssignCommand(rootOpts *RootOptions) *cobra.Command {
	ref := &regionRef{}
	var provisional bool

	cmd := &cobra.Command{
		Use:   "assign <task>",
		Short: "Assign a region's capacity to a task",
		Long: `Assign a region's capacity to a task.

A final assignment consumes the region and makes the commitment
renewal-eligible; a provisional one keeps the region reassignable.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			task, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid task id", err)
			}
			return runRegionOp(cmd.Context(), rootOpts, cmd, *ref, func(s *session, id broker.RegionId) (string, error) {
				if err := s.broker.Assign(s.caller(), id, broker.TaskId(task), finalityOf(provisional)); err != nil {
					return "", err
				}
				return fmt.Sprintf("Assigned to task %d", task), nil
			})
		},
	}
	addRegionFlags(cmd, ref)
	cmd.Flags().BoolVar(&provisional, "provisional", false, "keep the region reassignable")
	return cmd
}

func newRegionPoolCommand(rootOpts *RootOptions) *cobra.Command {
	ref := &regionRef{}
	var provisional bool

	cmd := &cobra.Command{
		Use:           "pool <payee>",
		Short:         "Contribute a region's capacity to the on-demand pool",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegionOp(cmd.Context(), rootOpts, cmd, *ref, func(s *session, id broker.RegionId) (string, error) {
				if err := s.broker.Pool(s.caller(), id, broker.AccountId(args[0]), finalityOf(provisional)); err != nil {
					return "", err
				}
				return fmt.Sprintf("Pooled for %s", args[0]), nil
			})
		},
	}
	addRegionFlags(cmd, ref)
	cmd.Flags().BoolVar(&provisional, "provisional", false, "keep the region reassignable")
	return cmd
}

func newRegionDropCommand(rootOpts *RootOptions) *cobra.Command {
	ref := &regionRef{}

	cmd := &cobra.Command{
		Use:           "drop",
		Short:         "Drop an expired region record",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegionOp(cmd.Context(), rootOpts, cmd, *ref, func(s *session, id broker.RegionId) (string, error) {
				if err := s.broker.DropRegion(id); err != nil {
					return "", err
				}
				return "Dropped", nil
			})
		},
	}
	addRegionFlags(cmd, ref)
	return cmd
}

func finalityOf(provisional bool) broker.Finality {
	if provisional {
		return broker.Provisional
	}
	return broker.Final
}

// runRegionOp is the shared load-operate-commit cycle for the region
// subcommands: op returns the text summary; JSON output reports the
// emitted notifications instead.
func runRegionOp(ctx context.Context, opts *RootOptions, cmd *cobra.Command, ref regionRef, op func(*session, broker.RegionId) (string, error)) error {
	f := newFormatter(opts, cmd)

	id, err := ref.id()
	if err != nil {
		return err
	}

	s, err := openSession(ctx, opts)
	if err != nil {
		return err
	}
	defer s.close()

	summary, err := op(s, id)
	if err != nil {
		return reportRejection(f, err)
	}
	if err := s.commit(ctx); err != nil {
		return err
	}

	if opts.Format == "json" {
		return f.Success(notificationViews(s.events.pending))
	}
	return f.Success(summary)
}

// notificationView pairs a notification's kind with its payload so JSON
// consumers can dispatch on it.
type notificationView struct {
	Kind    string              `json:"kind"`
	Payload broker.Notification `json:"payload"`
}

func notificationViews(ns []broker.Notification) []notificationView {
	views := make([]notificationView, len(ns))
	for i, n := range ns {
		views[i] = notificationView{Kind: n.Kind(), Payload: n}
	}
	return views
}
