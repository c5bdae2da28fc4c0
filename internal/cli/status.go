package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/coremarket/broker/internal/broker"
)

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "status",
		Short:         "Show the broker's current state summary",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), rootOpts, cmd)
		},
	}
}

// statusView is the JSON shape of the status command.
type statusView struct {
	Block     uint64               `json:"block"`
	Timeslice broker.Timeslice     `json:"timeslice"`
	Status    *broker.StatusRecord `json:"status,omitempty"`
	Regions   int                  `json:"regions"`
	Sale      bool                 `json:"sale_active"`
}

func runStatus(ctx context.Context, opts *RootOptions, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	s, err := openSession(ctx, opts)
	if err != nil {
		return err
	}
	defer s.close()

	view := statusView{
		Block:     s.clock.Block,
		Timeslice: broker.Timeslice(s.clock.Block / s.cfg.TimeslicePeriod),
		Status:    s.broker.Status,
		Regions:   len(s.broker.Regions),
		Sale:      s.broker.Sale != nil,
	}

	if opts.Format == "json" {
		return f.Success(view)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Block %d (timeslice %d)\n", view.Block, view.Timeslice)
	if view.Status == nil {
		b.WriteString("Sales not started")
		return f.Success(b.String())
	}
	fmt.Fprintf(&b, "Cores: %d\n", view.Status.CoreCount)
	fmt.Fprintf(&b, "Committed through timeslice %d\n", view.Status.LastCommittedTimeslice)
	fmt.Fprintf(&b, "Pool: %d private / %d system parts\n",
		view.Status.PrivatePoolSize, view.Status.SystemPoolSize)
	fmt.Fprintf(&b, "Regions: %d", view.Regions)
	if !view.Sale {
		b.WriteString("\nNo sale in progress")
	}
	return f.Success(b.String())
}
