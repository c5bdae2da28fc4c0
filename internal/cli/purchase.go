package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coremarket/broker/internal/broker"
)

// NewPurchaseCommand creates the purchase command.
func NewPurchaseCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "purchase <price-limit>",
		Short: "Buy one core for the upcoming region",
		Long: `Buy one core of the sale's upcoming region at the current price.

The purchase is rejected rather than executed if the current price
exceeds the given limit.

Example:
  broker purchase 500000000 --as alice`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPurchase(cmd.Context(), rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runPurchase(ctx context.Context, opts *RootOptions, limitArg string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	limit, err := parseBalance(limitArg)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid price limit", err)
	}

	s, err := openSession(ctx, opts)
	if err != nil {
		return err
	}
	defer s.close()

	id, err := s.broker.Purchase(s.caller(), limit)
	if err != nil {
		return reportRejection(f, err)
	}
	if err := s.commit(ctx); err != nil {
		return err
	}

	if opts.Format == "json" {
		return f.Success(map[string]interface{}{"region_id": id})
	}
	return f.Success(fmt.Sprintf("Purchased %s", formatRegionId(id)))
}

// formatRegionId renders a region id the way the region flags accept it.
func formatRegionId(id broker.RegionId) string {
	return fmt.Sprintf("region --begin %d --core %d --mask %s", id.Begin, id.Core, id.Mask)
}
