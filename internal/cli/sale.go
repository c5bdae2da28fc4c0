package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/coremarket/broker/internal/broker"
)

// SaleOptions holds flags for the sale start command.
type SaleOptions struct {
	*RootOptions
	ExtraCores uint16
}

// NewSaleCommand creates the sale command group.
func NewSaleCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sale",
		Short: "Start and inspect the rotating bulk sale",
	}

	cmd.AddCommand(newSaleStartCommand(rootOpts))
	cmd.AddCommand(newSaleStatusCommand(rootOpts))
	cmd.AddCommand(newSalePriceCommand(rootOpts))

	return cmd
}

func newSaleStartCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SaleOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "start <end-price>",
		Short: "Start the rotating sale of bulk regions",
		Long: `Start the rotating sale of bulk regions.

The first sale opens at the given end price; every later sale derives its
price from the previous outcome. Extra cores are offered on top of the
reserved and leased ones.

Example:
  broker sale start 10000000 --extra-cores 2`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSaleStart(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().Uint16Var(&opts.ExtraCores, "extra-cores", 0, "cores offered beyond reservations and leases")

	return cmd
}

func runSaleStart(ctx context.Context, opts *SaleOptions, priceArg string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	endPrice, err := parseBalance(priceArg)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid end price", err)
	}

	s, err := openSession(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.close()

	if err := s.broker.StartSales(s.caller(), endPrice, opts.ExtraCores); err != nil {
		return reportRejection(f, err)
	}
	if err := s.commit(ctx); err != nil {
		return err
	}
	return renderSale(f, opts.Format, s.broker.Sale)
}

func newSaleStatusCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "status",
		Short:         "Show the sale currently in progress",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSaleStatus(cmd.Context(), rootOpts, cmd)
		},
	}
	return cmd
}

func runSaleStatus(ctx context.Context, opts *RootOptions, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	s, err := openSession(ctx, opts)
	if err != nil {
		return err
	}
	defer s.close()

	if s.broker.Sale == nil {
		_ = f.Error(string(broker.ErrCodeSaleNotActive), "no sale in progress", nil)
		return NewExitError(ExitFailure, "no sale in progress")
	}
	return renderSale(f, opts.Format, s.broker.Sale)
}

func newSalePriceCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "price",
		Short:         "Show the current purchase price",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSalePrice(cmd.Context(), rootOpts, cmd)
		},
	}
	return cmd
}

func runSalePrice(ctx context.Context, opts *RootOptions, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	s, err := openSession(ctx, opts)
	if err != nil {
		return err
	}
	defer s.close()

	price, err := s.broker.CurrentPrice()
	if err != nil {
		return reportRejection(f, err)
	}
	if opts.Format == "json" {
		return f.Success(map[string]broker.Balance{"price": price})
	}
	return f.Success(formatAmount(price))
}

// renderSale emits the sale record itself as JSON, or a readable summary
// as text.
func renderSale(f *OutputFormatter, format string, sale *broker.SaleInfoRecord) error {
	if format == "json" {
		return f.Success(sale)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Sale: region [%d, %d)\n", sale.RegionBegin, sale.RegionEnd)
	fmt.Fprintf(&b, "  Purchases open at block %d, lead-in %d blocks\n", sale.SaleStart, sale.LeadinLength)
	fmt.Fprintf(&b, "  End price: %s\n", formatAmount(sale.EndPrice))
	if sale.SelloutPrice != nil {
		fmt.Fprintf(&b, "  Sellout price: %s\n", formatAmount(*sale.SelloutPrice))
	}
	fmt.Fprintf(&b, "  Cores: first %d, offered %d, sold %d",
		sale.FirstCore, sale.CoresOffered, sale.CoresSold)
	return f.Success(b.String())
}

// parseBalance parses a decimal currency amount.
func parseBalance(s string) (broker.Balance, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("amount %q: %w", s, err)
	}
	return broker.Balance(v), nil
}
