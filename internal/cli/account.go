package cli

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/coremarket/broker/internal/broker"
)

// NewAccountCommand creates the account command group. The CLI ledger is
// a local simulation; funding mints currency into it directly.
func NewAccountCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage the local ledger's accounts",
	}

	cmd.AddCommand(newAccountFundCommand(rootOpts))
	cmd.AddCommand(newAccountListCommand(rootOpts))

	return cmd
}

func newAccountFundCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "fund <account> <amount>",
		Short:         "Mint currency into an account",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAccountFund(cmd.Context(), rootOpts, args, cmd)
		},
	}
}

func runAccountFund(ctx context.Context, opts *RootOptions, args []string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	amount, err := parseBalance(args[1])
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid amount", err)
	}

	s, err := openSession(ctx, opts)
	if err != nil {
		return err
	}
	defer s.close()

	account := broker.AccountId(args[0])
	if err := s.ledger.MintInto(account, amount); err != nil {
		return reportRejection(f, err)
	}
	if err := s.commit(ctx); err != nil {
		return err
	}
	return f.Success(fmt.Sprintf("%s holds %s", account, formatAmount(s.ledger.BalanceOf(account))))
}

func newAccountListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List all account balances",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAccountList(cmd.Context(), rootOpts, cmd)
		},
	}
}

func runAccountList(ctx context.Context, opts *RootOptions, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	s, err := openSession(ctx, opts)
	if err != nil {
		return err
	}
	defer s.close()

	if opts.Format == "json" {
		return f.Success(s.ledger.Balances)
	}

	accounts := make([]broker.AccountId, 0, len(s.ledger.Balances))
	for account := range s.ledger.Balances {
		accounts = append(accounts, account)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i] < accounts[j] })

	if len(accounts) == 0 {
		return f.Success("No accounts")
	}
	var b strings.Builder
	for i, account := range accounts {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s %s", account, formatAmount(s.ledger.Balances[account]))
	}
	return f.Success(b.String())
}
