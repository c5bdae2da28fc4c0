package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// EventsOptions holds flags for the events command.
type EventsOptions struct {
	*RootOptions
	Kind  string
	Limit int
}

// NewEventsCommand creates the events command.
func NewEventsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EventsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Read the persistent notification log",
		Long: `Read the notifications past commands appended to the log.

Example:
  broker events --kind purchased --limit 20`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvents(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Kind, "kind", "", "only notifications of this kind")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum notifications returned (0 = all)")

	return cmd
}

func runEvents(ctx context.Context, opts *EventsOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	s, err := openSession(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.close()

	logged, err := s.store.ReadNotifications(ctx, opts.Kind, opts.Limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "read notifications", err)
	}

	if opts.Format == "json" {
		return f.Success(logged)
	}

	if len(logged) == 0 {
		return f.Success("No notifications")
	}
	var b strings.Builder
	for i, n := range logged {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d %s %s", n.Seq, n.Kind, string(n.Payload))
	}
	return f.Success(b.String())
}
