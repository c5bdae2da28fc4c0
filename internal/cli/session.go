package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/coremarket/broker/internal/broker"
	"github.com/coremarket/broker/internal/config"
	"github.com/coremarket/broker/internal/store"
)

// eventLog collects the notifications one command emits so the session
// can append them to the persistent log on commit.
type eventLog struct {
	pending []broker.Notification
}

func (l *eventLog) Notify(n broker.Notification) {
	l.pending = append(l.pending, n)
}

// session binds one CLI invocation to the persisted broker state: it
// loads everything from the database, runs exactly one operation and
// writes the result back with commit.
type session struct {
	opts   *RootOptions
	store  *store.Store
	cfg    *config.Config
	clock  *broker.ManualClock
	ledger *broker.MapLedger
	events *eventLog
	broker *broker.Broker
}

// openSession loads config, state, ledger and block counter from the
// database named by --db and assembles a broker over them.
func openSession(ctx context.Context, opts *RootOptions) (*session, error) {
	cfg := config.Default()
	if opts.Config != "" {
		loaded, err := config.Load(opts.Config)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "load config", err)
		}
		cfg = loaded
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open database", err)
	}

	state, err := st.LoadState(ctx)
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "load state", err)
	}
	balances, err := st.LoadLedger(ctx)
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "load ledger", err)
	}
	block, err := st.LoadBlock(ctx)
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "load block counter", err)
	}

	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))

	s := &session{
		opts:   opts,
		store:  st,
		cfg:    cfg,
		clock:  &broker.ManualClock{Block: block},
		ledger: &broker.MapLedger{Balances: balances},
		events: &eventLog{},
	}
	s.broker = broker.NewFromState(state, cfg, s.clock, s.ledger,
		broker.SingleAdmin{Admin: "admin"}, s.events, broker.WithLogger(logger))
	return s, nil
}

// commit persists the session's state, ledger, block counter and emitted
// notifications.
func (s *session) commit(ctx context.Context) error {
	if err := s.store.SaveState(ctx, s.broker.State); err != nil {
		return WrapExitError(ExitCommandError, "save state", err)
	}
	if err := s.store.SaveLedger(ctx, s.ledger.Balances); err != nil {
		return WrapExitError(ExitCommandError, "save ledger", err)
	}
	if err := s.store.SaveBlock(ctx, s.clock.Block); err != nil {
		return WrapExitError(ExitCommandError, "save block counter", err)
	}
	if err := s.store.AppendNotifications(ctx, s.events.pending); err != nil {
		return WrapExitError(ExitCommandError, "append notifications", err)
	}
	return nil
}

// close releases the database. It persists nothing; run commit first.
func (s *session) close() {
	s.store.Close()
}

// caller is the account the command acts as, from the --as flag.
func (s *session) caller() broker.AccountId {
	return broker.AccountId(s.opts.As)
}

// newFormatter builds the output formatter for one command invocation.
func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// reportRejection renders a broker rejection in the configured format and
// converts it into an exit-coded error. Non-broker errors are command
// errors (bad paths, corrupt state) and pass through unrendered.
func reportRejection(f *OutputFormatter, err error) error {
	code := broker.CodeOf(err)
	if code == "" {
		return WrapExitError(ExitCommandError, "operation failed", err)
	}
	_ = f.Error(string(code), err.Error(), nil)
	return NewExitError(ExitFailure, err.Error())
}
