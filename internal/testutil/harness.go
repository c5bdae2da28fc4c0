package testutil

import (
	"io"
	"log/slog"

	"github.com/coremarket/broker/internal/broker"
	"github.com/coremarket/broker/internal/config"
)

// Admin is the account the harness authorizes for privileged operations.
const Admin broker.AccountId = "admin"

// Harness wires a broker to deterministic collaborators. Tests drive the
// clock and ledger directly and assert against the recorder.
type Harness struct {
	Clock  *broker.ManualClock
	Ledger *broker.MapLedger
	Events *Recorder
	Broker *broker.Broker
}

// NewHarness builds a broker over fresh state with the given
// configuration. A nil cfg means defaults. Logging is discarded so test
// output stays readable.
func NewHarness(cfg *config.Config, opts ...broker.Option) *Harness {
	if cfg == nil {
		cfg = config.Default()
	}
	h := &Harness{
		Clock:  &broker.ManualClock{},
		Ledger: broker.NewMapLedger(),
		Events: NewRecorder(),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts = append([]broker.Option{broker.WithLogger(logger)}, opts...)
	h.Broker = broker.New(cfg, h.Clock, h.Ledger, broker.SingleAdmin{Admin: Admin}, h.Events, opts...)
	return h
}

// Fund credits an account on the in-memory ledger.
func (h *Harness) Fund(account broker.AccountId, amount broker.Balance) {
	h.Ledger.Balances[account] += amount
}
