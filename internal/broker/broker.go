package broker

import (
	"log/slog"

	"github.com/coremarket/broker/internal/config"
)

// Broker owns one core's marketplace state and applies every operation
// against it. All mutations run to completion; the host serializes calls.
type Broker struct {
	*State

	cfg      *config.Config
	clock    BlockClock
	ledger   Ledger
	auth     Authorizer
	notifier Notifier
	curve    PriceCurve
	log      *slog.Logger
}

// Option configures optional broker behavior.
type Option func(*Broker)

// WithPriceCurve swaps the lead-in pricing policy.
func WithPriceCurve(curve PriceCurve) Option {
	return func(b *Broker) { b.curve = curve }
}

// WithLogger swaps the structured logger.
func WithLogger(log *slog.Logger) Option {
	return func(b *Broker) { b.log = log }
}

// New creates a broker with empty state.
func New(cfg *config.Config, clock BlockClock, ledger Ledger, auth Authorizer, notifier Notifier, opts ...Option) *Broker {
	return NewFromState(NewState(), cfg, clock, ledger, auth, notifier, opts...)
}

// NewFromState creates a broker over previously persisted state.
func NewFromState(state *State, cfg *config.Config, clock BlockClock, ledger Ledger, auth Authorizer, notifier Notifier, opts ...Option) *Broker {
	b := &Broker{
		State:    state,
		cfg:      cfg,
		clock:    clock,
		ledger:   ledger,
		auth:     auth,
		notifier: notifier,
		curve:    DefaultCurve(),
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Config returns the active configuration record.
func (b *Broker) Config() *config.Config {
	return b.cfg
}

func (b *Broker) notify(n Notification) {
	b.notifier.Notify(n)
}

// timesliceFor maps an external block number onto a timeslice.
func (b *Broker) timesliceFor(block uint64) Timeslice {
	return Timeslice(block / b.cfg.TimeslicePeriod)
}

// currentTimeslice is the timeslice the external clock is in right now.
func (b *Broker) currentTimeslice() Timeslice {
	return b.timesliceFor(b.clock.CurrentBlock())
}

// latestTimesliceReadyToCommit is the highest timeslice whose schedule
// can still be delivered to the external scheduler in time, given the
// configured advance notice.
func (b *Broker) latestTimesliceReadyToCommit() Timeslice {
	return b.timesliceFor(b.clock.CurrentBlock() + b.cfg.AdvanceNotice)
}

// charge moves a payment from who into the broker account.
func (b *Broker) charge(who AccountId, amount Balance) error {
	if err := b.ledger.Transfer(who, BrokerAccount, amount); err != nil {
		if CodeOf(err) == ErrCodeInsufficientFunds {
			return err
		}
		return errf(ErrCodeInsufficientFunds, "charge %s %d: %v", who, amount, err)
	}
	return nil
}
