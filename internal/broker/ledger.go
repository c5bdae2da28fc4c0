package broker

// BlockClock maps this core onto external time. The broker never
// advances time itself; it only ever reads the current block.
type BlockClock interface {
	CurrentBlock() uint64
}

// Ledger is the external currency system holding balances. All calls are
// atomic and immediately consistent.
type Ledger interface {
	BalanceOf(account AccountId) Balance
	Transfer(from, to AccountId, amount Balance) error
	MintInto(account AccountId, amount Balance) error
	BurnFrom(account AccountId, amount Balance) error
}

// Authorizer decides who may call privileged operations. It is consulted
// once per privileged operation; a non-nil error aborts it.
type Authorizer interface {
	EnsureAdmin(who AccountId) error
}

// Notifier receives the broker's typed notifications.
type Notifier interface {
	Notify(n Notification)
}

// ManualClock is a BlockClock driven by its holder. The CLI persists the
// block counter between invocations; tests advance it directly.
type ManualClock struct {
	Block uint64
}

func (c *ManualClock) CurrentBlock() uint64 { return c.Block }

// Advance moves the clock forward by n blocks.
func (c *ManualClock) Advance(n uint64) { c.Block += n }

// MapLedger is an in-memory Ledger over a balance map. It backs the CLI's
// local simulation and the tests; the production collaborator lives
// outside this module.
type MapLedger struct {
	Balances map[AccountId]Balance
}

// NewMapLedger returns an empty in-memory ledger.
func NewMapLedger() *MapLedger {
	return &MapLedger{Balances: make(map[AccountId]Balance)}
}

func (l *MapLedger) BalanceOf(account AccountId) Balance {
	return l.Balances[account]
}

func (l *MapLedger) Transfer(from, to AccountId, amount Balance) error {
	if l.Balances[from] < amount {
		return errf(ErrCodeInsufficientFunds,
			"account %s holds %d, needs %d", from, l.Balances[from], amount)
	}
	l.Balances[from] -= amount
	l.Balances[to] += amount
	return nil
}

func (l *MapLedger) MintInto(account AccountId, amount Balance) error {
	l.Balances[account] += amount
	return nil
}

func (l *MapLedger) BurnFrom(account AccountId, amount Balance) error {
	if l.Balances[account] < amount {
		return errf(ErrCodeInsufficientFunds,
			"account %s holds %d, cannot burn %d", account, l.Balances[account], amount)
	}
	l.Balances[account] -= amount
	return nil
}

// SingleAdmin authorizes exactly one account for admin operations.
type SingleAdmin struct {
	Admin AccountId
}

func (a SingleAdmin) EnsureAdmin(who AccountId) error {
	if who != a.Admin {
		return errf(ErrCodeUnauthorized, "account %s is not the admin", who)
	}
	return nil
}
