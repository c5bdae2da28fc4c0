package broker

import "github.com/coremarket/broker/internal/config"

// Configure replaces the active configuration. Admin-only; the new
// configuration applies from the next operation, already-initialized
// sales keep the bounds they were built with.
func (b *Broker) Configure(who AccountId, cfg *config.Config) error {
	if err := b.auth.EnsureAdmin(who); err != nil {
		return errf(ErrCodeUnauthorized, "configure: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		return errf(ErrCodeInvalidAmount, "configure: %v", err)
	}
	b.cfg = cfg
	b.log.Info("configuration replaced")
	return nil
}

// Reserve appends a schedule to the reservations list. Reserved
// schedules occupy the lowest core indices at every rotation, ahead of
// leases and the open sale.
func (b *Broker) Reserve(who AccountId, sched Schedule) (int, error) {
	if err := b.auth.EnsureAdmin(who); err != nil {
		return 0, errf(ErrCodeUnauthorized, "reserve: %v", err)
	}
	if len(b.Reservations) >= b.cfg.MaxReservedCores {
		return 0, errf(ErrCodeCapacityExceeded,
			"at most %d cores may be reserved", b.cfg.MaxReservedCores)
	}
	if len(sched) == 0 {
		return 0, errf(ErrCodeInvalidMask, "a reservation needs at least one item")
	}

	b.Reservations = append(b.Reservations, cloneSchedule(sched))
	index := len(b.Reservations) - 1
	b.log.Info("reservation made", "index", index)
	b.notify(ReservationMade{Index: index})
	return index, nil
}

// Unreserve removes the reservation at index. The freed core joins the
// open sale at the next rotation.
func (b *Broker) Unreserve(who AccountId, index int) error {
	if err := b.auth.EnsureAdmin(who); err != nil {
		return errf(ErrCodeUnauthorized, "unreserve: %v", err)
	}
	if index < 0 || index >= len(b.Reservations) {
		return errf(ErrCodeNotFound, "no reservation at index %d", index)
	}

	b.Reservations = append(b.Reservations[:index], b.Reservations[index+1:]...)
	b.notify(ReservationCancelled{Index: index})
	return nil
}

// SetLease grants task a full core until the given timeslice, exempt
// from the sale. The lease's final region emits LeaseEnding.
func (b *Broker) SetLease(who AccountId, task TaskId, until Timeslice) error {
	if err := b.auth.EnsureAdmin(who); err != nil {
		return errf(ErrCodeUnauthorized, "set lease: %v", err)
	}
	if len(b.Leases) >= b.cfg.MaxLeasedCores {
		return errf(ErrCodeCapacityExceeded,
			"at most %d cores may be leased", b.cfg.MaxLeasedCores)
	}

	b.Leases = append(b.Leases, LeaseRecordItem{Task: task, Until: until})
	b.log.Info("lease set", "task", task, "until", until)
	b.notify(Leased{Task: task, Until: until})
	return nil
}

// SwapLeases exchanges the deadlines of two leased tasks.
func (b *Broker) SwapLeases(who AccountId, task, other TaskId) error {
	if err := b.auth.EnsureAdmin(who); err != nil {
		return errf(ErrCodeUnauthorized, "swap leases: %v", err)
	}

	first, second := -1, -1
	for i, lease := range b.Leases {
		switch lease.Task {
		case task:
			first = i
		case other:
			second = i
		}
	}
	if first < 0 || second < 0 {
		return errf(ErrCodeNotFound, "tasks %d and %d must both hold leases", task, other)
	}

	b.Leases[first].Until, b.Leases[second].Until =
		b.Leases[second].Until, b.Leases[first].Until
	b.log.Info("leases swapped", "task", task, "other", other)
	return nil
}

// RequestCoreCount queues a core-count change to take effect at the
// next tick.
func (b *Broker) RequestCoreCount(who AccountId, count uint16) error {
	if err := b.auth.EnsureAdmin(who); err != nil {
		return errf(ErrCodeUnauthorized, "request core count: %v", err)
	}

	b.CoreCountInbox = &count
	b.log.Info("core count requested", "core_count", count)
	b.notify(CoreCountRequested{CoreCount: count})
	return nil
}

// NotifyCoreCount is the external system's callback reporting the core
// count it actually provisioned. It lands in the same single-slot inbox
// a local request uses.
func (b *Broker) NotifyCoreCount(who AccountId, count uint16) error {
	if err := b.auth.EnsureAdmin(who); err != nil {
		return errf(ErrCodeUnauthorized, "notify core count: %v", err)
	}
	b.CoreCountInbox = &count
	return nil
}

// NotifyRevenue is the external system's callback delivering pool
// revenue collected for blocks up to (excluding) until. The funds land
// in the broker account; the inbox holds one pending report and the
// tick settles it, splitting the amount between claims and burn.
func (b *Broker) NotifyRevenue(who AccountId, until uint64, amount Balance) error {
	if err := b.auth.EnsureAdmin(who); err != nil {
		return errf(ErrCodeUnauthorized, "notify revenue: %v", err)
	}
	if err := b.ledger.MintInto(BrokerAccount, amount); err != nil {
		return errf(ErrCodeInsufficientFunds, "crediting revenue: %v", err)
	}
	if b.RevenueInbox != nil {
		b.log.Warn("revenue inbox overwritten",
			"dropped_until", b.RevenueInbox.Until,
			"dropped_amount", b.RevenueInbox.Amount)
	}
	b.RevenueInbox = &RevenueRecord{Until: until, Amount: amount}
	return nil
}

// PurchaseCredit converts funds into on-demand credit for beneficiary
// on the external system. The funds are burned here; the credit itself
// is minted outside this module, so nothing accrues to the broker.
func (b *Broker) PurchaseCredit(who AccountId, amount Balance, beneficiary AccountId) error {
	if amount < Balance(b.cfg.MinimumCreditPurchase) {
		return errf(ErrCodeInvalidAmount,
			"credit purchases start at %d, got %d", b.cfg.MinimumCreditPurchase, amount)
	}
	if err := b.ledger.BurnFrom(who, amount); err != nil {
		return errf(ErrCodeInsufficientFunds, "purchasing credit: %v", err)
	}

	b.log.Info("credit purchased", "who", who, "beneficiary", beneficiary, "amount", amount)
	b.notify(CreditPurchased{Who: who, Beneficiary: beneficiary, Amount: amount})
	return nil
}
