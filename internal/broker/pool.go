package broker

// addPoolIo accumulates a pool-size delta to apply when a timeslice
// becomes current.
func (b *Broker) addPoolIo(when Timeslice, private, system int64) {
	io := b.PoolIo[when]
	if io == nil {
		io = &PoolIoRecord{}
		b.PoolIo[when] = io
	}
	io.Private += private
	io.System += system
}

// applyDelta adds a signed delta to a part count, clamping at zero. A
// negative result would mean the io ledger went out of sync; clamping
// keeps accounting sane rather than wrapping.
func applyDelta(count PartCount, delta int64) PartCount {
	if delta < 0 {
		dec := PartCount(-delta)
		if dec > count {
			return 0
		}
		return count - dec
	}
	return count + PartCount(delta)
}

// processPool opens shared-pool accounting for a timeslice becoming
// current: pending pool-size deltas are applied and a history record
// snapshots the new sizes, payout unresolved.
func (b *Broker) processPool(when Timeslice, status *StatusRecord) {
	if io := b.PoolIo[when]; io != nil {
		delete(b.PoolIo, when)
		status.PrivatePoolSize = applyDelta(status.PrivatePoolSize, io.Private)
		status.SystemPoolSize = applyDelta(status.SystemPoolSize, io.System)
	}

	b.PoolHistory[when] = &InstaPoolHistoryRecord{
		PrivateContributions: status.PrivatePoolSize,
		SystemContributions:  status.SystemPoolSize,
	}
	b.log.Debug("pool history initialized",
		"when", when,
		"private", status.PrivatePoolSize,
		"system", status.SystemPoolSize,
	)
	b.notify(HistoryInitialized{
		When:            when,
		PrivatePoolSize: status.PrivatePoolSize,
		SystemPoolSize:  status.SystemPoolSize,
	})
}

// processRevenue consumes the revenue inbox. The amount is split between
// the private and system pools by their recorded contributions; the
// private share waits for claims, the system share is burned. Revenue
// for a timeslice with no pending history is dropped with a warning —
// never an error, the tick must not fail on stale revenue.
func (b *Broker) processRevenue() {
	rev := b.RevenueInbox
	if rev == nil {
		return
	}
	b.RevenueInbox = nil

	if rev.Until == 0 {
		b.log.Warn("revenue notification with zero span dropped", "amount", rev.Amount)
		return
	}
	when := b.timesliceFor(rev.Until - 1)

	rec := b.PoolHistory[when]
	if rec == nil || rec.Payout != nil {
		b.log.Warn("revenue for unmatched timeslice dropped",
			"when", when, "amount", rev.Amount)
		return
	}

	total := rec.PrivateContributions + rec.SystemContributions
	if rev.Amount == 0 || total == 0 {
		if rev.Amount > 0 {
			if err := b.ledger.BurnFrom(BrokerAccount, rev.Amount); err != nil {
				b.log.Error("burning uncontributed revenue failed", "error", err)
			}
		}
		delete(b.PoolHistory, when)
		b.notify(HistoryDropped{When: when, Revenue: rev.Amount})
		return
	}

	private := Balance(mulDiv(uint64(rev.Amount), uint64(rec.PrivateContributions), uint64(total)))
	system := rev.Amount - private
	if system > 0 {
		if err := b.ledger.BurnFrom(BrokerAccount, system); err != nil {
			b.log.Error("burning system revenue share failed", "error", err)
		}
	}

	rec.Payout = &private
	b.log.Info("revenue resolved", "when", when, "private", private, "system", system)
	b.notify(ClaimsReady{When: when, SystemPayout: system, PrivatePayout: private})
}

// ClaimRevenue pays the contribution's payee their share of up to
// maxTimeslices resolved payouts, starting at the contribution's begin.
// The walk is bounded so one call does bounded work; the returned cursor
// is where the next claim resumes, or nil once the span is exhausted.
func (b *Broker) ClaimRevenue(who AccountId, id RegionId, maxTimeslices Timeslice) (*RegionId, error) {
	contribution, ok := b.PoolContributions[id]
	if !ok {
		return nil, errf(ErrCodeNotFound, "no pool contribution for region %v", id)
	}
	if who != contribution.Payee {
		return nil, errf(ErrCodeUnauthorized,
			"contribution for %v pays %s, not %s", id, contribution.Payee, who)
	}

	b.notify(RevenueClaimBegun{RegionId: id, MaxTimeslices: maxTimeslices})

	var total Balance
	parts := maskParts(id.Mask)
	end := id.Begin + contribution.Length
	when := id.Begin

	for done := Timeslice(0); when < end && done < maxTimeslices; done++ {
		rec := b.PoolHistory[when]
		if rec == nil {
			// Nothing was ever recorded here (or it was dropped);
			// the contribution for this slice is simply gone.
			when++
			continue
		}
		if rec.Payout == nil {
			// Unresolved; the cursor lets the payee come back.
			break
		}

		share := parts
		if share > rec.PrivateContributions {
			share = rec.PrivateContributions
		}
		var paid Balance
		if rec.PrivateContributions > 0 {
			paid = Balance(mulDiv(uint64(*rec.Payout), uint64(share), uint64(rec.PrivateContributions)))
		}
		*rec.Payout -= paid
		rec.PrivateContributions -= share
		total += paid
		if rec.PrivateContributions == 0 {
			delete(b.PoolHistory, when)
		}

		b.notify(RevenueClaimItem{When: when, Amount: paid})
		when++
	}

	delete(b.PoolContributions, id)
	var next *RegionId
	if when < end {
		nid := RegionId{Begin: when, Core: id.Core, Mask: id.Mask}
		b.PoolContributions[nid] = &ContributionRecord{
			Length: end - when,
			Payee:  contribution.Payee,
		}
		next = &nid
	}

	if total > 0 {
		if err := b.ledger.Transfer(BrokerAccount, contribution.Payee, total); err != nil {
			return nil, errf(ErrCodeInsufficientFunds,
				"paying claim of %d to %s: %v", total, contribution.Payee, err)
		}
	}

	b.log.Info("revenue claim paid",
		"payee", contribution.Payee, "amount", total, "exhausted", next == nil)
	b.notify(RevenueClaimPaid{Who: contribution.Payee, Amount: total, Next: next})
	return next, nil
}

// DropContribution removes a pool contribution whose span plus the
// configured timeout has irrevocably passed.
func (b *Broker) DropContribution(id RegionId) error {
	contribution, ok := b.PoolContributions[id]
	if !ok {
		return errf(ErrCodeNotFound, "no pool contribution for region %v", id)
	}
	end := id.Begin + contribution.Length
	if b.Status == nil || b.Status.LastTimeslice < end+Timeslice(b.cfg.ContributionTimeout) {
		return errf(ErrCodeStillValid, "contribution %v claimable until timeslice %d",
			id, end+Timeslice(b.cfg.ContributionTimeout))
	}

	delete(b.PoolContributions, id)
	b.notify(ContributionDropped{RegionId: id})
	return nil
}

// DropHistory removes a stale pool history record after the timeout.
func (b *Broker) DropHistory(when Timeslice) error {
	rec, ok := b.PoolHistory[when]
	if !ok {
		return errf(ErrCodeNotFound, "no pool history at timeslice %d", when)
	}
	if b.Status == nil || b.Status.LastTimeslice < when+Timeslice(b.cfg.ContributionTimeout) {
		return errf(ErrCodeStillValid, "history at %d still within its claim window", when)
	}

	var revenue Balance
	if rec.Payout != nil {
		revenue = *rec.Payout
	}
	delete(b.PoolHistory, when)
	b.notify(HistoryDropped{When: when, Revenue: revenue})
	return nil
}
