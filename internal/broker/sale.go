package broker

import "github.com/coremarket/broker/internal/mask"

// StartSales begins the first sale cycle. Admin-only, and only when no
// sale is in progress. The core count becomes reserved + leased + extra;
// reservations and leases are scheduled from the next committable
// timeslice, and the sale offers the remainder one region later.
func (b *Broker) StartSales(who AccountId, endPrice Balance, extraCores uint16) error {
	if err := b.auth.EnsureAdmin(who); err != nil {
		return errf(ErrCodeUnauthorized, "start sales: %v", err)
	}
	if b.Sale != nil {
		return errf(ErrCodeStillValid, "a sale is already in progress")
	}

	coreCount := len(b.Reservations) + len(b.Leases) + int(extraCores)
	commit := b.latestTimesliceReadyToCommit()
	lastCommitted := commit
	if lastCommitted > 0 {
		lastCommitted--
	}
	b.Status = &StatusRecord{
		CoreCount:              uint16(coreCount),
		LastCommittedTimeslice: lastCommitted,
		LastTimeslice:          b.currentTimeslice(),
	}
	b.notify(CoreCountChanged{CoreCount: b.Status.CoreCount})

	// A zero-length dummy sale whose region is the first committable
	// one; rotation shifts it into the first real sale.
	dummy := &SaleInfoRecord{
		SaleStart:   b.clock.CurrentBlock(),
		EndPrice:    endPrice,
		RegionBegin: commit,
		RegionEnd:   commit + Timeslice(b.cfg.RegionLength),
	}
	b.log.Info("sales started", "end_price", endPrice, "core_count", coreCount)
	b.rotateSale(dummy)
	return nil
}

// CurrentPrice returns what a purchase would cost right now.
func (b *Broker) CurrentPrice() (Balance, error) {
	if b.Sale == nil {
		return 0, errf(ErrCodeSaleNotActive, "no sale in progress")
	}
	return b.salePrice(b.Sale, b.clock.CurrentBlock()), nil
}

// salePrice evaluates the pricing curve: descending through the lead-in,
// constant at the end price afterwards.
func (b *Broker) salePrice(sale *SaleInfoRecord, now uint64) Balance {
	start := b.curve.StartPrice(sale.EndPrice)
	if now < sale.SaleStart {
		return start
	}
	return b.curve.PriceAt(now-sale.SaleStart, sale.LeadinLength, start, sale.EndPrice)
}

// Purchase buys the next unsold core of the current sale at the current
// price, creating a full-mask region over the sale's span.
func (b *Broker) Purchase(who AccountId, priceLimit Balance) (RegionId, error) {
	sale := b.Sale
	if sale == nil {
		return RegionId{}, errf(ErrCodeSaleNotActive, "no sale in progress")
	}
	now := b.clock.CurrentBlock()
	if now < sale.SaleStart {
		return RegionId{}, errf(ErrCodeSaleNotActive,
			"sale opens at block %d, now %d", sale.SaleStart, now)
	}
	if sale.CoresSold >= sale.CoresOffered {
		return RegionId{}, errf(ErrCodeOversold,
			"all %d offered cores are sold", sale.CoresOffered)
	}
	price := b.salePrice(sale, now)
	if price > priceLimit {
		return RegionId{}, errf(ErrCodePriceTooHigh,
			"current price %d exceeds limit %d", price, priceLimit)
	}
	if err := b.charge(who, price); err != nil {
		return RegionId{}, err
	}

	core := sale.FirstCore + CoreIndex(sale.CoresSold)
	sale.CoresSold++
	if sale.CoresSold == sale.CoresOffered && sale.SelloutPrice == nil {
		sellout := price
		sale.SelloutPrice = &sellout
	}

	id := RegionId{Begin: sale.RegionBegin, Core: core, Mask: mask.Complete()}
	paid := price
	b.Regions[id] = &RegionRecord{End: sale.RegionEnd, Owner: who, Paid: &paid}

	b.log.Info("core purchased", "who", who, "core", core, "price", price)
	b.notify(Purchased{
		Who:      who,
		RegionId: id,
		Price:    price,
		Duration: sale.RegionEnd - sale.RegionBegin,
	})
	return id, nil
}

// rotateSale replaces the elapsed sale with the next one: reservations
// and surviving leases are scheduled first, the remaining cores are
// offered for sale over the next region, and due auto-renewals execute.
// The tick orchestrator is the only caller for live sales; idempotence
// comes from the region bounds advancing with each rotation.
func (b *Broker) rotateSale(old *SaleInfoRecord) {
	cfg := b.cfg
	status := b.Status
	now := b.clock.CurrentBlock()

	regionBegin := old.RegionEnd
	regionEnd := regionBegin + Timeslice(cfg.RegionLength)

	// Reservations occupy the lowest core indices, every rotation.
	firstCore := CoreIndex(0)
	for _, sched := range b.Reservations {
		b.Workplan[WorkplanKey{Timeslice: regionBegin, Core: firstCore}] = cloneSchedule(sched)
		if parts := sched.PoolParts(); parts > 0 {
			b.addPoolIo(regionBegin, 0, int64(parts))
			b.addPoolIo(regionEnd, 0, -int64(parts))
		}
		firstCore++
	}

	// Leases follow; one expiring inside the new region is in its final
	// sale and is not rescheduled.
	kept := make([]LeaseRecordItem, 0, len(b.Leases))
	for _, lease := range b.Leases {
		if lease.Until < regionEnd {
			b.log.Info("lease ending", "task", lease.Task, "until", lease.Until)
			b.notify(LeaseEnding{Task: lease.Task, When: lease.Until})
			continue
		}
		b.Workplan[WorkplanKey{Timeslice: regionBegin, Core: firstCore}] = Schedule{
			{Mask: mask.Complete(), Assignment: Task(lease.Task)},
		}
		firstCore++
		kept = append(kept, lease)
	}
	b.Leases = kept

	var offered uint16
	if status.CoreCount > uint16(firstCore) {
		offered = status.CoreCount - uint16(firstCore)
	}
	if cfg.LimitCoresOffered != nil && offered > *cfg.LimitCoresOffered {
		offered = *cfg.LimitCoresOffered
	}

	// The next cycle's end price restarts from what the market last
	// proved it would bear: the sellout price if the sale sold out,
	// otherwise the previous end price.
	endPrice := old.EndPrice
	if old.SelloutPrice != nil {
		endPrice = *old.SelloutPrice
	}

	sale := &SaleInfoRecord{
		SaleStart:      now + cfg.InterludeLength,
		LeadinLength:   cfg.LeadinLength,
		EndPrice:       endPrice,
		RegionBegin:    regionBegin,
		RegionEnd:      regionEnd,
		FirstCore:      firstCore,
		IdealCoresSold: uint16(cfg.IdealBulkProportion * float64(offered)),
		CoresOffered:   offered,
	}
	b.Sale = sale

	b.executeAutoRenewals(sale)

	b.log.Info("sale rotated",
		"region_begin", regionBegin,
		"region_end", regionEnd,
		"first_core", firstCore,
		"cores_offered", offered,
		"end_price", endPrice,
	)
	b.notify(SaleInitialized{
		SaleStart:      sale.SaleStart,
		LeadinLength:   sale.LeadinLength,
		StartPrice:     b.curve.StartPrice(endPrice),
		EndPrice:       endPrice,
		RegionBegin:    regionBegin,
		RegionEnd:      regionEnd,
		IdealCoresSold: sale.IdealCoresSold,
		CoresOffered:   offered,
	})
}
