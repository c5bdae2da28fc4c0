package broker

// Tick advances bookkeeping to the present. It is safe to call on every
// block or sporadically; work is keyed to timeslices, so a late tick
// catches up and a repeated tick finds nothing to do.
//
// The order is fixed: a pending core-count change takes effect first,
// then pending revenue is settled, then every newly committable
// timeslice gets its pool accounting opened and its core schedules
// materialized. The sale rotates as soon as the committed timeslice
// reaches its region, between commits when several timeslices are due,
// so that the plans and pool deltas a rotation writes land ahead of the
// commit that materializes them rather than behind it.
func (b *Broker) Tick() error {
	status := b.Status
	if status == nil {
		return errf(ErrCodeSaleNotActive, "sales have not been started")
	}

	if b.CoreCountInbox != nil {
		count := *b.CoreCountInbox
		b.CoreCountInbox = nil
		status.CoreCount = count
		b.log.Info("core count changed", "core_count", count)
		b.notify(CoreCountChanged{CoreCount: count})
	}

	b.processRevenue()

	commit := b.latestTimesliceReadyToCommit()
	for status.LastCommittedTimeslice < commit {
		timeslice := status.LastCommittedTimeslice + 1
		b.processPool(timeslice, status)
		for core := CoreIndex(0); core < CoreIndex(status.CoreCount); core++ {
			b.processCoreSchedule(timeslice, core)
		}
		status.LastCommittedTimeslice = timeslice
		if b.Sale != nil && timeslice >= b.Sale.RegionBegin {
			b.rotateSale(b.Sale)
		}
	}

	status.LastTimeslice = b.currentTimeslice()
	return nil
}
