package broker

import (
	"sort"

	"github.com/coremarket/broker/internal/mask"
)

// bumpPrice applies the configured renewal bump to a recorded price.
func (b *Broker) bumpPrice(price Balance) Balance {
	return price + Balance(mulDiv(uint64(price), uint64(b.cfg.RenewalBumpPercent), 100))
}

// recordPotentialRenewal accumulates a finally-assigned, directly
// purchased piece of a core into the renewal opportunity keyed by the
// core and the region's end. Interlaced pieces each carry the full
// purchase price, so the record keeps the largest seen rather than a
// sum. Once the accumulated mask covers the core, the record is
// complete and can be exercised.
func (b *Broker) recordPotentialRenewal(id RegionId, rec *RegionRecord, item ScheduleItem) {
	key := PotentialRenewalId{Core: id.Core, When: rec.End}
	record := b.PotentialRenewals[key]
	if record == nil {
		record = &PotentialRenewalRecord{Mask: mask.Void()}
		b.PotentialRenewals[key] = record
	}

	record.Owner = rec.Owner
	if *rec.Paid > record.Price {
		record.Price = *rec.Paid
	}
	record.Mask = record.Mask.Union(item.Mask)
	record.Schedule = append(record.Schedule, item)
	record.Complete = record.Mask.IsComplete()

	if record.Complete {
		b.log.Debug("renewal opportunity complete",
			"core", key.Core, "when", key.When, "price", record.Price)
	}
}

// Renew re-purchases a lapsing commitment for the span of the current
// sale, outside the open market and at the recorded price plus the
// configured bump. The commitment moves to the next unsold core index,
// and the opportunity rolls forward to the new region's end.
func (b *Broker) Renew(who AccountId, core CoreIndex) (CoreIndex, error) {
	sale := b.Sale
	if sale == nil {
		return 0, errf(ErrCodeSaleNotActive, "no sale in progress")
	}

	key := PotentialRenewalId{Core: core, When: sale.RegionBegin}
	record, ok := b.PotentialRenewals[key]
	if !ok {
		return 0, errf(ErrCodeNotFound,
			"no renewal opportunity for core %d at timeslice %d", core, sale.RegionBegin)
	}
	if !record.Complete {
		return 0, errf(ErrCodeIncomplete,
			"renewal for core %d covers only part of the core", core)
	}
	if uint16(sale.FirstCore)+sale.CoresSold >= b.Status.CoreCount {
		return 0, errf(ErrCodeOversold, "no core left to place the renewal on")
	}

	price := b.bumpPrice(record.Price)
	if err := b.charge(who, price); err != nil {
		return 0, err
	}

	newCore := sale.FirstCore + CoreIndex(sale.CoresSold)
	sale.CoresSold++

	b.Workplan[WorkplanKey{Timeslice: sale.RegionBegin, Core: newCore}] =
		cloneSchedule(record.Schedule)

	delete(b.PotentialRenewals, key)
	b.PotentialRenewals[PotentialRenewalId{Core: newCore, When: sale.RegionEnd}] =
		&PotentialRenewalRecord{
			Owner:    record.Owner,
			Price:    price,
			Mask:     record.Mask,
			Schedule: record.Schedule,
			Complete: true,
		}

	b.log.Info("commitment renewed",
		"who", who, "old_core", core, "core", newCore, "price", price)
	b.notify(Renewed{
		Who:      who,
		OldCore:  core,
		Core:     newCore,
		Price:    price,
		Begin:    sale.RegionBegin,
		Duration: sale.RegionEnd - sale.RegionBegin,
		Workload: cloneSchedule(record.Schedule),
	})
	return newCore, nil
}

// executeAutoRenewals runs every due auto-renewal intent against the
// freshly rotated sale, in ascending core order. A failing renewal
// (typically an unfunded owner) disables the intent rather than
// blocking the rotation.
func (b *Broker) executeAutoRenewals(sale *SaleInfoRecord) {
	if len(b.AutoRenewals) == 0 {
		return
	}

	kept := make([]AutoRenewalRecord, 0, len(b.AutoRenewals))
	for _, intent := range b.AutoRenewals {
		if intent.NextRenewal > sale.RegionBegin {
			kept = append(kept, intent)
			continue
		}
		newCore, err := b.Renew(intent.Owner, intent.Core)
		if err != nil {
			b.log.Warn("auto-renewal failed, disabling",
				"core", intent.Core, "task", intent.Task,
				"owner", intent.Owner, "error", err)
			b.notify(AutoRenewalDisabled{Core: intent.Core, Task: intent.Task})
			continue
		}
		intent.Core = newCore
		intent.NextRenewal = sale.RegionEnd
		kept = append(kept, intent)
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].Core < kept[j].Core })
	b.AutoRenewals = kept
}

// EnableAutoRenew registers an intent to renew the commitment running
// task on core at every rotation, charged to who. expectedWhen
// disambiguates which renewal opportunity is meant when the caller knows
// it; otherwise the current sale's bounds are tried. If the renewal
// window has already arrived, the first renewal executes immediately.
func (b *Broker) EnableAutoRenew(who AccountId, core CoreIndex, task TaskId, expectedWhen *Timeslice) error {
	sale := b.Sale
	if sale == nil {
		return errf(ErrCodeSaleNotActive, "no sale in progress")
	}

	var key PotentialRenewalId
	var record *PotentialRenewalRecord
	if expectedWhen != nil {
		key = PotentialRenewalId{Core: core, When: *expectedWhen}
		record = b.PotentialRenewals[key]
	} else {
		for _, when := range []Timeslice{sale.RegionBegin, sale.RegionEnd} {
			key = PotentialRenewalId{Core: core, When: when}
			if record = b.PotentialRenewals[key]; record != nil {
				break
			}
		}
	}
	if record == nil {
		return errf(ErrCodeNotFound, "no renewal opportunity for core %d", core)
	}
	if record.Owner != who {
		return errf(ErrCodeUnauthorized,
			"renewal for core %d belongs to %s", core, record.Owner)
	}

	runsTask := false
	for _, item := range record.Schedule {
		if item.Assignment.Kind == AssignTask && item.Assignment.Task == task {
			runsTask = true
			break
		}
	}
	if !runsTask {
		return errf(ErrCodeNotFound,
			"renewal for core %d does not run task %d", core, task)
	}

	for _, intent := range b.AutoRenewals {
		if intent.Core == core && intent.Task == task {
			return errf(ErrCodeStillValid,
				"auto-renewal already enabled for task %d on core %d", task, core)
		}
	}
	if len(b.AutoRenewals) >= b.cfg.MaxAutoRenewals {
		return errf(ErrCodeCapacityExceeded,
			"at most %d auto-renewals may be registered", b.cfg.MaxAutoRenewals)
	}

	intent := AutoRenewalRecord{Core: core, Task: task, Owner: who, NextRenewal: key.When}
	if key.When <= sale.RegionBegin {
		newCore, err := b.Renew(who, core)
		if err != nil {
			return err
		}
		intent.Core = newCore
		intent.NextRenewal = sale.RegionEnd
	}

	b.AutoRenewals = append(b.AutoRenewals, intent)
	sort.Slice(b.AutoRenewals, func(i, j int) bool {
		return b.AutoRenewals[i].Core < b.AutoRenewals[j].Core
	})

	b.log.Info("auto-renewal enabled", "core", intent.Core, "task", task, "owner", who)
	b.notify(AutoRenewalEnabled{Core: intent.Core, Task: task})
	return nil
}

// DisableAutoRenew removes a registered auto-renewal intent. Only its
// owner may remove it. Disabling an intent that is not registered is a
// no-op, so the call is idempotent.
func (b *Broker) DisableAutoRenew(who AccountId, core CoreIndex, task TaskId) error {
	for i, intent := range b.AutoRenewals {
		if intent.Core != core || intent.Task != task {
			continue
		}
		if intent.Owner != who {
			return errf(ErrCodeUnauthorized,
				"auto-renewal for core %d belongs to %s", core, intent.Owner)
		}
		b.AutoRenewals = append(b.AutoRenewals[:i], b.AutoRenewals[i+1:]...)
		b.notify(AutoRenewalDisabled{Core: core, Task: task})
		return nil
	}
	return nil
}

// DropRenewal removes a renewal opportunity whose window has lapsed:
// the current sale's region already begins past it. Permissionless.
func (b *Broker) DropRenewal(core CoreIndex, when Timeslice) error {
	key := PotentialRenewalId{Core: core, When: when}
	if _, ok := b.PotentialRenewals[key]; !ok {
		return errf(ErrCodeNotFound,
			"no renewal opportunity for core %d at timeslice %d", core, when)
	}
	if b.Sale == nil || b.Sale.RegionBegin <= when {
		return errf(ErrCodeStillValid,
			"renewal for core %d exercisable until the sale passes timeslice %d", core, when)
	}

	delete(b.PotentialRenewals, key)
	b.notify(PotentialRenewalDropped{Core: core, When: when})
	return nil
}
