package broker

// cloneSchedule copies a schedule so ledger entries never alias.
func cloneSchedule(s Schedule) Schedule {
	out := make(Schedule, len(s))
	copy(out, s)
	return out
}

// workplanBegin is the earliest timeslice an entry for this region can
// still be committed at: its begin, unless that has already passed.
func (b *Broker) workplanBegin(id RegionId, rec *RegionRecord) (Timeslice, error) {
	begin := id.Begin
	if b.Status != nil && begin <= b.Status.LastCommittedTimeslice {
		begin = b.Status.LastCommittedTimeslice + 1
	}
	if begin >= rec.End {
		return 0, errf(ErrCodeNotFound, "region %v has fully elapsed", id)
	}
	return begin, nil
}

// placeWorkplanItem merges an item into the workplan entry at key,
// evicting anything its mask overlaps.
func (b *Broker) placeWorkplanItem(key WorkplanKey, item ScheduleItem) {
	existing := b.Workplan[key]
	merged := make(Schedule, 0, len(existing)+1)
	for _, prev := range existing {
		if prev.Mask.Intersection(item.Mask).IsVoid() {
			merged = append(merged, prev)
		}
	}
	merged = append(merged, item)
	b.Workplan[key] = merged
}

// Assign commits a region's capacity to run a task, writing the plan for
// the region's span. Final assignments consume the region's custody and
// (for directly purchased regions) open a renewal opportunity at its
// end; provisional assignments leave the region transferable and
// reassignable.
func (b *Broker) Assign(who AccountId, id RegionId, task TaskId, finality Finality) error {
	rec, err := b.ownedRegion(who, id)
	if err != nil {
		return err
	}
	begin, err := b.workplanBegin(id, rec)
	if err != nil {
		return err
	}

	item := ScheduleItem{Mask: id.Mask, Assignment: Task(task)}
	b.placeWorkplanItem(WorkplanKey{Timeslice: begin, Core: id.Core}, item)

	if finality == Final {
		if rec.Paid != nil {
			b.recordPotentialRenewal(id, rec, item)
		}
		delete(b.Regions, id)
	}

	b.log.Info("region assigned",
		"region", id, "task", task, "finality", finality)
	b.notify(Assigned{RegionId: id, Task: task, Duration: rec.End - begin})
	return nil
}

// Pool contributes a region's capacity to the shared on-demand pool,
// crediting payee when the pool's revenue for those timeslices resolves.
func (b *Broker) Pool(who AccountId, id RegionId, payee AccountId, finality Finality) error {
	rec, err := b.ownedRegion(who, id)
	if err != nil {
		return err
	}
	begin, err := b.workplanBegin(id, rec)
	if err != nil {
		return err
	}

	item := ScheduleItem{Mask: id.Mask, Assignment: PoolAssignment()}
	b.placeWorkplanItem(WorkplanKey{Timeslice: begin, Core: id.Core}, item)

	parts := maskParts(id.Mask)
	b.addPoolIo(begin, int64(parts), 0)
	b.addPoolIo(rec.End, -int64(parts), 0)

	contribution := RegionId{Begin: begin, Core: id.Core, Mask: id.Mask}
	b.PoolContributions[contribution] = &ContributionRecord{
		Length: rec.End - begin,
		Payee:  payee,
	}

	if finality == Final {
		delete(b.Regions, id)
	}

	b.log.Info("region pooled", "region", id, "payee", payee, "finality", finality)
	b.notify(Pooled{RegionId: id, Duration: rec.End - begin})
	return nil
}

// processCoreSchedule moves the workplan entry for (timeslice, core), if
// any, into the live workload, replacing the previous entry wholesale. A
// core with no new plan keeps running whatever it last had; a core that
// never had one stays idle.
func (b *Broker) processCoreSchedule(timeslice Timeslice, core CoreIndex) {
	key := WorkplanKey{Timeslice: timeslice, Core: core}
	plan, ok := b.Workplan[key]
	if !ok {
		return
	}
	delete(b.Workplan, key)
	b.Workload[core] = plan

	weights := make([]AssignmentWeight, len(plan))
	for i, item := range plan {
		weights[i] = AssignmentWeight{Assignment: item.Assignment, Parts: maskParts(item.Mask)}
	}

	rcBegin := uint64(timeslice) * b.cfg.TimeslicePeriod
	b.log.Debug("core schedule committed", "core", core, "timeslice", timeslice)
	b.notify(CoreAssigned{Core: core, When: rcBegin, Assignment: weights})
}
