package broker

import "github.com/coremarket/broker/internal/mask"

// region looks up a region record by id.
func (b *Broker) region(id RegionId) (*RegionRecord, error) {
	rec, ok := b.Regions[id]
	if !ok {
		return nil, errf(ErrCodeNotFound, "unknown region %v", id)
	}
	return rec, nil
}

// ownedRegion looks up a region and checks that who owns it.
func (b *Broker) ownedRegion(who AccountId, id RegionId) (*RegionRecord, error) {
	rec, err := b.region(id)
	if err != nil {
		return nil, err
	}
	if rec.Owner != who {
		return nil, errf(ErrCodeUnauthorized, "region %v is not owned by %s", id, who)
	}
	return rec, nil
}

// Transfer moves a region to a new owner.
func (b *Broker) Transfer(who AccountId, id RegionId, newOwner AccountId) error {
	rec, err := b.ownedRegion(who, id)
	if err != nil {
		return err
	}

	oldOwner := rec.Owner
	rec.Owner = newOwner

	b.log.Info("region transferred", "region", id, "from", oldOwner, "to", newOwner)
	b.notify(Transferred{
		RegionId: id,
		OldOwner: oldOwner,
		Owner:    newOwner,
		Duration: rec.End - id.Begin,
	})
	return nil
}

// Partition splits a region on the time axis at begin+pivot. The source
// region is consumed atomically with the two pieces' insertion; the
// pieces keep the mask and owner but lose renewal eligibility.
func (b *Broker) Partition(who AccountId, id RegionId, pivot Timeslice) (RegionId, RegionId, error) {
	rec, err := b.ownedRegion(who, id)
	if err != nil {
		return RegionId{}, RegionId{}, err
	}
	if pivot == 0 || id.Begin+pivot >= rec.End {
		return RegionId{}, RegionId{}, errf(ErrCodeInvalidOffset,
			"pivot %d outside span of %d timeslices", pivot, rec.End-id.Begin)
	}

	firstId := id
	secondId := RegionId{Begin: id.Begin + pivot, Core: id.Core, Mask: id.Mask}

	delete(b.Regions, id)
	b.Regions[firstId] = &RegionRecord{End: id.Begin + pivot, Owner: rec.Owner}
	b.Regions[secondId] = &RegionRecord{End: rec.End, Owner: rec.Owner}

	b.log.Info("region partitioned", "region", id, "pivot", pivot)
	b.notify(Partitioned{OldRegionId: id, NewRegionIds: [2]RegionId{firstId, secondId}})
	return firstId, secondId, nil
}

// Interlace splits a region on the mask axis into pick and the
// remainder. Requires pick to be a non-empty proper subset of the
// region's mask. Capacity is conserved: the pieces are disjoint and
// union back to the original mask.
func (b *Broker) Interlace(who AccountId, id RegionId, pick mask.CoreMask) (RegionId, RegionId, error) {
	rec, err := b.ownedRegion(who, id)
	if err != nil {
		return RegionId{}, RegionId{}, err
	}
	if pick.IsVoid() || !pick.IsSubsetOf(id.Mask) || pick == id.Mask {
		return RegionId{}, RegionId{}, errf(ErrCodeInvalidMask,
			"mask %s is not a proper non-empty subset of %s", pick, id.Mask)
	}

	firstId := RegionId{Begin: id.Begin, Core: id.Core, Mask: pick}
	secondId := RegionId{Begin: id.Begin, Core: id.Core, Mask: id.Mask.Without(pick)}

	delete(b.Regions, id)
	b.Regions[firstId] = &RegionRecord{End: rec.End, Owner: rec.Owner, Paid: rec.Paid}
	b.Regions[secondId] = &RegionRecord{End: rec.End, Owner: rec.Owner, Paid: rec.Paid}

	b.log.Info("region interlaced", "region", id, "pick", pick.String())
	b.notify(Interlaced{OldRegionId: id, NewRegionIds: [2]RegionId{firstId, secondId}})
	return firstId, secondId, nil
}

// DropRegion removes a region whose span has fully elapsed. Dropping is
// permissionless; dropping a region still in its span fails.
func (b *Broker) DropRegion(id RegionId) error {
	rec, err := b.region(id)
	if err != nil {
		return err
	}
	if b.Status == nil || b.Status.LastCommittedTimeslice < rec.End {
		return errf(ErrCodeStillValid, "region %v runs until timeslice %d", id, rec.End)
	}

	delete(b.Regions, id)

	b.log.Info("region dropped", "region", id)
	b.notify(RegionDropped{RegionId: id, Duration: rec.End - id.Begin})
	return nil
}
