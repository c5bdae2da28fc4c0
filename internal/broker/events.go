package broker

// Notification is one entry of the fixed vocabulary the broker emits to
// the external notification sink. Each type's field set is part of the
// external contract and is reproduced exactly.
type Notification interface {
	Kind() string
}

// SaleInitialized announces a new sale cycle.
type SaleInitialized struct {
	SaleStart      uint64    `json:"sale_start"`
	LeadinLength   uint64    `json:"leadin_length"`
	StartPrice     Balance   `json:"start_price"`
	EndPrice       Balance   `json:"end_price"`
	RegionBegin    Timeslice `json:"region_begin"`
	RegionEnd      Timeslice `json:"region_end"`
	IdealCoresSold uint16    `json:"ideal_cores_sold"`
	CoresOffered   uint16    `json:"cores_offered"`
}

func (SaleInitialized) Kind() string { return "sale_initialized" }

// Purchased reports a bulk purchase and the region it created.
type Purchased struct {
	Who      AccountId `json:"who"`
	RegionId RegionId  `json:"region_id"`
	Price    Balance   `json:"price"`
	Duration Timeslice `json:"duration"`
}

func (Purchased) Kind() string { return "purchased" }

// Renewed reports a commitment re-purchased outside the open sale.
type Renewed struct {
	Who      AccountId `json:"who"`
	OldCore  CoreIndex `json:"old_core"`
	Core     CoreIndex `json:"core"`
	Price    Balance   `json:"price"`
	Begin    Timeslice `json:"begin"`
	Duration Timeslice `json:"duration"`
	Workload Schedule  `json:"workload"`
}

func (Renewed) Kind() string { return "renewed" }

// Transferred reports a region changing owner.
type Transferred struct {
	RegionId RegionId  `json:"region_id"`
	OldOwner AccountId `json:"old_owner"`
	Owner    AccountId `json:"owner"`
	Duration Timeslice `json:"duration"`
}

func (Transferred) Kind() string { return "transferred" }

// Partitioned reports a region split on the time axis.
type Partitioned struct {
	OldRegionId  RegionId    `json:"old_region_id"`
	NewRegionIds [2]RegionId `json:"new_region_ids"`
}

func (Partitioned) Kind() string { return "partitioned" }

// Interlaced reports a region split on the mask axis.
type Interlaced struct {
	OldRegionId  RegionId    `json:"old_region_id"`
	NewRegionIds [2]RegionId `json:"new_region_ids"`
}

func (Interlaced) Kind() string { return "interlaced" }

// Assigned reports a region's capacity committed to a task.
type Assigned struct {
	RegionId RegionId  `json:"region_id"`
	Task     TaskId    `json:"task"`
	Duration Timeslice `json:"duration"`
}

func (Assigned) Kind() string { return "assigned" }

// Pooled reports a region's capacity contributed to the shared pool.
type Pooled struct {
	RegionId RegionId  `json:"region_id"`
	Duration Timeslice `json:"duration"`
}

func (Pooled) Kind() string { return "pooled" }

// CoreCountRequested reports an accepted core-count change request.
type CoreCountRequested struct {
	CoreCount uint16 `json:"core_count"`
}

func (CoreCountRequested) Kind() string { return "core_count_requested" }

// CoreCountChanged reports the request taking effect at a tick.
type CoreCountChanged struct {
	CoreCount uint16 `json:"core_count"`
}

func (CoreCountChanged) Kind() string { return "core_count_changed" }

// ReservationMade reports a schedule added to the reservations list.
type ReservationMade struct {
	Index int `json:"index"`
}

func (ReservationMade) Kind() string { return "reservation_made" }

// ReservationCancelled reports a reservation removed.
type ReservationCancelled struct {
	Index int `json:"index"`
}

func (ReservationCancelled) Kind() string { return "reservation_cancelled" }

// Leased reports a new lease.
type Leased struct {
	Task  TaskId    `json:"task"`
	Until Timeslice `json:"until"`
}

func (Leased) Kind() string { return "leased" }

// LeaseEnding reports a lease that will not survive the next sale region.
type LeaseEnding struct {
	Task TaskId    `json:"task"`
	When Timeslice `json:"when"`
}

func (LeaseEnding) Kind() string { return "lease_ending" }

// RevenueClaimBegun reports the start of a bounded claim walk.
type RevenueClaimBegun struct {
	RegionId      RegionId  `json:"region_id"`
	MaxTimeslices Timeslice `json:"max_timeslices"`
}

func (RevenueClaimBegun) Kind() string { return "revenue_claim_begun" }

// RevenueClaimItem reports one timeslice's share within a claim walk.
type RevenueClaimItem struct {
	When   Timeslice `json:"when"`
	Amount Balance   `json:"amount"`
}

func (RevenueClaimItem) Kind() string { return "revenue_claim_item" }

// RevenueClaimPaid reports the total paid out by a claim, and where the
// next claim should resume, if anywhere.
type RevenueClaimPaid struct {
	Who    AccountId `json:"who"`
	Amount Balance   `json:"amount"`
	Next   *RegionId `json:"next,omitempty"`
}

func (RevenueClaimPaid) Kind() string { return "revenue_claim_paid" }

// CreditPurchased reports funds converted into on-demand credit for a
// beneficiary on the external system.
type CreditPurchased struct {
	Who         AccountId `json:"who"`
	Beneficiary AccountId `json:"beneficiary"`
	Amount      Balance   `json:"amount"`
}

func (CreditPurchased) Kind() string { return "credit_purchased" }

// RegionDropped reports an expired region removed from the ledger.
type RegionDropped struct {
	RegionId RegionId  `json:"region_id"`
	Duration Timeslice `json:"duration"`
}

func (RegionDropped) Kind() string { return "region_dropped" }

// ContributionDropped reports an expired pool contribution removed.
type ContributionDropped struct {
	RegionId RegionId `json:"region_id"`
}

func (ContributionDropped) Kind() string { return "contribution_dropped" }

// HistoryInitialized reports pool accounting opened for a timeslice.
type HistoryInitialized struct {
	When            Timeslice `json:"when"`
	PrivatePoolSize PartCount `json:"private_pool_size"`
	SystemPoolSize  PartCount `json:"system_pool_size"`
}

func (HistoryInitialized) Kind() string { return "history_initialized" }

// HistoryDropped reports a stale pool history record removed, along with
// any unclaimed revenue it still held.
type HistoryDropped struct {
	When    Timeslice `json:"when"`
	Revenue Balance   `json:"revenue"`
}

func (HistoryDropped) Kind() string { return "history_dropped" }

// ClaimsReady reports revenue resolved against a timeslice's pool
// history: the system share is burned, the private share awaits claims.
type ClaimsReady struct {
	When          Timeslice `json:"when"`
	SystemPayout  Balance   `json:"system_payout"`
	PrivatePayout Balance   `json:"private_payout"`
}

func (ClaimsReady) Kind() string { return "claims_ready" }

// AssignmentWeight is one (assignment, parts) pair of a materialized
// core schedule.
type AssignmentWeight struct {
	Assignment CoreAssignment `json:"assignment"`
	Parts      PartCount      `json:"parts"`
}

// CoreAssigned reports a core's workload replaced at a timeslice
// boundary, enumerating the resulting weighted assignments.
type CoreAssigned struct {
	Core       CoreIndex          `json:"core"`
	When       uint64             `json:"when"`
	Assignment []AssignmentWeight `json:"assignment"`
}

func (CoreAssigned) Kind() string { return "core_assigned" }

// PotentialRenewalDropped reports a lapsed renewal opportunity removed.
type PotentialRenewalDropped struct {
	Core CoreIndex `json:"core"`
	When Timeslice `json:"when"`
}

func (PotentialRenewalDropped) Kind() string { return "potential_renewal_dropped" }

// AutoRenewalEnabled reports a registered auto-renewal intent.
type AutoRenewalEnabled struct {
	Core CoreIndex `json:"core"`
	Task TaskId    `json:"task"`
}

func (AutoRenewalEnabled) Kind() string { return "auto_renewal_enabled" }

// AutoRenewalDisabled reports an auto-renewal intent removed, whether by
// request or because its execution failed.
type AutoRenewalDisabled struct {
	Core CoreIndex `json:"core"`
	Task TaskId    `json:"task"`
}

func (AutoRenewalDisabled) Kind() string { return "auto_renewal_disabled" }
