package broker

import (
	"github.com/coremarket/broker/internal/mask"
)

// Timeslice is the atomic unit of allocation time, derived from the
// external block counter via the configured timeslice period.
type Timeslice uint32

// CoreIndex identifies one allocatable core in [0, core_count).
type CoreIndex uint16

// TaskId identifies the workload a core part is assigned to run.
type TaskId uint32

// AccountId identifies a ledger account.
type AccountId string

// Balance is an amount of currency.
type Balance uint64

// PartCount counts capacity parts (mask-weight units): one core
// contributes TotalParts per timeslice.
type PartCount uint64

// TotalParts is the full capacity weight of one core per timeslice.
// Each mask bit is worth TotalParts / mask.Bits = 720 parts.
const TotalParts PartCount = 57600

// PartsPerBit is the capacity weight of a single mask bit.
const PartsPerBit = TotalParts / PartCount(mask.Bits)

// BrokerAccount is the system account holding sale proceeds until
// revenue claims draw them down.
const BrokerAccount AccountId = "broker"

// maskParts returns the capacity weight of a mask.
func maskParts(m mask.CoreMask) PartCount {
	return PartsPerBit * PartCount(m.Count())
}

// RegionId is the key of a region: an ownable claim on the Mask-fraction
// of core Core's capacity beginning at timeslice Begin.
type RegionId struct {
	Begin Timeslice     `json:"begin"`
	Core  CoreIndex     `json:"core"`
	Mask  mask.CoreMask `json:"mask"`
}

// RegionRecord is the value side of a region: who owns it, when it ends,
// and what was paid for it. Paid is nil once a region has been split by
// partition; such pieces are no longer renewal-eligible.
type RegionRecord struct {
	End   Timeslice  `json:"end"`
	Owner AccountId  `json:"owner"`
	Paid  *Balance   `json:"paid,omitempty"`
}

// AssignmentKind discriminates what a schedule item makes a core part do.
type AssignmentKind string

const (
	// AssignIdle leaves the parts unused.
	AssignIdle AssignmentKind = "idle"
	// AssignPool contributes the parts to the shared on-demand pool.
	AssignPool AssignmentKind = "pool"
	// AssignTask runs a specific task on the parts.
	AssignTask AssignmentKind = "task"
)

// CoreAssignment is one assignment: idle, pool, or a concrete task.
type CoreAssignment struct {
	Kind AssignmentKind `json:"kind"`
	Task TaskId         `json:"task,omitempty"`
}

// Idle returns the idle assignment.
func Idle() CoreAssignment { return CoreAssignment{Kind: AssignIdle} }

// PoolAssignment returns the shared-pool assignment.
func PoolAssignment() CoreAssignment { return CoreAssignment{Kind: AssignPool} }

// Task returns the assignment running task t.
func Task(t TaskId) CoreAssignment { return CoreAssignment{Kind: AssignTask, Task: t} }

// ScheduleItem binds an assignment to the parts of a core it occupies.
type ScheduleItem struct {
	Mask       mask.CoreMask  `json:"mask"`
	Assignment CoreAssignment `json:"assignment"`
}

// Schedule is an ordered list of items whose masks partition (possibly
// incompletely — the remainder is idle) the full core mask.
type Schedule []ScheduleItem

// PoolParts returns the total capacity weight of the schedule's pool items.
func (s Schedule) PoolParts() PartCount {
	var total PartCount
	for _, item := range s {
		if item.Assignment.Kind == AssignPool {
			total += maskParts(item.Mask)
		}
	}
	return total
}

// WorkplanKey addresses the future plan for one core at one timeslice.
type WorkplanKey struct {
	Timeslice Timeslice `json:"timeslice"`
	Core      CoreIndex `json:"core"`
}

// SaleInfoRecord describes the sale currently in progress. There is one
// live instance, replaced wholesale at rotation.
type SaleInfoRecord struct {
	// SaleStart is the block at which the interlude ends and purchases
	// open (descending through the lead-in from there).
	SaleStart uint64 `json:"sale_start"`
	// LeadinLength is the number of blocks of descending price.
	LeadinLength uint64 `json:"leadin_length"`
	// EndPrice is the price reached at the end of the lead-in, constant
	// for the rest of the sale.
	EndPrice Balance `json:"end_price"`
	// SelloutPrice is set the first time every offered core is sold.
	SelloutPrice *Balance `json:"sellout_price,omitempty"`
	// RegionBegin/RegionEnd bound the timeslice span being sold.
	RegionBegin Timeslice `json:"region_begin"`
	RegionEnd   Timeslice `json:"region_end"`
	// FirstCore is the first core index offered; reserved and leased
	// cores occupy the indices below it.
	FirstCore CoreIndex `json:"first_core"`
	// IdealCoresSold is the configured ideal sale outcome.
	IdealCoresSold uint16 `json:"ideal_cores_sold"`
	CoresOffered   uint16 `json:"cores_offered"`
	CoresSold      uint16 `json:"cores_sold"`
}

// StatusRecord is the process-wide state mutated once per tick.
type StatusRecord struct {
	CoreCount              uint16    `json:"core_count"`
	PrivatePoolSize        PartCount `json:"private_pool_size"`
	SystemPoolSize         PartCount `json:"system_pool_size"`
	LastCommittedTimeslice Timeslice `json:"last_committed_timeslice"`
	LastTimeslice          Timeslice `json:"last_timeslice"`
}

// LeaseRecordItem is one fixed-term assignment exempt from the sale.
type LeaseRecordItem struct {
	Task  TaskId    `json:"task"`
	Until Timeslice `json:"until"`
}

// PotentialRenewalId keys a renewal opportunity: the core it is for and
// the timeslice at which the renewed region would begin.
type PotentialRenewalId struct {
	Core CoreIndex `json:"core"`
	When Timeslice `json:"when"`
}

// PotentialRenewalRecord holds the price history and (once the whole
// core's mask has been finally assigned) the schedule a renewal would
// re-execute. While the assigned masks do not yet cover the core, the
// record is partial and cannot be exercised. Owner is the account that
// held the region when it was assigned; auto-renewal may only be
// enabled by it.
type PotentialRenewalRecord struct {
	Owner    AccountId     `json:"owner"`
	Price    Balance       `json:"price"`
	Mask     mask.CoreMask `json:"mask"`
	Schedule Schedule      `json:"schedule"`
	Complete bool          `json:"complete"`
}

// AutoRenewalRecord is a registered intent to renew a core's commitment
// at every rotation on behalf of its owner.
type AutoRenewalRecord struct {
	Core        CoreIndex `json:"core"`
	Task        TaskId    `json:"task"`
	Owner       AccountId `json:"owner"`
	NextRenewal Timeslice `json:"next_renewal"`
}

// InstaPoolHistoryRecord tracks one timeslice of shared-pool capacity.
// Payout is nil until matching revenue arrives; afterwards it holds the
// private share still unclaimed, and PrivateContributions winds down as
// claims are serviced.
type InstaPoolHistoryRecord struct {
	PrivateContributions PartCount `json:"private_contributions"`
	SystemContributions  PartCount `json:"system_contributions"`
	Payout               *Balance  `json:"payout,omitempty"`
}

// PoolIoRecord is the pool-size delta applied when a timeslice becomes
// current: contributions beginning minus contributions ending there.
type PoolIoRecord struct {
	Private int64 `json:"private"`
	System  int64 `json:"system"`
}

// ContributionRecord tracks a pool-contributing region for later claims.
type ContributionRecord struct {
	Length Timeslice `json:"length"`
	Payee  AccountId `json:"payee"`
}

// RevenueRecord is the single-slot revenue inbox entry: Amount collected
// from the on-demand pool for blocks up to (excluding) Until.
type RevenueRecord struct {
	Until  uint64  `json:"until"`
	Amount Balance `json:"amount"`
}

// Finality says whether an assignment is eternal (renewal-eligible,
// region custody consumed) or provisional (region stays reassignable).
type Finality string

const (
	Provisional Finality = "provisional"
	Final       Finality = "final"
)

// State is the full persisted state layout of one broker. All records
// are exclusively owned by the broker; the store copies them wholesale.
type State struct {
	Status            *StatusRecord
	Sale              *SaleInfoRecord
	Regions           map[RegionId]*RegionRecord
	Workplan          map[WorkplanKey]Schedule
	Workload          map[CoreIndex]Schedule
	Reservations      []Schedule
	Leases            []LeaseRecordItem
	PotentialRenewals map[PotentialRenewalId]*PotentialRenewalRecord
	AutoRenewals      []AutoRenewalRecord
	PoolHistory       map[Timeslice]*InstaPoolHistoryRecord
	PoolIo            map[Timeslice]*PoolIoRecord
	PoolContributions map[RegionId]*ContributionRecord
	CoreCountInbox    *uint16
	RevenueInbox      *RevenueRecord
}

// NewState returns an empty state with all ledgers allocated.
func NewState() *State {
	return &State{
		Regions:           make(map[RegionId]*RegionRecord),
		Workplan:          make(map[WorkplanKey]Schedule),
		Workload:          make(map[CoreIndex]Schedule),
		PotentialRenewals: make(map[PotentialRenewalId]*PotentialRenewalRecord),
		PoolHistory:       make(map[Timeslice]*InstaPoolHistoryRecord),
		PoolIo:            make(map[Timeslice]*PoolIoRecord),
		PoolContributions: make(map[RegionId]*ContributionRecord),
	}
}
