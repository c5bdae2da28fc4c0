// Package broker implements the coretime marketplace core: the sale
// pricing and lifecycle state machine, the region ownership ledger with
// its partition/interlace algebra, the workplan-to-workload scheduler,
// the shared-pool revenue accountant, and the renewal manager, all driven
// by a tick orchestrator.
//
// ARCHITECTURE:
//
// Single-writer, run-to-completion:
// Every operation runs to completion synchronously; there is no internal
// parallelism and nothing suspends. The host serializes all calls against
// one Broker, so ticks and externally-triggered operations (purchase,
// assign, claim, renew) never overlap. This keeps evaluation fully
// deterministic and the notification trace exactly reproducible.
//
// Tick processing order is fixed, because later steps read state written
// by earlier ones:
//  1. core-count inbox intake
//  2. revenue inbox intake
//  3. per-timeslice commitment: pool-history init, then per-core
//     schedule materialization
//  4. sale rotation (including renewals) once the sale's region elapses
//
// Validate-then-commit:
// Every operation checks all of its preconditions before the first state
// mutation. Partition, interlace and assignment are atomic all-or-nothing;
// a failed operation leaves no partial state behind.
//
// Time:
// The broker never advances time itself. A BlockClock supplies the
// external block counter and timeslices are derived from it through the
// configured period. Idempotence across repeated ticks at one boundary
// hangs off StatusRecord.LastCommittedTimeslice.
package broker
