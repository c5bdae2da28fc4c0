package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/coremarket/broker/internal/broker"
)

// SaveState replaces the stored snapshot with the given state in one
// transaction. The snapshot tables are rewritten wholesale; only the
// notification log is append-only.
func (s *Store) SaveState(ctx context.Context, state *broker.State) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{
		"status", "sale_info", "regions", "workplan", "workload",
		"reservations", "leases", "potential_renewals", "auto_renewals",
		"pool_history", "pool_io", "pool_contributions", "inbox",
	} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("save state: clear %s: %w", table, err)
		}
	}

	if err := writeSnapshot(ctx, tx, state); err != nil {
		return fmt.Errorf("save state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

func writeSnapshot(ctx context.Context, tx *sql.Tx, state *broker.State) error {
	if st := state.Status; st != nil {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO status
			(id, core_count, private_pool_size, system_pool_size, last_committed_timeslice, last_timeslice)
			VALUES (1, ?, ?, ?, ?, ?)
		`, st.CoreCount, st.PrivatePoolSize, st.SystemPoolSize, st.LastCommittedTimeslice, st.LastTimeslice)
		if err != nil {
			return fmt.Errorf("status: %w", err)
		}
	}

	if sale := state.Sale; sale != nil {
		var sellout sql.NullInt64
		if sale.SelloutPrice != nil {
			sellout = sql.NullInt64{Int64: int64(*sale.SelloutPrice), Valid: true}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sale_info
			(id, sale_start, leadin_length, end_price, sellout_price, region_begin, region_end, first_core, ideal_cores_sold, cores_offered, cores_sold)
			VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, sale.SaleStart, sale.LeadinLength, sale.EndPrice, sellout,
			sale.RegionBegin, sale.RegionEnd, sale.FirstCore,
			sale.IdealCoresSold, sale.CoresOffered, sale.CoresSold)
		if err != nil {
			return fmt.Errorf("sale_info: %w", err)
		}
	}

	for id, rec := range state.Regions {
		var paid sql.NullInt64
		if rec.Paid != nil {
			paid = sql.NullInt64{Int64: int64(*rec.Paid), Valid: true}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO regions (begin, core, mask, end, owner, paid)
			VALUES (?, ?, ?, ?, ?, ?)
		`, id.Begin, id.Core, id.Mask.String(), rec.End, string(rec.Owner), paid)
		if err != nil {
			return fmt.Errorf("regions: %w", err)
		}
	}

	for key, plan := range state.Workplan {
		text, err := marshalSchedule(plan)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO workplan (timeslice, core, plan) VALUES (?, ?, ?)
		`, key.Timeslice, key.Core, text)
		if err != nil {
			return fmt.Errorf("workplan: %w", err)
		}
	}

	for core, plan := range state.Workload {
		text, err := marshalSchedule(plan)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO workload (core, plan) VALUES (?, ?)
		`, core, text)
		if err != nil {
			return fmt.Errorf("workload: %w", err)
		}
	}

	for idx, plan := range state.Reservations {
		text, err := marshalSchedule(plan)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO reservations (idx, plan) VALUES (?, ?)
		`, idx, text)
		if err != nil {
			return fmt.Errorf("reservations: %w", err)
		}
	}

	for idx, lease := range state.Leases {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO leases (idx, task, until) VALUES (?, ?, ?)
		`, idx, lease.Task, lease.Until)
		if err != nil {
			return fmt.Errorf("leases: %w", err)
		}
	}

	for id, rec := range state.PotentialRenewals {
		text, err := marshalSchedule(rec.Schedule)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO potential_renewals (core, at, owner, price, mask, plan, complete)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, id.Core, id.When, string(rec.Owner), rec.Price, rec.Mask.String(), text, rec.Complete)
		if err != nil {
			return fmt.Errorf("potential_renewals: %w", err)
		}
	}

	for idx, intent := range state.AutoRenewals {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO auto_renewals (idx, core, task, owner, next_renewal)
			VALUES (?, ?, ?, ?, ?)
		`, idx, intent.Core, intent.Task, string(intent.Owner), intent.NextRenewal)
		if err != nil {
			return fmt.Errorf("auto_renewals: %w", err)
		}
	}

	for when, rec := range state.PoolHistory {
		var payout sql.NullInt64
		if rec.Payout != nil {
			payout = sql.NullInt64{Int64: int64(*rec.Payout), Valid: true}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO pool_history (timeslice, private_contributions, system_contributions, payout)
			VALUES (?, ?, ?, ?)
		`, when, rec.PrivateContributions, rec.SystemContributions, payout)
		if err != nil {
			return fmt.Errorf("pool_history: %w", err)
		}
	}

	for when, io := range state.PoolIo {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO pool_io (timeslice, private, system) VALUES (?, ?, ?)
		`, when, io.Private, io.System)
		if err != nil {
			return fmt.Errorf("pool_io: %w", err)
		}
	}

	for id, rec := range state.PoolContributions {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO pool_contributions (begin, core, mask, length, payee)
			VALUES (?, ?, ?, ?, ?)
		`, id.Begin, id.Core, id.Mask.String(), rec.Length, string(rec.Payee))
		if err != nil {
			return fmt.Errorf("pool_contributions: %w", err)
		}
	}

	var coreCount, revenueUntil, revenueAmount sql.NullInt64
	if state.CoreCountInbox != nil {
		coreCount = sql.NullInt64{Int64: int64(*state.CoreCountInbox), Valid: true}
	}
	if state.RevenueInbox != nil {
		revenueUntil = sql.NullInt64{Int64: int64(state.RevenueInbox.Until), Valid: true}
		revenueAmount = sql.NullInt64{Int64: int64(state.RevenueInbox.Amount), Valid: true}
	}
	if coreCount.Valid || revenueUntil.Valid {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO inbox (id, core_count, revenue_until, revenue_amount)
			VALUES (1, ?, ?, ?)
		`, coreCount, revenueUntil, revenueAmount)
		if err != nil {
			return fmt.Errorf("inbox: %w", err)
		}
	}

	return nil
}

// SaveBlock persists the logical block counter.
func (s *Store) SaveBlock(ctx context.Context, block uint64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES ('block', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, fmt.Sprintf("%d", block))
	if err != nil {
		return fmt.Errorf("save block: %w", err)
	}
	return nil
}

// SaveLedger replaces the stored account balances. Accounts are written
// in sorted order so the write pattern is deterministic.
func (s *Store) SaveLedger(ctx context.Context, balances map[broker.AccountId]broker.Balance) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save ledger: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM accounts"); err != nil {
		return fmt.Errorf("save ledger: %w", err)
	}

	accounts := make([]string, 0, len(balances))
	for account := range balances {
		accounts = append(accounts, string(account))
	}
	sort.Strings(accounts)

	for _, account := range accounts {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO accounts (account, balance) VALUES (?, ?)
		`, account, balances[broker.AccountId(account)])
		if err != nil {
			return fmt.Errorf("save ledger: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save ledger: %w", err)
	}
	return nil
}

// AppendNotifications adds notifications to the log in emission order.
// Each entry gets a UUIDv7 id; seq is assigned by the database and is
// the only ordering that matters.
func (s *Store) AppendNotifications(ctx context.Context, notifications []broker.Notification) error {
	if len(notifications) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("append notifications: %w", err)
	}
	defer tx.Rollback()

	for _, n := range notifications {
		payload, err := marshalNotification(n)
		if err != nil {
			return fmt.Errorf("append notifications: %w", err)
		}
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("append notifications: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO notifications (id, kind, payload) VALUES (?, ?, ?)
		`, id.String(), n.Kind(), payload)
		if err != nil {
			return fmt.Errorf("append notifications: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("append notifications: %w", err)
	}
	return nil
}
