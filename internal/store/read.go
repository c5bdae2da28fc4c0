package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/coremarket/broker/internal/broker"
)

// LoadState reads the stored snapshot back into a fresh state. A
// database that never saw a snapshot yields an empty state.
func (s *Store) LoadState(ctx context.Context) (*broker.State, error) {
	state := broker.NewState()

	if err := s.loadStatus(ctx, state); err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	if err := s.loadSale(ctx, state); err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	if err := s.loadRegions(ctx, state); err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	if err := s.loadSchedules(ctx, state); err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	if err := s.loadRenewals(ctx, state); err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	if err := s.loadPools(ctx, state); err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	if err := s.loadInbox(ctx, state); err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}

	return state, nil
}

func (s *Store) loadStatus(ctx context.Context, state *broker.State) error {
	var st broker.StatusRecord
	err := s.db.QueryRowContext(ctx, `
		SELECT core_count, private_pool_size, system_pool_size, last_committed_timeslice, last_timeslice
		FROM status WHERE id = 1
	`).Scan(&st.CoreCount, &st.PrivatePoolSize, &st.SystemPoolSize,
		&st.LastCommittedTimeslice, &st.LastTimeslice)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}
	state.Status = &st
	return nil
}

func (s *Store) loadSale(ctx context.Context, state *broker.State) error {
	var sale broker.SaleInfoRecord
	var sellout sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT sale_start, leadin_length, end_price, sellout_price, region_begin, region_end, first_core, ideal_cores_sold, cores_offered, cores_sold
		FROM sale_info WHERE id = 1
	`).Scan(&sale.SaleStart, &sale.LeadinLength, &sale.EndPrice, &sellout,
		&sale.RegionBegin, &sale.RegionEnd, &sale.FirstCore,
		&sale.IdealCoresSold, &sale.CoresOffered, &sale.CoresSold)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("sale_info: %w", err)
	}
	if sellout.Valid {
		price := broker.Balance(sellout.Int64)
		sale.SelloutPrice = &price
	}
	state.Sale = &sale
	return nil
}

func (s *Store) loadRegions(ctx context.Context, state *broker.State) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT begin, core, mask, end, owner, paid
		FROM regions ORDER BY begin, core, mask
	`)
	if err != nil {
		return fmt.Errorf("regions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id broker.RegionId
		var rec broker.RegionRecord
		var maskText, owner string
		var paid sql.NullInt64
		if err := rows.Scan(&id.Begin, &id.Core, &maskText, &rec.End, &owner, &paid); err != nil {
			return fmt.Errorf("regions: %w", err)
		}
		if id.Mask, err = parseMask(maskText); err != nil {
			return fmt.Errorf("regions: %w", err)
		}
		rec.Owner = broker.AccountId(owner)
		if paid.Valid {
			amount := broker.Balance(paid.Int64)
			rec.Paid = &amount
		}
		state.Regions[id] = &rec
	}
	return rows.Err()
}

func (s *Store) loadSchedules(ctx context.Context, state *broker.State) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timeslice, core, plan FROM workplan ORDER BY timeslice, core
	`)
	if err != nil {
		return fmt.Errorf("workplan: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var key broker.WorkplanKey
		var text string
		if err := rows.Scan(&key.Timeslice, &key.Core, &text); err != nil {
			return fmt.Errorf("workplan: %w", err)
		}
		plan, err := unmarshalSchedule(text)
		if err != nil {
			return fmt.Errorf("workplan: %w", err)
		}
		state.Workplan[key] = plan
	}
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = s.db.QueryContext(ctx, `SELECT core, plan FROM workload ORDER BY core`)
	if err != nil {
		return fmt.Errorf("workload: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var core broker.CoreIndex
		var text string
		if err := rows.Scan(&core, &text); err != nil {
			return fmt.Errorf("workload: %w", err)
		}
		plan, err := unmarshalSchedule(text)
		if err != nil {
			return fmt.Errorf("workload: %w", err)
		}
		state.Workload[core] = plan
	}
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = s.db.QueryContext(ctx, `SELECT plan FROM reservations ORDER BY idx`)
	if err != nil {
		return fmt.Errorf("reservations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return fmt.Errorf("reservations: %w", err)
		}
		plan, err := unmarshalSchedule(text)
		if err != nil {
			return fmt.Errorf("reservations: %w", err)
		}
		state.Reservations = append(state.Reservations, plan)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = s.db.QueryContext(ctx, `SELECT task, until FROM leases ORDER BY idx`)
	if err != nil {
		return fmt.Errorf("leases: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var lease broker.LeaseRecordItem
		if err := rows.Scan(&lease.Task, &lease.Until); err != nil {
			return fmt.Errorf("leases: %w", err)
		}
		state.Leases = append(state.Leases, lease)
	}
	return rows.Err()
}

func (s *Store) loadRenewals(ctx context.Context, state *broker.State) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT core, at, owner, price, mask, plan, complete
		FROM potential_renewals ORDER BY core, at
	`)
	if err != nil {
		return fmt.Errorf("potential_renewals: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id broker.PotentialRenewalId
		var rec broker.PotentialRenewalRecord
		var maskText, planText string
		if err := rows.Scan(&id.Core, &id.When, &rec.Owner, &rec.Price, &maskText, &planText, &rec.Complete); err != nil {
			return fmt.Errorf("potential_renewals: %w", err)
		}
		if rec.Mask, err = parseMask(maskText); err != nil {
			return fmt.Errorf("potential_renewals: %w", err)
		}
		if rec.Schedule, err = unmarshalSchedule(planText); err != nil {
			return fmt.Errorf("potential_renewals: %w", err)
		}
		state.PotentialRenewals[id] = &rec
	}
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = s.db.QueryContext(ctx, `
		SELECT core, task, owner, next_renewal FROM auto_renewals ORDER BY idx
	`)
	if err != nil {
		return fmt.Errorf("auto_renewals: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var intent broker.AutoRenewalRecord
		var owner string
		if err := rows.Scan(&intent.Core, &intent.Task, &owner, &intent.NextRenewal); err != nil {
			return fmt.Errorf("auto_renewals: %w", err)
		}
		intent.Owner = broker.AccountId(owner)
		state.AutoRenewals = append(state.AutoRenewals, intent)
	}
	return rows.Err()
}

func (s *Store) loadPools(ctx context.Context, state *broker.State) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timeslice, private_contributions, system_contributions, payout
		FROM pool_history ORDER BY timeslice
	`)
	if err != nil {
		return fmt.Errorf("pool_history: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var when broker.Timeslice
		var rec broker.InstaPoolHistoryRecord
		var payout sql.NullInt64
		if err := rows.Scan(&when, &rec.PrivateContributions, &rec.SystemContributions, &payout); err != nil {
			return fmt.Errorf("pool_history: %w", err)
		}
		if payout.Valid {
			amount := broker.Balance(payout.Int64)
			rec.Payout = &amount
		}
		state.PoolHistory[when] = &rec
	}
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = s.db.QueryContext(ctx, `
		SELECT timeslice, private, system FROM pool_io ORDER BY timeslice
	`)
	if err != nil {
		return fmt.Errorf("pool_io: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var when broker.Timeslice
		var io broker.PoolIoRecord
		if err := rows.Scan(&when, &io.Private, &io.System); err != nil {
			return fmt.Errorf("pool_io: %w", err)
		}
		state.PoolIo[when] = &io
	}
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = s.db.QueryContext(ctx, `
		SELECT begin, core, mask, length, payee
		FROM pool_contributions ORDER BY begin, core, mask
	`)
	if err != nil {
		return fmt.Errorf("pool_contributions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id broker.RegionId
		var rec broker.ContributionRecord
		var maskText, payee string
		if err := rows.Scan(&id.Begin, &id.Core, &maskText, &rec.Length, &payee); err != nil {
			return fmt.Errorf("pool_contributions: %w", err)
		}
		if id.Mask, err = parseMask(maskText); err != nil {
			return fmt.Errorf("pool_contributions: %w", err)
		}
		rec.Payee = broker.AccountId(payee)
		state.PoolContributions[id] = &rec
	}
	return rows.Err()
}

func (s *Store) loadInbox(ctx context.Context, state *broker.State) error {
	var coreCount, revenueUntil, revenueAmount sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT core_count, revenue_until, revenue_amount FROM inbox WHERE id = 1
	`).Scan(&coreCount, &revenueUntil, &revenueAmount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("inbox: %w", err)
	}
	if coreCount.Valid {
		count := uint16(coreCount.Int64)
		state.CoreCountInbox = &count
	}
	if revenueUntil.Valid {
		state.RevenueInbox = &broker.RevenueRecord{
			Until:  uint64(revenueUntil.Int64),
			Amount: broker.Balance(revenueAmount.Int64),
		}
	}
	return nil
}

// LoadBlock reads the persisted logical block counter, 0 if unset.
func (s *Store) LoadBlock(ctx context.Context) (uint64, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'block'`).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load block: %w", err)
	}
	block, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("load block: %w", err)
	}
	return block, nil
}

// LoadLedger reads the persisted account balances.
func (s *Store) LoadLedger(ctx context.Context) (map[broker.AccountId]broker.Balance, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT account, balance FROM accounts ORDER BY account`)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	defer rows.Close()

	balances := make(map[broker.AccountId]broker.Balance)
	for rows.Next() {
		var account string
		var balance broker.Balance
		if err := rows.Scan(&account, &balance); err != nil {
			return nil, fmt.Errorf("load ledger: %w", err)
		}
		balances[broker.AccountId(account)] = balance
	}
	return balances, rows.Err()
}

// LoggedNotification is one row of the notification log.
type LoggedNotification struct {
	Seq     int64           `json:"seq"`
	ID      string          `json:"id"`
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// ReadNotifications returns log entries in seq order. A kind filter
// narrows the result; limit <= 0 means no limit.
func (s *Store) ReadNotifications(ctx context.Context, kind string, limit int) ([]LoggedNotification, error) {
	query := `SELECT seq, id, kind, payload FROM notifications`
	var args []any
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, kind)
	}
	query += ` ORDER BY seq ASC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("read notifications: %w", err)
	}
	defer rows.Close()

	var out []LoggedNotification
	for rows.Next() {
		var n LoggedNotification
		var payload string
		if err := rows.Scan(&n.Seq, &n.ID, &n.Kind, &payload); err != nil {
			return nil, fmt.Errorf("read notifications: %w", err)
		}
		n.Payload = json.RawMessage(payload)
		out = append(out, n)
	}
	return out, rows.Err()
}
