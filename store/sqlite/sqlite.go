/*
Package sqlite provides the SQLite-backed implementation of billing.Store.

PURPOSE:
  Persists tenants, billing cycles, and payments with the constraints the
  engine relies on:
  - UNIQUE (tenant_id, year, month) on billing_cycles -> DuplicateCycle
  - FOREIGN KEY payments -> billing_cycles, ON DELETE CASCADE
  In production the same patterns apply to PostgreSQL - only minor SQL
  dialect differences.

REPRESENTATION:
  Money and meter readings are stored as decimal strings, never floats.
  Summation happens in decimal in Go; SQL never does money arithmetic.

CONCURRENCY:
  Uses sync.RWMutex for in-process thread-safety on top of WAL mode.
  Lock contention from the driver surfaces as billing.ErrStoreBusy so the
  engine's bounded retry can handle it.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging): multiple readers don't
  block, single writer at a time, better crash recovery.

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper migration
  tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - billing/store.go: Interface definition and contracts
  - billing/store/memory.go: In-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/nyumba/billing-engine/billing"
)

// Store implements billing.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a SQLite store at the given path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: a second pool connection to ":memory:" would be a
	// different empty database.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tenants (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		phone TEXT,
		email TEXT,
		house_unit_number TEXT,
		meter_connection_number TEXT,
		status TEXT NOT NULL DEFAULT 'active',
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS billing_cycles (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL REFERENCES tenants(id),
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		previous_reading TEXT NOT NULL,
		current_reading TEXT NOT NULL,
		units_used TEXT NOT NULL,
		rate_per_unit TEXT NOT NULL,
		standing_charge TEXT NOT NULL,
		bill_amount TEXT NOT NULL,
		previous_balance TEXT NOT NULL,
		paid_amount TEXT NOT NULL,
		current_balance TEXT NOT NULL,
		bill_date TEXT NOT NULL,
		due_date TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE (tenant_id, year, month)
	);

	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL REFERENCES tenants(id),
		billing_cycle_id TEXT NOT NULL REFERENCES billing_cycles(id) ON DELETE CASCADE,
		amount TEXT NOT NULL,
		payment_date TEXT NOT NULL,
		payment_method TEXT NOT NULL,
		notes TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_cycles_tenant_period
		ON billing_cycles(tenant_id, year DESC, month DESC);
	CREATE INDEX IF NOT EXISTS idx_payments_cycle
		ON payments(billing_cycle_id);
	CREATE INDEX IF NOT EXISTS idx_payments_tenant
		ON payments(tenant_id, payment_date DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// TENANTS
// =============================================================================

func (s *Store) UpsertTenant(ctx context.Context, t billing.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return upsertTenant(ctx, s.db, t)
}

func upsertTenant(ctx context.Context, db dbtx, t billing.Tenant) error {
	query := `
		INSERT INTO tenants (id, name, phone, email, house_unit_number, meter_connection_number, status, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			phone = excluded.phone,
			email = excluded.email,
			house_unit_number = excluded.house_unit_number,
			meter_connection_number = excluded.meter_connection_number,
			status = excluded.status,
			updated_at = excluded.updated_at
	`
	_, err := db.ExecContext(ctx, query,
		t.ID, t.Name, t.Phone, t.Email, t.HouseUnitNumber, t.MeterConnectionNumber,
		t.Status, time.Now().UTC().Format(time.RFC3339),
	)
	return mapSQLError(err, "failed to upsert tenant")
}

func (s *Store) GetTenant(ctx context.Context, id billing.TenantID) (*billing.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getTenant(ctx, s.db, id)
}

func getTenant(ctx context.Context, db dbtx, id billing.TenantID) (*billing.Tenant, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, name, phone, email, house_unit_number, meter_connection_number, status
		FROM tenants WHERE id = ?`, id)

	var t billing.Tenant
	var phone, email, unit, meter sql.NullString
	err := row.Scan(&t.ID, &t.Name, &phone, &email, &unit, &meter, &t.Status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, mapSQLError(err, "failed to get tenant")
	}
	t.Phone = phone.String
	t.Email = email.String
	t.HouseUnitNumber = unit.String
	t.MeterConnectionNumber = meter.String
	return &t, nil
}

func (s *Store) ListTenants(ctx context.Context) ([]billing.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listTenants(ctx, s.db)
}

func listTenants(ctx context.Context, db dbtx) ([]billing.Tenant, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, name, phone, email, house_unit_number, meter_connection_number, status
		FROM tenants ORDER BY name ASC`)
	if err != nil {
		return nil, mapSQLError(err, "failed to list tenants")
	}
	defer rows.Close()

	var tenants []billing.Tenant
	for rows.Next() {
		var t billing.Tenant
		var phone, email, unit, meter sql.NullString
		if err := rows.Scan(&t.ID, &t.Name, &phone, &email, &unit, &meter, &t.Status); err != nil {
			return nil, fmt.Errorf("failed to scan tenant: %w", err)
		}
		t.Phone = phone.String
		t.Email = email.String
		t.HouseUnitNumber = unit.String
		t.MeterConnectionNumber = meter.String
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

// =============================================================================
// BILLING CYCLES
// =============================================================================

const cycleColumns = `id, tenant_id, year, month, previous_reading, current_reading,
	units_used, rate_per_unit, standing_charge, bill_amount,
	previous_balance, paid_amount, current_balance,
	bill_date, due_date, created_at, updated_at`

func (s *Store) InsertCycle(ctx context.Context, c billing.BillingCycle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertCycle(ctx, s.db, c)
}

func insertCycle(ctx context.Context, db dbtx, c billing.BillingCycle) error {
	query := `
		INSERT INTO billing_cycles (` + cycleColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		c.ID, c.TenantID, c.Period.Year, int(c.Period.Month),
		c.PreviousReading.String(), c.CurrentReading.String(),
		c.UnitsUsed.String(), c.RatePerUnit.String(), c.StandingCharge.String(),
		c.BillAmount.String(), c.PreviousBalance.String(), c.PaidAmount.String(),
		c.CurrentBalance.String(),
		c.BillDate.UTC().Format(time.RFC3339), c.DueDate.UTC().Format(time.RFC3339),
		c.CreatedAt.UTC().Format(time.RFC3339), c.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if isUniqueConstraintError(err) {
		return &billing.DuplicateCycleError{TenantID: c.TenantID, Period: c.Period}
	}
	return mapSQLError(err, "failed to insert billing cycle")
}

func (s *Store) UpdateCycle(ctx context.Context, c billing.BillingCycle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateCycle(ctx, s.db, c)
}

func updateCycle(ctx context.Context, db dbtx, c billing.BillingCycle) error {
	query := `
		UPDATE billing_cycles SET
			previous_reading = ?, current_reading = ?, units_used = ?,
			rate_per_unit = ?, standing_charge = ?, bill_amount = ?,
			previous_balance = ?, paid_amount = ?, current_balance = ?,
			due_date = ?, updated_at = ?
		WHERE id = ?
	`
	res, err := db.ExecContext(ctx, query,
		c.PreviousReading.String(), c.CurrentReading.String(), c.UnitsUsed.String(),
		c.RatePerUnit.String(), c.StandingCharge.String(), c.BillAmount.String(),
		c.PreviousBalance.String(), c.PaidAmount.String(), c.CurrentBalance.String(),
		c.DueDate.UTC().Format(time.RFC3339), c.UpdatedAt.UTC().Format(time.RFC3339),
		c.ID,
	)
	if err != nil {
		return mapSQLError(err, "failed to update billing cycle")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return billing.ErrCycleNotFound
	}
	return nil
}

func (s *Store) DeleteCycle(ctx context.Context, id billing.CycleID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteCycle(ctx, s.db, id)
}

func deleteCycle(ctx context.Context, db dbtx, id billing.CycleID) error {
	// Payment rows go with the cycle via ON DELETE CASCADE.
	res, err := db.ExecContext(ctx, `DELETE FROM billing_cycles WHERE id = ?`, id)
	if err != nil {
		return mapSQLError(err, "failed to delete billing cycle")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return billing.ErrCycleNotFound
	}
	return nil
}

func (s *Store) GetCycle(ctx context.Context, id billing.CycleID) (*billing.BillingCycle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getCycle(ctx, s.db, id)
}

func getCycle(ctx context.Context, db dbtx, id billing.CycleID) (*billing.BillingCycle, error) {
	cycles, err := queryCycles(ctx, db, `SELECT `+cycleColumns+` FROM billing_cycles WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(cycles) == 0 {
		return nil, nil
	}
	return &cycles[0], nil
}

func (s *Store) GetCycleForPeriod(ctx context.Context, tenantID billing.TenantID, p billing.Period) (*billing.BillingCycle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getCycleForPeriod(ctx, s.db, tenantID, p)
}

func getCycleForPeriod(ctx context.Context, db dbtx, tenantID billing.TenantID, p billing.Period) (*billing.BillingCycle, error) {
	cycles, err := queryCycles(ctx, db,
		`SELECT `+cycleColumns+` FROM billing_cycles WHERE tenant_id = ? AND year = ? AND month = ?`,
		tenantID, p.Year, int(p.Month))
	if err != nil {
		return nil, err
	}
	if len(cycles) == 0 {
		return nil, nil
	}
	return &cycles[0], nil
}

func (s *Store) ListCycles(ctx context.Context, tenantID billing.TenantID) ([]billing.BillingCycle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listCycles(ctx, s.db, tenantID)
}

func listCycles(ctx context.Context, db dbtx, tenantID billing.TenantID) ([]billing.BillingCycle, error) {
	return queryCycles(ctx, db,
		`SELECT `+cycleColumns+` FROM billing_cycles WHERE tenant_id = ? ORDER BY year DESC, month DESC`,
		tenantID)
}

func queryCycles(ctx context.Context, db dbtx, query string, args ...any) ([]billing.BillingCycle, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapSQLError(err, "failed to query billing cycles")
	}
	defer rows.Close()

	var cycles []billing.BillingCycle
	for rows.Next() {
		c, err := scanCycle(rows)
		if err != nil {
			return nil, err
		}
		cycles = append(cycles, c)
	}
	return cycles, rows.Err()
}

func scanCycle(rows *sql.Rows) (billing.BillingCycle, error) {
	var (
		c                                               billing.BillingCycle
		year, month                                     int
		prevReading, currReading, units, rate, standing string
		bill, prevBalance, paid, balance                string
		billDate, dueDate, createdAt, updatedAt         string
	)
	err := rows.Scan(
		&c.ID, &c.TenantID, &year, &month,
		&prevReading, &currReading, &units, &rate, &standing,
		&bill, &prevBalance, &paid, &balance,
		&billDate, &dueDate, &createdAt, &updatedAt,
	)
	if err != nil {
		return c, fmt.Errorf("failed to scan billing cycle: %w", err)
	}

	c.Period = billing.NewPeriod(year, time.Month(month))
	c.PreviousReading = mustDecimal(prevReading)
	c.CurrentReading = mustDecimal(currReading)
	c.UnitsUsed = mustDecimal(units)
	c.RatePerUnit = mustDecimal(rate)
	c.StandingCharge = mustDecimal(standing)
	c.BillAmount = mustDecimal(bill)
	c.PreviousBalance = mustDecimal(prevBalance)
	c.PaidAmount = mustDecimal(paid)
	c.CurrentBalance = mustDecimal(balance)
	c.BillDate, _ = time.Parse(time.RFC3339, billDate)
	c.DueDate, _ = time.Parse(time.RFC3339, dueDate)
	c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	c.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return c, nil
}

// =============================================================================
// PAYMENTS
// =============================================================================

const paymentColumns = `id, tenant_id, billing_cycle_id, amount, payment_date, payment_method, notes, created_at`

func (s *Store) InsertPayment(ctx context.Context, p billing.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertPayment(ctx, s.db, p)
}

func insertPayment(ctx context.Context, db dbtx, p billing.Payment) error {
	query := `INSERT INTO payments (` + paymentColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query,
		p.ID, p.TenantID, p.CycleID, p.Amount.String(),
		p.PaymentDate.UTC().Format(time.RFC3339), p.Method,
		nullString(p.Notes), p.CreatedAt.UTC().Format(time.RFC3339),
	)
	return mapSQLError(err, "failed to insert payment")
}

func (s *Store) UpdatePayment(ctx context.Context, p billing.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updatePayment(ctx, s.db, p)
}

func updatePayment(ctx context.Context, db dbtx, p billing.Payment) error {
	res, err := db.ExecContext(ctx, `
		UPDATE payments SET amount = ?, payment_date = ?, payment_method = ?, notes = ?
		WHERE id = ?`,
		p.Amount.String(), p.PaymentDate.UTC().Format(time.RFC3339), p.Method,
		nullString(p.Notes), p.ID,
	)
	if err != nil {
		return mapSQLError(err, "failed to update payment")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return billing.ErrPaymentNotFound
	}
	return nil
}

func (s *Store) DeletePayment(ctx context.Context, id billing.PaymentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deletePayment(ctx, s.db, id)
}

func deletePayment(ctx context.Context, db dbtx, id billing.PaymentID) error {
	res, err := db.ExecContext(ctx, `DELETE FROM payments WHERE id = ?`, id)
	if err != nil {
		return mapSQLError(err, "failed to delete payment")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return billing.ErrPaymentNotFound
	}
	return nil
}

func (s *Store) GetPayment(ctx context.Context, id billing.PaymentID) (*billing.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getPayment(ctx, s.db, id)
}

func getPayment(ctx context.Context, db dbtx, id billing.PaymentID) (*billing.Payment, error) {
	payments, err := queryPayments(ctx, db, `SELECT `+paymentColumns+` FROM payments WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(payments) == 0 {
		return nil, nil
	}
	return &payments[0], nil
}

func (s *Store) ListPaymentsForCycle(ctx context.Context, cycleID billing.CycleID) ([]billing.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listPaymentsForCycle(ctx, s.db, cycleID)
}

func listPaymentsForCycle(ctx context.Context, db dbtx, cycleID billing.CycleID) ([]billing.Payment, error) {
	return queryPayments(ctx, db,
		`SELECT `+paymentColumns+` FROM payments WHERE billing_cycle_id = ? ORDER BY payment_date DESC, created_at DESC`,
		cycleID)
}

func (s *Store) ListPaymentsForTenant(ctx context.Context, tenantID billing.TenantID) ([]billing.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listPaymentsForTenant(ctx, s.db, tenantID)
}

func listPaymentsForTenant(ctx context.Context, db dbtx, tenantID billing.TenantID) ([]billing.Payment, error) {
	return queryPayments(ctx, db,
		`SELECT `+paymentColumns+` FROM payments WHERE tenant_id = ? ORDER BY payment_date DESC, created_at DESC`,
		tenantID)
}

func (s *Store) SumPaymentsForCycle(ctx context.Context, cycleID billing.CycleID) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sumPaymentsForCycle(ctx, s.db, cycleID)
}

// sumPaymentsForCycle sums in decimal in Go; amounts are stored as text
// and SQL float arithmetic would drift.
func sumPaymentsForCycle(ctx context.Context, db dbtx, cycleID billing.CycleID) (decimal.Decimal, error) {
	rows, err := db.QueryContext(ctx, `SELECT amount FROM payments WHERE billing_cycle_id = ?`, cycleID)
	if err != nil {
		return decimal.Zero, mapSQLError(err, "failed to sum payments")
	}
	defer rows.Close()

	sum := decimal.Zero
	for rows.Next() {
		var amount string
		if err := rows.Scan(&amount); err != nil {
			return decimal.Zero, fmt.Errorf("failed to scan payment amount: %w", err)
		}
		sum = sum.Add(mustDecimal(amount))
	}
	return sum, rows.Err()
}

func queryPayments(ctx context.Context, db dbtx, query string, args ...any) ([]billing.Payment, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapSQLError(err, "failed to query payments")
	}
	defer rows.Close()

	var payments []billing.Payment
	for rows.Next() {
		var (
			p                      billing.Payment
			amount                 string
			paymentDate, createdAt string
			notes                  sql.NullString
		)
		err := rows.Scan(&p.ID, &p.TenantID, &p.CycleID, &amount, &paymentDate, &p.Method, &notes, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		p.Amount = mustDecimal(amount)
		p.PaymentDate, _ = time.Parse(time.RFC3339, paymentDate)
		p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		p.Notes = notes.String
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a database transaction. All reads and writes
// inside fn go through the same *sql.Tx, so the cascade sees its own
// writes and either fully commits or fully rolls back.
func (s *Store) WithTx(ctx context.Context, fn func(billing.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapSQLError(err, "failed to begin transaction")
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return mapSQLError(err, "failed to commit transaction")
	}
	return nil
}

// txStore routes every Store method through the open transaction.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) UpsertTenant(ctx context.Context, t billing.Tenant) error {
	return upsertTenant(ctx, ts.tx, t)
}

func (ts *txStore) GetTenant(ctx context.Context, id billing.TenantID) (*billing.Tenant, error) {
	return getTenant(ctx, ts.tx, id)
}

func (ts *txStore) ListTenants(ctx context.Context) ([]billing.Tenant, error) {
	return listTenants(ctx, ts.tx)
}

func (ts *txStore) InsertCycle(ctx context.Context, c billing.BillingCycle) error {
	return insertCycle(ctx, ts.tx, c)
}

func (ts *txStore) UpdateCycle(ctx context.Context, c billing.BillingCycle) error {
	return updateCycle(ctx, ts.tx, c)
}

func (ts *txStore) DeleteCycle(ctx context.Context, id billing.CycleID) error {
	return deleteCycle(ctx, ts.tx, id)
}

func (ts *txStore) GetCycle(ctx context.Context, id billing.CycleID) (*billing.BillingCycle, error) {
	return getCycle(ctx, ts.tx, id)
}

func (ts *txStore) GetCycleForPeriod(ctx context.Context, tenantID billing.TenantID, p billing.Period) (*billing.BillingCycle, error) {
	return getCycleForPeriod(ctx, ts.tx, tenantID, p)
}

func (ts *txStore) ListCycles(ctx context.Context, tenantID billing.TenantID) ([]billing.BillingCycle, error) {
	return listCycles(ctx, ts.tx, tenantID)
}

func (ts *txStore) InsertPayment(ctx context.Context, p billing.Payment) error {
	return insertPayment(ctx, ts.tx, p)
}

func (ts *txStore) UpdatePayment(ctx context.Context, p billing.Payment) error {
	return updatePayment(ctx, ts.tx, p)
}

func (ts *txStore) DeletePayment(ctx context.Context, id billing.PaymentID) error {
	return deletePayment(ctx, ts.tx, id)
}

func (ts *txStore) GetPayment(ctx context.Context, id billing.PaymentID) (*billing.Payment, error) {
	return getPayment(ctx, ts.tx, id)
}

func (ts *txStore) ListPaymentsForCycle(ctx context.Context, cycleID billing.CycleID) ([]billing.Payment, error) {
	return listPaymentsForCycle(ctx, ts.tx, cycleID)
}

func (ts *txStore) ListPaymentsForTenant(ctx context.Context, tenantID billing.TenantID) ([]billing.Payment, error) {
	return listPaymentsForTenant(ctx, ts.tx, tenantID)
}

func (ts *txStore) SumPaymentsForCycle(ctx context.Context, cycleID billing.CycleID) (decimal.Decimal, error) {
	return sumPaymentsForCycle(ctx, ts.tx, cycleID)
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isBusyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked")
}

func mapSQLError(err error, msg string) error {
	if err == nil {
		return nil
	}
	if isBusyError(err) {
		return fmt.Errorf("%w: %v", billing.ErrStoreBusy, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
