package invoicing

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/parcelpost/parcelpost/internal/platform/db"
	"github.com/parcelpost/parcelpost/internal/platform/httpx"
)

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type repository struct {
	db   dbtx
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

const invoiceColumns = `id, warehouse_id, staff_id, client_id, status, type, paid, pay_method,
	name, address, contact, quantity, cost::text, created_at`

func (r *repository) GetInvoice(ctx context.Context, id int64) (*Invoice, error) {
	row := r.db.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id)
	inv, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("invoice %d: %w", id, httpx.ErrNotFound)
		}
		return nil, err
	}
	return inv, nil
}

func (r *repository) ListInvoices(ctx context.Context) ([]Invoice, error) {
	rows, err := r.db.Query(ctx, `SELECT `+invoiceColumns+` FROM invoices ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var invoices []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, *inv)
	}
	return invoices, rows.Err()
}

func (r *repository) ListItems(ctx context.Context, invoiceID int64) ([]InvoiceItem, error) {
	rows, err := r.db.Query(ctx, `SELECT id, invoice_id, shipment_type, weight::text, delivery_speed,
	quantity, unit_price::text, line_total::text, notes
	FROM invoice_items WHERE invoice_id = $1 ORDER BY id`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []InvoiceItem
	for rows.Next() {
		var (
			it            InvoiceItem
			weight, notes pgtype.Text
			unit, line    string
		)
		if err := rows.Scan(&it.ID, &it.InvoiceID, &it.ShipmentType, &weight, &it.DeliverySpeed,
			&it.Quantity, &unit, &line, &notes); err != nil {
			return nil, err
		}
		if it.UnitPrice, err = decimal.NewFromString(unit); err != nil {
			return nil, fmt.Errorf("parse unit price: %w", err)
		}
		if it.LineTotal, err = decimal.NewFromString(line); err != nil {
			return nil, fmt.Errorf("parse line total: %w", err)
		}
		if weight.Valid {
			w, err := decimal.NewFromString(weight.String)
			if err != nil {
				return nil, fmt.Errorf("parse weight: %w", err)
			}
			it.Weight = &w
		}
		if notes.Valid {
			n := notes.String
			it.Notes = &n
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *repository) LockInvoice(ctx context.Context, id int64) error {
	var got int64
	err := r.db.QueryRow(ctx, `SELECT id FROM invoices WHERE id = $1 FOR UPDATE`, id).Scan(&got)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("invoice %d: %w", id, httpx.ErrNotFound)
	}
	return err
}

func (r *repository) CreateInvoice(ctx context.Context, input CreateInvoiceInput) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO invoices
	(warehouse_id, staff_id, client_id, status, type, paid, pay_method, name, address, contact, quantity, cost, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0, 0, now())
	RETURNING id`,
		int8OrNull(input.WarehouseID), int8OrNull(input.StaffID), int8OrNull(input.ClientID),
		string(input.Status), string(input.Type), input.Paid, string(input.PayMethod),
		input.Name, input.Address, input.Contact).Scan(&id)
	if err != nil {
		return 0, mapConstraintError(err)
	}
	return id, nil
}

// UpdateInvoice applies COALESCE patch semantics: a NULL parameter keeps the
// stored value. Derived cost/quantity are deliberately absent from the SET
// list.
func (r *repository) UpdateInvoice(ctx context.Context, id int64, patch UpdateInvoiceInput) (int64, error) {
	tag, err := r.db.Exec(ctx, `UPDATE invoices SET
	warehouse_id = COALESCE($2, warehouse_id),
	staff_id     = COALESCE($3, staff_id),
	client_id    = COALESCE($4, client_id),
	status       = COALESCE($5, status),
	type         = COALESCE($6, type),
	paid         = COALESCE($7, paid),
	pay_method   = COALESCE($8, pay_method),
	name         = COALESCE($9, name),
	address      = COALESCE($10, address),
	contact      = COALESCE($11, contact)
	WHERE id = $1`,
		id,
		int8OrNull(patch.WarehouseID), int8OrNull(patch.StaffID), int8OrNull(patch.ClientID),
		textOrNull((*string)(patch.Status)), textOrNull((*string)(patch.Type)),
		boolOrNull(patch.Paid), textOrNull((*string)(patch.PayMethod)),
		textOrNull(patch.Name), textOrNull(patch.Address), textOrNull(patch.Contact))
	if err != nil {
		return 0, mapConstraintError(err)
	}
	return tag.RowsAffected(), nil
}

func (r *repository) CancelInvoice(ctx context.Context, id int64) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE invoices SET status = $2 WHERE id = $1 AND status <> $2`,
		id, string(StatusCancelled))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *repository) GetInvoiceStatus(ctx context.Context, id int64) (InvoiceStatus, error) {
	var status string
	err := r.db.QueryRow(ctx, `SELECT status FROM invoices WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("invoice %d: %w", id, httpx.ErrNotFound)
	}
	if err != nil {
		return "", err
	}
	return InvoiceStatus(status), nil
}

func (r *repository) InsertItem(ctx context.Context, item InvoiceItem) (int64, error) {
	var weight pgtype.Text
	if item.Weight != nil {
		weight = pgtype.Text{String: item.Weight.String(), Valid: true}
	}
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO invoice_items
	(invoice_id, shipment_type, weight, delivery_speed, quantity, unit_price, line_total, notes)
	VALUES ($1, $2, $3::numeric, $4, $5, $6::numeric, $7::numeric, $8)
	RETURNING id`,
		item.InvoiceID, item.ShipmentType, weight, item.DeliverySpeed,
		item.Quantity, item.UnitPrice.String(), item.LineTotal.String(),
		textOrNull(item.Notes)).Scan(&id)
	if err != nil {
		return 0, mapConstraintError(err)
	}
	return id, nil
}

func (r *repository) DeleteItems(ctx context.Context, invoiceID int64) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM invoice_items WHERE invoice_id = $1`, invoiceID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *repository) SumItems(ctx context.Context, invoiceID int64) (decimal.Decimal, int64, error) {
	var (
		subtotal string
		quantity int64
	)
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(line_total), 0)::text, COALESCE(SUM(quantity), 0)
		FROM invoice_items WHERE invoice_id = $1`, invoiceID).Scan(&subtotal, &quantity)
	if err != nil {
		return decimal.Zero, 0, err
	}
	sum, err := decimal.NewFromString(subtotal)
	if err != nil {
		return decimal.Zero, 0, fmt.Errorf("parse subtotal: %w", err)
	}
	return sum, quantity, nil
}

func (r *repository) UpdateDerived(ctx context.Context, invoiceID int64, cost decimal.Decimal, quantity int64) error {
	_, err := r.db.Exec(ctx,
		`UPDATE invoices SET cost = $2::numeric, quantity = $3 WHERE id = $1`,
		invoiceID, cost.String(), quantity)
	return err
}

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var (
		inv                 Invoice
		war, staff, client  pgtype.Int8
		status, typ, method string
		cost                string
	)
	if err := row.Scan(&inv.ID, &war, &staff, &client, &status, &typ, &inv.Paid, &method,
		&inv.Name, &inv.Address, &inv.Contact, &inv.Quantity, &cost, &inv.CreatedAt); err != nil {
		return nil, err
	}
	inv.Status = InvoiceStatus(status)
	inv.Type = InvoiceType(typ)
	inv.PayMethod = PayMethod(method)
	c, err := decimal.NewFromString(cost)
	if err != nil {
		return nil, fmt.Errorf("parse cost: %w", err)
	}
	inv.Cost = c
	if war.Valid {
		inv.WarehouseID = &war.Int64
	}
	if staff.Valid {
		inv.StaffID = &staff.Int64
	}
	if client.Valid {
		inv.ClientID = &client.Int64
	}
	return &inv, nil
}

// mapConstraintError translates foreign key violations (SQLSTATE 23503) into
// the shared sentinel so callers can distinguish them from other failures.
func mapConstraintError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23503":
			return fmt.Errorf("%w: %s", httpx.ErrForeignKey, pgErr.ConstraintName)
		case "23505":
			return fmt.Errorf("%w: %s", httpx.ErrDuplicate, pgErr.ConstraintName)
		}
	}
	return err
}

func int8OrNull(v *int64) pgtype.Int8 {
	if v == nil {
		return pgtype.Int8{}
	}
	return pgtype.Int8{Int64: *v, Valid: true}
}

func textOrNull(v *string) pgtype.Text {
	if v == nil {
		return pgtype.Text{}
	}
	return pgtype.Text{String: *v, Valid: true}
}

func boolOrNull(v *bool) pgtype.Bool {
	if v == nil {
		return pgtype.Bool{}
	}
	return pgtype.Bool{Bool: *v, Valid: true}
}
