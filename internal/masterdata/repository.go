package masterdata

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/parcelpost/parcelpost/internal/platform/httpx"
)

// Repository provides access to the master data tables.
type Repository interface {
	CreateWarehouse(ctx context.Context, input CreateWarehouseInput) (*Warehouse, error)
	GetWarehouse(ctx context.Context, id int64) (*Warehouse, error)
	ListWarehouses(ctx context.Context) ([]Warehouse, error)

	CreateStaff(ctx context.Context, input CreateStaffInput) (*Staff, error)
	GetStaff(ctx context.Context, id int64) (*Staff, error)
	ListStaff(ctx context.Context) ([]Staff, error)

	CreateClient(ctx context.Context, input CreateClientInput) (*Client, error)
	GetClient(ctx context.Context, id int64) (*Client, error)
	ListClients(ctx context.Context) ([]Client, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) CreateWarehouse(ctx context.Context, input CreateWarehouseInput) (*Warehouse, error) {
	var w Warehouse
	err := r.pool.QueryRow(ctx, `INSERT INTO warehouses (name, address, phone, created_at)
	VALUES ($1, $2, $3, now())
	RETURNING id, name, address, phone, created_at`,
		input.Name, input.Address, input.Phone).
		Scan(&w.ID, &w.Name, &w.Address, &w.Phone, &w.CreatedAt)
	if err != nil {
		return nil, mapConstraintError(err)
	}
	return &w, nil
}

func (r *repository) GetWarehouse(ctx context.Context, id int64) (*Warehouse, error) {
	var w Warehouse
	err := r.pool.QueryRow(ctx, `SELECT id, name, address, phone, created_at
	FROM warehouses WHERE id = $1`, id).
		Scan(&w.ID, &w.Name, &w.Address, &w.Phone, &w.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("warehouse %d: %w", id, httpx.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *repository) ListWarehouses(ctx context.Context) ([]Warehouse, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, address, phone, created_at
	FROM warehouses ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Warehouse
	for rows.Next() {
		var w Warehouse
		if err := rows.Scan(&w.ID, &w.Name, &w.Address, &w.Phone, &w.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (r *repository) CreateStaff(ctx context.Context, input CreateStaffInput) (*Staff, error) {
	var warehouseID pgtype.Int8
	if input.WarehouseID != nil {
		warehouseID = pgtype.Int8{Int64: *input.WarehouseID, Valid: true}
	}
	var s Staff
	var scanned pgtype.Int8
	err := r.pool.QueryRow(ctx, `INSERT INTO staff (warehouse_id, name, phone, created_at)
	VALUES ($1, $2, $3, now())
	RETURNING id, warehouse_id, name, phone, created_at`,
		warehouseID, input.Name, input.Phone).
		Scan(&s.ID, &scanned, &s.Name, &s.Phone, &s.CreatedAt)
	if err != nil {
		return nil, mapConstraintError(err)
	}
	if scanned.Valid {
		s.WarehouseID = &scanned.Int64
	}
	return &s, nil
}

func (r *repository) GetStaff(ctx context.Context, id int64) (*Staff, error) {
	var s Staff
	var warehouseID pgtype.Int8
	err := r.pool.QueryRow(ctx, `SELECT id, warehouse_id, name, phone, created_at
	FROM staff WHERE id = $1`, id).
		Scan(&s.ID, &warehouseID, &s.Name, &s.Phone, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("staff %d: %w", id, httpx.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if warehouseID.Valid {
		s.WarehouseID = &warehouseID.Int64
	}
	return &s, nil
}

func (r *repository) ListStaff(ctx context.Context) ([]Staff, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, warehouse_id, name, phone, created_at
	FROM staff ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Staff
	for rows.Next() {
		var s Staff
		var warehouseID pgtype.Int8
		if err := rows.Scan(&s.ID, &warehouseID, &s.Name, &s.Phone, &s.CreatedAt); err != nil {
			return nil, err
		}
		if warehouseID.Valid {
			s.WarehouseID = &warehouseID.Int64
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *repository) CreateClient(ctx context.Context, input CreateClientInput) (*Client, error) {
	var c Client
	err := r.pool.QueryRow(ctx, `INSERT INTO clients (name, phone, address, created_at)
	VALUES ($1, $2, $3, now())
	RETURNING id, name, phone, address, created_at`,
		input.Name, input.Phone, input.Address).
		Scan(&c.ID, &c.Name, &c.Phone, &c.Address, &c.CreatedAt)
	if err != nil {
		return nil, mapConstraintError(err)
	}
	return &c, nil
}

func (r *repository) GetClient(ctx context.Context, id int64) (*Client, error) {
	var c Client
	err := r.pool.QueryRow(ctx, `SELECT id, name, phone, address, created_at
	FROM clients WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Phone, &c.Address, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("client %d: %w", id, httpx.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repository) ListClients(ctx context.Context) ([]Client, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, phone, address, created_at
	FROM clients ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Client
	for rows.Next() {
		var c Client
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.Address, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

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
