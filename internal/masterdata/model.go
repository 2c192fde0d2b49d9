// Package masterdata owns the reference records invoices point at:
// warehouses, staff members and clients.
package masterdata

import "time"

// Warehouse is a post office branch or sorting facility.
type Warehouse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
}

// Staff is an employee who can issue invoices.
type Staff struct {
	ID          int64     `json:"id"`
	WarehouseID *int64    `json:"warehouse_id,omitempty"`
	Name        string    `json:"name"`
	Phone       string    `json:"phone"`
	CreatedAt   time.Time `json:"created_at"`
}

// Client is a registered customer.
type Client struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateWarehouseInput carries warehouse creation fields.
type CreateWarehouseInput struct {
	Name    string
	Address string
	Phone   string
}

// CreateStaffInput carries staff creation fields.
type CreateStaffInput struct {
	WarehouseID *int64
	Name        string
	Phone       string
}

// CreateClientInput carries client creation fields.
type CreateClientInput struct {
	Name    string
	Phone   string
	Address string
}
