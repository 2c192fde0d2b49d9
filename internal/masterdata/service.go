package masterdata

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/parcelpost/parcelpost/internal/platform/httpx"
)

// Service implements the master data use cases.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService wires the master data service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

func (s *Service) CreateWarehouse(ctx context.Context, input CreateWarehouseInput) (*Warehouse, error) {
	if input.Name == "" {
		return nil, fmt.Errorf("%w: warehouse name is required", httpx.ErrValidation)
	}
	w, err := s.repo.CreateWarehouse(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("create warehouse: %w", err)
	}
	s.logger.Info("warehouse created", slog.Int64("warehouse_id", w.ID))
	return w, nil
}

func (s *Service) GetWarehouse(ctx context.Context, id int64) (*Warehouse, error) {
	return s.repo.GetWarehouse(ctx, id)
}

func (s *Service) ListWarehouses(ctx context.Context) ([]Warehouse, error) {
	return s.repo.ListWarehouses(ctx)
}

func (s *Service) CreateStaff(ctx context.Context, input CreateStaffInput) (*Staff, error) {
	if input.Name == "" {
		return nil, fmt.Errorf("%w: staff name is required", httpx.ErrValidation)
	}
	st, err := s.repo.CreateStaff(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("create staff: %w", err)
	}
	s.logger.Info("staff created", slog.Int64("staff_id", st.ID))
	return st, nil
}

func (s *Service) GetStaff(ctx context.Context, id int64) (*Staff, error) {
	return s.repo.GetStaff(ctx, id)
}

func (s *Service) ListStaff(ctx context.Context) ([]Staff, error) {
	return s.repo.ListStaff(ctx)
}

func (s *Service) CreateClient(ctx context.Context, input CreateClientInput) (*Client, error) {
	if input.Name == "" {
		return nil, fmt.Errorf("%w: client name is required", httpx.ErrValidation)
	}
	c, err := s.repo.CreateClient(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	s.logger.Info("client created", slog.Int64("client_id", c.ID))
	return c, nil
}

func (s *Service) GetClient(ctx context.Context, id int64) (*Client, error) {
	return s.repo.GetClient(ctx, id)
}

func (s *Service) ListClients(ctx context.Context) ([]Client, error) {
	return s.repo.ListClients(ctx)
}
