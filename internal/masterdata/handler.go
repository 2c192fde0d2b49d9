package masterdata

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/parcelpost/parcelpost/internal/platform/httpx"
)

// Handler manages master data endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// MountRoutes registers master data routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/warehouses", func(r chi.Router) {
		r.Post("/", h.createWarehouse)
		r.Get("/", h.listWarehouses)
		r.Get("/{id}", h.getWarehouse)
	})
	r.Route("/staff", func(r chi.Router) {
		r.Post("/", h.createStaff)
		r.Get("/", h.listStaff)
		r.Get("/{id}", h.getStaff)
	})
	r.Route("/clients", func(r chi.Router) {
		r.Post("/", h.createClient)
		r.Get("/", h.listClients)
		r.Get("/{id}", h.getClient)
	})
}

type createWarehouseRequest struct {
	Name    string `json:"name" validate:"required,max=120"`
	Address string `json:"address" validate:"required,max=255"`
	Phone   string `json:"phone" validate:"omitempty,max=32"`
}

type createStaffRequest struct {
	WarehouseID *int64 `json:"warehouse_id" validate:"omitempty,gt=0"`
	Name        string `json:"name" validate:"required,max=120"`
	Phone       string `json:"phone" validate:"omitempty,max=32"`
}

type createClientRequest struct {
	Name    string `json:"name" validate:"required,max=120"`
	Phone   string `json:"phone" validate:"omitempty,max=32"`
	Address string `json:"address" validate:"omitempty,max=255"`
}

func (h *Handler) createWarehouse(w http.ResponseWriter, r *http.Request) {
	var req createWarehouseRequest
	if !h.decode(w, r, &req) {
		return
	}
	warehouse, err := h.service.CreateWarehouse(r.Context(), CreateWarehouseInput{
		Name: req.Name, Address: req.Address, Phone: req.Phone,
	})
	if err != nil {
		h.logger.Error("create warehouse", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, warehouse)
}

func (h *Handler) listWarehouses(w http.ResponseWriter, r *http.Request) {
	warehouses, err := h.service.ListWarehouses(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if warehouses == nil {
		warehouses = []Warehouse{}
	}
	httpx.JSON(w, http.StatusOK, warehouses)
}

func (h *Handler) getWarehouse(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	warehouse, err := h.service.GetWarehouse(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, warehouse)
}

func (h *Handler) createStaff(w http.ResponseWriter, r *http.Request) {
	var req createStaffRequest
	if !h.decode(w, r, &req) {
		return
	}
	staff, err := h.service.CreateStaff(r.Context(), CreateStaffInput{
		WarehouseID: req.WarehouseID, Name: req.Name, Phone: req.Phone,
	})
	if err != nil {
		h.logger.Error("create staff", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, staff)
}

func (h *Handler) listStaff(w http.ResponseWriter, r *http.Request) {
	staff, err := h.service.ListStaff(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if staff == nil {
		staff = []Staff{}
	}
	httpx.JSON(w, http.StatusOK, staff)
}

func (h *Handler) getStaff(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	staff, err := h.service.GetStaff(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, staff)
}

func (h *Handler) createClient(w http.ResponseWriter, r *http.Request) {
	var req createClientRequest
	if !h.decode(w, r, &req) {
		return
	}
	client, err := h.service.CreateClient(r.Context(), CreateClientInput{
		Name: req.Name, Phone: req.Phone, Address: req.Address,
	})
	if err != nil {
		h.logger.Error("create client", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, client)
}

func (h *Handler) listClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.service.ListClients(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if clients == nil {
		clients = []Client{}
	}
	httpx.JSON(w, http.StatusOK, clients)
}

func (h *Handler) getClient(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	client, err := h.service.GetClient(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, client)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return false
	}
	if err := h.validate.Struct(target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "id must be a positive integer")
		return 0, false
	}
	return id, true
}
