package invoicing

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/parcelpost/parcelpost/internal/platform/httpx"
)

// Handler manages invoice endpoints.
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

// MountRoutes registers invoice routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.createInvoice)
	r.Get("/", h.listInvoices)
	r.Get("/{id}", h.getInvoice)
	r.Patch("/{id}", h.updateInvoice)
	r.Delete("/{id}", h.deleteInvoice)

	r.Post("/{id}/items", h.addItem)
	r.Get("/{id}/items", h.listItems)
	r.Put("/{id}/items", h.replaceItems)
	r.Delete("/{id}/items", h.deleteItems)
}

type createInvoiceRequest struct {
	WarehouseID *int64 `json:"warehouse_id" validate:"omitempty,gt=0"`
	StaffID     *int64 `json:"staff_id" validate:"omitempty,gt=0"`
	ClientID    *int64 `json:"client_id" validate:"omitempty,gt=0"`
	Status      string `json:"status" validate:"omitempty,oneof=pending completed cancelled refunded"`
	Type        string `json:"type" validate:"required,oneof=paid_on_send paid_on_delivery"`
	Paid        bool   `json:"paid"`
	PayMethod   string `json:"pay_method" validate:"required,oneof=cash card mobile_payment account"`
	Name        string `json:"name" validate:"required,max=120"`
	Address     string `json:"address" validate:"required,max=255"`
	Contact     string `json:"contact" validate:"required,max=64"`
}

type updateInvoiceRequest struct {
	WarehouseID *int64  `json:"warehouse_id" validate:"omitempty,gt=0"`
	StaffID     *int64  `json:"staff_id" validate:"omitempty,gt=0"`
	ClientID    *int64  `json:"client_id" validate:"omitempty,gt=0"`
	Status      *string `json:"status" validate:"omitempty,oneof=pending completed cancelled refunded"`
	Type        *string `json:"type" validate:"omitempty,oneof=paid_on_send paid_on_delivery"`
	Paid        *bool   `json:"paid"`
	PayMethod   *string `json:"pay_method" validate:"omitempty,oneof=cash card mobile_payment account"`
	Name        *string `json:"name" validate:"omitempty,max=120"`
	Address     *string `json:"address" validate:"omitempty,max=255"`
	Contact     *string `json:"contact" validate:"omitempty,max=64"`
}

type itemRequest struct {
	ShipmentType  string  `json:"shipment_type" validate:"required,max=64"`
	Weight        *string `json:"weight" validate:"omitempty"`
	DeliverySpeed string  `json:"delivery_speed" validate:"omitempty,max=64"`
	Quantity      int64   `json:"quantity" validate:"required,gte=1"`
	UnitPrice     string  `json:"unit_price" validate:"required"`
	Notes         *string `json:"notes" validate:"omitempty,max=500"`
}

type replaceItemsRequest struct {
	Items []itemRequest `json:"items" validate:"dive"`
}

type invoiceResponse struct {
	*Invoice
	Items []InvoiceItem `json:"items"`
}

func (h *Handler) createInvoice(w http.ResponseWriter, r *http.Request) {
	var req createInvoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	inv, err := h.service.CreateInvoice(r.Context(), CreateInvoiceInput{
		WarehouseID: req.WarehouseID,
		StaffID:     req.StaffID,
		ClientID:    req.ClientID,
		Status:      InvoiceStatus(req.Status),
		Type:        InvoiceType(req.Type),
		Paid:        req.Paid,
		PayMethod:   PayMethod(req.PayMethod),
		Name:        req.Name,
		Address:     req.Address,
		Contact:     req.Contact,
	})
	if err != nil {
		h.logger.Error("create invoice", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, invoiceResponse{Invoice: inv, Items: []InvoiceItem{}})
}

func (h *Handler) listInvoices(w http.ResponseWriter, r *http.Request) {
	invoices, err := h.service.ListInvoices(r.Context())
	if err != nil {
		h.logger.Error("list invoices", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if invoices == nil {
		invoices = []Invoice{}
	}
	httpx.JSON(w, http.StatusOK, invoices)
}

func (h *Handler) getInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := h.invoiceID(w, r)
	if !ok {
		return
	}
	inv, items, err := h.service.GetInvoice(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if items == nil {
		items = []InvoiceItem{}
	}
	httpx.JSON(w, http.StatusOK, invoiceResponse{Invoice: inv, Items: items})
}

func (h *Handler) updateInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := h.invoiceID(w, r)
	if !ok {
		return
	}
	var req updateInvoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	inv, err := h.service.UpdateInvoice(r.Context(), id, UpdateInvoiceInput{
		WarehouseID: req.WarehouseID,
		StaffID:     req.StaffID,
		ClientID:    req.ClientID,
		Status:      (*InvoiceStatus)(req.Status),
		Type:        (*InvoiceType)(req.Type),
		Paid:        req.Paid,
		PayMethod:   (*PayMethod)(req.PayMethod),
		Name:        req.Name,
		Address:     req.Address,
		Contact:     req.Contact,
	})
	if err != nil {
		h.logger.Error("update invoice", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) deleteInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := h.invoiceID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteInvoice(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	id, ok := h.invoiceID(w, r)
	if !ok {
		return
	}
	var req itemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input, err := req.toInput()
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	item, err := h.service.AddItem(r.Context(), id, input)
	if err != nil {
		h.logger.Error("add invoice item", slog.Any("error", err), slog.Int64("invoice_id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, item)
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	id, ok := h.invoiceID(w, r)
	if !ok {
		return
	}
	items, err := h.service.ListItems(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if items == nil {
		items = []InvoiceItem{}
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) replaceItems(w http.ResponseWriter, r *http.Request) {
	id, ok := h.invoiceID(w, r)
	if !ok {
		return
	}
	var req replaceItemsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	inputs := make([]AddItemInput, 0, len(req.Items))
	for _, it := range req.Items {
		input, err := it.toInput()
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
		inputs = append(inputs, input)
	}

	items, err := h.service.ReplaceItems(r.Context(), id, inputs)
	if err != nil {
		h.logger.Error("replace invoice items", slog.Any("error", err), slog.Int64("invoice_id", id))
		httpx.RespondError(w, err)
		return
	}
	if items == nil {
		items = []InvoiceItem{}
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) deleteItems(w http.ResponseWriter, r *http.Request) {
	id, ok := h.invoiceID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteAllItems(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) invoiceID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Invoice ID", "invoice id must be a positive integer")
		return 0, false
	}
	return id, true
}

func (r itemRequest) toInput() (AddItemInput, error) {
	unitPrice, err := decimal.NewFromString(r.UnitPrice)
	if err != nil {
		return AddItemInput{}, err
	}
	var weight *decimal.Decimal
	if r.Weight != nil {
		w, err := decimal.NewFromString(*r.Weight)
		if err != nil {
			return AddItemInput{}, err
		}
		weight = &w
	}
	return AddItemInput{
		ShipmentType:  r.ShipmentType,
		Weight:        weight,
		DeliverySpeed: r.DeliverySpeed,
		Quantity:      r.Quantity,
		UnitPrice:     unitPrice,
		Notes:         r.Notes,
	}, nil
}
