package invoicing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/parcelpost/parcelpost/internal/platform/httpx"
)

type memoryRepo struct {
	invoices   map[int64]*Invoice
	items      map[int64][]InvoiceItem
	nextInvID  int64
	nextItemID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		invoices: make(map[int64]*Invoice),
		items:    make(map[int64][]InvoiceItem),
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, r)
}

func (r *memoryRepo) GetInvoice(ctx context.Context, id int64) (*Invoice, error) {
	inv, ok := r.invoices[id]
	if !ok {
		return nil, httpx.ErrNotFound
	}
	cp := *inv
	return &cp, nil
}

func (r *memoryRepo) ListInvoices(ctx context.Context) ([]Invoice, error) {
	var out []Invoice
	for id := int64(1); id <= r.nextInvID; id++ {
		if inv, ok := r.invoices[id]; ok {
			out = append(out, *inv)
		}
	}
	return out, nil
}

func (r *memoryRepo) ListItems(ctx context.Context, invoiceID int64) ([]InvoiceItem, error) {
	return append([]InvoiceItem(nil), r.items[invoiceID]...), nil
}

func (r *memoryRepo) LockInvoice(ctx context.Context, id int64) error {
	if _, ok := r.invoices[id]; !ok {
		return httpx.ErrNotFound
	}
	return nil
}

func (r *memoryRepo) CreateInvoice(ctx context.Context, input CreateInvoiceInput) (int64, error) {
	r.nextInvID++
	r.invoices[r.nextInvID] = &Invoice{
		ID:          r.nextInvID,
		WarehouseID: input.WarehouseID,
		StaffID:     input.StaffID,
		ClientID:    input.ClientID,
		Status:      input.Status,
		Type:        input.Type,
		Paid:        input.Paid,
		PayMethod:   input.PayMethod,
		Name:        input.Name,
		Address:     input.Address,
		Contact:     input.Contact,
		Quantity:    0,
		Cost:        decimal.Zero,
		CreatedAt:   time.Now(),
	}
	return r.nextInvID, nil
}

func (r *memoryRepo) UpdateInvoice(ctx context.Context, id int64, patch UpdateInvoiceInput) (int64, error) {
	inv, ok := r.invoices[id]
	if !ok {
		return 0, nil
	}
	if patch.WarehouseID != nil {
		inv.WarehouseID = patch.WarehouseID
	}
	if patch.StaffID != nil {
		inv.StaffID = patch.StaffID
	}
	if patch.ClientID != nil {
		inv.ClientID = patch.ClientID
	}
	if patch.Status != nil {
		inv.Status = *patch.Status
	}
	if patch.Type != nil {
		inv.Type = *patch.Type
	}
	if patch.Paid != nil {
		inv.Paid = *patch.Paid
	}
	if patch.PayMethod != nil {
		inv.PayMethod = *patch.PayMethod
	}
	if patch.Name != nil {
		inv.Name = *patch.Name
	}
	if patch.Address != nil {
		inv.Address = *patch.Address
	}
	if patch.Contact != nil {
		inv.Contact = *patch.Contact
	}
	return 1, nil
}

func (r *memoryRepo) CancelInvoice(ctx context.Context, id int64) (int64, error) {
	inv, ok := r.invoices[id]
	if !ok || inv.Status == StatusCancelled {
		return 0, nil
	}
	inv.Status = StatusCancelled
	return 1, nil
}

func (r *memoryRepo) GetInvoiceStatus(ctx context.Context, id int64) (InvoiceStatus, error) {
	inv, ok := r.invoices[id]
	if !ok {
		return "", httpx.ErrNotFound
	}
	return inv.Status, nil
}

func (r *memoryRepo) InsertItem(ctx context.Context, item InvoiceItem) (int64, error) {
	if _, ok := r.invoices[item.InvoiceID]; !ok {
		return 0, httpx.ErrForeignKey
	}
	r.nextItemID++
	item.ID = r.nextItemID
	r.items[item.InvoiceID] = append(r.items[item.InvoiceID], item)
	return item.ID, nil
}

func (r *memoryRepo) DeleteItems(ctx context.Context, invoiceID int64) (int64, error) {
	n := int64(len(r.items[invoiceID]))
	delete(r.items, invoiceID)
	return n, nil
}

func (r *memoryRepo) SumItems(ctx context.Context, invoiceID int64) (decimal.Decimal, int64, error) {
	sum := decimal.Zero
	var qty int64
	for _, it := range r.items[invoiceID] {
		sum = sum.Add(it.LineTotal)
		qty += it.Quantity
	}
	return sum, qty, nil
}

func (r *memoryRepo) UpdateDerived(ctx context.Context, invoiceID int64, cost decimal.Decimal, quantity int64) error {
	inv, ok := r.invoices[invoiceID]
	if !ok {
		return httpx.ErrNotFound
	}
	inv.Cost = cost
	inv.Quantity = quantity
	return nil
}

type recordingNotifier struct {
	created   []int64
	updated   []int64
	cancelled []int64
}

func (n *recordingNotifier) InvoiceCreated(ctx context.Context, inv *Invoice) {
	n.created = append(n.created, inv.ID)
}

func (n *recordingNotifier) InvoiceUpdated(ctx context.Context, inv *Invoice) {
	n.updated = append(n.updated, inv.ID)
}

func (n *recordingNotifier) InvoiceCancelled(ctx context.Context, inv *Invoice) {
	n.cancelled = append(n.cancelled, inv.ID)
}

type countingMetrics struct{ recalcs int }

func (m *countingMetrics) RecalculationCommitted() { m.recalcs++ }

func newTestService(t *testing.T) (*Service, *memoryRepo, *recordingNotifier, *countingMetrics) {
	t.Helper()
	repo := newMemoryRepo()
	notifier := &recordingNotifier{}
	metrics := &countingMetrics{}
	return NewService(repo, nil, notifier, metrics), repo, notifier, metrics
}

func createTestInvoice(t *testing.T, svc *Service) *Invoice {
	t.Helper()
	inv, err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{
		Type:      TypePaidOnSend,
		PayMethod: PayCash,
		Name:      "Jana Kovacs",
		Address:   "12 Harbour Road",
		Contact:   "+48 600 100 200",
	})
	require.NoError(t, err)
	return inv
}

func requireConsistent(t *testing.T, repo *memoryRepo, invoiceID int64) {
	t.Helper()
	inv, err := repo.GetInvoice(context.Background(), invoiceID)
	require.NoError(t, err)
	items, err := repo.ListItems(context.Background(), invoiceID)
	require.NoError(t, err)
	require.NoError(t, VerifyTotals(*inv, items))
}

func TestCreateInvoiceStartsEmpty(t *testing.T) {
	svc, repo, notifier, _ := newTestService(t)

	inv := createTestInvoice(t, svc)
	require.Equal(t, StatusPending, inv.Status)
	require.Equal(t, int64(0), inv.Quantity)
	require.True(t, inv.Cost.IsZero())
	require.Equal(t, []int64{inv.ID}, notifier.created)
	requireConsistent(t, repo, inv.ID)
}

func TestCreateInvoiceRejectsUnknownEnums(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	_, err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{
		Type:      "carrier_pigeon",
		PayMethod: PayCash,
		Name:      "x", Address: "x", Contact: "x",
	})
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.CreateInvoice(context.Background(), CreateInvoiceInput{
		Type:      TypePaidOnSend,
		PayMethod: "barter",
		Name:      "x", Address: "x", Contact: "x",
	})
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestAddItemRecalculatesTotals(t *testing.T) {
	svc, repo, _, metrics := newTestService(t)
	inv := createTestInvoice(t, svc)

	item, err := svc.AddItem(context.Background(), inv.ID, AddItemInput{
		ShipmentType: "parcel",
		Quantity:     2,
		UnitPrice:    dec(t, "75.00"),
	})
	require.NoError(t, err)
	require.True(t, dec(t, "150.00").Equal(item.LineTotal))

	got, err := repo.GetInvoice(context.Background(), inv.ID)
	require.NoError(t, err)
	require.Equal(t, int64(2), got.Quantity)
	require.True(t, dec(t, "184.50").Equal(got.Cost), "cost %s", got.Cost)
	require.Equal(t, 1, metrics.recalcs)
	requireConsistent(t, repo, inv.ID)
}

func TestAddItemAccumulates(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	inv := createTestInvoice(t, svc)

	_, err := svc.AddItem(context.Background(), inv.ID, AddItemInput{
		ShipmentType: "parcel", Quantity: 2, UnitPrice: dec(t, "75.00"),
	})
	require.NoError(t, err)
	_, err = svc.AddItem(context.Background(), inv.ID, AddItemInput{
		ShipmentType: "letter", Quantity: 1, UnitPrice: dec(t, "10.00"),
	})
	require.NoError(t, err)

	got, err := repo.GetInvoice(context.Background(), inv.ID)
	require.NoError(t, err)
	require.Equal(t, int64(3), got.Quantity)
	require.True(t, dec(t, "196.80").Equal(got.Cost), "cost %s", got.Cost)
	requireConsistent(t, repo, inv.ID)
}

func TestAddItemValidation(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	inv := createTestInvoice(t, svc)

	_, err := svc.AddItem(context.Background(), inv.ID, AddItemInput{
		ShipmentType: "parcel", Quantity: 0, UnitPrice: dec(t, "10.00"),
	})
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.AddItem(context.Background(), inv.ID, AddItemInput{
		ShipmentType: "parcel", Quantity: 1, UnitPrice: dec(t, "-1"),
	})
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.AddItem(context.Background(), inv.ID, AddItemInput{
		Quantity: 1, UnitPrice: dec(t, "10.00"),
	})
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestAddItemToMissingInvoice(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	_, err := svc.AddItem(context.Background(), 999, AddItemInput{
		ShipmentType: "parcel", Quantity: 1, UnitPrice: dec(t, "10.00"),
	})
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestReplaceItemsSwapsWholeSet(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	inv := createTestInvoice(t, svc)

	_, err := svc.AddItem(context.Background(), inv.ID, AddItemInput{
		ShipmentType: "parcel", Quantity: 5, UnitPrice: dec(t, "20.00"),
	})
	require.NoError(t, err)

	items, err := svc.ReplaceItems(context.Background(), inv.ID, []AddItemInput{
		{ShipmentType: "parcel", Quantity: 2, UnitPrice: dec(t, "75.00")},
		{ShipmentType: "letter", Quantity: 1, UnitPrice: dec(t, "10.00")},
	})
	require.NoError(t, err)
	require.Len(t, items, 2)

	got, err := repo.GetInvoice(context.Background(), inv.ID)
	require.NoError(t, err)
	require.Equal(t, int64(3), got.Quantity)
	require.True(t, dec(t, "196.80").Equal(got.Cost), "cost %s", got.Cost)
	requireConsistent(t, repo, inv.ID)
}

func TestReplaceItemsIsIdempotent(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	inv := createTestInvoice(t, svc)

	inputs := []AddItemInput{
		{ShipmentType: "parcel", Quantity: 2, UnitPrice: dec(t, "75.00")},
	}
	for i := 0; i < 3; i++ {
		items, err := svc.ReplaceItems(context.Background(), inv.ID, inputs)
		require.NoError(t, err)
		require.Len(t, items, 1)
	}

	got, err := repo.GetInvoice(context.Background(), inv.ID)
	require.NoError(t, err)
	require.Equal(t, int64(2), got.Quantity)
	require.True(t, dec(t, "184.50").Equal(got.Cost))
	requireConsistent(t, repo, inv.ID)
}

func TestReplaceItemsWithEmptyListZeroesTotals(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	inv := createTestInvoice(t, svc)

	_, err := svc.AddItem(context.Background(), inv.ID, AddItemInput{
		ShipmentType: "parcel", Quantity: 2, UnitPrice: dec(t, "75.00"),
	})
	require.NoError(t, err)

	items, err := svc.ReplaceItems(context.Background(), inv.ID, nil)
	require.NoError(t, err)
	require.Empty(t, items)

	got, err := repo.GetInvoice(context.Background(), inv.ID)
	require.NoError(t, err)
	require.Equal(t, int64(0), got.Quantity)
	require.True(t, got.Cost.IsZero())
	requireConsistent(t, repo, inv.ID)
}

func TestReplaceItemsRejectsInvalidInputWithoutMutating(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	inv := createTestInvoice(t, svc)

	_, err := svc.AddItem(context.Background(), inv.ID, AddItemInput{
		ShipmentType: "parcel", Quantity: 2, UnitPrice: dec(t, "75.00"),
	})
	require.NoError(t, err)

	_, err = svc.ReplaceItems(context.Background(), inv.ID, []AddItemInput{
		{ShipmentType: "parcel", Quantity: 0, UnitPrice: dec(t, "1.00")},
	})
	require.ErrorIs(t, err, httpx.ErrValidation)

	got, err := repo.GetInvoice(context.Background(), inv.ID)
	require.NoError(t, err)
	require.Equal(t, int64(2), got.Quantity)
	require.True(t, dec(t, "184.50").Equal(got.Cost))
}

func TestDeleteAllItems(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	inv := createTestInvoice(t, svc)

	_, err := svc.AddItem(context.Background(), inv.ID, AddItemInput{
		ShipmentType: "parcel", Quantity: 2, UnitPrice: dec(t, "75.00"),
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteAllItems(context.Background(), inv.ID))

	got, err := repo.GetInvoice(context.Background(), inv.ID)
	require.NoError(t, err)
	require.Equal(t, int64(0), got.Quantity)
	require.True(t, got.Cost.IsZero())
	requireConsistent(t, repo, inv.ID)
}

func TestUpdateInvoicePatchesOnlyProvidedFields(t *testing.T) {
	svc, _, notifier, _ := newTestService(t)
	inv := createTestInvoice(t, svc)

	paid := true
	status := StatusCompleted
	got, err := svc.UpdateInvoice(context.Background(), inv.ID, UpdateInvoiceInput{
		Paid:   &paid,
		Status: &status,
	})
	require.NoError(t, err)
	require.True(t, got.Paid)
	require.Equal(t, StatusCompleted, got.Status)
	require.Equal(t, inv.Name, got.Name)
	require.Equal(t, inv.PayMethod, got.PayMethod)
	require.Equal(t, []int64{inv.ID}, notifier.updated)
}

func TestUpdateInvoiceCannotTouchDerivedTotals(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	inv := createTestInvoice(t, svc)

	_, err := svc.AddItem(context.Background(), inv.ID, AddItemInput{
		ShipmentType: "parcel", Quantity: 2, UnitPrice: dec(t, "75.00"),
	})
	require.NoError(t, err)

	name := "Renamed Recipient"
	got, err := svc.UpdateInvoice(context.Background(), inv.ID, UpdateInvoiceInput{Name: &name})
	require.NoError(t, err)
	require.Equal(t, int64(2), got.Quantity)
	require.True(t, dec(t, "184.50").Equal(got.Cost))
	requireConsistent(t, repo, inv.ID)
}

func TestUpdateInvoiceRejectsBadEnum(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	inv := createTestInvoice(t, svc)

	bad := InvoiceStatus("gone")
	_, err := svc.UpdateInvoice(context.Background(), inv.ID, UpdateInvoiceInput{Status: &bad})
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestCancelledStatusIsTerminal(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	inv := createTestInvoice(t, svc)

	require.NoError(t, svc.DeleteInvoice(context.Background(), inv.ID))

	status := StatusPending
	_, err := svc.UpdateInvoice(context.Background(), inv.ID, UpdateInvoiceInput{Status: &status})
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestStatusTransitionsOriginateFromPending(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	inv := createTestInvoice(t, svc)

	completed := StatusCompleted
	_, err := svc.UpdateInvoice(context.Background(), inv.ID, UpdateInvoiceInput{Status: &completed})
	require.NoError(t, err)

	refunded := StatusRefunded
	_, err = svc.UpdateInvoice(context.Background(), inv.ID, UpdateInvoiceInput{Status: &refunded})
	require.ErrorIs(t, err, httpx.ErrValidation)

	// re-stating the current status is a no-op, not an error
	_, err = svc.UpdateInvoice(context.Background(), inv.ID, UpdateInvoiceInput{Status: &completed})
	require.NoError(t, err)
}

func TestUpdateMissingInvoice(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	name := "nobody"
	_, err := svc.UpdateInvoice(context.Background(), 42, UpdateInvoiceInput{Name: &name})
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestDeleteInvoiceIsSoftDelete(t *testing.T) {
	svc, repo, notifier, _ := newTestService(t)
	inv := createTestInvoice(t, svc)

	_, err := svc.AddItem(context.Background(), inv.ID, AddItemInput{
		ShipmentType: "parcel", Quantity: 2, UnitPrice: dec(t, "75.00"),
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteInvoice(context.Background(), inv.ID))

	got, err := repo.GetInvoice(context.Background(), inv.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, got.Status)
	require.True(t, dec(t, "184.50").Equal(got.Cost))

	items, err := repo.ListItems(context.Background(), inv.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, []int64{inv.ID}, notifier.cancelled)
}

type readFailRepo struct {
	*memoryRepo
	failReads bool
}

func (r *readFailRepo) GetInvoice(ctx context.Context, id int64) (*Invoice, error) {
	if r.failReads {
		return nil, errors.New("read failed")
	}
	return r.memoryRepo.GetInvoice(ctx, id)
}

func TestDeleteInvoiceSucceedsWhenNotificationReadFails(t *testing.T) {
	repo := &readFailRepo{memoryRepo: newMemoryRepo()}
	notifier := &recordingNotifier{}
	svc := NewService(repo, nil, notifier, nil)

	inv, err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{
		Type: TypePaidOnSend, PayMethod: PayCash,
		Name: "x", Address: "x", Contact: "x",
	})
	require.NoError(t, err)

	repo.failReads = true
	require.NoError(t, svc.DeleteInvoice(context.Background(), inv.ID))
	require.Empty(t, notifier.cancelled)

	repo.failReads = false
	got, err := repo.GetInvoice(context.Background(), inv.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, got.Status)
}

func TestDeleteInvoiceTwiceFails(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	inv := createTestInvoice(t, svc)

	require.NoError(t, svc.DeleteInvoice(context.Background(), inv.ID))
	require.ErrorIs(t, svc.DeleteInvoice(context.Background(), inv.ID), httpx.ErrNotFound)
}

func TestDeleteMissingInvoice(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	require.ErrorIs(t, svc.DeleteInvoice(context.Background(), 7), httpx.ErrNotFound)
}

func TestListInvoicesIncludesCancelled(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	a := createTestInvoice(t, svc)
	b := createTestInvoice(t, svc)

	require.NoError(t, svc.DeleteInvoice(context.Background(), a.ID))

	invoices, err := svc.ListInvoices(context.Background())
	require.NoError(t, err)
	require.Len(t, invoices, 2)
	require.Equal(t, StatusCancelled, invoices[0].Status)
	require.Equal(t, b.ID, invoices[1].ID)
}

func TestConcurrentReplaceLastCommitWins(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	inv := createTestInvoice(t, svc)

	_, err := svc.ReplaceItems(context.Background(), inv.ID, []AddItemInput{
		{ShipmentType: "parcel", Quantity: 5, UnitPrice: dec(t, "20.00")},
	})
	require.NoError(t, err)

	_, err = svc.ReplaceItems(context.Background(), inv.ID, []AddItemInput{
		{ShipmentType: "letter", Quantity: 1, UnitPrice: dec(t, "10.00")},
	})
	require.NoError(t, err)

	items, err := repo.ListItems(context.Background(), inv.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "letter", items[0].ShipmentType)

	got, err := repo.GetInvoice(context.Background(), inv.ID)
	require.NoError(t, err)
	require.True(t, dec(t, "12.30").Equal(got.Cost), "cost %s", got.Cost)
	requireConsistent(t, repo, inv.ID)
}

func TestNilNotifierAndMetricsAreSafe(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)

	inv, err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{
		Type: TypePaidOnDelivery, PayMethod: PayCard,
		Name: "x", Address: "x", Contact: "x",
	})
	require.NoError(t, err)

	_, err = svc.AddItem(context.Background(), inv.ID, AddItemInput{
		ShipmentType: "parcel", Quantity: 1, UnitPrice: dec(t, "1.00"),
	})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteInvoice(context.Background(), inv.ID))
}
