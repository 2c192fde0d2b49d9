package invoicing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// taxRate is the flat 23% tax applied to every invoice subtotal.
var taxRate = decimal.New(23, -2)

// LineTotal returns quantity * unitPrice for one item, exact.
func LineTotal(quantity int64, unitPrice decimal.Decimal) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(quantity))
}

// Totals derives tax and grand total from an exact subtotal. Tax is rounded
// to 2 decimal places, half away from zero.
func Totals(subtotal decimal.Decimal) (tax, total decimal.Decimal) {
	tax = subtotal.Mul(taxRate).Round(2)
	total = subtotal.Add(tax)
	return tax, total
}

// Subtotal sums the line totals of the given items.
func Subtotal(items []InvoiceItem) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.LineTotal)
	}
	return sum
}

// HeaderQuantity aggregates the header quantity column: the sum of item
// quantities, i.e. the number of shippable units on the invoice.
func HeaderQuantity(items []InvoiceItem) int64 {
	var qty int64
	for _, it := range items {
		qty += it.Quantity
	}
	return qty
}

// VerifyTotals checks that a stored invoice header agrees with its item set.
// Test-only guard; a failure here means the recalculation path has drifted.
func VerifyTotals(inv Invoice, items []InvoiceItem) error {
	for _, it := range items {
		if want := LineTotal(it.Quantity, it.UnitPrice); !it.LineTotal.Equal(want) {
			return fmt.Errorf("item %d line total %s, want %s", it.ID, it.LineTotal, want)
		}
	}
	_, total := Totals(Subtotal(items))
	if !inv.Cost.Equal(total) {
		return fmt.Errorf("invoice %d cost %s, want %s", inv.ID, inv.Cost, total)
	}
	if qty := HeaderQuantity(items); inv.Quantity != qty {
		return fmt.Errorf("invoice %d quantity %d, want %d", inv.ID, inv.Quantity, qty)
	}
	return nil
}
