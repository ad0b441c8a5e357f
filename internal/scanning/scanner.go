// Package scanning extracts expense details from receipt images and
// PDFs using a vision model, so a reimbursement can be prefilled from
// the receipt instead of typed by hand.
package scanning

import "math"

// ExpenseData contains details extracted from a receipt.
type ExpenseData struct {
	Description string  `json:"description"`
	Date        string  `json:"date"`   // ISO 8601 format
	Amount      float64 `json:"amount"` // major units, as the model reports them
}

// AmountCents converts the extracted amount to integer minor currency
// units. The float exists only at this boundary; everything past it
// works in cents.
func (d *ExpenseData) AmountCents() int {
	return int(math.Round(d.Amount * 100))
}

// Scanner defines the interface for receipt scanning operations
type Scanner interface {
	// ScanReceipt analyzes a receipt image/PDF and extracts expense details
	ScanReceipt(imageData []byte, contentType string) (*ExpenseData, error)
	// Close closes the scanner and releases resources
	Close() error
}
