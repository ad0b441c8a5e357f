package opencollective

import (
	"encoding/json"
	"strconv"
	"time"
)

// ExpenseType is the kind of expense being submitted.
type ExpenseType string

const (
	ExpenseTypeReceipt ExpenseType = "RECEIPT"
	ExpenseTypeInvoice ExpenseType = "INVOICE"
)

// FileKind tells the upload endpoint what the file will be attached to.
type FileKind string

const (
	FileKindExpenseAttachedFile FileKind = "EXPENSE_ATTACHED_FILE"
	FileKindExpenseItem         FileKind = "EXPENSE_ITEM"
	FileKindExpenseInvoice      FileKind = "EXPENSE_INVOICE"
)

// Collective is the organizational account that owns and pays expenses.
type Collective struct {
	ID          string `json:"id"`
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Currency    string `json:"currency"`
}

// Account is a user or organization account on the platform.
type Account struct {
	ID   string `json:"id"`
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// Item is one line entry of an expense. Amount is in minor currency
// units (cents). IncurredAt is an ISO date or datetime string as
// returned by the API.
type Item struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Amount      int    `json:"amount"`
	URL         string `json:"url"`
	IncurredAt  string `json:"incurredAt"`
}

// Expense is a reimbursement or invoice request against a collective.
// LegacyID is the numeric surrogate for the opaque ID; either
// identifies the same expense.
type Expense struct {
	ID               string    `json:"id"`
	LegacyID         int       `json:"legacyId"`
	Description      string    `json:"description"`
	Amount           int       `json:"amount"` // minor currency units
	Currency         string    `json:"currency"`
	Type             string    `json:"type"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"createdAt"`
	Payee            Account   `json:"payee"`
	CreatedByAccount Account   `json:"createdByAccount"`
	Tags             []string  `json:"tags"`
	Items            []Item    `json:"items"`
}

// ExpenseList is a page of expenses plus the total match count.
type ExpenseList struct {
	TotalCount int       `json:"totalCount"`
	Nodes      []Expense `json:"nodes"`
}

// PayoutMethod is a stored disbursement destination. Data is
// type-specific and passed through opaquely.
type PayoutMethod struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Name    string          `json:"name"`
	Data    json.RawMessage `json:"data"`
	IsSaved bool            `json:"isSaved"`
}

// UploadedFile is the result of a single file upload.
type UploadedFile struct {
	ID   string `json:"id"`
	URL  string `json:"url"`
	Name string `json:"name"`
	Type string `json:"type"`
	Size int    `json:"size"`
}

// ExpenseRef identifies an existing expense by either its opaque ID or
// its numeric legacy ID. Use ByID, ByLegacyID, or ParseExpenseRef.
type ExpenseRef struct {
	id       string
	legacyID int
}

// ByID references an expense by its opaque string ID.
func ByID(id string) ExpenseRef {
	return ExpenseRef{id: id}
}

// ByLegacyID references an expense by its numeric legacy ID.
func ByLegacyID(legacyID int) ExpenseRef {
	return ExpenseRef{legacyID: legacyID}
}

// ParseExpenseRef turns user input into an expense reference. Purely
// numeric input is treated as a legacy ID, anything else as an opaque ID.
func ParseExpenseRef(s string) ExpenseRef {
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return ByLegacyID(n)
	}
	return ByID(s)
}

// variables builds the ExpenseReferenceInput shape the mutations accept.
func (r ExpenseRef) variables() map[string]any {
	if r.legacyID > 0 {
		return map[string]any{"legacyId": r.legacyID}
	}
	return map[string]any{"id": r.id}
}

func (r ExpenseRef) String() string {
	if r.legacyID > 0 {
		return strconv.Itoa(r.legacyID)
	}
	return r.id
}
