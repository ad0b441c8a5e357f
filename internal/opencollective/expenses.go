package opencollective

import "context"

// ExpenseListOptions filters a GetExpenses call. Zero-value fields are
// omitted from the request variables.
type ExpenseListOptions struct {
	Limit    int
	Offset   int
	Status   string // PENDING, APPROVED, PAID, ...
	DateFrom string // ISO datetime
}

// DefaultExpenseLimit is used when ExpenseListOptions.Limit is zero.
const DefaultExpenseLimit = 50

// GetExpenses lists expenses for a collective, newest first.
func (c *Client) GetExpenses(ctx context.Context, collectiveSlug string, opts ExpenseListOptions) (*ExpenseList, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultExpenseLimit
	}
	variables := map[string]any{
		"account": map[string]any{"slug": collectiveSlug},
		"limit":   limit,
		"offset":  opts.Offset,
	}
	if opts.Status != "" {
		// The upstream filter is array-typed.
		variables["status"] = []string{opts.Status}
	}
	if opts.DateFrom != "" {
		variables["dateFrom"] = opts.DateFrom
	}

	var payload struct {
		Expenses ExpenseList `json:"expenses"`
	}
	if err := c.execute(ctx, c.apiURL, queryGetExpenses, variables, &payload); err != nil {
		return nil, err
	}
	return &payload.Expenses, nil
}

// GetExpense fetches a single expense by its numeric legacy ID. A
// nonexistent expense returns (nil, nil): "no data" is a valid result,
// distinct from an error.
func (c *Client) GetExpense(ctx context.Context, legacyID int) (*Expense, error) {
	variables := map[string]any{
		"expense": ByLegacyID(legacyID).variables(),
	}
	var payload struct {
		Expense *Expense `json:"expense"`
	}
	if err := c.execute(ctx, c.apiURL, queryGetExpense, variables, &payload); err != nil {
		return nil, err
	}
	return payload.Expense, nil
}

// ItemInput is one line item of an expense being created. Amount is in
// minor currency units. URL and IncurredAt are omitted when empty.
type ItemInput struct {
	Description string
	Amount      int
	URL         string
	IncurredAt  string
}

// CreateExpenseInput carries everything CreateExpense needs. Optional
// fields left at their zero value are not sent at all; in particular an
// empty Currency omits the field so the server falls back to the
// collective's default currency.
type CreateExpenseInput struct {
	CollectiveSlug string
	PayeeSlug      string
	Description    string
	Type           ExpenseType
	Items          []ItemInput
	PayoutMethodID string
	Tags           []string
	Currency       string
	InvoiceURL     string
	AttachmentURLs []string
}

// CreateExpense submits a new expense. The server decides whether it
// enters DRAFT or PENDING.
func (c *Client) CreateExpense(ctx context.Context, in CreateExpenseInput) (*Expense, error) {
	items := make([]map[string]any, 0, len(in.Items))
	for _, item := range in.Items {
		entry := map[string]any{
			"description": item.Description,
			"amount":      item.Amount,
		}
		if item.URL != "" {
			entry["url"] = item.URL
		}
		if item.IncurredAt != "" {
			entry["incurredAt"] = item.IncurredAt
		}
		items = append(items, entry)
	}

	expense := map[string]any{
		"description": in.Description,
		"type":        string(in.Type),
		"payee":       map[string]any{"slug": in.PayeeSlug},
		"items":       items,
	}
	if in.PayoutMethodID != "" {
		expense["payoutMethod"] = map[string]any{"id": in.PayoutMethodID}
	}
	if len(in.Tags) > 0 {
		expense["tags"] = in.Tags
	}
	if in.Currency != "" {
		expense["currency"] = in.Currency
	}
	if len(in.AttachmentURLs) > 0 {
		attached := make([]map[string]any, 0, len(in.AttachmentURLs))
		for _, url := range in.AttachmentURLs {
			attached = append(attached, map[string]any{"url": url})
		}
		expense["attachedFiles"] = attached
	}
	if in.InvoiceURL != "" {
		expense["invoiceFile"] = map[string]any{"url": in.InvoiceURL}
	}

	variables := map[string]any{
		"account": map[string]any{"slug": in.CollectiveSlug},
		"expense": expense,
	}

	var payload struct {
		CreateExpense Expense `json:"createExpense"`
	}
	if err := c.execute(ctx, c.apiURL, mutationCreateExpense, variables, &payload); err != nil {
		return nil, err
	}
	return &payload.CreateExpense, nil
}

// ApproveExpense approves a pending expense. Requires admin
// permissions on the collective.
func (c *Client) ApproveExpense(ctx context.Context, ref ExpenseRef) (*Expense, error) {
	return c.processExpense(ctx, ref, "APPROVE", "")
}

// RejectExpense rejects a pending expense with an optional message.
func (c *Client) RejectExpense(ctx context.Context, ref ExpenseRef, message string) (*Expense, error) {
	return c.processExpense(ctx, ref, "REJECT", message)
}

func (c *Client) processExpense(ctx context.Context, ref ExpenseRef, action, message string) (*Expense, error) {
	variables := map[string]any{
		"expense": ref.variables(),
		"action":  action,
	}
	if message != "" {
		variables["message"] = message
	}

	var payload struct {
		ProcessExpense Expense `json:"processExpense"`
	}
	if err := c.execute(ctx, c.apiURL, mutationProcessExpense, variables, &payload); err != nil {
		return nil, err
	}
	return &payload.ProcessExpense, nil
}

// DeleteExpense removes an expense. The server only allows this for
// DRAFT and PENDING expenses and returns its own error otherwise,
// which is surfaced unchanged.
func (c *Client) DeleteExpense(ctx context.Context, ref ExpenseRef) (*Expense, error) {
	variables := map[string]any{
		"expense": ref.variables(),
	}
	var payload struct {
		DeleteExpense Expense `json:"deleteExpense"`
	}
	if err := c.execute(ctx, c.apiURL, mutationDeleteExpense, variables, &payload); err != nil {
		return nil, err
	}
	return &payload.DeleteExpense, nil
}

// FilterByPayee returns the expenses whose payee slug matches.
func (l *ExpenseList) FilterByPayee(payeeSlug string) []Expense {
	var out []Expense
	for _, e := range l.Nodes {
		if e.Payee.Slug == payeeSlug {
			out = append(out, e)
		}
	}
	return out
}
