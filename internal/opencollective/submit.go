package opencollective

import (
	"context"
	"fmt"
	"os"
)

// ReimbursementInput carries a single-receipt reimbursement. PayeeSlug
// defaults to the authenticated account, PayoutMethodID to the payee's
// first saved payout method.
type ReimbursementInput struct {
	CollectiveSlug string
	Description    string
	AmountCents    int
	ReceiptFile    string
	PayeeSlug      string
	PayoutMethodID string
	Tags           []string
	Currency       string
	IncurredAt     string // ISO date
}

// SubmitReimbursement resolves defaults, uploads the receipt, and
// creates a RECEIPT expense with one item carrying the full amount.
// Each step's failure aborts the remainder; nothing is rolled back.
func (c *Client) SubmitReimbursement(ctx context.Context, in ReimbursementInput) (*Expense, error) {
	payeeSlug, payoutMethodID, err := c.resolvePayee(ctx, in.PayeeSlug, in.PayoutMethodID)
	if err != nil {
		return nil, err
	}

	uploaded, err := c.UploadFile(ctx, UploadInput{
		Path: in.ReceiptFile,
		Kind: FileKindExpenseAttachedFile,
	})
	if err != nil {
		return nil, err
	}

	return c.CreateExpense(ctx, CreateExpenseInput{
		CollectiveSlug: in.CollectiveSlug,
		PayeeSlug:      payeeSlug,
		Description:    in.Description,
		Type:           ExpenseTypeReceipt,
		Items: []ItemInput{{
			Description: in.Description,
			Amount:      in.AmountCents,
			URL:         uploaded.URL,
			IncurredAt:  in.IncurredAt,
		}},
		PayoutMethodID: payoutMethodID,
		Tags:           in.Tags,
		Currency:       in.Currency,
	})
}

// InvoiceInput carries an invoice submission. InvoiceFile is optional;
// when given it is uploaded and attached as the invoice reference.
type InvoiceInput struct {
	CollectiveSlug string
	Description    string
	AmountCents    int
	InvoiceFile    string
	PayeeSlug      string
	PayoutMethodID string
	Tags           []string
	Currency       string
}

// SubmitInvoice resolves defaults like SubmitReimbursement and creates
// an INVOICE expense.
func (c *Client) SubmitInvoice(ctx context.Context, in InvoiceInput) (*Expense, error) {
	payeeSlug, payoutMethodID, err := c.resolvePayee(ctx, in.PayeeSlug, in.PayoutMethodID)
	if err != nil {
		return nil, err
	}

	invoiceURL := ""
	if in.InvoiceFile != "" {
		uploaded, err := c.UploadFile(ctx, UploadInput{
			Path: in.InvoiceFile,
			Kind: FileKindExpenseInvoice,
		})
		if err != nil {
			return nil, err
		}
		invoiceURL = uploaded.URL
	}

	return c.CreateExpense(ctx, CreateExpenseInput{
		CollectiveSlug: in.CollectiveSlug,
		PayeeSlug:      payeeSlug,
		Description:    in.Description,
		Type:           ExpenseTypeInvoice,
		Items: []ItemInput{{
			Description: in.Description,
			Amount:      in.AmountCents,
		}},
		PayoutMethodID: payoutMethodID,
		Tags:           in.Tags,
		Currency:       in.Currency,
		InvoiceURL:     invoiceURL,
	})
}

// ExpenseItemInput is one entry of a multi-item reimbursement: its own
// amount, description, receipt file, and incurred date.
type ExpenseItemInput struct {
	Description string
	AmountCents int
	ReceiptFile string
	IncurredAt  string // ISO date
}

// MultiItemInput carries a reimbursement with several line items.
type MultiItemInput struct {
	CollectiveSlug string
	Description    string
	Items          []ExpenseItemInput
	PayeeSlug      string
	PayoutMethodID string
	Tags           []string
	Currency       string
}

// SubmitMultiItemReimbursement resolves the payee and payout method
// once, then walks the items in order: each receipt is validated and
// uploaded as it is reached (one upload call per item), and a single
// CreateExpense call receives the full ordered item sequence. The
// server computes the total from the item amounts.
//
// Failure semantics are sequential eager-fail: a missing receipt file
// on a later item aborts the flow but does not undo uploads already
// performed for earlier items.
func (c *Client) SubmitMultiItemReimbursement(ctx context.Context, in MultiItemInput) (*Expense, error) {
	if len(in.Items) == 0 {
		return nil, fmt.Errorf("at least one item is required")
	}

	payeeSlug, payoutMethodID, err := c.resolvePayee(ctx, in.PayeeSlug, in.PayoutMethodID)
	if err != nil {
		return nil, err
	}

	items := make([]ItemInput, 0, len(in.Items))
	for _, item := range in.Items {
		if _, err := os.Stat(item.ReceiptFile); err != nil {
			return nil, fmt.Errorf("receipt file not found: %s: %w", item.ReceiptFile, err)
		}
		uploaded, err := c.UploadFile(ctx, UploadInput{
			Path: item.ReceiptFile,
			Kind: FileKindExpenseItem,
		})
		if err != nil {
			return nil, fmt.Errorf("uploading receipt %s: %w", item.ReceiptFile, err)
		}
		items = append(items, ItemInput{
			Description: item.Description,
			Amount:      item.AmountCents,
			URL:         uploaded.URL,
			IncurredAt:  item.IncurredAt,
		})
	}

	return c.CreateExpense(ctx, CreateExpenseInput{
		CollectiveSlug: in.CollectiveSlug,
		PayeeSlug:      payeeSlug,
		Description:    in.Description,
		Type:           ExpenseTypeReceipt,
		Items:          items,
		PayoutMethodID: payoutMethodID,
		Tags:           in.Tags,
		Currency:       in.Currency,
	})
}

// resolvePayee fills in the payee slug from the authenticated account
// and the payout method from the payee's first saved method, when not
// given explicitly.
func (c *Client) resolvePayee(ctx context.Context, payeeSlug, payoutMethodID string) (string, string, error) {
	if payeeSlug == "" {
		me, err := c.GetMe(ctx)
		if err != nil {
			return "", "", fmt.Errorf("resolving current user: %w", err)
		}
		payeeSlug = me.Slug
	}

	if payoutMethodID == "" {
		methods, err := c.GetPayoutMethods(ctx, payeeSlug)
		if err != nil {
			return "", "", fmt.Errorf("resolving payout method: %w", err)
		}
		if len(methods) == 0 {
			return "", "", fmt.Errorf("%w: %s", ErrNoPayoutMethod, payeeSlug)
		}
		payoutMethodID = methods[0].ID
	}

	return payeeSlug, payoutMethodID, nil
}
