package toolserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/policyengine/opencollective-go/internal/opencollective"
)

// Tool describes a callable tool and the JSON schema of its arguments.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// ContentItem is one piece of a tool result.
type ContentItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ToolResult is the outcome of a tool invocation.
type ToolResult struct {
	Content []ContentItem `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

func textResult(text string) ToolResult {
	return ToolResult{Content: []ContentItem{{Type: "text", Text: text}}}
}

func errorResult(err error) ToolResult {
	return ToolResult{
		Content: []ContentItem{{Type: "text", Text: fmt.Sprintf("Error: %v", err)}},
		IsError: true,
	}
}

// Tools returns the definitions of every tool the server exposes.
func Tools() []Tool {
	return []Tool{
		{
			Name:        "submit_multi_item_reimbursement",
			Description: "Submit a reimbursement expense with one or more receipt items to an Open Collective collective. Amounts are integer cents.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"collective_slug": map[string]any{
						"type":        "string",
						"description": "Slug of the collective to bill, e.g. policyengine",
					},
					"description": map[string]any{
						"type":        "string",
						"description": "Overall expense description",
					},
					"items": map[string]any{
						"type":        "array",
						"description": "Expense items, each with its own receipt file",
						"items": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"amount_cents": map[string]any{
									"type":        "integer",
									"description": "Item amount in integer cents",
								},
								"description": map[string]any{
									"type": "string",
								},
								"receipt_file": map[string]any{
									"type":        "string",
									"description": "Path to the receipt file on disk",
								},
								"incurred_at": map[string]any{
									"type":        "string",
									"description": "Date the cost was incurred, YYYY-MM-DD",
								},
							},
							"required": []string{"amount_cents", "description", "receipt_file"},
						},
					},
					"currency": map[string]any{
						"type":        "string",
						"description": "ISO 4217 currency code, omit for the collective default",
					},
					"tags": map[string]any{
						"type":  "array",
						"items": map[string]any{"type": "string"},
					},
				},
				"required": []string{"collective_slug", "description", "items"},
			},
		},
		{
			Name:        "get_expense_items",
			Description: "Fetch a single expense by its numeric id and list its items with amounts and receipt URLs.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"expense_id": map[string]any{
						"type":        "integer",
						"description": "Numeric (legacy) expense id",
					},
				},
				"required": []string{"expense_id"},
			},
		},
		{
			Name:        "list_expenses",
			Description: "List expenses for a collective, optionally filtered by status.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"collective_slug": map[string]any{
						"type": "string",
					},
					"status": map[string]any{
						"type":        "string",
						"description": "Status filter such as PENDING or APPROVED",
					},
					"limit": map[string]any{
						"type": "integer",
					},
				},
				"required": []string{"collective_slug"},
			},
		},
	}
}

func (s *Server) dispatch(ctx context.Context, name string, arguments json.RawMessage) ToolResult {
	switch name {
	case "submit_multi_item_reimbursement":
		return s.submitMultiItemReimbursement(ctx, arguments)
	case "get_expense_items":
		return s.getExpenseItems(ctx, arguments)
	case "list_expenses":
		return s.listExpenses(ctx, arguments)
	default:
		return errorResult(fmt.Errorf("unknown tool: %s", name))
	}
}

type multiItemArgs struct {
	CollectiveSlug string `json:"collective_slug"`
	Description    string `json:"description"`
	Items          []struct {
		AmountCents int    `json:"amount_cents"`
		Description string `json:"description"`
		ReceiptFile string `json:"receipt_file"`
		IncurredAt  string `json:"incurred_at"`
	} `json:"items"`
	Currency string   `json:"currency"`
	Tags     []string `json:"tags"`
}

func (s *Server) submitMultiItemReimbursement(ctx context.Context, arguments json.RawMessage) ToolResult {
	var args multiItemArgs
	if err := json.Unmarshal(arguments, &args); err != nil {
		return errorResult(fmt.Errorf("parsing arguments: %w", err))
	}

	input := opencollective.MultiItemInput{
		CollectiveSlug: args.CollectiveSlug,
		Description:    args.Description,
		Currency:       args.Currency,
		Tags:           args.Tags,
	}
	for _, item := range args.Items {
		input.Items = append(input.Items, opencollective.ExpenseItemInput{
			AmountCents: item.AmountCents,
			Description: item.Description,
			ReceiptFile: item.ReceiptFile,
			IncurredAt:  item.IncurredAt,
		})
	}

	expense, err := s.client.SubmitMultiItemReimbursement(ctx, input)
	if err != nil {
		return errorResult(err)
	}

	return textResult(fmt.Sprintf(
		"Created expense #%d (status: %s)\nTotal: %s\nView: https://opencollective.com/%s/expenses/%d",
		expense.LegacyID, expense.Status, formatCents(expense.Amount),
		args.CollectiveSlug, expense.LegacyID,
	))
}

type expenseItemsArgs struct {
	ExpenseID int `json:"expense_id"`
}

func (s *Server) getExpenseItems(ctx context.Context, arguments json.RawMessage) ToolResult {
	var args expenseItemsArgs
	if err := json.Unmarshal(arguments, &args); err != nil {
		return errorResult(fmt.Errorf("parsing arguments: %w", err))
	}

	expense, err := s.client.GetExpense(ctx, args.ExpenseID)
	if err != nil {
		return errorResult(err)
	}
	if expense == nil {
		return textResult(fmt.Sprintf("Expense %d not found", args.ExpenseID))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Expense #%d: %s (%s)\n", expense.LegacyID, expense.Description, expense.Status)
	fmt.Fprintf(&b, "%d item(s):\n", len(expense.Items))
	for _, item := range expense.Items {
		fmt.Fprintf(&b, "- %s: %s", item.Description, formatCents(item.Amount))
		if item.IncurredAt != "" {
			fmt.Fprintf(&b, " (%s)", item.IncurredAt)
		}
		if item.URL != "" {
			fmt.Fprintf(&b, " %s", item.URL)
		}
		b.WriteString("\n")
	}
	return textResult(strings.TrimRight(b.String(), "\n"))
}

type listExpensesArgs struct {
	CollectiveSlug string `json:"collective_slug"`
	Status         string `json:"status"`
	Limit          int    `json:"limit"`
}

func (s *Server) listExpenses(ctx context.Context, arguments json.RawMessage) ToolResult {
	var args listExpensesArgs
	if err := json.Unmarshal(arguments, &args); err != nil {
		return errorResult(fmt.Errorf("parsing arguments: %w", err))
	}

	list, err := s.client.GetExpenses(ctx, args.CollectiveSlug, opencollective.ExpenseListOptions{
		Status: args.Status,
		Limit:  args.Limit,
	})
	if err != nil {
		return errorResult(err)
	}

	if len(list.Nodes) == 0 {
		return textResult(fmt.Sprintf("No expenses found for %s", args.CollectiveSlug))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d of %d expense(s) for %s:\n", len(list.Nodes), list.TotalCount, args.CollectiveSlug)
	for _, expense := range list.Nodes {
		fmt.Fprintf(&b, "- #%d %s: %s %s (%s)\n",
			expense.LegacyID, expense.Status, formatCents(expense.Amount),
			expense.Currency, expense.Description)
	}
	return textResult(strings.TrimRight(b.String(), "\n"))
}

// formatCents renders an integer minor-unit amount as dollars without
// going through floating point.
func formatCents(cents int) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}
