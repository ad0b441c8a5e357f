package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/peterbourgon/ff/v4"

	"github.com/policyengine/opencollective-go/internal/auth"
	"github.com/policyengine/opencollective-go/internal/history"
	"github.com/policyengine/opencollective-go/internal/opencollective"
	"github.com/policyengine/opencollective-go/internal/scanning"
	"github.com/policyengine/opencollective-go/internal/toolserver"
)

func newClient(tokenFile string) (*opencollective.Client, error) {
	client, err := opencollective.FromTokenFile(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("loading access token (run 'oc auth' first): %w", err)
	}
	return client, nil
}

func defaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "opencollective", "history.db")
	}
	return filepath.Join(home, ".config", "opencollective", "history.db")
}

// parseAmountCents converts a decimal major-unit amount like "325.00"
// or "$9.5" to integer cents without going through floating point.
func parseAmountCents(s string) (int, error) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "$"))
	if s == "" {
		return 0, errors.New("amount is required")
	}
	whole, frac, hasFrac := strings.Cut(s, ".")

	cents := 0
	if whole != "" {
		w, err := strconv.Atoi(whole)
		if err != nil || w < 0 {
			return 0, fmt.Errorf("invalid amount: %s", s)
		}
		cents = w * 100
	}
	if hasFrac {
		if len(frac) == 1 {
			frac += "0"
		}
		if len(frac) != 2 {
			return 0, fmt.Errorf("invalid amount: %s (use at most two decimal places)", s)
		}
		f, err := strconv.Atoi(frac)
		if err != nil || f < 0 {
			return 0, fmt.Errorf("invalid amount: %s", s)
		}
		cents += f
	}
	if cents == 0 {
		return 0, errors.New("amount must be positive")
	}
	return cents, nil
}

func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	var tags []string
	for _, tag := range strings.Split(s, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

func formatCents(cents int) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

func statusIcon(status string) string {
	switch status {
	case "PENDING":
		return "⏳"
	case "APPROVED":
		return "👍"
	case "PAID":
		return "✅"
	case "REJECTED", "ERROR":
		return "❌"
	case "DRAFT", "UNVERIFIED":
		return "📝"
	default:
		return "•"
	}
}

func printCreated(e *opencollective.Expense, collective string) {
	fmt.Printf("Created expense #%d (%s)\n", e.LegacyID, e.Status)
	fmt.Printf("  %s: %s %s\n", e.Description, formatCents(e.Amount), e.Currency)
	fmt.Printf("  https://opencollective.com/%s/expenses/%d\n", collective, e.LegacyID)
}

// recordSubmission appends to the local history database. History is
// best effort: a failure here must not fail a submission that the API
// already accepted.
func recordSubmission(dbPath, collective string, e *opencollective.Expense) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		slog.Warn("Could not create history directory", "error", err)
		return
	}
	store, err := history.NewBoltStore(dbPath)
	if err != nil {
		slog.Warn("Could not open history database", "path", dbPath, "error", err)
		return
	}
	defer store.Close()

	sub := &history.Submission{
		ExpenseID:   e.ID,
		LegacyID:    e.LegacyID,
		Collective:  collective,
		Description: e.Description,
		Amount:      e.Amount,
		Currency:    e.Currency,
		Type:        e.Type,
		Status:      e.Status,
		SubmittedAt: time.Now(),
	}
	if err := store.SaveSubmission(sub); err != nil {
		slog.Warn("Could not record submission", "error", err)
	}
}

func runReimbursement(args []string) error {
	fs := ff.NewFlagSet("oc reimbursement")
	var (
		collective   = fs.StringLong("collective", "", "Collective slug to bill (required)")
		description  = fs.StringLong("description", "", "Expense description (required)")
		amount       = fs.StringLong("amount", "", "Amount in major units, e.g. 325.00 (required)")
		receipt      = fs.StringLong("receipt", "", "Path to the receipt file (required)")
		payee        = fs.StringLong("payee", "", "Payee slug, defaults to the authenticated account")
		payoutMethod = fs.StringLong("payout-method", "", "Payout method ID, defaults to the first saved method")
		tags         = fs.StringLong("tags", "", "Comma-separated expense tags")
		currency     = fs.StringLong("currency", "", "ISO 4217 currency, defaults to the collective currency")
		incurredAt   = fs.StringLong("incurred-at", "", "Date the cost was incurred, YYYY-MM-DD")
		tokenFile    = fs.StringLong("token-file", "", "Access token file path")
		historyDB    = fs.StringLong("history-db", defaultHistoryPath(), "Submission history database path")
	)
	if err := parse(fs, args); err != nil {
		return err
	}
	if *collective == "" || *description == "" || *receipt == "" {
		return errors.New("--collective, --description, --amount, and --receipt are required")
	}
	cents, err := parseAmountCents(*amount)
	if err != nil {
		return err
	}
	client, err := newClient(*tokenFile)
	if err != nil {
		return err
	}

	expense, err := client.SubmitReimbursement(context.Background(), opencollective.ReimbursementInput{
		CollectiveSlug: *collective,
		Description:    *description,
		AmountCents:    cents,
		ReceiptFile:    *receipt,
		PayeeSlug:      *payee,
		PayoutMethodID: *payoutMethod,
		Tags:           splitTags(*tags),
		Currency:       *currency,
		IncurredAt:     *incurredAt,
	})
	if err != nil {
		return err
	}
	printCreated(expense, *collective)
	recordSubmission(*historyDB, *collective, expense)
	return nil
}

func runInvoice(args []string) error {
	fs := ff.NewFlagSet("oc invoice")
	var (
		collective   = fs.StringLong("collective", "", "Collective slug to bill (required)")
		description  = fs.StringLong("description", "", "Expense description (required)")
		amount       = fs.StringLong("amount", "", "Amount in major units, e.g. 325.00 (required)")
		invoiceFile  = fs.StringLong("invoice-file", "", "Path to an invoice document (optional)")
		payee        = fs.StringLong("payee", "", "Payee slug, defaults to the authenticated account")
		payoutMethod = fs.StringLong("payout-method", "", "Payout method ID, defaults to the first saved method")
		tags         = fs.StringLong("tags", "", "Comma-separated expense tags")
		currency     = fs.StringLong("currency", "", "ISO 4217 currency, defaults to the collective currency")
		tokenFile    = fs.StringLong("token-file", "", "Access token file path")
		historyDB    = fs.StringLong("history-db", defaultHistoryPath(), "Submission history database path")
	)
	if err := parse(fs, args); err != nil {
		return err
	}
	if *collective == "" || *description == "" {
		return errors.New("--collective, --description, and --amount are required")
	}
	cents, err := parseAmountCents(*amount)
	if err != nil {
		return err
	}
	client, err := newClient(*tokenFile)
	if err != nil {
		return err
	}

	expense, err := client.SubmitInvoice(context.Background(), opencollective.InvoiceInput{
		CollectiveSlug: *collective,
		Description:    *description,
		AmountCents:    cents,
		InvoiceFile:    *invoiceFile,
		PayeeSlug:      *payee,
		PayoutMethodID: *payoutMethod,
		Tags:           splitTags(*tags),
		Currency:       *currency,
	})
	if err != nil {
		return err
	}
	printCreated(expense, *collective)
	recordSubmission(*historyDB, *collective, expense)
	return nil
}

func runExpenses(args []string) error {
	fs := ff.NewFlagSet("oc expenses")
	var (
		collective = fs.StringLong("collective", "", "Collective slug (required)")
		status     = fs.StringLong("status", "", "Filter by status, e.g. PENDING or APPROVED")
		pending    = fs.BoolLong("pending", "Shorthand for --status PENDING")
		mine       = fs.BoolLong("mine", "Only expenses where the authenticated account is the payee")
		limit      = fs.IntLong("limit", 0, "Maximum number of expenses to fetch")
		offset     = fs.IntLong("offset", 0, "Number of expenses to skip")
		dateFrom   = fs.StringLong("date-from", "", "Only expenses created at or after this ISO datetime")
		tokenFile  = fs.StringLong("token-file", "", "Access token file path")
	)
	if err := parse(fs, args); err != nil {
		return err
	}
	if *collective == "" {
		return errors.New("--collective is required")
	}
	if *pending && *status == "" {
		*status = "PENDING"
	}
	client, err := newClient(*tokenFile)
	if err != nil {
		return err
	}

	ctx := context.Background()
	list, err := client.GetExpenses(ctx, *collective, opencollective.ExpenseListOptions{
		Limit:    *limit,
		Offset:   *offset,
		Status:   *status,
		DateFrom: *dateFrom,
	})
	if err != nil {
		return err
	}

	nodes := list.Nodes
	if *mine {
		me, err := client.GetMe(ctx)
		if err != nil {
			return err
		}
		nodes = list.FilterByPayee(me.Slug)
	}

	if len(nodes) == 0 {
		fmt.Printf("No expenses found for %s\n", *collective)
		return nil
	}
	fmt.Printf("%d of %d expense(s) for %s:\n", len(nodes), list.TotalCount, *collective)
	for _, e := range nodes {
		fmt.Printf("%s #%d  %s %s  %s (%s)\n",
			statusIcon(e.Status), e.LegacyID, formatCents(e.Amount), e.Currency,
			e.Description, e.Payee.Slug)
	}
	return nil
}

func runExpense(args []string) error {
	idArg, rest, err := popArg(args, "expense id")
	if err != nil {
		return err
	}
	id, err := strconv.Atoi(idArg)
	if err != nil {
		return fmt.Errorf("invalid expense id: %s", idArg)
	}

	fs := ff.NewFlagSet("oc expense")
	tokenFile := fs.StringLong("token-file", "", "Access token file path")
	if err := parse(fs, rest); err != nil {
		return err
	}
	client, err := newClient(*tokenFile)
	if err != nil {
		return err
	}

	expense, err := client.GetExpense(context.Background(), id)
	if err != nil {
		return err
	}
	if expense == nil {
		return fmt.Errorf("expense %d not found", id)
	}

	fmt.Printf("%s Expense #%d: %s\n", statusIcon(expense.Status), expense.LegacyID, expense.Description)
	fmt.Printf("  Status:   %s\n", expense.Status)
	fmt.Printf("  Type:     %s\n", expense.Type)
	fmt.Printf("  Amount:   %s %s\n", formatCents(expense.Amount), expense.Currency)
	fmt.Printf("  Payee:    %s\n", expense.Payee.Slug)
	if !expense.CreatedAt.IsZero() {
		fmt.Printf("  Created:  %s\n", expense.CreatedAt.Format("2006-01-02 15:04"))
	}
	if len(expense.Tags) > 0 {
		fmt.Printf("  Tags:     %s\n", strings.Join(expense.Tags, ", "))
	}
	if len(expense.Items) > 0 {
		fmt.Printf("  Items:\n")
		for _, item := range expense.Items {
			fmt.Printf("    - %s: %s", item.Description, formatCents(item.Amount))
			if item.IncurredAt != "" {
				fmt.Printf(" (%s)", item.IncurredAt)
			}
			if item.URL != "" {
				fmt.Printf(" %s", item.URL)
			}
			fmt.Println()
		}
	}
	return nil
}

func runApprove(args []string) error {
	return runProcess(args, "approve", func(client *opencollective.Client, ref opencollective.ExpenseRef, _ string) (*opencollective.Expense, error) {
		return client.ApproveExpense(context.Background(), ref)
	})
}

func runReject(args []string) error {
	return runProcess(args, "reject", func(client *opencollective.Client, ref opencollective.ExpenseRef, message string) (*opencollective.Expense, error) {
		return client.RejectExpense(context.Background(), ref, message)
	})
}

func runDelete(args []string) error {
	return runProcess(args, "delete", func(client *opencollective.Client, ref opencollective.ExpenseRef, _ string) (*opencollective.Expense, error) {
		return client.DeleteExpense(context.Background(), ref)
	})
}

func runProcess(args []string, verb string, action func(*opencollective.Client, opencollective.ExpenseRef, string) (*opencollective.Expense, error)) error {
	refArg, rest, err := popArg(args, "expense id")
	if err != nil {
		return err
	}

	fs := ff.NewFlagSet("oc " + verb)
	var (
		message   = fs.StringLong("message", "", "Message to attach (reject only)")
		tokenFile = fs.StringLong("token-file", "", "Access token file path")
	)
	if err := parse(fs, rest); err != nil {
		return err
	}
	client, err := newClient(*tokenFile)
	if err != nil {
		return err
	}

	expense, err := action(client, opencollective.ParseExpenseRef(refArg), *message)
	if err != nil {
		return err
	}
	fmt.Printf("Expense #%d is now %s\n", expense.LegacyID, expense.Status)
	return nil
}

func runMe(args []string) error {
	fs := ff.NewFlagSet("oc me")
	tokenFile := fs.StringLong("token-file", "", "Access token file path")
	if err := parse(fs, args); err != nil {
		return err
	}
	client, err := newClient(*tokenFile)
	if err != nil {
		return err
	}

	ctx := context.Background()
	me, err := client.GetMe(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%s (%s)\n", me.Name, me.Slug)
	fmt.Printf("  id: %s\n", me.ID)

	methods, err := client.GetPayoutMethods(ctx, me.Slug)
	if err != nil {
		return err
	}
	if len(methods) == 0 {
		fmt.Println("  no saved payout methods")
		return nil
	}
	fmt.Println("  payout methods:")
	for _, pm := range methods {
		fmt.Printf("    - %s (%s) %s\n", pm.Name, pm.Type, pm.ID)
	}
	return nil
}

func runAuth(args []string) error {
	fs := ff.NewFlagSet("oc auth")
	var (
		token        = fs.StringLong("token", "", "Store a personal access token directly")
		clientID     = fs.StringLong("client-id", "", "OAuth application client ID")
		clientSecret = fs.StringLong("client-secret", "", "OAuth application client secret")
		redirectURL  = fs.StringLong("redirect-url", "http://localhost:8484/callback", "OAuth redirect URL")
		code         = fs.StringLong("code", "", "Authorization code from the OAuth redirect")
		tokenFile    = fs.StringLong("token-file", "", "Access token file path")
	)
	if err := parse(fs, args); err != nil {
		return err
	}

	if *token != "" {
		if err := opencollective.SaveToken(*tokenFile, *token); err != nil {
			return err
		}
		fmt.Println("Access token saved")
		return nil
	}

	if *clientID == "" {
		return errors.New("provide --token, or --client-id to start an OAuth flow")
	}
	handler := auth.NewHandler(*clientID, *clientSecret, *redirectURL, *tokenFile)

	ctx := context.Background()
	authCode := *code
	if authCode == "" {
		fmt.Println("Open this URL in your browser and authorize the application:")
		fmt.Println()
		fmt.Println(handler.AuthorizationURL())
		fmt.Println()
		fmt.Print("Paste the authorization code: ")
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("reading authorization code: %w", err)
		}
		authCode = strings.TrimSpace(line)
		if authCode == "" {
			return errors.New("no authorization code given")
		}
	}

	accessToken, err := handler.ExchangeCode(ctx, authCode)
	if err != nil {
		return err
	}

	client, err := opencollective.New(accessToken)
	if err != nil {
		return err
	}
	me, err := client.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("token saved, but verification failed: %w", err)
	}
	fmt.Printf("Authenticated as %s (%s)\n", me.Name, me.Slug)
	return nil
}

func runScan(args []string) error {
	fileArg, rest, err := popArg(args, "receipt file")
	if err != nil {
		return err
	}

	fs := ff.NewFlagSet("oc scan")
	var (
		scannerType = fs.StringLong("scanner", "gemini", "Scanner type: 'gemini' or 'ollama'")
		geminiKey   = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel = fs.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name")
		ollamaURL   = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel = fs.StringLong("ollama-model", "llava", "Ollama model name (e.g., llava, llava-phi3, bakllava)")
		submit      = fs.BoolLong("submit", "Submit a reimbursement from the scanned data")
		collective  = fs.StringLong("collective", "", "Collective slug to bill (required with --submit)")
		tokenFile   = fs.StringLong("token-file", "", "Access token file path")
		historyDB   = fs.StringLong("history-db", defaultHistoryPath(), "Submission history database path")
	)
	if err := parse(fs, rest); err != nil {
		return err
	}
	if *submit && *collective == "" {
		return errors.New("--collective is required with --submit")
	}

	scanner, err := newScanner(*scannerType, *geminiKey, *geminiModel, *ollamaURL, *ollamaModel)
	if err != nil {
		return err
	}
	defer scanner.Close()

	data, err := os.ReadFile(fileArg)
	if err != nil {
		return fmt.Errorf("reading receipt: %w", err)
	}
	contentType := mimetype.Detect(data).String()

	slog.Info("Scanning receipt", "file", fileArg, "type", contentType)
	scanned, err := scanner.ScanReceipt(data, contentType)
	if err != nil {
		return fmt.Errorf("scanning receipt: %w", err)
	}

	cents := scanned.AmountCents()
	fmt.Printf("Description: %s\n", scanned.Description)
	fmt.Printf("Date:        %s\n", scanned.Date)
	fmt.Printf("Amount:      %s\n", formatCents(cents))

	if !*submit {
		return nil
	}
	client, err := newClient(*tokenFile)
	if err != nil {
		return err
	}
	expense, err := client.SubmitReimbursement(context.Background(), opencollective.ReimbursementInput{
		CollectiveSlug: *collective,
		Description:    scanned.Description,
		AmountCents:    cents,
		ReceiptFile:    fileArg,
		IncurredAt:     scanned.Date,
	})
	if err != nil {
		return err
	}
	printCreated(expense, *collective)
	recordSubmission(*historyDB, *collective, expense)
	return nil
}

func newScanner(scannerType, geminiKey, geminiModel, ollamaURL, ollamaModel string) (scanning.Scanner, error) {
	switch scannerType {
	case "gemini":
		apiKey := geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			return nil, errors.New("Gemini API key is required: set --gemini-key or GEMINI_API_KEY")
		}
		return scanning.NewGemini(apiKey, geminiModel)
	case "ollama":
		return scanning.NewOllama(ollamaURL, ollamaModel)
	default:
		return nil, fmt.Errorf("invalid scanner type %q (use 'gemini' or 'ollama')", scannerType)
	}
}

func runHistory(args []string) error {
	fs := ff.NewFlagSet("oc history")
	dbPath := fs.StringLong("db", defaultHistoryPath(), "Submission history database path")
	if err := parse(fs, args); err != nil {
		return err
	}

	if _, err := os.Stat(*dbPath); errors.Is(err, os.ErrNotExist) {
		fmt.Println("No submissions recorded")
		return nil
	}
	store, err := history.NewBoltStore(*dbPath)
	if err != nil {
		return fmt.Errorf("opening history database: %w", err)
	}
	defer store.Close()

	subs, err := store.ListSubmissions()
	if err != nil {
		return err
	}
	if len(subs) == 0 {
		fmt.Println("No submissions recorded")
		return nil
	}
	for _, sub := range subs {
		fmt.Printf("%s  #%d %s  %s %s -> %s (%s)\n",
			sub.SubmittedAt.Format("2006-01-02 15:04"), sub.LegacyID, sub.Type,
			formatCents(sub.Amount), sub.Currency, sub.Collective, sub.Description)
	}
	return nil
}

func runServeTools(args []string) error {
	fs := ff.NewFlagSet("oc serve-tools")
	var (
		port      = fs.IntLong("port", 8080, "HTTP server port")
		tokenFile = fs.StringLong("token-file", "", "Access token file path")
	)
	if err := parse(fs, args); err != nil {
		return err
	}
	client, err := newClient(*tokenFile)
	if err != nil {
		return err
	}

	server := toolserver.NewServer(client)
	addr := fmt.Sprintf(":%d", *port)
	slog.Info("Tool server listening", "address", fmt.Sprintf("http://localhost%s", addr))
	return server.Start(addr)
}
