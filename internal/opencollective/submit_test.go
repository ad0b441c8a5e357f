package opencollective

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

var _ = Describe("Submit flows", func() {
	var (
		api    *ghttp.Server
		upload *ghttp.Server
		client *Client
		ctx    context.Context
		tmpDir string
	)

	writeReceipt := func(name, content string) string {
		path := filepath.Join(tmpDir, name)
		Expect(os.WriteFile(path, []byte(content), 0644)).To(Succeed())
		return path
	}

	meResponse := ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
		"data": map[string]any{
			"me": map[string]any{"id": "user-123", "slug": "max-ghenis", "name": "Max Ghenis"},
		},
	})

	payoutMethodsResponse := ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
		"data": map[string]any{
			"account": map[string]any{
				"payoutMethods": []map[string]any{
					{"id": "pm-123", "type": "BANK_ACCOUNT"},
				},
			},
		},
	})

	uploadResponse := func(url string) http.HandlerFunc {
		return ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
			"data": map[string]any{
				"uploadFile": []map[string]any{
					{"file": map[string]any{"id": "file-1", "url": url}},
				},
			},
		})
	}

	createdResponse := func(legacyID int, status string) http.HandlerFunc {
		return ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
			"data": map[string]any{
				"createExpense": map[string]any{
					"id":       fmt.Sprintf("exp-%d", legacyID),
					"legacyId": legacyID,
					"status":   status,
				},
			},
		})
	}

	BeforeEach(func() {
		api = ghttp.NewServer()
		upload = ghttp.NewServer()
		client = newTestClient(api, upload)
		ctx = context.Background()
		tmpDir = GinkgoT().TempDir()
	})

	AfterEach(func() {
		api.Close()
		upload.Close()
	})

	Describe("SubmitReimbursement", func() {
		When("no payee or payout method is given", func() {
			var createRequest graphqlRequest

			BeforeEach(func() {
				createRequest = graphqlRequest{}
				api.AppendHandlers(
					meResponse,
					payoutMethodsResponse,
					ghttp.CombineHandlers(
						captureGraphQL(&createRequest),
						createdResponse(99999, "PENDING"),
					),
				)
				upload.AppendHandlers(uploadResponse("https://example.com/receipt.pdf"))
			})

			It("should resolve defaults then create the expense", func() {
				receipt := writeReceipt("valid.pdf", "fake pdf content")

				expense, err := client.SubmitReimbursement(ctx, ReimbursementInput{
					CollectiveSlug: "acme",
					Description:    "NASI Dues 2026",
					AmountCents:    32500,
					ReceiptFile:    receipt,
				})
				Expect(err).NotTo(HaveOccurred())
				Expect(expense.LegacyID).To(Equal(99999))
				Expect(expense.Status).To(Equal("PENDING"))

				// get_me + get_payout_methods + create on the API endpoint,
				// one call on the upload endpoint.
				Expect(api.ReceivedRequests()).To(HaveLen(3))
				Expect(upload.ReceivedRequests()).To(HaveLen(1))

				expenseVars := createRequest.Variables["expense"].(map[string]any)
				Expect(expenseVars["payee"]).To(Equal(map[string]any{"slug": "max-ghenis"}))
				Expect(expenseVars["type"]).To(Equal("RECEIPT"))
				Expect(expenseVars["payoutMethod"]).To(Equal(map[string]any{"id": "pm-123"}))

				items := expenseVars["items"].([]any)
				Expect(items).To(HaveLen(1))
				item := items[0].(map[string]any)
				Expect(item["amount"]).To(BeNumerically("==", 32500))
				Expect(item["url"]).To(Equal("https://example.com/receipt.pdf"))

				account := createRequest.Variables["account"].(map[string]any)
				Expect(account["slug"]).To(Equal("acme"))
			})
		})

		When("an explicit payee is given", func() {
			It("should skip the current-user lookup but still resolve the payout method", func() {
				var createRequest graphqlRequest
				api.AppendHandlers(
					payoutMethodsResponse,
					ghttp.CombineHandlers(
						captureGraphQL(&createRequest),
						createdResponse(111, "PENDING"),
					),
				)
				upload.AppendHandlers(uploadResponse("https://example.com/r.pdf"))

				receipt := writeReceipt("r.pdf", "pdf")
				expense, err := client.SubmitReimbursement(ctx, ReimbursementInput{
					CollectiveSlug: "policyengine",
					Description:    "Test",
					AmountCents:    5000,
					ReceiptFile:    receipt,
					PayeeSlug:      "explicit-user",
				})
				Expect(err).NotTo(HaveOccurred())
				Expect(expense.LegacyID).To(Equal(111))
				Expect(api.ReceivedRequests()).To(HaveLen(2))

				expenseVars := createRequest.Variables["expense"].(map[string]any)
				Expect(expenseVars["payee"]).To(Equal(map[string]any{"slug": "explicit-user"}))
			})
		})

		When("the payee has no payout methods", func() {
			It("should fail without uploading anything", func() {
				api.AppendHandlers(
					meResponse,
					ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
						"data": map[string]any{
							"account": map[string]any{"payoutMethods": []any{}},
						},
					}),
				)

				receipt := writeReceipt("r.pdf", "pdf")
				_, err := client.SubmitReimbursement(ctx, ReimbursementInput{
					CollectiveSlug: "policyengine",
					Description:    "Test",
					AmountCents:    5000,
					ReceiptFile:    receipt,
				})
				Expect(err).To(MatchError(ErrNoPayoutMethod))
				Expect(upload.ReceivedRequests()).To(BeEmpty())
			})
		})

		When("a currency and incurred date are given", func() {
			It("should pass them through to the create call", func() {
				var createRequest graphqlRequest
				api.AppendHandlers(
					meResponse,
					payoutMethodsResponse,
					ghttp.CombineHandlers(
						captureGraphQL(&createRequest),
						createdResponse(202, "PENDING"),
					),
				)
				upload.AppendHandlers(uploadResponse("https://example.com/r.pdf"))

				receipt := writeReceipt("r.pdf", "pdf")
				_, err := client.SubmitReimbursement(ctx, ReimbursementInput{
					CollectiveSlug: "policyengine",
					Description:    "GBP expense",
					AmountCents:    5000,
					ReceiptFile:    receipt,
					Currency:       "GBP",
					IncurredAt:     "2026-01-15",
				})
				Expect(err).NotTo(HaveOccurred())

				expenseVars := createRequest.Variables["expense"].(map[string]any)
				Expect(expenseVars["currency"]).To(Equal("GBP"))
				item := expenseVars["items"].([]any)[0].(map[string]any)
				Expect(item["incurredAt"]).To(Equal("2026-01-15"))
			})
		})
	})

	Describe("SubmitInvoice", func() {
		When("no invoice file is given", func() {
			It("should create the expense without any upload", func() {
				var createRequest graphqlRequest
				api.AppendHandlers(
					meResponse,
					payoutMethodsResponse,
					ghttp.CombineHandlers(
						captureGraphQL(&createRequest),
						createdResponse(222, "DRAFT"),
					),
				)

				expense, err := client.SubmitInvoice(ctx, InvoiceInput{
					CollectiveSlug: "policyengine",
					Description:    "January Consulting",
					AmountCents:    500000,
				})
				Expect(err).NotTo(HaveOccurred())
				Expect(expense.LegacyID).To(Equal(222))
				Expect(upload.ReceivedRequests()).To(BeEmpty())

				expenseVars := createRequest.Variables["expense"].(map[string]any)
				Expect(expenseVars["type"]).To(Equal("INVOICE"))
				Expect(expenseVars).NotTo(HaveKey("invoiceFile"))
			})
		})

		When("an invoice file is given", func() {
			It("should upload it and attach the invoice reference", func() {
				var createRequest graphqlRequest
				api.AppendHandlers(
					meResponse,
					payoutMethodsResponse,
					ghttp.CombineHandlers(
						captureGraphQL(&createRequest),
						createdResponse(333, "DRAFT"),
					),
				)
				upload.AppendHandlers(uploadResponse("https://example.com/invoice.pdf"))

				invoice := writeReceipt("invoice.pdf", "invoice pdf")
				expense, err := client.SubmitInvoice(ctx, InvoiceInput{
					CollectiveSlug: "policyengine",
					Description:    "Invoice with file",
					AmountCents:    100000,
					InvoiceFile:    invoice,
				})
				Expect(err).NotTo(HaveOccurred())
				Expect(expense.LegacyID).To(Equal(333))
				Expect(upload.ReceivedRequests()).To(HaveLen(1))

				expenseVars := createRequest.Variables["expense"].(map[string]any)
				Expect(expenseVars["invoiceFile"]).To(Equal(map[string]any{"url": "https://example.com/invoice.pdf"}))
			})
		})
	})

	Describe("SubmitMultiItemReimbursement", func() {
		When("three items are given", func() {
			It("should upload each receipt in order and create once", func() {
				var createRequest graphqlRequest
				api.AppendHandlers(
					meResponse,
					payoutMethodsResponse,
					ghttp.CombineHandlers(
						captureGraphQL(&createRequest),
						createdResponse(50003, "PENDING"),
					),
				)
				for i := 0; i < 3; i++ {
					upload.AppendHandlers(uploadResponse(fmt.Sprintf("https://example.com/receipt%d.pdf", i)))
				}

				items := make([]ExpenseItemInput, 0, 3)
				for i := 0; i < 3; i++ {
					items = append(items, ExpenseItemInput{
						Description: fmt.Sprintf("Item %d", i+1),
						AmountCents: 1000 * (i + 1),
						ReceiptFile: writeReceipt(fmt.Sprintf("receipt%d.pdf", i), "pdf"),
						IncurredAt:  fmt.Sprintf("2026-01-0%d", i+1),
					})
				}

				expense, err := client.SubmitMultiItemReimbursement(ctx, MultiItemInput{
					CollectiveSlug: "policyengine",
					Description:    "Three items",
					Items:          items,
				})
				Expect(err).NotTo(HaveOccurred())
				Expect(expense.LegacyID).To(Equal(50003))

				// One upload per item, in input order, then one create.
				Expect(upload.ReceivedRequests()).To(HaveLen(3))
				Expect(api.ReceivedRequests()).To(HaveLen(3))

				expenseVars := createRequest.Variables["expense"].(map[string]any)
				Expect(expenseVars["type"]).To(Equal("RECEIPT"))
				sent := expenseVars["items"].([]any)
				Expect(sent).To(HaveLen(3))
				for i, raw := range sent {
					item := raw.(map[string]any)
					Expect(item["description"]).To(Equal(fmt.Sprintf("Item %d", i+1)))
					Expect(item["amount"]).To(BeNumerically("==", 1000*(i+1)))
					Expect(item["url"]).To(Equal(fmt.Sprintf("https://example.com/receipt%d.pdf", i)))
				}

				// The client never sums the item amounts; no total appears
				// in the request.
				Expect(expenseVars).NotTo(HaveKey("amount"))
			})
		})

		When("a currency is given", func() {
			It("should include it in the create call", func() {
				var createRequest graphqlRequest
				api.AppendHandlers(
					meResponse,
					payoutMethodsResponse,
					ghttp.CombineHandlers(
						captureGraphQL(&createRequest),
						createdResponse(50002, "PENDING"),
					),
				)
				upload.AppendHandlers(uploadResponse("https://example.com/r.pdf"))

				_, err := client.SubmitMultiItemReimbursement(ctx, MultiItemInput{
					CollectiveSlug: "policyengine",
					Description:    "GBP expense",
					Items: []ExpenseItemInput{{
						Description: "UK purchase",
						AmountCents: 5000,
						ReceiptFile: writeReceipt("uk.pdf", "pdf"),
						IncurredAt:  "2026-01-15",
					}},
					Currency: "GBP",
				})
				Expect(err).NotTo(HaveOccurred())

				expenseVars := createRequest.Variables["expense"].(map[string]any)
				Expect(expenseVars["currency"]).To(Equal("GBP"))
			})
		})

		When("an explicit payee and payout method are given", func() {
			It("should skip both resolution calls", func() {
				api.AppendHandlers(createdResponse(50001, "PENDING"))
				upload.AppendHandlers(uploadResponse("https://example.com/r.pdf"))

				expense, err := client.SubmitMultiItemReimbursement(ctx, MultiItemInput{
					CollectiveSlug: "policyengine",
					Description:    "Single item multi method",
					Items: []ExpenseItemInput{{
						Description: "Software license",
						AmountCents: 10000,
						ReceiptFile: writeReceipt("license.pdf", "pdf"),
						IncurredAt:  "2026-02-01",
					}},
					PayeeSlug:      "explicit-user",
					PayoutMethodID: "pm-456",
				})
				Expect(err).NotTo(HaveOccurred())
				Expect(expense.LegacyID).To(Equal(50001))
				Expect(api.ReceivedRequests()).To(HaveLen(1))
			})
		})

		When("the first item's receipt file does not exist", func() {
			It("should fail before any upload", func() {
				api.AppendHandlers(meResponse, payoutMethodsResponse)

				_, err := client.SubmitMultiItemReimbursement(ctx, MultiItemInput{
					CollectiveSlug: "policyengine",
					Description:    "Bad file",
					Items: []ExpenseItemInput{{
						Description: "Missing receipt",
						AmountCents: 1000,
						ReceiptFile: "/nonexistent/path/receipt.pdf",
					}},
				})
				Expect(err).To(MatchError(os.ErrNotExist))
				Expect(upload.ReceivedRequests()).To(BeEmpty())
			})
		})

		When("a later item's receipt file does not exist", func() {
			It("should abort after the earlier uploads without creating", func() {
				api.AppendHandlers(meResponse, payoutMethodsResponse)
				upload.AppendHandlers(uploadResponse("https://example.com/first.pdf"))

				_, err := client.SubmitMultiItemReimbursement(ctx, MultiItemInput{
					CollectiveSlug: "policyengine",
					Description:    "Partial failure",
					Items: []ExpenseItemInput{
						{
							Description: "First",
							AmountCents: 1000,
							ReceiptFile: writeReceipt("first.pdf", "pdf"),
						},
						{
							Description: "Second",
							AmountCents: 2000,
							ReceiptFile: "/nonexistent/second.pdf",
						},
					},
				})
				Expect(err).To(MatchError(os.ErrNotExist))
				// Sequential eager-fail: the first upload already happened,
				// no create call follows.
				Expect(upload.ReceivedRequests()).To(HaveLen(1))
				Expect(api.ReceivedRequests()).To(HaveLen(2))
			})
		})

		When("no items are given", func() {
			It("should fail without any network call", func() {
				_, err := client.SubmitMultiItemReimbursement(ctx, MultiItemInput{
					CollectiveSlug: "policyengine",
					Description:    "Empty",
				})
				Expect(err).To(MatchError(ContainSubstring("at least one item")))
				Expect(api.ReceivedRequests()).To(BeEmpty())
			})
		})
	})
})
