package opencollective

import (
	"bytes"
	"context"
	"net/http"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

var _ = Describe("UploadFile", func() {
	var (
		api    *ghttp.Server
		upload *ghttp.Server
		client *Client
		ctx    context.Context
	)

	uploadResponse := func(id, url, name, mimeType string, size int) map[string]any {
		return map[string]any{
			"data": map[string]any{
				"uploadFile": []map[string]any{
					{
						"file": map[string]any{
							"id":   id,
							"url":  url,
							"name": name,
							"type": mimeType,
							"size": size,
						},
					},
				},
			},
		}
	}

	BeforeEach(func() {
		api = ghttp.NewServer()
		upload = ghttp.NewServer()
		client = newTestClient(api, upload)
		ctx = context.Background()
	})

	AfterEach(func() {
		api.Close()
		upload.Close()
	})

	When("uploading from a file path", func() {
		var (
			body []byte
			path string
		)

		BeforeEach(func() {
			path = filepath.Join(GinkgoT().TempDir(), "test.pdf")
			Expect(os.WriteFile(path, []byte("test pdf content"), 0644)).To(Succeed())

			upload.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest("POST", "/"),
				ghttp.VerifyHeaderKV("Authorization", "Bearer test_token"),
				captureBody(&body),
				ghttp.RespondWithJSONEncoded(http.StatusOK, uploadResponse(
					"file-abc123",
					"https://opencollective-production.s3.us-west-1.amazonaws.com/abc123.pdf",
					"test.pdf", "application/pdf", 16,
				)),
			))
		})

		It("should return the stored file metadata", func() {
			result, err := client.UploadFile(ctx, UploadInput{Path: path})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.ID).To(Equal("file-abc123"))
			Expect(result.URL).To(Equal("https://opencollective-production.s3.us-west-1.amazonaws.com/abc123.pdf"))
		})

		It("should send a multipart body with operations, map, and the default kind", func() {
			_, err := client.UploadFile(ctx, UploadInput{Path: path})
			Expect(err).NotTo(HaveOccurred())
			Expect(bytes.Contains(body, []byte("operations"))).To(BeTrue())
			Expect(bytes.Contains(body, []byte(`variables.files.0.file`))).To(BeTrue())
			Expect(bytes.Contains(body, []byte("EXPENSE_ATTACHED_FILE"))).To(BeTrue())
			Expect(bytes.Contains(body, []byte("application/pdf"))).To(BeTrue())
		})

		It("should not touch the primary API endpoint", func() {
			_, err := client.UploadFile(ctx, UploadInput{Path: path})
			Expect(err).NotTo(HaveOccurred())
			Expect(api.ReceivedRequests()).To(BeEmpty())
			Expect(upload.ReceivedRequests()).To(HaveLen(1))
		})
	})

	When("uploading from a reader", func() {
		var body []byte

		BeforeEach(func() {
			upload.AppendHandlers(ghttp.CombineHandlers(
				captureBody(&body),
				ghttp.RespondWithJSONEncoded(http.StatusOK, uploadResponse(
					"file-def456",
					"https://opencollective-production.s3.us-west-1.amazonaws.com/def456.png",
					"receipt.png", "image/png", 18,
				)),
			))
		})

		It("should send the explicit kind and the extension-derived content type", func() {
			result, err := client.UploadFile(ctx, UploadInput{
				Reader:   bytes.NewReader([]byte("test image content")),
				Filename: "receipt.png",
				Kind:     FileKindExpenseItem,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Name).To(Equal("receipt.png"))
			Expect(bytes.Contains(body, []byte("EXPENSE_ITEM"))).To(BeTrue())
			Expect(bytes.Contains(body, []byte("image/png"))).To(BeTrue())
		})

		It("should require a filename", func() {
			_, err := client.UploadFile(ctx, UploadInput{
				Reader: bytes.NewReader([]byte("content")),
			})
			Expect(err).To(MatchError(ContainSubstring("requires a filename")))
			Expect(upload.ReceivedRequests()).To(BeEmpty())
		})
	})

	When("uploading with the invoice kind", func() {
		It("should carry EXPENSE_INVOICE in the body", func() {
			var body []byte
			upload.AppendHandlers(ghttp.CombineHandlers(
				captureBody(&body),
				ghttp.RespondWithJSONEncoded(http.StatusOK, uploadResponse(
					"file-ghi789",
					"https://opencollective-production.s3.us-west-1.amazonaws.com/ghi789.pdf",
					"invoice.pdf", "application/pdf", 20,
				)),
			))

			path := filepath.Join(GinkgoT().TempDir(), "invoice.pdf")
			Expect(os.WriteFile(path, []byte("test invoice content"), 0644)).To(Succeed())

			_, err := client.UploadFile(ctx, UploadInput{Path: path, Kind: FileKindExpenseInvoice})
			Expect(err).NotTo(HaveOccurred())
			Expect(bytes.Contains(body, []byte("EXPENSE_INVOICE"))).To(BeTrue())
		})
	})

	When("the local file does not exist", func() {
		It("should fail before any network call", func() {
			_, err := client.UploadFile(ctx, UploadInput{Path: "/nonexistent/path/to/file.pdf"})
			Expect(err).To(MatchError(os.ErrNotExist))
			Expect(err.Error()).To(ContainSubstring("file not found"))
			Expect(upload.ReceivedRequests()).To(BeEmpty())
			Expect(api.ReceivedRequests()).To(BeEmpty())
		})
	})

	When("the upload endpoint returns a GraphQL error", func() {
		It("should surface the upstream message", func() {
			upload.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
				"errors": []map[string]any{
					{"message": "Invalid file type", "extensions": map[string]any{"code": "BAD_REQUEST"}},
				},
			}))

			_, err := client.UploadFile(ctx, UploadInput{
				Reader:   bytes.NewReader([]byte("test content")),
				Filename: "test.txt",
			})
			Expect(err).To(MatchError(ContainSubstring("Invalid file type")))
		})
	})

	When("the upload result is a single object instead of a list", func() {
		It("should still parse the file metadata", func() {
			upload.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
				"data": map[string]any{
					"uploadFile": map[string]any{
						"file": map[string]any{
							"id":   "file-1",
							"url":  "https://example.com/file.pdf",
							"name": "file.pdf",
							"type": "application/pdf",
							"size": 10,
						},
					},
				},
			}))

			result, err := client.UploadFile(ctx, UploadInput{
				Reader:   bytes.NewReader([]byte("pdf")),
				Filename: "file.pdf",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.URL).To(Equal("https://example.com/file.pdf"))
		})
	})

	Describe("detectContentType", func() {
		It("should prefer the filename extension", func() {
			Expect(detectContentType("image.png", []byte("not really png"))).To(Equal("image/png"))
		})

		It("should sniff the content for unknown extensions", func() {
			pdfHeader := []byte("%PDF-1.4\n%fake")
			Expect(detectContentType("receipt.unknownext", pdfHeader)).To(Equal("application/pdf"))
		})
	})
})
