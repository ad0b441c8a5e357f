package scanning

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	"image/png"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
)

// expenseScanPrompt is the shared prompt used by all vision providers.
const expenseScanPrompt = `You are analyzing a receipt or invoice for an expense reimbursement. Carefully read all text in the image and extract the following information:

1. **Description**: A short expense description starting with the merchant or vendor name, e.g. "United Airlines - SFO to LHR flight" or "AWS - cloud hosting".

2. **Date**: The transaction or invoice date, converted to ISO 8601 format (YYYY-MM-DD). Common source formats: MM/DD/YYYY, DD/MM/YYYY, or written dates.

3. **Total Amount**: The final total or amount due, usually labeled "TOTAL", "Amount Due", or "Grand Total". Extract only the numeric value (e.g., 42.75 for $42.75).

Return ONLY valid JSON in this exact format:
{
  "description": "Merchant - what was purchased",
  "date": "YYYY-MM-DD",
  "amount": 0.00
}

Important:
- The description should start with the actual merchant/vendor name from the receipt
- The date must be in YYYY-MM-DD format
- The amount must be a number (not a string), in major currency units
- If you cannot find a field, use null for that field
- Do not include any text before or after the JSON
- Do not use markdown code blocks`

// pdfToPNG rasterizes the first page of a PDF. Receipts and invoices
// are almost always single page.
func pdfToPNG(pdfData []byte) ([]byte, error) {
	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// imageToPNG re-encodes any supported image format as PNG. HEIC needs
// its own decoder: phone cameras default to it and Go's image package
// has no support.
func imageToPNG(imageData []byte, mimeType string) ([]byte, error) {
	var img image.Image
	var err error

	if isHEIC(imageData, mimeType) {
		img, err = heic.Decode(bytes.NewReader(imageData))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
	} else {
		img, _, err = image.Decode(bytes.NewReader(imageData))
		if err != nil {
			return nil, fmt.Errorf("decoding image (supported: JPEG, PNG, GIF, HEIC, PDF): %w", err)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// isHEIC reports whether the data or MIME type indicates HEIC/HEIF.
// HEIC containers carry an ftyp box at offset 4 with a heif-family brand.
func isHEIC(data []byte, mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif") {
		return true
	}
	if len(data) >= 12 && string(data[4:8]) == "ftyp" {
		switch string(data[8:12]) {
		case "heic", "heif", "mif1", "msf1":
			return true
		}
	}
	return false
}

// normalizeImage converts receipt data to PNG regardless of source
// format. The vision providers only ever see PNG.
func normalizeImage(data []byte, contentType string) ([]byte, error) {
	mimeType := strings.ToLower(strings.TrimSpace(contentType))
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	if mimeType == "application/pdf" {
		return pdfToPNG(data)
	}
	if mimeType == "image/png" && !isHEIC(data, mimeType) {
		return data, nil
	}
	return imageToPNG(data, mimeType)
}
