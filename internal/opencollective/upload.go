package opencollective

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// UploadInput describes one file to upload. Either Path or Reader must
// be set; Filename is required with Reader and defaults to the path's
// base name otherwise. Kind defaults to EXPENSE_ATTACHED_FILE.
// ContentType is detected from the filename extension, then from the
// content itself, when not given explicitly.
type UploadInput struct {
	Path        string
	Reader      io.Reader
	Filename    string
	Kind        FileKind
	ContentType string
}

// UploadFile uploads a single file through the frontend proxy endpoint
// and returns the stored file's metadata. A Path that does not exist
// fails before any network call; errors.Is(err, os.ErrNotExist) holds
// for that case.
func (c *Client) UploadFile(ctx context.Context, in UploadInput) (*UploadedFile, error) {
	data, filename, err := readUploadSource(in)
	if err != nil {
		return nil, err
	}

	kind := in.Kind
	if kind == "" {
		kind = FileKindExpenseAttachedFile
	}
	contentType := in.ContentType
	if contentType == "" {
		contentType = detectContentType(filename, data)
	}

	body, boundary, err := buildUploadBody(mutationUploadFile, kind, filename, contentType, data)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadURL, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "multipart/form-data; boundary="+boundary)
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling upload api: %w", err)
	}
	defer resp.Body.Close()

	var payload struct {
		UploadFile json.RawMessage `json:"uploadFile"`
	}
	if err := decodeResponse(resp, &payload); err != nil {
		return nil, err
	}
	return parseUploadResult(payload.UploadFile)
}

func readUploadSource(in UploadInput) ([]byte, string, error) {
	if in.Path != "" {
		if _, err := os.Stat(in.Path); err != nil {
			return nil, "", fmt.Errorf("file not found: %s: %w", in.Path, err)
		}
		data, err := os.ReadFile(in.Path)
		if err != nil {
			return nil, "", fmt.Errorf("reading file: %w", err)
		}
		filename := in.Filename
		if filename == "" {
			filename = filepath.Base(in.Path)
		}
		return data, filename, nil
	}
	if in.Reader == nil {
		return nil, "", fmt.Errorf("upload requires a path or a reader")
	}
	if in.Filename == "" {
		return nil, "", fmt.Errorf("upload from a reader requires a filename")
	}
	data, err := io.ReadAll(in.Reader)
	if err != nil {
		return nil, "", fmt.Errorf("reading upload content: %w", err)
	}
	return data, in.Filename, nil
}

// detectContentType resolves a MIME type from the filename extension,
// falling back to sniffing the content for unknown extensions.
func detectContentType(filename string, data []byte) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); ct != "" {
		return ct
	}
	return mimetype.Detect(data).String()
}

// buildUploadBody assembles a graphql-multipart-request body: an
// operations form field with the file variable nulled out, a map field
// binding form part "0" to that variable, and the file content itself.
func buildUploadBody(document string, kind FileKind, filename, contentType string, data []byte) (*bytes.Buffer, string, error) {
	operations, err := json.Marshal(map[string]any{
		"query": document,
		"variables": map[string]any{
			"files": []map[string]any{{"kind": string(kind)}},
		},
	})
	if err != nil {
		return nil, "", fmt.Errorf("marshaling operations: %w", err)
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if err := writer.WriteField("operations", string(operations)); err != nil {
		return nil, "", fmt.Errorf("writing operations field: %w", err)
	}
	if err := writer.WriteField("map", `{"0": ["variables.files.0.file"]}`); err != nil {
		return nil, "", fmt.Errorf("writing map field: %w", err)
	}

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="0"; filename=%q`, filename))
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("creating file part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", fmt.Errorf("writing file content: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("finalizing multipart body: %w", err)
	}

	return body, writer.Boundary(), nil
}

// parseUploadResult handles both response shapes the upload endpoint
// has been observed to return: a list of results (one per file) and a
// bare single result.
func parseUploadResult(raw json.RawMessage) (*UploadedFile, error) {
	type result struct {
		File UploadedFile `json:"file"`
	}

	var many []result
	if err := json.Unmarshal(raw, &many); err == nil {
		if len(many) == 0 {
			return nil, fmt.Errorf("upload returned no file")
		}
		return &many[0].File, nil
	}

	var one result
	if err := json.Unmarshal(raw, &one); err != nil {
		return nil, fmt.Errorf("decoding upload result: %w", err)
	}
	return &one.File, nil
}
