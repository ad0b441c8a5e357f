package opencollective

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// graphqlError is a single entry of a GraphQL errors array.
type graphqlError struct {
	Message string `json:"message"`
}

// graphqlResponse is the envelope every GraphQL response arrives in.
type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphqlError  `json:"errors"`
}

// execute POSTs a GraphQL document with its variables to the given
// endpoint and unmarshals the data field into out. Each call is a
// single best-effort attempt: no retries, no backoff.
func (c *Client) execute(ctx context.Context, endpoint, document string, variables map[string]any, out any) error {
	if variables == nil {
		variables = map[string]any{}
	}
	body, err := json.Marshal(map[string]any{
		"query":     document,
		"variables": variables,
	})
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling api: %w", err)
	}
	defer resp.Body.Close()

	return decodeResponse(resp, out)
}

// decodeResponse maps an HTTP response onto the error taxonomy: non-2xx
// status becomes a TransportError, a non-empty errors array becomes an
// APIError carrying the first message, otherwise the data field is
// unmarshaled into out. A missing data field leaves out at its zero
// value.
func decodeResponse(resp *http.Response, out any) error {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &TransportError{StatusCode: resp.StatusCode}
	}

	var envelope graphqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return &APIError{Message: envelope.Errors[0].Message}
	}
	if out == nil || len(envelope.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("decoding data: %w", err)
	}
	return nil
}
