package opencollective

import (
	"errors"
	"fmt"
)

// ErrNoPayoutMethod is returned by the submit flows when the payee has
// no saved payout method and none was given explicitly.
var ErrNoPayoutMethod = errors.New("no payout method found for payee")

// TransportError is a non-2xx HTTP response from the API.
type TransportError struct {
	StatusCode int
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("api request failed with status %d", e.StatusCode)
}

// APIError is a GraphQL-level error. Only the first message from the
// errors array is carried; the rest are discarded.
type APIError struct {
	Message string
}

func (e *APIError) Error() string {
	return "api error: " + e.Message
}
