package wechat

import (
	"errors"
	"fmt"
)

// ErrMissingCode reports a callback that carried no authorization code.
// Recoverable: the caller can restart the request phase.
var ErrMissingCode = errors.New("wechat: no code received")

// ProviderError is a rejection reported by the identity provider itself
// (an error body instead of an access token). Surfaced verbatim.
type ProviderError struct {
	Code        string
	Description string
}

func (e *ProviderError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("wechat: provider error %s: %s", e.Code, e.Description)
	}
	return fmt.Sprintf("wechat: provider error %s", e.Code)
}

// TransportError is a network-level failure: timeout, connection refused,
// or a non-2xx response without a parseable error body. Never retried here;
// retry policy belongs to the injected HTTP client.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("wechat: transport failure during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DataInvalidError reports a user-info response that could not be parsed
// or lacked the expected shape.
type DataInvalidError struct {
	Reason string
}

func (e *DataInvalidError) Error() string {
	return "wechat: invalid user data: " + e.Reason
}
