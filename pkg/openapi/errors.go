package openapi

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrBatchRequiresAccessToken is returned by BatchCall on session-mode clients.
	ErrBatchRequiresAccessToken = errors.New("batch/run requires an access-token client")

	// ErrUnknownCategory is returned for categories other than rest, file and public.
	ErrUnknownCategory = errors.New("unknown api category")
)

// TransportError wraps a network, I/O or non-2xx failure reported by the
// Transport.
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// RemoteAPIError means the service answered but the body signals an
// application error. Code and Message are filled when the body carries the
// error_code/error_msg envelope.
type RemoteAPIError struct {
	Body    string
	Code    int
	Message string
}

func newRemoteAPIError(body string) *RemoteAPIError {
	e := &RemoteAPIError{Body: body}
	var envelope ErrorResponse
	if err := json.Unmarshal([]byte(body), &envelope); err == nil {
		e.Code = envelope.Code()
		e.Message = envelope.ErrorMsg
	}
	return e
}

func (e *RemoteAPIError) Error() string {
	if e.Code != 0 || e.Message != "" {
		return fmt.Sprintf("openapi error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("openapi error response: %s", e.Body)
}

// SignatureError is returned when a request could not be signed. The call is
// aborted; nothing is sent.
type SignatureError struct {
	Err error
}

func (e *SignatureError) Error() string {
	return fmt.Sprintf("failed to sign request: %v", e.Err)
}

func (e *SignatureError) Unwrap() error {
	return e.Err
}
