package openapi

import (
	"encoding/json"
	"strconv"

	httpclient "github.com/natserract/baiduapi/pkg/http"
)

// Category selects one of the fixed endpoint namespaces.
type Category string

const (
	CategoryRest   Category = "rest"
	CategoryFile   Category = "file"
	CategoryPublic Category = "public"
)

// Mode is the credential scheme a Client was built with.
type Mode int

const (
	// ModeSession signs every call with the session secret and talks plain HTTP.
	ModeSession Mode = iota
	// ModeAccessToken sends a bearer access token over HTTPS.
	ModeAccessToken
)

func (m Mode) String() string {
	if m == ModeAccessToken {
		return "access_token"
	}
	return "session"
}

// FileItem is a file part of an upload.
type FileItem = httpclient.FileItem

// TimestampLayout is the format of the timestamp parameter in session mode.
const TimestampLayout = "2006-01-02 15:04:05"

// ErrorResponse is the error envelope returned by the OpenAPI service.
type ErrorResponse struct {
	ErrorCode json.Number `json:"error_code"`
	ErrorMsg  string      `json:"error_msg"`
}

// IsError reports whether the envelope carries an error.
func (e ErrorResponse) IsError() bool {
	return (e.ErrorCode != "" && e.ErrorCode != "0") || e.ErrorMsg != ""
}

// Code returns the numeric error code, or 0 if absent or not an integer.
func (e ErrorResponse) Code() int {
	n, err := strconv.Atoi(e.ErrorCode.String())
	if err != nil {
		return 0
	}
	return n
}

// batchEntry describes one call inside a batch/run request.
type batchEntry struct {
	Domain      string `json:"domain"`
	HTTPMethod  string `json:"http_method"`
	RelativeURL string `json:"relative_url"`
	Params      string `json:"params"`
}
