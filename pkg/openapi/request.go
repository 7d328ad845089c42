package openapi

import (
	"net/http"
	"strings"
	"time"
)

// IsGet reports whether method selects a GET. Empty and any case of "GET"
// do; every other value selects POST.
func IsGet(method string) bool {
	return method == "" || strings.EqualFold(method, http.MethodGet)
}

// NormalizeMethod maps method to http.MethodGet or http.MethodPost.
func NormalizeMethod(method string) string {
	if IsGet(method) {
		return http.MethodGet
	}
	return http.MethodPost
}

// requestBuilder turns an api path and user params into the URL and final
// parameter set for one call. It holds only immutable credentials.
type requestBuilder struct {
	mode          Mode
	host          string
	accessToken   string
	sessionKey    string
	sessionSecret string
	now           func() time.Time
}

// build returns the call URL and the parameters to send.
//
// Access-token mode adds access_token. Session mode adds session_key, a local
// timestamp and a sign computed over those two only. User params are copied
// last and win over the system keys on collision.
func (b *requestBuilder) build(apiPath string, category Category, userParams map[string]string) (string, map[string]string, error) {
	url, err := endpointURL(schemeFor(b.mode), b.host, category, apiPath)
	if err != nil {
		return "", nil, err
	}

	params := make(map[string]string, len(userParams)+3)
	switch b.mode {
	case ModeAccessToken:
		params["access_token"] = b.accessToken
	default:
		params["session_key"] = b.sessionKey
		params["timestamp"] = b.now().Format(TimestampLayout)
		sign, err := Sign(params, b.sessionSecret)
		if err != nil {
			return "", nil, err
		}
		params[signParam] = sign
	}

	for k, v := range userParams {
		params[k] = v
	}
	return url, params, nil
}
