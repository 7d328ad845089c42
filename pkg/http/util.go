package http

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// BuildURL appends queryParams to the query string of rawURL, keeping any
// query already present.
func BuildURL(rawURL string, queryParams map[string]string) (string, error) {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("error parsing URL: %w", err)
	}

	encoded := EncodeForm(queryParams)
	if encoded == "" {
		return parsedURL.String(), nil
	}
	if parsedURL.RawQuery == "" {
		parsedURL.RawQuery = encoded
	} else {
		parsedURL.RawQuery = parsedURL.RawQuery + "&" + encoded
	}

	return parsedURL.String(), nil
}

// EncodeForm url-encodes params in key order. Pairs with an empty key or an
// empty value are dropped.
func EncodeForm(params map[string]string) string {
	form := url.Values{}
	for k, v := range params {
		if k == "" || v == "" {
			continue
		}
		form.Set(k, v)
	}
	return form.Encode()
}

// redactURL strips the query string so credentials never reach the logs.
func redactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		if i := strings.IndexByte(rawURL, '?'); i >= 0 {
			return rawURL[:i]
		}
		return rawURL
	}
	u.RawQuery = ""
	u.User = nil
	return u.String()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
