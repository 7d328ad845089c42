package openapi

import (
	"fmt"
	"strings"
)

const apiVersion = "2.0"

func validCategory(category Category) error {
	switch category {
	case CategoryRest, CategoryFile, CategoryPublic:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownCategory, category)
}

// relativeURL is the path of apiPath under category, e.g. /rest/2.0/user/info.
func relativeURL(category Category, apiPath string) string {
	return fmt.Sprintf("/%s/%s/%s", category, apiVersion, strings.TrimPrefix(apiPath, "/"))
}

// endpointURL builds the absolute URL for one call.
func endpointURL(scheme, host string, category Category, apiPath string) (string, error) {
	if err := validCategory(category); err != nil {
		return "", err
	}
	return scheme + "://" + host + relativeURL(category, apiPath), nil
}

// batchURL is the batch/run endpoint. It only exists over HTTPS.
func batchURL(host string) string {
	return "https://" + host + "/batch/run"
}

func schemeFor(mode Mode) string {
	if mode == ModeAccessToken {
		return "https"
	}
	return "http"
}
