package http

import (
	"fmt"
	"mime"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
)

// decodeBody converts raw into UTF-8 according to the charset parameter of
// contentType. Bodies without a charset are assumed to be UTF-8 already.
func decodeBody(contentType string, raw []byte) ([]byte, error) {
	if contentType == "" {
		return raw, nil
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return raw, nil
	}
	charset := strings.TrimSpace(params["charset"])
	if charset == "" {
		return raw, nil
	}
	switch strings.ToLower(charset) {
	case "utf-8", "utf8":
		return raw, nil
	}

	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", charset, err)
	}
	decoded, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s body: %w", charset, err)
	}
	return decoded, nil
}
