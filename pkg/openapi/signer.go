package openapi

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sort"
	"unicode/utf8"
)

const signParam = "sign"

// Sign returns the lower-case hex MD5 of the params sorted by key and
// concatenated as k1=v1k2=v2..., followed by secret. The sign parameter itself
// is never part of the payload.
//
// Session-mode calls only sign session_key and timestamp; user parameters
// travel unsigned, so the signature does not protect them from tampering.
func Sign(params map[string]string, secret string) (string, error) {
	if !utf8.ValidString(secret) {
		return "", &SignatureError{Err: errors.New("secret is not valid UTF-8")}
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		if k == signParam {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := md5.New()
	for _, k := range keys {
		v := params[k]
		if !utf8.ValidString(k) || !utf8.ValidString(v) {
			return "", &SignatureError{Err: fmt.Errorf("parameter %q is not valid UTF-8", k)}
		}
		_, _ = io.WriteString(h, k)
		_, _ = io.WriteString(h, "=")
		_, _ = io.WriteString(h, v)
	}
	_, _ = io.WriteString(h, secret)

	return hex.EncodeToString(h.Sum(nil)), nil
}
