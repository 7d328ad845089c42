package http

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"strings"

	"github.com/google/uuid"
)

// FileItem is a single file part of a multipart upload.
type FileItem struct {
	FileName string
	MimeType string
	Content  []byte
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// buildMultipart encodes params as text parts followed by files as file parts,
// each group in key order. Text parts with an empty value are kept.
func buildMultipart(params map[string]string, files map[string]FileItem) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.SetBoundary(uuid.NewString()); err != nil {
		return nil, "", fmt.Errorf("failed to set multipart boundary: %w", err)
	}

	for _, k := range sortedKeys(params) {
		if k == "" {
			continue
		}
		if err := w.WriteField(k, params[k]); err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", k, err)
		}
	}

	for _, k := range sortedKeys(files) {
		item := files[k]
		mimeType := item.MimeType
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			quoteEscaper.Replace(k), quoteEscaper.Replace(item.FileName)))
		h.Set("Content-Type", mimeType)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create file part %s: %w", k, err)
		}
		if _, err := part.Write(item.Content); err != nil {
			return nil, "", fmt.Errorf("failed to write file part %s: %w", k, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart body: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
