// Package extract turns uploaded documents into plain text.
package extract

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	pdf "github.com/ledongthuc/pdf"

	appErrors "github.com/noah-isme/studygen-api/pkg/errors"
)

// Placeholder is stored as the document text when extraction yields nothing.
const Placeholder = "[No text could be extracted from this document.]"

var textExtensions = map[string]struct{}{
	".txt":      {},
	".md":       {},
	".markdown": {},
	".csv":      {},
}

// Text sniffs data and returns its text content with whitespace collapsed.
// Failures are reported as ErrExtraction.
func Text(fileName string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", appErrors.Clone(appErrors.ErrExtraction, fmt.Sprintf("%s is empty", fileName))
	}

	mt := mimetype.Detect(data)
	switch {
	case mt.Is("application/pdf"):
		return fromPDF(data)
	case isText(mt), hasTextExtension(fileName) && !isBinary(mt):
		return collapseWhitespace(string(data)), nil
	default:
		return "", appErrors.Clone(appErrors.ErrExtraction, fmt.Sprintf("unsupported file type %s for %s", mt.String(), fileName))
	}
}

// DetectType reports the sniffed MIME type of data.
func DetectType(data []byte) string {
	return mimetype.Detect(data).String()
}

func fromPDF(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", appErrors.WrapAs(err, appErrors.ErrExtraction, "pdf reader failed")
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", appErrors.WrapAs(err, appErrors.ErrExtraction, "pdf plaintext failed")
	}
	b, err := io.ReadAll(plain)
	if err != nil {
		return "", appErrors.WrapAs(err, appErrors.ErrExtraction, "pdf read failed")
	}
	return collapseWhitespace(string(b)), nil
}

func isText(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

func isBinary(mt *mimetype.MIME) bool {
	name := mt.String()
	return strings.HasPrefix(name, "image/") ||
		strings.HasPrefix(name, "audio/") ||
		strings.HasPrefix(name, "video/") ||
		mt.Is("application/zip")
}

func hasTextExtension(name string) bool {
	_, ok := textExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

func collapseWhitespace(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.Join(strings.Fields(s), " ")
}
