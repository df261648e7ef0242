package llm

import (
	"encoding/base64"
	"strings"

	"github.com/joseph-ayodele/network-extractor/constants"
)

// DataURL encodes raw bytes as a base64 data URL.
func DataURL(mimeType string, data []byte) string {
	mt := constants.NormalizeMIME(mimeType)
	if mt == "" {
		mt = constants.MIMEOctetStream
	}
	return "data:" + mt + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// IsImage reports whether mimeType is an image/* type.
func IsImage(mimeType string) bool {
	return strings.HasPrefix(constants.NormalizeMIME(mimeType), "image/")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
