package constants

import (
	"mime"
	"path/filepath"
	"strings"
	"time"
)

const (
	// DefaultWindowSize is the number of spreadsheet rows sent per engine call.
	DefaultWindowSize = 200
	// DefaultStaleAfter is how long a processing job may go without a status
	// write before it is treated as abandoned.
	DefaultStaleAfter = 45 * time.Minute
	// DefaultMaxUploadBytes caps a single submitted file.
	DefaultMaxUploadBytes int64 = 100 << 20

	MIMEXLSX        = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MIMEXLS         = "application/vnd.ms-excel"
	MIMECSV         = "text/csv"
	MIMEPDF         = "application/pdf"
	MIMEDOCX        = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MIMEPNG         = "image/png"
	MIMEJPEG        = "image/jpeg"
	MIMEJSON        = "application/json"
	MIMEOctetStream = "application/octet-stream"
)

// AllowedExtensions holds the file extensions accepted at submission.
var AllowedExtensions = map[string]string{
	"xlsx": MIMEXLSX,
	"xls":  MIMEXLS,
	"csv":  MIMECSV,
	"pdf":  MIMEPDF,
	"docx": MIMEDOCX,
	"png":  MIMEPNG,
	"jpg":  MIMEJPEG,
	"jpeg": MIMEJPEG,
}

var tabularTypes = map[string]struct{}{
	MIMEXLSX: {},
	MIMEXLS:  {},
	MIMECSV:  {},
}

// IsWordDocument reports whether a stored blob is a .docx file, whose text is
// unpacked before it reaches the engine.
func IsWordDocument(contentType string) bool {
	return NormalizeMIME(contentType) == MIMEDOCX
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// NormalizeMIME drops parameters (charset etc.) and lowercases the media type.
func NormalizeMIME(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mt
}

// IsTabular reports whether a stored blob content type goes through the batch path.
func IsTabular(contentType string) bool {
	_, ok := tabularTypes[NormalizeMIME(contentType)]
	return ok
}

// ResolveContentType returns the stated type unless it is missing or generic,
// in which case the type is inferred from the filename extension.
func ResolveContentType(stated, filename string) string {
	mt := NormalizeMIME(stated)
	if mt != "" && mt != MIMEOctetStream {
		return mt
	}
	ext := NormalizeExt(filepath.Ext(filename))
	if t, ok := AllowedExtensions[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension("." + ext); t != "" {
		return NormalizeMIME(t)
	}
	return MIMEOctetStream
}
