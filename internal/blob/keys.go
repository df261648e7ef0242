package blob

import (
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const anonymousOwner = "anonymous"

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SafeFilename reduces name to a portable ASCII basename.
func SafeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeName.ReplaceAllString(name, "")
	name = strings.Trim(name, "._")
	if name == "" {
		return "upload"
	}
	return name
}

func ownerSegment(owner string) string {
	if owner == "" {
		return anonymousOwner
	}
	return SafeFilename(owner)
}

// SourceKey returns a fresh upload path. The random token keeps keys unique
// even when the same file is submitted twice.
func SourceKey(owner, filename string) string {
	return path.Join("uploads", ownerSegment(owner), uuid.NewString()+"_"+SafeFilename(filename))
}

// ResultKey is the fixed location of a job's merged result.
func ResultKey(owner, jobID string) string {
	return path.Join(ownerSegment(owner), "processed", jobID+"_result.json")
}

// ResultFilename suggests a download name derived from the uploaded file.
func ResultFilename(originalFilename, ext string) string {
	stem := SafeFilename(originalFilename)
	if i := strings.LastIndex(stem, "."); i > 0 {
		stem = stem[:i]
	}
	return stem + "_result." + strings.TrimPrefix(ext, ".")
}
