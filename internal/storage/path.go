package storage

import (
	"fmt"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// URLPrefix is where every stored image is served from.
const URLPrefix = "/static/uploads/"

// AllowedExtensions are the image types accepted for upload.
var AllowedExtensions = map[string]bool{"png": true, "jpg": true, "jpeg": true, "gif": true, "jfif": true}

// CanonicalImagePath maps any stored or client supplied image reference
// (absolute URL, api/uploads/x.png, bare file name) to /static/uploads/<base>.
// Empty input stays empty.
func CanonicalImagePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	base := path.Base(strings.ReplaceAll(p, "\\", "/"))
	if base == "." || base == "/" {
		return ""
	}
	return URLPrefix + base
}

// Extension returns the lower-case extension of name without the dot.
func Extension(name string) string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
}

// Allowed reports whether name has an accepted image extension.
func Allowed(name string) bool {
	return AllowedExtensions[Extension(name)]
}

// uniqueName builds "<base>_<yyyymmdd_hhmmss>_<8 hex>.<ext>" from the
// client's file name.
func uniqueName(original string, now time.Time) string {
	ext := Extension(original)
	if ext == "" {
		ext = "bin"
	}
	base := sanitizeFileBase(strings.TrimSuffix(path.Base(original), path.Ext(original)))
	if base == "" {
		base = "image"
	}
	return fmt.Sprintf("%s_%s_%s.%s", base, now.UTC().Format("20060102_150405"), uuid.NewString()[:8], ext)
}

// validName rejects anything that could escape the upload directory.
func validName(name string) bool {
	return name != "" && name == path.Base(name) && !strings.Contains(name, "\\") && !strings.HasPrefix(name, ".")
}

func contentType(name string) string {
	if t := mime.TypeByExtension("." + Extension(name)); t != "" {
		return t
	}
	return "application/octet-stream"
}

func sanitizeFileBase(value string) string {
	value = strings.ReplaceAll(strings.TrimSpace(value), " ", "-")
	b := strings.Builder{}
	b.Grow(len(value))
	for i := 0; i < len(value); i++ {
		ch := value[i]
		switch {
		case ch >= 'a' && ch <= 'z', ch >= '0' && ch <= '9', ch == '-', ch == '_':
			b.WriteByte(ch)
		case ch >= 'A' && ch <= 'Z':
			b.WriteByte(ch + 32)
		}
	}
	return strings.Trim(b.String(), "-_")
}
