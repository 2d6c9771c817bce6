// Package formats holds the static target allow-lists offered to users and
// the filename helpers used to pick among them.
package formats

import "strings"

type Category string

const (
	Image    Category = "image"
	Video    Category = "video"
	Audio    Category = "audio"
	Document Category = "document"
)

// Categories in the order they are presented.
var Categories = []Category{Image, Video, Audio, Document}

var options = map[Category][]string{
	Image:    {"jpg", "png", "webp", "gif", "svg"},
	Video:    {"mp4", "webm", "avi", "mov"},
	Audio:    {"mp3", "wav", "ogg", "aac"},
	Document: {"pdf", "docx", "txt", "md", "csv"},
}

// rasterAliases are raster tokens accepted by the re-encoder on top of the
// image list.
var rasterAliases = []string{"jpeg", "bmp", "tiff"}

var mimeOverrides = map[string]string{
	"jpg": "image/jpeg",
	"svg": "image/svg+xml",
}

// Targets returns a copy of the allow-list for c.
func Targets(c Category) []string {
	return append([]string(nil), options[c]...)
}

// Catalog returns every category's allow-list keyed by category name.
func Catalog() map[string][]string {
	out := make(map[string][]string, len(options))
	for _, c := range Categories {
		out[string(c)] = Targets(c)
	}
	return out
}

// Normalize lowercases a format token and strips a leading dot.
func Normalize(token string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(token)), ".")
}

// Allowed reports whether target is in the allow-list of c.
func Allowed(c Category, target string) bool {
	return contains(options[c], Normalize(target))
}

// IsImageTarget reports whether target may be handed to the re-encoder.
func IsImageTarget(target string) bool {
	t := Normalize(target)
	return contains(options[Image], t) || contains(rasterAliases, t)
}

// MIMEType returns the MIME type an image target is published under.
func MIMEType(target string) string {
	t := Normalize(target)
	if m, ok := mimeOverrides[t]; ok {
		return m
	}
	return "image/" + t
}

// Extension returns the text after the last dot of filename. Names without a
// dot, or whose only dot is the leading one, have no extension.
func Extension(filename string) string {
	idx := strings.LastIndex(filename, ".")
	if idx <= 0 {
		return ""
	}
	return filename[idx+1:]
}

// Basename strips the last extension from filename.
func Basename(filename string) string {
	idx := strings.LastIndex(filename, ".")
	if idx <= 0 {
		return filename
	}
	return filename[:idx]
}

// Rename replaces the extension of filename with target.
func Rename(filename, target string) string {
	base := Basename(filename)
	if base == "" {
		base = "converted_file"
	}
	return base + "." + Normalize(target)
}

// Detect maps a filename to its category by extension.
func Detect(filename string) (Category, bool) {
	ext := Normalize(Extension(filename))
	if ext == "" {
		return "", false
	}
	for _, c := range Categories {
		if contains(options[c], ext) {
			return c, true
		}
	}
	return "", false
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
