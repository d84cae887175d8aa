package render

import (
	"regexp"
	"strings"
)

// TransparentPixel is served in place of an empty image source
const TransparentPixel = "data:image/gif;base64,R0lGODlhAQABAIAAAAAAAP///yH5BAEAAAAALAAAAAABAAEAAAIBRAA7"

var driveFileID = regexp.MustCompile(`drive\.google\.com/(?:file/d/|open\?id=|uc\?.*id=)([a-zA-Z0-9_-]+)`)

// DirectURL rewrites Google Drive sharing links into directly loadable image
// URLs. Other URLs are returned as they are.
func DirectURL(src string) string {
	if strings.TrimSpace(src) == "" {
		return TransparentPixel
	}
	if m := driveFileID.FindStringSubmatch(src); len(m) == 2 {
		return "https://drive.google.com/uc?export=view&id=" + m[1]
	}
	return src
}

// isImageURL reports whether a row value looks like an image source
func isImageURL(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return false
	}
	return strings.HasPrefix(v, "http") || strings.HasPrefix(v, "data:image") || strings.Contains(v, "drive.google.com")
}
