// ABOUTME: MIME type detection from file extensions
// ABOUTME: Consults the platform table first, then a fixed fallback map
package reader

import (
	"mime"
	"path/filepath"
	"strings"
)

// DefaultMIMEType is reported for paths whose extension is missing or
// unrecognized.
const DefaultMIMEType = "application/octet-stream"

// mimeFallback covers extensions the platform table may lack, matching the
// formats provenance-bearing assets commonly use.
var mimeFallback = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".tiff": "image/tiff",
	".heic": "image/heic",
	".avif": "image/avif",
	".mp4":  "video/mp4",
	".json": "application/json",
}

// DetectMIME returns the MIME type for a path based on its extension alone.
// Asset content is never sniffed.
func DetectMIME(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return DefaultMIMEType
	}
	if detected := mime.TypeByExtension(ext); detected != "" {
		return detected
	}
	if fallback, ok := mimeFallback[ext]; ok {
		return fallback
	}
	return DefaultMIMEType
}
