package transfer

import "strings"

// formatMIME maps asset file extensions to MIME types, used when the source
// response carries no Content-Type header.
var formatMIME = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
	"avif": "image/avif",
	"svg":  "image/svg+xml",
	"bmp":  "image/bmp",
	"ico":  "image/x-icon",
	"tif":  "image/tiff",
	"tiff": "image/tiff",
	"heic": "image/heic",

	"mp4":  "video/mp4",
	"webm": "video/webm",
	"mov":  "video/quicktime",
	"avi":  "video/x-msvideo",
	"mkv":  "video/x-matroska",

	"mp3": "audio/mpeg",
	"wav": "audio/wav",
	"ogg": "audio/ogg",

	"pdf": "application/pdf",
	"zip": "application/zip",
	"txt": "text/plain",
}

const defaultMIME = "application/octet-stream"

// mimeForFormat resolves the MIME type for a file extension, falling back to
// application/octet-stream.
func mimeForFormat(format string) string {
	if mime, ok := formatMIME[strings.ToLower(format)]; ok {
		return mime
	}
	return defaultMIME
}
