package audio

import (
	"net/http"
	"path/filepath"
	"strings"
)

var mimeByExt = map[string]string{
	".flac": "audio/flac",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".aac":  "audio/aac",
	".m4a":  "audio/mp4",
	".ogg":  "audio/ogg",
	".oga":  "audio/ogg",
	".aiff": "audio/aiff",
	".aif":  "audio/aiff",
}

// IsAudioFile reports whether name carries one of the accepted audio extensions.
func IsAudioFile(name string) bool {
	_, ok := mimeByExt[strings.ToLower(filepath.Ext(name))]
	return ok
}

// AllowedExtensions lists the accepted audio extensions for error messages.
func AllowedExtensions() string {
	return "flac, mp3, wav, aac, m4a, ogg, aiff"
}

// MimeType picks a content type for an uploaded file. The extension wins for audio;
// otherwise the first bytes are sniffed.
func MimeType(name string, head []byte) string {
	if mt, ok := mimeByExt[strings.ToLower(filepath.Ext(name))]; ok {
		return mt
	}
	if len(head) > 0 {
		return http.DetectContentType(head)
	}
	return "application/octet-stream"
}
