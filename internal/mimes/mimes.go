package mimes

import (
	"mime"
	"path"
	"strings"
)

const (
	TextHTML     = "text/html; charset=utf-8"
	TextMarkdown = "text/markdown; charset=utf-8"
	TextPlain    = "text/plain; charset=utf-8"
	AppPDF       = "application/pdf"
	AppEPUB      = "application/epub+zip"
	AudioMP3     = "audio/mpeg"
	AudioMP4     = "audio/mp4"
	VideoMP4     = "video/mp4"
	Binary       = "application/octet-stream"
)

// FromFilename guesses the content type of a protected object from its name.
func FromFilename(name string) string {
	ext := strings.ToLower(path.Ext(name))
	switch ext {
	case ".html", ".htm":
		return TextHTML
	case ".md", ".markdown":
		return TextMarkdown
	case ".txt":
		return TextPlain
	case ".pdf":
		return AppPDF
	case ".epub":
		return AppEPUB
	case ".mp3":
		return AudioMP3
	case ".m4a":
		return AudioMP4
	case ".mp4":
		return VideoMP4
	case "":
		return Binary
	}

	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return Binary
}
