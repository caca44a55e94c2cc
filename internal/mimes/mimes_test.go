package mimes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromFilename(t *testing.T) {
	var tests = []struct {
		filename string
		expected string
	}{
		{"post.html", "text/html; charset=utf-8"},
		{"POST.HTM", "text/html; charset=utf-8"},
		{"notes.md", "text/markdown; charset=utf-8"},
		{"paper.pdf", "application/pdf"},
		{"book.epub", "application/epub+zip"},
		{"episode.mp3", "audio/mpeg"},
		{"episode.m4a", "audio/mp4"},
		{"talk.mp4", "video/mp4"},
		{"dir/readme", "application/octet-stream"},
		{"data.wtf", "application/octet-stream"},
		{"image.png", "image/png"},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			resp := FromFilename(tt.filename)
			assert.Equal(t, tt.expected, resp)
		})
	}
}
