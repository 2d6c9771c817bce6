package formats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtension(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		want     string
	}{
		{name: "simple", filename: "photo.png", want: "png"},
		{name: "multiple dots", filename: "archive.tar.gz", want: "gz"},
		{name: "no dot", filename: "README", want: ""},
		{name: "dotfile", filename: ".bashrc", want: ""},
		{name: "trailing dot", filename: "name.", want: ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Extension(tc.filename))
		})
	}
}

func TestDetect(t *testing.T) {
	tests := []struct {
		filename string
		want     Category
		ok       bool
	}{
		{filename: "cat.JPG", want: Image, ok: true},
		{filename: "clip.mov", want: Video, ok: true},
		{filename: "song.mp3", want: Audio, ok: true},
		{filename: "notes.md", want: Document, ok: true},
		{filename: "binary.exe", ok: false},
		{filename: "noext", ok: false},
	}

	for _, tc := range tests {
		t.Run(tc.filename, func(t *testing.T) {
			got, ok := Detect(tc.filename)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRename(t *testing.T) {
	assert.Equal(t, "holiday.webp", Rename("holiday.png", "WEBP"))
	assert.Equal(t, "report.v2.pdf", Rename("report.v2.docx", "pdf"))
	assert.Equal(t, "README.txt", Rename("README", "txt"))
	assert.Equal(t, ".bashrc.txt", Rename(".bashrc", "txt"))
}

func TestMIMEType(t *testing.T) {
	assert.Equal(t, "image/jpeg", MIMEType("jpg"))
	assert.Equal(t, "image/jpeg", MIMEType("jpeg"))
	assert.Equal(t, "image/png", MIMEType(".PNG"))
	assert.Equal(t, "image/webp", MIMEType("webp"))
	assert.Equal(t, "image/svg+xml", MIMEType("svg"))
}

func TestAllowLists(t *testing.T) {
	assert.True(t, IsImageTarget("jpeg"))
	assert.True(t, IsImageTarget("svg"))
	assert.False(t, IsImageTarget("mp4"))
	assert.True(t, Allowed(Audio, "WAV"))
	assert.False(t, Allowed(Audio, "png"))

	targets := Targets(Image)
	targets[0] = "mutated"
	assert.Equal(t, "jpg", Targets(Image)[0])

	catalog := Catalog()
	assert.Len(t, catalog, 4)
	assert.Equal(t, []string{"mp4", "webm", "avi", "mov"}, catalog["video"])
}
