package passthrough

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trunov/convo/internal/entities"
)

func TestRename(t *testing.T) {
	src := entities.SourceFile{Name: "talk.final.mp4", MIMEType: "video/mp4", Data: []byte{1, 2, 3}}

	out, err := Rename(src, "webm")
	require.NoError(t, err)

	assert.Equal(t, "talk.final.webm", out.Filename)
	assert.Equal(t, "video/mp4", out.MIMEType)
	assert.Equal(t, []byte{1, 2, 3}, out.Data)

	src.Data[0] = 9
	assert.Equal(t, byte(1), out.Data[0])
}

func TestRename_Errors(t *testing.T) {
	tests := []struct {
		name   string
		src    entities.SourceFile
		target string
	}{
		{name: "unknown extension", src: entities.SourceFile{Name: "tool.exe"}, target: "pdf"},
		{name: "no extension", src: entities.SourceFile{Name: "Makefile"}, target: "txt"},
		{name: "cross category", src: entities.SourceFile{Name: "song.mp3"}, target: "png"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Rename(tc.src, tc.target)
			assert.ErrorIs(t, err, ErrUnsupported)
		})
	}
}
