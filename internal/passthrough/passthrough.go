// Package passthrough implements the demo conversion: no transcoding, the
// original bytes are handed back under the requested extension.
package passthrough

import (
	"errors"
	"fmt"

	"github.com/trunov/convo/internal/entities"
	"github.com/trunov/convo/internal/formats"
)

var ErrUnsupported = errors.New("unsupported file type")

// Rename returns src's bytes and MIME type named <base>.<target>. The target
// must be offered for the category the filename's extension belongs to.
func Rename(src entities.SourceFile, target string) (entities.RenamedFile, error) {
	category, ok := formats.Detect(src.Name)
	if !ok {
		return entities.RenamedFile{}, fmt.Errorf("%w: %q", ErrUnsupported, src.Name)
	}
	if !formats.Allowed(category, target) {
		return entities.RenamedFile{}, fmt.Errorf("%w: %s files cannot be converted to %q", ErrUnsupported, category, target)
	}

	data := make([]byte, len(src.Data))
	copy(data, src.Data)

	return entities.RenamedFile{
		Blob: entities.Blob{
			Filename: formats.Rename(src.Name, target),
			MIMEType: src.MIMEType,
			Data:     data,
		},
	}, nil
}
