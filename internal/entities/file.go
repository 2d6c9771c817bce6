package entities

// SourceFile is a user-selected upload. It is never mutated after it is built.
type SourceFile struct {
	Name     string
	MIMEType string
	Data     []byte
}

// Blob is the downloadable payload behind a transient handle.
type Blob struct {
	Filename string `json:"filename"`
	MIMEType string `json:"mime_type"`
	Data     []byte `json:"-"`
}

func (b Blob) Size() int { return len(b.Data) }

// ConvertedArtifact is the output of a real raster re-encode.
type ConvertedArtifact struct {
	Blob
	Width  int `json:"width"`
	Height int `json:"height"`
}

// RenamedFile is the output of a passthrough conversion: the original bytes
// under the requested extension.
type RenamedFile struct {
	Blob
}
