package processor

import "errors"

var (
	// ErrInvalidInput is returned when the declared type is not an image or
	// the target token is not in the allow-list.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDecode is returned when the source bytes are not a readable raster image.
	ErrDecode = errors.New("decode failed")

	// ErrEncode is returned when the target format cannot be produced.
	ErrEncode = errors.New("encode failed")
)
