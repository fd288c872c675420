package wav

import "errors"

var (
	ErrNotAFile            = errors.New("not a file")
	ErrFormatChunkNotFound = errors.New("no fmt chunk found")
	ErrDataChunkNotFound   = errors.New("no data chunk found")
	ErrInvalidFormat       = errors.New("invalid fmt chunk")
	ErrReadData            = errors.New("could not read the sample data")
	ErrEndOfData           = errors.New("end of the sample data")
	ErrUnsupportedBitDepth = errors.New("more than 4 bytes per channel are not supported")
)
