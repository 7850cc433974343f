package guidelines

import "errors"

var (
	ErrExtractFailed = errors.New("guideline extraction failed")
	ErrUnknownFormat = errors.New("unknown guideline file format")
	ErrDecodeFailed  = errors.New("guideline file could not be decoded")
)
