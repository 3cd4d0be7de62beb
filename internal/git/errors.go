package git

import "errors"

// Diff errors
var (
	ErrBaseRequired = errors.New("base revision is required to compute diff")
	ErrHeadRequired = errors.New("head revision is required to compute diff")
	ErrInvalidPatch = errors.New("invalid patch")
)
