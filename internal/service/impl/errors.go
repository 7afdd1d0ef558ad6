package impl

import "errors"

var (
	ErrEmptyPassword   = errors.New("empty password")
	ErrMalformedDigest = errors.New("malformed password digest")
	ErrUnsupportedAlgo = errors.New("unsupported password algorithm")
)

const (
	minPasswordLength = 8
	maxUsernameLength = 64
)
