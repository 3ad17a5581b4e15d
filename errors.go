package hxctl

import "github.com/pkg/errors"

// Sentinel errors for page operations.
var (
	ErrNoPage       = errors.New("hxctl: page required")
	ErrNoDocument   = errors.New("hxctl: document root required")
	ErrNotFound     = errors.New("hxctl: control not found")
	ErrDecodeFields = errors.New("hxctl: cannot decode control fields")
)

// IsNotFound checks if err is a not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
