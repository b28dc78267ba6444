// errors/store_errors.go
package errors

import "errors"

var (
	ErrStoreUnavailable = errors.New("record store unavailable")
	ErrRecordNotFound   = errors.New("membership record not found")
)
