// errors/verification_errors.go
package errors

import "errors"

var (
	ErrInvalidEmail    = errors.New("invalid email address")
	ErrRateLimited     = errors.New("max verification attempts reached")
	ErrAlreadyClaimed  = errors.New("membership record already claimed")
	ErrRoleGrantFailed = errors.New("role grant failed")
)
