// errors/chat_errors.go
package errors

import "errors"

var (
	ErrMemberUnresolvable    = errors.New("member not found in guild")
	ErrRoleNotFound          = errors.New("role not found")
	ErrInsufficientHierarchy = errors.New("bot role is below the target role")
	ErrMissingManageRoles    = errors.New("bot is missing the manage roles permission")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrInternalServer        = errors.New("internal server error")
)
