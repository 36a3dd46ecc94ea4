package authcore

import "errors"

var (
	ErrMalformedToken = errors.New("authcore: malformed token")
	ErrTokenNotFound  = errors.New("authcore: token not found")
	ErrTokenRevoked   = errors.New("authcore: token revoked")
	ErrTokenExpired   = errors.New("authcore: token expired")
)
