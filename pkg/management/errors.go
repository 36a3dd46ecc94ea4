package management

import "errors"

var (
	ErrAlreadyBootstrapped = errors.New("management: passphrase already set")
	ErrNotBootstrapped     = errors.New("management: no passphrase set")
	ErrInvalidPassphrase   = errors.New("management: invalid passphrase")
	ErrLockedOut           = errors.New("management: locked out after too many failed attempts")
	ErrCorruptRecord       = errors.New("management: corrupt management record")
)
