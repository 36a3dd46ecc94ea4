package statichandler

import "errors"

// ErrNotFound is returned by a FileStore when the requested id doesn't
// exist; handler.go maps it to apierrors.NotFound.
var ErrNotFound = errors.New("statichandler: file not found")
