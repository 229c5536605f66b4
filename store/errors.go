package store

import "errors"

// ErrStore wraps unrecoverable storage failures. Per the error handling
// design, these are logged by the caller and the write that triggered them
// is aborted; they are never forwarded across the wire.
var ErrStore = errors.New("store: unrecoverable storage error")
