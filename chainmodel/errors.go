package chainmodel

import "errors"

// Error kinds surfaced to handlers. These are never allowed to cross the
// wire; a handler that receives one logs it and drops the message.
var (
	ErrInvalidTransaction = errors.New("chainmodel: invalid transaction")
	ErrInvalidBlock       = errors.New("chainmodel: invalid block")
)
