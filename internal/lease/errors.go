package lease

import "errors"

// ErrBusy is returned by a non-blocking acquire when the slot is held.
var ErrBusy = errors.New("processing slot busy")

// ErrAcquireTimeout is returned by a blocking acquire that exhausted its timeout.
var ErrAcquireTimeout = errors.New("processing slot acquire timed out")
