package correlate

import "errors"

// ErrTimeout is returned by Await when no response arrived within the
// configured window. The connection itself remains healthy; the caller
// decides whether to retry.
var ErrTimeout = errors.New("correlate: request timed out")
