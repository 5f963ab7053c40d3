package protocol

import "errors"

// ErrMalformedFrame is returned when a frame cannot be decoded or its
// payload does not match the declared type. The offending frame is
// dropped by the caller; the connection itself stays healthy.
var ErrMalformedFrame = errors.New("protocol: malformed frame")
