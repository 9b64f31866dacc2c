package eventstream

import "errors"

// ErrIncomplete is returned by DecodeFrame when buf does not yet contain a
// full frame. Callers buffer more bytes and retry; it is never surfaced to
// a caller of Parser.Feed.
var ErrIncomplete = errors.New("eventstream: incomplete frame")
