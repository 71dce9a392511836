package compress

import "errors"

// ErrTooLarge is returned when decompressed output exceeds the caller's limit.
var ErrTooLarge = errors.New("compress: decompressed data too large")
