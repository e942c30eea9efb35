package cell

import "errors"

// ErrTruncated is returned when a cell body ends before a fixed or
// length-prefixed field it declares can be read in full.
var ErrTruncated = errors.New("cell: truncated")

// ErrInvalid is returned when a cell body parses structurally but carries
// an out-of-range tag value (e.g. an auth_key_type outside {0,1,2}) or an
// internally inconsistent length field.
var ErrInvalid = errors.New("cell: invalid")
