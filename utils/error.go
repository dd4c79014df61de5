package utils

import "errors"

var ErrorRecordNotFound = errors.New("record not found")

// ErrDuplicateRecord is returned by stores when a unique index rejects an insert.
var ErrDuplicateRecord = errors.New("duplicate record")
