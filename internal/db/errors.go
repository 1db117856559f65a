package db

import "errors"

// ErrKeyNotFound signals a missing key.
var ErrKeyNotFound = errors.New("db: key not found")

// Command names recorded in Error.Op.
const (
	OpGet    = "GET"
	OpSet    = "SET"
	OpIncr   = "INCR"
	OpScan   = "SCAN"
	OpUnlink = "UNLINK"
)

// Error is a failed store command.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
