package db

import "errors"

// ErrKeyExists reports a write to an ID that is already stored.
var ErrKeyExists = errors.New("db: key already exists")

// Op constants map to Valkey/Redis command names (or SQL verbs) for error context.
const (
	OpMGet          = "MGET"
	OpSet           = "SET"
	OpZAdd          = "ZADD"
	OpZRangeByScore = "ZRANGEBYSCORE"
	OpZCount        = "ZCOUNT"
	OpInsert        = "INSERT"
	OpSelect        = "SELECT"
	OpMigrate       = "MIGRATE"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
