package protocol

import "github.com/Krishna8167/tempuscached/cache"

// Command is built by Parser.Build and executed once its bulk argument
// (if any) has fully arrived. Execute writes a textual reply token —
// e.g. STORED, NOT_STORED, DELETED, NOT_FOUND, VALUE …, END — and never
// returns a Go error for a well-formed command: a malformed request is
// caught at parse time, and Storage itself is infallible given its own
// preconditions.
type Command interface {
	Execute(storage cache.Storage, argument string) string
}
