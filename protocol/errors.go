package protocol

import "errors"

// ErrProtocol marks a recoverable parse/command fault: the connection
// state machine converts this into an ERROR\r\n reply and keeps the
// connection open.
var ErrProtocol = errors.New("protocol: malformed command")
