// Package protocol implements the incremental memcached-text-protocol
// header parser and the command objects it builds. The full memcached
// command vocabulary (flags, exptime, CAS tokens) is out of scope; this
// package implements exactly the commands needed to exercise every
// cache.Storage operation.
package protocol

import (
	"bytes"
	"strconv"
	"strings"
)

// MaxHeaderLen bounds how many bytes a caller should buffer before
// declaring a header malformed, protecting against a client that never
// sends a terminating CRLF. Parser itself is stateless across calls, so
// enforcement lives with whoever owns the accumulation buffer
// (conn.Connection).
const MaxHeaderLen = 4096

// Parser incrementally recognizes a command header prefix out of a byte
// stream. It holds no reference to the buffer it was given; callers own
// buffer management (conn.Connection does the shifting).
type Parser struct {
	header string
}

// Parse scans buf for a CRLF-terminated header line. It returns
// consumed == 0 and ok == false when buf holds no complete header yet
// (the caller must accumulate more bytes and retry). On success it
// returns the number of bytes making up the header line, including the
// trailing CRLF.
func (p *Parser) Parse(buf []byte) (consumed int, ok bool) {
	idx := bytes.Index(buf, []byte("\r\n"))
	if idx < 0 {
		return 0, false
	}
	p.header = string(buf[:idx])
	return idx + 2, true
}

// Reset returns the parser to its initial state.
func (p *Parser) Reset() {
	p.header = ""
}

// Build constructs a Command from the most recently parsed header and
// reports how many bytes of bulk argument (if any) must still be read,
// not including the trailing CRLF framing the caller adds separately.
func (p *Parser) Build() (cmd Command, argRemains int, err error) {
	fields := strings.Fields(p.header)
	if len(fields) == 0 {
		return nil, 0, ErrProtocol
	}

	switch strings.ToLower(fields[0]) {
	case "get":
		if len(fields) != 2 {
			return nil, 0, ErrProtocol
		}
		return &getCommand{key: fields[1]}, 0, nil

	case "delete":
		if len(fields) != 2 {
			return nil, 0, ErrProtocol
		}
		return &deleteCommand{key: fields[1]}, 0, nil

	case "set", "add", "replace":
		if len(fields) != 3 {
			return nil, 0, ErrProtocol
		}
		n, convErr := strconv.Atoi(fields[2])
		if convErr != nil || n < 0 {
			return nil, 0, ErrProtocol
		}
		return &storeCommand{verb: strings.ToLower(fields[0]), key: fields[1]}, n, nil

	default:
		return nil, 0, ErrProtocol
	}
}
