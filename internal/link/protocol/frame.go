// Package protocol implements the line framing used on the BLE link:
// newline-delimited messages reassembled from arbitrarily-chunked GATT
// writes, and the inverse split into MTU-safe fragments.
package protocol

import "bytes"

// Delimiter terminates every message on the wire.
const Delimiter = '\n'

// Reassembler accumulates inbound byte chunks and extracts complete
// newline-terminated lines. Bytes after the last delimiter stay buffered
// until a future chunk completes them. The zero value is ready to use.
type Reassembler struct {
	buf []byte
}

// Append adds a chunk to the buffer and returns every complete line it
// closes, in arrival order, without the delimiter. A chunk may close zero
// lines (partial data) or several (it contained multiple delimiters). An
// empty line is returned as "" — suppressing it is the caller's policy.
func (r *Reassembler) Append(chunk []byte) []string {
	if len(chunk) == 0 {
		return nil
	}
	r.buf = append(r.buf, chunk...)

	var lines []string
	for {
		i := bytes.IndexByte(r.buf, Delimiter)
		if i < 0 {
			return lines
		}
		lines = append(lines, string(r.buf[:i]))
		r.buf = r.buf[i+1:]
	}
}

// Pending returns the number of buffered bytes awaiting a delimiter.
func (r *Reassembler) Pending() int {
	return len(r.buf)
}

// Reset discards any buffered partial line. Called on disconnect so a
// previous session's leftover bytes are never spliced into the next
// session's first message.
func (r *Reassembler) Reset() {
	r.buf = nil
}
