package protocol

// DefaultFragmentSize is the conservative per-notification payload cap.
// 20 bytes is safe under the minimum negotiated ATT MTU of 23; a deployment
// that negotiates a larger MTU may raise it without affecting the framing,
// since the receiver reassembles on the delimiter, not fragment boundaries.
const DefaultFragmentSize = 20

// Fragments splits line into MTU-safe pieces of at most maxBytes each,
// in order, preserving every byte. Cuts are plain byte-count cuts — the
// unit of meaning is the reassembled line, not the fragment. Returns nil
// for an empty line; a non-positive maxBytes yields the whole line as a
// single fragment.
func Fragments(line []byte, maxBytes int) [][]byte {
	if len(line) == 0 {
		return nil
	}
	if maxBytes <= 0 || len(line) <= maxBytes {
		return [][]byte{line}
	}

	frags := make([][]byte, 0, (len(line)+maxBytes-1)/maxBytes)
	for len(line) > maxBytes {
		frags = append(frags, line[:maxBytes])
		line = line[maxBytes:]
	}
	return append(frags, line)
}
