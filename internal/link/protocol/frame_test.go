package protocol

import (
	"reflect"
	"testing"
)

func TestAppendSingleCompleteLine(t *testing.T) {
	var r Reassembler
	lines := r.Append([]byte("hello\n"))
	if !reflect.DeepEqual(lines, []string{"hello"}) {
		t.Errorf("Append = %v, want [hello]", lines)
	}
	if r.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", r.Pending())
	}
}

func TestAppendPartialThenCompletion(t *testing.T) {
	var r Reassembler
	if lines := r.Append([]byte("hel")); lines != nil {
		t.Errorf("partial chunk yielded lines %v, want none", lines)
	}
	if r.Pending() != 3 {
		t.Errorf("Pending() = %d, want 3", r.Pending())
	}
	lines := r.Append([]byte("lo\n"))
	if !reflect.DeepEqual(lines, []string{"hello"}) {
		t.Errorf("Append = %v, want [hello]", lines)
	}
}

func TestAppendMultipleLinesInOneChunk(t *testing.T) {
	var r Reassembler
	lines := r.Append([]byte("one\ntwo\nthree\n"))
	want := []string{"one", "two", "three"}
	if !reflect.DeepEqual(lines, want) {
		t.Errorf("Append = %v, want %v", lines, want)
	}
}

func TestAppendKeepsTrailingRemainder(t *testing.T) {
	var r Reassembler
	lines := r.Append([]byte("done\npart"))
	if !reflect.DeepEqual(lines, []string{"done"}) {
		t.Errorf("Append = %v, want [done]", lines)
	}
	if r.Pending() != 4 {
		t.Errorf("Pending() = %d, want 4 (\"part\")", r.Pending())
	}
	lines = r.Append([]byte("ial\n"))
	if !reflect.DeepEqual(lines, []string{"partial"}) {
		t.Errorf("Append = %v, want [partial]", lines)
	}
}

func TestAppendByteAtATime(t *testing.T) {
	// Reassembly must be independent of how the input is split.
	input := "first\nsecond\nthird\n"
	var r Reassembler
	var got []string
	for i := 0; i < len(input); i++ {
		got = append(got, r.Append([]byte{input[i]})...)
	}
	want := []string{"first", "second", "third"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("byte-at-a-time yielded %v, want %v", got, want)
	}
	if r.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", r.Pending())
	}
}

func TestAppendEmptyLineIsForwarded(t *testing.T) {
	// A delimiter as the first buffered byte yields an empty line.
	// The reassembler does not suppress it; that policy belongs upstream.
	var r Reassembler
	lines := r.Append([]byte("\nafter\n"))
	want := []string{"", "after"}
	if !reflect.DeepEqual(lines, want) {
		t.Errorf("Append = %v, want %v", lines, want)
	}
}

func TestAppendEmptyChunk(t *testing.T) {
	var r Reassembler
	r.Append([]byte("pend"))
	if lines := r.Append(nil); lines != nil {
		t.Errorf("empty chunk yielded %v, want none", lines)
	}
	if r.Pending() != 4 {
		t.Errorf("Pending() = %d after empty chunk, want 4", r.Pending())
	}
}

func TestResetDiscardsPartialData(t *testing.T) {
	var r Reassembler
	r.Append([]byte("stale-half-line"))
	r.Reset()
	if r.Pending() != 0 {
		t.Fatalf("Pending() = %d after Reset, want 0", r.Pending())
	}
	// The next session's bytes must not be spliced with the stale ones.
	lines := r.Append([]byte("fresh\n"))
	if !reflect.DeepEqual(lines, []string{"fresh"}) {
		t.Errorf("post-Reset Append = %v, want [fresh]", lines)
	}
}

func TestFragmentRoundTrip(t *testing.T) {
	// Any fragmentation of a line reassembles to the same line.
	line := "the quick brown fox jumps over the lazy dog"
	for _, size := range []int{1, 2, 3, 7, 19, 20, 21, len(line), len(line) + 1} {
		var r Reassembler
		var got []string
		for _, frag := range Fragments([]byte(line+"\n"), size) {
			got = append(got, r.Append(frag)...)
		}
		if !reflect.DeepEqual(got, []string{line}) {
			t.Errorf("size %d: round trip yielded %v, want [%s]", size, got, line)
		}
	}
}
