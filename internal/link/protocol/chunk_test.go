package protocol

import (
	"bytes"
	"strings"
	"testing"
)

func TestFragmentsFitsInOne(t *testing.T) {
	frags := Fragments([]byte("short\n"), DefaultFragmentSize)
	if len(frags) != 1 {
		t.Fatalf("got %d fragments, want 1", len(frags))
	}
	if string(frags[0]) != "short\n" {
		t.Errorf("fragment = %q, want %q", frags[0], "short\n")
	}
}

func TestFragmentsEmpty(t *testing.T) {
	if frags := Fragments(nil, DefaultFragmentSize); frags != nil {
		t.Errorf("got %d fragments for empty line, want none", len(frags))
	}
}

func TestFragments47ByteLine(t *testing.T) {
	// 47 bytes at a 20-byte cap: three fragments of 20, 20 and 7 bytes.
	line := []byte(strings.Repeat("x", 47))
	frags := Fragments(line, 20)
	if len(frags) != 3 {
		t.Fatalf("got %d fragments, want 3", len(frags))
	}
	for i, want := range []int{20, 20, 7} {
		if len(frags[i]) != want {
			t.Errorf("fragment[%d] len = %d, want %d", i, len(frags[i]), want)
		}
	}
	if !bytes.Equal(bytes.Join(frags, nil), line) {
		t.Error("fragments do not reassemble to the original line")
	}
}

func TestFragmentsExactMultiple(t *testing.T) {
	frags := Fragments([]byte(strings.Repeat("a", 40)), 20)
	if len(frags) != 2 {
		t.Fatalf("got %d fragments, want 2", len(frags))
	}
	if len(frags[0]) != 20 || len(frags[1]) != 20 {
		t.Errorf("fragment lens = %d/%d, want 20/20", len(frags[0]), len(frags[1]))
	}
}

func TestFragmentsPreserveOrder(t *testing.T) {
	line := []byte("abcdefghij")
	frags := Fragments(line, 3)
	if !bytes.Equal(bytes.Join(frags, nil), line) {
		t.Errorf("joined fragments = %q, want %q", bytes.Join(frags, nil), line)
	}
}

func TestFragmentsNonPositiveMax(t *testing.T) {
	line := []byte("whole line")
	frags := Fragments(line, 0)
	if len(frags) != 1 || !bytes.Equal(frags[0], line) {
		t.Errorf("Fragments(line, 0) = %v, want single whole-line fragment", frags)
	}
}
