package ingestion

import (
	"errors"
	"strings"
	"testing"
)

func TestSplit_Reconstruction(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		text    string
		size    int
		overlap int
	}{
		{"shorter than window", "hello world", 50, 10},
		{"exact multiple", strings.Repeat("abcd", 25), 20, 5},
		{"ragged tail", strings.Repeat("x", 1234), 100, 30},
		{"overlap one", "the quick brown fox jumps", 4, 1},
		{"multibyte", strings.Repeat("äöü€", 40), 16, 4},
		{"newlines", "line one\nline two\r\nline three\n", 8, 3},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			chunks, err := Split(tc.text, tc.size, tc.overlap)
			if err != nil {
				t.Fatalf("Split: %v", err)
			}
			step := tc.size - tc.overlap

			var rebuilt strings.Builder
			for i, c := range chunks {
				r := []rune(c)
				if len(r) > tc.size {
					t.Errorf("chunk %d has %d runes, max %d", i, len(r), tc.size)
				}
				rebuilt.WriteString(string(r[:min(step, len(r))]))

				if i+1 < len(chunks) && len(r) == tc.size {
					next := []rune(chunks[i+1])
					tail := string(r[step:])
					head := string(next[:min(tc.overlap, len(next))])
					if tail != head {
						t.Errorf("chunk %d/%d overlap mismatch: %q vs %q", i, i+1, tail, head)
					}
				}
			}
			if got, want := rebuilt.String(), Normalize(tc.text); got != want {
				t.Errorf("reconstruction mismatch:\n got %q\nwant %q", got, want)
			}
		})
	}
}

func TestSplit_Empty(t *testing.T) {
	t.Parallel()
	for _, in := range []string{"", "   ", "\n\r\n"} {
		chunks, err := Split(in, 10, 2)
		if err != nil {
			t.Fatalf("Split(%q): %v", in, err)
		}
		if len(chunks) != 0 {
			t.Errorf("Split(%q): want no chunks, got %q", in, chunks)
		}
	}
}

func TestSplit_InvalidWindow(t *testing.T) {
	t.Parallel()
	cases := [][2]int{{10, 0}, {10, 10}, {10, 12}, {10, -1}}
	for _, c := range cases {
		if _, err := Split("some text", c[0], c[1]); !errors.Is(err, ErrInvalidWindow) {
			t.Errorf("Split(size=%d, overlap=%d): want ErrInvalidWindow, got %v", c[0], c[1], err)
		}
	}
}

func TestSplit_StartsAtEveryStep(t *testing.T) {
	t.Parallel()
	// 10 runes, size 6, overlap 2 → starts at 0, 4, 8.
	chunks, err := Split("0123456789", 6, 2)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	want := []string{"012345", "456789", "89"}
	if len(chunks) != len(want) {
		t.Fatalf("want %d chunks, got %d: %q", len(want), len(chunks), chunks)
	}
	for i := range want {
		if chunks[i] != want[i] {
			t.Errorf("chunk %d: want %q, got %q", i, want[i], chunks[i])
		}
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()
	if got := Normalize("  a\nb\r\nc\rd  "); got != "a b c d" {
		t.Errorf("Normalize: got %q", got)
	}
}
