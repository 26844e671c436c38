package engine

import "testing"

func TestApproxTokens(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcde", 2},
		{"12345678", 2},
	}
	for _, c := range cases {
		if got := approxTokens(c.in); got != c.want {
			t.Fatalf("approxTokens(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}
