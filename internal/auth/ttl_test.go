package auth

import (
	"testing"
	"time"
)

func TestParseTTL(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
	}{
		{"15m", 15 * time.Minute},
		{"30s", 30 * time.Second},
		{"12h", 12 * time.Hour},
		{"7d", 7 * 24 * time.Hour},
		{"1s", time.Second},
	}
	for _, c := range cases {
		got, err := ParseTTL(c.in)
		if err != nil {
			t.Errorf("ParseTTL(%q): unexpected error %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("ParseTTL(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestParseTTLRejectsMalformed(t *testing.T) {
	for _, in := range []string{"", "15", "m", "15 m", "-15m", "15w", "1.5h", "15mm"} {
		if _, err := ParseTTL(in); err == nil {
			t.Errorf("ParseTTL(%q): expected error", in)
		}
	}
}
