package common

import "testing"

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 3, "hel"},
		{"₹₹₹₹", 2, "₹₹"},
		{"abc", 0, "abc"},
		{"", 5, ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := TruncateRunes(tt.in, tt.n); got != tt.want {
				t.Errorf("TruncateRunes(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
			}
		})
	}
}

func TestUserAgent(t *testing.T) {
	saved := Version
	defer func() { Version = saved }()

	Version = "1.4.0"
	if got := UserAgent(); got != "MarketDesk/1.4.0" {
		t.Errorf("UserAgent() = %q", got)
	}
}
