package caldav

import (
	"strings"
	"testing"
)

func TestFingerprint(t *testing.T) {
	tests := []struct {
		etag string
		want int32
	}{
		{"", 0},
		{"a", 97},
		{"hello", 99162322},
		{`"abc"`, 34386722},
	}

	for _, tt := range tests {
		if got := Fingerprint(tt.etag); got != tt.want {
			t.Errorf("Fingerprint(%q) = %d, want %d", tt.etag, got, tt.want)
		}
	}
}

func TestFingerprintWraps(t *testing.T) {
	long := strings.Repeat("etag-revision-", 20)
	a, b := Fingerprint(long), Fingerprint(long)
	if a != b {
		t.Fatalf("fingerprint not deterministic: %d != %d", a, b)
	}
	if Fingerprint(long+"x") == a {
		t.Error("different tags produced the same fingerprint")
	}
}
